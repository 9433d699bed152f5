package models

import "gorm.io/gorm"

// LateFeeRule - правило начисления пени для организации. Formula -
// выражение govaluate над переменными amount_due, total, days_overdue,
// например "amount_due * 0.05" или "25.0". Пустая или выключенная
// формула означает "пеню не начислять".
type LateFeeRule struct {
	gorm.Model
	OrgID     uint   `json:"orgId" gorm:"uniqueIndex;not null"`
	Formula   string `json:"formula" gorm:"not null"`
	GraceDays int    `json:"graceDays" gorm:"default:0"`
	Enabled   bool   `json:"enabled" gorm:"default:false"`
}
