package models

import "gorm.io/gorm"

// User - сотрудник (не резидент). Аутентификация по JWT, данные
// о членстве в организациях кэшируются в Redis (см. middleware).
type User struct {
	gorm.Model
	Login        string `json:"login" gorm:"uniqueIndex;not null"`
	FullName     string `json:"fullName"`
	PasswordHash string `json:"-"`
}

// OrgMembership связывает сотрудника с организацией и ролью в ней.
type OrgMembership struct {
	gorm.Model
	UserID uint   `json:"userId" gorm:"uniqueIndex:idx_user_org;not null"`
	OrgID  uint   `json:"orgId" gorm:"uniqueIndex:idx_user_org;not null"`
	Role   string `json:"role" gorm:"default:'staff'"` // staff | billing_admin | owner
}
