package models

import "gorm.io/gorm"

// Типы счетов плана счетов.
const (
	AccountTypeAsset     = "asset"
	AccountTypeLiability = "liability"
	AccountTypeEquity    = "equity"
	AccountTypeRevenue   = "revenue"
	AccountTypeExpense   = "expense"
)

// LedgerAccount - счет в плане счетов организации.
// Пара (OrgID, Code) уникальна. Системные счета (IsSystem) удалять нельзя,
// обычные отключаются через IsActive, а не удаляются физически.
type LedgerAccount struct {
	gorm.Model
	OrgID           uint   `json:"orgId" gorm:"uniqueIndex:idx_org_account_code;not null"`
	Code            string `json:"code" gorm:"uniqueIndex:idx_org_account_code;not null"`
	Name            string `json:"name" gorm:"not null"`
	AccountType     string `json:"accountType" gorm:"not null"`
	ParentAccountID *uint  `json:"parentAccountId"`
	IsSystem        bool   `json:"isSystem" gorm:"default:false"`
	IsActive        bool   `json:"isActive" gorm:"default:true"`
}

// IncreasesOnDebit сообщает знаковую конвенцию счета: активы и расходы
// растут по дебету, пассивы/капитал/доходы - по кредиту. Используется,
// чтобы отдавать остаток в привычном бухгалтеру виде (рост = плюс).
func (a *LedgerAccount) IncreasesOnDebit() bool {
	switch a.AccountType {
	case AccountTypeAsset, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// ValidAccountType проверяет, что тип счета один из пяти допустимых.
func ValidAccountType(t string) bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}
