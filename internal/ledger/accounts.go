package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recoveryos/internal/apperr"
	"recoveryos/models"
)

// Базовый план счетов, который получает каждая новая организация.
// Коды фиксированы: на них ссылаются маппинги типов платежей.
var defaultChart = []models.LedgerAccount{
	{Code: "1000", Name: "Cash", AccountType: models.AccountTypeAsset, IsSystem: true},
	{Code: "1100", Name: "Accounts Receivable", AccountType: models.AccountTypeAsset, IsSystem: true},
	{Code: "2000", Name: "Resident Deposits Held", AccountType: models.AccountTypeLiability, IsSystem: true},
	{Code: "4000", Name: "Program Fees", AccountType: models.AccountTypeRevenue, IsSystem: true},
	{Code: "4100", Name: "Rent Income", AccountType: models.AccountTypeRevenue, IsSystem: true},
	{Code: "4200", Name: "Late Fee Income", AccountType: models.AccountTypeRevenue, IsSystem: true},
	{Code: "5000", Name: "Operating Expense", AccountType: models.AccountTypeExpense, IsSystem: true},
}

// CreateAccount добавляет счет в план счетов организации.
func (s *Service) CreateAccount(ctx context.Context, acc *models.LedgerAccount) error {
	if acc.OrgID == 0 {
		return apperr.Validation("orgId is required")
	}
	if acc.Code == "" || acc.Name == "" {
		return apperr.Validation("account code and name are required")
	}
	if !models.ValidAccountType(acc.AccountType) {
		return apperr.Validation("unknown account type: " + acc.AccountType)
	}
	acc.IsActive = true

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.LedgerAccount{}).
		Where("org_id = ? AND code = ?", acc.OrgID, acc.Code).
		Count(&count).Error; err != nil {
		return wrapStorage(err)
	}
	if count > 0 {
		return apperr.Validation("account code already in use: " + acc.Code)
	}

	if err := s.db.WithContext(ctx).Create(acc).Error; err != nil {
		// Параллельное создание того же кода упрется в уникальный индекс.
		return apperr.Conflict("account code collision", err)
	}
	return nil
}

// SeedDefaultChart устанавливает организации стандартный план счетов.
// Повторный вызов безопасен: существующие коды не трогаются.
func (s *Service) SeedDefaultChart(ctx context.Context, orgID uint) error {
	accounts := make([]models.LedgerAccount, len(defaultChart))
	copy(accounts, defaultChart)
	for i := range accounts {
		accounts[i].OrgID = orgID
		accounts[i].IsActive = true
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&accounts).Error
	return wrapStorage(err)
}

// ResolveAccount находит счет по коду внутри организации.
func (s *Service) ResolveAccount(ctx context.Context, orgID uint, code string) (*models.LedgerAccount, error) {
	return resolveAccountTx(s.db.WithContext(ctx), orgID, code)
}

func resolveAccountTx(tx *gorm.DB, orgID uint, code string) (*models.LedgerAccount, error) {
	var acc models.LedgerAccount
	err := tx.Where("org_id = ? AND code = ?", orgID, code).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.AccountNotFound(code)
	}
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &acc, nil
}

// DeactivateAccount выключает счет. Системные счета защищены.
func (s *Service) DeactivateAccount(ctx context.Context, orgID, accountID uint) error {
	var acc models.LedgerAccount
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&acc, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("account not found")
	}
	if err != nil {
		return wrapStorage(err)
	}
	if acc.IsSystem {
		return apperr.InvalidState("system accounts cannot be deactivated")
	}
	return wrapStorage(s.db.WithContext(ctx).Model(&acc).Update("is_active", false).Error)
}

// GetBalance возвращает остаток счета как SUM(дебет) - SUM(кредит) по всем
// записям. Знак НЕ зависит от типа счета: для пассивных и доходных счетов
// рост дает отрицательное число - см. GetNormalBalance. Результат кэшируется
// в Redis под версионированным ключом; версия поднимается при каждой
// проводке по счету, так что результат, досчитанный до коммита, не может
// перезаписать свежий кэш.
func (s *Service) GetBalance(ctx context.Context, orgID uint, code string) (decimal.Decimal, error) {
	var ver int64
	if s.rdb != nil {
		ver = s.balanceVersion(ctx, orgID, code)
		if cached, err := s.rdb.Get(ctx, balanceCacheKey(orgID, code, ver)).Result(); err == nil {
			if d, derr := decimal.NewFromString(cached); derr == nil {
				return d, nil
			}
		}
	}

	acc, err := s.ResolveAccount(ctx, orgID, code)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := s.sumBalance(ctx, acc)
	if err != nil {
		return decimal.Zero, err
	}

	if s.rdb != nil {
		s.rdb.Set(ctx, balanceCacheKey(orgID, code, ver), balance.StringFixed(2), balanceCacheTTL)
	}
	return balance, nil
}

func (s *Service) sumBalance(ctx context.Context, acc *models.LedgerAccount) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(debit_amount - credit_amount), 0) AS total").
		Where("org_id = ? AND account_id = ?", acc.OrgID, acc.ID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, wrapStorage(err)
	}
	return row.Total.Round(2), nil
}

// GetNormalBalance возвращает остаток в привычной бухгалтеру конвенции:
// рост счета - это плюс. Для активов и расходов это дебет-кредит,
// для пассивов, капитала и доходов - кредит-дебет.
func (s *Service) GetNormalBalance(ctx context.Context, orgID uint, code string) (decimal.Decimal, error) {
	acc, err := s.ResolveAccount(ctx, orgID, code)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := s.GetBalance(ctx, orgID, code)
	if err != nil {
		return decimal.Zero, err
	}
	if acc.IncreasesOnDebit() {
		return raw, nil
	}
	return raw.Neg(), nil
}
