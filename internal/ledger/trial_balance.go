package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"recoveryos/models"
)

// TrialBalanceRow - строка оборотно-сальдовой ведомости по одному счету.
type TrialBalanceRow struct {
	AccountID     uint         `json:"accountId"`
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	AccountType   string       `json:"accountType"`
	TotalDebits   models.Money `json:"totalDebits"`
	TotalCredits  models.Money `json:"totalCredits"`
	Balance       models.Money `json:"balance"`       // дебет - кредит, без учета типа счета
	NormalBalance models.Money `json:"normalBalance"` // рост счета = плюс
}

// TrialBalance строит ведомость по всем активным счетам организации:
// обороты считаются одним GROUP BY по журналу, затем раскладываются
// по счетам в памяти.
func (s *Service) TrialBalance(ctx context.Context, orgID uint) ([]TrialBalanceRow, error) {
	var accounts []models.LedgerAccount
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Order("code asc").Find(&accounts).Error; err != nil {
		return nil, wrapStorage(err)
	}

	type accountSum struct {
		AccountID    uint
		TotalDebits  decimal.Decimal
		TotalCredits decimal.Decimal
	}
	var sums []accountSum
	if err := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select("account_id, SUM(debit_amount) AS total_debits, SUM(credit_amount) AS total_credits").
		Where("org_id = ?", orgID).
		Group("account_id").
		Scan(&sums).Error; err != nil {
		return nil, wrapStorage(err)
	}

	byAccount := make(map[uint]accountSum, len(sums))
	for _, s := range sums {
		byAccount[s.AccountID] = s
	}

	rows := make([]TrialBalanceRow, 0, len(accounts))
	for _, acc := range accounts {
		sum := byAccount[acc.ID]
		balance := sum.TotalDebits.Sub(sum.TotalCredits).Round(2)
		normal := balance
		if !acc.IncreasesOnDebit() {
			normal = balance.Neg()
		}
		rows = append(rows, TrialBalanceRow{
			AccountID:     acc.ID,
			Code:          acc.Code,
			Name:          acc.Name,
			AccountType:   acc.AccountType,
			TotalDebits:   models.NewMoney(sum.TotalDebits.Round(2)),
			TotalCredits:  models.NewMoney(sum.TotalCredits.Round(2)),
			Balance:       models.NewMoney(balance),
			NormalBalance: models.NewMoney(normal),
		})
	}
	return rows, nil
}
