// Package billing - счета резидентам и сверка платежей.
// Производные поля счета (subtotal/total/amountPaid/amountDue) и его статус
// меняются только здесь и только в одной транзакции с породившей их записью.
package billing

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recoveryos/internal/apperr"
	"recoveryos/internal/ledger"
	"recoveryos/models"
)

type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
}

func NewService(db *gorm.DB, ledgerSvc *ledger.Service) *Service {
	return &Service{db: db, ledger: ledgerSvc}
}

func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Storage(err)
}

// lockedInvoiceTx читает счет под блокировкой строки, чтобы параллельные
// пересчеты (два платежа по одному счету) сериализовались. На SQLite
// блокировка не нужна: там писатель всегда один.
func lockedInvoiceTx(tx *gorm.DB, orgID, invoiceID uint) (*models.Invoice, error) {
	q := tx.Where("org_id = ?", orgID)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv models.Invoice
	if err := q.First(&inv, invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice not found")
		}
		return nil, wrapStorage(err)
	}
	return &inv, nil
}
