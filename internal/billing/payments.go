package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recoveryos/internal/apperr"
	"recoveryos/internal/ledger"
	"recoveryos/models"
)

// Маппинги по умолчанию: куда проводить деньги по категории начисления.
// Организация может переопределить их своими строками PaymentTypeMapping.
var defaultMappings = []models.PaymentTypeMapping{
	{PaymentType: "program_fee", DebitAccountCode: "1000", CreditAccountCode: "4000"},
	{PaymentType: "rent", DebitAccountCode: "1000", CreditAccountCode: "4100"},
	{PaymentType: "deposit", DebitAccountCode: "1000", CreditAccountCode: "2000"},
	{PaymentType: "late_fee", DebitAccountCode: "1000", CreditAccountCode: "4200"},
}

// SeedDefaultMappings устанавливает организации маппинги по умолчанию.
// Существующие строки не перезаписываются.
func (s *Service) SeedDefaultMappings(ctx context.Context, orgID uint) error {
	mappings := make([]models.PaymentTypeMapping, len(defaultMappings))
	copy(mappings, defaultMappings)
	for i := range mappings {
		mappings[i].OrgID = orgID
	}
	return wrapStorage(s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&mappings).Error)
}

func resolveMappingTx(tx *gorm.DB, orgID uint, paymentType string) (*models.PaymentTypeMapping, error) {
	var m models.PaymentTypeMapping
	err := tx.Where("org_id = ? AND payment_type = ?", orgID, paymentType).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("no ledger account mapping for payment type: " + paymentType)
	}
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &m, nil
}

// PaymentInput - платеж, каким его сообщает платежный провайдер.
type PaymentInput struct {
	OrgID             uint            `json:"-"`
	InvoiceID         *uint           `json:"invoiceId"`
	ResidentID        uint            `json:"residentId" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentMethodType string          `json:"paymentMethodType"`
	PaymentType       string          `json:"paymentType" binding:"required"`
	Status            string          `json:"status"`
	PaymentDate       time.Time       `json:"paymentDate"`
	ExternalRef       string          `json:"externalRef"`
}

// RecordPayment сохраняет платеж. Если он уже в статусе succeeded,
// в той же транзакции проводится пара по леджеру и пересчитывается счет.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*models.Payment, error) {
	if in.OrgID == 0 {
		return nil, apperr.Validation("orgId is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("payment amount must be positive")
	}
	if in.PaymentType == "" {
		return nil, apperr.Validation("paymentType is required")
	}
	if in.Status == "" {
		in.Status = models.PaymentStatusPending
	}
	switch in.Status {
	case models.PaymentStatusPending, models.PaymentStatusProcessing, models.PaymentStatusSucceeded,
		models.PaymentStatusFailed, models.PaymentStatusRefunded, models.PaymentStatusDisputed:
	default:
		return nil, apperr.Validation("unknown payment status: " + in.Status)
	}

	var resident models.Resident
	err := s.db.WithContext(ctx).Where("org_id = ?", in.OrgID).First(&resident, in.ResidentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("resident not found")
	}
	if err != nil {
		return nil, wrapStorage(err)
	}

	when := in.PaymentDate
	if when.IsZero() {
		when = time.Now().UTC()
	}
	payment := &models.Payment{
		OrgID:             in.OrgID,
		InvoiceID:         in.InvoiceID,
		ResidentID:        in.ResidentID,
		Amount:            models.NewMoney(in.Amount.Round(2)),
		PaymentMethodType: in.PaymentMethodType,
		PaymentType:       in.PaymentType,
		Status:            in.Status,
		PaymentDate:       when,
		ExternalRef:       in.ExternalRef,
	}

	var affected []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return wrapStorage(err)
		}
		if payment.Status != models.PaymentStatusSucceeded {
			return nil
		}
		codes, err := s.settlePaymentTx(tx, payment)
		if err != nil {
			return err
		}
		affected = codes
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	s.ledger.InvalidateBalances(ctx, in.OrgID, affected...)
	return payment, nil
}

// MarkPaymentSucceeded - реакция на колбэк провайдера: pending/processing ->
// succeeded, плюс проводка и пересчет счета, все атомарно.
func (s *Service) MarkPaymentSucceeded(ctx context.Context, orgID, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	var affected []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ?", orgID).First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("payment not found")
			}
			return wrapStorage(err)
		}
		if payment.Status != models.PaymentStatusPending && payment.Status != models.PaymentStatusProcessing {
			return apperr.InvalidState("payment is not awaiting settlement: " + payment.Status)
		}
		if err := tx.Model(&payment).Update("status", models.PaymentStatusSucceeded).Error; err != nil {
			return wrapStorage(err)
		}
		payment.Status = models.PaymentStatusSucceeded
		codes, err := s.settlePaymentTx(tx, &payment)
		if err != nil {
			return err
		}
		affected = codes
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	s.ledger.InvalidateBalances(ctx, orgID, affected...)
	return &payment, nil
}

// settlePaymentTx проводит зачтенный платеж по леджеру и приводит счет
// в соответствие с суммой всех succeeded-платежей. Ключ идемпотентности
// защищает от двойной проводки при повторной доставке колбэка.
func (s *Service) settlePaymentTx(tx *gorm.DB, payment *models.Payment) ([]string, error) {
	mapping, err := resolveMappingTx(tx, payment.OrgID, payment.PaymentType)
	if err != nil {
		return nil, err
	}

	cents := payment.Amount.Mul(decimal.NewFromInt(100)).IntPart()
	if _, err := s.ledger.PostInTx(tx, ledger.PostingInput{
		OrgID:             payment.OrgID,
		DebitAccountCode:  mapping.DebitAccountCode,
		CreditAccountCode: mapping.CreditAccountCode,
		AmountCents:       cents,
		Description:       fmt.Sprintf("Payment #%d (%s)", payment.ID, payment.PaymentType),
		ReferenceType:     models.ReferencePayment,
		ReferenceID:       fmt.Sprintf("%d", payment.ID),
		CreatedBy:         "billing",
		IdempotencyKey:    fmt.Sprintf("payment:%d:settle", payment.ID),
	}); err != nil {
		return nil, err
	}

	if payment.InvoiceID != nil {
		if err := s.applyPaymentsTx(tx, payment.OrgID, *payment.InvoiceID); err != nil {
			return nil, err
		}
	}
	return []string{mapping.DebitAccountCode, mapping.CreditAccountCode}, nil
}

// applyPaymentsTx пересчитывает amountPaid/amountDue/status счета по сумме
// всех его succeeded-платежей. Счет читается под блокировкой, так что два
// одновременных платежа не потеряют обновления друг друга.
func (s *Service) applyPaymentsTx(tx *gorm.DB, orgID, invoiceID uint) error {
	inv, err := lockedInvoiceTx(tx, orgID, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status == models.InvoiceStatusDraft || inv.Status == models.InvoiceStatusVoid {
		return apperr.InvalidState("invoice is not payable in status " + inv.Status)
	}

	var row struct {
		Total decimal.Decimal
	}
	if err := tx.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("org_id = ? AND invoice_id = ? AND status = ?",
			orgID, invoiceID, models.PaymentStatusSucceeded).
		Scan(&row).Error; err != nil {
		return wrapStorage(err)
	}

	amountPaid := row.Total.Round(2)
	amountDue := inv.Total.Sub(amountPaid)

	status := inv.Status
	switch {
	case amountDue.LessThanOrEqual(decimal.Zero):
		status = models.InvoiceStatusPaid
	case amountPaid.IsPositive():
		status = models.InvoiceStatusPartiallyPaid
	case inv.Status == models.InvoiceStatusPaid || inv.Status == models.InvoiceStatusPartiallyPaid:
		// Все платежи возвращены: счет снова ждет оплаты. Просрочку,
		// если она есть, выставит плановая задача.
		status = models.InvoiceStatusPending
	}

	return wrapStorage(tx.Model(inv).Updates(map[string]interface{}{
		"amount_paid": amountPaid,
		"amount_due":  amountDue,
		"status":      status,
	}).Error)
}

// RecordRefund возвращает зачтенный платеж: статус refunded, обратная
// проводка по леджеру и пересчет счета - одной транзакцией.
func (s *Service) RecordRefund(ctx context.Context, orgID, paymentID uint, createdBy string) (*models.Payment, error) {
	var payment models.Payment
	var affected []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ?", orgID).First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("payment not found")
			}
			return wrapStorage(err)
		}
		if payment.Status != models.PaymentStatusSucceeded {
			return apperr.InvalidState("only succeeded payments can be refunded")
		}

		// Находим исходную проводку платежа по ссылке.
		var entry models.LedgerEntry
		err := tx.Where("org_id = ? AND reference_type = ? AND reference_id = ?",
			orgID, models.ReferencePayment, fmt.Sprintf("%d", payment.ID)).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Платеж числится зачтенным, а проводки нет - так быть не должно.
			slog.Error("Зачтенный платеж без проводки в леджере", "payment_id", payment.ID)
			return apperr.InvalidState("payment has no ledger posting to reverse")
		}
		if err != nil {
			return wrapStorage(err)
		}

		_, codes, err := s.ledger.ReverseInTx(tx, orgID, entry.TransactionID, createdBy)
		if err != nil {
			return err
		}
		affected = codes

		if err := tx.Model(&payment).Update("status", models.PaymentStatusRefunded).Error; err != nil {
			return wrapStorage(err)
		}
		payment.Status = models.PaymentStatusRefunded

		if payment.InvoiceID != nil {
			return s.applyPaymentsTx(tx, orgID, *payment.InvoiceID)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	s.ledger.InvalidateBalances(ctx, orgID, affected...)
	return &payment, nil
}
