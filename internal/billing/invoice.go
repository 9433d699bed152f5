package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"recoveryos/internal/apperr"
	"recoveryos/models"
)

// LineItemInput - строка счета, как ее присылает клиент.
type LineItemInput struct {
	Description string          `json:"description" binding:"required"`
	PaymentType string          `json:"paymentType" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	StartDate   *time.Time      `json:"startDate"`
	EndDate     *time.Time      `json:"endDate"`
}

func (li *LineItemInput) validate() error {
	if li.Description == "" {
		return apperr.Validation("line item description is required")
	}
	if li.PaymentType == "" {
		return apperr.Validation("line item paymentType is required")
	}
	if !li.Quantity.IsPositive() {
		return apperr.Validation("line item quantity must be positive")
	}
	if li.UnitPrice.IsNegative() {
		return apperr.Validation("line item unitPrice must not be negative")
	}
	return nil
}

func (li *LineItemInput) toModel() models.InvoiceLineItem {
	return models.InvoiceLineItem{
		Description: li.Description,
		PaymentType: li.PaymentType,
		Quantity:    li.Quantity,
		UnitPrice:   models.NewMoney(li.UnitPrice),
		Amount:      models.NewMoney(li.Quantity.Mul(li.UnitPrice).Round(2)),
		StartDate:   li.StartDate,
		EndDate:     li.EndDate,
	}
}

// CreateInvoiceInput - данные для создания счета.
type CreateInvoiceInput struct {
	OrgID       uint            `json:"-"`
	ResidentID  uint            `json:"residentId" binding:"required"`
	AdmissionID *uint           `json:"admissionId"`
	IssueDate   time.Time       `json:"issueDate"`
	DueDate     time.Time       `json:"dueDate"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	Notes       string          `json:"notes"`
	LineItems   []LineItemInput `json:"lineItems"`
}

// CreateInvoice создает черновик счета с хотя бы одной строкой.
// Номер выделяется атомарным счетчиком в той же транзакции, что и вставка.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	if in.OrgID == 0 {
		return nil, apperr.Validation("orgId is required")
	}
	if len(in.LineItems) == 0 {
		return nil, apperr.Validation("invoice requires at least one line item")
	}
	if in.TaxAmount.IsNegative() {
		return nil, apperr.Validation("taxAmount must not be negative")
	}
	for i := range in.LineItems {
		if err := in.LineItems[i].validate(); err != nil {
			return nil, err
		}
	}

	var resident models.Resident
	err := s.db.WithContext(ctx).Where("org_id = ?", in.OrgID).First(&resident, in.ResidentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("resident not found")
	}
	if err != nil {
		return nil, wrapStorage(err)
	}

	items := make([]models.InvoiceLineItem, 0, len(in.LineItems))
	subtotal := decimal.Zero
	for i := range in.LineItems {
		item := in.LineItems[i].toModel()
		subtotal = subtotal.Add(item.Amount.Decimal)
		items = append(items, item)
	}
	subtotal = subtotal.Round(2)
	tax := in.TaxAmount.Round(2)
	total := subtotal.Add(tax)

	issueDate := in.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}

	inv := &models.Invoice{
		OrgID:       in.OrgID,
		ResidentID:  in.ResidentID,
		AdmissionID: in.AdmissionID,
		Status:      models.InvoiceStatusDraft,
		IssueDate:   issueDate,
		DueDate:     in.DueDate,
		Subtotal:    models.NewMoney(subtotal),
		TaxAmount:   models.NewMoney(tax),
		Total:       models.NewMoney(total),
		AmountPaid:  models.NewMoney(decimal.Zero),
		AmountDue:   models.NewMoney(total),
		Notes:       in.Notes,
		LineItems:   items,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextInvoiceNumberTx(tx, in.OrgID)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		return wrapStorage(tx.Create(inv).Error)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return inv, nil
}

// GetInvoice возвращает счет со строками.
func (s *Service) GetInvoice(ctx context.Context, orgID, invoiceID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Preload("LineItems").
		Where("org_id = ?", orgID).First(&inv, invoiceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("invoice not found")
	}
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &inv, nil
}

// recalcTotalsTx пересчитывает subtotal/total/amountDue по живым строкам
// счета. Вызывается внутри транзакции, изменившей строки.
func recalcTotalsTx(tx *gorm.DB, inv *models.Invoice) error {
	var row struct {
		Total decimal.Decimal
	}
	if err := tx.Model(&models.InvoiceLineItem{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("invoice_id = ?", inv.ID).
		Scan(&row).Error; err != nil {
		return wrapStorage(err)
	}
	inv.Subtotal = models.NewMoney(row.Total.Round(2))
	inv.Total = models.NewMoney(inv.Subtotal.Add(inv.TaxAmount.Decimal))
	inv.AmountDue = models.NewMoney(inv.Total.Sub(inv.AmountPaid.Decimal))
	return wrapStorage(tx.Model(inv).Updates(map[string]interface{}{
		"subtotal":   inv.Subtotal,
		"total":      inv.Total,
		"amount_due": inv.AmountDue,
	}).Error)
}

// AddLineItem добавляет строку. Разрешено только для черновика; вставка
// строки и пересчет итогов происходят в одной транзакции.
func (s *Service) AddLineItem(ctx context.Context, orgID, invoiceID uint, item LineItemInput) (*models.Invoice, error) {
	if err := item.validate(); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := lockedInvoiceTx(tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != models.InvoiceStatusDraft {
			return apperr.InvalidState("line items can only be changed on a draft invoice")
		}
		row := item.toModel()
		row.InvoiceID = inv.ID
		if err := tx.Create(&row).Error; err != nil {
			return wrapStorage(err)
		}
		return recalcTotalsTx(tx, inv)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return s.GetInvoice(ctx, orgID, invoiceID)
}

// RemoveLineItem удаляет строку черновика и пересчитывает итоги.
// Черновик может временно остаться без строк, но отправить его в таком
// виде нельзя (см. Send).
func (s *Service) RemoveLineItem(ctx context.Context, orgID, invoiceID, lineItemID uint) (*models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := lockedInvoiceTx(tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != models.InvoiceStatusDraft {
			return apperr.InvalidState("line items can only be changed on a draft invoice")
		}
		res := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLineItem{}, lineItemID)
		if res.Error != nil {
			return wrapStorage(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("line item not found on this invoice")
		}
		return recalcTotalsTx(tx, inv)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return s.GetInvoice(ctx, orgID, invoiceID)
}

// Send переводит черновик в pending. Любой другой исходный статус - ошибка.
func (s *Service) Send(ctx context.Context, orgID, invoiceID uint) (*models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := lockedInvoiceTx(tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != models.InvoiceStatusDraft {
			return apperr.InvalidState("only draft invoices can be sent")
		}
		var items int64
		if err := tx.Model(&models.InvoiceLineItem{}).
			Where("invoice_id = ?", inv.ID).Count(&items).Error; err != nil {
			return wrapStorage(err)
		}
		if items == 0 {
			return apperr.Validation("invoice has no line items")
		}
		return wrapStorage(tx.Model(inv).Update("status", models.InvoiceStatusPending).Error)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return s.GetInvoice(ctx, orgID, invoiceID)
}

// Void аннулирует счет. Аннулирование терминально и необратимо.
// Счет с зачтенными платежами аннулировать нельзя - сначала возвраты
// (RecordRefund), чтобы леджер и счет не разошлись.
func (s *Service) Void(ctx context.Context, orgID, invoiceID uint) (*models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := lockedInvoiceTx(tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == models.InvoiceStatusVoid {
			return apperr.InvalidState("invoice is already void")
		}
		if inv.AmountPaid.IsPositive() {
			return apperr.InvalidState("invoice has recorded payments; refund them before voiding")
		}
		return wrapStorage(tx.Model(inv).Update("status", models.InvoiceStatusVoid).Error)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return s.GetInvoice(ctx, orgID, invoiceID)
}
