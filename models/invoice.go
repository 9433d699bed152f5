package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы счета. Переходы: draft -> pending -> paid/partially_paid/overdue,
// void терминален. written_off выставляется вручную бухгалтером.
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusPending       = "pending"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusOverdue       = "overdue"
	InvoiceStatusVoid          = "void"
	InvoiceStatusWrittenOff    = "written_off"
)

// Invoice - счет резиденту. Производные поля (Subtotal, Total, AmountPaid,
// AmountDue) всегда пересчитываются кодом биллинга в одной транзакции
// с изменением, которое их затронуло; руками их не трогать.
// Инварианты: Total = Subtotal + TaxAmount, AmountDue = Total - AmountPaid.
type Invoice struct {
	gorm.Model
	OrgID         uint              `json:"orgId" gorm:"uniqueIndex:idx_org_invoice_number;index;not null"`
	ResidentID    uint              `json:"residentId" gorm:"index;not null"`
	AdmissionID   *uint             `json:"admissionId"`
	InvoiceNumber string            `json:"invoiceNumber" gorm:"uniqueIndex:idx_org_invoice_number;not null"`
	Status        string            `json:"status" gorm:"default:'draft';index"`
	IssueDate     time.Time         `json:"issueDate"`
	DueDate       time.Time         `json:"dueDate"`
	Subtotal      Money             `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	TaxAmount     Money             `json:"taxAmount" gorm:"type:numeric(12,2);not null"`
	Total         Money             `json:"total" gorm:"type:numeric(12,2);not null"`
	AmountPaid    Money             `json:"amountPaid" gorm:"type:numeric(12,2);not null"`
	AmountDue     Money             `json:"amountDue" gorm:"type:numeric(12,2);not null"`
	Notes         string            `json:"notes"`
	LineItems     []InvoiceLineItem `json:"lineItems" gorm:"constraint:OnDelete:CASCADE"`
}

// InvoiceLineItem - строка счета. Живет только вместе со счетом
// (каскадное удаление). Amount = Quantity * UnitPrice, округленное до центов.
type InvoiceLineItem struct {
	gorm.Model
	InvoiceID   uint            `json:"invoiceId" gorm:"index;not null"`
	Description string          `json:"description" gorm:"not null"`
	PaymentType string          `json:"paymentType" gorm:"not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(12,2);not null"`
	UnitPrice   Money           `json:"unitPrice" gorm:"type:numeric(12,2);not null"`
	Amount      Money           `json:"amount" gorm:"type:numeric(12,2);not null"`
	StartDate   *time.Time      `json:"startDate"`
	EndDate     *time.Time      `json:"endDate"`
}
