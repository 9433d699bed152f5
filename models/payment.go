package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы платежа, как их отдает платежный провайдер.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusSucceeded  = "succeeded"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusDisputed   = "disputed"
)

// Payment - движение денег, обычно привязанное к одному счету.
// Связь с проводками леджера - по соглашению (reference_type='payment',
// reference_id=ID платежа), внешнего ключа нет.
type Payment struct {
	gorm.Model
	OrgID             uint      `json:"orgId" gorm:"index;not null"`
	InvoiceID         *uint     `json:"invoiceId" gorm:"index"`
	ResidentID        uint      `json:"residentId" gorm:"index;not null"`
	Amount            Money     `json:"amount" gorm:"type:numeric(12,2);not null"`
	PaymentMethodType string    `json:"paymentMethodType"`
	PaymentType       string    `json:"paymentType" gorm:"not null"` // категория начисления: program_fee, rent, deposit...
	Status            string    `json:"status" gorm:"default:'pending';index"`
	PaymentDate       time.Time `json:"paymentDate"`
	ExternalRef       string    `json:"externalRef"` // идентификатор у платежного провайдера
}

// PaymentTypeMapping - типизированная таблица соответствия категории платежа
// паре счетов леджера. Раньше такие вещи жили в JSON-настройках, теперь
// это обычные строки с понятной схемой.
type PaymentTypeMapping struct {
	gorm.Model
	OrgID             uint   `json:"orgId" gorm:"uniqueIndex:idx_org_payment_type;not null"`
	PaymentType       string `json:"paymentType" gorm:"uniqueIndex:idx_org_payment_type;not null"`
	DebitAccountCode  string `json:"debitAccountCode" gorm:"not null"`
	CreditAccountCode string `json:"creditAccountCode" gorm:"not null"`
}
