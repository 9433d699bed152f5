package models

import (
	"time"

	"gorm.io/gorm"
)

// Типы ссылок проводки на породившее ее событие.
const (
	ReferencePayment  = "payment"
	ReferenceLateFee  = "late_fee"
	ReferenceReversal = "reversal"
	ReferenceManual   = "manual"
)

// LedgerEntry - одна сторона (дебет или кредит) сбалансированной проводки.
// Записи с одинаковым TransactionID образуют пару и в сумме дают
// SUM(debit) == SUM(credit). История не редактируется и не удаляется:
// исправления делаются обратными проводками (ReferenceReversal).
type LedgerEntry struct {
	gorm.Model
	OrgID           uint      `json:"orgId" gorm:"index;not null"`
	AccountID       uint      `json:"accountId" gorm:"index;not null"`
	TransactionID   string    `json:"transactionId" gorm:"index;not null"`
	TransactionDate time.Time `json:"transactionDate" gorm:"not null"`
	DebitAmount     Money     `json:"debitAmount" gorm:"type:numeric(12,2);not null"`
	CreditAmount    Money     `json:"creditAmount" gorm:"type:numeric(12,2);not null"`
	Description     string    `json:"description"`
	ReferenceType   string    `json:"referenceType" gorm:"index"`
	ReferenceID     string    `json:"referenceId" gorm:"index"`
	CreatedBy       string    `json:"createdBy"`
}

// LedgerIdempotencyKey фиксирует уже выполненные проводки по ключу
// идемпотентности. Повторный вызов с тем же ключом возвращает исходный
// TransactionID вместо создания второй пары записей.
type LedgerIdempotencyKey struct {
	gorm.Model
	OrgID         uint   `json:"orgId" gorm:"uniqueIndex:idx_org_idem_key;not null"`
	Key           string `json:"key" gorm:"uniqueIndex:idx_org_idem_key;not null"`
	TransactionID string `json:"transactionId" gorm:"not null"`
}
