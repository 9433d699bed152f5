package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recoveryos/internal/apperr"
	"recoveryos/models"
)

// PostingInput описывает одну семантическую операцию, которую нужно
// провести по леджеру: получен платеж, начислена пеня, выдан возврат.
type PostingInput struct {
	OrgID             uint
	DebitAccountCode  string
	CreditAccountCode string
	AmountCents       int64 // сумма в центах, строго > 0
	Description       string
	ReferenceType     string
	ReferenceID       string
	CreatedBy         string
	TransactionDate   *time.Time // nil = сейчас
	IdempotencyKey    string     // пустой = без идемпотентности
}

func (in *PostingInput) validate() error {
	if in.OrgID == 0 {
		return apperr.Validation("orgId is required")
	}
	if in.DebitAccountCode == "" || in.CreditAccountCode == "" {
		return apperr.Validation("debit and credit account codes are required")
	}
	if in.AmountCents < 0 {
		return apperr.Validation("amount must not be negative")
	}
	if in.AmountCents == 0 {
		// Нулевая пара балансируется тривиально и не несет информации -
		// почти наверняка это ошибка вызывающего кода.
		return apperr.Validation("zero-amount postings are not allowed")
	}
	return nil
}

// PostTransaction проводит сбалансированную пару записей в собственной
// транзакции БД. Возвращает общий TransactionID пары.
func (s *Service) PostTransaction(ctx context.Context, in PostingInput) (string, error) {
	var txID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txID, err = s.PostInTx(tx, in)
		return err
	})
	if err != nil {
		return "", wrapStorage(err)
	}
	s.invalidateBalances(ctx, in.OrgID, in.DebitAccountCode, in.CreditAccountCode)
	return txID, nil
}

// PostInTx - то же, что PostTransaction, но внутри уже открытой транзакции
// вызывающего. Так биллинг атомарно объединяет проводку с обновлением счета
// (инвариант двойной записи не может быть виден нарушенным даже при
// падении между вставками). После коммита вызывающий сам сбрасывает кэш
// остатков через InvalidateBalances.
func (s *Service) PostInTx(tx *gorm.DB, in PostingInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}

	txID := uuid.NewString()

	// Идемпотентность: ключ занимаем до любых вставок. Если он уже занят,
	// операция уже выполнялась - возвращаем исходный TransactionID.
	if in.IdempotencyKey != "" {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.LedgerIdempotencyKey{
			OrgID:         in.OrgID,
			Key:           in.IdempotencyKey,
			TransactionID: txID,
		})
		if res.Error != nil {
			return "", wrapStorage(res.Error)
		}
		if res.RowsAffected == 0 {
			var existing models.LedgerIdempotencyKey
			if err := tx.Where("org_id = ? AND key = ?", in.OrgID, in.IdempotencyKey).
				First(&existing).Error; err != nil {
				return "", wrapStorage(err)
			}
			return existing.TransactionID, nil
		}
	}

	// Оба счета должны разрешиться ДО любой записи в журнал.
	debitAcc, err := resolveAccountTx(tx, in.OrgID, in.DebitAccountCode)
	if err != nil {
		return "", err
	}
	creditAcc, err := resolveAccountTx(tx, in.OrgID, in.CreditAccountCode)
	if err != nil {
		return "", err
	}

	amount := decimal.New(in.AmountCents, -2)
	when := time.Now().UTC()
	if in.TransactionDate != nil {
		when = *in.TransactionDate
	}

	pair := []models.LedgerEntry{
		{
			OrgID:           in.OrgID,
			AccountID:       debitAcc.ID,
			TransactionID:   txID,
			TransactionDate: when,
			DebitAmount:     models.NewMoney(amount),
			CreditAmount:    models.NewMoney(decimal.Zero),
			Description:     in.Description,
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			CreatedBy:       in.CreatedBy,
		},
		{
			OrgID:           in.OrgID,
			AccountID:       creditAcc.ID,
			TransactionID:   txID,
			TransactionDate: when,
			DebitAmount:     models.NewMoney(decimal.Zero),
			CreditAmount:    models.NewMoney(amount),
			Description:     in.Description,
			ReferenceType:   in.ReferenceType,
			ReferenceID:     in.ReferenceID,
			CreatedBy:       in.CreatedBy,
		},
	}
	if err := tx.Create(&pair).Error; err != nil {
		return "", wrapStorage(err)
	}
	return txID, nil
}

// InvalidateBalances - публичная обертка сброса кэша для вызывающих PostInTx.
func (s *Service) InvalidateBalances(ctx context.Context, orgID uint, codes ...string) {
	s.invalidateBalances(ctx, orgID, codes...)
}

// ReverseTransaction проводит равную и противоположную пару, ссылающуюся на
// исходную проводку. Историю не правим никогда - только сторнируем.
// Повторное сторнирование той же проводки отклоняется.
func (s *Service) ReverseTransaction(ctx context.Context, orgID uint, transactionID, createdBy string) (string, error) {
	var reversalID string
	var codes []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		reversalID, codes, err = s.ReverseInTx(tx, orgID, transactionID, createdBy)
		return err
	})
	if err != nil {
		return "", wrapStorage(err)
	}
	s.invalidateBalances(ctx, orgID, codes...)
	return reversalID, nil
}

// ReverseInTx - сторнирование внутри транзакции вызывающего (возврат платежа
// должен обновить и платеж, и леджер атомарно). Возвращает ID обратной
// проводки и коды затронутых счетов для сброса кэша после коммита.
func (s *Service) ReverseInTx(tx *gorm.DB, orgID uint, transactionID, createdBy string) (string, []string, error) {
	var originals []models.LedgerEntry
	if err := tx.Where("org_id = ? AND transaction_id = ?", orgID, transactionID).
		Order("id asc").Find(&originals).Error; err != nil {
		return "", nil, wrapStorage(err)
	}
	if len(originals) == 0 {
		return "", nil, apperr.NotFound("transaction not found: " + transactionID)
	}

	var reversed int64
	if err := tx.Model(&models.LedgerEntry{}).
		Where("org_id = ? AND reference_type = ? AND reference_id = ?",
			orgID, models.ReferenceReversal, transactionID).
		Count(&reversed).Error; err != nil {
		return "", nil, wrapStorage(err)
	}
	if reversed > 0 {
		return "", nil, apperr.InvalidState("transaction already reversed: " + transactionID)
	}

	reversalID := uuid.NewString()
	now := time.Now().UTC()
	mirrored := make([]models.LedgerEntry, 0, len(originals))
	accountIDs := make([]uint, 0, len(originals))
	for _, e := range originals {
		mirrored = append(mirrored, models.LedgerEntry{
			OrgID:           e.OrgID,
			AccountID:       e.AccountID,
			TransactionID:   reversalID,
			TransactionDate: now,
			DebitAmount:     e.CreditAmount,
			CreditAmount:    e.DebitAmount,
			Description:     "Reversal: " + e.Description,
			ReferenceType:   models.ReferenceReversal,
			ReferenceID:     transactionID,
			CreatedBy:       createdBy,
		})
		accountIDs = append(accountIDs, e.AccountID)
	}
	if err := tx.Create(&mirrored).Error; err != nil {
		return "", nil, wrapStorage(err)
	}

	var accounts []models.LedgerAccount
	if err := tx.Where("id IN ?", accountIDs).Find(&accounts).Error; err != nil {
		return "", nil, wrapStorage(err)
	}
	codes := make([]string, 0, len(accounts))
	for _, a := range accounts {
		codes = append(codes, a.Code)
	}
	return reversalID, codes, nil
}
