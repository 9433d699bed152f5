package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"recoveryos/internal/ledger"
	"recoveryos/models"
)

// IsOverdue - чистый предикат просрочки: счет ждет оплату (полностью или
// частично) и срок оплаты уже прошел. Никаких побочных эффектов - плановая
// задача вызывает его и сама решает, что делать дальше.
func IsOverdue(inv *models.Invoice, now time.Time) bool {
	if inv.Status != models.InvoiceStatusPending && inv.Status != models.InvoiceStatusPartiallyPaid {
		return false
	}
	return !inv.DueDate.IsZero() && inv.DueDate.Before(now)
}

// MarkOverdueInvoices - точка входа плановой задачи: переводит просроченные
// счета организации в overdue и, если у организации включено правило пени,
// начисляет ее проводкой по леджеру. Возвращает число переведенных счетов.
func (s *Service) MarkOverdueInvoices(ctx context.Context, orgID uint, now time.Time) (int, error) {
	var candidates []models.Invoice
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND status IN ? AND due_date < ?",
			orgID, []string{models.InvoiceStatusPending, models.InvoiceStatusPartiallyPaid}, now).
		Find(&candidates).Error; err != nil {
		return 0, wrapStorage(err)
	}

	var rule models.LateFeeRule
	hasRule := s.db.WithContext(ctx).
		Where("org_id = ? AND enabled = ?", orgID, true).
		First(&rule).Error == nil

	flipped := 0
	for i := range candidates {
		var affected []string
		didFlip := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, err := lockedInvoiceTx(tx, orgID, candidates[i].ID)
			if err != nil {
				return err
			}
			// Перечитываем под блокировкой: платеж мог успеть закрыть счет.
			if !IsOverdue(inv, now) {
				return nil
			}
			if err := tx.Model(inv).Update("status", models.InvoiceStatusOverdue).Error; err != nil {
				return wrapStorage(err)
			}
			didFlip = true

			if !hasRule {
				return nil
			}
			codes, err := s.applyLateFeeTx(tx, inv, &rule, now)
			if err != nil {
				return err
			}
			affected = codes
			return nil
		})
		if err != nil {
			return flipped, wrapStorage(err)
		}
		if didFlip {
			flipped++
		}
		s.ledger.InvalidateBalances(ctx, orgID, affected...)
	}
	return flipped, nil
}

// applyLateFeeTx вычисляет пеню по формуле организации и проводит ее парой
// дебет AR / кредит Late Fee Income. Ключ идемпотентности на счет гарантирует,
// что повторный прогон задачи не начислит пеню второй раз.
func (s *Service) applyLateFeeTx(tx *gorm.DB, inv *models.Invoice, rule *models.LateFeeRule, now time.Time) ([]string, error) {
	daysOverdue := int(now.Sub(inv.DueDate).Hours() / 24)
	if daysOverdue < rule.GraceDays {
		return nil, nil
	}

	expr, err := govaluate.NewEvaluableExpression(rule.Formula)
	if err != nil {
		slog.Warn("Ошибка в формуле пени, начисление пропущено", "org_id", inv.OrgID, "formula", rule.Formula, "error", err)
		return nil, nil
	}
	params := map[string]interface{}{
		"amount_due":   inv.AmountDue.InexactFloat64(),
		"total":        inv.Total.InexactFloat64(),
		"days_overdue": float64(daysOverdue),
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		slog.Warn("Не удалось вычислить формулу пени", "org_id", inv.OrgID, "formula", rule.Formula, "error", err)
		return nil, nil
	}
	feeFloat, ok := result.(float64)
	if !ok || feeFloat <= 0 {
		return nil, nil
	}
	fee := decimal.NewFromFloat(feeFloat).Round(2)
	cents := fee.Mul(decimal.NewFromInt(100)).IntPart()
	if cents <= 0 {
		return nil, nil
	}

	if _, err := s.ledger.PostInTx(tx, ledger.PostingInput{
		OrgID:             inv.OrgID,
		DebitAccountCode:  "1100",
		CreditAccountCode: "4200",
		AmountCents:       cents,
		Description:       fmt.Sprintf("Late fee on %s", inv.InvoiceNumber),
		ReferenceType:     models.ReferenceLateFee,
		ReferenceID:       fmt.Sprintf("%d", inv.ID),
		CreatedBy:         "system",
		IdempotencyKey:    fmt.Sprintf("latefee:%d", inv.ID),
	}); err != nil {
		return nil, err
	}
	return []string{"1100", "4200"}, nil
}
