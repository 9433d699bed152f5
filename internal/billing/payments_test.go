package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoveryos/internal/apperr"
	"recoveryos/models"
)

func TestFullPaymentMarksInvoicePaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.sentInvoice(t, "program_fee", "800.00", time.Now().AddDate(0, 0, 7))
	invID := inv.ID

	payment, err := env.billing.RecordPayment(ctx, PaymentInput{
		OrgID:       env.orgID,
		InvoiceID:   &invID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "800.00"),
		PaymentType: "program_fee",
		Status:      models.PaymentStatusSucceeded,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, payment.Status)

	reloaded := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, models.InvoiceStatusPaid, reloaded.Status)
	assert.Equal(t, "800.00", reloaded.AmountPaid.StringFixed(2))
	assert.Equal(t, "0.00", reloaded.AmountDue.StringFixed(2))

	// Платеж program_fee проводится как дебет кассы / кредит дохода.
	cash, err := env.ledger.GetNormalBalance(ctx, env.orgID, "1000")
	require.NoError(t, err)
	assert.Equal(t, "800.00", cash.StringFixed(2))

	fees, err := env.ledger.GetNormalBalance(ctx, env.orgID, "4000")
	require.NoError(t, err)
	assert.Equal(t, "800.00", fees.StringFixed(2))
}

func TestPartialPaymentMarksInvoicePartiallyPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.sentInvoice(t, "program_fee", "800.00", time.Now().AddDate(0, 0, 7))
	invID := inv.ID

	_, err := env.billing.RecordPayment(ctx, PaymentInput{
		OrgID:       env.orgID,
		InvoiceID:   &invID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "400.00"),
		PaymentType: "program_fee",
		Status:      models.PaymentStatusSucceeded,
	})
	require.NoError(t, err)

	reloaded := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, reloaded.Status)
	assert.Equal(t, "400.00", reloaded.AmountPaid.StringFixed(2))
	assert.Equal(t, "400.00", reloaded.AmountDue.StringFixed(2))

	// Второй платеж закрывает остаток.
	_, err = env.billing.RecordPayment(ctx, PaymentInput{
		OrgID:       env.orgID,
		InvoiceID:   &invID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "400.00"),
		PaymentType: "program_fee",
		Status:      models.PaymentStatusSucceeded,
	})
	require.NoError(t, err)

	reloaded = env.reloadInvoice(t, inv.ID)
	assert.Equal(t, models.InvoiceStatusPaid, reloaded.Status)
	assert.Equal(t, "0.00", reloaded.AmountDue.StringFixed(2))
}

func TestPaymentAgainstDraftRollsBackEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.makeInvoice(t, "program_fee", "800.00", time.Now())
	invID := inv.ID

	_, err := env.billing.RecordPayment(ctx, PaymentInput{
		OrgID:       env.orgID,
		InvoiceID:   &invID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "800.00"),
		PaymentType: "program_fee",
		Status:      models.PaymentStatusSucceeded,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	// Откатилось все: ни платежа, ни записей в журнале.
	var payments, entries int64
	require.NoError(t, env.db.Model(&models.Payment{}).Count(&payments).Error)
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(0), payments)
	assert.Equal(t, int64(0), entries)
}

func TestPaymentWithUnknownTypeRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.billing.RecordPayment(context.Background(), PaymentInput{
		OrgID:       env.orgID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "50.00"),
		PaymentType: "vending_machine",
		Status:      models.PaymentStatusSucceeded,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestMarkPaymentSucceededSettlesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.sentInvoice(t, "rent", "500.00", time.Now().AddDate(0, 0, 7))
	invID := inv.ID

	payment, err := env.billing.RecordPayment(ctx, PaymentInput{
		OrgID:       env.orgID,
		InvoiceID:   &invID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "500.00"),
		PaymentType: "rent",
		Status:      models.PaymentStatusPending,
	})
	require.NoError(t, err)

	// Пока платеж pending, счет и леджер не трогаются.
	reloaded := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, models.InvoiceStatusPending, reloaded.Status)

	settled, err := env.billing.MarkPaymentSucceeded(ctx, env.orgID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, settled.Status)

	reloaded = env.reloadInvoice(t, inv.ID)
	assert.Equal(t, models.InvoiceStatusPaid, reloaded.Status)

	rent, err := env.ledger.GetNormalBalance(ctx, env.orgID, "4100")
	require.NoError(t, err)
	assert.Equal(t, "500.00", rent.StringFixed(2))

	// Повторная доставка колбэка отклоняется, проводка не дублируется.
	_, err = env.billing.MarkPaymentSucceeded(ctx, env.orgID, payment.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(2), entries)
}

func TestRefundReversesLedgerAndReopensInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := env.sentInvoice(t, "program_fee", "800.00", time.Now().AddDate(0, 0, 7))
	invID := inv.ID

	payment, err := env.billing.RecordPayment(ctx, PaymentInput{
		OrgID:       env.orgID,
		InvoiceID:   &invID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "800.00"),
		PaymentType: "program_fee",
		Status:      models.PaymentStatusSucceeded,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusPaid, env.reloadInvoice(t, inv.ID).Status)

	refunded, err := env.billing.RecordRefund(ctx, env.orgID, payment.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)

	// Счет снова ждет оплаты, долг восстановлен.
	reloaded := env.reloadInvoice(t, inv.ID)
	assert.Equal(t, models.InvoiceStatusPending, reloaded.Status)
	assert.Equal(t, "0.00", reloaded.AmountPaid.StringFixed(2))
	assert.Equal(t, "800.00", reloaded.AmountDue.StringFixed(2))

	// Леджер в нуле: исходная проводка сторнирована, не удалена.
	for _, code := range []string{"1000", "4000"} {
		balance, err := env.ledger.GetBalance(ctx, env.orgID, code)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), "account %s should be zero, got %s", code, balance)
	}
	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(4), entries)

	// Возврат возврата невозможен.
	_, err = env.billing.RecordRefund(ctx, env.orgID, payment.ID, "tester")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
}

func TestStandalonePaymentWithoutInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Депозит без счета: только проводка, никакого пересчета.
	payment, err := env.billing.RecordPayment(ctx, PaymentInput{
		OrgID:       env.orgID,
		ResidentID:  env.residentID,
		Amount:      dec(t, "300.00"),
		PaymentType: "deposit",
		Status:      models.PaymentStatusSucceeded,
	})
	require.NoError(t, err)
	assert.Nil(t, payment.InvoiceID)

	deposits, err := env.ledger.GetNormalBalance(ctx, env.orgID, "2000")
	require.NoError(t, err)
	assert.Equal(t, "300.00", deposits.StringFixed(2))
}
