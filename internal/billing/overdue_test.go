package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoveryos/models"
)

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	cases := []struct {
		name    string
		status  string
		dueDate time.Time
		want    bool
	}{
		{"pending past due", models.InvoiceStatusPending, yesterday, true},
		{"partially paid past due", models.InvoiceStatusPartiallyPaid, yesterday, true},
		{"pending not yet due", models.InvoiceStatusPending, tomorrow, false},
		{"draft past due", models.InvoiceStatusDraft, yesterday, false},
		{"paid past due", models.InvoiceStatusPaid, yesterday, false},
		{"void past due", models.InvoiceStatusVoid, yesterday, false},
		{"already overdue", models.InvoiceStatusOverdue, yesterday, false},
		{"no due date", models.InvoiceStatusPending, time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &models.Invoice{Status: tc.status, DueDate: tc.dueDate}
			assert.Equal(t, tc.want, IsOverdue(inv, now))
		})
	}
}

func TestMarkOverdueInvoices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	late := env.sentInvoice(t, "program_fee", "800.00", now.AddDate(0, 0, -3))
	onTime := env.sentInvoice(t, "program_fee", "500.00", now.AddDate(0, 0, 7))

	flipped, err := env.billing.MarkOverdueInvoices(ctx, env.orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	assert.Equal(t, models.InvoiceStatusOverdue, env.reloadInvoice(t, late.ID).Status)
	assert.Equal(t, models.InvoiceStatusPending, env.reloadInvoice(t, onTime.ID).Status)

	// Без правила пени журнал не трогается.
	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(0), entries)

	// Повторный прогон ничего не находит.
	flipped, err = env.billing.MarkOverdueInvoices(ctx, env.orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 0, flipped)
}

func TestMarkOverdueAppliesLateFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, env.db.Create(&models.LateFeeRule{
		OrgID:   env.orgID,
		Formula: "amount_due * 0.05",
		Enabled: true,
	}).Error)

	inv := env.sentInvoice(t, "program_fee", "800.00", now.AddDate(0, 0, -3))

	flipped, err := env.billing.MarkOverdueInvoices(ctx, env.orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)
	assert.Equal(t, models.InvoiceStatusOverdue, env.reloadInvoice(t, inv.ID).Status)

	// Пеня 5% от долга: дебет AR, кредит Late Fee Income.
	ar, err := env.ledger.GetNormalBalance(ctx, env.orgID, "1100")
	require.NoError(t, err)
	assert.Equal(t, "40.00", ar.StringFixed(2))

	feeIncome, err := env.ledger.GetNormalBalance(ctx, env.orgID, "4200")
	require.NoError(t, err)
	assert.Equal(t, "40.00", feeIncome.StringFixed(2))

	// Повторный прогон не начисляет пеню второй раз.
	_, err = env.billing.MarkOverdueInvoices(ctx, env.orgID, now)
	require.NoError(t, err)
	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(2), entries)
}

func TestLateFeeRespectsGracePeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, env.db.Create(&models.LateFeeRule{
		OrgID:     env.orgID,
		Formula:   "25.0",
		GraceDays: 5,
		Enabled:   true,
	}).Error)

	inv := env.sentInvoice(t, "program_fee", "800.00", now.AddDate(0, 0, -2))

	flipped, err := env.billing.MarkOverdueInvoices(ctx, env.orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)
	assert.Equal(t, models.InvoiceStatusOverdue, env.reloadInvoice(t, inv.ID).Status)

	// Счет просрочен, но льготный период еще не истек: пени нет.
	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(0), entries)
}

func TestLateFeeSkipsBrokenFormula(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, env.db.Create(&models.LateFeeRule{
		OrgID:   env.orgID,
		Formula: "amount_due * ((",
		Enabled: true,
	}).Error)

	env.sentInvoice(t, "program_fee", "800.00", now.AddDate(0, 0, -3))

	// Кривая формула не должна ронять задачу: счет переводится,
	// начисление пропускается.
	flipped, err := env.billing.MarkOverdueInvoices(ctx, env.orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	var entries int64
	require.NoError(t, env.db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(0), entries)
}
