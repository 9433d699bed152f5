package billing

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recoveryos/internal/ledger"
	"recoveryos/models"
)

// testEnv - общая обвязка биллинговых тестов: in-memory БД с засеянной
// организацией, жителем, планом счетов и маппингами типов платежей.
type testEnv struct {
	db         *gorm.DB
	ledger     *ledger.Service
	billing    *Service
	orgID      uint
	residentID uint
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Один коннект: in-memory SQLite живет на соединении, а заодно
	// конкурентные транзакции в тестах выстраиваются в очередь.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.InvoiceSequence{},
		&models.LedgerAccount{},
		&models.LedgerEntry{},
		&models.LedgerIdempotencyKey{},
		&models.Resident{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.Payment{},
		&models.PaymentTypeMapping{},
		&models.LateFeeRule{},
	))

	lsvc := ledger.NewService(db, nil)
	bsvc := NewService(db, lsvc)

	ctx := context.Background()
	org := models.Organization{Name: "Serenity House", Slug: "SRH"}
	require.NoError(t, db.Create(&org).Error)
	require.NoError(t, lsvc.SeedDefaultChart(ctx, org.ID))
	require.NoError(t, bsvc.SeedDefaultMappings(ctx, org.ID))

	resident := models.Resident{OrgID: org.ID, FirstName: "John", LastName: "Doe"}
	require.NoError(t, db.Create(&resident).Error)

	return &testEnv{db: db, ledger: lsvc, billing: bsvc, orgID: org.ID, residentID: resident.ID}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// makeInvoice создает черновик с одной строкой на указанную сумму.
func (e *testEnv) makeInvoice(t *testing.T, paymentType string, amount string, dueDate time.Time) *models.Invoice {
	t.Helper()
	inv, err := e.billing.CreateInvoice(context.Background(), CreateInvoiceInput{
		OrgID:      e.orgID,
		ResidentID: e.residentID,
		DueDate:    dueDate,
		LineItems: []LineItemInput{
			{Description: "Monthly program fee", PaymentType: paymentType, Quantity: dec(t, "1"), UnitPrice: dec(t, amount)},
		},
	})
	require.NoError(t, err)
	return inv
}

func (e *testEnv) sentInvoice(t *testing.T, paymentType string, amount string, dueDate time.Time) *models.Invoice {
	t.Helper()
	inv := e.makeInvoice(t, paymentType, amount, dueDate)
	sent, err := e.billing.Send(context.Background(), e.orgID, inv.ID)
	require.NoError(t, err)
	return sent
}

func (e *testEnv) reloadInvoice(t *testing.T, id uint) *models.Invoice {
	t.Helper()
	inv, err := e.billing.GetInvoice(context.Background(), e.orgID, id)
	require.NoError(t, err)
	return inv
}
