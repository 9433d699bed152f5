package ledger

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoveryos/models"
)

func newCachedTestService(t *testing.T) (*Service, uint, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := newTestDB(t)
	svc := NewService(db, rdb)

	org := models.Organization{Name: "Serenity House", Slug: "SRH"}
	require.NoError(t, db.Create(&org).Error)
	require.NoError(t, svc.SeedDefaultChart(context.Background(), org.ID))
	return svc, org.ID, mr
}

func TestGetBalanceReadsCache(t *testing.T) {
	svc, orgID, mr := newCachedTestService(t)
	ctx := context.Background()

	// Значение-маркер: из записей леджера такое не досчитается.
	require.NoError(t, mr.Set(balanceCacheKey(orgID, "1000", 0), "42.00"))

	got, err := svc.GetBalance(ctx, orgID, "1000")
	require.NoError(t, err)
	assert.Equal(t, "42.00", got.StringFixed(2))
}

func TestPostTransactionBumpsBalanceVersion(t *testing.T) {
	svc, orgID, mr := newCachedTestService(t)
	ctx := context.Background()

	post := func() {
		t.Helper()
		_, err := svc.PostTransaction(ctx, PostingInput{
			OrgID:             orgID,
			DebitAccountCode:  "1100",
			CreditAccountCode: "1000",
			AmountCents:       10000,
			Description:       "Payment received",
			ReferenceType:     models.ReferenceManual,
		})
		require.NoError(t, err)
	}

	post()
	for _, code := range []string{"1000", "1100"} {
		ver, err := mr.Get(balanceVersionKey(orgID, code))
		require.NoError(t, err)
		assert.Equal(t, "1", ver)
	}

	got, err := svc.GetBalance(ctx, orgID, "1000")
	require.NoError(t, err)
	assert.Equal(t, "-100.00", got.StringFixed(2))

	cached, err := mr.Get(balanceCacheKey(orgID, "1000", 1))
	require.NoError(t, err)
	assert.Equal(t, "-100.00", cached)

	post()

	// Опоздавший читатель, досчитавший SUM до коммита второй проводки,
	// пишет устаревший остаток - но уже под прежней версией ключа.
	require.NoError(t, mr.Set(balanceCacheKey(orgID, "1000", 1), "-100.00"))

	got, err = svc.GetBalance(ctx, orgID, "1000")
	require.NoError(t, err)
	assert.Equal(t, "-200.00", got.StringFixed(2))

	ver, err := mr.Get(balanceVersionKey(orgID, "1000"))
	require.NoError(t, err)
	assert.Equal(t, "2", ver)
}
