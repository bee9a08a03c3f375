package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoelite-platform/procurement-service/internal/domain"
)

func newCapitalService(seedCents int64) (*CapitalService, *fakeCapitalRepo, *fakeAuditRepo) {
	capital := newFakeCapitalRepo(seedCents)
	auditRepo := &fakeAuditRepo{}
	recorder := NewAuditRecorder(auditRepo, testLogger(), testMetrics())
	return NewCapitalService(capital, recorder, testLogger(), testMetrics()), capital, auditRepo
}

func TestCapitalGet(t *testing.T) {
	service, _, _ := newCapitalService(domain.DefaultSeedCents)

	account, err := service.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSeedCents, account.CurrentAmount.Amount())
	assert.Equal(t, domain.DefaultSeedCents, account.InitialAmount.Amount())
}

func TestCapitalSpendAndRefund(t *testing.T) {
	service, _, _ := newCapitalService(domain.DefaultSeedCents)
	ctx := context.Background()

	account, txn, err := service.Spend(ctx, 12_000_000, "tooling order", "PO-1", "buyer")
	require.NoError(t, err)
	assert.Equal(t, domain.TxnPurchaseOrder, txn.Type)
	assert.Equal(t, int64(-12_000_000), txn.AmountCents)
	assert.Equal(t, int64(38_000_000), account.CurrentAmount.Amount())

	account, _, err = service.Refund(ctx, 12_000_000, "order cancelled", "PO-1", "buyer")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSeedCents, account.CurrentAmount.Amount())
	assert.Equal(t, int64(0), account.TotalSpent.Amount())
	require.NoError(t, account.CheckInvariant())
}

func TestCapitalSpendInsufficient(t *testing.T) {
	service, capital, _ := newCapitalService(10_000)
	ctx := context.Background()

	_, _, err := service.Spend(ctx, 20_000, "too big", "PO-9", "buyer")
	require.ErrorIs(t, err, domain.ErrInsufficientCapital)

	account, err := capital.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), account.CurrentAmount.Amount())
}

func TestCapitalAdjust(t *testing.T) {
	service, _, _ := newCapitalService(domain.DefaultSeedCents)
	ctx := context.Background()

	account, txn, err := service.Adjust(ctx, AdjustCapitalCommand{
		NewAmountCents: 60_000_000,
		Description:    "quarterly top-up",
	}, "cfo")
	require.NoError(t, err)
	assert.Equal(t, domain.TxnAdjustment, txn.Type)
	assert.Equal(t, int64(10_000_000), txn.AmountCents)
	assert.Equal(t, int64(60_000_000), account.CurrentAmount.Amount())
	require.NoError(t, account.CheckInvariant())
}

func TestCapitalAdjustNoChange(t *testing.T) {
	service, _, _ := newCapitalService(domain.DefaultSeedCents)

	_, _, err := service.Adjust(context.Background(), AdjustCapitalCommand{
		NewAmountCents: domain.DefaultSeedCents,
	}, "cfo")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCapitalInitializeOnlyOnce(t *testing.T) {
	service, _, _ := newCapitalService(0)
	ctx := context.Background()

	account, txn, err := service.Initialize(ctx, InitializeCapitalCommand{AmountCents: 25_000_000}, "cfo")
	require.NoError(t, err)
	assert.Equal(t, domain.TxnInitial, txn.Type)
	assert.Equal(t, int64(25_000_000), account.InitialAmount.Amount())
	assert.Equal(t, int64(25_000_000), account.CurrentAmount.Amount())

	_, _, err = service.Initialize(ctx, InitializeCapitalCommand{AmountCents: 30_000_000}, "cfo")
	assert.ErrorIs(t, err, domain.ErrAccountInitialized)
}

func TestCapitalTransactionsFilter(t *testing.T) {
	service, _, _ := newCapitalService(domain.DefaultSeedCents)
	ctx := context.Background()

	_, _, err := service.Spend(ctx, 100, "a", "PO-1", "buyer")
	require.NoError(t, err)
	_, _, err = service.Spend(ctx, 200, "b", "PO-2", "buyer")
	require.NoError(t, err)
	_, _, err = service.Refund(ctx, 100, "a back", "PO-1", "buyer")
	require.NoError(t, err)

	txns, total, err := service.Transactions(ctx, domain.TransactionFilter{Type: domain.TxnPurchaseOrder}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, txn := range txns {
		assert.Equal(t, domain.TxnPurchaseOrder, txn.Type)
	}

	_, total, err = service.Transactions(ctx, domain.TransactionFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total) // initial + two spends + one refund
}

func TestCapitalAuditTrail(t *testing.T) {
	service, _, auditRepo := newCapitalService(domain.DefaultSeedCents)

	_, _, err := service.Spend(context.Background(), 500, "small order", "PO-3", "buyer")
	require.NoError(t, err)

	entries, total, err := auditRepo.Find(context.Background(), domain.AuditFilter{EntityType: domain.EntityCapitalAccount}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "buyer", entries[0].Actor)
}
