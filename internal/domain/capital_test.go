package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(t *testing.T, cents int64) Money {
	t.Helper()
	m, err := NewMoney(cents, "USD")
	require.NoError(t, err)
	return m
}

func TestNewCapitalAccount(t *testing.T) {
	account := NewCapitalAccount(usd(t, DefaultSeedCents), "system")

	assert.Equal(t, DefaultSeedCents, account.InitialAmount.Amount())
	assert.Equal(t, DefaultSeedCents, account.CurrentAmount.Amount())
	assert.True(t, account.TotalSpent.IsZero())
	require.Len(t, account.Transactions, 1)
	assert.Equal(t, TxnInitial, account.Transactions[0].Type)
	assert.NoError(t, account.CheckInvariant())
}

func TestCapitalSpendAndRefund(t *testing.T) {
	// Seeded at $500,000; a $120,000 order leaves $380,000 and a cancel
	// brings it back
	account := NewCapitalAccount(usd(t, 50_000_000), "system")

	spend, err := account.Spend(usd(t, 12_000_000), "PO-1 submission", "PO-1", "user-im")
	require.NoError(t, err)
	assert.Equal(t, int64(-12_000_000), spend.AmountCents)
	assert.Equal(t, TxnPurchaseOrder, spend.Type)
	assert.Equal(t, int64(38_000_000), account.CurrentAmount.Amount())
	assert.Equal(t, int64(12_000_000), account.TotalSpent.Amount())
	assert.NoError(t, account.CheckInvariant())

	refund, err := account.Refund(usd(t, 12_000_000), "PO-1 cancelled", "PO-1", "user-mgr")
	require.NoError(t, err)
	assert.Equal(t, int64(12_000_000), refund.AmountCents)
	assert.Equal(t, TxnRefund, refund.Type)
	assert.Equal(t, int64(50_000_000), account.CurrentAmount.Amount())
	assert.True(t, account.TotalSpent.IsZero())
	assert.NoError(t, account.CheckInvariant())
}

func TestCapitalSpendInsufficient(t *testing.T) {
	account := NewCapitalAccount(usd(t, 10_000), "system")

	_, err := account.Spend(usd(t, 10_001), "too big", "PO-2", "user-im")
	assert.ErrorIs(t, err, ErrInsufficientCapital)

	// Balance and log untouched on failure
	assert.Equal(t, int64(10_000), account.CurrentAmount.Amount())
	assert.Len(t, account.Transactions, 1)
	assert.NoError(t, account.CheckInvariant())
}

func TestCapitalSpendExactBalance(t *testing.T) {
	account := NewCapitalAccount(usd(t, 10_000), "system")

	_, err := account.Spend(usd(t, 10_000), "all in", "PO-3", "user-im")
	require.NoError(t, err)
	assert.True(t, account.CurrentAmount.IsZero())
	assert.NoError(t, account.CheckInvariant())
}

func TestCapitalSpendRejectsNonPositive(t *testing.T) {
	account := NewCapitalAccount(usd(t, 10_000), "system")

	_, err := account.Spend(ZeroMoney("USD"), "nothing", "", "user-im")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCapitalAdjust(t *testing.T) {
	account := NewCapitalAccount(usd(t, 10_000), "system")

	t.Run("upward", func(t *testing.T) {
		txn, err := account.Adjust(usd(t, 15_000), "correction", "admin")
		require.NoError(t, err)
		assert.Equal(t, TxnAdjustment, txn.Type)
		assert.Equal(t, int64(5_000), txn.AmountCents)
		assert.Equal(t, int64(15_000), account.CurrentAmount.Amount())
		assert.NoError(t, account.CheckInvariant())
	})

	t.Run("downward", func(t *testing.T) {
		txn, err := account.Adjust(usd(t, 12_000), "correction", "admin")
		require.NoError(t, err)
		assert.Equal(t, int64(-3_000), txn.AmountCents)
		assert.NoError(t, account.CheckInvariant())
	})

	t.Run("no-op delta", func(t *testing.T) {
		_, err := account.Adjust(usd(t, 12_000), "same", "admin")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestCapitalInitializeOnce(t *testing.T) {
	account := NewCapitalAccount(ZeroMoney("USD"), "system")

	_, err := account.Initialize(usd(t, 25_000_000), "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), account.InitialAmount.Amount())
	assert.Equal(t, int64(25_000_000), account.CurrentAmount.Amount())
	assert.NoError(t, account.CheckInvariant())

	_, err = account.Initialize(usd(t, 1), "admin")
	assert.ErrorIs(t, err, ErrAccountInitialized)
}

func TestCapitalInvariantOverHistory(t *testing.T) {
	account := NewCapitalAccount(usd(t, 1_000_000), "system")

	ops := []func() error{
		func() error { _, err := account.Spend(usd(t, 300_000), "a", "PO-a", "u"); return err },
		func() error { _, err := account.Spend(usd(t, 200_000), "b", "PO-b", "u"); return err },
		func() error { _, err := account.Refund(usd(t, 200_000), "b back", "PO-b", "u"); return err },
		func() error { _, err := account.Adjust(usd(t, 900_000), "count", "admin"); return err },
		func() error { _, err := account.Spend(usd(t, 900_000), "c", "PO-c", "u"); return err },
	}

	for _, op := range ops {
		require.NoError(t, op())
		assert.NoError(t, account.CheckInvariant())
	}
	assert.True(t, account.CurrentAmount.IsZero())
}
