package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
		wantErr  error
	}{
		{"valid amount", 10000, "USD", nil},
		{"zero amount", 0, "USD", nil},
		{"negative amount", -1, "USD", ErrNegativeMoney},
		{"empty currency", 100, "", ErrInvalidCurrency},
		{"short currency", 100, "US", ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoney(tt.amount, tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, m.Amount())
			assert.Equal(t, tt.currency, m.Currency())
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a, _ := NewMoney(10000, "USD")
	b, _ := NewMoney(2500, "USD")
	eur, _ := NewMoney(100, "EUR")

	t.Run("add", func(t *testing.T) {
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.Equal(t, int64(12500), sum.Amount())
	})

	t.Run("add currency mismatch", func(t *testing.T) {
		_, err := a.Add(eur)
		assert.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("subtract", func(t *testing.T) {
		diff, err := a.Subtract(b)
		require.NoError(t, err)
		assert.Equal(t, int64(7500), diff.Amount())
	})

	t.Run("subtract below zero", func(t *testing.T) {
		_, err := b.Subtract(a)
		assert.ErrorIs(t, err, ErrNegativeMoney)
	})

	t.Run("multiply", func(t *testing.T) {
		total, err := b.Multiply(4)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), total.Amount())
	})

	t.Run("multiply negative", func(t *testing.T) {
		_, err := b.Multiply(-1)
		assert.ErrorIs(t, err, ErrInvalidMultiplier)
	})
}

func TestMoneyComparison(t *testing.T) {
	a, _ := NewMoney(500, "USD")
	b, _ := NewMoney(300, "USD")

	gt, err := a.GreaterThan(b)
	require.NoError(t, err)
	assert.True(t, gt)

	lt, err := a.LessThan(b)
	require.NoError(t, err)
	assert.False(t, lt)

	assert.True(t, a.Equals(a))
	assert.False(t, a.Equals(b))
	assert.True(t, ZeroMoney("USD").IsZero())
	assert.True(t, a.IsPositive())
}

func TestMoneyString(t *testing.T) {
	m, _ := NewMoney(123456, "USD")
	assert.Equal(t, "1234.56 USD", m.String())
}
