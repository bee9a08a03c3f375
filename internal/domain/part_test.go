package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPart(t *testing.T) {
	stock := StockLevel{OnHand: 20, Reserved: 5, MinLevel: 5, MaxLevel: 100, ReorderLevel: 10}

	part, err := NewPart("BRK-PAD-001", "Brake Pad Set", "brakes", 4500, stock)
	require.NoError(t, err)
	assert.True(t, part.IsActive)
	assert.Equal(t, 15, part.Available())
	assert.False(t, part.CreatedAt.IsZero())
}

func TestStockLevelValidate(t *testing.T) {
	tests := []struct {
		name    string
		stock   StockLevel
		wantErr bool
	}{
		{"valid", StockLevel{OnHand: 10, Reserved: 2, MinLevel: 1, MaxLevel: 50, ReorderLevel: 5}, false},
		{"no max level", StockLevel{OnHand: 10, Reserved: 0, ReorderLevel: 5}, false},
		{"negative on hand", StockLevel{OnHand: -1}, true},
		{"reserved exceeds on hand", StockLevel{OnHand: 5, Reserved: 6}, true},
		{"min above max", StockLevel{OnHand: 5, MinLevel: 20, MaxLevel: 10}, true},
		{"on hand above max", StockLevel{OnHand: 60, MaxLevel: 50}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stock.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPartIsLowStock(t *testing.T) {
	tests := []struct {
		name  string
		stock StockLevel
		low   bool
	}{
		{"available below reorder level", StockLevel{OnHand: 8, Reserved: 3, ReorderLevel: 10}, true},
		{"available equals reorder level", StockLevel{OnHand: 12, Reserved: 2, ReorderLevel: 10}, true},
		{"available above reorder level", StockLevel{OnHand: 20, Reserved: 5, ReorderLevel: 10}, false},
		{"reorder level zero never low", StockLevel{OnHand: 0, Reserved: 0, ReorderLevel: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := &Part{Stock: tt.stock, IsActive: true}
			assert.Equal(t, tt.low, part.IsLowStock())
		})
	}
}

func TestPartRecoversFromLowStock(t *testing.T) {
	part := &Part{Stock: StockLevel{OnHand: 5, Reserved: 0, ReorderLevel: 10}, IsActive: true}
	require.True(t, part.IsLowStock())

	require.NoError(t, part.ReceiveStock(10, ""))
	assert.Equal(t, 15, part.Available())
	assert.False(t, part.IsLowStock())
}

func TestPartReceiveStock(t *testing.T) {
	part := &Part{Stock: StockLevel{OnHand: 10, MaxLevel: 20}, IsActive: true}

	assert.ErrorIs(t, part.ReceiveStock(0, ""), ErrInvalidQuantity)
	assert.ErrorIs(t, part.ReceiveStock(11, ""), ErrInvalidStockLevels)

	require.NoError(t, part.ReceiveStock(10, "PO-1"))
	assert.Equal(t, 20, part.Stock.OnHand)

	part.Deactivate()
	assert.ErrorIs(t, part.ReceiveStock(1, ""), ErrPartInactive)
}

func TestPartAdjustStock(t *testing.T) {
	part := &Part{Stock: StockLevel{OnHand: 10, Reserved: 4, MaxLevel: 50}, IsActive: true}

	require.NoError(t, part.AdjustStock(30, "cycle count"))
	assert.Equal(t, 30, part.Stock.OnHand)

	// Cannot count below the reserved quantity
	assert.Error(t, part.AdjustStock(3, "bad count"))
	assert.Equal(t, 30, part.Stock.OnHand)
}
