package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems(t *testing.T) []OrderItem {
	t.Helper()
	price50, _ := NewMoney(5000, "USD")
	price30, _ := NewMoney(3000, "USD")

	a, err := NewOrderItem("part-1", "BRK-PAD-001", "Brake Pad Set", 2, price50)
	require.NoError(t, err)
	b, err := NewOrderItem("part-2", "OIL-FLT-002", "Oil Filter", 1, price30)
	require.NoError(t, err)
	return []OrderItem{a, b}
}

func testOrder(t *testing.T) *PurchaseOrder {
	t.Helper()
	order, err := NewPurchaseOrder(
		"supplier-1", "AutoParts Direct",
		testItems(t),
		ZeroMoney("USD"), ZeroMoney("USD"),
		time.Now().Add(14*24*time.Hour),
		"", "bank_transfer", "12 Depot Rd", "",
		"user-im",
	)
	require.NoError(t, err)
	return order
}

func TestComputeTotals(t *testing.T) {
	items := testItems(t)

	// qty 2 x 50.00 + qty 1 x 30.00 = 130.00
	subtotal, total, err := ComputeTotals(items, ZeroMoney("USD"), ZeroMoney("USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(13000), subtotal.Amount())
	assert.Equal(t, int64(13000), total.Amount())

	tax, _ := NewMoney(910, "USD")
	shipping, _ := NewMoney(1500, "USD")
	subtotal, total, err = ComputeTotals(items, tax, shipping)
	require.NoError(t, err)
	assert.Equal(t, int64(13000), subtotal.Amount())
	assert.Equal(t, int64(15410), total.Amount())

	_, _, err = ComputeTotals(nil, ZeroMoney("USD"), ZeroMoney("USD"))
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestNewPurchaseOrderValidation(t *testing.T) {
	items := testItems(t)
	future := time.Now().Add(24 * time.Hour)
	zero := ZeroMoney("USD")

	t.Run("missing supplier", func(t *testing.T) {
		_, err := NewPurchaseOrder("", "", items, zero, zero, future, "", "", "", "", "user-im")
		assert.ErrorIs(t, err, ErrSupplierRequired)
	})

	t.Run("no items", func(t *testing.T) {
		_, err := NewPurchaseOrder("supplier-1", "s", nil, zero, zero, future, "", "", "", "", "user-im")
		assert.ErrorIs(t, err, ErrNoItems)
	})

	t.Run("duplicate part", func(t *testing.T) {
		dup := []OrderItem{items[0], items[0]}
		_, err := NewPurchaseOrder("supplier-1", "s", dup, zero, zero, future, "", "", "", "", "user-im")
		assert.ErrorIs(t, err, ErrDuplicatePart)
	})

	t.Run("delivery date in past", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		_, err := NewPurchaseOrder("supplier-1", "s", items, zero, zero, past, "", "", "", "", "user-im")
		assert.ErrorIs(t, err, ErrDeliveryDateInPast)
	})

	t.Run("defaults applied", func(t *testing.T) {
		order, err := NewPurchaseOrder("supplier-1", "s", items, zero, zero, future, "", "", "", "", "user-im")
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, order.Status)
		assert.Equal(t, DefaultPaymentTerms, order.PaymentTerms)
		assert.True(t, strings.HasPrefix(order.PONumber, "PO-"))
		assert.Len(t, order.GetDomainEvents(), 1)
	})
}

func TestNewOrderItemRejectsZeroQuantity(t *testing.T) {
	price, _ := NewMoney(1000, "USD")
	_, err := NewOrderItem("part-1", "C", "N", 0, price)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAuthorizeTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		role    Role
		wantErr error
	}{
		{"submit by inventory manager", StatusDraft, StatusSubmitted, RoleInventoryManager, nil},
		{"submit by admin", StatusDraft, StatusSubmitted, RoleAdmin, nil},
		{"submit by plain user", StatusDraft, StatusSubmitted, RoleUser, ErrRoleNotPermitted},
		{"approve by manager", StatusSubmitted, StatusApproved, RoleManager, nil},
		{"approve by inventory manager", StatusSubmitted, StatusApproved, RoleInventoryManager, ErrRoleNotPermitted},
		{"deliver by inventory manager", StatusApproved, StatusDelivered, RoleInventoryManager, nil},
		{"deliver by manager", StatusApproved, StatusDelivered, RoleManager, ErrRoleNotPermitted},
		{"cancel draft by manager", StatusDraft, StatusCancelled, RoleManager, nil},
		{"cancel submitted by inventory manager", StatusSubmitted, StatusCancelled, RoleInventoryManager, nil},
		{"reject by manager", StatusSubmitted, StatusDraft, RoleManager, nil},
		{"reject by inventory manager", StatusSubmitted, StatusDraft, RoleInventoryManager, ErrRoleNotPermitted},
		{"skip stage draft to approved", StatusDraft, StatusApproved, RoleAdmin, ErrInvalidTransition},
		{"skip stage draft to delivered", StatusDraft, StatusDelivered, RoleAdmin, ErrInvalidTransition},
		{"regress approved to submitted", StatusApproved, StatusSubmitted, RoleAdmin, ErrInvalidTransition},
		{"cancel approved", StatusApproved, StatusCancelled, RoleManager, ErrInvalidTransition},
		{"cancel delivered", StatusDelivered, StatusCancelled, RoleAdmin, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.from, tt.to, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	order := testOrder(t)
	order.ClearDomainEvents()

	require.NoError(t, order.Submit("user-im", RoleInventoryManager))
	assert.Equal(t, StatusSubmitted, order.Status)
	assert.Equal(t, "user-im", order.SubmittedBy)
	require.NotNil(t, order.SubmittedAt)

	require.NoError(t, order.Approve("user-mgr", RoleManager, "looks good"))
	assert.Equal(t, StatusApproved, order.Status)

	require.NoError(t, order.Deliver("user-im", RoleInventoryManager))
	assert.Equal(t, StatusDelivered, order.Status)

	events := order.GetDomainEvents()
	require.Len(t, events, 3)
	last, ok := events[2].(*OrderStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, string(StatusApproved), last.FromStatus)
	assert.Equal(t, string(StatusDelivered), last.ToStatus)
}

func TestOrderSubmitFromWrongState(t *testing.T) {
	order := testOrder(t)
	require.NoError(t, order.Submit("user-im", RoleInventoryManager))

	err := order.Submit("user-im", RoleInventoryManager)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusSubmitted, order.Status)
}

func TestOrderApproveRoleRejected(t *testing.T) {
	order := testOrder(t)
	require.NoError(t, order.Submit("user-im", RoleInventoryManager))

	err := order.Approve("user-im", RoleInventoryManager, "")
	assert.ErrorIs(t, err, ErrRoleNotPermitted)
	// Status unchanged on rejection
	assert.Equal(t, StatusSubmitted, order.Status)
	assert.Empty(t, order.ApprovedBy)
}

func TestOrderCancel(t *testing.T) {
	t.Run("from draft", func(t *testing.T) {
		order := testOrder(t)
		require.NoError(t, order.Cancel("user-im", RoleInventoryManager, "no longer needed"))
		assert.Equal(t, StatusCancelled, order.Status)
		assert.Equal(t, "no longer needed", order.CancellationReason)
		assert.False(t, RequiresRefund(StatusDraft))
	})

	t.Run("from submitted requires refund", func(t *testing.T) {
		order := testOrder(t)
		require.NoError(t, order.Submit("user-im", RoleInventoryManager))
		require.NoError(t, order.Cancel("user-mgr", RoleManager, "budget cut"))
		assert.Equal(t, StatusCancelled, order.Status)
		assert.True(t, RequiresRefund(StatusSubmitted))
	})

	t.Run("from approved rejected", func(t *testing.T) {
		order := testOrder(t)
		require.NoError(t, order.Submit("user-im", RoleInventoryManager))
		require.NoError(t, order.Approve("user-mgr", RoleManager, ""))
		err := order.Cancel("user-mgr", RoleManager, "too late")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusApproved, order.Status)
	})
}

func TestOrderReject(t *testing.T) {
	order := testOrder(t)
	require.NoError(t, order.Submit("user-im", RoleInventoryManager))

	require.NoError(t, order.Reject("user-mgr", RoleManager, "wrong supplier"))
	assert.Equal(t, StatusDraft, order.Status)
	assert.Empty(t, order.SubmittedBy)
	assert.Nil(t, order.SubmittedAt)

	// A rejected order can be reworked and resubmitted
	require.NoError(t, order.Submit("user-im", RoleInventoryManager))
	assert.Equal(t, StatusSubmitted, order.Status)
}

func TestUpdateDraft(t *testing.T) {
	order := testOrder(t)
	price, _ := NewMoney(2000, "USD")
	item, err := NewOrderItem("part-3", "SPK-PLG-003", "Spark Plug", 4, price)
	require.NoError(t, err)

	require.NoError(t, order.UpdateDraft([]OrderItem{item}, ZeroMoney("USD"), ZeroMoney("USD"), time.Time{}, "", "", "", "updated"))
	assert.Equal(t, int64(8000), order.Total.Amount())
	assert.Len(t, order.Items, 1)

	require.NoError(t, order.Submit("user-im", RoleInventoryManager))
	err = order.UpdateDraft([]OrderItem{item}, ZeroMoney("USD"), ZeroMoney("USD"), time.Time{}, "", "", "", "")
	assert.ErrorIs(t, err, ErrOrderNotEditable)
}

func TestGeneratePONumber(t *testing.T) {
	a := GeneratePONumber()
	b := GeneratePONumber()

	assert.Regexp(t, `^PO-\d+-[A-Z0-9]{5}$`, a)
	assert.NotEqual(t, a, b)
}
