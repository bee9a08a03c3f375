package application

import "time"

// CreatePartCommand creates a new part stock record
type CreatePartCommand struct {
	PartCode       string
	Name           string
	Category       string
	Description    string
	UnitPriceCents int64
	OnHand         int
	Reserved       int
	MinLevel       int
	MaxLevel       int
	ReorderLevel   int
}

// ReceiveStockCommand increases a part's on-hand quantity
type ReceiveStockCommand struct {
	PartID   string
	Quantity int
	OrderID  string
}

// AdjustStockCommand sets a part's on-hand quantity to a counted value
type AdjustStockCommand struct {
	PartID    string
	NewOnHand int
	Reason    string
}

// OrderItemInput is one requested order line; unit price falls back to the
// part's snapshot price when zero
type OrderItemInput struct {
	PartID         string
	Quantity       int
	UnitPriceCents int64
}

// CreateOrderCommand drafts a new purchase order
type CreateOrderCommand struct {
	SupplierID           string
	SupplierName         string
	Items                []OrderItemInput
	TaxCents             int64
	ShippingCents        int64
	Currency             string
	ExpectedDeliveryDate time.Time
	PaymentTerms         string
	PaymentMethod        string
	DeliveryAddress      string
	Notes                string
}

// UpdateOrderCommand edits a draft order
type UpdateOrderCommand struct {
	OrderID              string
	Items                []OrderItemInput
	TaxCents             int64
	ShippingCents        int64
	Currency             string
	ExpectedDeliveryDate time.Time
	PaymentTerms         string
	PaymentMethod        string
	DeliveryAddress      string
	Notes                string
}

// TransitionOrderCommand moves an order through the state machine
type TransitionOrderCommand struct {
	OrderID string
	Notes   string
	Reason  string
}

// InitializeCapitalCommand sets the initial balance exactly once
type InitializeCapitalCommand struct {
	AmountCents int64
	Currency    string
}

// AdjustCapitalCommand moves the balance to a corrected value
type AdjustCapitalCommand struct {
	NewAmountCents int64
	Currency       string
	Description    string
}
