package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// OrderCreatedEvent is published when a purchase order draft is created
type OrderCreatedEvent struct {
	OrderID      string    `json:"orderId"`
	PONumber     string    `json:"poNumber"`
	SupplierName string    `json:"supplierName"`
	LineCount    int       `json:"lineCount"`
	TotalCents   int64     `json:"totalCents"`
	Currency     string    `json:"currency"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (e *OrderCreatedEvent) EventType() string     { return "procurement.order.created" }
func (e *OrderCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// OrderStatusChangedEvent is published on every successful transition
type OrderStatusChangedEvent struct {
	OrderID    string    `json:"orderId"`
	PONumber   string    `json:"poNumber"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Actor      string    `json:"actor"`
	TotalCents int64     `json:"totalCents"`
	Currency   string    `json:"currency"`
	ChangedAt  time.Time `json:"changedAt"`
}

func (e *OrderStatusChangedEvent) EventType() string     { return "procurement.order.status-changed" }
func (e *OrderStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }

// LowStockAlertEvent is raised by the stock monitor when available stock
// falls to or below the reorder level
type LowStockAlertEvent struct {
	PartID       string    `json:"partId"`
	PartCode     string    `json:"partCode"`
	PartName     string    `json:"partName"`
	Available    int       `json:"available"`
	ReorderLevel int       `json:"reorderLevel"`
	AlertedAt    time.Time `json:"alertedAt"`
}

func (e *LowStockAlertEvent) EventType() string     { return "procurement.stock.low-stock-alert" }
func (e *LowStockAlertEvent) OccurredAt() time.Time { return e.AlertedAt }

// StockReceivedEvent is published when a delivered order line lands on hand
type StockReceivedEvent struct {
	PartID     string    `json:"partId"`
	PartCode   string    `json:"partCode"`
	Quantity   int       `json:"quantity"`
	NewOnHand  int       `json:"newOnHand"`
	OrderID    string    `json:"orderId,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func (e *StockReceivedEvent) EventType() string     { return "procurement.stock.received" }
func (e *StockReceivedEvent) OccurredAt() time.Time { return e.ReceivedAt }

// StockAdjustedEvent is published when a count correction moves on-hand
type StockAdjustedEvent struct {
	PartID         string    `json:"partId"`
	PartCode       string    `json:"partCode"`
	PreviousOnHand int       `json:"previousOnHand"`
	NewOnHand      int       `json:"newOnHand"`
	Reason         string    `json:"reason,omitempty"`
	AdjustedAt     time.Time `json:"adjustedAt"`
}

func (e *StockAdjustedEvent) EventType() string     { return "procurement.stock.adjusted" }
func (e *StockAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }

// CapitalTransactionEvent is published for every ledger mutation
type CapitalTransactionEvent struct {
	TransactionID string    `json:"transactionId"`
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amountCents"`
	BalanceCents  int64     `json:"balanceCents"`
	Currency      string    `json:"currency"`
	Reference     string    `json:"reference,omitempty"`
	Description   string    `json:"description,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

func (e *CapitalTransactionEvent) EventType() string     { return "procurement.capital.transaction" }
func (e *CapitalTransactionEvent) OccurredAt() time.Time { return e.RecordedAt }
