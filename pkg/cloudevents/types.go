package cloudevents

import (
	"time"
)

// EventType constants for procurement domain events
const (
	// Part events
	PartCreated     = "procurement.part.created"
	PartUpdated     = "procurement.part.updated"
	PartDeactivated = "procurement.part.deactivated"

	// Stock events
	StockReceived = "procurement.stock.received"
	StockAdjusted = "procurement.stock.adjusted"
	LowStockAlert = "procurement.stock.low-stock-alert"

	// Purchase order events
	OrderCreated       = "procurement.order.created"
	OrderStatusChanged = "procurement.order.status-changed"
	OrderDelivered     = "procurement.order.delivered"
	OrderCancelled     = "procurement.order.cancelled"

	// Capital events
	CapitalInitialized = "procurement.capital.initialized"
	CapitalAdjusted    = "procurement.capital.adjusted"
	CapitalSpent       = "procurement.capital.spent"
	CapitalRefunded    = "procurement.capital.refunded"
)

// Source constants for event sources
const (
	SourceProcurement  = "/autoelite/procurement-service"
	SourceStockMonitor = "/autoelite/stock-monitor"
)

// CloudEvent represents a CloudEvents v1.0 compliant event
type CloudEvent struct {
	SpecVersion     string                 `json:"specversion"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Subject         string                 `json:"subject,omitempty"`
	ID              string                 `json:"id"`
	Time            time.Time              `json:"time"`
	DataContentType string                 `json:"datacontenttype"`
	Data            interface{}            `json:"data"`
	Extensions      map[string]interface{} `json:"-"`

	// Platform extensions
	CorrelationID string `json:"correlationid,omitempty"`
	ActorID       string `json:"actorid,omitempty"`

	// W3C Trace Context
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// LowStockAlertData represents the data payload for LowStockAlert events
type LowStockAlertData struct {
	PartID       string `json:"partId"`
	PartCode     string `json:"partCode"`
	PartName     string `json:"partName"`
	Available    int    `json:"available"`
	ReorderLevel int    `json:"reorderLevel"`
}

// OrderCreatedData represents the data payload for OrderCreated events
type OrderCreatedData struct {
	OrderID      string `json:"orderId"`
	PONumber     string `json:"poNumber"`
	SupplierName string `json:"supplierName"`
	LineCount    int    `json:"lineCount"`
	TotalCents   int64  `json:"totalCents"`
	Currency     string `json:"currency"`
	CreatedBy    string `json:"createdBy"`
}

// OrderStatusChangedData represents the data payload for OrderStatusChanged events
type OrderStatusChangedData struct {
	OrderID    string `json:"orderId"`
	PONumber   string `json:"poNumber"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	Actor      string `json:"actor"`
	TotalCents int64  `json:"totalCents"`
	Currency   string `json:"currency"`
}

// StockReceivedData represents the data payload for StockReceived events
type StockReceivedData struct {
	PartID    string `json:"partId"`
	PartCode  string `json:"partCode"`
	Quantity  int    `json:"quantity"`
	NewOnHand int    `json:"newOnHand"`
	OrderID   string `json:"orderId,omitempty"`
}

// CapitalTransactionData represents the data payload for capital events
type CapitalTransactionData struct {
	TransactionID string `json:"transactionId"`
	Type          string `json:"type"`
	AmountCents   int64  `json:"amountCents"`
	BalanceCents  int64  `json:"balanceCents"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference,omitempty"`
	Description   string `json:"description,omitempty"`
}
