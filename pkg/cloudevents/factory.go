package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for procurement domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new CloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *CloudEvent {
	event := &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		Extensions:      make(map[string]interface{}),
	}

	return event
}

// CreateEventWithCorrelation creates an event with correlation tracking
func (f *EventFactory) CreateEventWithCorrelation(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
	correlationID string,
	actorID string,
) *CloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.CorrelationID = correlationID
	event.ActorID = actorID
	return event
}

// CreateLowStockAlertEvent creates a LowStockAlert event
func (f *EventFactory) CreateLowStockAlertEvent(
	ctx context.Context,
	partID string,
	partCode string,
	partName string,
	available int,
	reorderLevel int,
) *CloudEvent {
	data := LowStockAlertData{
		PartID:       partID,
		PartCode:     partCode,
		PartName:     partName,
		Available:    available,
		ReorderLevel: reorderLevel,
	}
	return f.CreateEvent(ctx, LowStockAlert, "part/"+partID, data)
}

// CreateOrderCreatedEvent creates an OrderCreated event
func (f *EventFactory) CreateOrderCreatedEvent(
	ctx context.Context,
	orderID string,
	poNumber string,
	supplierName string,
	lineCount int,
	totalCents int64,
	currency string,
	createdBy string,
) *CloudEvent {
	data := OrderCreatedData{
		OrderID:      orderID,
		PONumber:     poNumber,
		SupplierName: supplierName,
		LineCount:    lineCount,
		TotalCents:   totalCents,
		Currency:     currency,
		CreatedBy:    createdBy,
	}
	return f.CreateEvent(ctx, OrderCreated, "purchase-order/"+orderID, data)
}

// CreateOrderStatusChangedEvent creates an OrderStatusChanged event
func (f *EventFactory) CreateOrderStatusChangedEvent(
	ctx context.Context,
	orderID string,
	poNumber string,
	fromStatus string,
	toStatus string,
	actor string,
	totalCents int64,
	currency string,
) *CloudEvent {
	data := OrderStatusChangedData{
		OrderID:    orderID,
		PONumber:   poNumber,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Actor:      actor,
		TotalCents: totalCents,
		Currency:   currency,
	}
	return f.CreateEvent(ctx, OrderStatusChanged, "purchase-order/"+orderID, data)
}

// CreateStockReceivedEvent creates a StockReceived event
func (f *EventFactory) CreateStockReceivedEvent(
	ctx context.Context,
	partID string,
	partCode string,
	quantity int,
	newOnHand int,
	orderID string,
) *CloudEvent {
	data := StockReceivedData{
		PartID:    partID,
		PartCode:  partCode,
		Quantity:  quantity,
		NewOnHand: newOnHand,
		OrderID:   orderID,
	}
	return f.CreateEvent(ctx, StockReceived, "part/"+partID, data)
}

// CreateCapitalTransactionEvent creates a capital event of the given type
func (f *EventFactory) CreateCapitalTransactionEvent(
	ctx context.Context,
	eventType string,
	transactionID string,
	txType string,
	amountCents int64,
	balanceCents int64,
	currency string,
	reference string,
	description string,
) *CloudEvent {
	data := CapitalTransactionData{
		TransactionID: transactionID,
		Type:          txType,
		AmountCents:   amountCents,
		BalanceCents:  balanceCents,
		Currency:      currency,
		Reference:     reference,
		Description:   description,
	}
	return f.CreateEvent(ctx, eventType, "capital/"+transactionID, data)
}
