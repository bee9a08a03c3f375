package domain

import (
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the closed set of purchase order states
type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusSubmitted OrderStatus = "submitted"
	StatusApproved  OrderStatus = "approved"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// IsValid returns true for a recognized status
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// DefaultPaymentTerms is applied when the caller leaves payment terms empty
const DefaultPaymentTerms = "Net 30"

// OrderItem is one part/quantity/unit-price line within an order
type OrderItem struct {
	PartID    string `bson:"partId" json:"partId"`
	PartCode  string `bson:"partCode" json:"partCode"`
	PartName  string `bson:"partName" json:"partName"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	UnitPrice Money  `bson:"unitPrice" json:"unitPrice"`
	LineTotal Money  `bson:"lineTotal" json:"lineTotal"`
}

// PurchaseOrder is the procurement aggregate. Status only moves forward
// through the transition table; cancel and reject are the two out-of-band
// paths.
type PurchaseOrder struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PONumber     string             `bson:"poNumber" json:"poNumber"`
	SupplierID   string             `bson:"supplierId" json:"supplierId"`
	SupplierName string             `bson:"supplierName" json:"supplierName"`

	Items    []OrderItem `bson:"items" json:"items"`
	Subtotal Money       `bson:"subtotal" json:"subtotal"`
	Tax      Money       `bson:"tax" json:"tax"`
	Shipping Money       `bson:"shipping" json:"shipping"`
	Total    Money       `bson:"totalAmount" json:"totalAmount"`

	Status               OrderStatus `bson:"status" json:"status"`
	ExpectedDeliveryDate time.Time   `bson:"expectedDeliveryDate" json:"expectedDeliveryDate"`
	PaymentTerms         string      `bson:"paymentTerms" json:"paymentTerms"`
	PaymentMethod        string      `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	DeliveryAddress      string      `bson:"deliveryAddress,omitempty" json:"deliveryAddress,omitempty"`
	Notes                string      `bson:"notes,omitempty" json:"notes,omitempty"`
	ApprovalNotes        string      `bson:"approvalNotes,omitempty" json:"approvalNotes,omitempty"`
	CancellationReason   string      `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`

	CreatedBy   string     `bson:"createdBy" json:"createdBy"`
	SubmittedBy string     `bson:"submittedBy,omitempty" json:"submittedBy,omitempty"`
	ApprovedBy  string     `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	DeliveredBy string     `bson:"deliveredBy,omitempty" json:"deliveredBy,omitempty"`
	CancelledBy string     `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	SubmittedAt *time.Time `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	ApprovedAt  *time.Time `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	DeliveredAt *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// transition identifies one edge in the state machine
type transition struct {
	from OrderStatus
	to   OrderStatus
}

// transitionRoles is the single authorization table for the state machine.
// Admin passes every check (see roleSet.contains).
var transitionRoles = map[transition]roleSet{
	{StatusDraft, StatusSubmitted}:     {RoleInventoryManager},
	{StatusSubmitted, StatusApproved}:  {RoleManager},
	{StatusApproved, StatusDelivered}:  {RoleInventoryManager},
	{StatusDraft, StatusCancelled}:     {RoleInventoryManager, RoleManager},
	{StatusSubmitted, StatusCancelled}: {RoleInventoryManager, RoleManager},
	// Reject sends a submitted order back to draft for rework
	{StatusSubmitted, StatusDraft}: {RoleManager},
}

// CreateOrderRoles may create purchase order drafts
var CreateOrderRoles = roleSet{RoleInventoryManager}

// CanCreateOrder reports whether the role may create a draft
func CanCreateOrder(role Role) bool {
	return CreateOrderRoles.contains(role)
}

// Authorize checks both the edge and the actor's role for a transition.
// Returns ErrInvalidTransition for an unknown edge and ErrRoleNotPermitted
// when the edge exists but the role is not on its allow-list.
func Authorize(from, to OrderStatus, role Role) error {
	allowed, ok := transitionRoles[transition{from, to}]
	if !ok {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	if !allowed.contains(role) {
		return fmt.Errorf("%w: role %s cannot move order from %s to %s", ErrRoleNotPermitted, role, from, to)
	}
	return nil
}

// GeneratePONumber builds an order number like PO-1717171717171-X7K2Q
func GeneratePONumber() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = letters[rand.Intn(len(letters))]
	}
	return fmt.Sprintf("PO-%d-%s", time.Now().UnixMilli(), suffix)
}

// NewOrderItem builds a line with its computed total
func NewOrderItem(partID, partCode, partName string, quantity int, unitPrice Money) (OrderItem, error) {
	if quantity < 1 {
		return OrderItem{}, ErrInvalidQuantity
	}

	lineTotal, err := unitPrice.Multiply(quantity)
	if err != nil {
		return OrderItem{}, err
	}

	return OrderItem{
		PartID:    partID,
		PartCode:  partCode,
		PartName:  partName,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: lineTotal,
	}, nil
}

// ComputeTotals is the single place order totals come from. It is invoked
// explicitly before persistence, never as a save hook.
func ComputeTotals(items []OrderItem, tax, shipping Money) (subtotal, total Money, err error) {
	if len(items) == 0 {
		return Money{}, Money{}, ErrNoItems
	}

	subtotal = ZeroMoney(items[0].UnitPrice.Currency())
	for _, item := range items {
		subtotal, err = subtotal.Add(item.LineTotal)
		if err != nil {
			return Money{}, Money{}, err
		}
	}

	total, err = subtotal.Add(tax)
	if err != nil {
		return Money{}, Money{}, err
	}
	total, err = total.Add(shipping)
	if err != nil {
		return Money{}, Money{}, err
	}

	return subtotal, total, nil
}

// validateItems enforces at-least-one-item, quantity and duplicate-part rules
func validateItems(items []OrderItem) error {
	if len(items) == 0 {
		return ErrNoItems
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.PartID == "" {
			return ErrPartNotFound
		}
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if seen[item.PartID] {
			return ErrDuplicatePart
		}
		seen[item.PartID] = true
	}
	return nil
}

// NewPurchaseOrder creates a draft order with computed totals
func NewPurchaseOrder(
	supplierID, supplierName string,
	items []OrderItem,
	tax, shipping Money,
	expectedDeliveryDate time.Time,
	paymentTerms, paymentMethod, deliveryAddress, notes string,
	createdBy string,
) (*PurchaseOrder, error) {
	if supplierID == "" {
		return nil, ErrSupplierRequired
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if !expectedDeliveryDate.After(time.Now()) {
		return nil, ErrDeliveryDateInPast
	}
	if paymentTerms == "" {
		paymentTerms = DefaultPaymentTerms
	}

	subtotal, total, err := ComputeTotals(items, tax, shipping)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &PurchaseOrder{
		PONumber:             GeneratePONumber(),
		SupplierID:           supplierID,
		SupplierName:         supplierName,
		Items:                items,
		Subtotal:             subtotal,
		Tax:                  tax,
		Shipping:             shipping,
		Total:                total,
		Status:               StatusDraft,
		ExpectedDeliveryDate: expectedDeliveryDate,
		PaymentTerms:         paymentTerms,
		PaymentMethod:        paymentMethod,
		DeliveryAddress:      deliveryAddress,
		Notes:                notes,
		CreatedBy:            createdBy,
		CreatedAt:            now,
		UpdatedAt:            now,
		DomainEvents:         make([]DomainEvent, 0),
	}

	order.AddDomainEvent(&OrderCreatedEvent{
		OrderID:      order.PONumber,
		PONumber:     order.PONumber,
		SupplierName: supplierName,
		LineCount:    len(items),
		TotalCents:   total.Amount(),
		Currency:     total.Currency(),
		CreatedBy:    createdBy,
		CreatedAt:    now,
	})

	return order, nil
}

// UpdateDraft replaces the editable fields of a draft order and recomputes
// totals. Non-draft orders are immutable through this path.
func (o *PurchaseOrder) UpdateDraft(
	items []OrderItem,
	tax, shipping Money,
	expectedDeliveryDate time.Time,
	paymentTerms, paymentMethod, deliveryAddress, notes string,
) error {
	if o.Status != StatusDraft {
		return ErrOrderNotEditable
	}
	if err := validateItems(items); err != nil {
		return err
	}
	if !expectedDeliveryDate.IsZero() {
		o.ExpectedDeliveryDate = expectedDeliveryDate
	}

	subtotal, total, err := ComputeTotals(items, tax, shipping)
	if err != nil {
		return err
	}

	o.Items = items
	o.Subtotal = subtotal
	o.Tax = tax
	o.Shipping = shipping
	o.Total = total
	if paymentTerms != "" {
		o.PaymentTerms = paymentTerms
	}
	if paymentMethod != "" {
		o.PaymentMethod = paymentMethod
	}
	if deliveryAddress != "" {
		o.DeliveryAddress = deliveryAddress
	}
	if notes != "" {
		o.Notes = notes
	}
	o.UpdatedAt = time.Now()

	return nil
}

// Submit moves a draft to submitted. The capital deduction is committed in
// the same storage transaction by the store; this method only validates and
// stamps the aggregate.
func (o *PurchaseOrder) Submit(actor string, role Role) error {
	if err := Authorize(StatusDraft, StatusSubmitted, role); err != nil {
		return err
	}
	if o.Status != StatusDraft {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, StatusSubmitted)
	}

	now := time.Now()
	o.Status = StatusSubmitted
	o.SubmittedBy = actor
	o.SubmittedAt = &now
	o.UpdatedAt = now
	o.addStatusChangedEvent(StatusDraft, StatusSubmitted, actor, now)
	return nil
}

// Approve moves a submitted order to approved. No funds movement: capital
// was already deducted at submission.
func (o *PurchaseOrder) Approve(actor string, role Role, notes string) error {
	if err := Authorize(StatusSubmitted, StatusApproved, role); err != nil {
		return err
	}
	if o.Status != StatusSubmitted {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, StatusApproved)
	}

	now := time.Now()
	o.Status = StatusApproved
	o.ApprovedBy = actor
	o.ApprovedAt = &now
	o.ApprovalNotes = notes
	o.UpdatedAt = now
	o.addStatusChangedEvent(StatusSubmitted, StatusApproved, actor, now)
	return nil
}

// Deliver moves an approved order to delivered. The store increments each
// line's on-hand stock in the same transaction.
func (o *PurchaseOrder) Deliver(actor string, role Role) error {
	if err := Authorize(StatusApproved, StatusDelivered, role); err != nil {
		return err
	}
	if o.Status != StatusApproved {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, StatusDelivered)
	}

	now := time.Now()
	o.Status = StatusDelivered
	o.DeliveredBy = actor
	o.DeliveredAt = &now
	o.UpdatedAt = now
	o.addStatusChangedEvent(StatusApproved, StatusDelivered, actor, now)
	return nil
}

// Cancel is reachable from draft and submitted only. RequiresRefund tells
// the store whether a submission spend has to be returned.
func (o *PurchaseOrder) Cancel(actor string, role Role, reason string) error {
	if err := Authorize(o.Status, StatusCancelled, role); err != nil {
		return err
	}

	from := o.Status
	now := time.Now()
	o.Status = StatusCancelled
	o.CancelledBy = actor
	o.CancelledAt = &now
	o.CancellationReason = reason
	o.UpdatedAt = now
	o.addStatusChangedEvent(from, StatusCancelled, actor, now)
	return nil
}

// Reject sends a submitted order back to draft; the submission spend is
// refunded by the store in the same transaction.
func (o *PurchaseOrder) Reject(actor string, role Role, notes string) error {
	if err := Authorize(StatusSubmitted, StatusDraft, role); err != nil {
		return err
	}
	if o.Status != StatusSubmitted {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, StatusDraft)
	}

	now := time.Now()
	o.Status = StatusDraft
	o.SubmittedBy = ""
	o.SubmittedAt = nil
	if notes != "" {
		o.ApprovalNotes = notes
	}
	o.UpdatedAt = now
	o.addStatusChangedEvent(StatusSubmitted, StatusDraft, actor, now)
	return nil
}

// RequiresRefund reports whether cancelling from the given prior status
// must return the submission spend
func RequiresRefund(from OrderStatus) bool {
	return from == StatusSubmitted
}

func (o *PurchaseOrder) addStatusChangedEvent(from, to OrderStatus, actor string, at time.Time) {
	o.AddDomainEvent(&OrderStatusChangedEvent{
		OrderID:    o.PONumber,
		PONumber:   o.PONumber,
		FromStatus: string(from),
		ToStatus:   string(to),
		Actor:      actor,
		TotalCents: o.Total.Amount(),
		Currency:   o.Total.Currency(),
		ChangedAt:  at,
	})
}

// Domain event methods
func (o *PurchaseOrder) AddDomainEvent(event DomainEvent) {
	o.DomainEvents = append(o.DomainEvents, event)
}

func (o *PurchaseOrder) ClearDomainEvents() {
	o.DomainEvents = make([]DomainEvent, 0)
}

func (o *PurchaseOrder) GetDomainEvents() []DomainEvent {
	return o.DomainEvents
}
