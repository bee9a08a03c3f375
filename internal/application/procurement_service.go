package application

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
)

// ProcurementService drives the purchase order state machine. All funds
// movement goes through the order store's atomic operations so an order and
// the capital ledger change together or not at all.
type ProcurementService struct {
	orders  domain.PurchaseOrderRepository
	parts   domain.PartRepository
	capital domain.CapitalRepository
	audit   *AuditRecorder
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewProcurementService creates a new procurement service
func NewProcurementService(
	orders domain.PurchaseOrderRepository,
	parts domain.PartRepository,
	capital domain.CapitalRepository,
	audit *AuditRecorder,
	logger *logging.Logger,
	m *metrics.Metrics,
) *ProcurementService {
	return &ProcurementService{
		orders:  orders,
		parts:   parts,
		capital: capital,
		audit:   audit,
		logger:  logger.WithComponent("procurement"),
		metrics: m,
	}
}

// buildItems resolves requested lines against the part catalog, snapshotting
// code, name and price onto the order
func (s *ProcurementService) buildItems(ctx context.Context, inputs []OrderItemInput, currency string) ([]domain.OrderItem, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrNoItems
	}

	items := make([]domain.OrderItem, 0, len(inputs))
	for _, input := range inputs {
		part, err := s.parts.FindByID(ctx, input.PartID)
		if err != nil {
			return nil, fmt.Errorf("failed to load part %s: %w", input.PartID, err)
		}
		if part == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrPartNotFound, input.PartID)
		}
		if !part.IsActive {
			return nil, domain.ErrPartInactive
		}

		priceCents := input.UnitPriceCents
		if priceCents == 0 {
			priceCents = part.UnitPriceCents
		}
		unitPrice, err := domain.NewMoney(priceCents, currency)
		if err != nil {
			return nil, fmt.Errorf("%w for part %s", domain.ErrInvalidUnitPrice, part.PartCode)
		}

		item, err := domain.NewOrderItem(part.ID.Hex(), part.PartCode, part.Name, input.Quantity, unitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateOrder drafts a new purchase order
func (s *ProcurementService) CreateOrder(ctx context.Context, cmd CreateOrderCommand, actor string, role domain.Role) (*domain.PurchaseOrder, error) {
	if !domain.CanCreateOrder(role) {
		return nil, fmt.Errorf("%w: role %s cannot create purchase orders", domain.ErrRoleNotPermitted, role)
	}

	currency := cmd.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	items, err := s.buildItems(ctx, cmd.Items, currency)
	if err != nil {
		return nil, err
	}

	tax, err := domain.NewMoney(cmd.TaxCents, currency)
	if err != nil {
		return nil, err
	}
	shipping, err := domain.NewMoney(cmd.ShippingCents, currency)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewPurchaseOrder(
		cmd.SupplierID, cmd.SupplierName,
		items, tax, shipping,
		cmd.ExpectedDeliveryDate,
		cmd.PaymentTerms, cmd.PaymentMethod, cmd.DeliveryAddress, cmd.Notes,
		actor,
	)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save purchase order: %w", err)
	}

	s.metrics.RecordPurchaseOrderCreated(order.SupplierName)
	s.audit.Record(ctx, actor, domain.AuditCreate, domain.EntityPurchaseOrder, order.PONumber, nil, orderSnapshot(order))
	s.logger.Info("Purchase order created",
		"poNumber", order.PONumber,
		"supplier", order.SupplierName,
		"totalCents", order.Total.Amount(),
	)

	return order, nil
}

// UpdateOrder edits a draft order
func (s *ProcurementService) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand, actor string, role domain.Role) (*domain.PurchaseOrder, error) {
	if !domain.CanCreateOrder(role) {
		return nil, fmt.Errorf("%w: role %s cannot edit purchase orders", domain.ErrRoleNotPermitted, role)
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	currency := cmd.Currency
	if currency == "" {
		currency = order.Total.Currency()
	}

	items, err := s.buildItems(ctx, cmd.Items, currency)
	if err != nil {
		return nil, err
	}
	tax, err := domain.NewMoney(cmd.TaxCents, currency)
	if err != nil {
		return nil, err
	}
	shipping, err := domain.NewMoney(cmd.ShippingCents, currency)
	if err != nil {
		return nil, err
	}

	before := orderSnapshot(order)
	if err := order.UpdateDraft(items, tax, shipping, cmd.ExpectedDeliveryDate, cmd.PaymentTerms, cmd.PaymentMethod, cmd.DeliveryAddress, cmd.Notes); err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save purchase order: %w", err)
	}

	s.audit.Record(ctx, actor, domain.AuditUpdate, domain.EntityPurchaseOrder, order.PONumber, before, orderSnapshot(order))
	return order, nil
}

// GetOrder returns one order by id or PO number
func (s *ProcurementService) GetOrder(ctx context.Context, orderID string) (*domain.PurchaseOrder, error) {
	return s.loadOrder(ctx, orderID)
}

// ListOrders returns a page of orders, optionally filtered by status
func (s *ProcurementService) ListOrders(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]*domain.PurchaseOrder, int64, error) {
	orders, err := s.orders.FindAll(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orders.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Submit moves a draft to submitted, deducting the total from capital in
// the same storage transaction. Re-submitting a submitted order is a no-op
// returning the current state.
func (s *ProcurementService) Submit(ctx context.Context, orderID string, actor string, role domain.Role) (*domain.PurchaseOrder, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.StatusSubmitted {
		return order, nil
	}

	before := orderSnapshot(order)
	from := order.Status
	if err := order.Submit(actor, role); err != nil {
		return nil, err
	}

	txn, err := domain.NewSpendTransaction(order.Total, fmt.Sprintf("purchase order %s", order.PONumber), order.PONumber, actor)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SubmitWithSpend(ctx, order, txn); err != nil {
		return nil, err
	}

	s.recordTransition(ctx, order, from, actor, before)
	s.metrics.RecordCapitalTransaction(string(domain.TxnPurchaseOrder))
	return order, nil
}

// Approve moves a submitted order to approved; no funds movement
func (s *ProcurementService) Approve(ctx context.Context, cmd TransitionOrderCommand, actor string, role domain.Role) (*domain.PurchaseOrder, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	before := orderSnapshot(order)
	from := order.Status
	if err := order.Approve(actor, role, cmd.Notes); err != nil {
		return nil, err
	}

	if err := s.orders.Transition(ctx, order, from); err != nil {
		return nil, err
	}

	s.recordTransition(ctx, order, from, actor, before)
	return order, nil
}

// Deliver moves an approved order to delivered and receives each line's
// quantity into stock atomically
func (s *ProcurementService) Deliver(ctx context.Context, cmd TransitionOrderCommand, actor string, role domain.Role) (*domain.PurchaseOrder, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	before := orderSnapshot(order)
	from := order.Status
	if err := order.Deliver(actor, role); err != nil {
		return nil, err
	}

	if err := s.orders.DeliverWithReceipt(ctx, order); err != nil {
		return nil, err
	}

	s.recordTransition(ctx, order, from, actor, before)
	return order, nil
}

// Cancel cancels a draft or submitted order, refunding the submission spend
// when one was made
func (s *ProcurementService) Cancel(ctx context.Context, cmd TransitionOrderCommand, actor string, role domain.Role) (*domain.PurchaseOrder, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	before := orderSnapshot(order)
	from := order.Status
	if err := order.Cancel(actor, role, cmd.Reason); err != nil {
		return nil, err
	}

	var refund *domain.CapitalTransaction
	if domain.RequiresRefund(from) {
		txn, err := domain.NewRefundTransaction(order.Total, fmt.Sprintf("purchase order %s cancelled", order.PONumber), order.PONumber, actor)
		if err != nil {
			return nil, err
		}
		refund = &txn
	}

	if err := s.orders.CancelWithRefund(ctx, order, from, refund); err != nil {
		return nil, err
	}

	s.recordTransition(ctx, order, from, actor, before)
	if refund != nil {
		s.metrics.RecordCapitalTransaction(string(domain.TxnRefund))
	}
	return order, nil
}

// Reject sends a submitted order back to draft and refunds the spend
func (s *ProcurementService) Reject(ctx context.Context, cmd TransitionOrderCommand, actor string, role domain.Role) (*domain.PurchaseOrder, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	before := orderSnapshot(order)
	from := order.Status
	if err := order.Reject(actor, role, cmd.Notes); err != nil {
		return nil, err
	}

	txn, err := domain.NewRefundTransaction(order.Total, fmt.Sprintf("purchase order %s rejected", order.PONumber), order.PONumber, actor)
	if err != nil {
		return nil, err
	}

	if err := s.orders.RejectWithRefund(ctx, order, txn); err != nil {
		return nil, err
	}

	s.recordTransition(ctx, order, from, actor, before)
	s.metrics.RecordCapitalTransaction(string(domain.TxnRefund))
	return order, nil
}

func (s *ProcurementService) loadOrder(ctx context.Context, orderID string) (*domain.PurchaseOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *ProcurementService) recordTransition(ctx context.Context, order *domain.PurchaseOrder, from domain.OrderStatus, actor string, before bson.M) {
	s.metrics.RecordOrderTransition(string(from), string(order.Status))
	s.audit.Record(ctx, actor, domain.AuditUpdate, domain.EntityPurchaseOrder, order.PONumber, before, orderSnapshot(order))
	s.logger.Info("Purchase order transitioned",
		"poNumber", order.PONumber,
		"from", string(from),
		"to", string(order.Status),
		"actor", actor,
	)
}

// orderSnapshot captures the audit-relevant fields of an order
func orderSnapshot(order *domain.PurchaseOrder) bson.M {
	return bson.M{
		"poNumber":   order.PONumber,
		"status":     string(order.Status),
		"supplier":   order.SupplierName,
		"lineCount":  len(order.Items),
		"totalCents": order.Total.Amount(),
		"currency":   order.Total.Currency(),
	}
}
