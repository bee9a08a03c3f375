package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoelite-platform/procurement-service/internal/domain"
)

type procurementFixture struct {
	service *ProcurementService
	parts   *fakePartRepo
	orders  *fakeOrderRepo
	capital *fakeCapitalRepo
	audit   *fakeAuditRepo
	brake   *domain.Part
	filter  *domain.Part
}

func newProcurementFixture(t *testing.T, seedCents int64) *procurementFixture {
	t.Helper()

	parts := newFakePartRepo()
	brake, err := domain.NewPart("BRK-PAD-001", "Brake Pad Set", "brakes", 4500, domain.StockLevel{
		OnHand: 20, ReorderLevel: 10, MaxLevel: 500,
	})
	require.NoError(t, err)
	parts.add(brake)

	filter, err := domain.NewPart("OIL-FLT-002", "Oil Filter", "engine", 1200, domain.StockLevel{
		OnHand: 40, ReorderLevel: 15, MaxLevel: 500,
	})
	require.NoError(t, err)
	parts.add(filter)

	capital := newFakeCapitalRepo(seedCents)
	orders := newFakeOrderRepo(capital, parts)
	auditRepo := &fakeAuditRepo{}
	recorder := NewAuditRecorder(auditRepo, testLogger(), testMetrics())

	return &procurementFixture{
		service: NewProcurementService(orders, parts, capital, recorder, testLogger(), testMetrics()),
		parts:   parts,
		orders:  orders,
		capital: capital,
		audit:   auditRepo,
		brake:   brake,
		filter:  filter,
	}
}

func (f *procurementFixture) createCommand() CreateOrderCommand {
	return CreateOrderCommand{
		SupplierID:   "SUP-100",
		SupplierName: "Bosch Distribution",
		Items: []OrderItemInput{
			{PartID: f.brake.ID.Hex(), Quantity: 10},
			{PartID: f.filter.ID.Hex(), Quantity: 20, UnitPriceCents: 1100},
		},
		TaxCents:             5000,
		ShippingCents:        2500,
		ExpectedDeliveryDate: time.Now().Add(7 * 24 * time.Hour),
	}
}

func (f *procurementFixture) draftOrder(t *testing.T) *domain.PurchaseOrder {
	t.Helper()
	order, err := f.service.CreateOrder(context.Background(), f.createCommand(), "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	return order
}

func TestCreateOrderComputesTotals(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)

	order := f.draftOrder(t)

	// 10 * 4500 catalog price + 20 * 1100 override
	assert.Equal(t, int64(67000), order.Subtotal.Amount())
	assert.Equal(t, int64(74500), order.Total.Amount())
	assert.Equal(t, domain.StatusDraft, order.Status)
	assert.Equal(t, "buyer", order.CreatedBy)
	assert.Regexp(t, `^PO-\d+-[A-Z0-9]{5}$`, order.PONumber)
}

func TestCreateOrderRequiresInventoryManager(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)

	_, err := f.service.CreateOrder(context.Background(), f.createCommand(), "someone", domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrRoleNotPermitted)

	_, err = f.service.CreateOrder(context.Background(), f.createCommand(), "root", domain.RoleAdmin)
	assert.NoError(t, err)
}

func TestCreateOrderRejectsInactivePart(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	f.brake.Deactivate()

	_, err := f.service.CreateOrder(context.Background(), f.createCommand(), "buyer", domain.RoleInventoryManager)
	assert.ErrorIs(t, err, domain.ErrPartInactive)
}

func TestCreateOrderUnknownPart(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	cmd := f.createCommand()
	cmd.Items[0].PartID = "missing-part"

	_, err := f.service.CreateOrder(context.Background(), cmd, "buyer", domain.RoleInventoryManager)
	assert.ErrorIs(t, err, domain.ErrPartNotFound)
}

func TestSubmitDeductsCapital(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)

	submitted, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, submitted.Status)

	account, err := f.capital.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSeedCents-74500, account.CurrentAmount.Amount())
	assert.Equal(t, int64(74500), account.TotalSpent.Amount())
	require.NoError(t, account.CheckInvariant())
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)

	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)

	again, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, again.Status)

	// only one spend was made
	account, err := f.capital.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSeedCents-74500, account.CurrentAmount.Amount())
}

func TestSubmitInsufficientCapital(t *testing.T) {
	f := newProcurementFixture(t, 50000) // $500, order totals $745
	order := f.draftOrder(t)

	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.ErrorIs(t, err, domain.ErrInsufficientCapital)

	account, err := f.capital.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50000), account.CurrentAmount.Amount())
}

func TestSubmitRoleRejected(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)

	_, err := f.service.Submit(context.Background(), order.PONumber, "mgr", domain.RoleManager)
	require.ErrorIs(t, err, domain.ErrRoleNotPermitted)

	current, err := f.service.GetOrder(context.Background(), order.PONumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, current.Status)
}

func TestApproveRequiresManager(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)
	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)

	cmd := TransitionOrderCommand{OrderID: order.PONumber}
	_, err = f.service.Approve(context.Background(), cmd, "buyer", domain.RoleInventoryManager)
	require.ErrorIs(t, err, domain.ErrRoleNotPermitted)

	approved, err := f.service.Approve(context.Background(), cmd, "mgr", domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "mgr", approved.ApprovedBy)
}

func TestDeliverReceivesStock(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)
	cmd := TransitionOrderCommand{OrderID: order.PONumber}

	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	_, err = f.service.Approve(context.Background(), cmd, "mgr", domain.RoleManager)
	require.NoError(t, err)

	delivered, err := f.service.Deliver(context.Background(), cmd, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)

	assert.Equal(t, 30, f.brake.Stock.OnHand)
	assert.Equal(t, 60, f.filter.Stock.OnHand)
}

func TestDeliverSkippingApprovalFails(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)
	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)

	_, err = f.service.Deliver(context.Background(), TransitionOrderCommand{OrderID: order.PONumber}, "buyer", domain.RoleInventoryManager)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 20, f.brake.Stock.OnHand)
}

func TestCancelDraftNoRefund(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)

	cancelled, err := f.service.Cancel(context.Background(), TransitionOrderCommand{OrderID: order.PONumber, Reason: "supplier issue"}, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	account, err := f.capital.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSeedCents, account.CurrentAmount.Amount())
	assert.Len(t, account.Transactions, 1) // only the initial entry
}

func TestCancelSubmittedRefunds(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)
	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(context.Background(), TransitionOrderCommand{OrderID: order.PONumber, Reason: "budget cut"}, "mgr", domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	account, err := f.capital.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSeedCents, account.CurrentAmount.Amount())
	assert.Equal(t, int64(0), account.TotalSpent.Amount())
	require.NoError(t, account.CheckInvariant())
}

func TestRejectRefundsAndAllowsResubmit(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)
	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)

	rejected, err := f.service.Reject(context.Background(), TransitionOrderCommand{OrderID: order.PONumber, Notes: "wrong supplier"}, "mgr", domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, rejected.Status)
	assert.Empty(t, rejected.SubmittedBy)

	account, err := f.capital.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSeedCents, account.CurrentAmount.Amount())

	resubmitted, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, resubmitted.Status)
}

func TestUpdateDraftOrder(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)

	updated, err := f.service.UpdateOrder(context.Background(), UpdateOrderCommand{
		OrderID:              order.PONumber,
		Items:                []OrderItemInput{{PartID: f.brake.ID.Hex(), Quantity: 5}},
		TaxCents:             1000,
		ShippingCents:        500,
		ExpectedDeliveryDate: time.Now().Add(48 * time.Hour),
	}, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)
	assert.Equal(t, int64(22500), updated.Subtotal.Amount())
	assert.Equal(t, int64(24000), updated.Total.Amount())
	assert.Len(t, updated.Items, 1)
}

func TestUpdateRejectedAfterSubmit(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)
	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)

	_, err = f.service.UpdateOrder(context.Background(), UpdateOrderCommand{
		OrderID:              order.PONumber,
		Items:                []OrderItemInput{{PartID: f.brake.ID.Hex(), Quantity: 5}},
		ExpectedDeliveryDate: time.Now().Add(48 * time.Hour),
	}, "buyer", domain.RoleInventoryManager)
	assert.ErrorIs(t, err, domain.ErrOrderNotEditable)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)

	_, err := f.service.GetOrder(context.Background(), "PO-0-XXXXX")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestLifecycleWritesAuditTrail(t *testing.T) {
	f := newProcurementFixture(t, domain.DefaultSeedCents)
	order := f.draftOrder(t)
	_, err := f.service.Submit(context.Background(), order.PONumber, "buyer", domain.RoleInventoryManager)
	require.NoError(t, err)

	entries, total, err := f.audit.Find(context.Background(), domain.AuditFilter{EntityType: domain.EntityPurchaseOrder}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total) // create + submit
	assert.Equal(t, domain.AuditCreate, entries[0].Action)
	assert.Equal(t, domain.AuditUpdate, entries[1].Action)
}
