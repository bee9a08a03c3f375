package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
)

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("test")
	cfg.Level = logging.LevelError
	return logging.New(cfg)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("test"))
}

// fakePartRepo is an in-memory part repository
type fakePartRepo struct {
	mu      sync.Mutex
	parts   map[string]*domain.Part
	findErr error
}

func newFakePartRepo() *fakePartRepo {
	return &fakePartRepo{parts: make(map[string]*domain.Part)}
}

func (r *fakePartRepo) add(part *domain.Part) *domain.Part {
	r.mu.Lock()
	defer r.mu.Unlock()
	if part.ID.IsZero() {
		part.ID = primitive.NewObjectID()
	}
	r.parts[part.ID.Hex()] = part
	return part
}

func (r *fakePartRepo) Save(ctx context.Context, part *domain.Part) error {
	r.add(part)
	return nil
}

func (r *fakePartRepo) FindByID(ctx context.Context, id string) (*domain.Part, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parts[id], nil
}

func (r *fakePartRepo) FindByCode(ctx context.Context, partCode string) (*domain.Part, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, part := range r.parts {
		if part.PartCode == partCode {
			return part, nil
		}
	}
	return nil, nil
}

func (r *fakePartRepo) FindAll(ctx context.Context, limit, offset int) ([]*domain.Part, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Part, 0, len(r.parts))
	for _, part := range r.parts {
		out = append(out, part)
	}
	return out, nil
}

func (r *fakePartRepo) FindLowStock(ctx context.Context) ([]*domain.Part, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*domain.Part
	for _, part := range r.parts {
		if part.IsActive && part.IsLowStock() {
			out = append(out, part)
		}
	}
	return out, nil
}

func (r *fakePartRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if part, ok := r.parts[id]; ok {
		part.Deactivate()
	}
	return nil
}

// fakeCapitalRepo holds one in-memory account
type fakeCapitalRepo struct {
	mu      sync.Mutex
	account *domain.CapitalAccount
}

func newFakeCapitalRepo(seedCents int64) *fakeCapitalRepo {
	seed, _ := domain.NewMoney(seedCents, "USD")
	return &fakeCapitalRepo{account: domain.NewCapitalAccount(seed, "system")}
}

func (r *fakeCapitalRepo) Bootstrap(ctx context.Context, seed domain.Money) (*domain.CapitalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.account == nil {
		r.account = domain.NewCapitalAccount(seed, "system")
	}
	return r.account, nil
}

func (r *fakeCapitalRepo) Get(ctx context.Context) (*domain.CapitalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.account, nil
}

func (r *fakeCapitalRepo) Apply(ctx context.Context, account *domain.CapitalAccount, txn domain.CapitalTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account = account
	return nil
}

func (r *fakeCapitalRepo) FindTransactions(ctx context.Context, filter domain.TransactionFilter, limit, offset int) ([]domain.CapitalTransaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CapitalTransaction
	for _, txn := range r.account.Transactions {
		if filter.Type != "" && txn.Type != filter.Type {
			continue
		}
		out = append(out, txn)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// fakeOrderRepo applies the composite operations against the fake capital
// repository and part repository the way the Mongo store does in one
// transaction
type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]*domain.PurchaseOrder
	capital *fakeCapitalRepo
	parts   *fakePartRepo
}

func newFakeOrderRepo(capital *fakeCapitalRepo, parts *fakePartRepo) *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:  make(map[string]*domain.PurchaseOrder),
		capital: capital,
		parts:   parts,
	}
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *domain.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.ClearDomainEvents()
	r.orders[order.PONumber] = order
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order, ok := r.orders[id]; ok {
		return order, nil
	}
	for _, order := range r.orders {
		if order.ID.Hex() == id {
			return order, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) FindByPONumber(ctx context.Context, poNumber string) (*domain.PurchaseOrder, error) {
	return r.FindByID(context.Background(), poNumber)
}

func (r *fakeOrderRepo) FindAll(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]*domain.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PurchaseOrder
	for _, order := range r.orders {
		if status != "" && order.Status != status {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *fakeOrderRepo) Count(ctx context.Context, status domain.OrderStatus) (int64, error) {
	orders, _ := r.FindAll(context.Background(), status, 0, 0)
	return int64(len(orders)), nil
}

func (r *fakeOrderRepo) SubmitWithSpend(ctx context.Context, order *domain.PurchaseOrder, txn domain.CapitalTransaction) error {
	r.capital.mu.Lock()
	defer r.capital.mu.Unlock()

	account := r.capital.account
	if _, err := account.Spend(order.Total, txn.Description, txn.OrderID, txn.Actor); err != nil {
		return err
	}
	return r.Save(ctx, order)
}

func (r *fakeOrderRepo) Transition(ctx context.Context, order *domain.PurchaseOrder, from domain.OrderStatus) error {
	return r.Save(ctx, order)
}

func (r *fakeOrderRepo) CancelWithRefund(ctx context.Context, order *domain.PurchaseOrder, from domain.OrderStatus, txn *domain.CapitalTransaction) error {
	if txn != nil {
		r.capital.mu.Lock()
		if _, err := r.capital.account.Refund(order.Total, txn.Description, txn.OrderID, txn.Actor); err != nil {
			r.capital.mu.Unlock()
			return err
		}
		r.capital.mu.Unlock()
	}
	return r.Save(ctx, order)
}

func (r *fakeOrderRepo) RejectWithRefund(ctx context.Context, order *domain.PurchaseOrder, txn domain.CapitalTransaction) error {
	r.capital.mu.Lock()
	if _, err := r.capital.account.Refund(order.Total, txn.Description, txn.OrderID, txn.Actor); err != nil {
		r.capital.mu.Unlock()
		return err
	}
	r.capital.mu.Unlock()
	return r.Save(ctx, order)
}

func (r *fakeOrderRepo) DeliverWithReceipt(ctx context.Context, order *domain.PurchaseOrder) error {
	for _, item := range order.Items {
		part, _ := r.parts.FindByID(ctx, item.PartID)
		if part != nil {
			if err := part.ReceiveStock(item.Quantity, order.PONumber); err != nil {
				return err
			}
		}
	}
	return r.Save(ctx, order)
}

// fakeAuditRepo records entries in memory
type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditEntry
	appendErr error
}

func (r *fakeAuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) Find(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditEntry
	for _, entry := range r.entries {
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		if filter.Action != "" && string(entry.Action) != filter.Action {
			continue
		}
		out = append(out, entry)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) Summarize(ctx context.Context, since *time.Time) (*domain.AuditSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := &domain.AuditSummary{
		ByEntityType: make(map[string]int64),
		ByAction:     make(map[string]int64),
	}
	for _, entry := range r.entries {
		summary.Total++
		summary.ByEntityType[entry.EntityType]++
		summary.ByAction[string(entry.Action)]++
	}
	return summary, nil
}

// fakeAlertRepo implements the claim-based cooldown in memory
type fakeAlertRepo struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	claimErr error
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{lastSeen: make(map[string]time.Time)}
}

func (r *fakeAlertRepo) Claim(ctx context.Context, partID string, now time.Time, cooldown time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return false, r.claimErr
	}
	if last, ok := r.lastSeen[partID]; ok && now.Sub(last) < cooldown {
		return false, nil
	}
	r.lastSeen[partID] = now
	return true, nil
}

func (r *fakeAlertRepo) LastAlertedAt(ctx context.Context, partID string) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastSeen[partID]; ok {
		return &last, nil
	}
	return nil, nil
}

// fakePublisher captures published events
type fakePublisher struct {
	mu         sync.Mutex
	events     []*cloudevents.CloudEvent
	publishErr error
	failFirst  bool
}

func (p *fakePublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFirst {
		p.failFirst = false
		return errors.New("broker unavailable")
	}
	if p.publishErr != nil {
		return p.publishErr
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []*cloudevents.CloudEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*cloudevents.CloudEvent(nil), p.events...)
}
