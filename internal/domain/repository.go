package domain

import (
	"context"
	"time"
)

// PartRepository defines the interface for part stock record persistence
type PartRepository interface {
	Save(ctx context.Context, part *Part) error
	FindByID(ctx context.Context, id string) (*Part, error)
	FindByCode(ctx context.Context, partCode string) (*Part, error)
	FindAll(ctx context.Context, limit, offset int) ([]*Part, error)
	// FindLowStock selects active parts with reorderLevel > 0 and
	// onHand - reserved <= reorderLevel
	FindLowStock(ctx context.Context) ([]*Part, error)
	Deactivate(ctx context.Context, id string) error
}

// PurchaseOrderRepository defines the interface for order persistence.
// The transition methods commit the status change, any capital movement and
// the outbox event as one atomic unit.
type PurchaseOrderRepository interface {
	Save(ctx context.Context, order *PurchaseOrder) error
	FindByID(ctx context.Context, id string) (*PurchaseOrder, error)
	FindByPONumber(ctx context.Context, poNumber string) (*PurchaseOrder, error)
	FindAll(ctx context.Context, status OrderStatus, limit, offset int) ([]*PurchaseOrder, error)
	Count(ctx context.Context, status OrderStatus) (int64, error)

	// SubmitWithSpend CASes draft to submitted, deducts totalAmount from the
	// capital account and appends the spend transaction atomically. Returns
	// ErrInsufficientCapital without touching the order when funds are short.
	SubmitWithSpend(ctx context.Context, order *PurchaseOrder, txn CapitalTransaction) error

	// Transition CASes the order between two states with no funds movement
	Transition(ctx context.Context, order *PurchaseOrder, from OrderStatus) error

	// CancelWithRefund CASes to cancelled and, when txn is non-nil, returns
	// the submission spend in the same transaction
	CancelWithRefund(ctx context.Context, order *PurchaseOrder, from OrderStatus, txn *CapitalTransaction) error

	// RejectWithRefund CASes submitted back to draft and refunds the spend
	RejectWithRefund(ctx context.Context, order *PurchaseOrder, txn CapitalTransaction) error

	// DeliverWithReceipt CASes approved to delivered and increments each
	// line part's on-hand quantity in the same transaction
	DeliverWithReceipt(ctx context.Context, order *PurchaseOrder) error
}

// TransactionFilter narrows capital transaction queries
type TransactionFilter struct {
	Type TransactionType
	From *time.Time
	To   *time.Time
}

// CapitalRepository is the only component allowed to touch the capital
// account collection
type CapitalRepository interface {
	// Bootstrap creates the singleton account with the seed balance if it
	// does not exist yet; safe under concurrent first access
	Bootstrap(ctx context.Context, seed Money) (*CapitalAccount, error)
	Get(ctx context.Context) (*CapitalAccount, error)
	// Apply persists a balance mutation produced by the domain methods
	Apply(ctx context.Context, account *CapitalAccount, txn CapitalTransaction) error
	FindTransactions(ctx context.Context, filter TransactionFilter, limit, offset int) ([]CapitalTransaction, int64, error)
}

// AuditRepository persists and queries the append-only audit log
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Find(ctx context.Context, filter AuditFilter, limit, offset int) ([]*AuditEntry, int64, error)
	Summarize(ctx context.Context, since *time.Time) (*AuditSummary, error)
}

// AlertStateRepository tracks when each part was last alerted so scans
// within the cooldown window stay silent
type AlertStateRepository interface {
	// Claim records an alert for partID if none was recorded within the
	// cooldown window. Returns true when this caller won the claim; two
	// overlapping scans can never both win.
	Claim(ctx context.Context, partID string, now time.Time, cooldown time.Duration) (bool, error)
	LastAlertedAt(ctx context.Context, partID string) (*time.Time, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}
