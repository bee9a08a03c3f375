package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionType is the closed set of capital ledger transaction types
type TransactionType string

const (
	TxnInitial       TransactionType = "initial"
	TxnPurchaseOrder TransactionType = "purchase_order"
	TxnAdjustment    TransactionType = "adjustment"
	TxnRefund        TransactionType = "refund"
)

// IsValid returns true for a recognized transaction type
func (t TransactionType) IsValid() bool {
	switch t {
	case TxnInitial, TxnPurchaseOrder, TxnAdjustment, TxnRefund:
		return true
	}
	return false
}

// DefaultSeedCents is the balance a fresh capital account is bootstrapped
// with when nobody has initialized it explicitly ($500,000).
const DefaultSeedCents = int64(50_000_000)

// CapitalTransaction is one immutable, signed ledger entry. AmountCents is
// negative for spends and positive for refunds and upward adjustments.
type CapitalTransaction struct {
	ID          string          `bson:"id" json:"id"`
	Type        TransactionType `bson:"type" json:"type"`
	AmountCents int64           `bson:"amountCents" json:"amountCents"`
	Description string          `bson:"description" json:"description"`
	OrderID     string          `bson:"orderId,omitempty" json:"orderId,omitempty"`
	Actor       string          `bson:"actor" json:"actor"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
}

// CapitalAccount is the organization's singleton spendable balance with its
// append-only transaction log. Only the ledger service mutates it.
type CapitalAccount struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	InitialAmount Money                `bson:"initialAmount" json:"initialAmount"`
	CurrentAmount Money                `bson:"currentAmount" json:"currentAmount"`
	TotalSpent    Money                `bson:"totalSpent" json:"totalSpent"`
	Transactions  []CapitalTransaction `bson:"transactions" json:"transactions"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// NewCapitalAccount seeds a fresh account with an initial transaction
func NewCapitalAccount(seed Money, actor string) *CapitalAccount {
	now := time.Now()
	account := &CapitalAccount{
		InitialAmount: seed,
		CurrentAmount: seed,
		TotalSpent:    ZeroMoney(seed.Currency()),
		Transactions:  make([]CapitalTransaction, 0, 1),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if seed.IsPositive() {
		account.Transactions = append(account.Transactions, CapitalTransaction{
			ID:          uuid.New().String(),
			Type:        TxnInitial,
			AmountCents: 0, // the seed lives in initialAmount, not the signed sum
			Description: "initial capital",
			Actor:       actor,
			CreatedAt:   now,
		})
	}

	return account
}

// newTransaction builds a ledger entry with a fresh id
func newTransaction(txnType TransactionType, amountCents int64, description, orderID, actor string) CapitalTransaction {
	return CapitalTransaction{
		ID:          uuid.New().String(),
		Type:        txnType,
		AmountCents: amountCents,
		Description: description,
		OrderID:     orderID,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}
}

// NewSpendTransaction builds the negative ledger entry for an order
// submission. The store applies it together with the guarded balance
// decrement; callers never mutate the account around it.
func NewSpendTransaction(amount Money, description, orderID, actor string) (CapitalTransaction, error) {
	if !amount.IsPositive() {
		return CapitalTransaction{}, ErrInvalidAmount
	}
	return newTransaction(TxnPurchaseOrder, -amount.Amount(), description, orderID, actor), nil
}

// NewRefundTransaction builds the positive ledger entry returning a
// submission spend
func NewRefundTransaction(amount Money, description, orderID, actor string) (CapitalTransaction, error) {
	if !amount.IsPositive() {
		return CapitalTransaction{}, ErrInvalidAmount
	}
	return newTransaction(TxnRefund, amount.Amount(), description, orderID, actor), nil
}

// Spend appends a negative transaction and decrements the balance. Fails
// with ErrInsufficientCapital when amount exceeds the current balance so the
// balance can never go negative.
func (a *CapitalAccount) Spend(amount Money, description, orderID, actor string) (CapitalTransaction, error) {
	if !amount.IsPositive() {
		return CapitalTransaction{}, ErrInvalidAmount
	}

	remaining, err := a.CurrentAmount.Subtract(amount)
	if err == ErrNegativeMoney {
		return CapitalTransaction{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCapital, amount, a.CurrentAmount)
	}
	if err != nil {
		return CapitalTransaction{}, err
	}

	spent, err := a.TotalSpent.Add(amount)
	if err != nil {
		return CapitalTransaction{}, err
	}

	txn := newTransaction(TxnPurchaseOrder, -amount.Amount(), description, orderID, actor)
	a.CurrentAmount = remaining
	a.TotalSpent = spent
	a.Transactions = append(a.Transactions, txn)
	a.UpdatedAt = txn.CreatedAt

	return txn, nil
}

// Refund appends a positive transaction and returns funds to the balance;
// used when a submitted order is cancelled or rejected
func (a *CapitalAccount) Refund(amount Money, description, orderID, actor string) (CapitalTransaction, error) {
	if !amount.IsPositive() {
		return CapitalTransaction{}, ErrInvalidAmount
	}

	restored, err := a.CurrentAmount.Add(amount)
	if err != nil {
		return CapitalTransaction{}, err
	}

	spent, err := a.TotalSpent.Subtract(amount)
	if err == ErrNegativeMoney {
		spent = ZeroMoney(a.TotalSpent.Currency())
	} else if err != nil {
		return CapitalTransaction{}, err
	}

	txn := newTransaction(TxnRefund, amount.Amount(), description, orderID, actor)
	a.CurrentAmount = restored
	a.TotalSpent = spent
	a.Transactions = append(a.Transactions, txn)
	a.UpdatedAt = txn.CreatedAt

	return txn, nil
}

// Adjust moves the balance to newAmount by appending a signed delta
// transaction; administrative corrections only, never tied to an order
func (a *CapitalAccount) Adjust(newAmount Money, description, actor string) (CapitalTransaction, error) {
	if newAmount.Currency() != a.CurrentAmount.Currency() {
		return CapitalTransaction{}, ErrCurrencyMismatch
	}

	delta := newAmount.Amount() - a.CurrentAmount.Amount()
	if delta == 0 {
		return CapitalTransaction{}, ErrInvalidAmount
	}

	txn := newTransaction(TxnAdjustment, delta, description, "", actor)
	a.CurrentAmount = newAmount
	a.Transactions = append(a.Transactions, txn)
	a.UpdatedAt = txn.CreatedAt

	return txn, nil
}

// Initialize sets the initial amount exactly once
func (a *CapitalAccount) Initialize(amount Money, actor string) (CapitalTransaction, error) {
	if a.InitialAmount.IsPositive() {
		return CapitalTransaction{}, ErrAccountInitialized
	}
	if !amount.IsPositive() {
		return CapitalTransaction{}, ErrInvalidAmount
	}

	txn := newTransaction(TxnInitial, 0, "initial capital", "", actor)
	a.InitialAmount = amount
	a.CurrentAmount = amount
	a.Transactions = append(a.Transactions, txn)
	a.UpdatedAt = txn.CreatedAt

	return txn, nil
}

// CheckInvariant verifies currentAmount == initialAmount + sum of signed
// transaction amounts. Used by tests and the integrity endpoint.
func (a *CapitalAccount) CheckInvariant() error {
	var sum int64
	for _, txn := range a.Transactions {
		sum += txn.AmountCents
	}

	expected := a.InitialAmount.Amount() + sum
	if a.CurrentAmount.Amount() != expected {
		return fmt.Errorf("capital invariant violated: current %d, expected %d", a.CurrentAmount.Amount(), expected)
	}
	return nil
}
