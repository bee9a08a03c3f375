package application

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
)

// CapitalService is the sole mutator of the capital account. Order-coupled
// spends and refunds run through the order store's transactions; everything
// else goes through here.
type CapitalService struct {
	repo    domain.CapitalRepository
	audit   *AuditRecorder
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewCapitalService creates a new capital ledger service
func NewCapitalService(repo domain.CapitalRepository, audit *AuditRecorder, logger *logging.Logger, m *metrics.Metrics) *CapitalService {
	return &CapitalService{
		repo:    repo,
		audit:   audit,
		logger:  logger.WithComponent("capital"),
		metrics: m,
	}
}

// Bootstrap creates the singleton account with the default seed if it does
// not exist yet. Called once at process startup; safe under concurrent
// first access because the repository guards the insert.
func (s *CapitalService) Bootstrap(ctx context.Context, seedCents int64, currency string) (*domain.CapitalAccount, error) {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if seedCents <= 0 {
		seedCents = domain.DefaultSeedCents
	}

	seed, err := domain.NewMoney(seedCents, currency)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Bootstrap(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap capital account: %w", err)
	}

	s.metrics.SetCapitalBalance(account.CurrentAmount.Currency(), account.CurrentAmount.Amount())
	s.logger.Info("Capital account ready",
		"currentCents", account.CurrentAmount.Amount(),
		"currency", account.CurrentAmount.Currency(),
	)
	return account, nil
}

// Get returns the current account state
func (s *CapitalService) Get(ctx context.Context) (*domain.CapitalAccount, error) {
	account, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

// Initialize sets the initial balance exactly once
func (s *CapitalService) Initialize(ctx context.Context, cmd InitializeCapitalCommand, actor string) (*domain.CapitalAccount, *domain.CapitalTransaction, error) {
	account, err := s.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	currency := cmd.Currency
	if currency == "" {
		currency = account.CurrentAmount.Currency()
	}
	amount, err := domain.NewMoney(cmd.AmountCents, currency)
	if err != nil {
		return nil, nil, err
	}

	before := capitalSnapshot(account)
	txn, err := account.Initialize(amount, actor)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Apply(ctx, account, txn); err != nil {
		return nil, nil, fmt.Errorf("failed to apply initialization: %w", err)
	}

	s.afterMutation(ctx, account, txn, actor, before)
	return account, &txn, nil
}

// Adjust moves the balance to a corrected value via a signed delta
// transaction; administrative use only
func (s *CapitalService) Adjust(ctx context.Context, cmd AdjustCapitalCommand, actor string) (*domain.CapitalAccount, *domain.CapitalTransaction, error) {
	account, err := s.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	currency := cmd.Currency
	if currency == "" {
		currency = account.CurrentAmount.Currency()
	}
	newAmount, err := domain.NewMoney(cmd.NewAmountCents, currency)
	if err != nil {
		return nil, nil, err
	}

	description := cmd.Description
	if description == "" {
		description = "manual adjustment"
	}

	before := capitalSnapshot(account)
	txn, err := account.Adjust(newAmount, description, actor)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Apply(ctx, account, txn); err != nil {
		return nil, nil, fmt.Errorf("failed to apply adjustment: %w", err)
	}

	s.afterMutation(ctx, account, txn, actor, before)
	return account, &txn, nil
}

// Spend deducts from the balance outside of any order, e.g. direct
// operational charges. Order submissions do not come through here.
func (s *CapitalService) Spend(ctx context.Context, amountCents int64, description, reference, actor string) (*domain.CapitalAccount, *domain.CapitalTransaction, error) {
	account, err := s.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	amount, err := domain.NewMoney(amountCents, account.CurrentAmount.Currency())
	if err != nil {
		return nil, nil, err
	}

	before := capitalSnapshot(account)
	txn, err := account.Spend(amount, description, reference, actor)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Apply(ctx, account, txn); err != nil {
		return nil, nil, fmt.Errorf("failed to apply spend: %w", err)
	}

	s.afterMutation(ctx, account, txn, actor, before)
	return account, &txn, nil
}

// Refund returns funds to the balance
func (s *CapitalService) Refund(ctx context.Context, amountCents int64, description, reference, actor string) (*domain.CapitalAccount, *domain.CapitalTransaction, error) {
	account, err := s.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	amount, err := domain.NewMoney(amountCents, account.CurrentAmount.Currency())
	if err != nil {
		return nil, nil, err
	}

	before := capitalSnapshot(account)
	txn, err := account.Refund(amount, description, reference, actor)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Apply(ctx, account, txn); err != nil {
		return nil, nil, fmt.Errorf("failed to apply refund: %w", err)
	}

	s.afterMutation(ctx, account, txn, actor, before)
	return account, &txn, nil
}

// Transactions returns a page of ledger entries matching the filter
func (s *CapitalService) Transactions(ctx context.Context, filter domain.TransactionFilter, limit, offset int) ([]domain.CapitalTransaction, int64, error) {
	return s.repo.FindTransactions(ctx, filter, limit, offset)
}

func (s *CapitalService) afterMutation(ctx context.Context, account *domain.CapitalAccount, txn domain.CapitalTransaction, actor string, before bson.M) {
	s.metrics.SetCapitalBalance(account.CurrentAmount.Currency(), account.CurrentAmount.Amount())
	s.metrics.RecordCapitalTransaction(string(txn.Type))
	s.audit.Record(ctx, actor, domain.AuditUpdate, domain.EntityCapitalAccount, account.ID.Hex(), before, capitalSnapshot(account))
	s.logger.Info("Capital account mutated",
		"type", string(txn.Type),
		"amountCents", txn.AmountCents,
		"balanceCents", account.CurrentAmount.Amount(),
	)
}

// capitalSnapshot captures the audit-relevant fields of the account
func capitalSnapshot(account *domain.CapitalAccount) bson.M {
	return bson.M{
		"initialCents":     account.InitialAmount.Amount(),
		"currentCents":     account.CurrentAmount.Amount(),
		"totalSpentCents":  account.TotalSpent.Amount(),
		"transactionCount": len(account.Transactions),
	}
}
