package mongodb

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
	platformtesting "github.com/autoelite-platform/procurement-service/pkg/testing"
)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	mongoContainer *platformtesting.MongoDBContainer
	client         *mongo.Client
	db             *mongo.Database
	parts          *PartRepository
	orders         *PurchaseOrderRepository
	capital        *CapitalRepository
	audit          *AuditRepository
	alerts         *AlertStateRepository
	eventFactory   *cloudevents.EventFactory
	ctx            context.Context
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	// Transactions need a replica set
	container, err := platformtesting.NewMongoDBReplicaSetContainer(s.ctx)
	s.Require().NoError(err)
	s.mongoContainer = container

	clientOpts := options.Client().ApplyURI(container.URI).SetDirect(true)
	client, err := mongo.Connect(s.ctx, clientOpts)
	s.Require().NoError(err)
	s.client = client

	err = client.Ping(s.ctx, nil)
	s.Require().NoError(err)

	s.db = client.Database("procurement_test")
	s.eventFactory = cloudevents.NewEventFactory(cloudevents.SourceProcurement)

	s.parts = NewPartRepository(s.db, s.eventFactory)
	s.orders = NewPurchaseOrderRepository(s.db, s.eventFactory)
	s.capital = NewCapitalRepository(s.db, s.eventFactory)
	s.audit = NewAuditRepository(s.db)
	s.alerts = NewAlertStateRepository(s.db)
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Disconnect(s.ctx)
	}
	if s.mongoContainer != nil {
		s.Require().NoError(s.mongoContainer.Close(s.ctx))
	}
}

func (s *RepositoryIntegrationTestSuite) TearDownTest() {
	s.db.Collection("parts").Drop(s.ctx)
	s.db.Collection("purchase_orders").Drop(s.ctx)
	s.db.Collection("capital_account").Drop(s.ctx)
	s.db.Collection("audit_logs").Drop(s.ctx)
	s.db.Collection("stock_alert_states").Drop(s.ctx)
	s.db.Collection("outbox_events").Drop(s.ctx)
}

func TestRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) newPart(code string, onHand, reorderLevel int) *domain.Part {
	part, err := domain.NewPart(code, code+" name", "brakes", 4500, domain.StockLevel{
		OnHand: onHand, ReorderLevel: reorderLevel,
	})
	s.Require().NoError(err)
	s.Require().NoError(s.parts.Save(s.ctx, part))
	return part
}

func (s *RepositoryIntegrationTestSuite) newDraftOrder(part *domain.Part, quantity int) *domain.PurchaseOrder {
	price, err := domain.NewMoney(part.UnitPriceCents, "USD")
	s.Require().NoError(err)
	item, err := domain.NewOrderItem(part.ID.Hex(), part.PartCode, part.Name, quantity, price)
	s.Require().NoError(err)

	order, err := domain.NewPurchaseOrder(
		"SUP-1", "Bosch Distribution",
		[]domain.OrderItem{item},
		domain.ZeroMoney("USD"), domain.ZeroMoney("USD"),
		time.Now().Add(72*time.Hour),
		"", "", "", "",
		"buyer",
	)
	s.Require().NoError(err)
	s.Require().NoError(s.orders.Save(s.ctx, order))
	return order
}

// Part repository

func (s *RepositoryIntegrationTestSuite) TestPartSaveAndFind() {
	part := s.newPart("BRK-PAD-001", 20, 10)

	found, err := s.parts.FindByID(s.ctx, part.ID.Hex())
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal("BRK-PAD-001", found.PartCode)
	s.Equal(20, found.Stock.OnHand)

	byCode, err := s.parts.FindByCode(s.ctx, "BRK-PAD-001")
	s.Require().NoError(err)
	s.Require().NotNil(byCode)
	s.Equal(part.ID, byCode.ID)
}

func (s *RepositoryIntegrationTestSuite) TestPartCodeUnique() {
	s.newPart("BRK-PAD-001", 20, 10)

	dup, err := domain.NewPart("BRK-PAD-001", "Other", "brakes", 100, domain.StockLevel{OnHand: 1})
	s.Require().NoError(err)
	err = s.parts.Save(s.ctx, dup)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrPartCodeExists)
}

func (s *RepositoryIntegrationTestSuite) TestPartFindLowStock() {
	s.newPart("LOW-1", 5, 10)
	s.newPart("OK-1", 50, 10)
	s.newPart("NO-LEVEL", 0, 0)
	inactive := s.newPart("GONE-1", 2, 10)
	s.Require().NoError(s.parts.Deactivate(s.ctx, inactive.ID.Hex()))

	low, err := s.parts.FindLowStock(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(low, 1)
	s.Equal("LOW-1", low[0].PartCode)
}

func (s *RepositoryIntegrationTestSuite) TestPartSaveWritesStockEventsToOutbox() {
	part := s.newPart("BRK-PAD-001", 20, 10)

	s.Require().NoError(part.ReceiveStock(15, "PO-1"))
	s.Require().NoError(s.parts.Save(s.ctx, part))
	s.Empty(part.GetDomainEvents())

	events, err := s.parts.GetOutboxRepository().FindByAggregateID(s.ctx, "BRK-PAD-001")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(cloudevents.StockReceived, events[0].EventType)
}

// Capital repository

func (s *RepositoryIntegrationTestSuite) TestCapitalBootstrapIsIdempotent() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)

	first, err := s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)
	s.Equal(domain.DefaultSeedCents, first.CurrentAmount.Amount())

	// A second bootstrap must return the same account, not reseed it
	bigger, err := domain.NewMoney(domain.DefaultSeedCents*2, "USD")
	s.Require().NoError(err)
	second, err := s.capital.Bootstrap(s.ctx, bigger)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(domain.DefaultSeedCents, second.CurrentAmount.Amount())
}

func (s *RepositoryIntegrationTestSuite) TestCapitalApplyAndReload() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	account, err := s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	amount, err := domain.NewMoney(12_000_000, "USD")
	s.Require().NoError(err)
	txn, err := account.Spend(amount, "tooling", "PO-1", "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.capital.Apply(s.ctx, account, txn))

	reloaded, err := s.capital.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.DefaultSeedCents-12_000_000, reloaded.CurrentAmount.Amount())
	s.Len(reloaded.Transactions, 2)
	s.Require().NoError(reloaded.CheckInvariant())
}

func (s *RepositoryIntegrationTestSuite) TestCapitalApplyRejectsStaleAccount() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	account, err := s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	stale, err := s.capital.Get(s.ctx)
	s.Require().NoError(err)

	amount, err := domain.NewMoney(1000, "USD")
	s.Require().NoError(err)
	txn, err := account.Spend(amount, "first", "", "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.capital.Apply(s.ctx, account, txn))

	staleTxn, err := stale.Spend(amount, "second", "", "buyer")
	s.Require().NoError(err)
	err = s.capital.Apply(s.ctx, stale, staleTxn)
	s.Require().Error(err)
	s.Contains(err.Error(), "concurrently")
}

func (s *RepositoryIntegrationTestSuite) TestCapitalFindTransactionsFilter() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	account, err := s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	amount, err := domain.NewMoney(1000, "USD")
	s.Require().NoError(err)
	txn, err := account.Spend(amount, "spend", "PO-1", "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.capital.Apply(s.ctx, account, txn))

	txn, err = account.Refund(amount, "refund", "PO-1", "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.capital.Apply(s.ctx, account, txn))

	spends, total, err := s.capital.FindTransactions(s.ctx, domain.TransactionFilter{Type: domain.TxnPurchaseOrder}, 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(spends, 1)
	s.Equal(int64(-1000), spends[0].AmountCents)

	all, total, err := s.capital.FindTransactions(s.ctx, domain.TransactionFilter{}, 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(all, 3)
}

// Purchase order repository

func (s *RepositoryIntegrationTestSuite) TestOrderSaveWritesCreatedEventToOutbox() {
	part := s.newPart("BRK-PAD-001", 20, 10)
	order := s.newDraftOrder(part, 10)

	found, err := s.orders.FindByPONumber(s.ctx, order.PONumber)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(domain.StatusDraft, found.Status)

	events, err := s.orders.GetOutboxRepository().FindByAggregateID(s.ctx, order.PONumber)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(cloudevents.OrderCreated, events[0].EventType)
}

func (s *RepositoryIntegrationTestSuite) TestSubmitWithSpendDeductsCapital() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	_, err = s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	part := s.newPart("BRK-PAD-001", 20, 10)
	order := s.newDraftOrder(part, 10) // 10 * 4500 = 45000

	s.Require().NoError(order.Submit("buyer", domain.RoleInventoryManager))
	txn, err := domain.NewSpendTransaction(order.Total, "purchase order", order.PONumber, "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.orders.SubmitWithSpend(s.ctx, order, txn))

	account, err := s.capital.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.DefaultSeedCents-45000, account.CurrentAmount.Amount())
	s.Equal(int64(45000), account.TotalSpent.Amount())

	stored, err := s.orders.FindByPONumber(s.ctx, order.PONumber)
	s.Require().NoError(err)
	s.Equal(domain.StatusSubmitted, stored.Status)
}

func (s *RepositoryIntegrationTestSuite) TestSubmitWithSpendInsufficientFundsRollsBack() {
	seed, err := domain.NewMoney(1000, "USD")
	s.Require().NoError(err)
	_, err = s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	part := s.newPart("BRK-PAD-001", 20, 10)
	order := s.newDraftOrder(part, 10)

	s.Require().NoError(order.Submit("buyer", domain.RoleInventoryManager))
	txn, err := domain.NewSpendTransaction(order.Total, "purchase order", order.PONumber, "buyer")
	s.Require().NoError(err)
	err = s.orders.SubmitWithSpend(s.ctx, order, txn)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrInsufficientCapital)

	// The status write rolled back with the failed spend
	stored, err := s.orders.FindByPONumber(s.ctx, order.PONumber)
	s.Require().NoError(err)
	s.Equal(domain.StatusDraft, stored.Status)

	account, err := s.capital.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1000), account.CurrentAmount.Amount())
}

func (s *RepositoryIntegrationTestSuite) TestDeliverWithReceiptIncrementsStock() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	_, err = s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	part := s.newPart("BRK-PAD-001", 20, 10)
	order := s.newDraftOrder(part, 10)

	s.Require().NoError(order.Submit("buyer", domain.RoleInventoryManager))
	txn, err := domain.NewSpendTransaction(order.Total, "purchase order", order.PONumber, "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.orders.SubmitWithSpend(s.ctx, order, txn))

	s.Require().NoError(order.Approve("mgr", domain.RoleManager, ""))
	s.Require().NoError(s.orders.Transition(s.ctx, order, domain.StatusSubmitted))

	s.Require().NoError(order.Deliver("buyer", domain.RoleInventoryManager))
	s.Require().NoError(s.orders.DeliverWithReceipt(s.ctx, order))

	stored, err := s.parts.FindByID(s.ctx, part.ID.Hex())
	s.Require().NoError(err)
	s.Equal(30, stored.Stock.OnHand)

	events, err := s.parts.GetOutboxRepository().FindByAggregateID(s.ctx, "BRK-PAD-001")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(cloudevents.StockReceived, events[0].EventType)
}

func (s *RepositoryIntegrationTestSuite) TestSubmitWithSpendConcurrentDeductsOnce() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	_, err = s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	part := s.newPart("BRK-PAD-001", 20, 10)
	order := s.newDraftOrder(part, 10) // 10 * 4500 = 45000

	// Several callers race to submit the same draft; the status CAS must
	// let exactly one spend through
	const callers = 8
	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			loaded, err := s.orders.FindByPONumber(s.ctx, order.PONumber)
			if err != nil || loaded == nil {
				return
			}
			if err := loaded.Submit("buyer", domain.RoleInventoryManager); err != nil {
				return
			}
			txn, err := domain.NewSpendTransaction(loaded.Total, "purchase order", loaded.PONumber, "buyer")
			if err != nil {
				return
			}
			if err := s.orders.SubmitWithSpend(s.ctx, loaded, txn); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())

	account, err := s.capital.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.DefaultSeedCents-45000, account.CurrentAmount.Amount())
	s.Equal(int64(45000), account.TotalSpent.Amount())

	spends := 0
	for _, txn := range account.Transactions {
		if txn.Type == domain.TxnPurchaseOrder {
			spends++
		}
	}
	s.Equal(1, spends)

	stored, err := s.orders.FindByPONumber(s.ctx, order.PONumber)
	s.Require().NoError(err)
	s.Equal(domain.StatusSubmitted, stored.Status)
}

func (s *RepositoryIntegrationTestSuite) TestDeliverWithReceiptRejectsExceedingMaxLevel() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	_, err = s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	part, err := domain.NewPart("BRK-PAD-001", "BRK-PAD-001 name", "brakes", 4500, domain.StockLevel{
		OnHand: 95, ReorderLevel: 10, MaxLevel: 100,
	})
	s.Require().NoError(err)
	s.Require().NoError(s.parts.Save(s.ctx, part))

	order := s.newDraftOrder(part, 10) // would land at 105 on hand

	s.Require().NoError(order.Submit("buyer", domain.RoleInventoryManager))
	txn, err := domain.NewSpendTransaction(order.Total, "purchase order", order.PONumber, "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.orders.SubmitWithSpend(s.ctx, order, txn))
	s.Require().NoError(order.Approve("mgr", domain.RoleManager, ""))
	s.Require().NoError(s.orders.Transition(s.ctx, order, domain.StatusSubmitted))

	s.Require().NoError(order.Deliver("buyer", domain.RoleInventoryManager))
	err = s.orders.DeliverWithReceipt(s.ctx, order)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrInvalidStockLevels)

	// Everything rolled back with the failed receipt
	stored, err := s.parts.FindByID(s.ctx, part.ID.Hex())
	s.Require().NoError(err)
	s.Equal(95, stored.Stock.OnHand)

	storedOrder, err := s.orders.FindByPONumber(s.ctx, order.PONumber)
	s.Require().NoError(err)
	s.Equal(domain.StatusApproved, storedOrder.Status)
}

func (s *RepositoryIntegrationTestSuite) TestCancelWithRefundRestoresBalance() {
	seed, err := domain.NewMoney(domain.DefaultSeedCents, "USD")
	s.Require().NoError(err)
	_, err = s.capital.Bootstrap(s.ctx, seed)
	s.Require().NoError(err)

	part := s.newPart("BRK-PAD-001", 20, 10)
	order := s.newDraftOrder(part, 10)

	s.Require().NoError(order.Submit("buyer", domain.RoleInventoryManager))
	txn, err := domain.NewSpendTransaction(order.Total, "purchase order", order.PONumber, "buyer")
	s.Require().NoError(err)
	s.Require().NoError(s.orders.SubmitWithSpend(s.ctx, order, txn))

	from := order.Status
	s.Require().NoError(order.Cancel("mgr", domain.RoleManager, "budget cut"))
	refund, err := domain.NewRefundTransaction(order.Total, "cancelled", order.PONumber, "mgr")
	s.Require().NoError(err)
	s.Require().NoError(s.orders.CancelWithRefund(s.ctx, order, from, &refund))

	account, err := s.capital.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.DefaultSeedCents, account.CurrentAmount.Amount())
	s.Equal(int64(0), account.TotalSpent.Amount())
	s.Require().NoError(account.CheckInvariant())
}

func (s *RepositoryIntegrationTestSuite) TestTransitionRejectsStaleStatus() {
	part := s.newPart("BRK-PAD-001", 20, 10)
	order := s.newDraftOrder(part, 10)

	// Pretend another writer already moved the order on
	s.Require().NoError(order.Submit("buyer", domain.RoleInventoryManager))
	err := s.orders.Transition(s.ctx, order, domain.StatusSubmitted)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

// Audit repository

func (s *RepositoryIntegrationTestSuite) TestAuditAppendFindSummarize() {
	entry := domain.NewAuditEntry("clerk", domain.AuditCreate, domain.EntityPart, "BRK-1", nil, nil)
	s.Require().NoError(s.audit.Append(s.ctx, entry))
	entry = domain.NewAuditEntry("buyer", domain.AuditUpdate, domain.EntityPurchaseOrder, "PO-1", nil, nil)
	s.Require().NoError(s.audit.Append(s.ctx, entry))

	entries, total, err := s.audit.Find(s.ctx, domain.AuditFilter{EntityType: domain.EntityPart}, 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(entries, 1)
	s.Equal("clerk", entries[0].Actor)

	summary, err := s.audit.Summarize(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(2), summary.Total)
	s.Equal(int64(1), summary.ByEntityType[domain.EntityPart])
}

// Alert state repository

func (s *RepositoryIntegrationTestSuite) TestAlertClaimCooldown() {
	now := time.Now()
	cooldown := time.Hour

	claimed, err := s.alerts.Claim(s.ctx, "part-1", now, cooldown)
	s.Require().NoError(err)
	s.True(claimed)

	again, err := s.alerts.Claim(s.ctx, "part-1", now.Add(10*time.Minute), cooldown)
	s.Require().NoError(err)
	s.False(again)

	later, err := s.alerts.Claim(s.ctx, "part-1", now.Add(2*time.Hour), cooldown)
	s.Require().NoError(err)
	s.True(later)

	last, err := s.alerts.LastAlertedAt(s.ctx, "part-1")
	s.Require().NoError(err)
	s.Require().NotNil(last)
	s.WithinDuration(now.Add(2*time.Hour), *last, time.Second)
}
