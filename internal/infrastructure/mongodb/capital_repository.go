package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
	"github.com/autoelite-platform/procurement-service/pkg/kafka"
	"github.com/autoelite-platform/procurement-service/pkg/outbox"
	outboxMongo "github.com/autoelite-platform/procurement-service/pkg/outbox/mongodb"
)

// CapitalRepository persists the singleton capital account. The collection
// holds exactly one document; Bootstrap's guarded upsert keeps it that way
// under concurrent startups.
type CapitalRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewCapitalRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *CapitalRepository {
	repo := &CapitalRepository{
		collection:   db.Collection("capital_account"),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
	_ = repo.outboxRepo.EnsureIndexes(context.Background())

	return repo
}

// Bootstrap inserts the seeded account if none exists and returns whatever
// document wins. Concurrent callers race on the upsert; exactly one insert
// happens.
func (r *CapitalRepository) Bootstrap(ctx context.Context, seed domain.Money) (*domain.CapitalAccount, error) {
	account := domain.NewCapitalAccount(seed, "system")
	account.ID = primitive.NewObjectID()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored domain.CapitalAccount
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{},
		bson.M{"$setOnInsert": account},
		opts,
	).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap capital account: %w", err)
	}
	return &stored, nil
}

func (r *CapitalRepository) Get(ctx context.Context) (*domain.CapitalAccount, error) {
	var account domain.CapitalAccount
	err := r.collection.FindOne(ctx, bson.M{}).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &account, err
}

// Apply persists a mutated account together with its new ledger entry and
// the matching outbox event. The transaction count guard rejects writes
// racing another mutation; callers reload and retry.
func (r *CapitalRepository) Apply(ctx context.Context, account *domain.CapitalAccount, txn domain.CapitalTransaction) error {
	account.UpdatedAt = time.Now()

	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		result, err := r.collection.ReplaceOne(sessCtx,
			bson.M{
				"_id":          account.ID,
				"transactions": bson.M{"$size": len(account.Transactions) - 1},
			},
			account,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save capital account: %w", err)
		}
		if result.MatchedCount == 0 {
			return nil, fmt.Errorf("capital account was modified concurrently, retry the operation")
		}

		cloudEvent := r.eventFactory.CreateCapitalTransactionEvent(sessCtx,
			capitalEventType(txn.Type),
			txn.ID,
			string(txn.Type),
			txn.AmountCents,
			account.CurrentAmount.Amount(),
			account.CurrentAmount.Currency(),
			txn.OrderID,
			txn.Description,
		)
		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			account.ID.Hex(),
			"CapitalAccount",
			kafka.Topics.CapitalEvents,
			cloudEvent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		if err := r.outboxRepo.Save(sessCtx, outboxEvent); err != nil {
			return nil, fmt.Errorf("failed to save outbox event: %w", err)
		}

		return nil, nil
	})

	if err != nil {
		return err
	}
	return nil
}

// FindTransactions pages through the embedded ledger, newest first
func (r *CapitalRepository) FindTransactions(ctx context.Context, filter domain.TransactionFilter, limit, offset int) ([]domain.CapitalTransaction, int64, error) {
	match := bson.M{}
	if filter.Type != "" {
		match["transactions.type"] = filter.Type
	}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		match["transactions.createdAt"] = created
	}

	countPipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$transactions"}},
		{{Key: "$match", Value: match}},
		{{Key: "$count", Value: "total"}},
	}
	cursor, err := r.collection.Aggregate(ctx, countPipeline)
	if err != nil {
		return nil, 0, err
	}
	var counts []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, 0, err
	}
	var total int64
	if len(counts) > 0 {
		total = counts[0].Total
	}

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$transactions"}},
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "transactions.createdAt", Value: -1}}}},
		{{Key: "$skip", Value: int64(offset)}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$transactions"}}})

	cursor, err = r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var txns []domain.CapitalTransaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func capitalEventType(txnType domain.TransactionType) string {
	switch txnType {
	case domain.TxnInitial:
		return cloudevents.CapitalInitialized
	case domain.TxnAdjustment:
		return cloudevents.CapitalAdjusted
	case domain.TxnRefund:
		return cloudevents.CapitalRefunded
	default:
		return cloudevents.CapitalSpent
	}
}
