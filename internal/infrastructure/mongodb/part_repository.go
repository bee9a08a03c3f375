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
	platform "github.com/autoelite-platform/procurement-service/pkg/mongodb"
	"github.com/autoelite-platform/procurement-service/pkg/cloudevents"
	"github.com/autoelite-platform/procurement-service/pkg/kafka"
	"github.com/autoelite-platform/procurement-service/pkg/outbox"
	outboxMongo "github.com/autoelite-platform/procurement-service/pkg/outbox/mongodb"
)

type PartRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewPartRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *PartRepository {
	collection := db.Collection("parts")
	outboxRepo := outboxMongo.NewOutboxRepository(db)

	repo := &PartRepository{
		collection:   collection,
		db:           db,
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
	repo.ensureIndexes(context.Background())
	_ = outboxRepo.EnsureIndexes(context.Background())

	return repo
}

func (r *PartRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "partCode", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "stock.reorderLevel", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save upserts the part and writes any pending stock events to the outbox
// in the same transaction
func (r *PartRepository) Save(ctx context.Context, part *domain.Part) error {
	part.UpdatedAt = time.Now()
	if part.ID.IsZero() {
		part.ID = primitive.NewObjectID()
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Update().SetUpsert(true)
		filter := bson.M{"_id": part.ID}
		update := bson.M{"$set": part}

		if _, err := r.collection.UpdateOne(sessCtx, filter, update, opts); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, fmt.Errorf("%w: %s", domain.ErrPartCodeExists, part.PartCode)
			}
			return nil, fmt.Errorf("failed to save part: %w", err)
		}

		if err := r.saveStockEvents(sessCtx, part); err != nil {
			return nil, err
		}
		part.ClearDomainEvents()

		return nil, nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func (r *PartRepository) saveStockEvents(sessCtx mongo.SessionContext, part *domain.Part) error {
	domainEvents := part.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		var cloudEvent *cloudevents.CloudEvent
		switch e := event.(type) {
		case *domain.StockReceivedEvent:
			cloudEvent = r.eventFactory.CreateStockReceivedEvent(sessCtx, e.PartID, e.PartCode, e.Quantity, e.NewOnHand, e.OrderID)
		case *domain.StockAdjustedEvent:
			cloudEvent = r.eventFactory.CreateEvent(sessCtx, e.EventType(), "part/"+e.PartID, e)
		default:
			continue
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			part.PartCode,
			"Part",
			kafka.Topics.StockEvents,
			cloudEvent,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	if len(outboxEvents) > 0 {
		if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
			return fmt.Errorf("failed to save outbox events: %w", err)
		}
	}
	return nil
}

func (r *PartRepository) FindByID(ctx context.Context, id string) (*domain.Part, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var part domain.Part
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&part)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &part, err
}

func (r *PartRepository) FindByCode(ctx context.Context, partCode string) (*domain.Part, error) {
	var part domain.Part
	err := r.collection.FindOne(ctx, bson.M{"partCode": partCode}).Decode(&part)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &part, err
}

func (r *PartRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Part, error) {
	opts := options.Find().
		SetSort(platform.SortAscending("partCode")).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var parts []*domain.Part
	err = cursor.All(ctx, &parts)
	return parts, err
}

// FindLowStock returns active parts whose available quantity (onHand minus
// reserved) is at or below a positive reorder level
func (r *PartRepository) FindLowStock(ctx context.Context) ([]*domain.Part, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"isActive":           true,
		"stock.reorderLevel": bson.M{"$gt": 0},
		"$expr": bson.M{
			"$lte": bson.A{
				bson.M{"$subtract": bson.A{"$stock.onHand", "$stock.reserved"}},
				"$stock.reorderLevel",
			},
		},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var parts []*domain.Part
	err = cursor.All(ctx, &parts)
	return parts, err
}

func (r *PartRepository) Deactivate(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrPartNotFound, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPartNotFound, id)
	}
	return nil
}

// GetOutboxRepository returns the outbox repository for this service
func (r *PartRepository) GetOutboxRepository() outbox.Repository {
	return r.outboxRepo
}
