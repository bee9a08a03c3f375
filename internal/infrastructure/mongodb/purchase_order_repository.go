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

// PurchaseOrderRepository persists orders and runs the composite operations
// that must change an order, the capital account and stock together. All
// funds guards live here as conditional updates, so concurrent submissions
// can never overdraw the balance no matter what the callers saw in memory.
type PurchaseOrderRepository struct {
	collection   *mongo.Collection
	capital      *mongo.Collection
	parts        *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewPurchaseOrderRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *PurchaseOrderRepository {
	repo := &PurchaseOrderRepository{
		collection:   db.Collection("purchase_orders"),
		capital:      db.Collection("capital_account"),
		parts:        db.Collection("parts"),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
	repo.ensureIndexes(context.Background())
	_ = repo.outboxRepo.EnsureIndexes(context.Background())

	return repo
}

func (r *PurchaseOrderRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "poNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "supplierId", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save upserts the order and writes its pending events to the outbox in the
// same transaction
func (r *PurchaseOrderRepository) Save(ctx context.Context, order *domain.PurchaseOrder) error {
	order.UpdatedAt = time.Now()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Update().SetUpsert(true)
		filter := bson.M{"_id": order.ID}
		update := bson.M{"$set": order}

		if _, err := r.collection.UpdateOne(sessCtx, filter, update, opts); err != nil {
			return nil, fmt.Errorf("failed to save purchase order: %w", err)
		}

		if err := r.saveOrderEvents(sessCtx, order); err != nil {
			return nil, err
		}
		order.ClearDomainEvents()

		return nil, nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// SubmitWithSpend persists the submitted order and deducts its total from
// the capital account in one transaction. The status filter catches
// concurrent transitions; the balance filter catches overdrafts. Either
// failing aborts the whole transaction.
func (r *PurchaseOrderRepository) SubmitWithSpend(ctx context.Context, order *domain.PurchaseOrder, txn domain.CapitalTransaction) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := r.casOrder(sessCtx, order, domain.StatusDraft); err != nil {
			return nil, err
		}
		if err := r.applySpend(sessCtx, order.Total.Amount(), txn); err != nil {
			return nil, err
		}
		if err := r.saveOrderEvents(sessCtx, order); err != nil {
			return nil, err
		}
		order.ClearDomainEvents()
		return nil, nil
	})

	if err != nil {
		return err
	}
	return nil
}

// Transition persists a transition with no funds movement, guarded by the
// expected previous status
func (r *PurchaseOrderRepository) Transition(ctx context.Context, order *domain.PurchaseOrder, from domain.OrderStatus) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := r.casOrder(sessCtx, order, from); err != nil {
			return nil, err
		}
		if err := r.saveOrderEvents(sessCtx, order); err != nil {
			return nil, err
		}
		order.ClearDomainEvents()
		return nil, nil
	})

	return err
}

// CancelWithRefund persists the cancellation and, when the order had been
// submitted, returns its total to the capital account
func (r *PurchaseOrderRepository) CancelWithRefund(ctx context.Context, order *domain.PurchaseOrder, from domain.OrderStatus, txn *domain.CapitalTransaction) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := r.casOrder(sessCtx, order, from); err != nil {
			return nil, err
		}
		if txn != nil {
			if err := r.applyRefund(sessCtx, order.Total.Amount(), *txn); err != nil {
				return nil, err
			}
		}
		if err := r.saveOrderEvents(sessCtx, order); err != nil {
			return nil, err
		}
		order.ClearDomainEvents()
		return nil, nil
	})

	return err
}

// RejectWithRefund sends a submitted order back to draft and returns its
// total to the capital account
func (r *PurchaseOrderRepository) RejectWithRefund(ctx context.Context, order *domain.PurchaseOrder, txn domain.CapitalTransaction) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := r.casOrder(sessCtx, order, domain.StatusSubmitted); err != nil {
			return nil, err
		}
		if err := r.applyRefund(sessCtx, order.Total.Amount(), txn); err != nil {
			return nil, err
		}
		if err := r.saveOrderEvents(sessCtx, order); err != nil {
			return nil, err
		}
		order.ClearDomainEvents()
		return nil, nil
	})

	return err
}

// DeliverWithReceipt persists the delivery and receives each line's
// quantity into stock, emitting a stock received event per line
func (r *PurchaseOrderRepository) DeliverWithReceipt(ctx context.Context, order *domain.PurchaseOrder) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := r.casOrder(sessCtx, order, domain.StatusApproved); err != nil {
			return nil, err
		}

		outboxEvents := make([]*outbox.OutboxEvent, 0, len(order.Items))
		for _, item := range order.Items {
			partID, err := primitive.ObjectIDFromHex(item.PartID)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrPartNotFound, item.PartID)
			}

			after := options.FindOneAndUpdate().SetReturnDocument(options.After)
			var part domain.Part
			err = r.parts.FindOneAndUpdate(sessCtx,
				bson.M{
					"_id":      partID,
					"isActive": true,
					// Same cap the aggregate enforces on manual receipts
					"$or": []bson.M{
						{"stock.maxLevel": 0},
						{"$expr": bson.M{"$lte": []interface{}{
							bson.M{"$add": []interface{}{"$stock.onHand", item.Quantity}},
							"$stock.maxLevel",
						}}},
					},
				},
				bson.M{
					"$inc": bson.M{"stock.onHand": item.Quantity},
					"$set": bson.M{"updatedAt": time.Now()},
				},
				after,
			).Decode(&part)
			if err == mongo.ErrNoDocuments {
				count, countErr := r.parts.CountDocuments(sessCtx, bson.M{"_id": partID, "isActive": true})
				if countErr == nil && count > 0 {
					return nil, fmt.Errorf("%w: receiving %d of %s would exceed max level", domain.ErrInvalidStockLevels, item.Quantity, item.PartCode)
				}
				return nil, fmt.Errorf("%w: %s", domain.ErrPartNotFound, item.PartID)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to receive stock for part %s: %w", item.PartCode, err)
			}

			cloudEvent := r.eventFactory.CreateStockReceivedEvent(
				sessCtx, item.PartID, item.PartCode, item.Quantity, part.Stock.OnHand, order.PONumber,
			)
			outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(item.PartCode, "Part", kafka.Topics.StockEvents, cloudEvent)
			if err != nil {
				return nil, fmt.Errorf("failed to create outbox event: %w", err)
			}
			outboxEvents = append(outboxEvents, outboxEvent)
		}

		if len(outboxEvents) > 0 {
			if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
				return nil, fmt.Errorf("failed to save outbox events: %w", err)
			}
		}

		if err := r.saveOrderEvents(sessCtx, order); err != nil {
			return nil, err
		}
		order.ClearDomainEvents()
		return nil, nil
	})

	return err
}

// casOrder writes the order's new state only if the stored status still
// matches what the caller transitioned from
func (r *PurchaseOrderRepository) casOrder(sessCtx mongo.SessionContext, order *domain.PurchaseOrder, from domain.OrderStatus) error {
	order.UpdatedAt = time.Now()

	result, err := r.collection.UpdateOne(sessCtx,
		bson.M{"_id": order.ID, "status": from},
		bson.M{"$set": order},
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase order: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: order %s is no longer %s", domain.ErrInvalidTransition, order.PONumber, from)
	}
	return nil
}

// applySpend decrements the balance only while it covers the amount
func (r *PurchaseOrderRepository) applySpend(sessCtx mongo.SessionContext, amountCents int64, txn domain.CapitalTransaction) error {
	result, err := r.capital.UpdateOne(sessCtx,
		bson.M{"currentAmount.amount": bson.M{"$gte": amountCents}},
		bson.M{
			"$inc": bson.M{
				"currentAmount.amount": -amountCents,
				"totalSpent.amount":    amountCents,
			},
			"$push": bson.M{"transactions": txn},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to apply capital spend: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: order requires %d cents", domain.ErrInsufficientCapital, amountCents)
	}
	return nil
}

// applyRefund returns funds to the balance. Order refunds always pair an
// earlier spend of the same amount, so totalSpent cannot go negative here.
func (r *PurchaseOrderRepository) applyRefund(sessCtx mongo.SessionContext, amountCents int64, txn domain.CapitalTransaction) error {
	result, err := r.capital.UpdateOne(sessCtx,
		bson.M{},
		bson.M{
			"$inc": bson.M{
				"currentAmount.amount": amountCents,
				"totalSpent.amount":    -amountCents,
			},
			"$push": bson.M{"transactions": txn},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to apply capital refund: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *PurchaseOrderRepository) saveOrderEvents(sessCtx mongo.SessionContext, order *domain.PurchaseOrder) error {
	domainEvents := order.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		var cloudEvent *cloudevents.CloudEvent
		switch e := event.(type) {
		case *domain.OrderCreatedEvent:
			cloudEvent = r.eventFactory.CreateOrderCreatedEvent(sessCtx,
				e.OrderID, e.PONumber, e.SupplierName, e.LineCount, e.TotalCents, e.Currency, e.CreatedBy)
		case *domain.OrderStatusChangedEvent:
			cloudEvent = r.eventFactory.CreateOrderStatusChangedEvent(sessCtx,
				e.OrderID, e.PONumber, e.FromStatus, e.ToStatus, e.Actor, e.TotalCents, e.Currency)
		default:
			continue
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			order.PONumber,
			"PurchaseOrder",
			kafka.Topics.OrderEvents,
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

// FindByID accepts either the document id or the PO number
func (r *PurchaseOrderRepository) FindByID(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	if objectID, err := primitive.ObjectIDFromHex(id); err == nil {
		var order domain.PurchaseOrder
		err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return &order, err
	}
	return r.FindByPONumber(ctx, id)
}

func (r *PurchaseOrderRepository) FindByPONumber(ctx context.Context, poNumber string) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	err := r.collection.FindOne(ctx, bson.M{"poNumber": poNumber}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &order, err
}

func (r *PurchaseOrderRepository) FindAll(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]*domain.PurchaseOrder, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(platform.SortDescending("createdAt")).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var orders []*domain.PurchaseOrder
	err = cursor.All(ctx, &orders)
	return orders, err
}

func (r *PurchaseOrderRepository) Count(ctx context.Context, status domain.OrderStatus) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.collection.CountDocuments(ctx, filter)
}

// GetOutboxRepository returns the outbox repository for this service
func (r *PurchaseOrderRepository) GetOutboxRepository() outbox.Repository {
	return r.outboxRepo
}
