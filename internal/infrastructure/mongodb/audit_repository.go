package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	platform "github.com/autoelite-platform/procurement-service/pkg/mongodb"
)

// AuditRepository is the append-only store for audit entries. Nothing
// updates or deletes here.
type AuditRepository struct {
	collection *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	repo := &AuditRepository{collection: db.Collection("audit_logs")}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *AuditRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "entityType", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "actor", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

func (r *AuditRepository) Find(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditEntry, int64, error) {
	query := buildAuditQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(platform.SortDescending("createdAt")).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []*domain.AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Summarize groups the log by entity type and action, optionally bounded
// to entries at or after since
func (r *AuditRepository) Summarize(ctx context.Context, since *time.Time) (*domain.AuditSummary, error) {
	match := bson.M{}
	if since != nil {
		match["createdAt"] = bson.M{"$gte": *since}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"entityType": "$entityType", "action": "$action"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			EntityType string `bson:"entityType"`
			Action     string `bson:"action"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	summary := &domain.AuditSummary{
		ByEntityType: make(map[string]int64),
		ByAction:     make(map[string]int64),
		Since:        since,
	}
	for _, row := range rows {
		summary.Total += row.Count
		summary.ByEntityType[row.ID.EntityType] += row.Count
		summary.ByAction[row.ID.Action] += row.Count
	}
	return summary, nil
}

func buildAuditQuery(filter domain.AuditFilter) bson.M {
	query := bson.M{}
	if filter.EntityType != "" {
		query["entityType"] = filter.EntityType
	}
	if filter.Action != "" {
		query["action"] = filter.Action
	}
	if filter.Actor != "" {
		query["actor"] = filter.Actor
	}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		query["createdAt"] = created
	}
	return query
}
