package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	outboxMongo "github.com/autoelite-platform/procurement-service/pkg/outbox/mongodb"
)

// Migration tool to prepare a procurement database: creates all collection
// indexes up front and seeds the capital account if it does not exist yet.
// Repositories also create their indexes lazily, so this tool is for fresh
// environments and CI, not a hard prerequisite.

var (
	mongoURI  = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName    = flag.String("db", "procurement_db", "Database name")
	seedCents = flag.Int64("seed-cents", domain.DefaultSeedCents, "Capital account seed balance in cents")
	skipSeed  = flag.Bool("skip-seed", false, "Skip capital account seeding")
)

func main() {
	flag.Parse()

	log.Printf("Starting procurement database migration...")
	log.Printf("MongoDB URI: %s", *mongoURI)
	log.Printf("Database: %s", *dbName)

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	log.Println("Connected to MongoDB successfully")

	db := client.Database(*dbName)

	if err := createIndexes(context.Background(), db); err != nil {
		log.Fatalf("Index creation failed: %v", err)
	}

	if !*skipSeed {
		if err := seedCapitalAccount(context.Background(), db, *seedCents); err != nil {
			log.Fatalf("Capital account seeding failed: %v", err)
		}
	}

	log.Println("Migration completed successfully!")
}

func createIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"parts": {
			{
				Keys:    bson.D{{Key: "partCode", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "stock.reorderLevel", Value: 1}}},
		},
		"purchase_orders": {
			{
				Keys:    bson.D{{Key: "poNumber", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "supplierId", Value: 1}}},
		},
		"audit_logs": {
			{Keys: bson.D{{Key: "entityType", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "actor", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}

	for collection, models := range indexes {
		created, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
		log.Printf("Collection %s: %d indexes ensured", collection, len(created))
	}

	// The outbox collection carries named indexes including a TTL on
	// published events, so delegate to the repository
	if err := outboxMongo.NewOutboxRepository(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	log.Println("Collection outbox_events: indexes ensured")

	return nil
}

func seedCapitalAccount(ctx context.Context, db *mongo.Database, seedCents int64) error {
	seed, err := domain.NewMoney(seedCents, domain.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("invalid seed amount: %w", err)
	}
	account := domain.NewCapitalAccount(seed, "migration")

	// Upsert on the empty filter so concurrent runs converge on one document
	result, err := db.Collection("capital_account").UpdateOne(
		ctx,
		bson.M{},
		bson.M{"$setOnInsert": account},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to seed capital account: %w", err)
	}

	if result.UpsertedCount > 0 {
		log.Printf("Capital account seeded with %d cents", seedCents)
	} else {
		log.Println("Capital account already exists, seed skipped")
	}

	return nil
}
