package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type alertState struct {
	PartID        string    `bson:"_id"`
	LastAlertedAt time.Time `bson:"lastAlertedAt"`
}

// AlertStateRepository tracks when each part was last alerted. Claim is a
// compare-and-claim: of all scans racing on the same part, at most one wins
// per cooldown window.
type AlertStateRepository struct {
	collection *mongo.Collection
}

func NewAlertStateRepository(db *mongo.Database) *AlertStateRepository {
	return &AlertStateRepository{collection: db.Collection("stock_alert_states")}
}

// Claim attempts to take the alert slot for a part. It succeeds when no
// state exists yet or the previous alert is older than the cooldown.
func (r *AlertStateRepository) Claim(ctx context.Context, partID string, now time.Time, cooldown time.Duration) (bool, error) {
	cutoff := now.Add(-cooldown)

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": partID, "lastAlertedAt": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"lastAlertedAt": now}},
	)
	if err != nil {
		return false, err
	}
	if result.ModifiedCount > 0 {
		return true, nil
	}

	// No claimable document; either none exists or the window is active.
	// The unique _id makes the insert race safe.
	_, err = r.collection.InsertOne(ctx, alertState{PartID: partID, LastAlertedAt: now})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// LastAlertedAt returns when the part last alerted, or nil if never
func (r *AlertStateRepository) LastAlertedAt(ctx context.Context, partID string) (*time.Time, error) {
	var state alertState
	err := r.collection.FindOne(ctx, bson.M{"_id": partID}).Decode(&state)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state.LastAlertedAt, nil
}
