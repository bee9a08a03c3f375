package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditAction is the closed set of recorded mutation kinds
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// Audited entity types
const (
	EntityPart           = "Part"
	EntityPurchaseOrder  = "PurchaseOrder"
	EntityCapitalAccount = "CapitalAccount"
)

// AuditEntry is one immutable before/after snapshot of a mutation.
// Entries are append-only; nothing updates or deletes them.
type AuditEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Actor      string             `bson:"actor" json:"actor"`
	Action     AuditAction        `bson:"action" json:"action"`
	EntityType string             `bson:"entityType" json:"entityType"`
	EntityID   string             `bson:"entityId" json:"entityId"`
	Before     bson.M             `bson:"before,omitempty" json:"before,omitempty"`
	After      bson.M             `bson:"after,omitempty" json:"after,omitempty"`
	Source     string             `bson:"source,omitempty" json:"source,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// NewAuditEntry builds an entry stamped with the current time
func NewAuditEntry(actor string, action AuditAction, entityType, entityID string, before, after bson.M) *AuditEntry {
	return &AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		CreatedAt:  time.Now(),
	}
}

// AuditFilter narrows audit log queries
type AuditFilter struct {
	EntityType string
	Action     string
	Actor      string
	From       *time.Time
	To         *time.Time
}

// AuditSummary is the aggregate view over the audit log
type AuditSummary struct {
	Total        int64            `json:"total"`
	ByEntityType map[string]int64 `json:"byEntityType"`
	ByAction     map[string]int64 `json:"byAction"`
	Since        *time.Time       `json:"since,omitempty"`
}
