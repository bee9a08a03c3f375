package application

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
)

// AuditRecorder persists before/after snapshots of every mutation. Record
// never fails the calling operation: a broken audit trail is reported
// through logs and metrics, not by unwinding business writes.
type AuditRecorder struct {
	repo    domain.AuditRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder(repo domain.AuditRepository, logger *logging.Logger, m *metrics.Metrics) *AuditRecorder {
	return &AuditRecorder{
		repo:    repo,
		logger:  logger.WithComponent("audit"),
		metrics: m,
	}
}

// Record appends one audit entry. Errors are swallowed by contract.
func (r *AuditRecorder) Record(ctx context.Context, actor string, action domain.AuditAction, entityType, entityID string, before, after bson.M) {
	entry := domain.NewAuditEntry(actor, action, entityType, entityID, before, after)

	if err := r.repo.Append(ctx, entry); err != nil {
		r.logger.WithError(err).Error("Failed to append audit entry",
			"action", string(action),
			"entityType", entityType,
			"entityId", entityID,
		)
		if r.metrics != nil {
			r.metrics.RecordAuditFailure(entityType)
		}
		return
	}

	r.logger.Audit(ctx, string(action), entityType, entityID, actor, nil)
}

// List returns a page of audit entries matching the filter
func (r *AuditRecorder) List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditEntry, int64, error) {
	return r.repo.Find(ctx, filter, limit, offset)
}

// Summary aggregates entry counts by entity type and action
func (r *AuditRecorder) Summary(ctx context.Context, since *time.Time) (*domain.AuditSummary, error) {
	return r.repo.Summarize(ctx, since)
}
