package application

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/autoelite-platform/procurement-service/internal/domain"
	"github.com/autoelite-platform/procurement-service/pkg/logging"
	"github.com/autoelite-platform/procurement-service/pkg/metrics"
)

// PartService manages the part catalog and its stock levels
type PartService struct {
	parts   domain.PartRepository
	audit   *AuditRecorder
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewPartService creates a new part service
func NewPartService(parts domain.PartRepository, audit *AuditRecorder, logger *logging.Logger, m *metrics.Metrics) *PartService {
	return &PartService{
		parts:   parts,
		audit:   audit,
		logger:  logger.WithComponent("parts"),
		metrics: m,
	}
}

// CreatePart registers a new part stock record. Part codes are unique; a
// duplicate code is rejected.
func (s *PartService) CreatePart(ctx context.Context, cmd CreatePartCommand, actor string) (*domain.Part, error) {
	existing, err := s.parts.FindByCode(ctx, cmd.PartCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check part code: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPartCodeExists, cmd.PartCode)
	}

	stock := domain.StockLevel{
		OnHand:       cmd.OnHand,
		Reserved:     cmd.Reserved,
		MinLevel:     cmd.MinLevel,
		MaxLevel:     cmd.MaxLevel,
		ReorderLevel: cmd.ReorderLevel,
	}
	part, err := domain.NewPart(cmd.PartCode, cmd.Name, cmd.Category, cmd.UnitPriceCents, stock)
	if err != nil {
		return nil, err
	}
	part.Description = cmd.Description

	if err := s.parts.Save(ctx, part); err != nil {
		return nil, fmt.Errorf("failed to save part: %w", err)
	}

	s.audit.Record(ctx, actor, domain.AuditCreate, domain.EntityPart, part.PartCode, nil, partSnapshot(part))
	s.logger.Info("Part created", "partCode", part.PartCode, "name", part.Name)
	return part, nil
}

// GetPart returns one part by id
func (s *PartService) GetPart(ctx context.Context, partID string) (*domain.Part, error) {
	return s.loadPart(ctx, partID)
}

// GetPartByCode returns one part by its unique code
func (s *PartService) GetPartByCode(ctx context.Context, partCode string) (*domain.Part, error) {
	part, err := s.parts.FindByCode(ctx, partCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load part: %w", err)
	}
	if part == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPartNotFound, partCode)
	}
	return part, nil
}

// ListParts returns a page of parts
func (s *PartService) ListParts(ctx context.Context, limit, offset int) ([]*domain.Part, error) {
	return s.parts.FindAll(ctx, limit, offset)
}

// ListLowStock returns active parts at or below their reorder level
func (s *PartService) ListLowStock(ctx context.Context) ([]*domain.Part, error) {
	return s.parts.FindLowStock(ctx)
}

// ReceiveStock increases a part's on-hand quantity
func (s *PartService) ReceiveStock(ctx context.Context, cmd ReceiveStockCommand, actor string) (*domain.Part, error) {
	part, err := s.loadPart(ctx, cmd.PartID)
	if err != nil {
		return nil, err
	}

	before := partSnapshot(part)
	if err := part.ReceiveStock(cmd.Quantity, cmd.OrderID); err != nil {
		return nil, err
	}
	if err := s.parts.Save(ctx, part); err != nil {
		return nil, fmt.Errorf("failed to save part: %w", err)
	}

	s.audit.Record(ctx, actor, domain.AuditUpdate, domain.EntityPart, part.PartCode, before, partSnapshot(part))
	s.logger.Info("Stock received",
		"partCode", part.PartCode,
		"quantity", cmd.Quantity,
		"onHand", part.Stock.OnHand,
	)
	return part, nil
}

// AdjustStock sets a part's on-hand quantity to a counted value
func (s *PartService) AdjustStock(ctx context.Context, cmd AdjustStockCommand, actor string) (*domain.Part, error) {
	part, err := s.loadPart(ctx, cmd.PartID)
	if err != nil {
		return nil, err
	}

	before := partSnapshot(part)
	if err := part.AdjustStock(cmd.NewOnHand, cmd.Reason); err != nil {
		return nil, err
	}
	if err := s.parts.Save(ctx, part); err != nil {
		return nil, fmt.Errorf("failed to save part: %w", err)
	}

	s.audit.Record(ctx, actor, domain.AuditUpdate, domain.EntityPart, part.PartCode, before, partSnapshot(part))
	s.logger.Info("Stock adjusted",
		"partCode", part.PartCode,
		"onHand", part.Stock.OnHand,
		"reason", cmd.Reason,
	)
	return part, nil
}

// DeactivatePart removes a part from active use
func (s *PartService) DeactivatePart(ctx context.Context, partID, actor string) (*domain.Part, error) {
	part, err := s.loadPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	before := partSnapshot(part)
	part.Deactivate()
	if err := s.parts.Deactivate(ctx, part.ID.Hex()); err != nil {
		return nil, fmt.Errorf("failed to deactivate part: %w", err)
	}

	s.audit.Record(ctx, actor, domain.AuditDelete, domain.EntityPart, part.PartCode, before, partSnapshot(part))
	s.logger.Info("Part deactivated", "partCode", part.PartCode)
	return part, nil
}

func (s *PartService) loadPart(ctx context.Context, partID string) (*domain.Part, error) {
	part, err := s.parts.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to load part: %w", err)
	}
	if part == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPartNotFound, partID)
	}
	return part, nil
}

// partSnapshot captures the audit-relevant fields of a part
func partSnapshot(part *domain.Part) bson.M {
	return bson.M{
		"partCode":     part.PartCode,
		"name":         part.Name,
		"onHand":       part.Stock.OnHand,
		"reserved":     part.Stock.Reserved,
		"reorderLevel": part.Stock.ReorderLevel,
		"isActive":     part.IsActive,
	}
}
