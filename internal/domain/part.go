package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StockLevel holds the quantity fields for one part
type StockLevel struct {
	OnHand       int `bson:"onHand" json:"onHand"`
	Reserved     int `bson:"reserved" json:"reserved"`
	MinLevel     int `bson:"minLevel" json:"minLevel"`
	MaxLevel     int `bson:"maxLevel" json:"maxLevel"`
	ReorderLevel int `bson:"reorderLevel" json:"reorderLevel"`
}

// Part is the stock record for one stock-keeping unit.
// The stock monitor reads these; receiving and allocation mutate them.
type Part struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PartCode    string             `bson:"partCode" json:"partCode"`
	Name        string             `bson:"name" json:"name"`
	Category    string             `bson:"category" json:"category"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	// Snapshot used when drafting purchase orders; the order item keeps
	// its own copy of the agreed price
	UnitPriceCents int64 `bson:"unitPriceCents" json:"unitPriceCents"`

	Stock    StockLevel `bson:"stock" json:"stock"`
	IsActive bool       `bson:"isActive" json:"isActive"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// AddDomainEvent appends a domain event to be published
func (p *Part) AddDomainEvent(event DomainEvent) {
	p.DomainEvents = append(p.DomainEvents, event)
}

// ClearDomainEvents clears all domain events after they are published
func (p *Part) ClearDomainEvents() {
	p.DomainEvents = nil
}

// GetDomainEvents returns all domain events
func (p *Part) GetDomainEvents() []DomainEvent {
	return p.DomainEvents
}

// NewPart creates a new active part with validated stock levels
func NewPart(partCode, name, category string, unitPriceCents int64, stock StockLevel) (*Part, error) {
	if partCode == "" || name == "" {
		return nil, ErrInvalidStockLevels
	}
	if unitPriceCents < 0 {
		return nil, ErrInvalidUnitPrice
	}
	if err := stock.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Part{
		PartCode:       partCode,
		Name:           name,
		Category:       category,
		UnitPriceCents: unitPriceCents,
		Stock:          stock,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Validate enforces the stock level invariants
func (s StockLevel) Validate() error {
	if s.OnHand < 0 || s.Reserved < 0 || s.MinLevel < 0 || s.MaxLevel < 0 || s.ReorderLevel < 0 {
		return ErrInvalidStockLevels
	}
	if s.Reserved > s.OnHand {
		return ErrInvalidStockLevels
	}
	if s.MaxLevel > 0 {
		if s.MinLevel > s.MaxLevel {
			return ErrInvalidStockLevels
		}
		if s.OnHand > s.MaxLevel {
			return ErrInvalidStockLevels
		}
	}
	return nil
}

// Available returns onHand minus reserved
func (p *Part) Available() int {
	return p.Stock.OnHand - p.Stock.Reserved
}

// IsLowStock returns true when available stock has fallen to or below the
// reorder level. Parts with reorderLevel zero never qualify.
func (p *Part) IsLowStock() bool {
	return p.Stock.ReorderLevel > 0 && p.Available() <= p.Stock.ReorderLevel
}

// ReceiveStock increases on-hand quantity, e.g. when a purchase order
// line is delivered. orderID may be empty for ad-hoc receipts.
func (p *Part) ReceiveStock(quantity int, orderID string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.IsActive {
		return ErrPartInactive
	}
	if p.Stock.MaxLevel > 0 && p.Stock.OnHand+quantity > p.Stock.MaxLevel {
		return ErrInvalidStockLevels
	}

	p.Stock.OnHand += quantity
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(&StockReceivedEvent{
		PartID:     p.ID.Hex(),
		PartCode:   p.PartCode,
		Quantity:   quantity,
		NewOnHand:  p.Stock.OnHand,
		OrderID:    orderID,
		ReceivedAt: p.UpdatedAt,
	})
	return nil
}

// AdjustStock sets on-hand to a counted quantity (cycle counts, corrections)
func (p *Part) AdjustStock(newOnHand int, reason string) error {
	adjusted := p.Stock
	adjusted.OnHand = newOnHand
	if err := adjusted.Validate(); err != nil {
		return err
	}

	previous := p.Stock.OnHand
	p.Stock = adjusted
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(&StockAdjustedEvent{
		PartID:         p.ID.Hex(),
		PartCode:       p.PartCode,
		PreviousOnHand: previous,
		NewOnHand:      newOnHand,
		Reason:         reason,
		AdjustedAt:     p.UpdatedAt,
	})
	return nil
}

// Deactivate removes the part from active use; the monitor skips it
func (p *Part) Deactivate() {
	p.IsActive = false
	p.UpdatedAt = time.Now()
}
