package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
)

// LayerState is the lifecycle state of a cost layer
type LayerState string

const (
	// LayerStateOpen means no unit has been consumed yet
	LayerStateOpen LayerState = "OPEN"
	// LayerStatePartiallyConsumed means some but not all units are gone
	LayerStatePartiallyConsumed LayerState = "PARTIALLY_CONSUMED"
	// LayerStateClosed means every unit is gone; the layer record is deleted
	LayerStateClosed LayerState = "CLOSED"
)

// CostLayer is a batch of units of one product line sharing an acquisition unit cost.
//
// Individual-mode layers always have ResidualCost == 0. The single synthetic
// layer of an average-mode product line holds the weighted mean as
// UnitCost = floor(V/Q) plus ResidualCost = V mod Q, so that its value V
// stays exact to the last currency unit.
type CostLayer struct {
	shared.BaseEntity
	ProductLineID   uuid.UUID
	UnitCost        int64  // Smallest currency unit
	Quantity        int64  // Units still in the layer
	InitialQuantity int64  // Units ever put into the layer
	ResidualCost    int64  // 0 <= ResidualCost < Quantity
	SourceRef       string // What stocking or transformation created it
}

// NewCostLayer creates an open layer
func NewCostLayer(productLineID uuid.UUID, unitCost, quantity int64, sourceRef string) (*CostLayer, error) {
	if productLineID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "product line ID cannot be empty")
	}
	if err := (CostPortion{UnitCost: unitCost, Quantity: quantity}).Validate(); err != nil {
		return nil, err
	}
	return &CostLayer{
		BaseEntity:      shared.NewBaseEntity(),
		ProductLineID:   productLineID,
		UnitCost:        unitCost,
		Quantity:        quantity,
		InitialQuantity: quantity,
		SourceRef:       sourceRef,
	}, nil
}

// Value returns the monetary value held by the layer
func (l *CostLayer) Value() int64 {
	return l.UnitCost*l.Quantity + l.ResidualCost
}

// State returns the lifecycle state derived from the remaining quantity
func (l *CostLayer) State() LayerState {
	switch {
	case l.Quantity <= 0:
		return LayerStateClosed
	case l.Quantity < l.InitialQuantity:
		return LayerStatePartiallyConsumed
	default:
		return LayerStateOpen
	}
}

// IsClosed returns true once every unit has been consumed
func (l *CostLayer) IsClosed() bool {
	return l.State() == LayerStateClosed
}

// Take removes quantity units from the layer and returns the cost removed.
// A layer carrying a residual gives up a proportional share of its value
// computed with Allocate, so value is never lost to rounding.
func (l *CostLayer) Take(quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, shared.Errorf(shared.ErrInvalidArgument, "quantity must be positive, got %d", quantity)
	}
	if l.IsClosed() {
		return 0, shared.Errorf(shared.ErrInvalidArgument, "layer %s is closed", l.ID)
	}
	if quantity > l.Quantity {
		return 0, shared.Errorf(shared.ErrInsufficientStock, "layer %s holds %d units, cannot take %d", l.ID, l.Quantity, quantity)
	}

	var removed int64
	switch {
	case quantity == l.Quantity:
		removed = l.Value()
		l.Quantity = 0
		l.ResidualCost = 0
	case l.ResidualCost == 0:
		removed = l.UnitCost * quantity
		l.Quantity -= quantity
	default:
		shares, err := Allocate(l.Value(), []int64{quantity, l.Quantity - quantity})
		if err != nil {
			return 0, err
		}
		removed = shares[0]
		l.Quantity -= quantity
		l.UnitCost = shares[1] / l.Quantity
		l.ResidualCost = shares[1] % l.Quantity
	}
	l.UpdatedAt = time.Now()
	return removed, nil
}

// Merge folds quantity units at unitCost into the layer, recomputing the
// weighted mean. Used for average-mode product lines.
func (l *CostLayer) Merge(unitCost, quantity int64) error {
	portion := CostPortion{UnitCost: unitCost, Quantity: quantity}
	if err := portion.Validate(); err != nil {
		return err
	}
	return l.absorb(portion.Value(), quantity)
}

// Absorb folds another layer into this one. The other layer is emptied and
// must be deleted by the caller. On overflow neither layer changes.
func (l *CostLayer) Absorb(other *CostLayer) error {
	if other.Quantity <= 0 {
		return nil
	}
	if err := l.absorb(other.Value(), other.Quantity); err != nil {
		return err
	}
	other.Quantity = 0
	other.ResidualCost = 0
	other.UpdatedAt = l.UpdatedAt
	return nil
}

func (l *CostLayer) absorb(addedValue, addedQuantity int64) error {
	totalValue, err := addAmounts(l.Value(), addedValue)
	if err != nil {
		return err
	}
	quantity, err := addAmounts(l.Quantity, addedQuantity)
	if err != nil {
		return err
	}
	initial, err := addAmounts(l.InitialQuantity, addedQuantity)
	if err != nil {
		return err
	}
	l.Quantity = quantity
	l.InitialQuantity = initial
	l.UnitCost = totalValue / quantity
	l.ResidualCost = totalValue % quantity
	l.UpdatedAt = time.Now()
	return nil
}

// LayerRef identifies a layer touched by an increase and what was added to it
type LayerRef struct {
	LayerID  uuid.UUID
	UnitCost int64
	Quantity int64
	Cost     int64
}

// LayerDelta records what a consumption removed from one layer
type LayerDelta struct {
	LayerID  uuid.UUID
	Quantity int64
	Cost     int64
	Closed   bool
}
