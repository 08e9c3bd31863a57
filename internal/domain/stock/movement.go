package stock

import (
	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
)

// MovementKind is the business reason recorded on a stock movement
type MovementKind string

const (
	// MovementKindReceiving is stock bought in (purchase or buy-back)
	MovementKindReceiving MovementKind = "receiving"
	// MovementKindSale is stock sold
	MovementKindSale MovementKind = "sale"
	// MovementKindLoss is stock written off (damage, theft)
	MovementKindLoss MovementKind = "loss"
	// MovementKindBoxOpenIn is packs produced by opening a box
	MovementKindBoxOpenIn MovementKind = "box_open_in"
	// MovementKindBoxOpenOut is the box consumed by opening it
	MovementKindBoxOpenOut MovementKind = "box_open_out"
	// MovementKindCartonOpenIn is boxes produced by opening a carton
	MovementKindCartonOpenIn MovementKind = "carton_open_in"
	// MovementKindCartonOpenOut is the carton consumed by opening it
	MovementKindCartonOpenOut MovementKind = "carton_open_out"
	// MovementKindRestockIn is the coarser unit rebuilt from finer units
	MovementKindRestockIn MovementKind = "restock_in"
	// MovementKindRestockOut is the finer units consumed by a restock
	MovementKindRestockOut MovementKind = "restock_out"
	// MovementKindManualAdjustment is an operator correction in either direction
	MovementKindManualAdjustment MovementKind = "manual_adjustment"
)

// String returns the string representation of MovementKind
func (k MovementKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is known
func (k MovementKind) IsValid() bool {
	return k.IsIncrease() || k.IsDecrease()
}

// IsIncrease returns true if the kind may be recorded on an increase
func (k MovementKind) IsIncrease() bool {
	switch k {
	case MovementKindReceiving,
		MovementKindBoxOpenIn,
		MovementKindCartonOpenIn,
		MovementKindRestockIn,
		MovementKindManualAdjustment:
		return true
	}
	return false
}

// IsDecrease returns true if the kind may be recorded on a decrease
func (k MovementKind) IsDecrease() bool {
	switch k {
	case MovementKindSale,
		MovementKindLoss,
		MovementKindBoxOpenOut,
		MovementKindCartonOpenOut,
		MovementKindRestockOut,
		MovementKindManualAdjustment:
		return true
	}
	return false
}

// StockMovement is an immutable audit record of one increase or decrease.
// Corrections are made with new movements, never by editing old ones.
type StockMovement struct {
	shared.BaseEntity
	ProductLineID uuid.UUID
	Delta         int64 // Signed unit change
	BalanceAfter  int64 // Unit count after the movement
	CostDelta     int64 // Signed cost change
	Kind          MovementKind
	SourceRef     string
	Description   string
}

// NewStockMovement records a movement already applied to line. delta and
// costDelta must agree in sign with the kind's direction.
func NewStockMovement(line *ProductLine, delta, costDelta int64, kind MovementKind, sourceRef, description string) (*StockMovement, error) {
	if line == nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "product line is required")
	}
	switch {
	case delta > 0 && !kind.IsIncrease():
		return nil, shared.Errorf(shared.ErrInvalidArgument, "movement kind %q cannot increase stock", kind)
	case delta < 0 && !kind.IsDecrease():
		return nil, shared.Errorf(shared.ErrInvalidArgument, "movement kind %q cannot decrease stock", kind)
	case delta == 0:
		return nil, shared.Errorf(shared.ErrInvalidArgument, "movement delta cannot be zero")
	}
	if (delta > 0 && costDelta < 0) || (delta < 0 && costDelta > 0) {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "cost delta %d disagrees with unit delta %d", costDelta, delta)
	}

	return &StockMovement{
		BaseEntity:    shared.NewBaseEntity(),
		ProductLineID: line.ID,
		Delta:         delta,
		BalanceAfter:  line.Quantity,
		CostDelta:     costDelta,
		Kind:          kind,
		SourceRef:     sourceRef,
		Description:   description,
	}, nil
}

// IsIncrease returns true if the movement added units
func (m *StockMovement) IsIncrease() bool {
	return m.Delta > 0
}
