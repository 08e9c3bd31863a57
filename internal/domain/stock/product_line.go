package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
)

// ProductLine is a distinct stockable variant: an item in one condition,
// optionally in a specialty state, owned by a consignor, or tracked under a
// management number. It is the aggregate root for stock movements.
type ProductLine struct {
	shared.BaseAggregateRoot
	StoreID          uuid.UUID
	ItemID           uuid.UUID
	Condition        string
	SpecialtyState   string     // Optional
	ConsignorID      *uuid.UUID // Optional consignment owner
	ManagementNumber string     // Optional
	Quantity         int64      // Current unit count
	CostMode         CostMode
	Policy           ConsumptionPolicy
}

// ProductLineAttributes describes the variant when registering a product line
type ProductLineAttributes struct {
	StoreID          uuid.UUID
	ItemID           uuid.UUID
	Condition        string
	SpecialtyState   string
	ConsignorID      *uuid.UUID
	ManagementNumber string
}

// NewProductLine creates an empty product line
func NewProductLine(attrs ProductLineAttributes, costing Costing) (*ProductLine, error) {
	if attrs.StoreID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "store ID cannot be empty")
	}
	if attrs.ItemID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "item ID cannot be empty")
	}
	if attrs.Condition == "" {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "condition is required")
	}
	if err := costing.Validate(); err != nil {
		return nil, err
	}

	return &ProductLine{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StoreID:           attrs.StoreID,
		ItemID:            attrs.ItemID,
		Condition:         attrs.Condition,
		SpecialtyState:    attrs.SpecialtyState,
		ConsignorID:       attrs.ConsignorID,
		ManagementNumber:  attrs.ManagementNumber,
		CostMode:          costing.Mode,
		Policy:            costing.Policy,
	}, nil
}

// Costing returns the stored cost-keeping configuration
func (p *ProductLine) Costing() Costing {
	return Costing{Mode: p.CostMode, Policy: p.Policy}
}

// SetCosting changes the stored cost-keeping configuration
func (p *ProductLine) SetCosting(costing Costing) error {
	if err := costing.Validate(); err != nil {
		return err
	}
	p.CostMode = costing.Mode
	p.Policy = costing.Policy
	p.touch()
	return nil
}

// Increase adds quantity units to the counter
func (p *ProductLine) Increase(quantity int64) error {
	if quantity <= 0 {
		return shared.Errorf(shared.ErrInvalidArgument, "quantity must be positive, got %d", quantity)
	}
	total, err := addAmounts(p.Quantity, quantity)
	if err != nil {
		return shared.Errorf(shared.ErrInvalidArgument, "product line %s cannot hold %d more units: %v", p.ID, quantity, err)
	}
	p.Quantity = total
	p.touch()
	return nil
}

// Decrease removes quantity units from the counter; it never goes below zero
func (p *ProductLine) Decrease(quantity int64) error {
	if quantity <= 0 {
		return shared.Errorf(shared.ErrInvalidArgument, "quantity must be positive, got %d", quantity)
	}
	if quantity > p.Quantity {
		return shared.Errorf(shared.ErrInsufficientStock, "product line %s has %d units, cannot remove %d", p.ID, p.Quantity, quantity)
	}
	p.Quantity -= quantity
	p.touch()
	return nil
}

// CanFulfill returns true if the counter holds at least quantity units
func (p *ProductLine) CanFulfill(quantity int64) bool {
	return p.Quantity >= quantity
}

func (p *ProductLine) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}
