package stock

import "github.com/google/uuid"

// Recipe names
const (
	RecipeOpenBox           = "open_box"
	RecipeOpenCarton        = "open_carton"
	RecipeRestockFromBox    = "restock_from_box"
	RecipeRestockFromCarton = "restock_from_carton"
	RecipeTransfer          = "transfer"
)

// TransformationTarget is what one target product line received
type TransformationTarget struct {
	ProductLineID uuid.UUID
	Quantity      int64
	AllocatedCost int64
	Layers        []LayerRef
	BalanceAfter  int64
}

// TransformationResult summarizes a transformation. Cost moved out of the
// source equals the sum of AllocatedCost over targets.
type TransformationResult struct {
	Recipe        string
	SourceID      uuid.UUID
	RemovedCost   int64
	SourceBalance int64
	SourceDeltas  []LayerDelta
	Targets       []TransformationTarget
}

// AllocatedCost returns the cost added across every target
func (r TransformationResult) AllocatedCost() int64 {
	var total int64
	for _, t := range r.Targets {
		total += t.AllocatedCost
	}
	return total
}

// IsConserved returns true if no cost was created or destroyed
func (r TransformationResult) IsConserved() bool {
	return r.RemovedCost == r.AllocatedCost()
}
