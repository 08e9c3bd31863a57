package stock

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// OrderLayers returns the IDs of layers in the order policy consumes them.
// It works on a copy, never fails, and returns every layer exactly once.
// Ties on creation time are broken by layer ID, which is time-ordered.
func OrderLayers(layers []CostLayer, policy ConsumptionPolicy) []uuid.UUID {
	sorted := make([]CostLayer, len(layers))
	copy(sorted, layers)

	var less func(a, b *CostLayer) bool
	switch policy {
	case PolicyNewestFirst:
		less = newerFirst
	case PolicyHighestCostFirst:
		less = func(a, b *CostLayer) bool {
			if a.UnitCost != b.UnitCost {
				return a.UnitCost > b.UnitCost
			}
			return olderFirst(a, b)
		}
	case PolicyLowestCostFirst:
		less = func(a, b *CostLayer) bool {
			if a.UnitCost != b.UnitCost {
				return a.UnitCost < b.UnitCost
			}
			return olderFirst(a, b)
		}
	default:
		// PolicyOldestFirst, and PolicyAverage whose single layer makes order moot
		less = olderFirst
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return less(&sorted[i], &sorted[j])
	})

	ids := make([]uuid.UUID, len(sorted))
	for i := range sorted {
		ids[i] = sorted[i].ID
	}
	return ids
}

func olderFirst(a, b *CostLayer) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func newerFirst(a, b *CostLayer) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}
