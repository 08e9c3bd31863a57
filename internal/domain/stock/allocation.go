package stock

import (
	"sort"

	"github.com/posledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CostPortion is a run of units sharing one unit cost
type CostPortion struct {
	UnitCost int64
	Quantity int64
}

// Value returns UnitCost × Quantity
func (p CostPortion) Value() int64 {
	return p.UnitCost * p.Quantity
}

// Validate checks that the portion describes at least one unit at a
// non-negative cost and that its value fits in an int64
func (p CostPortion) Validate() error {
	if p.Quantity <= 0 {
		return shared.Errorf(shared.ErrInvalidArgument, "quantity must be positive, got %d", p.Quantity)
	}
	if p.UnitCost < 0 {
		return shared.Errorf(shared.ErrInvalidArgument, "unit cost cannot be negative, got %d", p.UnitCost)
	}
	if _, err := mulAmounts(p.UnitCost, p.Quantity); err != nil {
		return err
	}
	return nil
}

// SumPortions returns total quantity and total value of portions. It fails
// with ErrInvalidArgument when a portion is invalid or a total overflows.
func SumPortions(portions []CostPortion) (quantity, value int64, err error) {
	for _, p := range portions {
		if err := p.Validate(); err != nil {
			return 0, 0, err
		}
		if quantity, err = addAmounts(quantity, p.Quantity); err != nil {
			return 0, 0, err
		}
		if value, err = addAmounts(value, p.Value()); err != nil {
			return 0, 0, err
		}
	}
	return quantity, value, nil
}

// Allocate splits total across buckets in proportion to weights.
//
// Each bucket gets floor(total × w / Σw). The leftover (always fewer units
// than there are buckets) is handed out one unit at a time to the buckets with
// the largest fractional remainder, ties going to the lower index. The result
// always sums to total.
func Allocate(total int64, weights []int64) ([]int64, error) {
	if total < 0 {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "total amount cannot be negative, got %d", total)
	}
	if len(weights) == 0 {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "at least one weight is required")
	}

	var weightSum int64
	for i, w := range weights {
		if w <= 0 {
			return nil, shared.Errorf(shared.ErrInvalidArgument, "weight %d must be positive, got %d", i, w)
		}
		weightSum += w
	}

	dTotal := decimal.NewFromInt(total)
	dSum := decimal.NewFromInt(weightSum)

	out := make([]int64, len(weights))
	remainders := make([]decimal.Decimal, len(weights))
	var allocated int64
	for i, w := range weights {
		q, r := dTotal.Mul(decimal.NewFromInt(w)).QuoRem(dSum, 0)
		out[i] = q.IntPart()
		remainders[i] = r
		allocated += out[i]
	}

	leftover := total - allocated
	if leftover == 0 {
		return out, nil
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	// All remainders share the denominator Σw, so comparing numerators is enough.
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for i := int64(0); i < leftover; i++ {
		out[order[i]]++
	}

	return out, nil
}

// SplitPerUnit spreads amount over count units using the Allocate remainder
// rule and groups the result into at most two portions, the dearer one first.
// 1201 over 10 units yields {121 × 1, 120 × 9}.
func SplitPerUnit(amount, count int64) ([]CostPortion, error) {
	if count <= 0 {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "unit count must be positive, got %d", count)
	}
	if amount < 0 {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "amount cannot be negative, got %d", amount)
	}

	base := amount / count
	extra := amount % count

	portions := make([]CostPortion, 0, 2)
	if extra > 0 {
		portions = append(portions, CostPortion{UnitCost: base + 1, Quantity: extra})
	}
	if count-extra > 0 {
		portions = append(portions, CostPortion{UnitCost: base, Quantity: count - extra})
	}
	return portions, nil
}
