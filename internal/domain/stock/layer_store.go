package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
)

// ConsumeResult is the outcome of removing units from a product line's layers
type ConsumeResult struct {
	RemovedCost int64
	Deltas      []LayerDelta
}

// LayerStore maintains the cost layers of product lines on top of a
// CostLayerRepository. Bind it to the repository of the caller's
// transaction; it never opens one itself.
type LayerStore struct {
	repo CostLayerRepository
}

// NewLayerStore creates a layer store over repo
func NewLayerStore(repo CostLayerRepository) *LayerStore {
	return &LayerStore{repo: repo}
}

// Layers returns the live layers of a product line
func (s *LayerStore) Layers(ctx context.Context, productLineID uuid.UUID) ([]CostLayer, error) {
	layers, err := s.repo.FindByProductLine(ctx, productLineID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost layers: %w", err)
	}
	return layers, nil
}

// TotalUnits returns the number of units held across live layers
func (s *LayerStore) TotalUnits(ctx context.Context, productLineID uuid.UUID) (int64, error) {
	layers, err := s.Layers(ctx, productLineID)
	if err != nil {
		return 0, err
	}
	units, _ := totals(layers)
	return units, nil
}

// TotalValue returns the value held across live layers
func (s *LayerStore) TotalValue(ctx context.Context, productLineID uuid.UUID) (int64, error) {
	layers, err := s.Layers(ctx, productLineID)
	if err != nil {
		return 0, err
	}
	_, value := totals(layers)
	return value, nil
}

// AddLayer adds unitCount units at unitCost. Individual mode creates a new
// layer; average mode merges into the product line's single layer.
func (s *LayerStore) AddLayer(ctx context.Context, productLineID uuid.UUID, mode CostMode, unitCost, unitCount int64, sourceRef string) (uuid.UUID, error) {
	refs, err := s.AddValue(ctx, productLineID, mode, []CostPortion{{UnitCost: unitCost, Quantity: unitCount}}, sourceRef)
	if err != nil {
		return uuid.Nil, err
	}
	return refs[0].LayerID, nil
}

// AddValue adds several cost portions in one step. Individual mode creates
// one layer per portion in the given order; average mode folds them all
// into one layer, collapsing any layers left over from individual mode into
// the oldest of them.
func (s *LayerStore) AddValue(ctx context.Context, productLineID uuid.UUID, mode CostMode, portions []CostPortion, sourceRef string) ([]LayerRef, error) {
	if productLineID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "product line ID cannot be empty")
	}
	if !mode.IsValid() {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "invalid cost mode: %s", mode)
	}
	if len(portions) == 0 {
		return nil, shared.Errorf(shared.ErrInvalidArgument, "at least one cost portion is required")
	}
	if _, _, err := SumPortions(portions); err != nil {
		return nil, err
	}

	if mode == CostModeAverage {
		return s.addAverage(ctx, productLineID, portions, sourceRef)
	}

	refs := make([]LayerRef, 0, len(portions))
	for _, p := range portions {
		layer, err := NewCostLayer(productLineID, p.UnitCost, p.Quantity, sourceRef)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, layer); err != nil {
			return nil, fmt.Errorf("failed to save cost layer: %w", err)
		}
		refs = append(refs, LayerRef{
			LayerID:  layer.ID,
			UnitCost: p.UnitCost,
			Quantity: p.Quantity,
			Cost:     p.Value(),
		})
	}
	return refs, nil
}

func (s *LayerStore) addAverage(ctx context.Context, productLineID uuid.UUID, portions []CostPortion, sourceRef string) ([]LayerRef, error) {
	layers, err := s.Layers(ctx, productLineID)
	if err != nil {
		return nil, err
	}
	_, valueBefore := totals(layers)
	quantity, added, err := SumPortions(portions)
	if err != nil {
		return nil, err
	}

	var target *CostLayer
	var absorbed []uuid.UUID
	if len(layers) == 0 {
		target, err = NewCostLayer(productLineID, portions[0].UnitCost, portions[0].Quantity, sourceRef)
		if err != nil {
			return nil, err
		}
		portions = portions[1:]
	} else {
		order := OrderLayers(layers, PolicyOldestFirst)
		byID := indexLayers(layers)
		target = byID[order[0]]
		for _, id := range order[1:] {
			if err := target.Absorb(byID[id]); err != nil {
				return nil, err
			}
			absorbed = append(absorbed, id)
		}
	}
	for _, p := range portions {
		if err := target.Merge(p.UnitCost, p.Quantity); err != nil {
			return nil, err
		}
	}

	if target.Value() != valueBefore+added {
		return nil, shared.Errorf(shared.ErrConservationViolation,
			"average layer holds %d, expected %d", target.Value(), valueBefore+added)
	}

	for _, id := range absorbed {
		if err := s.repo.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to delete collapsed cost layer: %w", err)
		}
	}
	if err := s.repo.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to save cost layer: %w", err)
	}

	return []LayerRef{{
		LayerID:  target.ID,
		UnitCost: target.UnitCost,
		Quantity: quantity,
		Cost:     added,
	}}, nil
}

// Consume removes exactly unitCount units, walking the layers in the given
// order and emptying each one before moving to the next. Nothing is
// written unless the whole request can be served.
func (s *LayerStore) Consume(ctx context.Context, productLineID uuid.UUID, unitCount int64, orderedLayerIDs []uuid.UUID) (ConsumeResult, error) {
	if unitCount <= 0 {
		return ConsumeResult{}, shared.Errorf(shared.ErrInvalidArgument, "unit count must be positive, got %d", unitCount)
	}

	layers, err := s.Layers(ctx, productLineID)
	if err != nil {
		return ConsumeResult{}, err
	}
	liveUnits, valueBefore := totals(layers)
	if liveUnits < unitCount {
		return ConsumeResult{}, shared.Errorf(shared.ErrInsufficientStock,
			"product line %s holds %d units in cost layers, cannot consume %d", productLineID, liveUnits, unitCount)
	}

	byID := indexLayers(layers)
	seen := make(map[uuid.UUID]struct{}, len(orderedLayerIDs))
	for _, id := range orderedLayerIDs {
		if _, ok := byID[id]; !ok {
			return ConsumeResult{}, shared.Errorf(shared.ErrInvalidArgument, "cost layer %s not found on product line %s", id, productLineID)
		}
		if _, dup := seen[id]; dup {
			return ConsumeResult{}, shared.Errorf(shared.ErrInvalidArgument, "cost layer %s listed twice", id)
		}
		seen[id] = struct{}{}
	}

	result := ConsumeResult{}
	remaining := unitCount
	for _, id := range orderedLayerIDs {
		if remaining == 0 {
			break
		}
		layer := byID[id]
		take := min(remaining, layer.Quantity)
		cost, err := layer.Take(take)
		if err != nil {
			return ConsumeResult{}, err
		}
		remaining -= take
		if result.RemovedCost, err = addAmounts(result.RemovedCost, cost); err != nil {
			return ConsumeResult{}, err
		}
		result.Deltas = append(result.Deltas, LayerDelta{
			LayerID:  id,
			Quantity: take,
			Cost:     cost,
			Closed:   layer.IsClosed(),
		})
	}
	if remaining > 0 {
		return ConsumeResult{}, shared.Errorf(shared.ErrInvalidArgument,
			"ordered layers cover %d of %d requested units", unitCount-remaining, unitCount)
	}

	_, valueAfter := totals(layers)
	if valueBefore-result.RemovedCost != valueAfter {
		return ConsumeResult{}, shared.Errorf(shared.ErrConservationViolation,
			"layers held %d, removed %d, %d left", valueBefore, result.RemovedCost, valueAfter)
	}

	for _, d := range result.Deltas {
		if d.Closed {
			err = s.repo.Delete(ctx, d.LayerID)
		} else {
			err = s.repo.Save(ctx, byID[d.LayerID])
		}
		if err != nil {
			return ConsumeResult{}, fmt.Errorf("failed to persist cost layer %s: %w", d.LayerID, err)
		}
	}
	return result, nil
}

func indexLayers(layers []CostLayer) map[uuid.UUID]*CostLayer {
	byID := make(map[uuid.UUID]*CostLayer, len(layers))
	for i := range layers {
		byID[layers[i].ID] = &layers[i]
	}
	return byID
}

func totals(layers []CostLayer) (units, value int64) {
	for i := range layers {
		if layers[i].Quantity <= 0 {
			continue
		}
		units += layers[i].Quantity
		value += layers[i].Value()
	}
	return units, value
}
