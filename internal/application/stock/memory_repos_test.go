package stock

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
)

// memoryStore holds product lines, layers and movements in maps and hands out
// repositories over them. It does not isolate transactions.
type memoryStore struct {
	mu        sync.Mutex
	lines     map[uuid.UUID]stock.ProductLine
	layers    map[uuid.UUID]stock.CostLayer
	movements []stock.StockMovement
	locked    []uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		lines:  make(map[uuid.UUID]stock.ProductLine),
		layers: make(map[uuid.UUID]stock.CostLayer),
	}
}

func (s *memoryStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(&memoryLineRepo{s}, &memoryLayerRepo{s}, &memoryMovementRepo{s})
}

type memoryLineRepo struct{ s *memoryStore }

func (r *memoryLineRepo) FindByID(_ context.Context, id uuid.UUID) (*stock.ProductLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	line, ok := r.s.lines[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &line, nil
}

func (r *memoryLineRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*stock.ProductLine, error) {
	r.s.mu.Lock()
	r.s.locked = append(r.s.locked, id)
	r.s.mu.Unlock()
	return r.FindByID(ctx, id)
}

func (r *memoryLineRepo) FindByStore(_ context.Context, storeID uuid.UUID, _ shared.Filter) ([]stock.ProductLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.ProductLine
	for _, l := range r.s.lines {
		if l.StoreID == storeID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryLineRepo) Create(_ context.Context, line *stock.ProductLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lines[line.ID] = *line
	return nil
}

func (r *memoryLineRepo) SaveWithLock(_ context.Context, line *stock.ProductLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.lines[line.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != line.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.s.lines[line.ID] = *line
	return nil
}

type memoryLayerRepo struct{ s *memoryStore }

func (r *memoryLayerRepo) FindByProductLine(_ context.Context, productLineID uuid.UUID) ([]stock.CostLayer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.CostLayer
	for _, l := range r.s.layers {
		if l.ProductLineID == productLineID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryLayerRepo) Save(_ context.Context, layer *stock.CostLayer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.layers[layer.ID] = *layer
	return nil
}

func (r *memoryLayerRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.layers, id)
	return nil
}

type memoryMovementRepo struct{ s *memoryStore }

func (r *memoryMovementRepo) Append(_ context.Context, movement *stock.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.movements = append(r.s.movements, *movement)
	return nil
}

func (r *memoryMovementRepo) FindByProductLine(_ context.Context, productLineID uuid.UUID, _ shared.Filter) ([]stock.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.StockMovement
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		if r.s.movements[i].ProductLineID == productLineID {
			out = append(out, r.s.movements[i])
		}
	}
	return out, nil
}

func (r *memoryMovementRepo) FindBySource(_ context.Context, sourceRef string) ([]stock.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.StockMovement
	for _, m := range r.s.movements {
		if m.SourceRef == sourceRef {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryMovementRepo) CountByProductLine(_ context.Context, productLineID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.movements {
		if m.ProductLineID == productLineID {
			n++
		}
	}
	return n, nil
}

// lineValue returns the units and value held in a line's layers
func (s *memoryStore) lineValue(id uuid.UUID) (units, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.layers {
		if l.ProductLineID == id {
			units += l.Quantity
			value += l.Value()
		}
	}
	return units, value
}

func (s *memoryStore) movementsOf(id uuid.UUID) []stock.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stock.StockMovement
	for _, m := range s.movements {
		if m.ProductLineID == id {
			out = append(out, m)
		}
	}
	return out
}
