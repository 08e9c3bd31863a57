package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	fifo    = stock.Costing{Mode: stock.CostModeIndividual, Policy: stock.PolicyOldestFirst}
	average = stock.Costing{Mode: stock.CostModeAverage, Policy: stock.PolicyAverage}
)

// MockMovementRecorder is a mock implementation of MovementRecorder
type MockMovementRecorder struct {
	mock.Mock
}

func (m *MockMovementRecorder) RecordMovement(ctx context.Context, kind stock.MovementKind, units, cost int64) {
	m.Called(ctx, kind, units, cost)
}

func (m *MockMovementRecorder) RecordTransformation(ctx context.Context, recipe string, units, cost int64) {
	m.Called(ctx, recipe, units, cost)
}

func (m *MockMovementRecorder) RecordFailure(ctx context.Context, operation string, err error) {
	m.Called(ctx, operation, err)
}

func addLine(t *testing.T, store *memoryStore, costing stock.Costing) *stock.ProductLine {
	t.Helper()
	line, err := stock.NewProductLine(stock.ProductLineAttributes{
		StoreID:   uuid.New(),
		ItemID:    uuid.New(),
		Condition: "new",
	}, costing)
	require.NoError(t, err)
	store.lines[line.ID] = *line
	return line
}

func receive(t *testing.T, engine *MovementEngine, tx TransactionalRepositories, lineID uuid.UUID, costing stock.Costing, portions ...stock.CostPortion) IncreaseResult {
	t.Helper()
	res, err := engine.IncreaseStock(context.Background(), tx, IncreaseInput{
		ProductLineID: lineID,
		Portions:      portions,
		Costing:       costing,
		Kind:          stock.MovementKindReceiving,
		SourceRef:     "PO-1",
	})
	require.NoError(t, err)
	return res
}

func TestMovementEngine_DecreaseStock(t *testing.T) {
	ctx := context.Background()

	t.Run("oldest first across two layers", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(zaptest.NewLogger(t))
		line := addLine(t, store, fifo)
		receive(t, engine, tx, line.ID, fifo, stock.CostPortion{UnitCost: 100, Quantity: 5})
		receive(t, engine, tx, line.ID, fifo, stock.CostPortion{UnitCost: 130, Quantity: 3})

		res, err := engine.DecreaseStock(ctx, tx, DecreaseInput{
			ProductLineID: line.ID,
			Quantity:      6,
			Costing:       fifo,
			Kind:          stock.MovementKindSale,
			SourceRef:     "SALE-1",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(630), res.RemovedCost)
		assert.Equal(t, int64(2), res.BalanceAfter)
		require.Len(t, res.LayerDeltas, 2)
		assert.True(t, res.LayerDeltas[0].Closed)
		assert.False(t, res.LayerDeltas[1].Closed)

		units, value := store.lineValue(line.ID)
		assert.Equal(t, int64(2), units)
		assert.Equal(t, int64(260), value)
		assert.Equal(t, int64(2), store.lines[line.ID].Quantity)

		movements := store.movementsOf(line.ID)
		require.Len(t, movements, 3)
		last := movements[2]
		assert.Equal(t, res.MovementID, last.ID)
		assert.Equal(t, int64(-6), last.Delta)
		assert.Equal(t, int64(-630), last.CostDelta)
		assert.Equal(t, int64(2), last.BalanceAfter)
		assert.Equal(t, stock.MovementKindSale, last.Kind)
	})

	t.Run("highest cost first", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, fifo)
		receive(t, engine, tx, line.ID, fifo, stock.CostPortion{UnitCost: 100, Quantity: 5})
		receive(t, engine, tx, line.ID, fifo, stock.CostPortion{UnitCost: 130, Quantity: 3})

		res, err := engine.DecreaseStock(ctx, tx, DecreaseInput{
			ProductLineID: line.ID,
			Quantity:      4,
			Costing:       stock.Costing{Mode: stock.CostModeIndividual, Policy: stock.PolicyHighestCostFirst},
			Kind:          stock.MovementKindLoss,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(490), res.RemovedCost)
	})

	t.Run("insufficient stock writes nothing", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, fifo)
		receive(t, engine, tx, line.ID, fifo, stock.CostPortion{UnitCost: 100, Quantity: 5})
		before := store.lines[line.ID]

		_, err := engine.DecreaseStock(ctx, tx, DecreaseInput{
			ProductLineID: line.ID,
			Quantity:      6,
			Costing:       fifo,
			Kind:          stock.MovementKindSale,
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, before, store.lines[line.ID])
		assert.Len(t, store.movementsOf(line.ID), 1)
		_, value := store.lineValue(line.ID)
		assert.Equal(t, int64(500), value)
	})

	t.Run("unknown product line", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)

		_, err := engine.DecreaseStock(ctx, store.scope(), DecreaseInput{
			ProductLineID: uuid.New(),
			Quantity:      1,
			Costing:       fifo,
			Kind:          stock.MovementKindSale,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, fifo)

		inputs := []DecreaseInput{
			{ProductLineID: line.ID, Quantity: 0, Costing: fifo, Kind: stock.MovementKindSale},
			{ProductLineID: line.ID, Quantity: 1, Costing: fifo, Kind: stock.MovementKindReceiving},
			{ProductLineID: line.ID, Quantity: 1, Costing: stock.Costing{Mode: stock.CostModeIndividual, Policy: stock.PolicyAverage}, Kind: stock.MovementKindSale},
		}
		for _, in := range inputs {
			_, err := engine.DecreaseStock(ctx, store.scope(), in)
			assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		}
	})

	t.Run("reports to recorder", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, fifo)
		receive(t, engine, tx, line.ID, fifo, stock.CostPortion{UnitCost: 100, Quantity: 5})

		recorder := new(MockMovementRecorder)
		recorder.On("RecordMovement", mock.Anything, stock.MovementKindSale, int64(-2), int64(-200)).Return()
		recorder.On("RecordFailure", mock.Anything, "decrease", mock.Anything).Return()
		engine.SetRecorder(recorder)

		_, err := engine.DecreaseStock(ctx, tx, DecreaseInput{ProductLineID: line.ID, Quantity: 2, Costing: fifo, Kind: stock.MovementKindSale})
		require.NoError(t, err)
		_, err = engine.DecreaseStock(ctx, tx, DecreaseInput{ProductLineID: line.ID, Quantity: 9, Costing: fifo, Kind: stock.MovementKindSale})
		require.Error(t, err)

		recorder.AssertExpectations(t)
	})
}

func TestMovementEngine_IncreaseStock(t *testing.T) {
	ctx := context.Background()

	t.Run("individual mode layers per portion", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, fifo)

		res := receive(t, engine, store.scope(), line.ID, fifo,
			stock.CostPortion{UnitCost: 121, Quantity: 1},
			stock.CostPortion{UnitCost: 120, Quantity: 9},
		)
		assert.Equal(t, int64(1201), res.AddedCost)
		assert.Equal(t, int64(10), res.BalanceAfter)
		assert.Len(t, res.AddedLayers, 2)
		assert.Len(t, store.layers, 2)

		movements := store.movementsOf(line.ID)
		require.Len(t, movements, 1)
		assert.Equal(t, int64(10), movements[0].Delta)
		assert.Equal(t, int64(1201), movements[0].CostDelta)
	})

	t.Run("average mode single layer", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, average)

		receive(t, engine, tx, line.ID, average, stock.CostPortion{UnitCost: 100, Quantity: 1})
		receive(t, engine, tx, line.ID, average, stock.CostPortion{UnitCost: 101, Quantity: 2})

		assert.Len(t, store.layers, 1)
		units, value := store.lineValue(line.ID)
		assert.Equal(t, int64(3), units)
		assert.Equal(t, int64(302), value)

		res, err := engine.DecreaseStock(ctx, tx, DecreaseInput{ProductLineID: line.ID, Quantity: 1, Costing: average, Kind: stock.MovementKindSale})
		require.NoError(t, err)
		assert.Equal(t, int64(101), res.RemovedCost)
		_, value = store.lineValue(line.ID)
		assert.Equal(t, int64(201), value)
	})

	t.Run("rejects bad portions and kinds", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, fifo)

		inputs := []IncreaseInput{
			{ProductLineID: line.ID, Costing: fifo, Kind: stock.MovementKindReceiving},
			{ProductLineID: line.ID, Portions: []stock.CostPortion{{UnitCost: 10, Quantity: 0}}, Costing: fifo, Kind: stock.MovementKindReceiving},
			{ProductLineID: line.ID, Portions: []stock.CostPortion{{UnitCost: -10, Quantity: 1}}, Costing: fifo, Kind: stock.MovementKindReceiving},
			{ProductLineID: line.ID, Portions: []stock.CostPortion{{UnitCost: 10, Quantity: 1}}, Costing: fifo, Kind: stock.MovementKindSale},
		}
		for _, in := range inputs {
			_, err := engine.IncreaseStock(ctx, store.scope(), in)
			assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		}
		assert.Empty(t, store.layers)
		assert.Empty(t, store.movements)
	})

	t.Run("manual adjustment is allowed", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		line := addLine(t, store, fifo)

		_, err := engine.IncreaseStock(ctx, store.scope(), IncreaseInput{
			ProductLineID: line.ID,
			Portions:      []stock.CostPortion{{UnitCost: 50, Quantity: 2}},
			Costing:       fifo,
			Kind:          stock.MovementKindManualAdjustment,
		})
		require.NoError(t, err)
	})
}

func TestMovementEngine_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("cost is spread by target quantity", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(zaptest.NewLogger(t))
		box := addLine(t, store, fifo)
		small := addLine(t, store, fifo)
		large := addLine(t, store, fifo)
		receive(t, engine, tx, box.ID, fifo, stock.CostPortion{UnitCost: 1201, Quantity: 1})

		res, err := engine.Transfer(ctx, tx, TransferInput{
			SourceID:      box.ID,
			SourceCosting: fifo,
			SourceKind:    stock.MovementKindBoxOpenOut,
			Targets: []TransferTarget{
				{ProductLineID: small.ID, Quantity: 4, Costing: fifo},
				{ProductLineID: large.ID, Quantity: 8, Costing: fifo},
			},
			TargetKind: stock.MovementKindBoxOpenIn,
			TotalCount: 1,
			SourceRef:  "OPEN-1",
		})
		require.NoError(t, err)
		assert.Equal(t, stock.RecipeTransfer, res.Recipe)
		assert.Equal(t, int64(1201), res.RemovedCost)
		assert.True(t, res.IsConserved())
		require.Len(t, res.Targets, 2)
		// 1201*4/12 = 400 r4, 1201*8/12 = 800 r8; the leftover goes to the larger remainder
		assert.Equal(t, int64(400), res.Targets[0].AllocatedCost)
		assert.Equal(t, int64(801), res.Targets[1].AllocatedCost)

		_, smallValue := store.lineValue(small.ID)
		_, largeValue := store.lineValue(large.ID)
		_, boxValue := store.lineValue(box.ID)
		assert.Equal(t, int64(1201), smallValue+largeValue)
		assert.Equal(t, int64(0), boxValue)
		assert.Equal(t, int64(8), store.lines[large.ID].Quantity)

		sourced, err := tx.MovementRepo().FindBySource(ctx, "OPEN-1")
		require.NoError(t, err)
		assert.Len(t, sourced, 3)
	})

	t.Run("locks lines in id order", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(nil)
		a := addLine(t, store, fifo)
		b := addLine(t, store, fifo)
		receive(t, engine, tx, b.ID, fifo, stock.CostPortion{UnitCost: 10, Quantity: 2})
		store.locked = nil

		_, err := engine.Transfer(ctx, tx, TransferInput{
			SourceID:      b.ID,
			SourceCosting: fifo,
			SourceKind:    stock.MovementKindRestockOut,
			Targets:       []TransferTarget{{ProductLineID: a.ID, Quantity: 1, Costing: fifo}},
			TargetKind:    stock.MovementKindRestockIn,
			TotalCount:    2,
		})
		require.NoError(t, err)
		// a was created first, so its v7 ID sorts first
		assert.Equal(t, []uuid.UUID{a.ID, b.ID}, store.locked[:2])
	})

	t.Run("rejects bad targets", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		src := addLine(t, store, fifo)
		dst := addLine(t, store, fifo)

		base := TransferInput{
			SourceID:      src.ID,
			SourceCosting: fifo,
			SourceKind:    stock.MovementKindBoxOpenOut,
			TargetKind:    stock.MovementKindBoxOpenIn,
			TotalCount:    1,
		}

		empty := base
		_, err := engine.Transfer(ctx, store.scope(), empty)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)

		self := base
		self.Targets = []TransferTarget{{ProductLineID: src.ID, Quantity: 1, Costing: fifo}}
		_, err = engine.Transfer(ctx, store.scope(), self)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)

		dup := base
		dup.Targets = []TransferTarget{{ProductLineID: dst.ID, Quantity: 1, Costing: fifo}, {ProductLineID: dst.ID, Quantity: 1, Costing: fifo}}
		_, err = engine.Transfer(ctx, store.scope(), dup)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)

		zero := base
		zero.Targets = []TransferTarget{{ProductLineID: dst.ID, Quantity: 0, Costing: fifo}}
		_, err = engine.Transfer(ctx, store.scope(), zero)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)

		missing := base
		missing.Targets = []TransferTarget{{ProductLineID: uuid.New(), Quantity: 1, Costing: fifo}}
		_, err = engine.Transfer(ctx, store.scope(), missing)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("insufficient source", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		src := addLine(t, store, fifo)
		dst := addLine(t, store, fifo)

		_, err := engine.Transfer(ctx, store.scope(), TransferInput{
			SourceID:      src.ID,
			SourceCosting: fifo,
			SourceKind:    stock.MovementKindBoxOpenOut,
			Targets:       []TransferTarget{{ProductLineID: dst.ID, Quantity: 12, Costing: fifo}},
			TargetKind:    stock.MovementKindBoxOpenIn,
			TotalCount:    1,
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Empty(t, store.movements)
	})

	t.Run("reports transformation to recorder", func(t *testing.T) {
		store := newMemoryStore()
		tx := store.scope()
		engine := NewMovementEngine(nil)
		src := addLine(t, store, fifo)
		dst := addLine(t, store, fifo)
		receive(t, engine, tx, src.ID, fifo, stock.CostPortion{UnitCost: 300, Quantity: 1})

		recorder := new(MockMovementRecorder)
		recorder.On("RecordTransformation", mock.Anything, stock.RecipeOpenCarton, int64(1), int64(300)).Return()
		engine.SetRecorder(recorder)

		_, err := engine.Transfer(ctx, tx, TransferInput{
			Recipe:        stock.RecipeOpenCarton,
			SourceID:      src.ID,
			SourceCosting: fifo,
			SourceKind:    stock.MovementKindCartonOpenOut,
			Targets:       []TransferTarget{{ProductLineID: dst.ID, Quantity: 3, Costing: fifo}},
			TargetKind:    stock.MovementKindCartonOpenIn,
			TotalCount:    1,
		})
		require.NoError(t, err)
		recorder.AssertExpectations(t)
	})

	t.Run("rolls back to savepoint when a write fails", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		box := addLine(t, store, fifo)
		packA := addLine(t, store, fifo)
		packB := addLine(t, store, fifo)
		receive(t, engine, store.scope(), box.ID, fifo, stock.CostPortion{UnitCost: 1201, Quantity: 1})

		tx := &savePointRepos{TransactionalRepositories: store.scope(), failSaveFor: packB.ID}
		_, err := engine.Transfer(ctx, tx, TransferInput{
			SourceID:      box.ID,
			SourceCosting: fifo,
			SourceKind:    stock.MovementKindBoxOpenOut,
			Targets: []TransferTarget{
				{ProductLineID: packA.ID, Quantity: 5, Costing: fifo},
				{ProductLineID: packB.ID, Quantity: 5, Costing: fifo},
			},
			TargetKind: stock.MovementKindBoxOpenIn,
			TotalCount: 1,
		})
		require.Error(t, err)
		assert.Equal(t, []string{"savepoint " + transferSavePoint, "rollback " + transferSavePoint}, tx.calls)
	})

	t.Run("validation failure writes no savepoint", func(t *testing.T) {
		store := newMemoryStore()
		engine := NewMovementEngine(nil)
		src := addLine(t, store, fifo)

		tx := &savePointRepos{TransactionalRepositories: store.scope()}
		_, err := engine.Transfer(ctx, tx, TransferInput{
			SourceID:      src.ID,
			SourceCosting: fifo,
			SourceKind:    stock.MovementKindBoxOpenOut,
			TargetKind:    stock.MovementKindBoxOpenIn,
			TotalCount:    1,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Empty(t, tx.calls)
	})
}

// savePointRepos records savepoint calls and can fail layer saves for one line.
type savePointRepos struct {
	TransactionalRepositories
	failSaveFor uuid.UUID
	calls       []string
}

func (r *savePointRepos) CostLayerRepo() stock.CostLayerRepository {
	return failingSaveLayerRepo{CostLayerRepository: r.TransactionalRepositories.CostLayerRepo(), failFor: r.failSaveFor}
}

func (r *savePointRepos) SavePoint(name string) error {
	r.calls = append(r.calls, "savepoint "+name)
	return nil
}

func (r *savePointRepos) RollbackTo(name string) error {
	r.calls = append(r.calls, "rollback "+name)
	return nil
}

type failingSaveLayerRepo struct {
	stock.CostLayerRepository
	failFor uuid.UUID
}

func (r failingSaveLayerRepo) Save(ctx context.Context, layer *stock.CostLayer) error {
	if layer.ProductLineID == r.failFor {
		return errors.New("write failed")
	}
	return r.CostLayerRepository.Save(ctx, layer)
}
