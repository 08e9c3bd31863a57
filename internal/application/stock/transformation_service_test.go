package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) IsClaimed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func newTestService(t *testing.T) (*TransformationService, *memoryStore) {
	store := newMemoryStore()
	svc := NewTransformationService(store.scope(), NewMovementEngine(zaptest.NewLogger(t)), zaptest.NewLogger(t))
	return svc, store
}

func registerLine(t *testing.T, svc *TransformationService, mode, policy string) uuid.UUID {
	t.Helper()
	resp, err := svc.RegisterProductLine(context.Background(), RegisterProductLineRequest{
		StoreID:   uuid.New(),
		ItemID:    uuid.New(),
		Condition: "new",
		CostMode:  mode,
		Policy:    policy,
	})
	require.NoError(t, err)
	return resp.ID
}

func TestTransformationService_RegisterProductLine(t *testing.T) {
	svc, store := newTestService(t)

	id := registerLine(t, svc, "", "")
	assert.Equal(t, fifo, lineCostingOf(store, id))

	id = registerLine(t, svc, "average", "average")
	assert.Equal(t, average, lineCostingOf(store, id))

	id = registerLine(t, svc, "", "lowest-cost-first")
	assert.Equal(t, stock.PolicyLowestCostFirst, store.lines[id].Policy)

	require.NoError(t, svc.SetDefaultCosting(average))
	id = registerLine(t, svc, "individual", "")
	assert.Equal(t, fifo, lineCostingOf(store, id))

	_, err := svc.RegisterProductLine(context.Background(), RegisterProductLineRequest{
		StoreID: uuid.New(), ItemID: uuid.New(), Condition: "new", Policy: "fifo",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestTransformationService_ReceiveSellAdjust(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	id := registerLine(t, svc, "individual", "newest_first")

	_, err := svc.Receive(ctx, ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 100, Quantity: 5}}, SourceRef: "PO-1"})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 130, Quantity: 3}}, SourceRef: "PO-2"})
	require.NoError(t, err)

	sold, err := svc.Sell(ctx, RemoveRequest{ProductLineID: id, Quantity: 4, SourceRef: "SALE-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(490), sold.RemovedCost)

	lost, err := svc.WriteOff(ctx, RemoveRequest{ProductLineID: id, Quantity: 1, Description: "water damage"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), lost.RemovedCost)

	added, err := svc.Adjust(ctx, AdjustRequest{ProductLineID: id, Delta: 2, UnitCost: 90, Reason: "found in back room"})
	require.NoError(t, err)
	assert.Equal(t, int64(180), added)

	removed, err := svc.Adjust(ctx, AdjustRequest{ProductLineID: id, Delta: -1, Reason: "miscount"})
	require.NoError(t, err)
	assert.Equal(t, int64(-90), removed)

	_, err = svc.Adjust(ctx, AdjustRequest{ProductLineID: id})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	units, value := store.lineValue(id)
	assert.Equal(t, int64(4), units)
	assert.Equal(t, int64(890-490-100+180-90), value)
	assert.Equal(t, units, store.lines[id].Quantity)
}

func TestTransformationService_Recipes(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	carton := registerLine(t, svc, "", "")
	box := registerLine(t, svc, "", "")
	pack := registerLine(t, svc, "average", "average")

	_, err := svc.Receive(ctx, ReceiveRequest{ProductLineID: carton, Portions: []stock.CostPortion{{UnitCost: 14405, Quantity: 1}}})
	require.NoError(t, err)

	_, err = svc.OpenCarton(ctx, OpenCartonRequest{CartonID: carton, CartonCount: 1, Box: TargetRequest{ProductLineID: box, Quantity: 12}})
	require.NoError(t, err)

	opened, err := svc.OpenBox(ctx, OpenBoxRequest{BoxID: box, BoxCount: 1, Packs: []TargetRequest{{ProductLineID: pack, Quantity: 10}}})
	require.NoError(t, err)
	// 14405/12 = 1200 r5, the box consumed first carries the extra unit
	assert.Equal(t, int64(1201), opened.RemovedCost)

	_, err = svc.RestockFromBox(ctx, RestockRequest{SourceID: pack, SourceCount: 10, Target: TargetRequest{ProductLineID: box, Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.RestockFromCarton(ctx, RestockRequest{SourceID: box, SourceCount: 12, Target: TargetRequest{ProductLineID: carton, Quantity: 1}})
	require.NoError(t, err)

	_, value := store.lineValue(carton)
	assert.Equal(t, int64(14405), value)

	_, err = svc.OpenBox(ctx, OpenBoxRequest{BoxID: uuid.New(), BoxCount: 1, Packs: []TargetRequest{{ProductLineID: pack, Quantity: 1}}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTransformationService_Ledger(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := registerLine(t, svc, "", "")

	_, err := svc.Receive(ctx, ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 100, Quantity: 5}, {UnitCost: 130, Quantity: 3}}})
	require.NoError(t, err)
	_, err = svc.Sell(ctx, RemoveRequest{ProductLineID: id, Quantity: 6})
	require.NoError(t, err)

	ledger, err := svc.Ledger(ctx, id, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), ledger.ProductLine.Quantity)
	assert.Equal(t, int64(2), ledger.TotalUnits)
	assert.Equal(t, int64(260), ledger.TotalValue)
	assert.Equal(t, "130", ledger.AverageUnitCost.String())
	require.Len(t, ledger.Layers, 1)
	assert.Equal(t, string(stock.LayerStatePartiallyConsumed), ledger.Layers[0].State)
	assert.Equal(t, int64(2), ledger.MovementCount)
	assert.Equal(t, "sale", ledger.Movements[0].Kind)

	_, err = svc.Ledger(ctx, uuid.New(), shared.DefaultFilter())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTransformationService_Idempotency(t *testing.T) {
	ctx := context.Background()
	cfg := shared.DefaultIdempotencyConfig()

	t.Run("duplicate source reference is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := registerLine(t, svc, "", "")
		guard := new(MockIdempotencyStore)
		guard.On("Claim", mock.Anything, "receiving:PO-9", cfg.TTL).Return(true, nil).Once()
		guard.On("Claim", mock.Anything, "receiving:PO-9", cfg.TTL).Return(false, nil).Once()
		svc.SetIdempotencyStore(guard, cfg)

		req := ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 10, Quantity: 1}}, SourceRef: "PO-9"}
		_, err := svc.Receive(ctx, req)
		require.NoError(t, err)
		_, err = svc.Receive(ctx, req)
		assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)

		guard.AssertExpectations(t)
	})

	t.Run("failed transaction releases the key", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := registerLine(t, svc, "", "")
		guard := new(MockIdempotencyStore)
		guard.On("Claim", mock.Anything, "sale:SALE-9", cfg.TTL).Return(true, nil)
		guard.On("Release", mock.Anything, "sale:SALE-9").Return(nil)
		svc.SetIdempotencyStore(guard, cfg)

		_, err := svc.Sell(ctx, RemoveRequest{ProductLineID: id, Quantity: 1, SourceRef: "SALE-9"})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		guard.AssertExpectations(t)
	})

	t.Run("claim failure aborts", func(t *testing.T) {
		svc, store := newTestService(t)
		id := registerLine(t, svc, "", "")
		guard := new(MockIdempotencyStore)
		guard.On("Claim", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
		svc.SetIdempotencyStore(guard, cfg)

		_, err := svc.Receive(ctx, ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 10, Quantity: 1}}, SourceRef: "PO-10"})
		require.Error(t, err)
		assert.Empty(t, store.movements)
	})

	t.Run("no source reference skips the guard", func(t *testing.T) {
		svc, _ := newTestService(t)
		id := registerLine(t, svc, "", "")
		guard := new(MockIdempotencyStore)
		svc.SetIdempotencyStore(guard, cfg)

		_, err := svc.Receive(ctx, ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 10, Quantity: 1}}})
		require.NoError(t, err)
		guard.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired claim is caught by the movement log", func(t *testing.T) {
		svc, store := newTestService(t)
		id := registerLine(t, svc, "", "")
		guard := new(MockIdempotencyStore)
		guard.On("Claim", mock.Anything, "receiving:PO-11", cfg.TTL).Return(true, nil).Twice()
		guard.On("Release", mock.Anything, "receiving:PO-11").Return(nil).Once()
		svc.SetIdempotencyStore(guard, cfg)

		req := ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 10, Quantity: 1}}, SourceRef: "PO-11"}
		_, err := svc.Receive(ctx, req)
		require.NoError(t, err)
		_, err = svc.Receive(ctx, req)
		assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)
		assert.Len(t, store.movementsOf(id), 1)

		guard.AssertExpectations(t)
	})

	t.Run("services sharing a store apply a reference once", func(t *testing.T) {
		first, store := newTestService(t)
		second := NewTransformationService(store.scope(), NewMovementEngine(nil), nil)
		id := registerLine(t, first, "", "")

		req := ReceiveRequest{ProductLineID: id, Portions: []stock.CostPortion{{UnitCost: 10, Quantity: 2}}, SourceRef: "PO-12"}
		_, err := first.Receive(ctx, req)
		require.NoError(t, err)
		_, err = second.Receive(ctx, req)
		assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)

		units, value := store.lineValue(id)
		assert.Equal(t, int64(2), units)
		assert.Equal(t, int64(20), value)

		_, err = second.Sell(ctx, RemoveRequest{ProductLineID: id, Quantity: 1, SourceRef: "PO-12"})
		require.NoError(t, err)
	})
}

func lineCostingOf(store *memoryStore, id uuid.UUID) stock.Costing {
	line := store.lines[id]
	return line.Costing()
}
