package stock

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// MovementRecorder receives a report of every completed or failed engine operation.
// The telemetry package provides the OpenTelemetry implementation.
type MovementRecorder interface {
	RecordMovement(ctx context.Context, kind stock.MovementKind, units, cost int64)
	RecordTransformation(ctx context.Context, recipe string, units, cost int64)
	RecordFailure(ctx context.Context, operation string, err error)
}

// MovementEngine is the only writer of product line counters, cost layers and
// movement records. Every call runs inside the caller's transaction.
type MovementEngine struct {
	logger   *zap.Logger
	recorder MovementRecorder
}

// NewMovementEngine creates a movement engine
func NewMovementEngine(logger *zap.Logger) *MovementEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementEngine{logger: logger}
}

// SetRecorder sets the optional metrics recorder
func (e *MovementEngine) SetRecorder(recorder MovementRecorder) {
	e.recorder = recorder
}

// DecreaseInput describes a decrease of one product line
type DecreaseInput struct {
	ProductLineID uuid.UUID
	Quantity      int64
	Costing       stock.Costing
	Kind          stock.MovementKind
	SourceRef     string
	Description   string
}

// DecreaseResult is the outcome of a decrease
type DecreaseResult struct {
	ProductLineID uuid.UUID
	MovementID    uuid.UUID
	RemovedCost   int64
	BalanceAfter  int64
	LayerDeltas   []stock.LayerDelta
}

// IncreaseInput describes an increase of one product line, possibly at several unit costs
type IncreaseInput struct {
	ProductLineID uuid.UUID
	Portions      []stock.CostPortion
	Costing       stock.Costing
	Kind          stock.MovementKind
	SourceRef     string
	Description   string
}

// IncreaseResult is the outcome of an increase
type IncreaseResult struct {
	ProductLineID uuid.UUID
	MovementID    uuid.UUID
	AddedLayers   []stock.LayerRef
	AddedCost     int64
	BalanceAfter  int64
}

// TransferTarget is one destination of a transfer
type TransferTarget struct {
	ProductLineID uuid.UUID
	Quantity      int64
	Costing       stock.Costing
}

// TransferInput moves the cost of TotalCount source units into targets in
// proportion to the target quantities
type TransferInput struct {
	Recipe        string // Defaults to stock.RecipeTransfer
	SourceID      uuid.UUID
	SourceCosting stock.Costing
	SourceKind    stock.MovementKind
	Targets       []TransferTarget
	TargetKind    stock.MovementKind
	TotalCount    int64
	SourceRef     string
	Description   string
}

// DecreaseStock removes units from a product line, consuming cost layers in
// the order given by the costing policy. On InsufficientStock nothing is written.
func (e *MovementEngine) DecreaseStock(ctx context.Context, tx TransactionalRepositories, input DecreaseInput) (DecreaseResult, error) {
	result, err := e.decrease(ctx, tx, input)
	if err != nil {
		e.fail(ctx, "decrease", err, zap.String("product_line_id", input.ProductLineID.String()))
		return DecreaseResult{}, err
	}
	if e.recorder != nil {
		e.recorder.RecordMovement(ctx, input.Kind, -input.Quantity, -result.RemovedCost)
	}
	return result, nil
}

func (e *MovementEngine) decrease(ctx context.Context, tx TransactionalRepositories, input DecreaseInput) (DecreaseResult, error) {
	if input.Quantity <= 0 {
		return DecreaseResult{}, shared.Errorf(shared.ErrInvalidArgument, "quantity must be positive, got %d", input.Quantity)
	}
	if !input.Kind.IsDecrease() {
		return DecreaseResult{}, shared.Errorf(shared.ErrInvalidArgument, "movement kind %q cannot decrease stock", input.Kind)
	}
	if err := input.Costing.Validate(); err != nil {
		return DecreaseResult{}, err
	}

	line, err := tx.ProductLineRepo().FindByIDForUpdate(ctx, input.ProductLineID)
	if err != nil {
		return DecreaseResult{}, err
	}
	if !line.CanFulfill(input.Quantity) {
		return DecreaseResult{}, shared.Errorf(shared.ErrInsufficientStock,
			"product line %s has %d units, cannot remove %d", line.ID, line.Quantity, input.Quantity)
	}

	layers := stock.NewLayerStore(tx.CostLayerRepo())
	live, err := layers.Layers(ctx, line.ID)
	if err != nil {
		return DecreaseResult{}, err
	}
	consumed, err := layers.Consume(ctx, line.ID, input.Quantity, stock.OrderLayers(live, input.Costing.Policy))
	if err != nil {
		return DecreaseResult{}, err
	}

	if err := line.Decrease(input.Quantity); err != nil {
		return DecreaseResult{}, err
	}
	if err := tx.ProductLineRepo().SaveWithLock(ctx, line); err != nil {
		return DecreaseResult{}, err
	}

	movement, err := stock.NewStockMovement(line, -input.Quantity, -consumed.RemovedCost, input.Kind, input.SourceRef, input.Description)
	if err != nil {
		return DecreaseResult{}, err
	}
	if err := tx.MovementRepo().Append(ctx, movement); err != nil {
		return DecreaseResult{}, fmt.Errorf("failed to append stock movement: %w", err)
	}

	e.logger.Debug("stock decreased",
		zap.String("product_line_id", line.ID.String()),
		zap.String("kind", input.Kind.String()),
		zap.Int64("quantity", input.Quantity),
		zap.Int64("removed_cost", consumed.RemovedCost),
		zap.Int64("balance_after", line.Quantity),
		zap.Int("layers_touched", len(consumed.Deltas)),
	)

	return DecreaseResult{
		ProductLineID: line.ID,
		MovementID:    movement.ID,
		RemovedCost:   consumed.RemovedCost,
		BalanceAfter:  line.Quantity,
		LayerDeltas:   consumed.Deltas,
	}, nil
}

// IncreaseStock adds units to a product line, one layer per cost portion in
// individual mode or merged into the single layer in average mode.
func (e *MovementEngine) IncreaseStock(ctx context.Context, tx TransactionalRepositories, input IncreaseInput) (IncreaseResult, error) {
	result, err := e.increase(ctx, tx, input)
	if err != nil {
		e.fail(ctx, "increase", err, zap.String("product_line_id", input.ProductLineID.String()))
		return IncreaseResult{}, err
	}
	if e.recorder != nil {
		quantity, _, _ := stock.SumPortions(input.Portions)
		e.recorder.RecordMovement(ctx, input.Kind, quantity, result.AddedCost)
	}
	return result, nil
}

func (e *MovementEngine) increase(ctx context.Context, tx TransactionalRepositories, input IncreaseInput) (IncreaseResult, error) {
	if len(input.Portions) == 0 {
		return IncreaseResult{}, shared.Errorf(shared.ErrInvalidArgument, "at least one cost portion is required")
	}
	quantity, value, err := stock.SumPortions(input.Portions)
	if err != nil {
		return IncreaseResult{}, err
	}
	if !input.Kind.IsIncrease() {
		return IncreaseResult{}, shared.Errorf(shared.ErrInvalidArgument, "movement kind %q cannot increase stock", input.Kind)
	}
	if err := input.Costing.Validate(); err != nil {
		return IncreaseResult{}, err
	}

	line, err := tx.ProductLineRepo().FindByIDForUpdate(ctx, input.ProductLineID)
	if err != nil {
		return IncreaseResult{}, err
	}

	if err := line.Increase(quantity); err != nil {
		return IncreaseResult{}, err
	}
	refs, err := stock.NewLayerStore(tx.CostLayerRepo()).AddValue(ctx, line.ID, input.Costing.Mode, input.Portions, input.SourceRef)
	if err != nil {
		return IncreaseResult{}, err
	}
	if err := tx.ProductLineRepo().SaveWithLock(ctx, line); err != nil {
		return IncreaseResult{}, err
	}

	movement, err := stock.NewStockMovement(line, quantity, value, input.Kind, input.SourceRef, input.Description)
	if err != nil {
		return IncreaseResult{}, err
	}
	if err := tx.MovementRepo().Append(ctx, movement); err != nil {
		return IncreaseResult{}, fmt.Errorf("failed to append stock movement: %w", err)
	}

	e.logger.Debug("stock increased",
		zap.String("product_line_id", line.ID.String()),
		zap.String("kind", input.Kind.String()),
		zap.Int64("quantity", quantity),
		zap.Int64("added_cost", value),
		zap.Int64("balance_after", line.Quantity),
	)

	return IncreaseResult{
		ProductLineID: line.ID,
		MovementID:    movement.ID,
		AddedLayers:   refs,
		AddedCost:     value,
		BalanceAfter:  line.Quantity,
	}, nil
}

// transferSavePoint names the savepoint a transfer rolls back to on failure.
const transferSavePoint = "stock_transfer"

// Transfer decreases the source by TotalCount and spreads exactly the removed
// cost over the targets. On error every write the transfer made is rolled
// back to a savepoint, so tx holds only what it held before the call.
func (e *MovementEngine) Transfer(ctx context.Context, tx TransactionalRepositories, input TransferInput) (stock.TransformationResult, error) {
	if input.Recipe == "" {
		input.Recipe = stock.RecipeTransfer
	}
	result, err := e.guardedTransfer(ctx, tx, input)
	if err != nil {
		e.fail(ctx, input.Recipe, err,
			zap.String("source_id", input.SourceID.String()),
			zap.String("source_ref", input.SourceRef),
		)
		return stock.TransformationResult{}, err
	}
	if e.recorder != nil {
		e.recorder.RecordTransformation(ctx, input.Recipe, input.TotalCount, result.RemovedCost)
	}
	return result, nil
}

// guardedTransfer validates and locks, then runs the writes of a transfer
// behind a savepoint and rolls back to it when any write fails.
func (e *MovementEngine) guardedTransfer(ctx context.Context, tx TransactionalRepositories, input TransferInput) (stock.TransformationResult, error) {
	if err := validateTransfer(input); err != nil {
		return stock.TransformationResult{}, err
	}
	if err := lockInOrder(ctx, tx, input); err != nil {
		return stock.TransformationResult{}, err
	}
	if err := tx.SavePoint(transferSavePoint); err != nil {
		return stock.TransformationResult{}, fmt.Errorf("create savepoint: %w", err)
	}

	result, err := e.transfer(ctx, tx, input)
	if err != nil {
		if undo := tx.RollbackTo(transferSavePoint); undo != nil {
			return stock.TransformationResult{}, fmt.Errorf("%w (rollback to savepoint: %v)", err, undo)
		}
		return stock.TransformationResult{}, err
	}
	return result, nil
}

func (e *MovementEngine) transfer(ctx context.Context, tx TransactionalRepositories, input TransferInput) (stock.TransformationResult, error) {

	decreased, err := e.decrease(ctx, tx, DecreaseInput{
		ProductLineID: input.SourceID,
		Quantity:      input.TotalCount,
		Costing:       input.SourceCosting,
		Kind:          input.SourceKind,
		SourceRef:     input.SourceRef,
		Description:   input.Description,
	})
	if err != nil {
		return stock.TransformationResult{}, err
	}

	weights := make([]int64, len(input.Targets))
	for i, t := range input.Targets {
		weights[i] = t.Quantity
	}
	shares, err := stock.Allocate(decreased.RemovedCost, weights)
	if err != nil {
		return stock.TransformationResult{}, err
	}
	if err := checkConserved("allocation", decreased.RemovedCost, shares...); err != nil {
		return stock.TransformationResult{}, err
	}

	result := stock.TransformationResult{
		Recipe:        input.Recipe,
		SourceID:      input.SourceID,
		RemovedCost:   decreased.RemovedCost,
		SourceBalance: decreased.BalanceAfter,
		SourceDeltas:  decreased.LayerDeltas,
		Targets:       make([]stock.TransformationTarget, 0, len(input.Targets)),
	}

	for i, target := range input.Targets {
		portions, err := stock.SplitPerUnit(shares[i], target.Quantity)
		if err != nil {
			return stock.TransformationResult{}, err
		}
		increased, err := e.increase(ctx, tx, IncreaseInput{
			ProductLineID: target.ProductLineID,
			Portions:      portions,
			Costing:       target.Costing,
			Kind:          input.TargetKind,
			SourceRef:     input.SourceRef,
			Description:   input.Description,
		})
		if err != nil {
			return stock.TransformationResult{}, err
		}
		if err := checkConserved("target "+target.ProductLineID.String(), shares[i], increased.AddedCost); err != nil {
			return stock.TransformationResult{}, err
		}
		result.Targets = append(result.Targets, stock.TransformationTarget{
			ProductLineID: target.ProductLineID,
			Quantity:      target.Quantity,
			AllocatedCost: increased.AddedCost,
			Layers:        increased.AddedLayers,
			BalanceAfter:  increased.BalanceAfter,
		})
	}

	if !result.IsConserved() {
		return stock.TransformationResult{}, shared.Errorf(shared.ErrConservationViolation,
			"%s removed %d but allocated %d", input.Recipe, result.RemovedCost, result.AllocatedCost())
	}

	e.logger.Debug("stock transferred",
		zap.String("recipe", input.Recipe),
		zap.String("source_id", input.SourceID.String()),
		zap.Int64("total_count", input.TotalCount),
		zap.Int64("removed_cost", result.RemovedCost),
		zap.Int("targets", len(result.Targets)),
		zap.String("source_ref", input.SourceRef),
	)
	return result, nil
}

func validateTransfer(input TransferInput) error {
	if input.TotalCount <= 0 {
		return shared.Errorf(shared.ErrInvalidArgument, "total count must be positive, got %d", input.TotalCount)
	}
	if len(input.Targets) == 0 {
		return shared.Errorf(shared.ErrInvalidArgument, "at least one target is required")
	}
	if !input.TargetKind.IsIncrease() {
		return shared.Errorf(shared.ErrInvalidArgument, "movement kind %q cannot increase stock", input.TargetKind)
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Targets))
	for _, t := range input.Targets {
		if t.Quantity <= 0 {
			return shared.Errorf(shared.ErrInvalidArgument, "target %s quantity must be positive, got %d", t.ProductLineID, t.Quantity)
		}
		if t.ProductLineID == input.SourceID {
			return shared.Errorf(shared.ErrInvalidArgument, "product line %s cannot be both source and target", t.ProductLineID)
		}
		if _, dup := seen[t.ProductLineID]; dup {
			return shared.Errorf(shared.ErrInvalidArgument, "target %s listed twice", t.ProductLineID)
		}
		seen[t.ProductLineID] = struct{}{}
		if err := t.Costing.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// lockInOrder takes the row locks of every line a transfer touches in
// ascending ID order, so opposite transfers between the same lines cannot deadlock.
func lockInOrder(ctx context.Context, tx TransactionalRepositories, input TransferInput) error {
	ids := make([]uuid.UUID, 0, len(input.Targets)+1)
	ids = append(ids, input.SourceID)
	for _, t := range input.Targets {
		ids = append(ids, t.ProductLineID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	for _, id := range ids {
		if _, err := tx.ProductLineRepo().FindByIDForUpdate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func checkConserved(stage string, expected int64, parts ...int64) error {
	var total int64
	for _, p := range parts {
		total += p
	}
	if total != expected {
		return shared.Errorf(shared.ErrConservationViolation, "%s: expected %d, got %d", stage, expected, total)
	}
	return nil
}

func (e *MovementEngine) fail(ctx context.Context, operation string, err error, fields ...zap.Field) {
	e.logger.Debug("stock movement failed",
		append(fields, zap.String("operation", operation), zap.Error(err))...,
	)
	if e.recorder != nil {
		e.recorder.RecordFailure(ctx, operation, err)
	}
}
