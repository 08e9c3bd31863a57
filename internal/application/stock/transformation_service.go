package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// TransformationService is the calling side of the MovementEngine: it owns the
// transaction, resolves each product line's stored costing and guards
// requests against being applied twice.
type TransformationService struct {
	scope          TransactionScope
	engine         *MovementEngine
	recipes        *Recipes
	defaultCosting stock.Costing
	guard          shared.IdempotencyStore
	guardConfig    shared.IdempotencyConfig
	logger         *zap.Logger
}

// NewTransformationService creates a new TransformationService
func NewTransformationService(scope TransactionScope, engine *MovementEngine, logger *zap.Logger) *TransformationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransformationService{
		scope:          scope,
		engine:         engine,
		recipes:        NewRecipes(engine),
		defaultCosting: stock.Costing{Mode: stock.CostModeIndividual, Policy: stock.PolicyOldestFirst},
		logger:         logger,
	}
}

// SetIdempotencyStore enables duplicate detection by source reference
func (s *TransformationService) SetIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) {
	s.guard = store
	s.guardConfig = cfg
}

// SetDefaultCosting sets the costing used when registering lines without one
func (s *TransformationService) SetDefaultCosting(costing stock.Costing) error {
	if err := costing.Validate(); err != nil {
		return err
	}
	s.defaultCosting = costing
	return nil
}

// RegisterProductLine creates an empty product line
func (s *TransformationService) RegisterProductLine(ctx context.Context, req RegisterProductLineRequest) (*ProductLineResponse, error) {
	costing, err := s.resolveCosting(req.CostMode, req.Policy)
	if err != nil {
		return nil, err
	}
	line, err := stock.NewProductLine(stock.ProductLineAttributes{
		StoreID:          req.StoreID,
		ItemID:           req.ItemID,
		Condition:        req.Condition,
		SpecialtyState:   req.SpecialtyState,
		ConsignorID:      req.ConsignorID,
		ManagementNumber: req.ManagementNumber,
	}, costing)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(tx TransactionalRepositories) error {
		return tx.ProductLineRepo().Create(ctx, line)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register product line: %w", err)
	}

	s.logger.Info("product line registered",
		zap.String("product_line_id", line.ID.String()),
		zap.String("cost_mode", line.CostMode.String()),
		zap.String("policy", line.Policy.String()),
	)
	resp := ToProductLineResponse(line)
	return &resp, nil
}

// Receive stocks units bought in
func (s *TransformationService) Receive(ctx context.Context, req ReceiveRequest) (IncreaseResult, error) {
	var result IncreaseResult
	err := s.guarded(ctx, string(stock.MovementKindReceiving), req.SourceRef, func(tx TransactionalRepositories) error {
		costing, err := lineCosting(ctx, tx, req.ProductLineID)
		if err != nil {
			return err
		}
		result, err = s.engine.IncreaseStock(ctx, tx, IncreaseInput{
			ProductLineID: req.ProductLineID,
			Portions:      req.Portions,
			Costing:       costing,
			Kind:          stock.MovementKindReceiving,
			SourceRef:     req.SourceRef,
			Description:   req.Description,
		})
		return err
	})
	return result, err
}

// Sell removes sold units
func (s *TransformationService) Sell(ctx context.Context, req RemoveRequest) (DecreaseResult, error) {
	return s.remove(ctx, stock.MovementKindSale, req)
}

// WriteOff removes damaged or missing units
func (s *TransformationService) WriteOff(ctx context.Context, req RemoveRequest) (DecreaseResult, error) {
	return s.remove(ctx, stock.MovementKindLoss, req)
}

func (s *TransformationService) remove(ctx context.Context, kind stock.MovementKind, req RemoveRequest) (DecreaseResult, error) {
	var result DecreaseResult
	err := s.guarded(ctx, string(kind), req.SourceRef, func(tx TransactionalRepositories) error {
		costing, err := lineCosting(ctx, tx, req.ProductLineID)
		if err != nil {
			return err
		}
		result, err = s.engine.DecreaseStock(ctx, tx, DecreaseInput{
			ProductLineID: req.ProductLineID,
			Quantity:      req.Quantity,
			Costing:       costing,
			Kind:          kind,
			SourceRef:     req.SourceRef,
			Description:   req.Description,
		})
		return err
	})
	return result, err
}

// Adjust applies an operator correction in either direction and returns the signed cost change
func (s *TransformationService) Adjust(ctx context.Context, req AdjustRequest) (int64, error) {
	if req.Delta == 0 {
		return 0, shared.Errorf(shared.ErrInvalidArgument, "adjustment delta cannot be zero")
	}

	var costDelta int64
	err := s.guarded(ctx, string(stock.MovementKindManualAdjustment), req.SourceRef, func(tx TransactionalRepositories) error {
		costing, err := lineCosting(ctx, tx, req.ProductLineID)
		if err != nil {
			return err
		}
		if req.Delta > 0 {
			res, err := s.engine.IncreaseStock(ctx, tx, IncreaseInput{
				ProductLineID: req.ProductLineID,
				Portions:      []stock.CostPortion{{UnitCost: req.UnitCost, Quantity: req.Delta}},
				Costing:       costing,
				Kind:          stock.MovementKindManualAdjustment,
				SourceRef:     req.SourceRef,
				Description:   req.Reason,
			})
			costDelta = res.AddedCost
			return err
		}
		res, err := s.engine.DecreaseStock(ctx, tx, DecreaseInput{
			ProductLineID: req.ProductLineID,
			Quantity:      -req.Delta,
			Costing:       costing,
			Kind:          stock.MovementKindManualAdjustment,
			SourceRef:     req.SourceRef,
			Description:   req.Reason,
		})
		costDelta = -res.RemovedCost
		return err
	})
	return costDelta, err
}

// OpenBox opens boxes into packs in one transaction
func (s *TransformationService) OpenBox(ctx context.Context, req OpenBoxRequest) (stock.TransformationResult, error) {
	var result stock.TransformationResult
	err := s.guarded(ctx, stock.RecipeOpenBox, req.SourceRef, func(tx TransactionalRepositories) error {
		box, err := recipeSource(ctx, tx, req.BoxID)
		if err != nil {
			return err
		}
		packs := make([]RecipeTarget, len(req.Packs))
		for i, p := range req.Packs {
			if packs[i], err = recipeTarget(ctx, tx, p); err != nil {
				return err
			}
		}
		result, err = s.recipes.OpenBox(ctx, tx, OpenBoxInput{
			Box:         box,
			BoxCount:    req.BoxCount,
			Packs:       packs,
			SourceRef:   req.SourceRef,
			Description: req.Description,
		})
		return err
	})
	return result, err
}

// OpenCarton opens cartons into boxes in one transaction
func (s *TransformationService) OpenCarton(ctx context.Context, req OpenCartonRequest) (stock.TransformationResult, error) {
	var result stock.TransformationResult
	err := s.guarded(ctx, stock.RecipeOpenCarton, req.SourceRef, func(tx TransactionalRepositories) error {
		carton, err := recipeSource(ctx, tx, req.CartonID)
		if err != nil {
			return err
		}
		box, err := recipeTarget(ctx, tx, req.Box)
		if err != nil {
			return err
		}
		result, err = s.recipes.OpenCarton(ctx, tx, OpenCartonInput{
			Carton:      carton,
			CartonCount: req.CartonCount,
			Box:         box,
			SourceRef:   req.SourceRef,
			Description: req.Description,
		})
		return err
	})
	return result, err
}

// RestockFromBox rebuilds boxes from packs in one transaction
func (s *TransformationService) RestockFromBox(ctx context.Context, req RestockRequest) (stock.TransformationResult, error) {
	return s.restock(ctx, stock.RecipeRestockFromBox, s.recipes.RestockFromBox, req)
}

// RestockFromCarton rebuilds cartons from boxes in one transaction
func (s *TransformationService) RestockFromCarton(ctx context.Context, req RestockRequest) (stock.TransformationResult, error) {
	return s.restock(ctx, stock.RecipeRestockFromCarton, s.recipes.RestockFromCarton, req)
}

type restockFunc func(ctx context.Context, tx TransactionalRepositories, input RestockInput) (stock.TransformationResult, error)

func (s *TransformationService) restock(ctx context.Context, recipe string, run restockFunc, req RestockRequest) (stock.TransformationResult, error) {
	var result stock.TransformationResult
	err := s.guarded(ctx, recipe, req.SourceRef, func(tx TransactionalRepositories) error {
		source, err := recipeSource(ctx, tx, req.SourceID)
		if err != nil {
			return err
		}
		target, err := recipeTarget(ctx, tx, req.Target)
		if err != nil {
			return err
		}
		result, err = run(ctx, tx, RestockInput{
			Source:      source,
			SourceCount: req.SourceCount,
			Target:      target,
			SourceRef:   req.SourceRef,
			Description: req.Description,
		})
		return err
	})
	return result, err
}

// Ledger returns the live layers, totals and recent movements of a product line
func (s *TransformationService) Ledger(ctx context.Context, productLineID uuid.UUID, filter shared.Filter) (*LedgerResponse, error) {
	var resp LedgerResponse
	err := s.scope.Execute(ctx, func(tx TransactionalRepositories) error {
		line, err := tx.ProductLineRepo().FindByID(ctx, productLineID)
		if err != nil {
			return err
		}
		layers, err := stock.NewLayerStore(tx.CostLayerRepo()).Layers(ctx, productLineID)
		if err != nil {
			return err
		}
		movements, err := tx.MovementRepo().FindByProductLine(ctx, productLineID, filter)
		if err != nil {
			return err
		}
		count, err := tx.MovementRepo().CountByProductLine(ctx, productLineID)
		if err != nil {
			return err
		}

		ordered := make([]stock.CostLayer, 0, len(layers))
		byID := make(map[uuid.UUID]stock.CostLayer, len(layers))
		for _, l := range layers {
			byID[l.ID] = l
			resp.TotalUnits += l.Quantity
			resp.TotalValue += l.Value()
		}
		for _, id := range stock.OrderLayers(layers, line.Policy) {
			ordered = append(ordered, byID[id])
		}

		resp.ProductLine = ToProductLineResponse(line)
		resp.Layers = ToCostLayerResponses(ordered)
		resp.Movements = ToMovementResponses(movements)
		resp.MovementCount = count
		resp.AverageUnitCost = averageUnitCost(resp.TotalUnits, resp.TotalValue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// guarded runs fn in one transaction. A non-empty sourceRef is applied at
// most once per operation: a claim in the idempotency store (when set) stops
// concurrent duplicates early, and the movement log is checked inside the
// transaction so a duplicate is caught even after the claim has expired or
// was held by another process.
func (s *TransformationService) guarded(ctx context.Context, operation, sourceRef string, fn func(tx TransactionalRepositories) error) error {
	if sourceRef == "" {
		return s.scope.Execute(ctx, fn)
	}
	run := func(tx TransactionalRepositories) error {
		if err := checkNotRecorded(ctx, tx, operation, sourceRef); err != nil {
			return err
		}
		return fn(tx)
	}
	if s.guard == nil || !s.guardConfig.Enabled {
		return s.scope.Execute(ctx, run)
	}

	key := operation + ":" + sourceRef
	claimed, err := s.guard.Claim(ctx, key, s.guardConfig.TTL)
	if err != nil {
		return fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		return alreadyProcessed(operation, sourceRef)
	}

	if err := s.scope.Execute(ctx, run); err != nil {
		if releaseErr := s.guard.Release(ctx, key); releaseErr != nil {
			s.logger.Warn("failed to release idempotency key",
				zap.String("key", key),
				zap.Error(releaseErr),
			)
			return errors.Join(err, releaseErr)
		}
		return err
	}
	return nil
}

// checkNotRecorded fails with ErrAlreadyProcessed when the movement log already
// holds a movement written by operation under sourceRef.
func checkNotRecorded(ctx context.Context, tx TransactionalRepositories, operation, sourceRef string) error {
	kind := operationMarker(operation)
	movements, err := tx.MovementRepo().FindBySource(ctx, sourceRef)
	if err != nil {
		return fmt.Errorf("failed to look up source reference: %w", err)
	}
	for _, m := range movements {
		if m.Kind == kind {
			return alreadyProcessed(operation, sourceRef)
		}
	}
	return nil
}

// operationMarker is the movement kind every run of operation writes once.
// Recipes are marked by their decrease side.
func operationMarker(operation string) stock.MovementKind {
	switch operation {
	case stock.RecipeOpenBox:
		return stock.MovementKindBoxOpenOut
	case stock.RecipeOpenCarton:
		return stock.MovementKindCartonOpenOut
	case stock.RecipeRestockFromBox, stock.RecipeRestockFromCarton:
		return stock.MovementKindRestockOut
	}
	return stock.MovementKind(operation)
}

func alreadyProcessed(operation, sourceRef string) error {
	return shared.Errorf(shared.ErrAlreadyProcessed, "%s with source reference %q was already processed", operation, sourceRef)
}

func (s *TransformationService) resolveCosting(mode, policy string) (stock.Costing, error) {
	costing := s.defaultCosting
	if mode != "" {
		m, err := stock.ParseCostMode(mode)
		if err != nil {
			return stock.Costing{}, err
		}
		costing.Mode = m
		if policy == "" && m == stock.CostModeIndividual && costing.Policy == stock.PolicyAverage {
			costing.Policy = stock.PolicyOldestFirst
		}
	}
	if policy != "" {
		p, err := stock.ParseConsumptionPolicy(policy)
		if err != nil {
			return stock.Costing{}, err
		}
		costing.Policy = p
	}
	return costing, costing.Validate()
}

func lineCosting(ctx context.Context, tx TransactionalRepositories, id uuid.UUID) (stock.Costing, error) {
	line, err := tx.ProductLineRepo().FindByID(ctx, id)
	if err != nil {
		return stock.Costing{}, err
	}
	return line.Costing(), nil
}

func recipeSource(ctx context.Context, tx TransactionalRepositories, id uuid.UUID) (RecipeSource, error) {
	costing, err := lineCosting(ctx, tx, id)
	if err != nil {
		return RecipeSource{}, err
	}
	return RecipeSource{ProductLineID: id, Costing: costing}, nil
}

func recipeTarget(ctx context.Context, tx TransactionalRepositories, req TargetRequest) (RecipeTarget, error) {
	costing, err := lineCosting(ctx, tx, req.ProductLineID)
	if err != nil {
		return RecipeTarget{}, err
	}
	return RecipeTarget{ProductLineID: req.ProductLineID, Quantity: req.Quantity, Costing: costing}, nil
}
