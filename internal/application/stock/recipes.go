package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
)

// RecipeSource is the product line a recipe consumes
type RecipeSource struct {
	ProductLineID uuid.UUID
	Costing       stock.Costing
}

// RecipeTarget is a product line a recipe produces, with the unit count it receives
type RecipeTarget struct {
	ProductLineID uuid.UUID
	Quantity      int64
	Costing       stock.Costing
}

// OpenBoxInput opens BoxCount boxes into packs
type OpenBoxInput struct {
	Box         RecipeSource
	BoxCount    int64
	Packs       []RecipeTarget
	SourceRef   string
	Description string
}

// OpenCartonInput opens CartonCount cartons into boxes
type OpenCartonInput struct {
	Carton      RecipeSource
	CartonCount int64
	Box         RecipeTarget
	SourceRef   string
	Description string
}

// RestockInput rebuilds coarser units (Target) from SourceCount finer units
type RestockInput struct {
	Source      RecipeSource
	SourceCount int64
	Target      RecipeTarget
	SourceRef   string
	Description string
}

// Recipes are the named transformations between packaging levels.
// Each is a single Transfer with fixed movement kinds.
type Recipes struct {
	engine *MovementEngine
}

// NewRecipes creates recipes on top of engine
func NewRecipes(engine *MovementEngine) *Recipes {
	return &Recipes{engine: engine}
}

// OpenBox decreases the box line and spreads its cost over the pack lines in
// proportion to the pack counts requested.
func (r *Recipes) OpenBox(ctx context.Context, tx TransactionalRepositories, input OpenBoxInput) (stock.TransformationResult, error) {
	if len(input.Packs) == 0 {
		return stock.TransformationResult{}, shared.Errorf(shared.ErrInvalidArgument, "at least one pack target is required")
	}
	return r.engine.Transfer(ctx, tx, TransferInput{
		Recipe:        stock.RecipeOpenBox,
		SourceID:      input.Box.ProductLineID,
		SourceCosting: input.Box.Costing,
		SourceKind:    stock.MovementKindBoxOpenOut,
		Targets:       toTransferTargets(input.Packs...),
		TargetKind:    stock.MovementKindBoxOpenIn,
		TotalCount:    input.BoxCount,
		SourceRef:     input.SourceRef,
		Description:   input.Description,
	})
}

// OpenCarton decreases the carton line and moves its full cost to the box line
func (r *Recipes) OpenCarton(ctx context.Context, tx TransactionalRepositories, input OpenCartonInput) (stock.TransformationResult, error) {
	return r.engine.Transfer(ctx, tx, TransferInput{
		Recipe:        stock.RecipeOpenCarton,
		SourceID:      input.Carton.ProductLineID,
		SourceCosting: input.Carton.Costing,
		SourceKind:    stock.MovementKindCartonOpenOut,
		Targets:       toTransferTargets(input.Box),
		TargetKind:    stock.MovementKindCartonOpenIn,
		TotalCount:    input.CartonCount,
		SourceRef:     input.SourceRef,
		Description:   input.Description,
	})
}

// RestockFromBox consumes packs and rebuilds boxes from them
func (r *Recipes) RestockFromBox(ctx context.Context, tx TransactionalRepositories, input RestockInput) (stock.TransformationResult, error) {
	return r.restock(ctx, tx, stock.RecipeRestockFromBox, input)
}

// RestockFromCarton consumes boxes and rebuilds cartons from them
func (r *Recipes) RestockFromCarton(ctx context.Context, tx TransactionalRepositories, input RestockInput) (stock.TransformationResult, error) {
	return r.restock(ctx, tx, stock.RecipeRestockFromCarton, input)
}

func (r *Recipes) restock(ctx context.Context, tx TransactionalRepositories, recipe string, input RestockInput) (stock.TransformationResult, error) {
	return r.engine.Transfer(ctx, tx, TransferInput{
		Recipe:        recipe,
		SourceID:      input.Source.ProductLineID,
		SourceCosting: input.Source.Costing,
		SourceKind:    stock.MovementKindRestockOut,
		Targets:       toTransferTargets(input.Target),
		TargetKind:    stock.MovementKindRestockIn,
		TotalCount:    input.SourceCount,
		SourceRef:     input.SourceRef,
		Description:   input.Description,
	})
}

func toTransferTargets(targets ...RecipeTarget) []TransferTarget {
	out := make([]TransferTarget, len(targets))
	for i, t := range targets {
		out[i] = TransferTarget(t)
	}
	return out
}
