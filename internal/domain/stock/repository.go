package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
)

// ProductLineRepository defines the interface for product line persistence
type ProductLineRepository interface {
	// FindByID finds a product line by ID
	FindByID(ctx context.Context, id uuid.UUID) (*ProductLine, error)
	// FindByIDForUpdate finds a product line and locks its row until the
	// surrounding transaction ends. Concurrent movements on the same line
	// serialize here.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ProductLine, error)
	// FindByStore lists the product lines of a store
	FindByStore(ctx context.Context, storeID uuid.UUID, filter shared.Filter) ([]ProductLine, error)
	// Create inserts a new product line
	Create(ctx context.Context, line *ProductLine) error
	// SaveWithLock updates a product line, checking the version it was read at
	SaveWithLock(ctx context.Context, line *ProductLine) error
}

// CostLayerRepository defines the interface for cost layer persistence.
// Only live layers (Quantity > 0) are stored.
type CostLayerRepository interface {
	// FindByProductLine returns every live layer of a product line
	FindByProductLine(ctx context.Context, productLineID uuid.UUID) ([]CostLayer, error)
	// Save creates or updates a layer
	Save(ctx context.Context, layer *CostLayer) error
	// Delete removes a closed layer
	Delete(ctx context.Context, id uuid.UUID) error
}

// StockMovementRepository is the append-only store of movement records
type StockMovementRepository interface {
	// Append inserts a movement record
	Append(ctx context.Context, movement *StockMovement) error
	// FindByProductLine lists movements of a product line, newest first by default
	FindByProductLine(ctx context.Context, productLineID uuid.UUID, filter shared.Filter) ([]StockMovement, error)
	// FindBySource lists movements created under one source reference, oldest first
	FindBySource(ctx context.Context, sourceRef string) ([]StockMovement, error)
	// CountByProductLine counts movements of a product line
	CountByProductLine(ctx context.Context, productLineID uuid.UUID) (int64, error)
}
