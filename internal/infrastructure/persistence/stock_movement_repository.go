package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"github.com/posledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements StockMovementRepository using GORM.
// Rows are only ever inserted.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Append inserts a movement record
func (r *GormStockMovementRepository) Append(ctx context.Context, movement *stock.StockMovement) error {
	return r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(movement)).Error
}

// FindByProductLine lists the movements of a product line
func (r *GormStockMovementRepository) FindByProductLine(ctx context.Context, productLineID uuid.UUID, filter shared.Filter) ([]stock.StockMovement, error) {
	var rows []models.StockMovementModel
	query := applyFilter(
		r.db.WithContext(ctx).Model(&models.StockMovementModel{}).Where("product_line_id = ?", productLineID),
		filter,
		StockMovementSortFields,
	)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMovements(rows), nil
}

// FindBySource lists movements created under one source reference, oldest first
func (r *GormStockMovementRepository) FindBySource(ctx context.Context, sourceRef string) ([]stock.StockMovement, error) {
	var rows []models.StockMovementModel
	if err := r.db.WithContext(ctx).
		Where("source_ref = ?", sourceRef).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toMovements(rows), nil
}

// CountByProductLine counts the movements of a product line
func (r *GormStockMovementRepository) CountByProductLine(ctx context.Context, productLineID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("product_line_id = ?", productLineID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func toMovements(rows []models.StockMovementModel) []stock.StockMovement {
	movements := make([]stock.StockMovement, len(rows))
	for i := range rows {
		movements[i] = *rows[i].ToDomain()
	}
	return movements
}

// Ensure GormStockMovementRepository implements StockMovementRepository
var _ stock.StockMovementRepository = (*GormStockMovementRepository)(nil)
