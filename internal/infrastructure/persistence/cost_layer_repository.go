package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"github.com/posledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCostLayerRepository implements CostLayerRepository using GORM
type GormCostLayerRepository struct {
	db *gorm.DB
}

// NewGormCostLayerRepository creates a new GormCostLayerRepository
func NewGormCostLayerRepository(db *gorm.DB) *GormCostLayerRepository {
	return &GormCostLayerRepository{db: db}
}

// FindByProductLine returns the live layers of a product line in creation order
func (r *GormCostLayerRepository) FindByProductLine(ctx context.Context, productLineID uuid.UUID) ([]stock.CostLayer, error) {
	var rows []models.CostLayerModel
	if err := r.db.WithContext(ctx).
		Where("product_line_id = ? AND quantity > 0", productLineID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	layers := make([]stock.CostLayer, len(rows))
	for i := range rows {
		layers[i] = *rows[i].ToDomain()
	}
	return layers, nil
}

// Save creates or updates a layer
func (r *GormCostLayerRepository) Save(ctx context.Context, layer *stock.CostLayer) error {
	if layer.IsClosed() {
		return shared.Errorf(shared.ErrInvalidArgument, "closed layer %s must be deleted, not saved", layer.ID)
	}
	return r.db.WithContext(ctx).Save(models.CostLayerModelFromDomain(layer)).Error
}

// Delete removes a closed layer
func (r *GormCostLayerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.CostLayerModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.Errorf(shared.ErrNotFound, "cost layer %s not found", id)
	}
	return nil
}

// Ensure GormCostLayerRepository implements CostLayerRepository
var _ stock.CostLayerRepository = (*GormCostLayerRepository)(nil)
