package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"github.com/posledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductLineRepository implements ProductLineRepository using GORM
type GormProductLineRepository struct {
	db *gorm.DB
}

// NewGormProductLineRepository creates a new GormProductLineRepository
func NewGormProductLineRepository(db *gorm.DB) *GormProductLineRepository {
	return &GormProductLineRepository{db: db}
}

// FindByID finds a product line by its ID
func (r *GormProductLineRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.ProductLine, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a product line and takes a row lock (SELECT ... FOR UPDATE).
// Only meaningful inside a transaction.
func (r *GormProductLineRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*stock.ProductLine, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormProductLineRepository) find(query *gorm.DB, id uuid.UUID) (*stock.ProductLine, error) {
	var model models.ProductLineModel
	if err := query.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.Errorf(shared.ErrNotFound, "product line %s not found", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStore lists the product lines of a store
func (r *GormProductLineRepository) FindByStore(ctx context.Context, storeID uuid.UUID, filter shared.Filter) ([]stock.ProductLine, error) {
	var rows []models.ProductLineModel
	query := applyFilter(
		r.db.WithContext(ctx).Model(&models.ProductLineModel{}).Where("store_id = ?", storeID),
		filter,
		ProductLineSortFields,
	)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	lines := make([]stock.ProductLine, len(rows))
	for i := range rows {
		lines[i] = *rows[i].ToDomain()
	}
	return lines, nil
}

// Create inserts a new product line
func (r *GormProductLineRepository) Create(ctx context.Context, line *stock.ProductLine) error {
	return r.db.WithContext(ctx).Create(models.ProductLineModelFromDomain(line)).Error
}

// SaveWithLock saves with optimistic locking. The stored row must still carry
// the version the line was read at (line.Version - 1).
func (r *GormProductLineRepository) SaveWithLock(ctx context.Context, line *stock.ProductLine) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductLineModel{}).
		Where("id = ? AND version = ?", line.ID, line.Version-1).
		Updates(map[string]any{
			"quantity":   line.Quantity,
			"cost_mode":  string(line.CostMode),
			"policy":     string(line.Policy),
			"version":    line.Version,
			"updated_at": line.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.Errorf(shared.ErrConcurrencyConflict, "product line %s was modified by another transaction", line.ID)
	}
	return nil
}

// Ensure GormProductLineRepository implements ProductLineRepository
var _ stock.ProductLineRepository = (*GormProductLineRepository)(nil)
