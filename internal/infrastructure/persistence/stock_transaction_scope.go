package persistence

import (
	"context"

	appstock "github.com/posledger/backend/internal/application/stock"
	"github.com/posledger/backend/internal/domain/stock"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// A whole transformation (one decrease plus its increases) commits or rolls
// back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction, rolling back if it returns an error.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// ProductLineRepo returns the product line repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ProductLineRepo() stock.ProductLineRepository {
	return NewGormProductLineRepository(r.tx)
}

// CostLayerRepo returns the cost layer repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CostLayerRepo() stock.CostLayerRepository {
	return NewGormCostLayerRepository(r.tx)
}

// MovementRepo returns the stock movement repository scoped to the current transaction.
func (r *gormTransactionalRepositories) MovementRepo() stock.StockMovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

// SavePoint creates a named savepoint in the current transaction.
func (r *gormTransactionalRepositories) SavePoint(name string) error {
	return r.tx.SavePoint(name).Error
}

// RollbackTo rolls the current transaction back to a named savepoint.
func (r *gormTransactionalRepositories) RollbackTo(name string) error {
	return r.tx.RollbackTo(name).Error
}

var _ appstock.TransactionScope = (*GormTransactionScope)(nil)
var _ appstock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
