package stock

import (
	"context"

	"github.com/posledger/backend/internal/domain/stock"
)

// TransactionScope provides transactional access to stock repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all stock repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// The MovementEngine only ever sees this handle. It reads and writes through it and never
// begins, commits or rolls back on its own, so one transformation (one decrease plus N
// increases) lands in the caller's single transaction.
type TransactionalRepositories interface {
	// ProductLineRepo returns the product line repository scoped to the current transaction
	ProductLineRepo() stock.ProductLineRepository
	// CostLayerRepo returns the cost layer repository scoped to the current transaction
	CostLayerRepo() stock.CostLayerRepository
	// MovementRepo returns the append-only movement repository scoped to the current transaction
	MovementRepo() stock.StockMovementRepository
	// SavePoint marks a point inside the current transaction that RollbackTo can return to
	SavePoint(name string) error
	// RollbackTo discards every write made since the named savepoint
	RollbackTo(name string) error
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	productLineRepo stock.ProductLineRepository
	costLayerRepo   stock.CostLayerRepository
	movementRepo    stock.StockMovementRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	productLineRepo stock.ProductLineRepository,
	costLayerRepo stock.CostLayerRepository,
	movementRepo stock.StockMovementRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		productLineRepo: productLineRepo,
		costLayerRepo:   costLayerRepo,
		movementRepo:    movementRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ProductLineRepo returns the product line repository.
func (s *NoOpTransactionScope) ProductLineRepo() stock.ProductLineRepository {
	return s.productLineRepo
}

// CostLayerRepo returns the cost layer repository.
func (s *NoOpTransactionScope) CostLayerRepo() stock.CostLayerRepository {
	return s.costLayerRepo
}

// MovementRepo returns the stock movement repository.
func (s *NoOpTransactionScope) MovementRepo() stock.StockMovementRepository {
	return s.movementRepo
}

// SavePoint is a no-op; writes made without a transaction cannot be undone.
func (s *NoOpTransactionScope) SavePoint(string) error {
	return nil
}

// RollbackTo is a no-op.
func (s *NoOpTransactionScope) RollbackTo(string) error {
	return nil
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
