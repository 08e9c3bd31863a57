package cache

import (
	"context"
	"fmt"

	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory creates the transformation guard selected by
// stock.idempotency_backend
type IdempotencyStoreFactory struct {
	stockConfig           config.StockConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is false.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg *config.Config, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		stockConfig: cfg.Stock,
		redisConfig: cfg.Redis,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the guard settings for TransformationService.SetIdempotencyStore
func (f *IdempotencyStoreFactory) Config() shared.IdempotencyConfig {
	return shared.IdempotencyConfig{
		TTL:     f.stockConfig.IdempotencyTTL,
		Enabled: f.stockConfig.IdempotencyBackend != config.IdempotencyBackendNone,
	}
}

// CreateStore builds the configured store. It returns nil, nil for the
// "none" backend.
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	switch f.stockConfig.IdempotencyBackend {
	case config.IdempotencyBackendNone:
		f.logger.Info("transformation idempotency guard disabled")
		return nil, nil
	case config.IdempotencyBackendMemory:
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(0), nil
	case config.IdempotencyBackendRedis:
		store, err := NewRedisIdempotencyStore(ctx, f.redisConfig)
		if err == nil {
			f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
			return store, nil
		}
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis idempotency store unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
			"duplicate transformations are only caught within this process",
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(0), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", f.stockConfig.IdempotencyBackend)
	}
}
