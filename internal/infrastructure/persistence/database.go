package persistence

import (
	"fmt"
	"time"

	"github.com/posledger/backend/internal/infrastructure/config"
	"github.com/posledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection
type Database struct {
	DB *gorm.DB
}

// Option configures how the database connection is opened
type Option func(*options)

type options struct {
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
	prepareStmt   bool
}

// WithLogLevel sets the GORM log level (see logger.SQLLevel)
func WithLogLevel(level gormlogger.LogLevel) Option {
	return func(o *options) { o.logLevel = level }
}

// WithSlowThreshold sets the duration above which statements are logged as slow
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) { o.slowThreshold = d }
}

// NewDatabase connects to PostgreSQL. GORM output goes through zapLogger.
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger, opts ...Option) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, zapLogger, append([]Option{func(o *options) { o.prepareStmt = true }}, opts...)...)
}

// Open opens a database through any GORM dialector and applies the pool settings in cfg.
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, zapLogger *zap.Logger, opts ...Option) (*Database, error) {
	o := options{logLevel: gormlogger.Warn, slowThreshold: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewSQLLogger(zapLogger, logger.SQLLoggerConfig{Level: o.logLevel, SlowThreshold: o.slowThreshold}),
		SkipDefaultTransaction: true,
		PrepareStmt:            o.prepareStmt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg != nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// TransactionScope returns a stock transaction scope over this connection
func (d *Database) TransactionScope() *GormTransactionScope {
	return NewGormTransactionScope(d.DB)
}
