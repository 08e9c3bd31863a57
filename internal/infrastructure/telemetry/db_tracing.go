package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/posledger/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type queryStartKey struct{}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// DBTracingPlugin registers otelgorm plus a callback that flags slow statements
// on the active span.
type DBTracingPlugin struct {
	enabled       bool
	logFullSQL    bool
	slowThreshold time.Duration
	logger        *zap.Logger
}

// NewDBTracingPlugin creates a plugin from the telemetry configuration
func NewDBTracingPlugin(cfg config.TelemetryConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.DBSlowQueryThresh
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	return &DBTracingPlugin{
		enabled:       cfg.DBTraceEnabled,
		logFullSQL:    cfg.DBLogFullSQL,
		slowThreshold: threshold,
		logger:        logger,
	}
}

// Register installs the tracing callbacks on db. It does nothing when DB tracing is off.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !p.logFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// Run inside otelgorm's span so the attributes land on the statement span.
	cb := db.Callback()
	for _, op := range []struct {
		name   string
		before callbackRegistrar
		after  callbackRegistrar
	}{
		{"create", cb.Create().After("otel:before:create").Before("gorm:create"), cb.Create().After("gorm:create").Before("otel:after:create")},
		{"query", cb.Query().After("otel:before:query").Before("gorm:query"), cb.Query().After("gorm:query").Before("otel:after:query")},
		{"update", cb.Update().After("otel:before:update").Before("gorm:update"), cb.Update().After("gorm:update").Before("otel:after:update")},
		{"delete", cb.Delete().After("otel:before:delete").Before("gorm:delete"), cb.Delete().After("gorm:delete").Before("otel:after:delete")},
	} {
		if err := op.before.Register("stock_trace:before_"+op.name, p.before); err != nil {
			return err
		}
		if err := op.after.Register("stock_trace:after_"+op.name, p.after); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.logFullSQL),
		zap.Duration("slow_query_threshold", p.slowThreshold),
	)
	return nil
}

func (p *DBTracingPlugin) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	slow := elapsed > p.slowThreshold
	if slow {
		p.logger.Warn("slow stock query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
		)
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
	}
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
