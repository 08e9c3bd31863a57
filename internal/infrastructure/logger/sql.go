package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLoggerConfig controls which statements SQLLogger reports
type SQLLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration // 0 disables slow statement warnings
	LogNotFound   bool          // Report gorm.ErrRecordNotFound as an error
}

// SQLLogger reports GORM statements through zap. Each entry carries the
// stock operation, source reference and trace ID found on the context, and
// is marked as a read or a write.
type SQLLogger struct {
	base *zap.Logger
	cfg  SQLLoggerConfig
}

// NewSQLLogger creates a SQLLogger writing to base under the "sql" name
func NewSQLLogger(base *zap.Logger, cfg SQLLoggerConfig) *SQLLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &SQLLogger{base: base.Named("sql"), cfg: cfg}
}

// LogMode implements gormlogger.Interface
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface
func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface
func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, enabledAt gormlogger.LogLevel, level zapcore.Level, msg string, data []any) {
	if l.cfg.Level < enabledAt {
		return
	}
	if ce := l.base.Check(level, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write(contextFields(ctx)...)
	}
}

// Trace implements gormlogger.Interface
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level zapcore.Level
		msg   string
	)
	switch {
	case err != nil:
		if l.cfg.Level < gormlogger.Error || (!l.cfg.LogNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)) {
			return
		}
		level, msg = zapcore.ErrorLevel, "sql failed"
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold:
		if l.cfg.Level < gormlogger.Warn {
			return
		}
		level, msg = zapcore.WarnLevel, "slow sql"
	default:
		if l.cfg.Level < gormlogger.Info {
			return
		}
		level, msg = zapcore.DebugLevel, "sql"
	}

	ce := l.base.Check(level, msg)
	if ce == nil {
		return
	}
	sql, rows := fc()
	fields := append(contextFields(ctx),
		zap.String("statement", statementKind(sql)),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if level == zapcore.WarnLevel {
		fields = append(fields, zap.Duration("threshold", l.cfg.SlowThreshold))
	}
	ce.Write(fields...)
}

// contextFields returns the stock operation, source reference and trace ID
// set on ctx, skipping the ones that are absent
func contextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	if op := GetOperation(ctx); op != "" {
		fields = append(fields, zap.String("operation", op))
	}
	if ref := GetSourceRef(ctx); ref != "" {
		fields = append(fields, zap.String("source_ref", ref))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	return fields
}

// statementKind classifies a statement by its leading keyword
func statementKind(sql string) string {
	keyword, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	switch strings.ToUpper(keyword) {
	case "INSERT", "UPDATE", "DELETE":
		return "write"
	case "SELECT", "WITH":
		return "read"
	case "SAVEPOINT", "RELEASE", "ROLLBACK", "BEGIN", "COMMIT":
		return "transaction"
	}
	return "other"
}

// SQLLevel maps an application log level to the GORM level of SQLLogger.
// Statement traces are written at debug, so an info logger drops them.
func SQLLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
