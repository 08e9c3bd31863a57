package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	operationKey contextKey = "operation"
	sourceRefKey contextKey = "source_ref"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithOperation tags ctx and its logger with a stock operation name
// (e.g. "open_box", "sale")
func WithOperation(ctx context.Context, logger *zap.Logger, operation string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, operationKey, operation)
	enriched := logger.With(zap.String("operation", operation))
	return WithContext(ctx, enriched), enriched
}

// WithSourceRef tags ctx and its logger with the business document reference
// that caused the movement
func WithSourceRef(ctx context.Context, logger *zap.Logger, sourceRef string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, sourceRefKey, sourceRef)
	enriched := logger.With(zap.String("source_ref", sourceRef))
	return WithContext(ctx, enriched), enriched
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok {
		return op
	}
	return ""
}

// GetSourceRef retrieves the source reference from context
func GetSourceRef(ctx context.Context) string {
	if ref, ok := ctx.Value(sourceRefKey).(string); ok {
		return ref
	}
	return ""
}

// GetTraceID extracts the trace ID from the context's span.
// Returns an empty string if no valid span exists.
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// L returns the context's logger with trace_id/span_id added when a valid
// span is active.
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
