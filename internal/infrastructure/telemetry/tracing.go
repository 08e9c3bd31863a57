package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for stock operation spans
const TracerName = "posledger"

// StartOperationSpan starts a span named "stock.<operation>" tagged with the
// source reference. The caller must End it, see EndSpan.
func StartOperationSpan(ctx context.Context, operation, sourceRef string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("stock.operation", operation),
		attribute.String("stock.source_ref", sourceRef),
	)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "stock."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on the span (if any), sets its status and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
