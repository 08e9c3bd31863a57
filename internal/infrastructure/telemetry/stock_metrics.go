package telemetry

import (
	"context"
	"errors"

	appstock "github.com/posledger/backend/internal/application/stock"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/domain/stock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StockMetrics records movement engine activity as OpenTelemetry counters.
// It implements the engine's MovementRecorder.
type StockMetrics struct {
	movements       *Counter
	units           *Counter
	cost            *Counter
	transformations *Counter
	transformedCost *Histogram
	failures        *Counter
}

// NewStockMetrics creates the stock instruments on meter
func NewStockMetrics(meter metric.Meter) (*StockMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   StockMetrics
		err error
	)
	if m.movements, err = NewCounter(meter, "posledger_stock_movements_total", "Stock movements recorded", "{movements}"); err != nil {
		return nil, err
	}
	if m.units, err = NewCounter(meter, "posledger_stock_units_total", "Units moved, by kind and direction", "{units}"); err != nil {
		return nil, err
	}
	if m.cost, err = NewCounter(meter, "posledger_stock_cost_total", "Cost moved in the smallest currency unit", "{currency_unit}"); err != nil {
		return nil, err
	}
	if m.transformations, err = NewCounter(meter, "posledger_transformations_total", "Completed transformations", "{transformations}"); err != nil {
		return nil, err
	}
	if m.transformedCost, err = NewHistogram(meter, "posledger_transformation_cost", "Cost carried by one transformation", "{currency_unit}",
		100, 1000, 10000, 100000, 1000000); err != nil {
		return nil, err
	}
	if m.failures, err = NewCounter(meter, "posledger_stock_failures_total", "Failed engine operations, by error code", "{failures}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordMovement counts one increase or decrease. Negative units/cost mark a decrease.
func (m *StockMetrics) RecordMovement(ctx context.Context, kind stock.MovementKind, units, cost int64) {
	direction := "in"
	if units < 0 {
		direction = "out"
		units, cost = -units, -cost
	}
	attrs := []attribute.KeyValue{
		attribute.String("kind", kind.String()),
		attribute.String("direction", direction),
	}
	m.movements.Inc(ctx, attrs...)
	m.units.Add(ctx, units, attrs...)
	m.cost.Add(ctx, cost, attrs...)
}

// RecordTransformation counts a completed recipe and marks it on the active span
func (m *StockMetrics) RecordTransformation(ctx context.Context, recipe string, units, cost int64) {
	attr := attribute.String("recipe", recipe)
	m.transformations.Inc(ctx, attr)
	m.transformedCost.Record(ctx, cost, attr)

	trace.SpanFromContext(ctx).AddEvent("stock.transformation", trace.WithAttributes(
		attr,
		attribute.Int64("units", units),
		attribute.Int64("cost", cost),
	))
}

// RecordFailure counts a failed operation under its domain error code
func (m *StockMetrics) RecordFailure(ctx context.Context, operation string, err error) {
	m.failures.Inc(ctx,
		attribute.String("operation", operation),
		attribute.String("code", errorCode(err)),
	)
}

func errorCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL"
}

var _ appstock.MovementRecorder = (*StockMetrics)(nil)
