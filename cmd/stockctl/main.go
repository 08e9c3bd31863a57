// Command stockctl is the operator CLI for the stock cost ledger. It registers
// product lines, books receipts and removals, runs pack/box/carton recipes and
// prints the cost ledger of a line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appstock "github.com/posledger/backend/internal/application/stock"
	"github.com/posledger/backend/internal/infrastructure/cache"
	"github.com/posledger/backend/internal/infrastructure/config"
	"github.com/posledger/backend/internal/infrastructure/logger"
	"github.com/posledger/backend/internal/infrastructure/persistence"
	"github.com/posledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "stockctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(log)

	return cmd.run(ctx, a, args)
}

// app holds the wired service and everything that must be released on exit
type app struct {
	service  *appstock.TransformationService
	db       *persistence.Database
	meters   *telemetry.MeterProvider
	tracers  *telemetry.TracerProvider
	log      *zap.Logger
	closeFns []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}

	tracers, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, err
	}
	a.tracers = tracers

	meters, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		a.close(log)
		return nil, err
	}
	a.meters = meters

	db, err := persistence.NewDatabase(&cfg.Database, log,
		persistence.WithLogLevel(logger.SQLLevel(cfg.Log.Level)),
		persistence.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	if err != nil {
		a.close(log)
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	if err := telemetry.NewDBTracingPlugin(cfg.Telemetry, log).Register(db.DB); err != nil {
		a.close(log)
		return nil, fmt.Errorf("register db tracing: %w", err)
	}

	engine := appstock.NewMovementEngine(log)
	metrics, err := telemetry.NewStockMetrics(meters.Meter("posledger/stock"))
	if err != nil {
		a.close(log)
		return nil, err
	}
	engine.SetRecorder(metrics)

	service := appstock.NewTransformationService(db.TransactionScope(), engine, log)
	costing, err := cfg.Stock.Costing()
	if err != nil {
		a.close(log)
		return nil, err
	}
	if err := service.SetDefaultCosting(costing); err != nil {
		a.close(log)
		return nil, err
	}

	// A process-local store does not outlive one stockctl run; duplicates are
	// caught by the movement log check instead.
	if cfg.Stock.IdempotencyBackend == config.IdempotencyBackendMemory {
		log.Warn("in-memory idempotency store ignored by stockctl")
		cfg.Stock.IdempotencyBackend = config.IdempotencyBackendNone
	}
	factory := cache.NewIdempotencyStoreFactory(cfg, cache.WithLogger(log), cache.WithInMemoryFallback(false))
	store, err := factory.CreateStore(ctx)
	if err != nil {
		a.close(log)
		return nil, fmt.Errorf("create idempotency store: %w", err)
	}
	if store != nil {
		service.SetIdempotencyStore(store, factory.Config())
		a.closeFns = append(a.closeFns, store.Close)
	}

	a.service = service
	return a, nil
}

func (a *app) close(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errs := make([]error, 0, len(a.closeFns)+3)
	for _, fn := range a.closeFns {
		errs = append(errs, fn())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.meters != nil {
		errs = append(errs, a.meters.Shutdown(ctx))
	}
	if a.tracers != nil {
		errs = append(errs, a.tracers.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("Shutdown finished with errors", zap.Error(err))
	}
}
