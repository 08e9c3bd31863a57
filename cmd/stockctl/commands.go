package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	appstock "github.com/posledger/backend/internal/application/stock"
	"github.com/posledger/backend/internal/domain/shared"
	"github.com/posledger/backend/internal/infrastructure/logger"
	"github.com/posledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"register":       {"register -store ID -item ID -condition C [-cost-mode M] [-policy P]", runRegister},
	"receive":        {"receive -line ID -portions 5@100,3@130 -ref PO-1", runReceive},
	"sell":           {"sell -line ID -qty N -ref INV-1", runRemove(false)},
	"write-off":      {"write-off -line ID -qty N -ref LOSS-1", runRemove(true)},
	"adjust":         {"adjust -line ID -delta N [-unit-cost C] -ref ADJ-1 -reason R", runAdjust},
	"open-box":       {"open-box -box ID -count N -packs ID:qty[,ID:qty] -ref OPEN-1", runOpenBox},
	"open-carton":    {"open-carton -carton ID -count N -box ID:qty -ref OPEN-2", runOpenCarton},
	"restock-box":    {"restock-box -packs-line ID -count N -box ID:qty -ref RS-1", runRestock(false)},
	"restock-carton": {"restock-carton -boxes-line ID -count N -carton ID:qty -ref RS-2", runRestock(true)},
	"ledger":         {"ledger -line ID [-page N] [-page-size N]", runLedger},
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Usage: stockctl <command> [flags]\n\nCommands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr, "\nConfiguration comes from config.toml and POS_* environment variables.")
}

// exec runs fn under an operation span and a scoped logger, then prints the result as JSON
func (a *app) exec(ctx context.Context, operation, sourceRef string, fn func(ctx context.Context) (any, error)) (err error) {
	ctx, log := logger.WithOperation(ctx, a.log, operation)
	if sourceRef != "" {
		ctx, log = logger.WithSourceRef(ctx, log, sourceRef)
	}
	ctx, span := telemetry.StartOperationSpan(ctx, operation, sourceRef)
	defer func() { telemetry.EndSpan(span, err) }()

	result, err := fn(ctx)
	if err != nil {
		log.Error("Operation failed", zap.Error(err))
		return err
	}
	log.Info("Operation completed")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("-%s: %w", name, err)
	}
	return id, nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register")
	store := fs.String("store", "", "store ID")
	item := fs.String("item", "", "catalog item ID")
	condition := fs.String("condition", "new", "item condition")
	specialty := fs.String("specialty", "", "specialty state")
	consignor := fs.String("consignor", "", "consignor ID")
	mgmt := fs.String("management-number", "", "management number")
	mode := fs.String("cost-mode", "", "individual or average (default from config)")
	policy := fs.String("policy", "", "consumption policy (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	storeID, err := parseID("store", *store)
	if err != nil {
		return err
	}
	itemID, err := parseID("item", *item)
	if err != nil {
		return err
	}
	consignorID, err := parseOptionalID(*consignor)
	if err != nil {
		return fmt.Errorf("-consignor: %w", err)
	}

	return a.exec(ctx, "register", "", func(ctx context.Context) (any, error) {
		return a.service.RegisterProductLine(ctx, appstock.RegisterProductLineRequest{
			StoreID:          storeID,
			ItemID:           itemID,
			Condition:        *condition,
			SpecialtyState:   *specialty,
			ConsignorID:      consignorID,
			ManagementNumber: *mgmt,
			CostMode:         *mode,
			Policy:           *policy,
		})
	})
}

func runReceive(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("receive")
	line := fs.String("line", "", "product line ID")
	portionsFlag := fs.String("portions", "", "qty@unitCost pairs, comma separated")
	ref := fs.String("ref", "", "source reference")
	desc := fs.String("desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lineID, err := parseID("line", *line)
	if err != nil {
		return err
	}
	portions, err := parsePortions(*portionsFlag)
	if err != nil {
		return err
	}

	return a.exec(ctx, "receiving", *ref, func(ctx context.Context) (any, error) {
		return a.service.Receive(ctx, appstock.ReceiveRequest{
			ProductLineID: lineID,
			Portions:      portions,
			SourceRef:     *ref,
			Description:   *desc,
		})
	})
}

func runRemove(writeOff bool) func(ctx context.Context, a *app, args []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		name, operation := "sell", "sale"
		if writeOff {
			name, operation = "write-off", "loss"
		}
		fs := newFlagSet(name)
		line := fs.String("line", "", "product line ID")
		qty := fs.Int64("qty", 0, "units to remove")
		ref := fs.String("ref", "", "source reference")
		desc := fs.String("desc", "", "description")
		if err := fs.Parse(args); err != nil {
			return err
		}

		lineID, err := parseID("line", *line)
		if err != nil {
			return err
		}
		req := appstock.RemoveRequest{ProductLineID: lineID, Quantity: *qty, SourceRef: *ref, Description: *desc}

		return a.exec(ctx, operation, *ref, func(ctx context.Context) (any, error) {
			if writeOff {
				return a.service.WriteOff(ctx, req)
			}
			return a.service.Sell(ctx, req)
		})
	}
}

func runAdjust(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("adjust")
	line := fs.String("line", "", "product line ID")
	delta := fs.Int64("delta", 0, "signed unit change")
	unitCost := fs.Int64("unit-cost", 0, "unit cost of added units")
	ref := fs.String("ref", "", "source reference")
	reason := fs.String("reason", "", "adjustment reason")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lineID, err := parseID("line", *line)
	if err != nil {
		return err
	}

	return a.exec(ctx, "manual_adjustment", *ref, func(ctx context.Context) (any, error) {
		cost, err := a.service.Adjust(ctx, appstock.AdjustRequest{
			ProductLineID: lineID,
			Delta:         *delta,
			UnitCost:      *unitCost,
			SourceRef:     *ref,
			Reason:        *reason,
		})
		if err != nil {
			return nil, err
		}
		return map[string]int64{"delta": *delta, "cost_delta": cost}, nil
	})
}

func runOpenBox(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("open-box")
	box := fs.String("box", "", "box product line ID")
	count := fs.Int64("count", 1, "boxes to open")
	packs := fs.String("packs", "", "pack targets as ID:qty, comma separated")
	ref := fs.String("ref", "", "source reference")
	desc := fs.String("desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	boxID, err := parseID("box", *box)
	if err != nil {
		return err
	}
	targets, err := parseTargets(*packs)
	if err != nil {
		return err
	}

	return a.exec(ctx, "open_box", *ref, func(ctx context.Context) (any, error) {
		return a.service.OpenBox(ctx, appstock.OpenBoxRequest{
			BoxID:       boxID,
			BoxCount:    *count,
			Packs:       targets,
			SourceRef:   *ref,
			Description: *desc,
		})
	})
}

func runOpenCarton(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("open-carton")
	carton := fs.String("carton", "", "carton product line ID")
	count := fs.Int64("count", 1, "cartons to open")
	boxFlag := fs.String("box", "", "box target as ID:qty")
	ref := fs.String("ref", "", "source reference")
	desc := fs.String("desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cartonID, err := parseID("carton", *carton)
	if err != nil {
		return err
	}
	target, err := parseTarget(*boxFlag)
	if err != nil {
		return err
	}

	return a.exec(ctx, "open_carton", *ref, func(ctx context.Context) (any, error) {
		return a.service.OpenCarton(ctx, appstock.OpenCartonRequest{
			CartonID:    cartonID,
			CartonCount: *count,
			Box:         target,
			SourceRef:   *ref,
			Description: *desc,
		})
	})
}

func runRestock(carton bool) func(ctx context.Context, a *app, args []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		name, sourceFlag, targetFlag, operation := "restock-box", "packs-line", "box", "restock_from_box"
		if carton {
			name, sourceFlag, targetFlag, operation = "restock-carton", "boxes-line", "carton", "restock_from_carton"
		}
		fs := newFlagSet(name)
		source := fs.String(sourceFlag, "", "product line consumed by the restock")
		count := fs.Int64("count", 0, "units consumed")
		targetSpec := fs.String(targetFlag, "", "rebuilt product line as ID:qty")
		ref := fs.String("ref", "", "source reference")
		desc := fs.String("desc", "", "description")
		if err := fs.Parse(args); err != nil {
			return err
		}

		sourceID, err := parseID(sourceFlag, *source)
		if err != nil {
			return err
		}
		target, err := parseTarget(*targetSpec)
		if err != nil {
			return err
		}
		req := appstock.RestockRequest{
			SourceID:    sourceID,
			SourceCount: *count,
			Target:      target,
			SourceRef:   *ref,
			Description: *desc,
		}

		return a.exec(ctx, operation, *ref, func(ctx context.Context) (any, error) {
			if carton {
				return a.service.RestockFromCarton(ctx, req)
			}
			return a.service.RestockFromBox(ctx, req)
		})
	}
}

func runLedger(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("ledger")
	line := fs.String("line", "", "product line ID")
	filter := shared.DefaultFilter()
	fs.IntVar(&filter.Page, "page", filter.Page, "movement page")
	fs.IntVar(&filter.PageSize, "page-size", filter.PageSize, "movements per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lineID, err := parseID("line", *line)
	if err != nil {
		return err
	}

	return a.exec(ctx, "ledger", "", func(ctx context.Context) (any, error) {
		return a.service.Ledger(ctx, lineID, filter)
	})
}
