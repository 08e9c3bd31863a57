package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	appstock "github.com/posledger/backend/internal/application/stock"
	"github.com/posledger/backend/internal/domain/stock"
)

// parsePortions reads "qty@unitCost" pairs separated by commas, e.g. "5@100,3@130"
func parsePortions(s string) ([]stock.CostPortion, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("at least one qty@cost portion is required")
	}
	parts := strings.Split(s, ",")
	portions := make([]stock.CostPortion, 0, len(parts))
	for _, part := range parts {
		qty, cost, ok := strings.Cut(strings.TrimSpace(part), "@")
		if !ok {
			return nil, fmt.Errorf("portion %q: want qty@cost", part)
		}
		q, err := strconv.ParseInt(qty, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("portion %q: quantity: %w", part, err)
		}
		c, err := strconv.ParseInt(cost, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("portion %q: unit cost: %w", part, err)
		}
		portions = append(portions, stock.CostPortion{UnitCost: c, Quantity: q})
	}
	return portions, nil
}

// parseTarget reads "productLineID:qty"
func parseTarget(s string) (appstock.TargetRequest, error) {
	id, qty, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return appstock.TargetRequest{}, fmt.Errorf("target %q: want id:qty", s)
	}
	lineID, err := uuid.Parse(id)
	if err != nil {
		return appstock.TargetRequest{}, fmt.Errorf("target %q: %w", s, err)
	}
	q, err := strconv.ParseInt(qty, 10, 64)
	if err != nil {
		return appstock.TargetRequest{}, fmt.Errorf("target %q: quantity: %w", s, err)
	}
	return appstock.TargetRequest{ProductLineID: lineID, Quantity: q}, nil
}

// parseTargets reads comma separated "productLineID:qty" targets
func parseTargets(s string) ([]appstock.TargetRequest, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("at least one id:qty target is required")
	}
	parts := strings.Split(s, ",")
	targets := make([]appstock.TargetRequest, 0, len(parts))
	for _, part := range parts {
		t, err := parseTarget(part)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func parseOptionalID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
