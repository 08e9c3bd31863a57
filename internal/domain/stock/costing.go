package stock

import (
	"strings"

	"github.com/posledger/backend/internal/domain/shared"
)

// CostMode selects how acquisition cost is kept for a product line
type CostMode string

const (
	// CostModeIndividual keeps one layer per acquisition batch
	CostModeIndividual CostMode = "individual"
	// CostModeAverage keeps a single synthetic layer at the weighted mean cost
	CostModeAverage CostMode = "average"
)

// String returns the string representation of the cost mode
func (m CostMode) String() string {
	return string(m)
}

// IsValid returns true if the cost mode is known
func (m CostMode) IsValid() bool {
	switch m {
	case CostModeIndividual, CostModeAverage:
		return true
	}
	return false
}

// ParseCostMode parses a configured cost mode name
func ParseCostMode(s string) (CostMode, error) {
	m := CostMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", shared.Errorf(shared.ErrInvalidArgument, "unknown cost mode %q", s)
	}
	return m, nil
}

// ConsumptionPolicy is the order in which cost layers are consumed
type ConsumptionPolicy string

const (
	// PolicyOldestFirst consumes layers in ascending creation order (FIFO)
	PolicyOldestFirst ConsumptionPolicy = "oldest_first"
	// PolicyNewestFirst consumes layers in descending creation order (LIFO)
	PolicyNewestFirst ConsumptionPolicy = "newest_first"
	// PolicyHighestCostFirst consumes the most expensive layers first
	PolicyHighestCostFirst ConsumptionPolicy = "highest_cost_first"
	// PolicyLowestCostFirst consumes the cheapest layers first
	PolicyLowestCostFirst ConsumptionPolicy = "lowest_cost_first"
	// PolicyAverage collapses all units into one averaged layer
	PolicyAverage ConsumptionPolicy = "average"
)

// String returns the string representation of the policy
func (p ConsumptionPolicy) String() string {
	return string(p)
}

// IsValid returns true if the policy is known
func (p ConsumptionPolicy) IsValid() bool {
	switch p {
	case PolicyOldestFirst,
		PolicyNewestFirst,
		PolicyHighestCostFirst,
		PolicyLowestCostFirst,
		PolicyAverage:
		return true
	}
	return false
}

// ParseConsumptionPolicy parses a policy name. Hyphenated spellings
// ("oldest-first") are accepted as well.
func ParseConsumptionPolicy(s string) (ConsumptionPolicy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	p := ConsumptionPolicy(normalized)
	if !p.IsValid() {
		return "", shared.Errorf(shared.ErrInvalidArgument, "unknown consumption policy %q", s)
	}
	return p, nil
}

// Costing is the cost-keeping configuration a caller passes into every
// movement. It is read from store settings by the caller, never by the engine.
type Costing struct {
	Mode   CostMode
	Policy ConsumptionPolicy
}

// NewCosting builds and validates a Costing
func NewCosting(mode CostMode, policy ConsumptionPolicy) (Costing, error) {
	c := Costing{Mode: mode, Policy: policy}
	if err := c.Validate(); err != nil {
		return Costing{}, err
	}
	return c, nil
}

// Validate checks the mode/policy pair
func (c Costing) Validate() error {
	if !c.Mode.IsValid() {
		return shared.Errorf(shared.ErrInvalidArgument, "unknown cost mode %q", c.Mode)
	}
	if !c.Policy.IsValid() {
		return shared.Errorf(shared.ErrInvalidArgument, "unknown consumption policy %q", c.Policy)
	}
	if c.Policy == PolicyAverage && c.Mode != CostModeAverage {
		return shared.Errorf(shared.ErrInvalidArgument, "policy %q requires cost mode %q", PolicyAverage, CostModeAverage)
	}
	return nil
}

// IsAverage returns true when units are kept in one synthetic layer
func (c Costing) IsAverage() bool {
	return c.Mode == CostModeAverage
}
