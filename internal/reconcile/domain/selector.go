package reconcile

import "github.com/shopspring/decimal"

// RuleConfig holds the keyword sets and the effective-zero epsilon the field
// selector dispatches on. Values come from configuration, not code, so
// alternate profiles can be tested side by side.
type RuleConfig struct {
	// Epsilon is the magnitude below which a monetary field counts as zero.
	Epsilon float64 `yaml:"epsilon"`
	// QuantityCarriesCost lists item-name keywords for OthCharge lines whose
	// dollar value is stored in the quantity field.
	QuantityCarriesCost []string `yaml:"quantity_carries_cost"`
	// UnitCostItems lists item-name keywords valued as unit cost times
	// quantity (the maintenance/calibration carve-out).
	UnitCostItems []string `yaml:"unit_cost_items"`
}

// DefaultRuleConfig returns the rule configuration observed in the source
// ERP sync.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Epsilon: 0.01,
		QuantityCarriesCost: []string{
			"expense",
			"expense report",
			"exp rpt",
			"travel",
			"freight",
			"-freight",
			"shipping",
			"-material",
			"outside service",
			"misc material",
		},
		UnitCostItems: []string{"maintenance", "calibration"},
	}
}

// Rule is one entry of the ordered valuation table: when Applies holds, Value
// yields the line's cost and evaluation stops.
type Rule struct {
	Name    string
	Applies func(TransactionLine) bool
	Value   func(TransactionLine) decimal.Decimal
}

// Selector decides, per transaction line, which monetary field carries the
// true cost. It is a total function: every line yields a non-negative
// decimal and no input panics.
type Selector struct {
	cfg     RuleConfig
	epsilon decimal.Decimal
	rules   []Rule
}

// NewSelector builds a selector from the given rule configuration. A zero or
// negative epsilon falls back to one cent.
func NewSelector(cfg RuleConfig) *Selector {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.01
	}
	s := &Selector{cfg: cfg, epsilon: decimal.NewFromFloat(cfg.Epsilon)}
	s.rules = []Rule{
		{
			Name: "othcharge-quantity-as-dollars",
			Applies: func(line TransactionLine) bool {
				return line.ItemType == ItemTypeOthCharge &&
					s.effectivelyZero(line.LineCost) &&
					ContainsAnyFold(line.ItemName, s.cfg.QuantityCarriesCost) &&
					!s.effectivelyZero(line.Quantity)
			},
			Value: func(line TransactionLine) decimal.Decimal {
				return line.Quantity.Abs()
			},
		},
		{
			Name: "othcharge-unit-cost-times-quantity",
			Applies: func(line TransactionLine) bool {
				return line.ItemType == ItemTypeOthCharge &&
					s.effectivelyZero(line.LineCost) &&
					ContainsAnyFold(line.ItemName, s.cfg.UnitCostItems) &&
					!s.effectivelyZero(line.UnitCost) &&
					!s.effectivelyZero(line.Quantity)
			},
			Value: func(line TransactionLine) decimal.Decimal {
				return line.UnitCost.Mul(line.Quantity).Abs()
			},
		},
		{
			Name: "invtpart-quantity-mirror",
			Applies: func(line TransactionLine) bool {
				return line.ItemType == ItemTypeInvtPart &&
					s.effectivelyZero(line.LineCost) &&
					!s.effectivelyZero(line.Quantity)
			},
			Value: func(line TransactionLine) decimal.Decimal {
				return line.Quantity.Abs()
			},
		},
		{
			Name:    "line-cost",
			Applies: func(TransactionLine) bool { return true },
			Value: func(line TransactionLine) decimal.Decimal {
				return line.LineCost.Abs()
			},
		},
	}
	return s
}

// SelectLineCost returns the unsigned dollar cost of the line. Credits and
// returns carry negative source values; the engine reports magnitudes and
// leaves sign handling to the caller's bucketing.
func (s *Selector) SelectLineCost(line TransactionLine) decimal.Decimal {
	cost, _ := s.Explain(line)
	return cost
}

// Explain returns the selected cost together with the name of the rule that
// produced it. Used by the diagnostic report to show reviewers why a line
// was valued the way it was.
func (s *Selector) Explain(line TransactionLine) (decimal.Decimal, string) {
	for _, rule := range s.rules {
		if rule.Applies(line) {
			return rule.Value(line), rule.Name
		}
	}
	// Unreachable: the last rule always applies.
	return decimal.Zero, ""
}

// Config returns the rule configuration the selector was built from.
func (s *Selector) Config() RuleConfig { return s.cfg }

func (s *Selector) effectivelyZero(value decimal.Decimal) bool {
	return value.Abs().LessThan(s.epsilon)
}
