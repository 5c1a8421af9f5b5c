package reconcile

import "github.com/shopspring/decimal"

// Status is the categorical outcome of comparing a computed value against a
// reference actual.
type Status string

const (
	StatusMatch  Status = "MATCH"
	StatusClose  Status = "CLOSE"
	StatusCheck  Status = "CHECK"
	StatusNoData Status = "NO_DATA"
)

// Severity ranks reviewer attention for a finding.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Tolerances is the dual-threshold tolerance band for variance
// classification. The absolute floor keeps small-dollar entities from being
// flagged on percentage noise; the relative band keeps large-dollar entities
// from hiding behind a small percentage.
//
// The two source reconciliation scripts disagreed slightly on these
// constants; they are configuration, with the defaults below as the working
// values until the domain owner confirms a single source of truth.
type Tolerances struct {
	// MatchAbs: |delta| below this is MATCH.
	MatchAbs float64 `yaml:"match_abs"`
	// CloseAbs: |delta| below this is CLOSE even when the percent band fails.
	CloseAbs float64 `yaml:"close_abs"`
	// ClosePct: |deltaPct| below this is CLOSE.
	ClosePct float64 `yaml:"close_pct"`
	// HighPct: a CHECK whose |deltaPct| exceeds this escalates to HIGH.
	HighPct float64 `yaml:"high_pct"`
}

// DefaultTolerances returns the working tolerance band: $1 / $200 / 10% / 20%.
func DefaultTolerances() Tolerances {
	return Tolerances{MatchAbs: 1, CloseAbs: 200, ClosePct: 10, HighPct: 20}
}

// Variance is one classified computed-vs-reference comparison. DeltaPct is a
// percentage, already multiplied by 100.
type Variance struct {
	EntityKey EntityKey       `json:"entityKey"`
	Computed  decimal.Decimal `json:"computedValue"`
	Reference decimal.Decimal `json:"referenceValue"`
	Delta     decimal.Decimal `json:"delta"`
	DeltaPct  decimal.Decimal `json:"deltaPct"`
	Status    Status          `json:"status"`
}

var hundred = decimal.NewFromInt(100)

// Classify compares a computed value against a reference actual and assigns
// a status from the tolerance band. NO_DATA is never produced here; it is
// assigned upstream when an entity has no linked source lines at all.
func (t Tolerances) Classify(key EntityKey, computed, reference decimal.Decimal) Variance {
	delta := computed.Sub(reference)

	var deltaPct decimal.Decimal
	switch {
	case reference.Sign() > 0:
		deltaPct = delta.Div(reference).Mul(hundred)
	case computed.Sign() > 0:
		deltaPct = hundred
	default:
		deltaPct = decimal.Zero
	}

	status := StatusCheck
	switch {
	case delta.Abs().LessThan(decimal.NewFromFloat(t.MatchAbs)):
		status = StatusMatch
	case deltaPct.Abs().LessThan(decimal.NewFromFloat(t.ClosePct)) ||
		delta.Abs().LessThan(decimal.NewFromFloat(t.CloseAbs)):
		status = StatusClose
	}

	return Variance{
		EntityKey: key,
		Computed:  computed,
		Reference: reference,
		Delta:     delta,
		DeltaPct:  deltaPct,
		Status:    status,
	}
}

// EscalateSeverity maps a classified variance to reviewer severity: CHECK
// beyond the wide percent band is HIGH, any other CHECK is MEDIUM, everything
// else is LOW.
func (t Tolerances) EscalateSeverity(v Variance) Severity {
	if v.Status != StatusCheck {
		return SeverityLow
	}
	if v.DeltaPct.Abs().GreaterThan(decimal.NewFromFloat(t.HighPct)) {
		return SeverityHigh
	}
	return SeverityMedium
}

// Merge overlays non-zero override fields onto the receiver, mirroring
// per-entity profile overrides in configuration.
func (t Tolerances) Merge(override Tolerances) Tolerances {
	if override.MatchAbs != 0 {
		t.MatchAbs = override.MatchAbs
	}
	if override.CloseAbs != 0 {
		t.CloseAbs = override.CloseAbs
	}
	if override.ClosePct != 0 {
		t.ClosePct = override.ClosePct
	}
	if override.HighPct != 0 {
		t.HighPct = override.HighPct
	}
	return t
}
