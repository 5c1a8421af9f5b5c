package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Linkage carries the pre-fetched WO/SO linkage state of one entity. The
// reporter itself performs no I/O; the caller materializes linkage from the
// synced mirror before building the report.
type Linkage struct {
	WorkOrders       []string
	MirroredOrders   []string
	SalesOrder       string
	SalesOrderFound  bool
	RevenueLineCount int
}

// ReferenceActual is the externally sourced (spreadsheet-imported) truth for
// an entity and period, immutable within a run.
type ReferenceActual struct {
	EntityKey EntityKey
	Year      int
	Month     int
	Revenue   decimal.Decimal
	Cost      decimal.Decimal
}

// EntityReview is everything the reporter needs to judge one entity.
type EntityReview struct {
	Key             EntityKey
	ComputedCost    decimal.Decimal
	ComputedRevenue decimal.Decimal
	LineCount       int
	Reference       *ReferenceActual
	Linkage         Linkage
}

// Finding is one reviewer-facing discrepancy.
type Finding struct {
	EntityKey EntityKey `json:"entityKey"`
	Severity  Severity  `json:"severity"`
	Reason    string    `json:"reason"`
	Variance  *Variance `json:"variance,omitempty"`
	// Magnitude orders findings within a severity group: |delta| for
	// variance findings, |computed - reference cost| context otherwise.
	Magnitude decimal.Decimal `json:"magnitude"`
}

// Report is the ranked output of one reconciliation run.
type Report struct {
	Results  []Variance `json:"results"`
	Findings []Finding  `json:"findings"`
	Top      []Finding  `json:"top"`
	Summary  Summary    `json:"summary"`
}

// Summary counts outcomes across the run.
type Summary struct {
	Entities int `json:"entities"`
	Match    int `json:"match"`
	Close    int `json:"close"`
	Check    int `json:"check"`
	NoData   int `json:"noData"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
}

// Reporter builds ranked discrepancy reports. Read-only and total: it never
// mutates its inputs and every input yields a defined report.
type Reporter struct {
	tolerances Tolerances
	topN       int
	resolve    func(EntityKey) Tolerances
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithProfileResolver supplies per-entity tolerance profiles. Entities the
// resolver does not know fall back to the reporter's defaults.
func WithProfileResolver(resolve func(EntityKey) Tolerances) ReporterOption {
	return func(r *Reporter) { r.resolve = resolve }
}

// NewReporter constructs a reporter. A non-positive topN falls back to 10.
func NewReporter(tolerances Tolerances, topN int, opts ...ReporterOption) *Reporter {
	if topN <= 0 {
		topN = 10
	}
	r := &Reporter{tolerances: tolerances, topN: topN}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) tolerancesFor(key EntityKey) Tolerances {
	if r.resolve == nil {
		return r.tolerances
	}
	return r.resolve(key)
}

// Linkage pre-check reasons, evaluated in order with short-circuit on the
// first failure.
const (
	ReasonImpossibleGPM  = "impossible GPM"
	ReasonNoWorkOrder    = "no work order linked"
	ReasonWONotInMirror  = "work order not in synced mirror"
	ReasonWONoSalesOrder = "work order not linked to sales order"
	ReasonSONotFound     = "sales order not found"
	ReasonSONoLines      = "no matching lines in sales order"
)

// Build judges every entity and ranks the findings: severity group first,
// then absolute dollar magnitude descending. All HIGH and MEDIUM findings are
// surfaced; Top is the capped cross-severity summary table.
func (r *Reporter) Build(entities []EntityReview) Report {
	report := Report{Summary: Summary{Entities: len(entities)}}

	for _, entity := range entities {
		if finding, flagged := r.sanityCheck(entity); flagged {
			report.Findings = append(report.Findings, finding)
			report.Summary.High++
			continue
		}

		if finding, blocked := r.linkageCheck(entity); blocked {
			report.Findings = append(report.Findings, finding)
			report.Results = append(report.Results, Variance{
				EntityKey: entity.Key,
				Computed:  entity.ComputedCost,
				Reference: referenceCost(entity),
				Status:    StatusNoData,
			})
			report.Summary.NoData++
			if finding.Severity == SeverityHigh {
				report.Summary.High++
			} else {
				report.Summary.Medium++
			}
			continue
		}

		tolerances := r.tolerancesFor(entity.Key)
		variance := tolerances.Classify(entity.Key, entity.ComputedCost, referenceCost(entity))
		report.Results = append(report.Results, variance)
		switch variance.Status {
		case StatusMatch:
			report.Summary.Match++
		case StatusClose:
			report.Summary.Close++
		case StatusCheck:
			report.Summary.Check++
			severity := tolerances.EscalateSeverity(variance)
			if severity == SeverityHigh {
				report.Summary.High++
			} else {
				report.Summary.Medium++
			}
			v := variance
			report.Findings = append(report.Findings, Finding{
				EntityKey: entity.Key,
				Severity:  severity,
				Reason:    "cost variance",
				Variance:  &v,
				Magnitude: variance.Delta.Abs(),
			})
		}
	}

	rankFindings(report.Findings)
	report.Top = capFindings(report.Findings, r.topN)
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].EntityKey < report.Results[j].EntityKey
	})
	return report
}

// sanityCheck flags structurally impossible books before any variance
// comparison. GPM outside [0,100] with positive revenue is a data-entry error
// upstream, not a reconciliation mismatch worth chasing further.
func (r *Reporter) sanityCheck(entity EntityReview) (Finding, bool) {
	if entity.ComputedRevenue.Sign() <= 0 {
		return Finding{}, false
	}
	gpm := entity.ComputedRevenue.Sub(entity.ComputedCost).
		Div(entity.ComputedRevenue).Mul(hundred)
	if gpm.GreaterThan(hundred) || gpm.Sign() < 0 {
		return Finding{
			EntityKey: entity.Key,
			Severity:  SeverityHigh,
			Reason:    ReasonImpossibleGPM,
			Magnitude: gpm.Abs(),
		}, true
	}
	return Finding{}, false
}

func (r *Reporter) linkageCheck(entity EntityReview) (Finding, bool) {
	link := entity.Linkage
	fail := func(severity Severity, reason string) (Finding, bool) {
		return Finding{
			EntityKey: entity.Key,
			Severity:  severity,
			Reason:    reason,
			Magnitude: referenceCost(entity).Sub(entity.ComputedCost).Abs(),
		}, true
	}

	switch {
	case len(link.WorkOrders) == 0:
		return fail(SeverityMedium, ReasonNoWorkOrder)
	case len(link.MirroredOrders) == 0:
		return fail(SeverityMedium, ReasonWONotInMirror)
	case link.SalesOrder == "":
		return fail(SeverityMedium, ReasonWONoSalesOrder)
	case !link.SalesOrderFound:
		return fail(SeverityMedium, ReasonSONotFound)
	case link.RevenueLineCount == 0:
		return fail(SeverityHigh, ReasonSONoLines)
	}
	return Finding{}, false
}

func referenceCost(entity EntityReview) decimal.Decimal {
	if entity.Reference == nil {
		return decimal.Zero
	}
	return entity.Reference.Cost
}

func rankFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if severityRank(a.Severity) != severityRank(b.Severity) {
			return severityRank(a.Severity) > severityRank(b.Severity)
		}
		if !a.Magnitude.Equal(b.Magnitude) {
			return a.Magnitude.GreaterThan(b.Magnitude)
		}
		return a.EntityKey < b.EntityKey
	})
}

func capFindings(findings []Finding, n int) []Finding {
	capped := make([]Finding, 0, n)
	for _, finding := range findings {
		if len(capped) == n {
			break
		}
		capped = append(capped, finding)
	}
	return capped
}
