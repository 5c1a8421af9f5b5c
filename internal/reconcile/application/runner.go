package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	reconcile "mars-dashboards/internal/reconcile/domain"
	reconcilemetrics "mars-dashboards/internal/reconcile/metrics"
)

const (
	runStatusGenerated = "generated"
	runStatusFailed    = "failed"
)

// LineSource loads mirrored ERP transaction lines and linkage state.
type LineSource interface {
	ListLines(ctx context.Context, year int) ([]reconcile.TransactionLine, error)
	LinkageFor(ctx context.Context, keys []reconcile.EntityKey) (map[reconcile.EntityKey]reconcile.Linkage, error)
}

// ActualSource loads spreadsheet-imported reference actuals.
type ActualSource interface {
	ListActuals(ctx context.Context, year int) ([]reconcile.ReferenceActual, error)
}

// ReportStore persists generated report rows.
type ReportStore interface {
	CreateReport(ctx context.Context, report *StoredReport) error
	GetReport(ctx context.Context, id string) (*StoredReport, error)
	ListReports(ctx context.Context, tenantID string, limit int) ([]*StoredReport, error)
}

// StoredReport is the persisted record of one reconciliation run.
type StoredReport struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Year        int             `json:"year"`
	Status      string          `json:"status"`
	Location    string          `json:"location"`
	Summary     json.RawMessage `json:"summary"`
	HighCount   int             `json:"high_count"`
	MediumCount int             `json:"medium_count"`
	NoDataCount int             `json:"no_data_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

// YearSummary rolls the whole year into one classified comparison.
type YearSummary struct {
	Year          int              `json:"year"`
	ComputedCost  decimal.Decimal  `json:"computedCost"`
	ReferenceCost decimal.Decimal  `json:"referenceCost"`
	Delta         decimal.Decimal  `json:"delta"`
	DeltaPct      decimal.Decimal  `json:"deltaPct"`
	Status        reconcile.Status `json:"status"`
}

// ProjectRow joins the computed and reference sides of one project for
// tabular output.
type ProjectRow struct {
	Project          reconcile.EntityKey `json:"project"`
	ReferenceRevenue decimal.Decimal     `json:"referenceRevenue"`
	ReferenceCost    decimal.Decimal     `json:"referenceCost"`
	ComputedCost     decimal.Decimal     `json:"computedCost"`
	Delta            decimal.Decimal     `json:"delta"`
	DeltaPct         decimal.Decimal     `json:"deltaPct"`
	Status           reconcile.Status    `json:"status"`
}

// RunResult is the API payload of one reconciliation run.
type RunResult struct {
	ReportID       string                     `json:"reportId"`
	GeneratedAt    string                     `json:"generatedAt"`
	Summary        reconcile.Summary          `json:"summary"`
	Projects       []reconcile.Variance       `json:"projects"`
	Rows           []ProjectRow               `json:"rows"`
	AtRiskProjects []reconcile.Finding        `json:"atRiskProjects"`
	YearSummary    YearSummary                `json:"yearSummary"`
	TypeBreakdown  map[string]decimal.Decimal `json:"typeBreakdown"`
}

// Runner executes reconciliation runs: load mirrored lines and actuals, run
// the attribution engine, write report artifacts, persist the report row.
type Runner struct {
	lines   LineSource
	actuals ActualSource
	store   ReportStore
	cfg     Config
	metrics *reconcilemetrics.Metrics
	logger  *log.Logger
}

// NewRunner constructs a Runner.
func NewRunner(lines LineSource, actuals ActualSource, store ReportStore, cfg Config, m *reconcilemetrics.Metrics, logger *log.Logger) (*Runner, error) {
	if lines == nil {
		return nil, fmt.Errorf("reconcile runner: nil line source")
	}
	if actuals == nil {
		return nil, fmt.Errorf("reconcile runner: nil actual source")
	}
	if store == nil {
		return nil, fmt.Errorf("reconcile runner: nil report store")
	}
	return &Runner{lines: lines, actuals: actuals, store: store, cfg: cfg, metrics: m, logger: logger}, nil
}

// Run reconciles one tenant/year and returns both the persisted report row
// and the API payload.
func (r *Runner) Run(ctx context.Context, tenantID string, year int, override *reconcile.Tolerances) (*StoredReport, *RunResult, error) {
	if tenantID == "" {
		return nil, nil, fmt.Errorf("reconcile runner: tenant_id required")
	}
	if year < 2000 || year > 2200 {
		return nil, nil, reconcile.ErrInvalidPeriod
	}

	started := time.Now().UTC()
	result, report, err := r.build(ctx, year, override)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RunsTotal.WithLabelValues(runStatusFailed).Inc()
		}
		r.logf("reconcile_run_failed", tenantID, year, err.Error())
		return nil, nil, err
	}

	runID := fmt.Sprintf("rec-%s-%d-%s", tenantID, year, started.Format("20060102T150405"))
	result.ReportID = "report-" + runID
	reportDir := filepath.Join(r.cfg.StorageRoot, tenantID, fmt.Sprintf("%d", year), runID)
	if err := writeArtifacts(reportDir, report, result); err != nil {
		if r.metrics != nil {
			r.metrics.RunsTotal.WithLabelValues(runStatusFailed).Inc()
		}
		r.logf("reconcile_run_failed", tenantID, year, err.Error())
		return nil, nil, err
	}
	archivePath, err := writeArchive(reportDir)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RunsTotal.WithLabelValues(runStatusFailed).Inc()
		}
		return nil, nil, err
	}

	summaryBytes, _ := json.Marshal(result)
	stored := &StoredReport{
		ID:          result.ReportID,
		TenantID:    tenantID,
		Year:        year,
		Status:      runStatusGenerated,
		Location:    archivePath,
		Summary:     summaryBytes,
		HighCount:   report.Summary.High,
		MediumCount: report.Summary.Medium,
		NoDataCount: report.Summary.NoData,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.CreateReport(ctx, stored); err != nil {
		if r.metrics != nil {
			r.metrics.RunsTotal.WithLabelValues(runStatusFailed).Inc()
		}
		return nil, nil, err
	}

	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(runStatusGenerated).Inc()
		r.metrics.RunDuration.Observe(time.Since(started).Seconds())
		r.metrics.FindingsHigh.Set(float64(report.Summary.High))
		r.metrics.FindingsMedium.Set(float64(report.Summary.Medium))
		r.metrics.NoDataEntities.Set(float64(report.Summary.NoData))
		r.metrics.ReportsTotal.Inc()
	}
	r.logf("reconcile_run_success", tenantID, year, result.ReportID)
	return stored, result, nil
}

// Preview runs the engine without persisting artifacts or a report row.
// Export endpoints use it to render the current state on demand.
func (r *Runner) Preview(ctx context.Context, year int, override *reconcile.Tolerances) (*RunResult, *reconcile.Report, error) {
	if year < 2000 || year > 2200 {
		return nil, nil, reconcile.ErrInvalidPeriod
	}
	return r.build(ctx, year, override)
}

// build runs the pure engine over already-materialized record sets. All I/O
// happens here, before the engine; the engine itself never suspends.
func (r *Runner) build(ctx context.Context, year int, override *reconcile.Tolerances) (*RunResult, *reconcile.Report, error) {
	lines, err := r.lines.ListLines(ctx, year)
	if err != nil {
		return nil, nil, err
	}
	actuals, err := r.actuals.ListActuals(ctx, year)
	if err != nil {
		return nil, nil, err
	}

	selector := reconcile.NewSelector(r.cfg.Rules)
	keyFn := func(line reconcile.TransactionLine) reconcile.EntityKey { return line.EntityKey }

	costTotals, err := reconcile.Aggregate(selector, lines, keyFn)
	if err != nil {
		return nil, nil, err
	}
	revenueTotals, err := reconcile.AggregateRevenue(lines, keyFn, r.cfg.Accounts)
	if err != nil {
		return nil, nil, err
	}

	// One reference per entity: monthly actuals collapse into the year.
	referenceByKey := make(map[reconcile.EntityKey]*reconcile.ReferenceActual)
	for _, actual := range actuals {
		ref := referenceByKey[actual.EntityKey]
		if ref == nil {
			ref = &reconcile.ReferenceActual{EntityKey: actual.EntityKey, Year: year}
			referenceByKey[actual.EntityKey] = ref
		}
		ref.Revenue = ref.Revenue.Add(actual.Revenue)
		ref.Cost = ref.Cost.Add(actual.Cost)
	}

	keys := unionKeys(costTotals, referenceByKey)
	linkage, err := r.lines.LinkageFor(ctx, keys)
	if err != nil {
		return nil, nil, err
	}

	entities := make([]reconcile.EntityReview, 0, len(keys))
	for _, key := range keys {
		entities = append(entities, reconcile.EntityReview{
			Key:             key,
			ComputedCost:    costTotals[key].Cost,
			ComputedRevenue: revenueTotals[key].NettedRevenue,
			LineCount:       costTotals[key].LineCount,
			Reference:       referenceByKey[key],
			Linkage:         linkage[key],
		})
	}

	reporter := reconcile.NewReporter(r.cfg.Defaults, r.cfg.TopN,
		reconcile.WithProfileResolver(func(key reconcile.EntityKey) reconcile.Tolerances {
			tolerances := r.cfg.TolerancesForProject(string(key))
			if override != nil {
				tolerances = tolerances.Merge(*override)
			}
			return tolerances
		}))
	report := reporter.Build(entities)

	result := &RunResult{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		Summary:        report.Summary,
		Projects:       report.Results,
		Rows:           buildProjectRows(report.Results, referenceByKey),
		AtRiskProjects: report.Findings,
		YearSummary:    buildYearSummary(year, r.cfg.Defaults, costTotals, referenceByKey),
		TypeBreakdown:  buildTypeBreakdown(selector, lines),
	}
	return result, &report, nil
}

func buildProjectRows(results []reconcile.Variance, references map[reconcile.EntityKey]*reconcile.ReferenceActual) []ProjectRow {
	rows := make([]ProjectRow, 0, len(results))
	for _, v := range results {
		var revenue decimal.Decimal
		if ref := references[v.EntityKey]; ref != nil {
			revenue = ref.Revenue
		}
		rows = append(rows, ProjectRow{
			Project:          v.EntityKey,
			ReferenceRevenue: revenue,
			ReferenceCost:    v.Reference,
			ComputedCost:     v.Computed,
			Delta:            v.Delta,
			DeltaPct:         v.DeltaPct,
			Status:           v.Status,
		})
	}
	return rows
}

func buildYearSummary(year int, tolerances reconcile.Tolerances, costs map[reconcile.EntityKey]reconcile.EntityTotal, references map[reconcile.EntityKey]*reconcile.ReferenceActual) YearSummary {
	var computed, reference decimal.Decimal
	for _, total := range costs {
		computed = computed.Add(total.Cost)
	}
	for _, ref := range references {
		reference = reference.Add(ref.Cost)
	}
	variance := tolerances.Classify("year", computed, reference)
	return YearSummary{
		Year:          year,
		ComputedCost:  computed,
		ReferenceCost: reference,
		Delta:         variance.Delta,
		DeltaPct:      variance.DeltaPct,
		Status:        variance.Status,
	}
}

func buildTypeBreakdown(selector *reconcile.Selector, lines []reconcile.TransactionLine) map[string]decimal.Decimal {
	breakdown := make(map[string]decimal.Decimal)
	for _, line := range lines {
		itemType := string(line.ItemType)
		if itemType == "" {
			itemType = "Unknown"
		}
		breakdown[itemType] = breakdown[itemType].Add(selector.SelectLineCost(line))
	}
	return breakdown
}

func unionKeys(costs map[reconcile.EntityKey]reconcile.EntityTotal, references map[reconcile.EntityKey]*reconcile.ReferenceActual) []reconcile.EntityKey {
	seen := make(map[reconcile.EntityKey]struct{}, len(costs)+len(references))
	for key := range costs {
		seen[key] = struct{}{}
	}
	for key := range references {
		seen[key] = struct{}{}
	}
	keys := make([]reconcile.EntityKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (r *Runner) logf(event, tenantID string, year int, detail string) {
	if r.logger == nil {
		return
	}
	r.logger.Printf("%s tenant=%s year=%d detail=%s", event, tenantID, year, detail)
}
