package application

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"testing"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

type stubLineSource struct {
	lines   []reconcile.TransactionLine
	linkage map[reconcile.EntityKey]reconcile.Linkage
	err     error
}

func (s stubLineSource) ListLines(_ context.Context, _ int) ([]reconcile.TransactionLine, error) {
	return s.lines, s.err
}

func (s stubLineSource) LinkageFor(_ context.Context, _ []reconcile.EntityKey) (map[reconcile.EntityKey]reconcile.Linkage, error) {
	return s.linkage, nil
}

type stubActualSource struct {
	actuals []reconcile.ReferenceActual
}

func (s stubActualSource) ListActuals(_ context.Context, _ int) ([]reconcile.ReferenceActual, error) {
	return s.actuals, nil
}

type stubReportStore struct {
	created *StoredReport
	err     error
}

func (s *stubReportStore) CreateReport(_ context.Context, report *StoredReport) error {
	if s.err != nil {
		return s.err
	}
	s.created = report
	return nil
}

func (s *stubReportStore) GetReport(_ context.Context, _ string) (*StoredReport, error) {
	return s.created, nil
}

func (s *stubReportStore) ListReports(_ context.Context, _ string, _ int) ([]*StoredReport, error) {
	if s.created == nil {
		return nil, nil
	}
	return []*StoredReport{s.created}, nil
}

func linkageOK() reconcile.Linkage {
	return reconcile.Linkage{
		WorkOrders:       []string{"WO-1"},
		MirroredOrders:   []string{"WO-1"},
		SalesOrder:       "SO-1",
		SalesOrderFound:  true,
		RevenueLineCount: 2,
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Defaults:    reconcile.DefaultTolerances(),
		Rules:       reconcile.DefaultRuleConfig(),
		Accounts:    reconcile.DefaultAccountFilter(),
		TopN:        10,
		StorageRoot: t.TempDir(),
	}
}

func TestRunnerRun(t *testing.T) {
	lines := stubLineSource{
		lines: []reconcile.TransactionLine{
			{EntityKey: "PRJ-1", ItemType: reconcile.ItemTypeInvtPart, LineCost: reconcile.MoneyFromFloat(34795)},
			{EntityKey: "PRJ-1", AccountNumber: "410100", Amount: reconcile.MoneyFromFloat(-60000), HasItem: true},
		},
		linkage: map[reconcile.EntityKey]reconcile.Linkage{"PRJ-1": linkageOK()},
	}
	actuals := stubActualSource{
		actuals: []reconcile.ReferenceActual{
			{EntityKey: "PRJ-1", Year: 2026, Month: 1, Revenue: reconcile.MoneyFromFloat(30000), Cost: reconcile.MoneyFromFloat(20000)},
			{EntityKey: "PRJ-1", Year: 2026, Month: 2, Revenue: reconcile.MoneyFromFloat(30000), Cost: reconcile.MoneyFromFloat(14852)},
		},
	}
	store := &stubReportStore{}

	runner, err := NewRunner(lines, actuals, store, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	stored, result, err := runner.Run(context.Background(), "mars", 2026, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Monthly actuals collapse: reference cost is 34852 vs computed 34795,
	// a CLOSE result with no findings.
	if result.Summary.Close != 1 || result.Summary.Check != 0 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	if len(result.Projects) != 1 || result.Projects[0].Status != reconcile.StatusClose {
		t.Fatalf("projects = %+v", result.Projects)
	}
	if result.YearSummary.Status != reconcile.StatusClose {
		t.Fatalf("year summary = %+v", result.YearSummary)
	}
	if result.TypeBreakdown["InvtPart"].IsZero() {
		t.Fatalf("type breakdown = %+v", result.TypeBreakdown)
	}

	if store.created == nil || store.created.ID != result.ReportID {
		t.Fatalf("stored = %+v", store.created)
	}
	if stored.Status != "generated" {
		t.Fatalf("status = %s", stored.Status)
	}

	var roundTrip RunResult
	if err := json.Unmarshal(stored.Summary, &roundTrip); err != nil {
		t.Fatalf("summary json: %v", err)
	}

	reader, err := zip.OpenReader(stored.Location)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer reader.Close()
	names := make(map[string]bool)
	for _, file := range reader.File {
		names[file.Name] = true
	}
	for _, want := range []string{"variances.csv", "findings.csv", "summary.json"} {
		if !names[want] {
			t.Fatalf("archive missing %s (has %v)", want, names)
		}
	}
}

func TestRunnerActualWithoutLinesIsNoData(t *testing.T) {
	lines := stubLineSource{linkage: map[reconcile.EntityKey]reconcile.Linkage{}}
	actuals := stubActualSource{
		actuals: []reconcile.ReferenceActual{
			{EntityKey: "PRJ-GHOST", Year: 2026, Cost: reconcile.MoneyFromFloat(5000)},
		},
	}
	store := &stubReportStore{}

	runner, err := NewRunner(lines, actuals, store, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	_, result, err := runner.Run(context.Background(), "mars", 2026, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Summary.NoData != 1 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	if len(result.AtRiskProjects) != 1 || result.AtRiskProjects[0].Reason != reconcile.ReasonNoWorkOrder {
		t.Fatalf("at risk = %+v", result.AtRiskProjects)
	}
}

func TestRunnerOverrideTightensBand(t *testing.T) {
	lines := stubLineSource{
		lines: []reconcile.TransactionLine{
			{EntityKey: "PRJ-1", ItemType: reconcile.ItemTypeInvtPart, LineCost: reconcile.MoneyFromFloat(10150)},
		},
		linkage: map[reconcile.EntityKey]reconcile.Linkage{"PRJ-1": linkageOK()},
	}
	actuals := stubActualSource{
		actuals: []reconcile.ReferenceActual{{EntityKey: "PRJ-1", Year: 2026, Cost: reconcile.MoneyFromFloat(10000)}},
	}

	runner, err := NewRunner(lines, actuals, &stubReportStore{}, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	// $150 delta is CLOSE under defaults but CHECK once the absolute band is
	// tightened below it.
	override := &reconcile.Tolerances{CloseAbs: 100, ClosePct: 1}
	_, result, err := runner.Run(context.Background(), "mars", 2026, override)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Summary.Check != 1 {
		t.Fatalf("summary = %+v", result.Summary)
	}
}

func TestRunnerValidation(t *testing.T) {
	runner, err := NewRunner(stubLineSource{}, stubActualSource{}, &stubReportStore{}, testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, _, err := runner.Run(context.Background(), "", 2026, nil); err == nil {
		t.Fatal("expected error for empty tenant")
	}
	if _, _, err := runner.Run(context.Background(), "mars", 1900, nil); !errors.Is(err, reconcile.ErrInvalidPeriod) {
		t.Fatalf("err = %v, want ErrInvalidPeriod", err)
	}
}

func TestNewRunnerNilDeps(t *testing.T) {
	if _, err := NewRunner(nil, stubActualSource{}, &stubReportStore{}, Config{}, nil, nil); err == nil {
		t.Fatal("expected error for nil line source")
	}
	if _, err := NewRunner(stubLineSource{}, nil, &stubReportStore{}, Config{}, nil, nil); err == nil {
		t.Fatal("expected error for nil actual source")
	}
	if _, err := NewRunner(stubLineSource{}, stubActualSource{}, nil, Config{}, nil, nil); err == nil {
		t.Fatal("expected error for nil report store")
	}
}
