package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mars-dashboards/internal/reconcile/application"
	reconcile "mars-dashboards/internal/reconcile/domain"
)

type stubLineSource struct {
	lines   []reconcile.TransactionLine
	linkage map[reconcile.EntityKey]reconcile.Linkage
}

func (s *stubLineSource) ListLines(ctx context.Context, year int) ([]reconcile.TransactionLine, error) {
	return s.lines, nil
}

func (s *stubLineSource) LinkageFor(ctx context.Context, keys []reconcile.EntityKey) (map[reconcile.EntityKey]reconcile.Linkage, error) {
	return s.linkage, nil
}

type stubActualSource struct {
	actuals []reconcile.ReferenceActual
}

func (s *stubActualSource) ListActuals(ctx context.Context, year int) ([]reconcile.ReferenceActual, error) {
	return s.actuals, nil
}

type stubReportStore struct {
	created []*application.StoredReport
	byID    map[string]*application.StoredReport
}

func (s *stubReportStore) CreateReport(ctx context.Context, report *application.StoredReport) error {
	s.created = append(s.created, report)
	if s.byID == nil {
		s.byID = make(map[string]*application.StoredReport)
	}
	s.byID[report.ID] = report
	return nil
}

func (s *stubReportStore) GetReport(ctx context.Context, id string) (*application.StoredReport, error) {
	report, ok := s.byID[id]
	if !ok {
		return nil, reconcile.ErrReportNotFound
	}
	return report, nil
}

func (s *stubReportStore) ListReports(ctx context.Context, tenantID string, limit int) ([]*application.StoredReport, error) {
	return s.created, nil
}

func healthyLinkage() reconcile.Linkage {
	return reconcile.Linkage{
		WorkOrders:       []string{"WO-1"},
		MirroredOrders:   []string{"WO-1"},
		SalesOrder:       "SO-1",
		SalesOrderFound:  true,
		RevenueLineCount: 2,
	}
}

func newTestHandler(t *testing.T) (*Handler, *stubReportStore) {
	t.Helper()
	lines := &stubLineSource{
		lines: []reconcile.TransactionLine{{
			ItemType:  reconcile.ItemTypeInvtPart,
			Quantity:  reconcile.MoneyFromFloat(1),
			LineCost:  reconcile.MoneyFromFloat(500),
			HasItem:   true,
			EntityKey: "PRJ-1",
		}},
		linkage: map[reconcile.EntityKey]reconcile.Linkage{"PRJ-1": healthyLinkage()},
	}
	actuals := &stubActualSource{actuals: []reconcile.ReferenceActual{{
		EntityKey: "PRJ-1",
		Year:      2026,
		Month:     1,
		Revenue:   reconcile.MoneyFromFloat(1200),
		Cost:      reconcile.MoneyFromFloat(500),
	}}}
	store := &stubReportStore{}

	cfg := application.Config{
		Defaults:    reconcile.DefaultTolerances(),
		Rules:       reconcile.DefaultRuleConfig(),
		Accounts:    reconcile.DefaultAccountFilter(),
		TopN:        10,
		StorageRoot: t.TempDir(),
	}
	runner, err := application.NewRunner(lines, actuals, store, cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	handler, err := NewHandler(runner, store, "tenant-demo", nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, store
}

func TestHandleRun(t *testing.T) {
	handler, store := newTestHandler(t)

	body := bytes.NewBufferString(`{"year": 2026}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/run", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	var result application.RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Summary.Entities != 1 || result.Summary.Match != 1 {
		t.Fatalf("summary = %+v, want one matched entity", result.Summary)
	}
	if len(store.created) != 1 {
		t.Fatalf("stored reports = %d, want 1", len(store.created))
	}
	if store.created[0].TenantID != "tenant-demo" {
		t.Fatalf("tenant = %s, want fallback tenant-demo", store.created[0].TenantID)
	}
}

func TestHandleRunRejectsBadYear(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := bytes.NewBufferString(`{"year": 1990}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/run", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestHandleReports(t *testing.T) {
	handler, _ := newTestHandler(t)

	run := httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/run", bytes.NewBufferString(`{"year": 2026}`))
	handler.ServeHTTP(httptest.NewRecorder(), run)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconcile/reports", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var reports []*application.StoredReport
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
}

func TestHandleReportNotFound(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconcile/reports/nope", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestHandleExportFormats(t *testing.T) {
	handler, _ := newTestHandler(t)

	cases := []struct {
		path        string
		contentType string
	}{
		{"/api/v1/exports/variances.csv?year=2026", "text/csv"},
		{"/api/v1/exports/variances.xlsx?year=2026", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"/api/v1/exports/variances.pdf?year=2026", "application/pdf"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.path, resp.Code)
		}
		if got := resp.Header().Get("Content-Type"); got != tc.contentType {
			t.Fatalf("%s: content type = %s, want %s", tc.path, got, tc.contentType)
		}
		if resp.Body.Len() == 0 {
			t.Fatalf("%s: empty body", tc.path)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/variances.docx", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown format status = %d, want 404", resp.Code)
	}
}

func TestHandleExportCSVContents(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/variances.csv?year=2026", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "PRJ-1") || !strings.Contains(body, "MATCH") {
		t.Fatalf("csv missing expected row: %s", body)
	}
}
