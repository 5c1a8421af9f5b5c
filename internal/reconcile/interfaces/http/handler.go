package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mars-dashboards/internal/audit"
	"mars-dashboards/internal/auth"
	"mars-dashboards/internal/observability/metrics"
	"mars-dashboards/internal/reconcile/application"
	reconcile "mars-dashboards/internal/reconcile/domain"
	"mars-dashboards/internal/reconcile/interfaces"
)

// Handler serves reconciliation run, report, and export endpoints.
type Handler struct {
	runner   *application.Runner
	store    application.ReportStore
	tenantID string
	auditor  audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(runner *application.Runner, store application.ReportStore, tenantID string, auditor audit.Logger) (*Handler, error) {
	if runner == nil || store == nil {
		return nil, errors.New("reconcile handler: nil dependency")
	}
	return &Handler{runner: runner, store: store, tenantID: tenantID, auditor: auditor}, nil
}

// ServeHTTP routes reconciliation endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reconcile/run" && r.Method == http.MethodPost:
		h.handleRun(w, r)
	case r.URL.Path == "/api/v1/reconcile/reports" && r.Method == http.MethodGet:
		h.handleReports(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/reconcile/reports/"):
		h.handleReportByID(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/exports/variances.") && r.Method == http.MethodGet:
		h.handleExport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID   string                `json:"tenant_id"`
		Year       int                   `json:"year"`
		Tolerances *reconcile.Tolerances `json:"tolerances"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = req.TenantID
	}
	if tenantID == "" {
		tenantID = h.tenantID
	}
	if tenantID == "" {
		http.Error(w, "tenant_id required", http.StatusBadRequest)
		return
	}
	year := req.Year
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	stored, result, err := h.runner.Run(r.Context(), tenantID, year, req.Tolerances)
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidPeriod) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "reconcile run failed", http.StatusInternalServerError)
		return
	}
	h.audit(r, tenantID, audit.ActionReconcileRun, stored.ID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.tenantID
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	reports, err := h.store.ListReports(r.Context(), tenantID, limit)
	if err != nil {
		http.Error(w, "query reports error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reports)
}

func (h *Handler) handleReportByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/reconcile/reports/")
	parts := strings.Split(path, "/")
	reportID := parts[0]
	if reportID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleReportGet(w, r, reportID)
		return
	}
	if len(parts) == 2 && parts[1] == "download" && r.Method == http.MethodGet {
		h.handleDownload(w, r, reportID)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleReportGet(w http.ResponseWriter, r *http.Request, reportID string) {
	report, ok := h.loadReport(w, r, reportID)
	if !ok {
		return
	}
	resp := map[string]any{
		"id":            report.ID,
		"tenant_id":     report.TenantID,
		"year":          report.Year,
		"status":        report.Status,
		"location":      report.Location,
		"summary":       report.Summary,
		"high_count":    report.HighCount,
		"medium_count":  report.MediumCount,
		"no_data_count": report.NoDataCount,
		"created_at":    report.CreatedAt.Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request, reportID string) {
	report, ok := h.loadReport(w, r, reportID)
	if !ok {
		return
	}
	h.audit(r, report.TenantID, audit.ActionReportDownload, report.ID)
	http.ServeFile(w, r, report.Location)
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request, reportID string) (*application.StoredReport, bool) {
	report, err := h.store.GetReport(r.Context(), reportID)
	if err != nil || report == nil {
		http.Error(w, "report not found", http.StatusNotFound)
		return nil, false
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && report.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return report, true
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.TrimPrefix(r.URL.Path, "/api/v1/exports/variances.")
	year, err := parseYearQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	started := time.Now()
	_, report, err := h.runner.Preview(r.Context(), year, nil)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		if errors.Is(err, reconcile.ErrInvalidPeriod) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	var payload []byte
	var contentType, filename string
	switch format {
	case "csv":
		payload, err = interfaces.BuildVariancesCSV(report)
		contentType = "text/csv"
		filename = "variances.csv"
	case "xlsx":
		payload, err = interfaces.BuildVariancesXLSX(report, year)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "variances.xlsx"
	case "pdf":
		payload, err = interfaces.BuildVariancesPDF(report, year)
		contentType = "application/pdf"
		filename = "variances.pdf"
	default:
		http.Error(w, "unsupported export format", http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))
	h.audit(r, auth.TenantIDFromContext(r.Context()), audit.ExportAction(format), strconv.Itoa(year))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(payload)
}

func (h *Handler) audit(r *http.Request, tenantID, action, resourceID string) {
	if h.auditor == nil {
		return
	}
	_ = h.auditor.Log(r.Context(), audit.ForRequest(r, tenantID, action, "reconcile_report", resourceID))
}

func parseYearQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().UTC().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("year must be an integer")
	}
	return year, nil
}
