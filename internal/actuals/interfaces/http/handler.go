package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"mars-dashboards/internal/actuals/application"
	"mars-dashboards/internal/audit"
	"mars-dashboards/internal/auth"
	"mars-dashboards/internal/observability/metrics"
)

// maxWorkbookBytes caps uploaded workbook size at 32 MiB.
const maxWorkbookBytes = 32 << 20

// Handler serves spreadsheet actuals uploads.
type Handler struct {
	importer *application.Importer
	tenantID string
	auditor  audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(importer *application.Importer, tenantID string, auditor audit.Logger) (*Handler, error) {
	if importer == nil {
		return nil, errors.New("actuals handler: nil importer")
	}
	return &Handler{importer: importer, tenantID: tenantID, auditor: auditor}, nil
}

// ServeHTTP handles POST /api/v1/actuals/import. The workbook arrives either
// as a multipart "file" part or as the raw request body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/actuals/import" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	reader, cleanup, err := workbookReader(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer cleanup()

	summary, err := h.importer.ImportWorkbook(r.Context(), reader)
	if err != nil {
		metrics.ObserveImport(metrics.ResultError, 0)
		http.Error(w, "import failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	metrics.ObserveImport(metrics.ResultSuccess, summary.Imported)

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.tenantID
	}
	h.audit(r, tenantID, summary)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

func workbookReader(r *http.Request) (io.Reader, func(), error) {
	noop := func() {}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxWorkbookBytes); err != nil {
			return nil, noop, errors.New("invalid multipart body")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, noop, errors.New("multipart part \"file\" is required")
		}
		return file, func() { _ = file.Close() }, nil
	}
	return io.LimitReader(r.Body, maxWorkbookBytes), noop, nil
}

func (h *Handler) audit(r *http.Request, tenantID string, summary application.ImportSummary) {
	if h.auditor == nil {
		return
	}
	entry := audit.ForRequest(r, tenantID, audit.ActionActualsImport, "actuals_workbook", "")
	_ = h.auditor.Log(r.Context(), entry.WithMetadata(summary))
}
