package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"mars-dashboards/internal/audit"
	"mars-dashboards/internal/auth"
	"mars-dashboards/internal/contracts/application"
	"mars-dashboards/internal/observability/metrics"
)

const maxWorkbookBytes = 32 << 20

// Handler serves the contract reconciliation endpoint.
type Handler struct {
	service  *application.Service
	tenantID string
	auditor  audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, tenantID string, auditor audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("contracts handler: nil service")
	}
	return &Handler{service: service, tenantID: tenantID, auditor: auditor}, nil
}

// ServeHTTP handles POST /api/v1/contracts/reconcile. The CRM export arrives
// as a multipart "file" part or as the raw request body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/contracts/reconcile" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	reader, cleanup, err := workbookReader(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer cleanup()

	result, err := h.service.Reconcile(r.Context(), reader)
	if err != nil {
		metrics.ObserveContractReconcile(metrics.ResultError, 0)
		http.Error(w, "contract reconcile failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	metrics.ObserveContractReconcile(metrics.ResultSuccess, result.Mismatches)

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.tenantID
	}
	if h.auditor != nil {
		entry := audit.ForRequest(r, tenantID, audit.ActionContractReconcile, "contract_sheet", "")
		_ = h.auditor.Log(r.Context(), entry.WithMetadata(map[string]int{
			"matched":       len(result.Matched),
			"only_in_sheet": len(result.OnlyInSheet),
			"only_in_store": len(result.OnlyInStore),
			"mismatches":    result.Mismatches,
		}))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
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
