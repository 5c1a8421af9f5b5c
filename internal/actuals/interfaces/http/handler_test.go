package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"mars-dashboards/internal/actuals/application"
	reconcile "mars-dashboards/internal/reconcile/domain"
)

type stubActualStore struct {
	received []reconcile.ReferenceActual
}

func (s *stubActualStore) UpsertActuals(ctx context.Context, actuals []reconcile.ReferenceActual) (int, error) {
	s.received = append(s.received, actuals...)
	return len(actuals), nil
}

func buildWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	rows := [][]any{
		{"Project", "Year", "Month"},
		{"PRJ-1", 2026, 1},
		{"PRJ-2", 2026, 2},
	}
	for i, row := range rows {
		for j, value := range row {
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cellName, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	// Actual revenue and cost sit in the monthly block.
	for i := 2; i <= 3; i++ {
		if err := f.SetCellValue(sheet, fmt.Sprintf("M%d", i), 1000); err != nil {
			t.Fatalf("set revenue: %v", err)
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("S%d", i), 400); err != nil {
			t.Fatalf("set cost: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func newTestHandler(t *testing.T) (*Handler, *stubActualStore) {
	t.Helper()
	store := &stubActualStore{}
	importer, err := application.NewImporter(store, application.DefaultColumnMap(), nil)
	if err != nil {
		t.Fatalf("NewImporter: %v", err)
	}
	handler, err := NewHandler(importer, "tenant-demo", nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, store
}

func TestImportRawBody(t *testing.T) {
	handler, store := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actuals/import", buildWorkbook(t))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	var summary application.ImportSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Imported != 2 || summary.Skipped != 0 {
		t.Fatalf("summary = %+v, want 2 imported", summary)
	}
	if len(store.received) != 2 {
		t.Fatalf("stored = %d, want 2", len(store.received))
	}
	if store.received[0].Revenue.InexactFloat64() != 1000 || store.received[0].Cost.InexactFloat64() != 400 {
		t.Fatalf("row = %+v", store.received[0])
	}
}

func TestImportMultipart(t *testing.T) {
	handler, store := newTestHandler(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "actuals.xlsx")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(buildWorkbook(t).Bytes()); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actuals/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	if len(store.received) != 2 {
		t.Fatalf("stored = %d, want 2", len(store.received))
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actuals/import", bytes.NewBufferString("not a workbook"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Code)
	}
}

func TestImportMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/actuals/import", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}
