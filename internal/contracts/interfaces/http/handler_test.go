package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"mars-dashboards/internal/contracts/application"
	contracts "mars-dashboards/internal/contracts/domain"
)

type stubContractStore struct {
	contracts []contracts.Contract
}

func (s *stubContractStore) ListContracts(ctx context.Context) ([]contracts.Contract, error) {
	return s.contracts, nil
}

func buildSheet(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Account Name", "Est. Opportunity Rev."},
		{"Acme, Inc.", 10000},
		{"Orphan Utilities", 700},
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
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestContractReconcileEndpoint(t *testing.T) {
	store := &stubContractStore{contracts: []contracts.Contract{
		{ID: "c-1", Name: "Acme", Value: decimal.NewFromInt(10000)},
	}}
	service, err := application.NewService(store, application.DefaultColumnMap(), 5, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := NewHandler(service, "tenant-demo", nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/reconcile", buildSheet(t))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}
	var result contracts.ReconcileResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Matched) != 1 || result.Matched[0].Mismatch {
		t.Fatalf("matched = %+v", result.Matched)
	}
	if len(result.OnlyInSheet) != 1 {
		t.Fatalf("only in sheet = %+v", result.OnlyInSheet)
	}
}

func TestContractReconcileRejectsGarbage(t *testing.T) {
	service, err := application.NewService(&stubContractStore{}, application.DefaultColumnMap(), 5, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := NewHandler(service, "tenant-demo", nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/reconcile", bytes.NewBufferString("nope"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Code)
	}
}
