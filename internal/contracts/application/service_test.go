package application

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	contracts "mars-dashboards/internal/contracts/domain"
)

type stubContractStore struct {
	contracts []contracts.Contract
	err       error
}

func (s *stubContractStore) ListContracts(ctx context.Context) ([]contracts.Contract, error) {
	return s.contracts, s.err
}

func buildSheet(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
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

func TestServiceReconcile(t *testing.T) {
	store := &stubContractStore{contracts: []contracts.Contract{
		{ID: "c-1", Name: "Acme", Value: decimal.NewFromInt(10000)},
		{ID: "c-2", Name: "Ghost Corp", Value: decimal.NewFromInt(300)},
	}}
	svc, err := NewService(store, DefaultColumnMap(), 5, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	buf := buildSheet(t, [][]any{
		{"Account Name", "Est. Opportunity Rev."},
		{"Acme, Inc.", "$6,000"},
		{"Acme, Inc.", 5000},
		{"Orphan Utilities", "(700)"},
		{"", 999},
	})

	result, err := svc.Reconcile(context.Background(), buf)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(result.Matched) != 1 {
		t.Fatalf("matched = %d, want 1", len(result.Matched))
	}
	acme := result.Matched[0]
	if acme.SheetValue.InexactFloat64() != 11000 {
		t.Fatalf("sheet value = %s, want collapsed 11000", acme.SheetValue)
	}
	if !acme.Mismatch {
		t.Fatalf("11000 vs 10000 is %.2f%%, should be flagged at 5%%", acme.DiffPct)
	}
	if len(result.OnlyInSheet) != 1 || result.OnlyInSheet[0].Name != "Orphan Utilities" {
		t.Fatalf("only in sheet = %+v", result.OnlyInSheet)
	}
	if len(result.OnlyInStore) != 1 || result.OnlyInStore[0].ID != "c-2" {
		t.Fatalf("only in store = %+v", result.OnlyInStore)
	}
}

func TestServiceReconcileStoreError(t *testing.T) {
	svc, err := NewService(&stubContractStore{err: fmt.Errorf("db down")}, DefaultColumnMap(), 5, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	buf := buildSheet(t, [][]any{{"Account Name", "Value"}, {"Acme", 1}})
	if _, err := svc.Reconcile(context.Background(), buf); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestNewServiceNilStore(t *testing.T) {
	if _, err := NewService(nil, DefaultColumnMap(), 5, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
