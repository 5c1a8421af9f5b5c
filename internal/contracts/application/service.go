package application

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	contracts "mars-dashboards/internal/contracts/domain"
)

// ColumnMap holds zero-based sheet column indexes for the CRM export.
type ColumnMap struct {
	Account int `yaml:"account"`
	Value   int `yaml:"value"`
}

// DefaultColumnMap matches the CRM opportunity export layout.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{Account: 0, Value: 1}
}

// ContractStore reads the contract system of record.
type ContractStore interface {
	ListContracts(ctx context.Context) ([]contracts.Contract, error)
}

// Service reconciles an uploaded CRM export against the contract store.
type Service struct {
	store       ContractStore
	columns     ColumnMap
	mismatchPct float64
	logger      *log.Logger
}

// NewService constructs a Service. A non-positive mismatchPct falls back
// to 5 percent.
func NewService(store ContractStore, columns ColumnMap, mismatchPct float64, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("contracts service: nil store")
	}
	if mismatchPct <= 0 {
		mismatchPct = 5
	}
	return &Service{store: store, columns: columns, mismatchPct: mismatchPct, logger: logger}, nil
}

// Reconcile parses the uploaded workbook, collapses opportunity rows per
// account, and compares the result against the store.
func (s *Service) Reconcile(ctx context.Context, r io.Reader) (contracts.ReconcileResult, error) {
	sheet, err := s.parseWorkbook(r)
	if err != nil {
		return contracts.ReconcileResult{}, err
	}
	stored, err := s.store.ListContracts(ctx)
	if err != nil {
		return contracts.ReconcileResult{}, err
	}

	result := contracts.Reconcile(sheet, stored, s.mismatchPct)
	if s.logger != nil {
		s.logger.Printf("contracts_reconciled sheet=%d store=%d matched=%d mismatches=%d",
			len(sheet), len(stored), len(result.Matched), result.Mismatches)
	}
	return result, nil
}

func (s *Service) parseWorkbook(r io.Reader) ([]contracts.Contract, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("contracts service: open workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("contracts service: workbook has no sheets")
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("contracts service: read rows: %w", err)
	}

	var out []contracts.Contract
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		account := strings.TrimSpace(cell(row, s.columns.Account))
		if account == "" {
			continue
		}
		out = append(out, contracts.Contract{
			Name:             account,
			Value:            parseMoneyCell(cell(row, s.columns.Value)),
			OpportunityCount: 1,
		})
	}
	return out, nil
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return row[index]
}

// parseMoneyCell accepts plain numbers, currency formatting, and accounting
// negatives. Unparseable values coerce to zero.
func parseMoneyCell(raw string) decimal.Decimal {
	cleaned := strings.TrimSpace(raw)
	negative := strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")")
	if negative {
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.NewReplacer("$", "", ",", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return value.Neg()
	}
	return value
}
