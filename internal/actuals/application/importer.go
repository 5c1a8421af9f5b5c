package application

import (
	"context"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

// ColumnMap holds the fixed column offsets of the source workbook. The
// monthly budget/actual block starts at column 11; only the actual revenue
// and actual cost columns feed the engine, the rest of the block (budget,
// GP, variance) is derived in the sheet itself.
type ColumnMap struct {
	Project       int `yaml:"project"`
	Year          int `yaml:"year"`
	Month         int `yaml:"month"`
	ActualRevenue int `yaml:"actual_revenue"`
	ActualCost    int `yaml:"actual_cost"`
}

// DefaultColumnMap returns the offsets of the source workbook layout.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		Project:       0,
		Year:          1,
		Month:         2,
		ActualRevenue: 12,
		ActualCost:    18,
	}
}

// ActualStore persists imported actuals.
type ActualStore interface {
	UpsertActuals(ctx context.Context, actuals []reconcile.ReferenceActual) (int, error)
}

// ImportSummary reports the outcome of one workbook import.
type ImportSummary struct {
	Rows     int `json:"rows"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Importer parses reference-actual workbooks and persists their rows.
type Importer struct {
	store   ActualStore
	columns ColumnMap
	logger  *log.Logger
}

// NewImporter constructs an Importer.
func NewImporter(store ActualStore, columns ColumnMap, logger *log.Logger) (*Importer, error) {
	if store == nil {
		return nil, errors.New("actuals importer: nil store")
	}
	return &Importer{store: store, columns: columns, logger: logger}, nil
}

// ImportWorkbook reads the first sheet of an XLSX workbook and upserts one
// ReferenceActual per data row. Rows without a project are skipped; rows
// with unparseable numbers import with the bad cells coerced to zero, the
// same treatment null fields get everywhere else in the engine.
func (i *Importer) ImportWorkbook(ctx context.Context, r io.Reader) (ImportSummary, error) {
	var summary ImportSummary

	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return summary, err
	}
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	if sheet == "" {
		return summary, errors.New("actuals importer: workbook has no sheets")
	}
	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return summary, err
	}

	var actuals []reconcile.ReferenceActual
	for index, row := range rows {
		if index == 0 {
			// Header row.
			continue
		}
		summary.Rows++

		project := strings.TrimSpace(cell(row, i.columns.Project))
		if project == "" {
			summary.Skipped++
			continue
		}
		year := parseIntCell(cell(row, i.columns.Year))
		month := parseIntCell(cell(row, i.columns.Month))
		if year == 0 {
			summary.Skipped++
			continue
		}

		actuals = append(actuals, reconcile.ReferenceActual{
			EntityKey: reconcile.EntityKey(project),
			Year:      year,
			Month:     month,
			Revenue:   parseMoneyCell(cell(row, i.columns.ActualRevenue)),
			Cost:      parseMoneyCell(cell(row, i.columns.ActualCost)),
		})
	}

	imported, err := i.store.UpsertActuals(ctx, actuals)
	if err != nil {
		return summary, err
	}
	summary.Imported = imported
	if i.logger != nil {
		i.logger.Printf("actuals import: rows=%d imported=%d skipped=%d", summary.Rows, summary.Imported, summary.Skipped)
	}
	return summary, nil
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return row[index]
}

func parseIntCell(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		// Year cells occasionally render as floats ("2026.0").
		if f, ferr := strconv.ParseFloat(value, 64); ferr == nil {
			return int(f)
		}
		return 0
	}
	return parsed
}

func parseMoneyCell(value string) decimal.Decimal {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return decimal.Zero
	}
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		// Accounting notation for negatives.
		negative = true
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")
	}
	parsed, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return parsed.Neg()
	}
	return parsed
}
