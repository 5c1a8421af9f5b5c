package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

// BuildVariancesCSV renders the variance table as CSV.
func BuildVariancesCSV(report *reconcile.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"project", "computed_cost", "reference_cost", "delta", "delta_pct", "status"}); err != nil {
		return nil, err
	}
	for _, v := range report.Results {
		rec := []string{
			string(v.EntityKey),
			v.Computed.StringFixed(2),
			v.Reference.StringFixed(2),
			v.Delta.StringFixed(2),
			v.DeltaPct.StringFixed(2),
			string(v.Status),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildVariancesXLSX renders a variance workbook with a summary sheet and a
// per-project variance sheet.
func BuildVariancesXLSX(report *reconcile.Report, year int) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	variancesSheet := "variances"
	findingsSheet := "findings"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(variancesSheet)
	f.NewSheet(findingsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Cost Reconciliation")
	_ = f.SetCellValue(summarySheet, "A3", "Year")
	_ = f.SetCellValue(summarySheet, "B3", year)
	_ = f.SetCellValue(summarySheet, "A4", "Projects")
	_ = f.SetCellValue(summarySheet, "B4", report.Summary.Entities)
	_ = f.SetCellValue(summarySheet, "A5", "Match")
	_ = f.SetCellValue(summarySheet, "B5", report.Summary.Match)
	_ = f.SetCellValue(summarySheet, "A6", "Close")
	_ = f.SetCellValue(summarySheet, "B6", report.Summary.Close)
	_ = f.SetCellValue(summarySheet, "A7", "Check")
	_ = f.SetCellValue(summarySheet, "B7", report.Summary.Check)
	_ = f.SetCellValue(summarySheet, "A8", "No Data")
	_ = f.SetCellValue(summarySheet, "B8", report.Summary.NoData)
	_ = f.SetCellValue(summarySheet, "A9", "High Findings")
	_ = f.SetCellValue(summarySheet, "B9", report.Summary.High)
	_ = f.SetCellValue(summarySheet, "A10", "Medium Findings")
	_ = f.SetCellValue(summarySheet, "B10", report.Summary.Medium)
	_ = f.SetCellValue(summarySheet, "A11", "Generated")
	_ = f.SetCellValue(summarySheet, "B11", time.Now().UTC().Format(time.RFC3339))

	_ = f.SetCellValue(variancesSheet, "A1", "Project")
	_ = f.SetCellValue(variancesSheet, "B1", "Computed Cost")
	_ = f.SetCellValue(variancesSheet, "C1", "Reference Cost")
	_ = f.SetCellValue(variancesSheet, "D1", "Delta")
	_ = f.SetCellValue(variancesSheet, "E1", "Delta %")
	_ = f.SetCellValue(variancesSheet, "F1", "Status")
	for i, v := range report.Results {
		row := i + 2
		_ = f.SetCellValue(variancesSheet, fmt.Sprintf("A%d", row), string(v.EntityKey))
		_ = f.SetCellValue(variancesSheet, fmt.Sprintf("B%d", row), v.Computed.InexactFloat64())
		_ = f.SetCellValue(variancesSheet, fmt.Sprintf("C%d", row), v.Reference.InexactFloat64())
		_ = f.SetCellValue(variancesSheet, fmt.Sprintf("D%d", row), v.Delta.InexactFloat64())
		_ = f.SetCellValue(variancesSheet, fmt.Sprintf("E%d", row), v.DeltaPct.InexactFloat64())
		_ = f.SetCellValue(variancesSheet, fmt.Sprintf("F%d", row), string(v.Status))
	}

	_ = f.SetCellValue(findingsSheet, "A1", "Project")
	_ = f.SetCellValue(findingsSheet, "B1", "Severity")
	_ = f.SetCellValue(findingsSheet, "C1", "Reason")
	_ = f.SetCellValue(findingsSheet, "D1", "Magnitude")
	for i, fd := range report.Findings {
		row := i + 2
		_ = f.SetCellValue(findingsSheet, fmt.Sprintf("A%d", row), string(fd.EntityKey))
		_ = f.SetCellValue(findingsSheet, fmt.Sprintf("B%d", row), string(fd.Severity))
		_ = f.SetCellValue(findingsSheet, fmt.Sprintf("C%d", row), fd.Reason)
		_ = f.SetCellValue(findingsSheet, fmt.Sprintf("D%d", row), fd.Magnitude.InexactFloat64())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildVariancesPDF renders a compact PDF of the variance table for review
// meetings.
func BuildVariancesPDF(report *reconcile.Report, year int) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Cost Reconciliation Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Year: %d", year))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Projects: %d  Match: %d  Close: %d  Check: %d  No Data: %d",
		report.Summary.Entities, report.Summary.Match, report.Summary.Close, report.Summary.Check, report.Summary.NoData))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(42, 6, "Project", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Computed", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Reference", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Delta", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Delta %", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, v := range report.Results {
		pdf.CellFormat(42, 6, string(v.EntityKey), "1", 0, "L", false, 0, "")
		pdf.CellFormat(32, 6, v.Computed.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, v.Reference.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, v.Delta.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, v.DeltaPct.StringFixed(1), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, string(v.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	if len(report.Top) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Highest Ranked Discrepancies")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		for _, fd := range report.Top {
			pdf.Cell(0, 5, fmt.Sprintf("[%s] %s: %s (%.2f)", fd.Severity, fd.EntityKey, fd.Reason, fd.Magnitude.InexactFloat64()))
			pdf.Ln(5)
		}
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
