package application

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

func writeArtifacts(outDir string, report *reconcile.Report, result *RunResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if err := writeVariancesCSV(outDir, report.Results); err != nil {
		return err
	}
	if err := writeFindingsCSV(outDir, report.Findings); err != nil {
		return err
	}
	return writeSummaryJSON(outDir, result)
}

func writeArchive(outDir string) (string, error) {
	archivePath := filepath.Join(outDir, "report.zip")
	file, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	zipWriter := zip.NewWriter(file)
	defer zipWriter.Close()

	entries := []string{
		"variances.csv",
		"findings.csv",
		"summary.json",
	}

	for _, name := range entries {
		path := filepath.Join(outDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fw, err := zipWriter.Create(name)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if _, err := fw.Write(data); err != nil {
			return "", err
		}
	}
	return archivePath, nil
}

func writeVariancesCSV(outDir string, rows []reconcile.Variance) error {
	path := filepath.Join(outDir, "variances.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"entity_key",
		"computed_value",
		"reference_value",
		"delta",
		"delta_pct",
		"status",
	}); err != nil {
		return err
	}

	for _, row := range rows {
		if err := writer.Write([]string{
			string(row.EntityKey),
			row.Computed.StringFixed(2),
			row.Reference.StringFixed(2),
			row.Delta.StringFixed(2),
			row.DeltaPct.StringFixed(2),
			string(row.Status),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFindingsCSV(outDir string, rows []reconcile.Finding) error {
	path := filepath.Join(outDir, "findings.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"entity_key",
		"severity",
		"reason",
		"magnitude",
		"delta",
		"delta_pct",
		"status",
	}); err != nil {
		return err
	}

	for _, row := range rows {
		delta, deltaPct, status := "", "", ""
		if row.Variance != nil {
			delta = row.Variance.Delta.StringFixed(2)
			deltaPct = row.Variance.DeltaPct.StringFixed(2)
			status = string(row.Variance.Status)
		}
		if err := writer.Write([]string{
			string(row.EntityKey),
			string(row.Severity),
			row.Reason,
			row.Magnitude.StringFixed(2),
			delta,
			deltaPct,
			status,
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeSummaryJSON(outDir string, result *RunResult) error {
	path := filepath.Join(outDir, "summary.json")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
