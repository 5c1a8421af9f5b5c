package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "mirrored_transaction_lines",
			Help: "Transaction lines in the ERP mirror",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM netsuite_transaction_lines")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "imported_actuals_rows",
			Help: "Spreadsheet actuals rows on record",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM excel_actuals")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "reconciliation_reports",
			Help: "Generated reconciliation reports on record",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM reconciliation_reports")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
