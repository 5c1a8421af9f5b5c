package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "mars_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	importTotal *prometheus.CounterVec
	importRows  prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	contractRecTotal      *prometheus.CounterVec
	contractMismatchGauge prometheus.Gauge
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route and status class",
			},
			[]string{"route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)

		importTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "actuals_imports_total",
				Help: "Total actuals workbook imports by result",
			},
			[]string{"result"},
		)
		importRows = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "actuals_import_rows_total",
				Help: "Total actuals rows written",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "variance_exports_total",
				Help: "Total variance exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "variance_export_latency_seconds",
				Help:    "Variance export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		contractRecTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "contract_reconciles_total",
				Help: "Total contract sheet reconciliations by result",
			},
			[]string{"result"},
		)
		contractMismatchGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "contract_value_mismatches",
				Help: "Value mismatches found by the latest contract reconciliation",
			},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			importTotal,
			importRows,
			exportTotal,
			exportLatency,
			contractRecTotal,
			contractMismatchGauge,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRequest records one HTTP request.
func ObserveRequest(route, status string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, status).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(route).Observe(duration.Seconds())
	}
}

// ObserveImport records one actuals import and its written row count.
func ObserveImport(result string, rows int) {
	if result == "" {
		result = resultSuccess
	}
	if importTotal != nil {
		importTotal.WithLabelValues(result).Inc()
	}
	if importRows != nil && rows > 0 {
		importRows.Add(float64(rows))
	}
}

// ObserveExport records one variance export.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveContractReconcile records one contract reconciliation.
func ObserveContractReconcile(result string, mismatches int) {
	if result == "" {
		result = resultSuccess
	}
	if contractRecTotal != nil {
		contractRecTotal.WithLabelValues(result).Inc()
	}
	if contractMismatchGauge != nil && result == resultSuccess {
		contractMismatchGauge.Set(float64(mismatches))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
