package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles reconciliation run metrics.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	FindingsHigh   prometheus.Gauge
	FindingsMedium prometheus.Gauge
	NoDataEntities prometheus.Gauge
	ReportsTotal   prometheus.Counter
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mars_reconcile_runs_total",
				Help: "Total reconciliation runs by status",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mars_reconcile_run_duration_seconds",
			Help:    "Reconciliation run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		FindingsHigh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mars_reconcile_findings_high",
			Help: "High severity findings in the latest run",
		}),
		FindingsMedium: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mars_reconcile_findings_medium",
			Help: "Medium severity findings in the latest run",
		}),
		NoDataEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mars_reconcile_no_data_entities",
			Help: "Entities with no linked source lines in the latest run",
		}),
		ReportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mars_reconcile_reports_total",
			Help: "Total reconciliation reports generated",
		}),
	}
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.FindingsHigh,
		m.FindingsMedium,
		m.NoDataEntities,
		m.ReportsTotal,
	)
	return m
}
