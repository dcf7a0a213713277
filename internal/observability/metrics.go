package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the validation and
// verification paths.
type Metrics struct {
	ValidationRuns      *prometheus.CounterVec // labels: outcome={valid,mismatch,error}
	PipelineFailures    *prometheus.CounterVec // labels: pipeline
	NormalizationErrors *prometheus.CounterVec // labels: pipeline
	PipelineDuration    *prometheus.HistogramVec
	ActiveDeclarations  *prometheus.GaugeVec // labels: pipeline
	VerifyRequests      *prometheus.CounterVec
	HoursSinceLastRun   prometheus.Gauge
}

// NewMetrics creates and registers all instruments with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ValidationRuns,
		m.PipelineFailures,
		m.NormalizationErrors,
		m.PipelineDuration,
		m.ActiveDeclarations,
		m.VerifyRequests,
		m.HoursSinceLastRun,
	)
	return m
}

// NewMetricsForTesting creates unregistered instruments so parallel tests do
// not hit "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ValidationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonewatch",
			Name:      "validation_runs_total",
			Help:      "Completed validation runs by outcome.",
		}, []string{"outcome"}),
		PipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonewatch",
			Name:      "pipeline_failures_total",
			Help:      "Extraction pipeline failures (errors or timeouts).",
		}, []string{"pipeline"}),
		NormalizationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonewatch",
			Name:      "normalization_errors_total",
			Help:      "Raw records dropped because a field could not be normalized.",
		}, []string{"pipeline"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zonewatch",
			Name:      "pipeline_duration_seconds",
			Help:      "Extraction duration per pipeline.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pipeline"}),
		ActiveDeclarations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "zonewatch",
			Name:      "active_declarations",
			Help:      "Active declarations currently held in each pipeline partition.",
		}, []string{"pipeline"}),
		VerifyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonewatch",
			Name:      "verify_requests_total",
			Help:      "Zone verification lookups by outcome.",
		}, []string{"outcome"}),
		HoursSinceLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonewatch",
			Name:      "hours_since_last_validation",
			Help:      "Hours since the last completed validation run.",
		}),
	}
}
