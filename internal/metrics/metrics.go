// Package metrics exposes Prometheus metrics for the Harrier service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service metrics on a private registry.
type Collector struct {
	// Pipeline metrics
	StageDuration  *prometheus.HistogramVec
	PipelineRuns   *prometheus.CounterVec
	RecordsLoaded  prometheus.Gauge
	AlertsSelected prometheus.Histogram
	RulesLoaded    prometheus.Gauge

	// Report metrics
	ReportsDispatched *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewCollector creates a collector with every metric registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harrier_pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_pipeline_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RecordsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "harrier_records_loaded",
				Help: "Number of normalized records in the current snapshot",
			},
		),
		AlertsSelected: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harrier_alerts_selected",
				Help:    "Number of alerts selected per pipeline run",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		RulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "harrier_risk_rules_loaded",
				Help: "Number of risk rules loaded in the scoring engine",
			},
		),
		ReportsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_reports_dispatched_total",
				Help: "Total number of report dispatch attempts by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harrier_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harrier_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}

	registry.MustRegister(
		c.StageDuration,
		c.PipelineRuns,
		c.RecordsLoaded,
		c.AlertsSelected,
		c.RulesLoaded,
		c.ReportsDispatched,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
