// Package observability exposes Prometheus metrics for the fusion pipeline
// and the query surface.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RefreshCycles  *prometheus.CounterVec
	SourceFetches  *prometheus.CounterVec
	FusionDuration *prometheus.HistogramVec
	CellsPublished *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics registers the pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		RefreshCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cleansky_refresh_cycles_total",
			Help: "Refresh cycles per city by outcome (ok, error).",
		}, []string{"city", "outcome"}),
		SourceFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cleansky_source_fetches_total",
			Help: "Upstream source fetches by adapter and outcome (ok, error).",
		}, []string{"source", "outcome"}),
		FusionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cleansky_fusion_duration_seconds",
			Help:    "Wall time to fuse one city grid.",
			Buckets: prometheus.DefBuckets,
		}, []string{"city"}),
		CellsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cleansky_cells_published_total",
			Help: "Grid cells published per city.",
		}, []string{"city"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cleansky_cache_lookups_total",
			Help: "Query cache lookups by result (hit, miss).",
		}, []string{"result"}),
		registry: reg,
	}
}

// Registry returns the registry the metrics live on, for the /metrics
// handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRefresh(city string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RefreshCycles.WithLabelValues(city, outcome).Inc()
	if err == nil {
		m.FusionDuration.WithLabelValues(city).Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveFetch(source string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SourceFetches.WithLabelValues(source, outcome).Inc()
}
