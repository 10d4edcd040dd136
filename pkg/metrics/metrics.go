package metrics

import (
	"strconv"
	"time"

	archetype "github.com/goliatone/go-archetype"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector records graph activity as Prometheus metrics. It implements
// archetype.MetricsRecorder and is passed with archetype.WithMetrics.
type Collector struct {
	changesTotal    *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	orphansTotal    prometheus.Counter
	graphs          prometheus.Gauge
	registry        *prometheus.Registry
}

var _ archetype.MetricsRecorder = (*Collector)(nil)

// NewCollector creates a collector registered on its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	changesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archetype_changes_total",
			Help: "Total number of graph changes by type and origin",
		},
		[]string{"change", "from_base"},
	)

	refreshTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archetype_refresh_total",
			Help: "Total number of refreshes by status",
		},
		[]string{"status"},
	)

	refreshDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archetype_refresh_duration_seconds",
			Help:    "Duration of graph refreshes",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	orphansTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "archetype_orphans_total",
			Help: "Total number of orphaned overrides reported by refreshes",
		},
	)

	graphs := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "archetype_graphs",
			Help: "Current number of graphs registered in a container",
		},
	)

	registry.MustRegister(changesTotal)
	registry.MustRegister(refreshTotal)
	registry.MustRegister(refreshDuration)
	registry.MustRegister(orphansTotal)
	registry.MustRegister(graphs)

	return &Collector{
		changesTotal:    changesTotal,
		refreshTotal:    refreshTotal,
		refreshDuration: refreshDuration,
		orphansTotal:    orphansTotal,
		graphs:          graphs,
		registry:        registry,
	}
}

// RecordChange counts one container change.
func (c *Collector) RecordChange(change string, fromBase bool) {
	c.changesTotal.WithLabelValues(change, strconv.FormatBool(fromBase)).Inc()
}

// RecordRefresh records the outcome of a refresh.
func (c *Collector) RecordRefresh(_ archetype.AssetID, duration time.Duration, report *archetype.SyncReport) {
	c.refreshTotal.WithLabelValues(refreshStatus(report)).Inc()
	c.refreshDuration.Observe(duration.Seconds())
	if report != nil {
		c.orphansTotal.Add(float64(len(report.Orphans)))
	}
}

// RecordGraphs sets the number of registered graphs.
func (c *Collector) RecordGraphs(count int) {
	c.graphs.Set(float64(count))
}

// Registry returns the Prometheus registry for HTTP exposure
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func refreshStatus(report *archetype.SyncReport) string {
	switch {
	case report == nil:
		return "ok"
	case !report.OK():
		return "error"
	case len(report.Orphans) > 0:
		return "orphans"
	default:
		return "ok"
	}
}
