// Package observability exposes prometheus metrics for the sync engine and server
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// Each collector owns its registry, so several can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	// Local persistence
	Saves        *prometheus.CounterVec
	SaveDuration *prometheus.HistogramVec

	// Remote sync
	SyncOps      *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec
	SyncStatus   *prometheus.GaugeVec

	// HTTP server
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// Statuses is the label set of the sync status gauge
var Statuses = []string{"idle", "syncing", "synced", "error", "offline"}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	saves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_saves_total",
			Help:      "Total number of local store writes made by autosave",
		},
		[]string{"mode", "status"},
	)

	saveDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "local_save_duration_seconds",
			Help:      "Local save duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	syncOps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Total number of remote sync operations",
		},
		[]string{"operation", "status"},
	)

	syncDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_operation_duration_seconds",
			Help:      "Remote sync operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	syncStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_status",
			Help:      "1 for the current sync status, 0 otherwise",
		},
		[]string{"status"},
	)

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		saves,
		saveDuration,
		syncOps,
		syncDuration,
		syncStatus,
		httpRequests,
		httpDuration,
	)

	return &Collector{
		registry:     registry,
		Saves:        saves,
		SaveDuration: saveDuration,
		SyncOps:      syncOps,
		SyncDuration: syncDuration,
		SyncStatus:   syncStatus,
		HTTPRequests: httpRequests,
		HTTPDuration: httpDuration,
	}
}

// SaveCompleted implements output.Metrics
func (c *Collector) SaveCompleted(mode string, d time.Duration, err error) {
	c.Saves.WithLabelValues(mode, outcome(err)).Inc()
	c.SaveDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// SyncCompleted implements output.Metrics
func (c *Collector) SyncCompleted(op string, d time.Duration, err error) {
	c.SyncOps.WithLabelValues(op, outcome(err)).Inc()
	c.SyncDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SyncStatusChanged implements output.Metrics
func (c *Collector) SyncStatusChanged(status string) {
	for _, s := range Statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		c.SyncStatus.WithLabelValues(s).Set(v)
	}
}

// RequestServed implements output.Metrics
func (c *Collector) RequestServed(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
