// Package metrics is the ambient Prometheus home for request and
// per-module observability: request counts, latency histograms, and
// classification/status counters, backed by
// github.com/prometheus/client_golang. Wired only from cmd/server —
// analysis results never depend on it.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"imageguard/internal/core"
)

// Collector tracks request counts, latency, and classification outcomes
// for the HTTP surface.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	classifications *prometheus.CounterVec
	requestDuration prometheus.Histogram
	moduleLatency   *prometheus.HistogramVec
	moduleStatus    *prometheus.CounterVec

	mu             sync.Mutex
	requestsServed int64
	totalLatency   time.Duration
}

// NewCollector registers the instruments against the default Prometheus
// registry.
func NewCollector() *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer)
}

// NewCollectorWith registers the instruments against reg, letting tests
// use an isolated registry.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imageguard_requests_total",
			Help: "Total number of analyze requests, partitioned by outcome.",
		}, []string{"outcome"}),
		classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imageguard_classifications_total",
			Help: "Total number of analyze requests, partitioned by final classification.",
		}, []string{"classification"}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "imageguard_request_duration_seconds",
			Help:    "End-to-end analyze request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		moduleLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imageguard_module_duration_seconds",
			Help:    "Per-module analysis latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"module"}),
		moduleStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imageguard_module_status_total",
			Help: "Per-module result status (ok, timeout, error).",
		}, []string{"module", "status"}),
	}
}

// RecordSuccess records a completed analyze request that produced an
// aggregate result.
func (c *Collector) RecordSuccess(duration time.Duration, result *core.AggregateResult) {
	c.requestsTotal.WithLabelValues("success").Inc()
	c.requestDuration.Observe(duration.Seconds())
	if result != nil {
		c.classifications.WithLabelValues(string(result.Classification)).Inc()
	}
	c.mu.Lock()
	c.requestsServed++
	c.totalLatency += duration
	c.mu.Unlock()
}

// RecordFailure records an analyze request that failed before producing a
// result (preprocessing error, config error).
func (c *Collector) RecordFailure(duration time.Duration) {
	c.requestsTotal.WithLabelValues("failure").Inc()
	c.requestDuration.Observe(duration.Seconds())
	c.mu.Lock()
	c.requestsServed++
	c.totalLatency += duration
	c.mu.Unlock()
}

// RecordModule records a single module's latency and status within a
// request, as emitted by the orchestrator's per-module loop.
func (c *Collector) RecordModule(moduleID string, status core.ModuleStatus, latencyMS int64) {
	c.moduleLatency.WithLabelValues(moduleID).Observe(float64(latencyMS) / 1000.0)
	c.moduleStatus.WithLabelValues(moduleID, string(status)).Inc()
}

// GetRequestsTotal returns the number of requests observed so far.
func (c *Collector) GetRequestsTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestsServed
}

// GetAverageLatency returns the mean end-to-end request latency.
func (c *Collector) GetAverageLatency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requestsServed == 0 {
		return 0
	}
	return c.totalLatency / time.Duration(c.requestsServed)
}
