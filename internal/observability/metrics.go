package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds the Prometheus metrics this service exposes: Write-Back
// Cache hit/miss and commit-cycle metrics, Dispatch Queue routing and
// aggregation-outcome metrics, and per-adapter failure gauges.
type Collector struct {
	registry *prometheus.Registry

	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheEvictions  *prometheus.CounterVec
	CacheSize       *prometheus.GaugeVec
	CommitDuration  *prometheus.HistogramVec
	CommitBatchSize *prometheus.HistogramVec

	RequestsDispatched *prometheus.CounterVec
	RequestsCompleted  *prometheus.CounterVec
	AdapterFailures    *prometheus.CounterVec
	AdapterConsecutive *prometheus.GaugeVec
	BreakerState       *prometheus.GaugeVec

	ManagerCallDuration *prometheus.HistogramVec
	ManagerCallTimeouts *prometheus.CounterVec
}

// NewCollector creates (or returns the existing) metrics collector for the
// given namespace. A singleton avoids duplicate registration across tests
// that construct multiple Manager Facades against the same registry.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Write-Back Cache hits by entity kind.",
		}, []string{"kind"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Write-Back Cache misses by entity kind.",
		}, []string{"kind"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_evictions_total", Help: "Objects evicted from the Write-Back Cache by entity kind.",
		}, []string{"kind"}),
		CacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_object_count", Help: "Current number of cached objects by entity kind.",
		}, []string{"kind"}),
		CommitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cache_commit_duration_seconds", Help: "Write-Back Cache commit cycle duration.", Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		CommitBatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cache_commit_batch_size", Help: "Number of objects committed per cycle.", Buckets: prometheus.LinearBuckets(0, 5, 10),
		}, []string{"kind"}),
		RequestsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_requests_dispatched_total", Help: "Intake requests routed to adapters by kind and operation.",
		}, []string{"kind", "operation"}),
		RequestsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_requests_completed_total", Help: "Dispatch Queue completions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AdapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "adapter_failures_total", Help: "Lifetime adapter failures by kind, adapter and operation.",
		}, []string{"kind", "adapter", "operation"}),
		AdapterConsecutive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "adapter_consecutive_failures", Help: "Current consecutive-failure count driving failure-action routing.",
		}, []string{"kind", "adapter"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "adapter_breaker_state", Help: "Circuit breaker state per adapter (0=closed, 1=half-open, 2=open).",
		}, []string{"kind", "adapter"}),
		ManagerCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "manager_call_duration_seconds", Help: "Manager Facade synchronous call duration.", Buckets: prometheus.DefBuckets,
		}, []string{"kind", "operation"}),
		ManagerCallTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "manager_call_timeouts_total", Help: "Manager Facade calls that exceeded the configured call timeout.",
		}, []string{"kind", "operation"}),
	}

	registry.MustRegister(
		c.CacheHits, c.CacheMisses, c.CacheEvictions, c.CacheSize,
		c.CommitDuration, c.CommitBatchSize,
		c.RequestsDispatched, c.RequestsCompleted, c.AdapterFailures,
		c.AdapterConsecutive, c.BreakerState,
		c.ManagerCallDuration, c.ManagerCallTimeouts,
	)

	globalCollector = c
	return globalCollector
}

// ResetForTesting clears the singleton so a test can build a fresh collector
// against its own registry.
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
