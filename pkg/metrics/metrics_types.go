package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the engine and its transport expose.
type Registry struct {
	// Command metrics — one counter/histogram pair per public operation
	// (put/get/range/delete/bulk_load/stats).
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Storage metrics — population and background-worker activity.
	LogicalPairsTotal     prometheus.Gauge
	BufferEntriesTotal    prometheus.Gauge
	LevelEntriesTotal     *prometheus.GaugeVec
	LevelTablesTotal      *prometheus.GaugeVec
	FlushesTotal          prometheus.Counter
	CompactionsTotal      prometheus.Counter
	BloomFalsePositiveEst prometheus.Gauge
	CacheEvictionsTotal   prometheus.Counter

	// Transport metrics.
	AuthFailuresTotal prometheus.Counter

	// System metrics.
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{registry: reg}

	r.initStorageMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
