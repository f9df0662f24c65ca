package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStorageMetrics() {
	r.CommandsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_commands_total",
			Help: "Total number of engine commands processed, by command and status",
		},
		[]string{"command", "status"},
	)

	r.CommandDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsmkv_command_duration_seconds",
			Help:    "Engine command latency in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"command"},
	)

	r.LogicalPairsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_logical_pairs_total",
			Help: "Count of non-tombstoned distinct keys across the tree",
		},
	)

	r.BufferEntriesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_buffer_entries_total",
			Help: "Current number of entries in the in-memory buffer",
		},
	)

	r.LevelEntriesTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lsmkv_level_entries_total",
			Help: "Total entry count per level, including shadowed and tombstoned entries",
		},
		[]string{"level"},
	)

	r.LevelTablesTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lsmkv_level_tables_total",
			Help: "Number of SSTables currently resident at each level",
		},
		[]string{"level"},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_flushes_total",
			Help: "Total number of buffer-to-L0 flushes performed",
		},
	)

	r.CompactionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_compactions_total",
			Help: "Total number of level compactions performed",
		},
	)

	r.BloomFalsePositiveEst = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_bloom_false_positive_rate_estimate",
			Help: "Estimated Bloom filter false-positive rate across resident SSTables",
		},
	)

	r.CacheEvictionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_block_cache_evictions_total",
			Help: "Total number of blocks evicted from the shared SSTable block cache",
		},
	)

	r.AuthFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_auth_failures_total",
			Help: "Total number of rejected transport authentication attempts",
		},
	)
}
