package metrics

import (
	"strconv"
	"time"
)

// RecordCommand records one engine command's outcome and latency.
func (r *Registry) RecordCommand(command, status string, duration time.Duration) {
	r.CommandsTotal.WithLabelValues(command, status).Inc()
	r.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// TreeStats is the subset of lsm.Stats the metrics package needs,
// declared locally so this package does not import pkg/lsm just to read
// five fields off a snapshot struct.
type TreeStats struct {
	LogicalPairs    int
	BufferCount     int
	PerLevelCounts  []int
	FlushCount      int64
	CompactionCount int64
}

// UpdateStorageMetrics pushes a point-in-time Stats snapshot into the
// gauges/counters. The transport server calls it after every command it
// executes, reads included.
func (r *Registry) UpdateStorageMetrics(s TreeStats) {
	r.LogicalPairsTotal.Set(float64(s.LogicalPairs))
	r.BufferEntriesTotal.Set(float64(s.BufferCount))
	for i, count := range s.PerLevelCounts {
		r.LevelEntriesTotal.WithLabelValues(levelLabel(i)).Set(float64(count))
	}
	r.FlushesTotal.Add(0) // ensure the series exists even before the first flush
	r.CompactionsTotal.Add(0)
}

// RecordFlush increments the flush counter. Called once per completed
// buffer flush rather than derived from the Stats snapshot, so the
// Prometheus counter's own rate() reflects real event timing.
func (r *Registry) RecordFlush() {
	r.FlushesTotal.Inc()
}

// RecordCompaction increments the compaction counter.
func (r *Registry) RecordCompaction() {
	r.CompactionsTotal.Inc()
}

// RecordAuthFailure increments the transport auth-failure counter.
func (r *Registry) RecordAuthFailure() {
	r.AuthFailuresTotal.Inc()
}

// RecordCacheEviction increments the block-cache eviction counter.
func (r *Registry) RecordCacheEviction() {
	r.CacheEvictionsTotal.Inc()
}

// SetBloomFalsePositiveEstimate records the current estimated Bloom
// filter false-positive rate, computed by the caller from the resident
// SSTables' bit-array sizes and item counts.
func (r *Registry) SetBloomFalsePositiveEstimate(rate float64) {
	r.BloomFalsePositiveEst.Set(rate)
}

func levelLabel(levelNum int) string {
	return "L" + strconv.Itoa(levelNum+1)
}
