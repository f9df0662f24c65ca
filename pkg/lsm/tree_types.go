package lsm

import (
	"sync"
	"sync/atomic"

	"github.com/nrigby/lsmkv/pkg/logging"
)

// MaxTableSize bounds how many entries a single compaction output
// SSTable may hold before it is sealed and a new one started (§4.5.7).
const MaxTableSize = 1_000_000

// MetricsRecorder receives flush, compaction, and block-cache eviction
// events as they happen, so a metrics registry's counters track real
// event timing instead of being derived from periodic Stats() polling.
type MetricsRecorder interface {
	RecordFlush()
	RecordCompaction()
	RecordCacheEviction()
}

// Options configures a new LSMTree, mirroring the teacher's LSMOptions
// (pkg/lsm/lsm_types.go) but over the fields spec §3/§4.5 name directly.
type Options struct {
	DBPath                 string
	BufferCapacity         int
	BaseLevelTableCapacity int
	TotalLevels            int
	LevelSizeRatio         float64
	BloomFalsePositiveRate float64
	Logger                 logging.Logger
	Metrics                MetricsRecorder
}

// DefaultOptions returns the default configuration for dbPath: a
// 1000-entry buffer, a base level of 4 tables, 7 levels with a size ratio
// of 10, and DefaultBloomFPRate. The small worked scenarios override these
// with far smaller capacities.
func DefaultOptions(dbPath string) Options {
	return Options{
		DBPath:                 dbPath,
		BufferCapacity:         1000,
		BaseLevelTableCapacity: 4,
		TotalLevels:            7,
		LevelSizeRatio:         10,
		BloomFalsePositiveRate: DefaultBloomFPRate,
	}
}

// LSMTree is the orchestrator: the public API, the on-disk layout, and
// the flush/compaction background threads. It corresponds to the
// teacher's LSMStorage (pkg/lsm/lsm.go) generalized to spec §4.5.
type LSMTree struct {
	opts   Options
	logger logging.Logger

	buffer     *Buffer
	levels     []*Level
	blockCache *BlockCache
	metrics    MetricsRecorder

	nextFileID atomic.Int64

	flushCond    *sync.Cond
	flushMu      sync.Mutex
	flushPending bool
	compactCond  *sync.Cond
	compactMu    sync.Mutex
	compactQueue *levelHeap

	shutdownMu sync.Mutex
	shutdown   bool

	wg sync.WaitGroup

	statsMu    sync.Mutex
	flushCount int64
	compactCnt int64
}

// Stats is a point-in-time snapshot for callers that want structured
// numbers instead of the formatted StatsString() text (pkg/transport
// converts it into metrics.TreeStats).
type Stats struct {
	LogicalPairs    int
	BufferCount     int
	PerLevelCounts  []int
	FlushCount      int64
	CompactionCount int64
}
