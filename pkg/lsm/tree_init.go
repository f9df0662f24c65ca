package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/nrigby/lsmkv/pkg/logging"
)

var sstableFilePattern = regexp.MustCompile(`^(\d{6})\.sst$`)

// NewLSMTree opens (or creates) the tree rooted at opts.DBPath (§4.5.1).
// For each level it ensures the data and bloom_filters directories exist,
// scans for existing NNNNNN.sst files, opens each lazily (eager header +
// Bloom load), sorts by numeric file id ascending, and sets next_file_id
// past the highest id observed.
func NewLSMTree(opts Options) (*LSMTree, error) {
	if opts.BufferCapacity <= 0 || opts.TotalLevels <= 0 || opts.BaseLevelTableCapacity <= 0 || opts.LevelSizeRatio <= 0 {
		return nil, fmt.Errorf("lsm: invalid options: %+v", opts)
	}
	if opts.BloomFalsePositiveRate <= 0 {
		opts.BloomFalsePositiveRate = DefaultBloomFPRate
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if err := os.MkdirAll(opts.DBPath, 0o755); err != nil {
		return nil, fmt.Errorf("lsm: create db path: %w", err)
	}

	t := &LSMTree{
		opts:       opts,
		logger:     logger,
		buffer:     NewBuffer(opts.BufferCapacity),
		levels:     make([]*Level, opts.TotalLevels),
		blockCache: NewBlockCache(defaultBlockCacheBytes, opts.Metrics),
		metrics:    opts.Metrics,
	}
	t.flushCond = sync.NewCond(&t.flushMu)
	t.compactCond = sync.NewCond(&t.compactMu)
	t.compactQueue = newLevelHeap()

	capacity := float64(opts.BaseLevelTableCapacity)
	maxFileID := 0
	for i := 0; i < opts.TotalLevels; i++ {
		cap := int(capacity)
		if cap < 1 {
			cap = 1
		}
		t.levels[i] = NewLevel(i, cap)
		capacity *= opts.LevelSizeRatio

		dir := levelDir(opts.DBPath, i)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("lsm: create level dir: %w", err)
		}
		if err := os.MkdirAll(bloomDir(opts.DBPath, i), 0o755); err != nil {
			return nil, fmt.Errorf("lsm: create bloom dir: %w", err)
		}

		ids, err := scanLevelFileIDs(dir)
		if err != nil {
			return nil, fmt.Errorf("lsm: scan level %d: %w", i, err)
		}
		for _, id := range ids {
			sst, err := OpenSSTable(i, id, dataPath(opts.DBPath, i, id), bloomPath(opts.DBPath, i, id), t.blockCache)
			if err != nil {
				logger.Warn("failed to open sstable at startup, skipping", logging.Path(dataPath(opts.DBPath, i, id)), logging.Error(err))
				continue
			}
			t.levels[i].Add(sst)
			if id > maxFileID {
				maxFileID = id
			}
		}
	}

	t.nextFileID.Store(int64(maxFileID + 1))

	t.wg.Add(2)
	go t.flushWorker()
	go t.compactionWorker()

	logger.Info("lsm tree opened", logging.Path(opts.DBPath), logging.Int("levels", opts.TotalLevels))
	return t, nil
}

// scanLevelFileIDs returns numeric file ids of every NNNNNN.sst file in
// dir, sorted ascending — the order tables must be opened/appended in so
// that "oldest first" (§3, Level invariant) holds without extra bookkeeping.
func scanLevelFileIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := sstableFilePattern.FindStringSubmatch(filepath.Base(e.Name()))
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
