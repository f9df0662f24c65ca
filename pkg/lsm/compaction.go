package lsm

import (
	"container/heap"
	"fmt"

	"github.com/nrigby/lsmkv/pkg/logging"
)

// levelHeap is a min-heap of level indices awaiting compaction. Compacting
// the lowest full level first keeps the cascade shallow: a level that has
// just overflowed from a lower-level compaction is processed before older,
// already-queued requests for higher levels pile further mergeable data on
// top of it (§4.5.7).
type levelHeap struct {
	items  []int
	queued map[int]bool
}

func newLevelHeap() *levelHeap {
	return &levelHeap{queued: make(map[int]bool)}
}

func (h *levelHeap) Len() int           { return len(h.items) }
func (h *levelHeap) Less(i, j int) bool { return h.items[i] < h.items[j] }
func (h *levelHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *levelHeap) Push(x interface{}) { h.items = append(h.items, x.(int)) }
func (h *levelHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	v := old[n-1]
	h.items = old[:n-1]
	return v
}

// enqueue adds levelNum if it isn't already pending, deduplicating repeat
// signals raised while a level's compaction is still queued.
func (h *levelHeap) enqueue(levelNum int) {
	if h.queued[levelNum] {
		return
	}
	h.queued[levelNum] = true
	heap.Push(h, levelNum)
}

// dequeue pops the lowest pending level, or (-1, false) if empty.
func (h *levelHeap) dequeue() (int, bool) {
	if h.Len() == 0 {
		return -1, false
	}
	v := heap.Pop(h).(int)
	delete(h.queued, v)
	return v, true
}

// compactLevel merges every table in levels[src] into levels[src+1] via a
// k-way merge keyed by (key ascending, source index descending so that a
// table added later — and therefore holding a newer version of a key —
// wins over an earlier one), matching spec §4.5.7's leveled-tiering strategy.
// Tombstones are dropped only when src+1 is the last level, since a
// tombstone still shadows a live value that might be sitting in a deeper
// level (§3 tombstone invariant).
func (t *LSMTree) compactLevel(src int) error {
	if src < 0 || src+1 >= len(t.levels) {
		return nil
	}
	srcLevel := t.levels[src]
	dstLevel := t.levels[src+1]

	if !srcLevel.NeedsCompaction() {
		return nil
	}

	sources := srcLevel.GetSSTables()
	if len(sources) == 0 {
		return nil
	}

	runs := make([][]DataPair, len(sources))
	removedIDs := make(map[int]bool, len(sources))
	for i, sst := range sources {
		entries, err := sst.Iterator()
		if err != nil {
			return fmt.Errorf("lsm: read sstable for compaction: %w", err)
		}
		runs[i] = entries
		removedIDs[sst.FileID] = true
	}

	dropTombstones := src+1 == len(t.levels)-1
	merged := mergeRuns(runs, dropTombstones)

	newTables, err := t.writeCompactedTables(src+1, merged)
	if err != nil {
		return err
	}

	dstLevel.mu.Lock()
	for _, nt := range newTables {
		dstLevel.tables = append(dstLevel.tables, nt)
	}
	dstLevel.mu.Unlock()

	srcLevel.RemoveAll(removedIDs)
	for _, sst := range sources {
		if err := sst.Delete(); err != nil {
			t.logger.Warn("failed to remove compacted sstable files", logging.FileID(sst.FileID), logging.Error(err))
		}
	}

	t.statsMu.Lock()
	t.compactCnt++
	t.statsMu.Unlock()
	if t.metrics != nil {
		t.metrics.RecordCompaction()
	}

	t.logger.Info("compacted level",
		logging.LevelNum(src), logging.Count(len(sources)), logging.Int("output_tables", len(newTables)))

	if dstLevel.NeedsCompaction() {
		t.triggerCompaction(src + 1)
	}
	return nil
}

// mergeRuns performs an (n-way) merge of already key-sorted runs. Runs
// earlier in the slice are older; when two runs disagree on a key, the
// entry from the later run wins.
func mergeRuns(runs [][]DataPair, dropTombstones bool) []DataPair {
	idx := make([]int, len(runs))
	out := make([]DataPair, 0)

	for {
		bestRun := -1
		var bestKey int32
		for r, run := range runs {
			if idx[r] >= len(run) {
				continue
			}
			k := run[idx[r]].Key
			if bestRun == -1 || k < bestKey || (k == bestKey && r > bestRun) {
				bestRun = r
				bestKey = k
			}
		}
		if bestRun == -1 {
			break
		}

		winner := runs[bestRun][idx[bestRun]]
		for r, run := range runs {
			if idx[r] < len(run) && run[idx[r]].Key == bestKey {
				idx[r]++
			}
		}

		if !(dropTombstones && winner.Deleted) {
			out = append(out, winner)
		}
	}
	return out
}

// writeCompactedTables splits merged into MaxTableSize-sized chunks and
// seals each as a new SSTable at levelNum (§4.5.7 output sealing rule).
func (t *LSMTree) writeCompactedTables(levelNum int, merged []DataPair) ([]*SSTable, error) {
	if len(merged) == 0 {
		return nil, nil
	}

	var out []*SSTable
	for start := 0; start < len(merged); start += MaxTableSize {
		end := start + MaxTableSize
		if end > len(merged) {
			end = len(merged)
		}
		chunk := merged[start:end]

		fileID := int(t.nextFileID.Add(1) - 1)
		sst, err := NewSSTableFromData(chunk, levelNum, fileID,
			dataPath(t.opts.DBPath, levelNum, fileID), bloomPath(t.opts.DBPath, levelNum, fileID), t.blockCache)
		if err != nil {
			return nil, fmt.Errorf("lsm: write compacted sstable: %w", err)
		}
		out = append(out, sst)
	}
	return out, nil
}
