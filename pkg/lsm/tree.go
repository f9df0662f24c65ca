package lsm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/nrigby/lsmkv/pkg/logging"
)

// Put inserts or overwrites key's value (§4.5.2). Writes always land in the
// in-memory buffer; a full buffer triggers an asynchronous flush.
func (t *LSMTree) Put(key, value int32) {
	t.buffer.Put(DataPair{Key: key, Value: value})
	if t.buffer.IsFull() {
		t.triggerFlush()
	}
}

// Delete records a tombstone for key (§4.5.4). Tombstones ride through the
// buffer and every level exactly like ordinary pairs until they reach the
// last level, where compaction finally drops them.
func (t *LSMTree) Delete(key int32) {
	t.buffer.Put(Tombstone(key))
	if t.buffer.IsFull() {
		t.triggerFlush()
	}
}

// Get returns key's current value, checking the buffer first and then each
// level from newest to oldest data (§4.5.3). A tombstone anywhere in that
// search order is a definitive "not found" — it shadows anything beneath it.
func (t *LSMTree) Get(key int32) (int32, bool) {
	if d, ok := t.buffer.Get(key); ok {
		if d.Deleted {
			return 0, false
		}
		return d.Value, true
	}

	for _, level := range t.levels {
		tables := level.GetSSTables()
		for i := len(tables) - 1; i >= 0; i-- {
			d, ok := tables[i].Get(key)
			if !ok {
				continue
			}
			if d.Deleted {
				return 0, false
			}
			return d.Value, true
		}
	}
	return 0, false
}

// BulkLoad upserts every (key, value) pair read from r as a live record
// (§6). The wire format is a flat concatenation of native-endian int32
// pairs; the caller (pkg/bulkload) is responsible for resolving a
// bulk_load path — local or s3:// — to this reader.
func (t *LSMTree) BulkLoad(r io.Reader) (int, error) {
	var pair [8]byte
	count := 0
	for {
		if _, err := io.ReadFull(r, pair[:]); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return count, fmt.Errorf("lsm: bulk load: trailing partial pair after %d entries", count)
			}
			return count, fmt.Errorf("lsm: bulk load: %w", err)
		}
		key := int32(binary.NativeEndian.Uint32(pair[0:4]))
		value := int32(binary.NativeEndian.Uint32(pair[4:8]))
		t.Put(key, value)
		count++
	}
	return count, nil
}

// Range returns every live key/value pair with lo <= key < hi, merging the
// buffer and every SSTable and keeping only the newest version of each key
// (§4.5.5). Tombstones suppress older values but are never themselves
// returned.
func (t *LSMTree) Range(lo, hi int32) []KV {
	latest := make(map[int32]DataPair)

	applyOlder := func(entries []DataPair) {
		for _, d := range entries {
			if _, seen := latest[d.Key]; seen {
				continue
			}
			latest[d.Key] = d
		}
	}

	// Buffer holds the newest data, so it always wins ties; work backward
	// from there through levels so first-write-wins per applyOlder.
	applyOlder(t.buffer.Snapshot(lo, hi))

	for _, level := range t.levels {
		tables := level.GetSSTables()
		for i := len(tables) - 1; i >= 0; i-- {
			sst := tables[i]
			if sst.MaxKey < lo || sst.MinKey >= hi {
				continue
			}
			entries, err := sst.Scan(lo, hi)
			if err != nil {
				t.logger.Warn("range scan failed on sstable", logging.FileID(sst.FileID), logging.Error(err))
				continue
			}
			applyOlder(entries)
		}
	}

	out := make([]KV, 0, len(latest))
	for _, d := range latest {
		if d.Deleted {
			continue
		}
		out = append(out, KV{Key: d.Key, Value: d.Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// KV is a materialized key/value pair returned from Range.
type KV struct {
	Key   int32
	Value int32
}

// Close stops the background workers and flushes any buffered writes so
// nothing is lost (§4.5.8 shutdown semantics).
func (t *LSMTree) Close() error {
	t.shutdownMu.Lock()
	if t.shutdown {
		t.shutdownMu.Unlock()
		return nil
	}
	t.shutdown = true
	t.shutdownMu.Unlock()

	if t.buffer.Size() > 0 {
		if err := t.flushBuffer(); err != nil {
			return fmt.Errorf("lsm: final flush on close: %w", err)
		}
	}

	t.flushMu.Lock()
	t.flushCond.Broadcast()
	t.flushMu.Unlock()

	t.compactMu.Lock()
	t.compactCond.Broadcast()
	t.compactMu.Unlock()

	t.wg.Wait()

	for _, level := range t.levels {
		for _, sst := range level.GetSSTables() {
			sst.Close()
		}
	}
	t.logger.Info("lsm tree closed")
	return nil
}

// Stats reports a point-in-time snapshot of the tree. LogicalPairs counts
// distinct keys whose newest version is live (as StatsString does);
// PerLevelCounts counts stored entries, tombstones and superseded versions
// included. The Bloom-filter estimate is reported separately by
// BloomFalsePositiveEstimate.
func (t *LSMTree) Stats() Stats {
	t.statsMu.Lock()
	flushCount := t.flushCount
	compactCount := t.compactCnt
	t.statsMu.Unlock()

	perLevel := make([]int, len(t.levels))
	for i, level := range t.levels {
		perLevel[i] = level.TotalEntries()
	}
	// Range is half-open, so the largest key is checked on its own.
	logical := len(t.Range(math.MinInt32, math.MaxInt32))
	if _, ok := t.Get(math.MaxInt32); ok {
		logical++
	}

	return Stats{
		LogicalPairs:    logical,
		BufferCount:     t.buffer.Size(),
		PerLevelCounts:  perLevel,
		FlushCount:      flushCount,
		CompactionCount: compactCount,
	}
}

// BloomFalsePositiveEstimate returns the size-weighted average estimated
// false-positive rate across every resident SSTable's Bloom filter, or 0
// if the tree holds no tables yet.
func (t *LSMTree) BloomFalsePositiveEstimate() float64 {
	var weighted float64
	var totalSize int
	for _, level := range t.levels {
		for _, sst := range level.GetSSTables() {
			if sst.Size == 0 {
				continue
			}
			weighted += sst.BloomFalsePositiveEstimate() * float64(sst.Size)
			totalSize += sst.Size
		}
	}
	if totalSize == 0 {
		return 0
	}
	return weighted / float64(totalSize)
}
