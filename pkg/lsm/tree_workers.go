package lsm

import (
	"github.com/nrigby/lsmkv/pkg/logging"
)

// triggerFlush wakes the flush worker, coalescing repeat signals raised
// while a flush is already pending or running.
func (t *LSMTree) triggerFlush() {
	t.flushMu.Lock()
	t.flushPending = true
	t.flushCond.Signal()
	t.flushMu.Unlock()
}

// flushWorker drains the buffer into a new L0 SSTable whenever it fills,
// per §4.5.6. It runs for the lifetime of the tree, waking on triggerFlush
// and exiting once Close has set shutdown and broadcast.
func (t *LSMTree) flushWorker() {
	defer t.wg.Done()
	for {
		t.flushMu.Lock()
		for !t.flushPending && !t.isShutdown() {
			t.flushCond.Wait()
		}
		if t.isShutdown() && !t.flushPending {
			t.flushMu.Unlock()
			return
		}
		t.flushPending = false
		t.flushMu.Unlock()

		if err := t.flushBuffer(); err != nil {
			t.logger.Error("flush failed", logging.Error(err))
		}

		if t.isShutdown() {
			return
		}
	}
}

// flushBuffer drains the current buffer contents (if any) into new L0
// SSTables of at most BufferCapacity entries each, and enqueues L0 for
// compaction if it has grown too large. Put does not wait for a pending
// flush, so a drain can hold more than BufferCapacity keys.
func (t *LSMTree) flushBuffer() error {
	entries := t.buffer.Drain()
	if len(entries) == 0 {
		return nil
	}

	l0 := t.levels[0]
	for len(entries) > 0 {
		run := entries[:min(len(entries), t.opts.BufferCapacity)]
		entries = entries[len(run):]

		fileID := int(t.nextFileID.Add(1) - 1)
		sst, err := NewSSTableFromData(run, 0, fileID, dataPath(t.opts.DBPath, 0, fileID), bloomPath(t.opts.DBPath, 0, fileID), t.blockCache)
		if err != nil {
			return err
		}
		l0.Add(sst)

		t.statsMu.Lock()
		t.flushCount++
		t.statsMu.Unlock()

		t.logger.Info("flushed buffer to L0", logging.FileID(fileID), logging.Count(len(run)))
		if t.metrics != nil {
			t.metrics.RecordFlush()
		}
	}

	if l0.NeedsCompaction() {
		t.triggerCompaction(0)
	}
	return nil
}

// triggerCompaction enqueues levelNum for compaction and wakes the
// compaction worker, deduplicating repeat signals for a level already
// queued (§4.5.7).
func (t *LSMTree) triggerCompaction(levelNum int) {
	t.compactMu.Lock()
	t.compactQueue.enqueue(levelNum)
	t.compactCond.Signal()
	t.compactMu.Unlock()
}

// compactionWorker pops the lowest queued level and compacts it into the
// next level, cascading further triggers as needed, until shutdown.
func (t *LSMTree) compactionWorker() {
	defer t.wg.Done()
	for {
		t.compactMu.Lock()
		for t.compactQueue.Len() == 0 && !t.isShutdown() {
			t.compactCond.Wait()
		}
		if t.isShutdown() && t.compactQueue.Len() == 0 {
			t.compactMu.Unlock()
			return
		}
		levelNum, ok := t.compactQueue.dequeue()
		t.compactMu.Unlock()
		if !ok {
			continue
		}

		if err := t.compactLevel(levelNum); err != nil {
			t.logger.Error("compaction failed", logging.LevelNum(levelNum), logging.Error(err))
		}
	}
}

func (t *LSMTree) isShutdown() bool {
	t.shutdownMu.Lock()
	defer t.shutdownMu.Unlock()
	return t.shutdown
}
