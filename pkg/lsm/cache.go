package lsm

import (
	"container/list"
	"sync"
)

// BlockCache is an LRU cache of raw SSTable block bytes, shared by every
// lazily opened table in a tree. Keys are "level:fileID:blockStart"
// (see SSTable.blockCacheKey); values are the undecoded bytes of one
// fence-pointer block, so a hit still costs one decode but saves the
// mmap ReadAt.
//
// Capacity is tracked in bytes rather than entry count: the last block
// of a table is usually shorter than BlockSize, so a fixed number of
// cached blocks does not bound memory the way a byte budget does.
type BlockCache struct {
	mu            sync.RWMutex
	capacityBytes int64
	curBytes      int64
	cache         map[string]*list.Element
	lru           *list.List
	recorder      MetricsRecorder

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key   string
	value []byte
}

// NewBlockCache creates a new LRU block cache holding up to capacityBytes
// of raw block data. recorder may be nil, in which case evictions are
// counted locally but not reported anywhere.
func NewBlockCache(capacityBytes int, recorder MetricsRecorder) *BlockCache {
	return &BlockCache{
		capacityBytes: int64(capacityBytes),
		cache:         make(map[string]*list.Element),
		lru:           list.New(),
		recorder:      recorder,
	}
}

// Get retrieves a value from the cache.
func (bc *BlockCache) Get(key string) ([]byte, bool) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if elem, ok := bc.cache[key]; ok {
		bc.lru.MoveToFront(elem)
		bc.hits++
		return elem.Value.(*cacheEntry).value, true
	}

	bc.misses++
	return nil, false
}

// Put adds a value to the cache, evicting least-recently-used blocks
// until the byte budget is satisfied. A single block larger than the
// whole budget is still cached; it is simply first in line for the next
// eviction.
func (bc *BlockCache) Put(key string, value []byte) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if elem, ok := bc.cache[key]; ok {
		entry := elem.Value.(*cacheEntry)
		bc.curBytes += int64(len(value)) - int64(len(entry.value))
		entry.value = value
		bc.lru.MoveToFront(elem)
		bc.evictLocked()
		return
	}

	entry := &cacheEntry{key: key, value: value}
	elem := bc.lru.PushFront(entry)
	bc.cache[key] = elem
	bc.curBytes += int64(len(value))

	bc.evictLocked()
}

// evictLocked removes least-recently-used entries until curBytes is back
// within budget, or only one entry remains.
func (bc *BlockCache) evictLocked() {
	for bc.curBytes > bc.capacityBytes && bc.lru.Len() > 1 {
		elem := bc.lru.Back()
		if elem == nil {
			return
		}
		entry := elem.Value.(*cacheEntry)
		bc.lru.Remove(elem)
		delete(bc.cache, entry.key)
		bc.curBytes -= int64(len(entry.value))
		bc.evictions++
		if bc.recorder != nil {
			bc.recorder.RecordCacheEviction()
		}
	}
}

// Clear removes all entries from the cache.
func (bc *BlockCache) Clear() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	bc.cache = make(map[string]*list.Element)
	bc.lru = list.New()
	bc.curBytes = 0
	bc.hits = 0
	bc.misses = 0
	bc.evictions = 0
}

// Stats returns cache statistics: hit/miss counts and the hit rate (0
// before any lookup). The byte footprint is reported by ByteSize.
func (bc *BlockCache) Stats() (hits, misses int64, hitRate float64) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	hits = bc.hits
	misses = bc.misses
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}

// Size returns the current number of cached blocks.
func (bc *BlockCache) Size() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.lru.Len()
}

// ByteSize returns the current total size in bytes of cached block data.
func (bc *BlockCache) ByteSize() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.curBytes
}

// Delete removes an entry from the cache.
func (bc *BlockCache) Delete(key string) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if elem, ok := bc.cache[key]; ok {
		entry := elem.Value.(*cacheEntry)
		bc.lru.Remove(elem)
		delete(bc.cache, key)
		bc.curBytes -= int64(len(entry.value))
	}
}
