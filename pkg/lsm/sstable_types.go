package lsm

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/exp/mmap"
)

// SSTable file format (§4.2 of SPEC_FULL.md):
//
//	[Header: magic(4) u32 | version(4) u32 | entryCount(8) i64 | minKey(4) i32 | maxKey(4) i32]
//	[Records: entryCount x (key i32 | value i32 | deleted u8)], ascending by key
//
// The Bloom filter lives in a separate sidecar file (bloomPath) in the
// format of BloomFilter.WriteTo. Fixed-width records let table_data be
// addressed at a constant offset per entry, which is what makes
// golang.org/x/exp/mmap-backed lazy loading (mode 2 of §4.2) genuinely
// lazy: opening a table costs one header read plus one small read per
// fence block, not a scan of the whole data file.
const (
	sstableMagic   uint32 = 0x4c534d31 // "LSM1"
	sstableVersion uint32 = 1
	headerSize            = 4 + 4 + 8 + 4 + 4

	// BlockSize is B from spec §3: fence pointers partition table_data
	// into blocks of this many entries (the last block may be partial).
	BlockSize = 170

	// DefaultBloomFPRate is the target false-positive rate every SSTable's
	// Bloom filter is sized for; NewSSTableFromData takes no per-table
	// override.
	DefaultBloomFPRate = 0.01

	// defaultBlockCacheBytes bounds the total raw-block footprint a
	// tree's shared BlockCache keeps in memory across every lazily
	// loaded SSTable, sized for roughly 4096 full-size blocks
	// (BlockSize entries at dataPairSize bytes apiece).
	defaultBlockCacheBytes = 4096 * BlockSize * dataPairSize
)

// FencePointer is a sparse index entry: the first key of a block plus the
// [Start, Start+Len) slice of table_data that block covers.
type FencePointer struct {
	MinKey int32
	Start  int
	Len    int
}

// SSTable is an immutable, on-disk sorted run. It is safe to share a
// pointer to one *SSTable across goroutines: mutation only ever happens
// once, at construction, and the lazy-load path is guarded by mu.
//
// Two constructions produce two read strategies. NewSSTableFromData
// (mode 1, §4.2) already holds every entry in memory (it just wrote
// them) — loaded is true and entries is used directly. OpenSSTable
// (mode 2) holds only the header until fences are built, then serves
// reads block-by-block off the memory-mapped file through cache,
// falling back to a raw ReadAt on a miss.
type SSTable struct {
	LevelNum  int
	FileID    int
	DataPath  string
	BloomPath string

	MinKey int32
	MaxKey int32
	Size   int

	bloom *BloomFilter
	cache *BlockCache

	mu          sync.Mutex
	loaded      bool
	loadErr     error
	entries     []DataPair
	fences      []FencePointer
	fencesReady bool
	reader      *mmap.ReaderAt
}

// Empty reports whether this table has no entries, in which case
// key_in_range must always be false (spec: min_key=+inf, max_key=-inf).
func (s *SSTable) Empty() bool {
	return s.Size == 0
}

// KeyInRange reports whether key could possibly be present, per its
// [MinKey, MaxKey] bounds. An empty table is never in range.
func (s *SSTable) KeyInRange(key int32) bool {
	if s.Empty() {
		return false
	}
	return key >= s.MinKey && key <= s.MaxKey
}

// MightContain consults the Bloom filter only; a false result is a
// definite absence, a true result requires confirmation via Get.
func (s *SSTable) MightContain(key int32) bool {
	if s.bloom == nil {
		return true
	}
	return s.bloom.MayContain(key)
}

// BloomFalsePositiveEstimate returns the filter's estimated false-positive
// rate at its current fill, forcing the filter to be built first if this
// table was opened lazily and its sidecar file was missing.
func (s *SSTable) BloomFalsePositiveEstimate() float64 {
	if err := s.ensureFences(); err != nil {
		return 0
	}
	s.mu.Lock()
	bloom := s.bloom
	s.mu.Unlock()
	if bloom == nil {
		return 0
	}
	return bloom.EstimateFalsePositiveRate(s.Size)
}

// Close releases the memory-mapped file handle, if one was opened. Safe
// to call multiple times and on a table that was never lazily loaded.
func (s *SSTable) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		err := s.reader.Close()
		s.reader = nil
		return err
	}
	return nil
}

// ensureFences builds the sparse index for a lazily opened table by
// reading only the first record of every block — not the whole file —
// and, when the sidecar Bloom file was missing, rebuilds the filter by
// pulling each block through the normal cache path once.
func (s *SSTable) ensureFences() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fencesReady {
		return s.loadErr
	}
	if s.loaded {
		s.fences = buildFences(s.entries)
		s.fencesReady = true
		return nil
	}
	if s.Size == 0 {
		s.fencesReady = true
		return nil
	}

	numBlocks := (s.Size + BlockSize - 1) / BlockSize
	fences := make([]FencePointer, 0, numBlocks)
	var keyBuf [4]byte
	for i := 0; i < numBlocks; i++ {
		start := i * BlockSize
		end := start + BlockSize
		if end > s.Size {
			end = s.Size
		}
		off := int64(headerSize + start*dataPairSize)
		if _, err := s.reader.ReadAt(keyBuf[:], off); err != nil {
			s.loadErr = fmt.Errorf("read fence key at block %d of %s: %w", i, s.DataPath, err)
			s.fencesReady = true
			return s.loadErr
		}
		fences = append(fences, FencePointer{
			MinKey: int32(binary.LittleEndian.Uint32(keyBuf[:])),
			Start:  start,
			Len:    end - start,
		})
	}
	s.fences = fences

	if s.bloom == nil {
		bloom := NewBloomFilter(s.Size, DefaultBloomFPRate)
		for _, f := range fences {
			block, err := s.getBlock(f)
			if err != nil {
				s.loadErr = err
				s.fencesReady = true
				return s.loadErr
			}
			for _, d := range block {
				bloom.Add(d.Key)
			}
		}
		s.bloom = bloom
		_ = writeBloomFile(s.BloomPath, bloom)
	}

	s.fencesReady = true
	return nil
}

// getBlock returns the decoded entries for fence f, consulting the shared
// BlockCache before touching the memory-mapped file. Cache entries hold
// raw bytes rather than decoded pairs, so a hit still costs one decode
// pass but saves the ReadAt.
func (s *SSTable) getBlock(f FencePointer) ([]DataPair, error) {
	key := s.blockCacheKey(f.Start)
	if s.cache != nil {
		if raw, ok := s.cache.Get(key); ok {
			return decodeBlock(raw, f.Len), nil
		}
	}

	buf := make([]byte, f.Len*dataPairSize)
	if _, err := s.reader.ReadAt(buf, int64(headerSize+f.Start*dataPairSize)); err != nil {
		return nil, fmt.Errorf("read block at %d of %s: %w", f.Start, s.DataPath, err)
	}
	if s.cache != nil {
		s.cache.Put(key, buf)
	}
	return decodeBlock(buf, f.Len), nil
}

func (s *SSTable) blockCacheKey(blockStart int) string {
	return fmt.Sprintf("%d:%d:%d", s.LevelNum, s.FileID, blockStart)
}

func decodeBlock(buf []byte, n int) []DataPair {
	out := make([]DataPair, n)
	for i := 0; i < n; i++ {
		off := i * dataPairSize
		out[i] = DataPair{
			Key:     int32(binary.LittleEndian.Uint32(buf[off : off+4])),
			Value:   int32(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
			Deleted: buf[off+8] != 0,
		}
	}
	return out
}
