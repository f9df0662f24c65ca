package lsm

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/exp/mmap"
)

// OpenSSTable opens an existing SSTable file pair for lazy, block-at-a-time
// reads (construction mode 2 of §4.2). It eagerly reads the fixed-size
// header (needed for KeyInRange routing at every level scan) and the
// Bloom filter; fence pointers and table_data are left unmaterialized and
// are filled in block-by-block by ensureFences/getBlock as queries touch
// them, sharing cache across every table opened against the same tree.
//
// A missing Bloom file is tolerated: bloom stays nil here and is rebuilt
// from data the first time ensureFences runs.
func OpenSSTable(levelNum, fileID int, dataPath, bloomPath string, cache *BlockCache) (*SSTable, error) {
	reader, err := mmap.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("open sstable data %s: %w", dataPath, err)
	}

	var header [headerSize]byte
	if _, err := reader.ReadAt(header[:], 0); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("read sstable header %s: %w", dataPath, err)
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != sstableMagic {
		_ = reader.Close()
		return nil, fmt.Errorf("sstable %s: bad magic %x", dataPath, magic)
	}

	size := int(binary.LittleEndian.Uint64(header[8:16]))
	minKey := int32(binary.LittleEndian.Uint32(header[16:20]))
	maxKey := int32(binary.LittleEndian.Uint32(header[20:24]))

	sst := &SSTable{
		LevelNum:  levelNum,
		FileID:    fileID,
		DataPath:  dataPath,
		BloomPath: bloomPath,
		MinKey:    minKey,
		MaxKey:    maxKey,
		Size:      size,
		reader:    reader,
		cache:     cache,
	}

	if bf, err := readBloomFile(bloomPath); err == nil {
		sst.bloom = bf
	}
	// bloom == nil is fine here: MightContain treats it as "maybe" and
	// ensureFences rebuilds it once the blocks are decoded.

	return sst, nil
}

func readBloomFile(path string) (*BloomFilter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBloomFilter(f)
}
