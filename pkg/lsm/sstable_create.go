package lsm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// NewSSTableFromData builds an SSTable from a sorted, duplicate-free slice
// of entries (construction mode 1 of §4.2). It computes min/max/size,
// builds the Bloom filter over every key, builds fence pointers one every
// BlockSize entries (plus a final partial block), then writes both files.
// A write failure here is fatal for the caller: it must treat the
// flush/merge that produced entries as failed (§7).
func NewSSTableFromData(entries []DataPair, levelNum, fileID int, dataPath, bloomPath string, cache *BlockCache) (*SSTable, error) {
	if err := writeDataFile(dataPath, entries); err != nil {
		_ = os.Remove(dataPath)
		return nil, fmt.Errorf("write sstable data: %w", err)
	}

	bloom := NewBloomFilter(len(entries), DefaultBloomFPRate)
	for _, e := range entries {
		bloom.Add(e.Key)
	}
	if err := writeBloomFile(bloomPath, bloom); err != nil {
		_ = os.Remove(dataPath)
		_ = os.Remove(bloomPath)
		return nil, fmt.Errorf("write sstable bloom: %w", err)
	}

	sst := &SSTable{
		LevelNum:    levelNum,
		FileID:      fileID,
		DataPath:    dataPath,
		BloomPath:   bloomPath,
		Size:        len(entries),
		bloom:       bloom,
		cache:       cache,
		loaded:      true,
		entries:     entries,
		fences:      buildFences(entries),
		fencesReady: true,
	}
	if len(entries) > 0 {
		sst.MinKey = entries[0].Key
		sst.MaxKey = entries[len(entries)-1].Key
	} else {
		sst.MinKey = 1<<31 - 1
		sst.MaxKey = -1 << 31
	}
	return sst, nil
}

func writeDataFile(path string, entries []DataPair) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	var minKey, maxKey int32
	if len(entries) > 0 {
		minKey, maxKey = entries[0].Key, entries[len(entries)-1].Key
	} else {
		minKey, maxKey = 1<<31-1, -1<<31
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], sstableMagic)
	binary.LittleEndian.PutUint32(header[4:8], sstableVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(entries)))
	binary.LittleEndian.PutUint32(header[16:20], uint32(minKey))
	binary.LittleEndian.PutUint32(header[20:24], uint32(maxKey))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	var rec [dataPairSize]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(rec[0:4], uint32(e.Key))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(e.Value))
		if e.Deleted {
			rec[8] = 1
		} else {
			rec[8] = 0
		}
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func writeBloomFile(path string, bloom *BloomFilter) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := bloom.WriteTo(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// buildFences partitions entries into BlockSize-sized blocks, one fence
// pointer per block recording its first key and [start, start+len) range.
func buildFences(entries []DataPair) []FencePointer {
	if len(entries) == 0 {
		return nil
	}
	fences := make([]FencePointer, 0, len(entries)/BlockSize+1)
	for start := 0; start < len(entries); start += BlockSize {
		end := start + BlockSize
		if end > len(entries) {
			end = len(entries)
		}
		fences = append(fences, FencePointer{
			MinKey: entries[start].Key,
			Start:  start,
			Len:    end - start,
		})
	}
	return fences
}
