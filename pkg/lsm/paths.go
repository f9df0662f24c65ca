package lsm

import (
	"fmt"
	"os"
	"path/filepath"
)

// levelDir returns dbPath/level_i.
func levelDir(dbPath string, level int) string {
	return filepath.Join(dbPath, fmt.Sprintf("level_%d", level))
}

// bloomDir returns dbPath/level_i/bloom_filters.
func bloomDir(dbPath string, level int) string {
	return filepath.Join(levelDir(dbPath, level), "bloom_filters")
}

// sstableFileName renders a zero-padded, strictly-increasing file id per §6.
func sstableFileName(fileID int) string {
	return fmt.Sprintf("%06d.sst", fileID)
}

// dataPath returns the on-disk path for a data file at (level, fileID).
func dataPath(dbPath string, level, fileID int) string {
	return filepath.Join(levelDir(dbPath, level), sstableFileName(fileID))
}

// bloomPath returns the on-disk path for the sidecar Bloom file.
func bloomPath(dbPath string, level, fileID int) string {
	return filepath.Join(bloomDir(dbPath, level), sstableFileName(fileID)+".bf")
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
