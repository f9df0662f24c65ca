package lsm

// DataPair is the fundamental record stored in the tree: a fixed-width
// key/value pair, or a tombstone when Deleted is set. Ordering is by Key
// ascending; equality for merge/dedup purposes compares keys only.
type DataPair struct {
	Key     int32
	Value   int32
	Deleted bool
}

// dataPairSize is the on-disk footprint of one record: key(4) + value(4) + deleted(1).
const dataPairSize = 9

// Less reports whether d sorts before other by key.
func (d DataPair) Less(other DataPair) bool {
	return d.Key < other.Key
}

// Tombstone builds a delete marker for key.
func Tombstone(key int32) DataPair {
	return DataPair{Key: key, Deleted: true}
}
