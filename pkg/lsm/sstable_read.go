package lsm

import "sort"

// fenceIndex returns the index of the unique block whose MinKey <= key <
// next block's MinKey. ok is false if key is below the first block's
// MinKey — definitely absent, no read needed. fences must already be
// built via ensureFences.
func (s *SSTable) fenceIndex(key int32) (idx int, ok bool) {
	if len(s.fences) == 0 || key < s.fences[0].MinKey {
		return 0, false
	}
	idx = sort.Search(len(s.fences), func(i int) bool {
		return s.fences[i].MinKey > key
	}) - 1
	return idx, true
}

// blockAt returns the decoded entries covered by fences[idx]: a direct
// slice for an in-memory table, or a cache-backed read for a lazily
// opened one.
func (s *SSTable) blockAt(idx int) ([]DataPair, error) {
	f := s.fences[idx]
	if s.loaded {
		return s.entries[f.Start : f.Start+f.Len], nil
	}
	return s.getBlock(f)
}

// Get returns the raw DataPair for key — including a tombstone, which the
// caller must interpret — or ok=false if key is not present in this
// table. It returns early on range/Bloom rejection without touching disk.
func (s *SSTable) Get(key int32) (DataPair, bool) {
	if !s.KeyInRange(key) {
		return DataPair{}, false
	}
	if !s.MightContain(key) {
		return DataPair{}, false
	}
	if err := s.ensureFences(); err != nil {
		return DataPair{}, false
	}

	idx, ok := s.fenceIndex(key)
	if !ok {
		return DataPair{}, false
	}
	block, err := s.blockAt(idx)
	if err != nil {
		return DataPair{}, false
	}

	i := sort.Search(len(block), func(i int) bool { return block[i].Key >= key })
	if i < len(block) && block[i].Key == key {
		return block[i], true
	}
	return DataPair{}, false
}

// Scan returns every entry (including tombstones) with lo <= Key < hi,
// reading only the blocks that can possibly overlap the range.
func (s *SSTable) Scan(lo, hi int32) ([]DataPair, error) {
	if s.Empty() || hi <= s.MinKey || lo > s.MaxKey {
		return nil, nil
	}
	if err := s.ensureFences(); err != nil {
		return nil, err
	}

	startIdx, ok := s.fenceIndex(lo)
	if !ok {
		startIdx = 0
	}

	out := make([]DataPair, 0)
	for i := startIdx; i < len(s.fences); i++ {
		if s.fences[i].MinKey >= hi {
			break
		}
		block, err := s.blockAt(i)
		if err != nil {
			return nil, err
		}
		for _, d := range block {
			if d.Key >= lo && d.Key < hi {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

// Iterator returns every entry in this table in ascending key order,
// including tombstones. Used by the compactor's k-way merge, which needs
// the whole table regardless of how it was opened.
func (s *SSTable) Iterator() ([]DataPair, error) {
	if err := s.ensureFences(); err != nil {
		return nil, err
	}
	if s.loaded {
		return s.entries, nil
	}

	out := make([]DataPair, 0, s.Size)
	for i := range s.fences {
		block, err := s.blockAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}

// Delete removes this table's on-disk files. Callers must have already
// removed the in-memory handle from its Level so no racing reader can be
// using it (§9 ownership notes).
func (s *SSTable) Delete() error {
	_ = s.Close()
	if err := removeIfExists(s.DataPath); err != nil {
		return err
	}
	return removeIfExists(s.BloomPath)
}
