package lsm

import "testing"

func TestBuffer_PutAndGet(t *testing.T) {
	b := NewBuffer(10)

	b.Put(DataPair{Key: 1, Value: 100})
	d, ok := b.Get(1)
	if !ok {
		t.Fatal("expected key 1 to be present")
	}
	if d.Value != 100 {
		t.Errorf("expected value 100, got %d", d.Value)
	}
}

func TestBuffer_PutOverwritesEarlierWrite(t *testing.T) {
	b := NewBuffer(10)

	b.Put(DataPair{Key: 1, Value: 100})
	b.Put(DataPair{Key: 1, Value: 200})

	d, ok := b.Get(1)
	if !ok || d.Value != 200 {
		t.Errorf("expected latest write (200) to win, got %+v ok=%v", d, ok)
	}
}

func TestBuffer_TombstoneShadowsValue(t *testing.T) {
	b := NewBuffer(10)

	b.Put(DataPair{Key: 1, Value: 100})
	b.Put(Tombstone(1))

	d, ok := b.Get(1)
	if !ok {
		t.Fatal("expected tombstone entry to still be present")
	}
	if !d.Deleted {
		t.Error("expected entry to be marked deleted")
	}
}

func TestBuffer_IsFull(t *testing.T) {
	b := NewBuffer(2)

	if b.IsFull() {
		t.Fatal("empty buffer should not be full")
	}
	b.Put(DataPair{Key: 1, Value: 1})
	if b.IsFull() {
		t.Fatal("buffer with 1/2 entries should not be full")
	}
	b.Put(DataPair{Key: 2, Value: 2})
	if !b.IsFull() {
		t.Fatal("buffer with 2/2 entries should be full")
	}
}

func TestBuffer_DrainReturnsSortedAndEmpties(t *testing.T) {
	b := NewBuffer(10)
	b.Put(DataPair{Key: 3, Value: 30})
	b.Put(DataPair{Key: 1, Value: 10})
	b.Put(DataPair{Key: 2, Value: 20})

	drained := b.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(drained))
	}
	for i := 1; i < len(drained); i++ {
		if drained[i-1].Key >= drained[i].Key {
			t.Fatalf("drained entries not sorted ascending: %+v", drained)
		}
	}

	if b.Size() != 0 {
		t.Errorf("expected buffer to be empty after drain, got size %d", b.Size())
	}
}

func TestBuffer_SnapshotFiltersRangeAndSorts(t *testing.T) {
	b := NewBuffer(10)
	b.Put(DataPair{Key: 5, Value: 50})
	b.Put(DataPair{Key: 15, Value: 150})
	b.Put(DataPair{Key: 25, Value: 250})

	got := b.Snapshot(10, 20)
	if len(got) != 1 || got[0].Key != 15 {
		t.Errorf("expected only key 15 in [10, 20), got %+v", got)
	}
}

func TestBuffer_SnapshotDoesNotClear(t *testing.T) {
	b := NewBuffer(10)
	b.Put(DataPair{Key: 1, Value: 1})

	_ = b.Snapshot(0, 10)

	if b.Size() != 1 {
		t.Errorf("expected Snapshot to leave buffer intact, size=%d", b.Size())
	}
}

func TestBuffer_AllIncludesTombstones(t *testing.T) {
	b := NewBuffer(10)
	b.Put(DataPair{Key: 1, Value: 1})
	b.Put(Tombstone(2))

	all := b.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
}
