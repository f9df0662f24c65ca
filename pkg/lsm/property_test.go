package lsm

import (
	"sort"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nrigby/lsmkv/pkg/logging"
)

func newPropertyTestTree(t *testing.T) *LSMTree {
	opts := smallOptions(t.TempDir())
	opts.Logger = logging.NopLogger{}
	tree, err := NewLSMTree(opts)
	if err != nil {
		t.Skipf("failed to open tree: %v", err)
	}
	return tree
}

// modelOp is a single put or delete replayed against both the tree and a
// plain-Go reference map, so properties can compare against ground truth.
type modelOp struct {
	key    int32
	value  int32
	delete bool
}

func opGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Int32Range(0, 200),
		gen.Int32Range(-1000, 1000),
		gen.Bool(),
	).Map(func(vals []interface{}) modelOp {
		return modelOp{key: vals[0].(int32), value: vals[1].(int32), delete: vals[2].(bool)}
	})
}

func applyModel(ops []modelOp) map[int32]int32 {
	model := make(map[int32]int32)
	for _, op := range ops {
		if op.delete {
			delete(model, op.key)
		} else {
			model[op.key] = op.value
		}
	}
	return model
}

func TestLSMTreeProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	// P1: get(k) matches the most recent un-shadowed put.
	properties.Property("P1 uniqueness: get matches the last write", prop.ForAll(
		func(ops []modelOp) bool {
			tree := newPropertyTestTree(t)
			defer tree.Close()

			for _, op := range ops {
				if op.delete {
					tree.Delete(op.key)
				} else {
					tree.Put(op.key, op.value)
				}
			}

			model := applyModel(ops)
			for key, wantValue := range model {
				got, ok := tree.Get(key)
				if !ok || got != wantValue {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(50, opGen()),
	))

	// P2: put then delete masks the value until a later put.
	properties.Property("P2 tombstone masking", prop.ForAll(
		func(key, value int32) bool {
			tree := newPropertyTestTree(t)
			defer tree.Close()

			tree.Put(key, value)
			tree.Delete(key)
			if _, ok := tree.Get(key); ok {
				return false
			}

			tree.Put(key, value+1)
			got, ok := tree.Get(key)
			return ok && got == value+1
		},
		gen.Int32Range(0, 200),
		gen.Int32Range(-1000, 1000),
	))

	// P3: range(lo, hi) matches get() over [lo, hi) exactly, sorted, no dups.
	properties.Property("P3 range coverage", prop.ForAll(
		func(ops []modelOp, lo, span int32) bool {
			tree := newPropertyTestTree(t)
			defer tree.Close()

			for _, op := range ops {
				if op.delete {
					tree.Delete(op.key)
				} else {
					tree.Put(op.key, op.value)
				}
			}

			hi := lo + span
			model := applyModel(ops)

			want := make([]KV, 0)
			for k, v := range model {
				if k >= lo && k < hi {
					want = append(want, KV{Key: k, Value: v})
				}
			}
			sort.Slice(want, func(i, j int) bool { return want[i].Key < want[j].Key })

			got := tree.Range(lo, hi)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(50, opGen()),
		gen.Int32Range(0, 100),
		gen.Int32Range(1, 100),
	))

	// P4: forcing a flush (closing the buffer's contents into L0) never
	// changes what Get() returns for any key.
	properties.Property("P4 flush preserves visibility", prop.ForAll(
		func(ops []modelOp) bool {
			tree := newPropertyTestTree(t)
			defer tree.Close()

			for _, op := range ops {
				if op.delete {
					tree.Delete(op.key)
				} else {
					tree.Put(op.key, op.value)
				}
			}

			before := applyModel(ops)

			if err := tree.flushBuffer(); err != nil {
				return false
			}

			for key, wantValue := range before {
				got, ok := tree.Get(key)
				if !ok || got != wantValue {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(40, opGen()),
	))

	// P5: compacting a level never changes what Get() returns for any key.
	properties.Property("P5 compaction preserves visibility", prop.ForAll(
		func(ops []modelOp) bool {
			tree := newPropertyTestTree(t)
			defer tree.Close()

			for _, op := range ops {
				if op.delete {
					tree.Delete(op.key)
				} else {
					tree.Put(op.key, op.value)
				}
			}
			if err := tree.flushBuffer(); err != nil {
				return false
			}
			// Flush twice more so L0 has multiple tables to compact.
			for _, op := range ops {
				if op.delete {
					tree.Delete(op.key)
				} else {
					tree.Put(op.key, op.value)
				}
			}
			if err := tree.flushBuffer(); err != nil {
				return false
			}

			before := applyModel(append(append([]modelOp{}, ops...), ops...))
			if err := tree.compactLevel(0); err != nil {
				return false
			}

			for key, wantValue := range before {
				got, ok := tree.Get(key)
				if !ok || got != wantValue {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(30, opGen()),
	))

	// P6: every key added to a Bloom filter reports MayContain == true.
	properties.Property("P6 bloom soundness", prop.ForAll(
		func(keys []int32) bool {
			bf := NewBloomFilter(len(keys)+1, 0.01)
			for _, k := range keys {
				bf.Add(k)
			}
			for _, k := range keys {
				if !bf.MayContain(k) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int32Range(-10000, 10000)),
	))

	// P7: fence pointers are monotonic in MinKey and partition table_data.
	properties.Property("P7 fence monotonicity", prop.ForAll(
		func(n int) bool {
			entries := sortedEntries(n)
			fences := buildFences(entries)

			for i := 1; i < len(fences); i++ {
				if fences[i-1].MinKey > fences[i].MinKey {
					return false
				}
			}
			total := 0
			for _, f := range fences {
				if f.Start != total {
					return false
				}
				total += f.Len
			}
			return total == len(entries)
		},
		gen.IntRange(0, 2000),
	))

	// P8: closing and reopening the tree yields identical get results.
	properties.Property("P8 persistence round trip", prop.ForAll(
		func(ops []modelOp) bool {
			dir := t.TempDir()
			opts := smallOptions(dir)
			opts.Logger = logging.NopLogger{}

			tree, err := NewLSMTree(opts)
			if err != nil {
				return true
			}
			for _, op := range ops {
				if op.delete {
					tree.Delete(op.key)
				} else {
					tree.Put(op.key, op.value)
				}
			}
			model := applyModel(ops)
			if err := tree.Close(); err != nil {
				return false
			}

			reopened, err := NewLSMTree(opts)
			if err != nil {
				return false
			}
			defer reopened.Close()

			for key, wantValue := range model {
				got, ok := reopened.Get(key)
				if !ok || got != wantValue {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(30, opGen()),
	))

	properties.TestingRun(t)
}

// TestLSMTreeConcurrentReadersNeverSeeUncommittedOrStaleDeletes exercises
// P9: with concurrent writers and readers, a reader never observes a value
// that was never put, and once a delete's Put/Delete call has returned, no
// later Get for that key observes the pre-delete value again.
func TestLSMTreeConcurrentReadersNeverSeeUncommittedOrStaleDeletes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency stress test in short mode")
	}

	tree := newPropertyTestTree(t)
	defer tree.Close()

	const writers = 4
	const keysPerWriter = 50

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(base int32) {
			defer wg.Done()
			for i := int32(0); i < keysPerWriter; i++ {
				key := base + i
				tree.Put(key, key*7)
			}
		}(int32(w * 1000))
	}

	stop := make(chan struct{})
	var readerWG sync.WaitGroup
	readerWG.Add(2)
	for r := 0; r < 2; r++ {
		go func() {
			defer readerWG.Done()
			for {
				select {
				case <-stop:
					return
				default:
					if v, ok := tree.Get(500); ok && v != 500*7 {
						t.Errorf("observed a value never put: key=500 value=%d", v)
					}
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readerWG.Wait()

	for w := 0; w < writers; w++ {
		for i := int32(0); i < keysPerWriter; i++ {
			key := int32(w*1000) + i
			v, ok := tree.Get(key)
			if !ok || v != key*7 {
				t.Errorf("Get(%d) = %d, %v, want %d, true", key, v, ok, key*7)
			}
		}
	}
}
