package lsm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nrigby/lsmkv/pkg/logging"
)

type statsEntry struct {
	pair  DataPair
	label string
}

// StatsString renders the stats() output §6 describes: a
// "Logical Pairs: N" line (count of live, non-tombstoned distinct keys),
// a per-source population line ("BUF: n, L1: n, ...", non-empty sources
// only), then one line per source listing that source's winning entries
// as space-separated "K:V:LABEL" triples in ascending key order.
//
// A key's winning source is resolved exactly like Get: buffer first, then
// each level newest table to oldest — the first hit wins, whether it's a
// live value or a tombstone. Tombstoned winners count toward that
// source's population line but never appear in the K:V:LABEL groups and
// never count toward Logical Pairs.
func (t *LSMTree) StatsString() string {
	winners := make(map[int32]statsEntry)
	counts := make(map[string]int)

	record := func(entries []DataPair, label string) {
		counts[label] += len(entries)
		for _, d := range entries {
			if _, seen := winners[d.Key]; seen {
				continue
			}
			winners[d.Key] = statsEntry{pair: d, label: label}
		}
	}

	record(t.buffer.All(), "BUF")

	labels := make([]string, 0, len(t.levels)+1)
	labels = append(labels, "BUF")
	for i, level := range t.levels {
		label := fmt.Sprintf("L%d", i+1)
		labels = append(labels, label)

		tables := level.GetSSTables()
		var all []DataPair
		for i := len(tables) - 1; i >= 0; i-- {
			entries, err := tables[i].Iterator()
			if err != nil {
				t.logger.Warn("stats: failed to read sstable", logging.FileID(tables[i].FileID), logging.Error(err))
				continue
			}
			all = append(all, entries...)
		}
		record(all, label)
	}

	logical := 0
	byLabel := make(map[string][]statsEntry)
	for _, e := range winners {
		if e.pair.Deleted {
			continue
		}
		logical++
		byLabel[e.label] = append(byLabel[e.label], e)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Logical Pairs: %d\n", logical)

	populations := make([]string, 0, len(labels))
	for _, l := range labels {
		if counts[l] > 0 {
			populations = append(populations, fmt.Sprintf("%s: %d", l, counts[l]))
		}
	}
	b.WriteString(strings.Join(populations, ", "))
	b.WriteByte('\n')

	for _, l := range labels {
		group := byLabel[l]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].pair.Key < group[j].pair.Key })
		parts := make([]string, len(group))
		for i, e := range group {
			parts[i] = fmt.Sprintf("%d:%d:%s", e.pair.Key, e.pair.Value, e.label)
		}
		b.WriteString(strings.Join(parts, " "))
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}
