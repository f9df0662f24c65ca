// Command lsmbench drives an LSMTree through sequential writes, random
// reads, range scans, updates and deletions, and reports throughput for
// each phase, mirroring the teacher's cmd/benchmark-lsm structure over
// the fixed-width int32 key/value engine.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/nrigby/lsmkv/pkg/logging"
	"github.com/nrigby/lsmkv/pkg/lsm"
)

func main() {
	writes := flag.Int("writes", 100000, "Number of writes")
	reads := flag.Int("reads", 10000, "Number of reads")
	dataDir := flag.String("data", "./data/lsmbench", "Data directory")
	flag.Parse()

	fmt.Printf("lsmkv benchmark\n")
	fmt.Printf("===============\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Writes: %d\n", *writes)
	fmt.Printf("  Reads:  %d\n\n", *reads)

	os.RemoveAll(*dataDir)

	fmt.Printf("initializing lsm tree at %s...\n", *dataDir)
	opts := lsm.DefaultOptions(*dataDir)
	opts.Logger = logging.NopLogger{}

	tree, err := lsm.NewLSMTree(opts)
	if err != nil {
		log.Fatalf("failed to create lsm tree: %v", err)
	}
	defer tree.Close()

	fmt.Printf("\nBenchmark 1: Sequential Writes\n")
	start := time.Now()
	for i := 0; i < *writes; i++ {
		tree.Put(int32(i), int32(i*31))
		if (i+1)%10000 == 0 {
			fmt.Printf("  written %d entries...\n", i+1)
		}
	}
	reportThroughput("writes", *writes, time.Since(start))

	fmt.Printf("\nwaiting for background flushes...\n")
	time.Sleep(2 * time.Second)

	fmt.Printf("\nBenchmark 2: Random Reads\n")
	start = time.Now()
	found := 0
	for i := 0; i < *reads; i++ {
		key := int32(rand.Intn(*writes))
		if _, ok := tree.Get(key); ok {
			found++
		}
	}
	duration := time.Since(start)
	fmt.Printf("  found %d/%d (%.1f%%)\n", found, *reads, float64(found)*100/float64(*reads))
	reportThroughput("reads", *reads, duration)

	fmt.Printf("\nBenchmark 3: Range Scans\n")
	scanCount := 100
	scanSize := int32(1000)
	start = time.Now()
	totalResults := 0
	for i := 0; i < scanCount; i++ {
		lo := int32(rand.Intn(*writes))
		results := tree.Range(lo, lo+scanSize)
		totalResults += len(results)
	}
	duration = time.Since(start)
	fmt.Printf("  average results per scan: %d\n", totalResults/scanCount)
	reportThroughput("scans", scanCount, duration)

	fmt.Printf("\nBenchmark 4: Random Updates\n")
	updateCount := *writes / 10
	start = time.Now()
	for i := 0; i < updateCount; i++ {
		key := int32(rand.Intn(*writes))
		tree.Put(key, -key)
	}
	reportThroughput("updates", updateCount, time.Since(start))

	fmt.Printf("\nBenchmark 5: Random Deletions\n")
	deleteCount := *writes / 20
	start = time.Now()
	for i := 0; i < deleteCount; i++ {
		key := int32(rand.Intn(*writes))
		tree.Delete(key)
	}
	reportThroughput("deletions", deleteCount, time.Since(start))

	fmt.Printf("\nwaiting for compaction...\n")
	time.Sleep(3 * time.Second)

	fmt.Printf("\nFinal Stats\n")
	fmt.Printf("===========\n")
	fmt.Println(tree.StatsString())

	fmt.Printf("\nbenchmark complete\n")
}

func reportThroughput(label string, n int, d time.Duration) {
	throughput := float64(n) / d.Seconds()
	avgLatency := d.Microseconds() / int64(n)
	fmt.Printf("  completed %d %s in %v\n", n, label, d)
	fmt.Printf("  average: %dus per op\n", avgLatency)
	fmt.Printf("  throughput: %.0f %s/sec\n", throughput, label)
}
