package perf

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/objstore/cmd/util"
	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/ValentinKolb/objstore/lib/store/datastore"
	"github.com/ValentinKolb/objstore/lib/txn"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetLogger("cmd")

var (
	// PerfCmd runs benchmarks against a local data store
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the data store",
		PreRunE: processPerfConfig,
		RunE:    run,
	}
	perfNumThreads = 10
	perfObjects    = 1000
	perfValueSize  = 128
	perfSkip       = make([]string, 0)
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(PerfCmd)

	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. create,get)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "objects"
	PerfCmd.Flags().Int(key, 1000, util.WrapString("How many objects the read and update tests work on"))
	key = "value-size"
	PerfCmd.Flags().Int(key, 128, util.WrapString("Size of the object values in bytes"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfObjects = viper.GetInt("objects")
	perfValueSize = viper.GetInt("value-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfNumThreads < 1 || perfObjects < 1 || perfValueSize < 0 {
		return fmt.Errorf("threads and objects must be positive, value-size must not be negative")
	}
	return nil
}

// benchmark is one named test, fn is called in parallel by every thread
type benchmark struct {
	name string
	fn   func(ds *datastore.Store, i int64) error
}

func run(cmd *cobra.Command, _ []string) error {
	ds, err := util.OpenStore(cmd)
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for the data store")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(ds.Config().String())
	fmt.Printf("Threads: %d, Objects: %d, Value Size: %d bytes\n", perfNumThreads, perfObjects, perfValueSize)
	fmt.Println()

	value := make([]byte, perfValueSize)

	fmt.Println("preparing objects...")
	oids, err := prepareObjects(ds, value)
	if err != nil {
		_ = util.CloseStore(ds, 5*time.Second)
		return err
	}

	pick := func(i int64) int64 {
		return oids[i%int64(len(oids))]
	}

	benchmarks := []benchmark{
		{"create", func(ds *datastore.Store, _ int64) error {
			return txn.Run(func(t *txn.Transaction) error {
				oid, err := ds.CreateObject(t)
				if err != nil {
					return err
				}
				return ds.SetObject(t, oid, value)
			})
		}},
		{"get", func(ds *datastore.Store, i int64) error {
			return txn.Run(func(t *txn.Transaction) error {
				_, err := ds.GetObject(t, pick(i), false)
				return err
			})
		}},
		{"update", func(ds *datastore.Store, i int64) error {
			return txn.Run(func(t *txn.Transaction) error {
				oid := pick(i)
				if _, err := ds.GetObject(t, oid, true); err != nil {
					return err
				}
				return ds.SetObject(t, oid, value)
			})
		}},
		{"bind", func(ds *datastore.Store, i int64) error {
			return txn.Run(func(t *txn.Transaction) error {
				return ds.SetBinding(t, fmt.Sprintf("__perf-%d", i%int64(perfObjects)), pick(i))
			})
		}},
	}

	fmt.Println("starting tests...")
	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		result := runBenchmark(ds, bm)
		results[bm.name] = result
		printResult(bm.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			log.Errorf("failed to write csv: %v", err)
		} else {
			fmt.Printf("results written to %s\n", csvPath)
		}
	}

	return util.CloseStore(ds, 10*time.Second)
}

// prepareObjects creates perfObjects objects using perfNumThreads parallel transactions
func prepareObjects(ds *datastore.Store, value []byte) ([]int64, error) {
	oids := make([]int64, perfObjects)
	var g errgroup.Group
	g.SetLimit(perfNumThreads)

	const batch = 100
	for start := 0; start < perfObjects; start += batch {
		start := start
		end := min(start+batch, perfObjects)
		g.Go(func() error {
			return txn.Run(func(t *txn.Transaction) error {
				for i := start; i < end; i++ {
					oid, err := ds.CreateObject(t)
					if err != nil {
						return err
					}
					if err := ds.SetObject(t, oid, value); err != nil {
						return err
					}
					oids[i] = oid
				}
				return nil
			})
		})
	}
	return oids, g.Wait()
}

func runBenchmark(ds *datastore.Store, bm benchmark) testing.BenchmarkResult {
	if shouldSkip(bm.name) {
		return testing.BenchmarkResult{}
	}
	var failed atomic.Int64
	result := testing.Benchmark(func(b *testing.B) {
		var counter atomic.Int64
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if err := bm.fn(ds, counter.Add(1)); err != nil {
					// conflicts and lock timeouts are expected under contention
					if !isRetryable(err) {
						log.Warningf("(%s) - %v", bm.name, err)
					}
					failed.Add(1)
				}
			}
		})
	})
	if n := failed.Load(); n > 0 {
		fmt.Printf("%-20s%d failed transactions\n", bm.name, n)
	}
	return result
}

func isRetryable(err error) bool {
	return errors.Is(err, store.ErrTransactionConflict) || errors.Is(err, store.ErrTransactionTimeout)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Threads", "Objects", "ValueSize", "AllocationSize", "FlushToDisk",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfObjects),
			strconv.Itoa(perfValueSize),
			strconv.FormatInt(viper.GetInt64("allocation-size"), 10),
			strconv.FormatBool(viper.GetBool("flush-to-disk")),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
