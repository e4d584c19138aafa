package testing

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/objstore/lib/db"
)

// RunEngineBenchmarks runs all benchmarks for a db.Engine implementation
func RunEngineBenchmarks(b *testing.B, name string, factory db.EngineFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("PutCommit", func(b *testing.B) {
			benchmarkPutCommit(b, newEngine(b, factory))
		})

		b.Run("PutBatch", func(b *testing.B) {
			benchmarkPutBatch(b, newEngine(b, factory))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, newEngine(b, factory))
		})

		b.Run("GetForUpdate", func(b *testing.B) {
			benchmarkGetForUpdate(b, newEngine(b, factory))
		})

		b.Run("CursorScan", func(b *testing.B) {
			benchmarkCursorScan(b, newEngine(b, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func oidKey(i uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, i)
	return k
}

// fill writes n objects in batches of 1000
func fill(b *testing.B, e db.Engine, n int) {
	txn := begin(b, e)
	for i := 0; i < n; i++ {
		if err := txn.Put(db.TableObjects, oidKey(uint64(i)), []byte(fmt.Sprintf("value-%d", i))); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
		if i%1000 == 999 {
			mustCommit(b, txn)
			txn = begin(b, e)
		}
	}
	mustCommit(b, txn)
}

// Benchmark for one Put per transaction
func benchmarkPutCommit(b *testing.B, e db.Engine) {
	var counter atomic.Uint64
	value := []byte("benchmark-value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			txn, err := e.Begin()
			if err != nil {
				b.Fatalf("Begin failed: %v", err)
			}
			if err := txn.Put(db.TableObjects, oidKey(counter.Add(1)), value); err != nil {
				b.Fatalf("Put failed: %v", err)
			}
			if err := txn.Commit(); err != nil {
				b.Fatalf("Commit failed: %v", err)
			}
		}
	})
}

// Benchmark for many Puts in one transaction
func benchmarkPutBatch(b *testing.B, e db.Engine) {
	value := []byte("benchmark-value")
	txn := begin(b, e)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := txn.Put(db.TableObjects, oidKey(uint64(i)), value); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
		if i%1000 == 999 {
			mustCommit(b, txn)
			txn = begin(b, e)
		}
	}
	mustCommit(b, txn)
}

// Benchmark for plain reads of committed values
func benchmarkGet(b *testing.B, e db.Engine) {
	const numKeys = 10000
	fill(b, e, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		txn, err := e.Begin()
		if err != nil {
			b.Fatalf("Begin failed: %v", err)
		}
		defer txn.Abort()

		i := 0
		for pb.Next() {
			if _, err := txn.Get(db.TableObjects, oidKey(uint64(i%numKeys)), false); err != nil {
				b.Fatalf("Get failed: %v", err)
			}
			i++
		}
	})
}

// Benchmark for locking reads (single transaction, so no lock waits)
func benchmarkGetForUpdate(b *testing.B, e db.Engine) {
	const numKeys = 10000
	fill(b, e, numKeys)

	txn := begin(b, e)
	defer txn.Abort()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := txn.Get(db.TableObjects, oidKey(uint64(i%numKeys)), true); err != nil {
			b.Fatalf("Get failed: %v", err)
		}
	}
}

// Benchmark for a full ordered scan of the names table
func benchmarkCursorScan(b *testing.B, e db.Engine) {
	const numKeys = 1000
	txn := begin(b, e)
	for i := 0; i < numKeys; i++ {
		mustPut(b, txn, db.TableNames, fmt.Sprintf("name-%05d", i), "x")
	}
	mustCommit(b, txn)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		txn := begin(b, e)
		cur, err := txn.Cursor(db.TableNames)
		if err != nil {
			b.Fatalf("Cursor failed: %v", err)
		}
		n := 0
		for _, ok, _ := cur.First(); ok; _, ok, _ = cur.Next() {
			n++
		}
		cur.Close()
		_ = txn.Abort()
		if n != numKeys {
			b.Fatalf("Expected %d keys, got %d", numKeys, n)
		}
	}
}
