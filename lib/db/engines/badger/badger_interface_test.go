package badger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/objstore/lib/db"
	dbtesting "github.com/ValentinKolb/objstore/lib/db/testing"
	"github.com/dgraph-io/badger/v4"
)

func testOptions(dir string) Options {
	opts := DefaultOptions(dir)
	opts.BlockCacheSize = 16 << 20
	opts.LockTimeout = 100 * time.Millisecond
	opts.GCInterval = 0
	return opts
}

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "BadgerDB", func() (db.Engine, error) {
		return NewBadgerEngine(testOptions(t.TempDir()))
	})
}

func TestInMemory(t *testing.T) {
	dbtesting.RunEngineTests(t, "BadgerDB(in-memory)", func() (db.Engine, error) {
		opts := testOptions("")
		opts.InMemory = true
		return NewBadgerEngine(opts)
	})
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()

	e, err := NewBadgerEngine(testOptions(dir))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	txn, _ := e.Begin()
	if err := txn.Put(db.TableInfo, []byte("durable"), []byte("yes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	e, err = NewBadgerEngine(testOptions(dir))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer e.Close()

	txn, _ = e.Begin()
	defer txn.Abort()
	val, err := txn.Get(db.TableInfo, []byte("durable"), false)
	if err != nil || string(val) != "yes" {
		t.Errorf("Expected durable value after reopen, got %s (%v)", val, err)
	}

	if info := e.Info(); info.DbType != db.ImplBadger {
		t.Errorf("Expected db type %s, got %s", db.ImplBadger, info.DbType)
	}
}

func TestCursorSeesOwnWrites(t *testing.T) {
	e, err := NewBadgerEngine(testOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer e.Close()

	txn, _ := e.Begin()
	defer txn.Abort()
	if err := txn.Put(db.TableNames, []byte("mine"), []byte("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	cur, err := txn.Cursor(db.TableNames)
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	defer cur.Close()

	k, ok, err := cur.First()
	if err != nil || !ok || string(k) != "mine" {
		t.Errorf("Expected own uncommitted key, got %s ok=%t err=%v", k, ok, err)
	}
}

func TestMapError(t *testing.T) {
	if err := mapError("x", nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
	if err := mapError("x", errors.New("boom")); err == nil || errors.Is(err, db.ErrCorrupted) {
		t.Errorf("Unexpected mapping for generic error: %v", err)
	}
	if err := mapError("put", badger.ErrTxnTooBig); !errors.Is(err, db.ErrTxnTooBig) {
		t.Errorf("Expected ErrTxnTooBig, got %v", err)
	}
}

func TestInfoMetadata(t *testing.T) {
	dir := t.TempDir()
	e, err := NewBadgerEngine(testOptions(dir))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer e.Close()

	info := e.Info()
	if info.Metadata["dir"] != dir {
		t.Errorf("Expected dir %q in metadata, got %v", dir, info.Metadata["dir"])
	}
	if info.Metadata["in_memory"] != false {
		t.Errorf("Expected in_memory=false, got %v", info.Metadata["in_memory"])
	}
	for _, key := range []string{"lsm_size", "vlog_size"} {
		if _, ok := info.Metadata[key]; !ok {
			t.Errorf("Expected %s in metadata", key)
		}
	}
}

func TestLargeTransaction(t *testing.T) {
	e, err := NewBadgerEngine(testOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer e.Close()

	value := make([]byte, 64<<10)
	txn, _ := e.Begin()
	for i := 0; i < 300; i++ {
		key := []byte(fmt.Sprintf("big-%04d", i))
		if err := txn.Put(db.TableObjects, key, value); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func TestTxnTooBig(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.MemTableSize = 1 << 20
	e, err := NewBadgerEngine(opts)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer e.Close()

	value := make([]byte, 512)
	txn, _ := e.Begin()
	defer txn.Abort()
	for i := 0; i < 2000; i++ {
		err = txn.Put(db.TableObjects, []byte(fmt.Sprintf("k-%04d", i)), value)
		if err != nil {
			break
		}
	}
	if !errors.Is(err, db.ErrTxnTooBig) {
		t.Fatalf("Expected ErrTxnTooBig, got %v", err)
	}
	if _, err := txn.Get(db.TableObjects, []byte("k-0000"), false); err != nil {
		t.Errorf("Expected earlier writes to stay readable, got %v", err)
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "BadgerDB", func() (db.Engine, error) {
		return NewBadgerEngine(testOptions(b.TempDir()))
	})
}
