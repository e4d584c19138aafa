package testing

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/objstore/lib/db"
)

// RunEngineTests runs the conformance test suite for a db.Engine implementation.
// The engines created by factory must use a lock timeout of at most a few seconds.
func RunEngineTests(t *testing.T, name string, factory db.EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, newEngine(t, factory))
		})

		t.Run("EmptyValue", func(t *testing.T) {
			testEmptyValue(t, newEngine(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, newEngine(t, factory))
		})

		t.Run("Tables", func(t *testing.T) {
			testTables(t, newEngine(t, factory))
		})

		t.Run("Isolation", func(t *testing.T) {
			testIsolation(t, newEngine(t, factory))
		})

		t.Run("Abort", func(t *testing.T) {
			testAbort(t, newEngine(t, factory))
		})

		t.Run("LockTimeout", func(t *testing.T) {
			testLockTimeout(t, newEngine(t, factory))
		})

		t.Run("LockHandOff", func(t *testing.T) {
			testLockHandOff(t, newEngine(t, factory))
		})

		t.Run("Deadlock", func(t *testing.T) {
			testDeadlock(t, newEngine(t, factory))
		})

		t.Run("Cursor", func(t *testing.T) {
			testCursor(t, newEngine(t, factory))
		})

		t.Run("Prepare", func(t *testing.T) {
			testPrepare(t, newEngine(t, factory))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, newEngine(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func newEngine(t testing.TB, factory db.EngineFactory) db.Engine {
	e, err := factory()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() {
		_ = e.Close()
	})
	return e
}

func begin(t testing.TB, e db.Engine) db.Txn {
	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	return txn
}

func mustPut(t testing.TB, txn db.Txn, table db.Table, key, value string) {
	if err := txn.Put(table, []byte(key), []byte(value)); err != nil {
		t.Fatalf("Put(%s, %q) failed: %v", table, key, err)
	}
}

func mustCommit(t testing.TB, txn db.Txn) {
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func gid(id string) []byte {
	g := make([]byte, db.GIDSize)
	copy(g[db.GIDSize-len(id):], id)
	return g
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	mustPut(t, txn, db.TableObjects, "k1", "v1")

	val, err := txn.Get(db.TableObjects, []byte("k1"), false)
	if err != nil {
		t.Fatalf("Get after Put failed: %v", err)
	}
	if !bytes.Equal(val, []byte("v1")) {
		t.Errorf("Expected value v1, got %s", val)
	}

	mustPut(t, txn, db.TableObjects, "k1", "v2")
	mustCommit(t, txn)

	txn = begin(t, e)
	defer txn.Abort()
	val, err = txn.Get(db.TableObjects, []byte("k1"), false)
	if err != nil {
		t.Fatalf("Get after Commit failed: %v", err)
	}
	if !bytes.Equal(val, []byte("v2")) {
		t.Errorf("Expected value v2, got %s", val)
	}

	// returned values are copies
	val[0] = 'X'
	again, _ := txn.Get(db.TableObjects, []byte("k1"), false)
	if bytes.Equal(val, again) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	if _, err := txn.Get(db.TableObjects, []byte("missing"), false); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing key, got %v", err)
	}
}

func testEmptyValue(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	mustPut(t, txn, db.TableObjects, "empty", "")
	val, err := txn.Get(db.TableObjects, []byte("empty"), false)
	if err != nil {
		t.Fatalf("Get of empty value failed: %v", err)
	}
	if val == nil || len(val) != 0 {
		t.Errorf("Expected non-nil empty value, got %#v", val)
	}
	mustCommit(t, txn)

	txn = begin(t, e)
	defer txn.Abort()
	val, err = txn.Get(db.TableObjects, []byte("empty"), false)
	if err != nil {
		t.Fatalf("Get of committed empty value failed: %v", err)
	}
	if val == nil || len(val) != 0 {
		t.Errorf("Expected non-nil empty value after commit, got %#v", val)
	}
}

func testDelete(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	mustPut(t, txn, db.TableNames, "a", "1")
	mustCommit(t, txn)

	txn = begin(t, e)
	if err := txn.Delete(db.TableNames, []byte("a")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := txn.Get(db.TableNames, []byte("a"), false); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after own Delete, got %v", err)
	}
	if err := txn.Delete(db.TableNames, []byte("a")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for second Delete, got %v", err)
	}
	if err := txn.Delete(db.TableNames, []byte("never")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for Delete of missing key, got %v", err)
	}
	mustCommit(t, txn)

	txn = begin(t, e)
	defer txn.Abort()
	if _, err := txn.Get(db.TableNames, []byte("a"), false); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after committed Delete, got %v", err)
	}
}

func testTables(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	mustPut(t, txn, db.TableObjects, "same", "object")
	mustPut(t, txn, db.TableNames, "same", "name")
	mustCommit(t, txn)

	txn = begin(t, e)
	defer txn.Abort()
	obj, _ := txn.Get(db.TableObjects, []byte("same"), false)
	name, _ := txn.Get(db.TableNames, []byte("same"), false)
	if string(obj) != "object" || string(name) != "name" {
		t.Errorf("Tables must not share keys, got object=%s name=%s", obj, name)
	}
	if _, err := txn.Get(db.TableInfo, []byte("same"), false); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound in info table, got %v", err)
	}
}

func testIsolation(t *testing.T, e db.Engine) {
	writer := begin(t, e)
	reader := begin(t, e)
	defer reader.Abort()

	mustPut(t, writer, db.TableObjects, "k", "uncommitted")
	if _, err := reader.Get(db.TableObjects, []byte("k"), false); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Uncommitted write must not be visible, got %v", err)
	}
	mustCommit(t, writer)

	// read committed: the committed value becomes visible to the running reader
	val, err := reader.Get(db.TableObjects, []byte("k"), false)
	if err != nil {
		t.Fatalf("Committed write should be visible: %v", err)
	}
	if string(val) != "uncommitted" {
		t.Errorf("Expected committed value, got %s", val)
	}
}

func testAbort(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	mustPut(t, txn, db.TableObjects, "k", "v")
	if err := txn.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	txn = begin(t, e)
	defer txn.Abort()
	if _, err := txn.Get(db.TableObjects, []byte("k"), false); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Aborted write must be discarded, got %v", err)
	}
	// aborting released the lock
	mustPut(t, txn, db.TableObjects, "k", "v2")
}

func testLockTimeout(t *testing.T, e db.Engine) {
	a := begin(t, e)
	defer a.Abort()
	b := begin(t, e)
	defer b.Abort()

	if _, err := a.Get(db.TableObjects, []byte("row"), true); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for locked missing row, got %v", err)
	}

	err := b.Put(db.TableObjects, []byte("row"), []byte("x"))
	if !errors.Is(err, db.ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout, got %v", err)
	}

	// plain reads do not wait for locks
	if _, err := b.Get(db.TableObjects, []byte("row"), false); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected plain read to pass the lock, got %v", err)
	}
}

func testLockHandOff(t *testing.T, e db.Engine) {
	a := begin(t, e)
	mustPut(t, a, db.TableObjects, "row", "a")

	var wg sync.WaitGroup
	var bErr error
	b := begin(t, e)
	defer b.Abort()
	wg.Add(1)
	go func() {
		defer wg.Done()
		bErr = b.Put(db.TableObjects, []byte("row"), []byte("b"))
	}()

	time.Sleep(50 * time.Millisecond)
	mustCommit(t, a)
	wg.Wait()

	if bErr != nil {
		t.Fatalf("Waiting writer should get the lock after commit, got %v", bErr)
	}
	mustCommit(t, b)

	c := begin(t, e)
	defer c.Abort()
	val, _ := c.Get(db.TableObjects, []byte("row"), false)
	if string(val) != "b" {
		t.Errorf("Expected last writer to win, got %s", val)
	}
}

func testDeadlock(t *testing.T, e db.Engine) {
	a := begin(t, e)
	defer a.Abort()
	b := begin(t, e)

	mustPut(t, a, db.TableObjects, "x", "a")
	mustPut(t, b, db.TableObjects, "y", "b")

	done := make(chan error, 1)
	go func() {
		done <- a.Put(db.TableObjects, []byte("y"), []byte("a"))
	}()
	time.Sleep(50 * time.Millisecond)

	err := b.Put(db.TableObjects, []byte("x"), []byte("b"))
	if !errors.Is(err, db.ErrDeadlock) {
		t.Errorf("Expected ErrDeadlock, got %v", err)
	}
	if err := b.Abort(); err != nil {
		t.Fatalf("Abort of victim failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Survivor should get the lock, got %v", err)
	}
}

func testCursor(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	for _, k := range []string{"c", "a", "b"} {
		mustPut(t, txn, db.TableNames, k, k)
	}
	mustPut(t, txn, db.TableObjects, "0", "not a name")
	mustCommit(t, txn)

	txn = begin(t, e)
	defer txn.Abort()
	cur, err := txn.Cursor(db.TableNames)
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}

	var got []string
	for k, ok, err := cur.First(); ok; k, ok, err = cur.Next() {
		if err != nil {
			t.Fatalf("Cursor iteration failed: %v", err)
		}
		got = append(got, string(k))
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Expected [a b c], got %v", got)
	}

	// Next on an exhausted cursor stays exhausted
	if _, ok, _ := cur.Next(); ok {
		t.Errorf("Expected exhausted cursor")
	}

	k, ok, err := cur.Seek([]byte("bb"))
	if err != nil || !ok || string(k) != "c" {
		t.Errorf("Seek(bb) expected c, got %s ok=%t err=%v", k, ok, err)
	}
	k, ok, _ = cur.Seek([]byte("b"))
	if !ok || string(k) != "b" {
		t.Errorf("Seek(b) expected b, got %s", k)
	}
	if _, ok, _ := cur.Seek([]byte("d")); ok {
		t.Errorf("Seek(d) expected no key")
	}

	if _, err := txn.Cursor(db.TableNames); err == nil {
		t.Errorf("Expected error when opening a second cursor")
	}
	cur.Close()
	cur.Close()

	cur, err = txn.Cursor(db.TableNames)
	if err != nil {
		t.Fatalf("Cursor after Close failed: %v", err)
	}
	cur.Close()
}

func testPrepare(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	mustPut(t, txn, db.TableObjects, "p", "v")

	if err := txn.Prepare([]byte("short")); !errors.Is(err, db.ErrInvalidGID) {
		t.Errorf("Expected ErrInvalidGID, got %v", err)
	}
	if err := txn.Prepare(gid("txn-1")); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := txn.Put(db.TableObjects, []byte("q"), []byte("v")); !errors.Is(err, db.ErrPrepared) {
		t.Errorf("Expected ErrPrepared for write after Prepare, got %v", err)
	}
	if err := txn.Prepare(gid("txn-1")); !errors.Is(err, db.ErrPrepared) {
		t.Errorf("Expected ErrPrepared for second Prepare, got %v", err)
	}
	if _, err := txn.Get(db.TableObjects, []byte("p"), false); err != nil {
		t.Errorf("Reads after Prepare should work, got %v", err)
	}
	mustCommit(t, txn)

	txn = begin(t, e)
	defer txn.Abort()
	if val, err := txn.Get(db.TableObjects, []byte("p"), false); err != nil || string(val) != "v" {
		t.Errorf("Prepared write should be committed, got %s (%v)", val, err)
	}
}

func testClosed(t *testing.T, e db.Engine) {
	txn := begin(t, e)
	mustCommit(t, txn)

	if err := txn.Commit(); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for second Commit, got %v", err)
	}
	if err := txn.Abort(); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for Abort after Commit, got %v", err)
	}
	if _, err := txn.Get(db.TableObjects, []byte("k"), false); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for Get after Commit, got %v", err)
	}
	if err := txn.Put(db.TableObjects, []byte("k"), nil); !errors.Is(err, db.ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed for Put after Commit, got %v", err)
	}
}
