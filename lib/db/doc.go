// Package db defines the contract between the object store and the
// transactional key-value engine it persists into.
//
// The engine exposes three logical tables (TableInfo, TableObjects and
// TableNames) inside one keyspace and hands out read-write transactions
// (Txn) with the following guarantees:
//
//   - Read committed isolation with read-your-writes.
//   - Exclusive row locks for writes and for reads with forUpdate set. A lock
//     is held until the transaction ends. Waits are bounded by a timeout
//     (ErrLockTimeout) and wait cycles are broken by failing one waiter with
//     ErrDeadlock.
//   - Two-phase commit: Prepare(gid) freezes the transaction, after which
//     Commit is guaranteed to succeed unless the engine fails with an I/O
//     error.
//   - Ordered cursors over the keys of a table.
//
// Engine failures are reported with the sentinel errors of this package,
// usually wrapped with additional context. Callers test them with errors.Is:
//
//	val, err := txn.Get(db.TableObjects, key, false)
//	if errors.Is(err, db.ErrNotFound) {
//		// absent
//	}
//
// ErrCorrupted is special: it means the engine can not continue and the
// process should treat it as fatal.
//
// Implementations:
//
//   - badger (github.com/ValentinKolb/objstore/lib/db/engines/badger): an
//     embedded, persistent engine based on dgraph-io/badger.
//
// The conformance suite in lib/db/testing can be run against any
// implementation:
//
//	dbtesting.RunEngineTests(t, "Badger", factory)
package db
