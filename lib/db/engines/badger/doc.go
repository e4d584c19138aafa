// Package badger implements the db.Engine interface on top of
// dgraph-io/badger (v4), an embedded LSM key-value store.
//
// Key Features:
//   - All tables live in one badger keyspace, separated by a one byte prefix
//     (the db.Table value)
//   - Read committed reads with read-your-writes
//   - Exclusive row locks from lib/lockmgr for writes and locking reads
//   - Two-phase commit on top of badger's optimistic transactions
//   - Periodic value log garbage collection
//
// Implementation Details:
//
//   - Every db.Txn owns one badger update transaction that buffers the
//     writes. Keys written by the transaction are read back through it; all
//     other keys are read from a short read-only transaction so that the
//     latest committed value is returned.
//
//   - Badger's conflict detection is turned off. Two transactions can only
//     write the same key one after another because each write first takes
//     the row lock, which is released on commit or abort. Therefore a
//     commit never fails with a conflict and Prepare only has to freeze the
//     transaction: once all writes have been accepted by badger the commit
//     can only fail on I/O.
//
//   - Cursors are badger iterators of the update transaction restricted to
//     the table prefix. They see the committed state at the start of the
//     transaction plus the writes of the transaction made before the cursor
//     was opened.
//
//   - Checksum mismatches and truncation requests reported by badger are
//     mapped to db.ErrCorrupted.
//
// Usage Example:
//
//	engine, err := badger.NewBadgerEngine(badger.DefaultOptions("/var/lib/objstore"))
//	if err != nil {
//	    // handle error
//	}
//	defer engine.Close()
package badger
