package db

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBadger Implementation = "badger"
)

// Table names one of the logical tables of the engine.
// Keys of different tables never collide.
type Table byte

const (
	TableInfo    Table = 'i' // store metadata (header)
	TableObjects Table = 'o' // object id -> object bytes
	TableNames   Table = 'n' // binding name -> object id
)

func (t Table) String() string {
	switch t {
	case TableInfo:
		return "info"
	case TableObjects:
		return "objects"
	case TableNames:
		return "names"
	default:
		return "unknown"
	}
}

// GIDSize is the length of the global transaction token expected by Txn.Prepare
const GIDSize = 128

type DatabaseInfo struct {
	SizeBytes int64                  `json:"size_bytes"`
	DbType    Implementation         `json:"db_type"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a key does not exist in a table
	ErrNotFound = errors.New("db: key not found")
	// ErrLockTimeout is returned when a row lock could not be acquired in time
	ErrLockTimeout = errors.New("db: lock wait timeout")
	// ErrDeadlock is returned to the transaction chosen as deadlock victim
	ErrDeadlock = errors.New("db: deadlock detected")
	// ErrConflict is returned when the engine refuses a commit because of a concurrent write
	ErrConflict = errors.New("db: write conflict")
	// ErrCorrupted signals an unrecoverable engine failure, the engine must not be used afterward
	ErrCorrupted = errors.New("db: engine corrupted")
	// ErrTxnClosed is returned for any operation on a committed or aborted transaction
	ErrTxnClosed = errors.New("db: transaction already closed")
	// ErrPrepared is returned for writes or cursors after Prepare
	ErrPrepared = errors.New("db: transaction is prepared")
	// ErrInvalidGID is returned by Prepare for tokens that are not GIDSize bytes long
	ErrInvalidGID = errors.New("db: invalid global transaction id")
	// ErrTxnTooBig is returned when the writes of one transaction exceed the engine's batch limit.
	// The transaction stays usable, the rejected write is not applied.
	ErrTxnTooBig = errors.New("db: transaction too big")
)

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// EngineFactory creates (or opens) the engine used by a store.
type EngineFactory func() (Engine, error)

// Engine is a transactional, ordered key-value engine with a fixed set of tables.
type Engine interface {
	// Begin starts a new read-write transaction.
	Begin() (txn Txn, err error)

	// Info returns size and engine specific statistics.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	Info() (info DatabaseInfo)

	// Close closes the engine. All transactions must be finished beforehand.
	Close() (err error)
}

// Txn is a read-write transaction of an Engine.
//
// Reads observe the writes of the transaction itself; everything else is read
// from the latest committed state (read committed). Writes and reads with
// forUpdate set take an exclusive row lock that is held until Commit or Abort.
// Waiting for a lock is bounded by the engine's lock timeout (ErrLockTimeout);
// a wait that would deadlock fails with ErrDeadlock.
//
// A Txn must only be used by one goroutine at a time.
type Txn interface {
	// Get returns a copy of the value stored for key or ErrNotFound.
	Get(table Table, key []byte, forUpdate bool) (value []byte, err error)

	// Put inserts or replaces the value for key.
	Put(table Table, key []byte, value []byte) (err error)

	// Delete removes key, ErrNotFound if it did not exist.
	Delete(table Table, key []byte) (err error)

	// Cursor opens an ordered cursor over the keys of table.
	// At most one cursor may be open per transaction; it must be closed before Prepare, Commit or Abort.
	Cursor(table Table) (cursor Cursor, err error)

	// Prepare is the first phase of a two-phase commit. After a successful
	// Prepare the transaction accepts no more writes and Commit only fails on I/O errors.
	Prepare(gid []byte) (err error)

	// Commit makes all writes durable and visible and releases all locks.
	Commit() (err error)

	// Abort discards all writes and releases all locks.
	Abort() (err error)
}

// Cursor iterates the keys of one table in ascending byte order.
// Keys returned by a cursor have the table prefix removed and are copies.
type Cursor interface {
	// First positions the cursor at the smallest key.
	First() (key []byte, ok bool, err error)

	// Seek positions the cursor at the smallest key >= key.
	Seek(key []byte) (found []byte, ok bool, err error)

	// Next advances the cursor by one key.
	Next() (key []byte, ok bool, err error)

	// Close releases the cursor.
	Close()
}
