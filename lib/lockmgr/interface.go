package lockmgr

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned when a lock could not be acquired within the timeout
	ErrTimeout = errors.New("lockmgr: lock wait timeout")
	// ErrDeadlock is returned when waiting for a lock would close a wait cycle
	ErrDeadlock = errors.New("lockmgr: deadlock")
)

// ILockManager manages exclusive locks on string keys held by numbered owners.
type ILockManager interface {
	// NewOwner returns a new owner ID that was never handed out before.
	NewOwner() (owner uint64)

	// AcquireLock blocks until owner holds the lock for key. Acquiring a lock
	// that is already held by owner succeeds immediately.
	// Returns ErrTimeout if the lock is not granted within timeout and
	// ErrDeadlock if waiting would deadlock. A timeout <= 0 never waits.
	AcquireLock(key string, owner uint64, timeout time.Duration) (err error)

	// ReleaseLock releases the lock for key if it is held by owner.
	// The lock is handed to the longest waiting owner.
	ReleaseLock(key string, owner uint64) (ok bool)

	// ReleaseAll releases every lock held by owner and returns the number of released locks.
	ReleaseAll(owner uint64) (n int)
}
