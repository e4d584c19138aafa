// Package lockmgr implements the exclusive row locks used by the storage
// engines. It is a purely in-memory structure; locks do not survive a
// restart and are never persisted.
//
// Core Functionality:
//   - Exclusive, re-entrant locks on string keys held by numeric owners
//   - FIFO hand-off: a released lock goes to the longest waiting owner
//   - Bounded waits (ErrTimeout)
//   - Deadlock detection on the wait-for graph (ErrDeadlock)
//
// Implementation Approach:
//
//	Every owner waits for at most one key at a time, so the wait-for graph
//	is a set of chains. Before an owner starts to wait for a key it follows
//	the chain starting at the current holder. If the chain ends at the
//	requesting owner the wait would never finish and the requester is
//	refused with ErrDeadlock. The other members of the cycle keep waiting
//	and get the lock once the victim releases its locks.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. A single mutex protects the
//	lock table; waiting happens outside of it on a per waiter channel.
//
// Usage Example:
//
//	mgr := lockmgr.NewLockManager()
//	owner := mgr.NewOwner()
//
//	if err := mgr.AcquireLock("o/42", owner, time.Second); err != nil {
//	    // ErrTimeout or ErrDeadlock
//	}
//	defer mgr.ReleaseAll(owner)
package lockmgr
