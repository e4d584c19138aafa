package lockmgr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("lockmgr")

type waiter struct {
	owner uint64
	ready chan struct{}
}

type lockEntry struct {
	owner   uint64
	waiters []*waiter
}

type lockMgrImpl struct {
	mu sync.Mutex

	locks   map[string]*lockEntry
	held    map[uint64]map[string]struct{}
	waitsOn map[uint64]string // owner -> key it is currently blocked on

	nextOwner atomic.Uint64
}

// NewLockManager creates an empty in-memory lock manager.
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks:   make(map[string]*lockEntry),
		held:    make(map[uint64]map[string]struct{}),
		waitsOn: make(map[uint64]string),
	}
}

func (m *lockMgrImpl) NewOwner() uint64 {
	return m.nextOwner.Add(1)
}

func (m *lockMgrImpl) AcquireLock(key string, owner uint64, timeout time.Duration) error {
	m.mu.Lock()

	e, ok := m.locks[key]
	if !ok {
		m.locks[key] = &lockEntry{owner: owner}
		m.addHeld(owner, key)
		m.mu.Unlock()
		return nil
	}
	if e.owner == owner {
		m.mu.Unlock()
		return nil
	}
	if timeout <= 0 {
		m.mu.Unlock()
		return ErrTimeout
	}
	if m.wouldDeadlock(owner, e.owner) {
		m.mu.Unlock()
		log.Debugf("owner %d: waiting for %q held by %d would deadlock", owner, key, e.owner)
		return ErrDeadlock
	}

	w := &waiter{owner: owner, ready: make(chan struct{})}
	e.waiters = append(e.waiters, w)
	m.waitsOn[owner] = key
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		return nil
	case <-timer.C:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// the lock may have been handed over while the timer fired
	select {
	case <-w.ready:
		return nil
	default:
	}
	e.waiters = removeWaiter(e.waiters, w)
	delete(m.waitsOn, owner)
	return ErrTimeout
}

func (m *lockMgrImpl) ReleaseLock(key string, owner uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release(key, owner)
}

func (m *lockMgrImpl) ReleaseAll(owner uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.held[owner]
	n := 0
	for key := range keys {
		if m.release(key, owner) {
			n++
		}
	}
	delete(m.held, owner)
	return n
}

// --------------------------------------------------------------------------
// Internal helpers (m.mu must be held)
// --------------------------------------------------------------------------

func (m *lockMgrImpl) addHeld(owner uint64, key string) {
	keys, ok := m.held[owner]
	if !ok {
		keys = make(map[string]struct{})
		m.held[owner] = keys
	}
	keys[key] = struct{}{}
}

func (m *lockMgrImpl) release(key string, owner uint64) bool {
	e, ok := m.locks[key]
	if !ok || e.owner != owner {
		return false
	}
	if keys, ok := m.held[owner]; ok {
		delete(keys, key)
	}

	if len(e.waiters) == 0 {
		delete(m.locks, key)
		return true
	}

	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	e.owner = next.owner
	m.addHeld(next.owner, key)
	delete(m.waitsOn, next.owner)
	close(next.ready)
	return true
}

// wouldDeadlock follows the wait-for chain starting at holder and reports
// whether it leads back to owner.
func (m *lockMgrImpl) wouldDeadlock(owner, holder uint64) bool {
	cur := holder
	for steps := 0; steps <= len(m.waitsOn); steps++ {
		key, waiting := m.waitsOn[cur]
		if !waiting {
			return false
		}
		e, ok := m.locks[key]
		if !ok {
			return false
		}
		if e.owner == owner {
			return true
		}
		cur = e.owner
	}
	return false
}
