package lockmgr

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	m := NewLockManager()
	a, b := m.NewOwner(), m.NewOwner()
	require.NotEqual(t, a, b)

	require.NoError(t, m.AcquireLock("k", a, time.Second))
	// re-entrant
	require.NoError(t, m.AcquireLock("k", a, time.Second))

	require.ErrorIs(t, m.AcquireLock("k", b, 0), ErrTimeout)
	require.False(t, m.ReleaseLock("k", b))
	require.True(t, m.ReleaseLock("k", a))
	require.NoError(t, m.AcquireLock("k", b, 0))
}

func TestTimeout(t *testing.T) {
	m := NewLockManager()
	a, b := m.NewOwner(), m.NewOwner()
	require.NoError(t, m.AcquireLock("k", a, time.Second))

	start := time.Now()
	err := m.AcquireLock("k", b, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// the timed out waiter must not receive the lock later
	require.True(t, m.ReleaseLock("k", a))
	require.Equal(t, 0, m.ReleaseAll(b))
}

func TestHandOffFIFO(t *testing.T) {
	m := NewLockManager()
	holder := m.NewOwner()
	require.NoError(t, m.AcquireLock("k", holder, time.Second))

	var (
		mu    sync.Mutex
		order []uint64
		wg    sync.WaitGroup
	)
	waiters := []uint64{m.NewOwner(), m.NewOwner(), m.NewOwner()}
	for _, w := range waiters {
		wg.Add(1)
		go func(owner uint64) {
			defer wg.Done()
			assert.NoError(t, m.AcquireLock("k", owner, 5*time.Second))
			mu.Lock()
			order = append(order, owner)
			mu.Unlock()
			m.ReleaseAll(owner)
		}(w)
		// make sure the waiters queue up in order
		time.Sleep(20 * time.Millisecond)
	}

	m.ReleaseAll(holder)
	wg.Wait()
	require.Equal(t, waiters, order)
}

func TestDeadlockDetection(t *testing.T) {
	m := NewLockManager()
	a, b := m.NewOwner(), m.NewOwner()
	require.NoError(t, m.AcquireLock("x", a, time.Second))
	require.NoError(t, m.AcquireLock("y", b, time.Second))

	done := make(chan error, 1)
	go func() {
		// a waits for y
		done <- m.AcquireLock("y", a, 5*time.Second)
	}()
	time.Sleep(50 * time.Millisecond)

	// b waiting for x would close the cycle
	require.ErrorIs(t, m.AcquireLock("x", b, 5*time.Second), ErrDeadlock)

	// the victim gives up its locks, a proceeds
	require.Equal(t, 1, m.ReleaseAll(b))
	require.NoError(t, <-done)
	require.Equal(t, 2, m.ReleaseAll(a))
}

func TestReleaseAll(t *testing.T) {
	m := NewLockManager()
	a := m.NewOwner()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.AcquireLock(k, a, time.Second))
	}
	require.Equal(t, 3, m.ReleaseAll(a))
	require.Equal(t, 0, m.ReleaseAll(a))

	b := m.NewOwner()
	require.NoError(t, m.AcquireLock("a", b, 0))
}
