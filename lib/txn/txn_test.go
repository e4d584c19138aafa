package txn

import (
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a participant that records the calls it receives.
type recorder struct {
	mu         sync.Mutex
	calls      []string
	readOnly   bool
	prepareErr error
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) Prepare(store.Transaction) (bool, error) {
	r.record("prepare")
	return r.readOnly, r.prepareErr
}

func (r *recorder) Commit(store.Transaction) error {
	r.record("commit")
	return nil
}

func (r *recorder) PrepareAndCommit(store.Transaction) error {
	r.record("prepareAndCommit")
	return r.prepareErr
}

func (r *recorder) Abort(store.Transaction) error {
	r.record("abort")
	return nil
}

func TestNewID(t *testing.T) {
	a, b := New(), New()
	assert.Len(t, a.ID(), 16)
	assert.NotEqual(t, a.ID(), b.ID())

	c := New(WithID([]byte("fixed")))
	assert.Equal(t, []byte("fixed"), c.ID())
	assert.Equal(t, "txn(6669786564)", c.String())
}

func TestCommitNoParticipants(t *testing.T) {
	tx := New()
	require.NoError(t, tx.Commit())
	assert.Equal(t, StateCommitted, tx.State())
}

func TestCommitSingleParticipant(t *testing.T) {
	tx := New()
	p := &recorder{}
	require.NoError(t, tx.Join(p))
	require.NoError(t, tx.Join(p))
	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"prepareAndCommit"}, p.calls)
}

func TestCommitTwoPhase(t *testing.T) {
	tx := New()
	writer, reader := &recorder{}, &recorder{readOnly: true}
	require.NoError(t, tx.Join(writer))
	require.NoError(t, tx.Join(reader))
	require.NoError(t, tx.Commit())

	assert.Equal(t, []string{"prepare", "commit"}, writer.calls)
	assert.Equal(t, []string{"prepare"}, reader.calls)
	assert.Equal(t, StateCommitted, tx.State())
}

func TestCommitPrepareFailure(t *testing.T) {
	tx := New()
	boom := errors.New("boom")
	first, failing, last := &recorder{}, &recorder{prepareErr: boom}, &recorder{}
	for _, p := range []*recorder{first, failing, last} {
		require.NoError(t, tx.Join(p))
	}

	err := tx.Commit()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateAborted, tx.State())
	assert.ErrorIs(t, tx.Cause(), boom)

	assert.Equal(t, []string{"prepare", "abort"}, first.calls)
	assert.Equal(t, []string{"prepare", "abort"}, failing.calls)
	assert.Equal(t, []string{"abort"}, last.calls)
}

func TestAbort(t *testing.T) {
	tx := New()
	p := &recorder{}
	require.NoError(t, tx.Join(p))

	cause := errors.New("user abort")
	require.NoError(t, tx.Abort(cause))
	assert.Equal(t, []string{"abort"}, p.calls)
	assert.Equal(t, StateAborted, tx.State())

	assert.ErrorIs(t, tx.Join(&recorder{}), ErrNotActive)
	assert.ErrorIs(t, tx.Commit(), ErrNotActive)
	assert.ErrorIs(t, tx.Abort(nil), ErrNotActive)
	assert.Equal(t, []string{"abort"}, p.calls)
}

func TestRun(t *testing.T) {
	p := &recorder{}
	require.NoError(t, Run(func(tx *Transaction) error {
		return tx.Join(p)
	}))
	assert.Equal(t, []string{"prepareAndCommit"}, p.calls)

	failed := &recorder{}
	boom := errors.New("boom")
	err := Run(func(tx *Transaction) error {
		require.NoError(t, tx.Join(failed))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"abort"}, failed.calls)
}
