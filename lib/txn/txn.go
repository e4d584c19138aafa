package txn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("txn")

// State is the lifecycle state of a Transaction.
type State int

const (
	StateActive State = iota
	StatePreparing
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePreparing:
		return "preparing"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrNotActive is returned when joining, committing or aborting a finished transaction.
	ErrNotActive = errors.New("transaction is not active")
)

// Option configures a new Transaction.
type Option func(*Transaction)

// WithID sets the id of the transaction instead of a random uuid.
func WithID(id []byte) Option {
	return func(t *Transaction) {
		t.id = append([]byte(nil), id...)
	}
}

// Transaction is a minimal two-phase commit coordinator implementing
// store.Transaction.
//
// Thread-safety: all methods are safe for concurrent use. Participants are
// called without holding the internal mutex.
type Transaction struct {
	id []byte

	mu           sync.Mutex
	state        State
	participants []store.IParticipant
	cause        error
}

var _ store.Transaction = (*Transaction)(nil)

// New creates an active transaction.
func New(opts ...Option) *Transaction {
	t := &Transaction{}
	for _, opt := range opts {
		opt(t)
	}
	if t.id == nil {
		u := uuid.New()
		t.id = u[:]
	}
	return t
}

func (t *Transaction) ID() []byte {
	return t.id
}

func (t *Transaction) String() string {
	if u, err := uuid.FromBytes(t.id); err == nil {
		return "txn(" + u.String() + ")"
	}
	return fmt.Sprintf("txn(%x)", t.id)
}

// State returns the current state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cause returns the error passed to Abort, or the failure that aborted Commit.
func (t *Transaction) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Join registers p. Joining the same participant twice is a no-op.
func (t *Transaction) Join(p store.IParticipant) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return fmt.Errorf("join %s: %w (%s)", t, ErrNotActive, t.state)
	}
	for _, existing := range t.participants {
		if existing == p {
			return nil
		}
	}
	t.participants = append(t.participants, p)
	return nil
}

// begin moves the transaction out of StateActive and returns the participants.
func (t *Transaction) begin(next State) ([]store.IParticipant, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return nil, fmt.Errorf("%s: %w (%s)", t, ErrNotActive, t.state)
	}
	t.state = next
	return append([]store.IParticipant(nil), t.participants...), nil
}

func (t *Transaction) end(state State, cause error) {
	t.mu.Lock()
	t.state = state
	if cause != nil && t.cause == nil {
		t.cause = cause
	}
	t.mu.Unlock()
}

// Commit commits the transaction. A single participant is committed with
// PrepareAndCommit, several with a two-phase commit. If a participant fails to
// prepare, all others are aborted and the prepare error is returned.
func (t *Transaction) Commit() error {
	participants, err := t.begin(StatePreparing)
	if err != nil {
		return err
	}

	switch len(participants) {
	case 0:
		t.end(StateCommitted, nil)
		return nil
	case 1:
		if err := participants[0].PrepareAndCommit(t); err != nil {
			// a failed PrepareAndCommit leaves the session open
			if abortErr := participants[0].Abort(t); abortErr != nil {
				log.Debugf("%s: abort after failed commit: %v", t, abortErr)
			}
			t.end(StateAborted, err)
			return err
		}
		t.end(StateCommitted, nil)
		return nil
	}

	var prepared []store.IParticipant
	for i, p := range participants {
		readOnly, err := p.Prepare(t)
		if err != nil {
			log.Infof("%s: prepare failed, aborting: %v", t, err)
			t.abortAll(append(prepared, participants[i:]...))
			t.end(StateAborted, err)
			return err
		}
		if !readOnly {
			prepared = append(prepared, p)
		}
	}

	var errs []error
	for _, p := range prepared {
		if err := p.Commit(t); err != nil {
			log.Errorf("%s: commit of prepared participant failed: %v", t, err)
			errs = append(errs, err)
		}
	}
	err = errors.Join(errs...)
	t.end(StateCommitted, err)
	return err
}

// Abort aborts the transaction and every participant. cause may be nil.
func (t *Transaction) Abort(cause error) error {
	participants, err := t.begin(StateAborted)
	if err != nil {
		return err
	}
	err = t.abortAll(participants)
	t.end(StateAborted, cause)
	return err
}

func (t *Transaction) abortAll(participants []store.IParticipant) error {
	var errs []error
	for _, p := range participants {
		if err := p.Abort(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run executes fn in a new transaction and commits it if fn returns nil.
// Otherwise the transaction is aborted and the error of fn is returned.
func Run(fn func(t *Transaction) error, opts ...Option) error {
	t := New(opts...)
	if err := fn(t); err != nil {
		if abortErr := t.Abort(err); abortErr != nil {
			log.Debugf("%s: abort: %v", t, abortErr)
		}
		return err
	}
	return t.Commit()
}
