package datastore

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/ValentinKolb/objstore/lib/db/engines/badger"
	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("datastore")

type storeState int

const (
	stateOpen storeState = iota
	stateShuttingDown
	stateClosed
)

// Store is the transactional object store (store.IDataStore) on top of a db.Engine.
type Store struct {
	cfg    Config
	engine db.Engine

	sessions *xsync.MapOf[string, *session]
	alloc    *allocator
	stats    *storeStats

	// stateMu guards state, active and waiters, cond is signalled when active drops to zero
	stateMu sync.Mutex
	cond    *sync.Cond
	state   storeState
	active  int64
	waiters int

	fatal atomic.Pointer[store.FatalError]
}

var _ store.IDataStore = (*Store)(nil)

// New opens (or creates) the store in cfg.Directory using the badger engine.
func New(cfg Config) (*Store, error) {
	return NewWithEngine(cfg, nil)
}

// NewWithEngine opens the store on the engine created by factory.
// A nil factory opens a badger engine configured from cfg.
func NewWithEngine(cfg Config, factory db.EngineFactory) (*Store, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if factory == nil {
		factory = badger.Factory(cfg.engineOptions())
	}

	engine, err := factory()
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, err, "open engine")
	}

	hdr, err := loadOrCreateHeader(engine, cfg.FreeBlockSize)
	if err != nil {
		_ = engine.Close()
		return nil, store.WrapError(store.RetCInternalError, err, "read store header")
	}
	if hdr.freeBlockSize != cfg.FreeBlockSize {
		log.Infof("using persisted free block size %d instead of %d", hdr.freeBlockSize, cfg.FreeBlockSize)
		cfg.FreeBlockSize = hdr.freeBlockSize
		cfg.AllocationSize = roundAllocationSize(cfg.AllocationSize, cfg.FreeBlockSize)
	}

	s := &Store{
		cfg:      cfg,
		engine:   engine,
		sessions: xsync.NewMapOf[string, *session](),
		stats:    newStoreStats(),
	}
	s.cond = sync.NewCond(&s.stateMu)
	s.alloc = newAllocator(cfg.FreeBlockSize, cfg.AllocationSize, hdr.freeIDs, func(ids []int64) error {
		return writeFreeIDs(engine, ids)
	}, s.stats)

	log.Infof("opened %s%s", s, cfg)
	return s, nil
}

func (s *Store) String() string {
	return fmt.Sprintf("DataStore[directory=%q]", s.cfg.Directory)
}

// Config returns the effective (normalized) configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Info returns the statistics of the backing engine.
func (s *Store) Info() db.DatabaseInfo {
	return s.engine.Info()
}

// WriteMetrics writes the store metrics in the Prometheus text format.
func (s *Store) WriteMetrics(w io.Writer) {
	s.stats.writePrometheus(w)
}

// --------------------------------------------------------------------------
// Session handling
// --------------------------------------------------------------------------

// joinTxn returns the session of txn, creating it if needed.
func (s *Store) joinTxn(txn store.Transaction) (*session, error) {
	if txn == nil {
		return nil, store.NewError(store.RetCInvalidArgument, "transaction must not be nil")
	}
	if f := s.fatal.Load(); f != nil {
		return nil, f
	}
	id := txn.ID()
	if len(id) > db.GIDSize {
		return nil, store.Errorf(store.RetCInvalidArgument, "transaction id longer than %d bytes", db.GIDSize)
	}
	if sess, ok := s.sessions.Load(string(id)); ok {
		return sess, nil
	}

	s.stateMu.Lock()
	switch s.state {
	case stateShuttingDown:
		s.stateMu.Unlock()
		return nil, store.NewError(store.RetCWrongState, "DataStore is shutting down")
	case stateClosed:
		s.stateMu.Unlock()
		return nil, store.NewError(store.RetCWrongState, "DataStore is shut down")
	}
	s.active++
	s.stateMu.Unlock()

	dbTxn, err := s.engine.Begin()
	if err != nil {
		s.sessionDone()
		return nil, s.convertError(nil, err, "begin transaction")
	}

	sess := newSession(txn, dbTxn)
	if existing, loaded := s.sessions.LoadOrStore(sess.id, sess); loaded {
		_ = dbTxn.Abort()
		s.sessionDone()
		return existing, nil
	}

	if err := txn.Join(s); err != nil {
		s.sessions.Delete(sess.id)
		_ = dbTxn.Abort()
		s.sessionDone()
		return nil, store.WrapError(store.RetCWrongState, err, "joining transaction failed")
	}

	s.stats.joins.Inc()
	joins := s.stats.joins.Get()
	log.Debugf("%s: joined", sess)
	if s.cfg.LogStats > 0 && joins%uint64(s.cfg.LogStats) == 0 {
		s.logStats()
	}
	return sess, nil
}

// sessionDone decrements the active session count and wakes a waiting Shutdown.
func (s *Store) sessionDone() {
	s.stateMu.Lock()
	s.active--
	if s.active == 0 {
		s.cond.Broadcast()
	}
	s.stateMu.Unlock()
}

// checkTxn joins txn if needed and returns its locked, active session.
// The caller must unlock sess.mu.
func (s *Store) checkTxn(txn store.Transaction) (*session, error) {
	sess, err := s.joinTxn(txn)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	if err := s.checkActive(sess, txn); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	if sess.prepared {
		sess.mu.Unlock()
		return nil, store.Errorf(store.RetCWrongState, "%s has already been prepared", sess)
	}
	return sess, nil
}

// checkTxnNoJoin returns the locked session of txn, which must exist.
// Unlike checkTxn it works after a fatal error so sessions can still be aborted.
// The caller must unlock sess.mu.
func (s *Store) checkTxnNoJoin(txn store.Transaction, checkTimeout bool) (*session, error) {
	if txn == nil {
		return nil, store.NewError(store.RetCInvalidArgument, "transaction must not be nil")
	}
	sess, ok := s.sessions.Load(string(txn.ID()))
	if !ok {
		s.stateMu.Lock()
		closed := s.state == stateClosed
		s.stateMu.Unlock()
		if closed {
			return nil, store.NewError(store.RetCWrongState, "DataStore is shut down")
		}
		return nil, store.NewError(store.RetCWrongState, "transaction is not active")
	}
	sess.mu.Lock()
	if sess.txn != txn {
		sess.mu.Unlock()
		return nil, store.Errorf(store.RetCWrongState, "wrong transaction: %s belongs to another handle", sess)
	}
	if sess.finished {
		sess.mu.Unlock()
		return nil, store.Errorf(store.RetCWrongState, "%s is not active", sess)
	}
	if checkTimeout {
		if err := s.checkTimeout(sess); err != nil {
			sess.mu.Unlock()
			return nil, err
		}
	}
	return sess, nil
}

// checkActive verifies that sess may run another operation for txn. sess.mu must be held.
func (s *Store) checkActive(sess *session, txn store.Transaction) error {
	switch {
	case sess.txn != txn:
		return store.Errorf(store.RetCWrongState, "wrong transaction: %s belongs to another handle", sess)
	case sess.finished:
		return store.Errorf(store.RetCWrongState, "%s is not active", sess)
	case sess.aborted:
		return store.Errorf(store.RetCWrongState, "%s has been aborted", sess)
	}
	return s.checkTimeout(sess)
}

// checkTimeout fails and aborts the engine transaction of sess once it is older than the timeout.
func (s *Store) checkTimeout(sess *session) error {
	if age := time.Since(sess.created); age > s.cfg.TxnTimeout {
		s.abortEngineTxn(sess)
		return store.Errorf(store.RetCTransactionTimeout, "%s timed out after %s", sess, age.Round(time.Millisecond))
	}
	return nil
}

// abortEngineTxn aborts the engine transaction of sess ahead of the coordinator,
// whose later Abort then only finishes the bookkeeping. sess.mu must be held.
func (s *Store) abortEngineTxn(sess *session) {
	if sess.aborted || sess.finished {
		return
	}
	sess.closeCursor()
	if err := sess.dbTxn.Abort(); err != nil {
		log.Warningf("%s: aborting engine transaction failed: %v", sess, err)
	}
	sess.aborted = true
	s.alloc.release(sess)
}

// finish ends sess: the engine transaction is committed (or aborted), claimed
// blocks are released and the session is removed. sess.mu must be held.
func (s *Store) finish(sess *session, commit bool) error {
	sess.closeCursor()
	s.alloc.release(sess)

	var err error
	switch {
	case sess.aborted:
		// the engine transaction is already gone
	case commit:
		err = sess.dbTxn.Commit()
	default:
		err = sess.dbTxn.Abort()
	}
	sess.finished = true
	s.sessions.Delete(sess.id)
	s.sessionDone()
	s.stats.sessionEnded(sess.created)

	if commit && err == nil {
		s.stats.commits.Inc()
	} else {
		s.stats.aborts.Inc()
	}
	if err != nil {
		return s.convertError(sess, err, "finish transaction")
	}
	return nil
}

// --------------------------------------------------------------------------
// Participant (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Join(txn store.Transaction) error {
	_, err := s.joinTxn(txn)
	return err
}

func (s *Store) Prepare(txn store.Transaction) (bool, error) {
	if f := s.fatal.Load(); f != nil {
		return false, f
	}
	sess, err := s.checkTxnNoJoin(txn, true)
	if err != nil {
		return false, err
	}
	defer sess.mu.Unlock()

	if sess.prepared {
		return false, store.Errorf(store.RetCWrongState, "%s has already been prepared", sess)
	}
	if sess.aborted {
		return false, store.Errorf(store.RetCWrongState, "%s has been aborted", sess)
	}
	s.stats.prepareRate.Mark(1)

	if !sess.modified {
		s.stats.readOnly.Inc()
		log.Debugf("%s: prepared read-only", sess)
		return true, s.finish(sess, true)
	}

	sess.closeCursor()
	sess.prepared = true
	if err := sess.dbTxn.Prepare(sess.gid()); err != nil {
		return false, s.convertError(sess, err, "prepare")
	}
	log.Debugf("%s: prepared", sess)
	return false, nil
}

func (s *Store) Commit(txn store.Transaction) error {
	if f := s.fatal.Load(); f != nil {
		return f
	}
	sess, err := s.checkTxnNoJoin(txn, false)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if !sess.prepared {
		return store.Errorf(store.RetCWrongState, "%s has not been prepared", sess)
	}
	log.Debugf("%s: commit", sess)
	return s.finish(sess, true)
}

func (s *Store) PrepareAndCommit(txn store.Transaction) error {
	if f := s.fatal.Load(); f != nil {
		return f
	}
	sess, err := s.checkTxnNoJoin(txn, true)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if sess.prepared {
		return store.Errorf(store.RetCWrongState, "%s has already been prepared", sess)
	}
	if sess.aborted {
		return store.Errorf(store.RetCWrongState, "%s has been aborted", sess)
	}
	log.Debugf("%s: prepare and commit (modified=%t)", sess, sess.modified)
	if !sess.modified {
		s.stats.readOnly.Inc()
	}
	return s.finish(sess, true)
}

func (s *Store) Abort(txn store.Transaction) error {
	sess, err := s.checkTxnNoJoin(txn, false)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	log.Debugf("%s: abort", sess)
	return s.finish(sess, false)
}

// --------------------------------------------------------------------------
// Store lifecycle
// --------------------------------------------------------------------------

func (s *Store) NextTxnID(count int64) (int64, error) {
	if f := s.fatal.Load(); f != nil {
		return 0, f
	}
	if count < 1 {
		return 0, store.Errorf(store.RetCInvalidArgument, "count must be positive, got %d", count)
	}
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	first, err := reserveTxnIDs(s.engine, count)
	if err != nil {
		return 0, s.convertError(nil, err, "reserve transaction ids")
	}
	return first, nil
}

func (s *Store) checkOpen() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == stateClosed {
		return store.NewError(store.RetCWrongState, "DataStore is shut down")
	}
	return nil
}

func (s *Store) Shutdown(ctx context.Context) (bool, error) {
	s.stateMu.Lock()
	if s.state == stateClosed {
		s.stateMu.Unlock()
		return false, store.NewError(store.RetCWrongState, "DataStore is shut down")
	}
	s.state = stateShuttingDown
	s.waiters++
	log.Infof("shutting down %s (%d active sessions)", s, s.active)

	stop := context.AfterFunc(ctx, func() {
		s.stateMu.Lock()
		s.cond.Broadcast()
		s.stateMu.Unlock()
	})
	defer stop()

	for s.active > 0 {
		if ctx.Err() != nil {
			s.waiters--
			// joins stay refused while another Shutdown is still waiting
			if s.waiters == 0 {
				s.state = stateOpen
			}
			s.stateMu.Unlock()
			log.Infof("shutdown of %s canceled: %v", s, ctx.Err())
			return false, nil
		}
		s.cond.Wait()
	}
	s.waiters--
	if s.state == stateClosed {
		// closed by a concurrent Shutdown
		s.stateMu.Unlock()
		return true, nil
	}
	s.state = stateClosed
	s.stateMu.Unlock()

	if s.cfg.LogStats > 0 {
		s.logStats()
	}
	err := s.engine.Close()
	s.stats.stop()
	if err != nil {
		return true, s.convertError(nil, err, "close engine")
	}
	log.Infof("%s shut down", s)
	return true, nil
}

// logStats logs the engine info and the operation counters.
func (s *Store) logStats() {
	info := s.engine.Info()
	log.Infof("%s statistics: engine=%s size=%d bytes, free blocks=%d\n%s",
		s, info.DbType, info.SizeBytes, s.alloc.size(), s.stats.summary())
}
