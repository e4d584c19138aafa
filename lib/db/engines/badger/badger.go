package badger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/ValentinKolb/objstore/lib/lockmgr"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("db/badger")

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

type badgerEngine struct {
	opts  Options
	db    *badger.DB
	locks lockmgr.ILockManager

	stopGC chan struct{}
	gcDone sync.WaitGroup
}

// NewBadgerEngine opens (or creates) a badger database with the given options.
// Badger's own conflict detection is disabled, writers are serialized by row locks.
func NewBadgerEngine(opts Options) (db.Engine, error) {
	bOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	bOpts = bOpts.
		WithSyncWrites(opts.SyncWrites).
		WithDetectConflicts(false).
		WithBlockCacheSize(opts.BlockCacheSize).
		WithLogger(log)
	if opts.MemTableSize > 0 {
		bOpts = bOpts.WithMemTableSize(opts.MemTableSize)
	}
	if opts.ValueThreshold > 0 && !opts.InMemory {
		bOpts = bOpts.WithValueThreshold(opts.ValueThreshold)
	}

	bdb, err := badger.Open(bOpts)
	if err != nil {
		return nil, mapError("open badger", err)
	}

	e := &badgerEngine{
		opts:   opts,
		db:     bdb,
		locks:  lockmgr.NewLockManager(),
		stopGC: make(chan struct{}),
	}

	if opts.GCInterval > 0 && !opts.InMemory {
		e.gcDone.Add(1)
		go e.gcLoop()
	}

	log.Infof("opened badger engine (dir=%q, in-memory=%t, sync-writes=%t)", opts.Dir, opts.InMemory, opts.SyncWrites)
	return e, nil
}

// Factory returns a db.EngineFactory for the given options.
func Factory(opts Options) db.EngineFactory {
	return func() (db.Engine, error) {
		return NewBadgerEngine(opts)
	}
}

func (e *badgerEngine) gcLoop() {
	defer e.gcDone.Done()
	ticker := time.NewTicker(e.opts.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC collects at most one file per call
			for {
				err := e.db.RunValueLogGC(e.opts.GCDiscardRatio)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
						log.Warningf("value log gc failed: %v", err)
					}
					break
				}
			}
		}
	}
}

func (e *badgerEngine) Begin() (db.Txn, error) {
	if e.db.IsClosed() {
		return nil, fmt.Errorf("begin: %w", badger.ErrDBClosed)
	}
	return &badgerTxn{
		engine:  e,
		txn:     e.db.NewTransaction(true),
		owner:   e.locks.NewOwner(),
		written: make(map[string]struct{}),
	}, nil
}

func (e *badgerEngine) Info() db.DatabaseInfo {
	lsm, vlog := e.db.Size()
	return db.DatabaseInfo{
		SizeBytes: lsm + vlog,
		DbType:    db.ImplBadger,
		Metadata: map[string]interface{}{
			"lsm_size":  lsm,
			"vlog_size": vlog,
			"dir":       e.opts.Dir,
			"in_memory": e.opts.InMemory,
		},
	}
}

func (e *badgerEngine) Close() error {
	close(e.stopGC)
	e.gcDone.Wait()
	if err := e.db.Close(); err != nil {
		return mapError("close badger", err)
	}
	log.Infof("closed badger engine (dir=%q)", e.opts.Dir)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// tableKey prefixes key with the table byte.
func tableKey(table db.Table, key []byte) []byte {
	k := make([]byte, 1+len(key))
	k[0] = byte(table)
	copy(k[1:], key)
	return k
}
