package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/objstore/lib/db/engines/badger"
	"github.com/ValentinKolb/objstore/lib/txn"
	"github.com/stretchr/testify/require"
)

// testConfig returns a configuration with small blocks so tests reach the slow path quickly.
func testConfig(t *testing.T) Config {
	cfg := DefaultConfig(t.TempDir())
	cfg.FreeBlockSize = MinFreeBlockSize
	cfg.AllocationSize = 4
	cfg.TxnTimeout = 2 * time.Second
	return cfg
}

// newTestStore opens an in-memory store, modify may change the configuration first.
func newTestStore(t *testing.T, modify func(cfg *Config)) *Store {
	t.Helper()
	cfg := testConfig(t)
	if modify != nil {
		modify(&cfg)
	}
	normalized, err := cfg.normalize()
	require.NoError(t, err)

	opts := normalized.engineOptions()
	opts.InMemory = true
	opts.GCInterval = 0

	ds, err := NewWithEngine(cfg, badger.Factory(opts))
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(ds) })
	return ds
}

// shutdown closes ds if it is still open.
func shutdown(ds *Store) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = ds.Shutdown(ctx)
}

// inTx runs fn in a new transaction and commits it.
func inTx(t *testing.T, fn func(tx *txn.Transaction)) {
	t.Helper()
	tx := txn.New()
	fn(tx)
	require.NoError(t, tx.Commit())
}
