package badger

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/dgraph-io/badger/v4"
)

// badgerTxn wraps one badger update transaction.
// Keys written by this transaction are remembered so that reads of those keys
// go through the update transaction (read-your-writes). All other reads are
// served from a fresh read-only transaction to get read committed semantics.
type badgerTxn struct {
	engine  *badgerEngine
	txn     *badger.Txn
	owner   uint64
	written map[string]struct{}
	cursor  *badgerCursor

	gid      []byte
	prepared bool
	closed   bool
}

func (t *badgerTxn) lock(key []byte) error {
	return mapError("lock row", t.engine.locks.AcquireLock(string(key), t.owner, t.engine.opts.LockTimeout))
}

// read returns the value of the table key k as seen by this transaction.
func (t *badgerTxn) read(k []byte) ([]byte, error) {
	var value []byte
	readItem := func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	}

	var err error
	if _, own := t.written[string(k)]; own {
		err = readItem(t.txn)
	} else {
		err = t.engine.db.View(readItem)
	}
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, db.ErrNotFound
		}
		return nil, mapError("get", err)
	}
	if value == nil {
		// badger returns nil for empty values, the caller must be able to tell them from absent ones
		value = []byte{}
	}
	return value, nil
}

func (t *badgerTxn) checkWritable() error {
	if t.closed {
		return db.ErrTxnClosed
	}
	if t.prepared {
		return db.ErrPrepared
	}
	return nil
}

func (t *badgerTxn) Get(table db.Table, key []byte, forUpdate bool) ([]byte, error) {
	if t.closed {
		return nil, db.ErrTxnClosed
	}
	k := tableKey(table, key)
	if forUpdate {
		if err := t.checkWritable(); err != nil {
			return nil, err
		}
		if err := t.lock(k); err != nil {
			return nil, err
		}
	}
	return t.read(k)
}

func (t *badgerTxn) Put(table db.Table, key []byte, value []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	k := tableKey(table, key)
	if err := t.lock(k); err != nil {
		return err
	}

	// badger keeps the slice until commit
	v := make([]byte, len(value))
	copy(v, value)
	if err := t.txn.Set(k, v); err != nil {
		return mapError("put", err)
	}
	t.written[string(k)] = struct{}{}
	return nil
}

func (t *badgerTxn) Delete(table db.Table, key []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	k := tableKey(table, key)
	if err := t.lock(k); err != nil {
		return err
	}
	if _, err := t.read(k); err != nil {
		return err
	}
	if err := t.txn.Delete(k); err != nil {
		return mapError("delete", err)
	}
	t.written[string(k)] = struct{}{}
	return nil
}

func (t *badgerTxn) Cursor(table db.Table) (db.Cursor, error) {
	if t.closed {
		return nil, db.ErrTxnClosed
	}
	if t.prepared {
		return nil, db.ErrPrepared
	}
	if t.cursor != nil {
		return nil, errors.New("cursor: a cursor is already open in this transaction")
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte{byte(table)}

	t.cursor = &badgerCursor{
		owner:  t,
		prefix: opts.Prefix,
		it:     t.txn.NewIterator(opts),
	}
	return t.cursor, nil
}

func (t *badgerTxn) Prepare(gid []byte) error {
	if t.closed {
		return db.ErrTxnClosed
	}
	if t.prepared {
		return db.ErrPrepared
	}
	if len(gid) != db.GIDSize {
		return fmt.Errorf("prepare: %w: got %d bytes, want %d", db.ErrInvalidGID, len(gid), db.GIDSize)
	}
	if t.cursor != nil {
		return errors.New("prepare: cursor must be closed first")
	}
	t.gid = append([]byte(nil), gid...)
	t.prepared = true
	return nil
}

func (t *badgerTxn) finish() {
	if t.cursor != nil {
		t.cursor.Close()
	}
	t.closed = true
	t.engine.locks.ReleaseAll(t.owner)
}

func (t *badgerTxn) Commit() error {
	if t.closed {
		return db.ErrTxnClosed
	}
	if t.cursor != nil {
		t.cursor.Close()
	}
	err := t.txn.Commit()
	t.finish()
	return mapError("commit", err)
}

func (t *badgerTxn) Abort() error {
	if t.closed {
		return db.ErrTxnClosed
	}
	if t.cursor != nil {
		t.cursor.Close()
	}
	t.txn.Discard()
	t.finish()
	return nil
}

// --------------------------------------------------------------------------
// Cursor
// --------------------------------------------------------------------------

type badgerCursor struct {
	owner  *badgerTxn
	prefix []byte
	it     *badger.Iterator
	closed bool
}

func (c *badgerCursor) current() ([]byte, bool, error) {
	if !c.it.ValidForPrefix(c.prefix) {
		return nil, false, nil
	}
	k := c.it.Item().KeyCopy(nil)
	return k[len(c.prefix):], true, nil
}

func (c *badgerCursor) First() ([]byte, bool, error) {
	if c.closed {
		return nil, false, db.ErrTxnClosed
	}
	c.it.Seek(c.prefix)
	return c.current()
}

func (c *badgerCursor) Seek(key []byte) ([]byte, bool, error) {
	if c.closed {
		return nil, false, db.ErrTxnClosed
	}
	c.it.Seek(append(append([]byte(nil), c.prefix...), key...))
	return c.current()
}

func (c *badgerCursor) Next() ([]byte, bool, error) {
	if c.closed {
		return nil, false, db.ErrTxnClosed
	}
	if !c.it.ValidForPrefix(c.prefix) {
		return nil, false, nil
	}
	c.it.Next()
	return c.current()
}

func (c *badgerCursor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.it.Close()
	if c.owner.cursor == c {
		c.owner.cursor = nil
	}
}
