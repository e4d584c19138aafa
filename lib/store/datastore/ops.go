package datastore

import (
	"errors"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/ValentinKolb/objstore/lib/store"
)

// --------------------------------------------------------------------------
// Objects (docu see store/interface.go)
// --------------------------------------------------------------------------

func checkID(oid int64) error {
	if oid < 0 {
		return store.Errorf(store.RetCInvalidArgument, "object id must not be negative, got %d", oid)
	}
	return nil
}

func objectKey(oid int64) []byte {
	return encodeInt64(oid)
}

func (s *Store) CreateObject(txn store.Transaction) (int64, error) {
	return s.CreateObjectNear(txn, store.NearUnspecified)
}

func (s *Store) CreateObjectNear(txn store.Transaction, near store.Near) (int64, error) {
	if near < store.NearNewRegion {
		return -1, store.Errorf(store.RetCInvalidArgument, "invalid placement hint %d", int64(near))
	}
	sess, err := s.checkTxn(txn)
	if err != nil {
		return -1, err
	}
	defer sess.mu.Unlock()
	s.stats.op(opCreateObject)

	hint, newRegion := int64(near), near == store.NearNewRegion
	switch near {
	case store.NearUnspecified:
		hint = sess.hint
	case store.NearNewRegion:
		hint = -1
	}

	oid, err := s.alloc.allocate(sess, hint, newRegion)
	if err != nil {
		return -1, s.convertError(sess, err, "allocate object id")
	}
	sess.noteAllocation(oid)
	log.Debugf("%s: created object %d (%s)", sess, oid, near)
	return oid, nil
}

func (s *Store) MarkForUpdate(txn store.Transaction, oid int64) error {
	if err := checkID(oid); err != nil {
		return err
	}
	sess, err := s.checkTxn(txn)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	s.stats.op(opMarkForUpdate)

	if _, err := s.getObject(sess, oid, true); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetObject(txn store.Transaction, oid int64, forUpdate bool) ([]byte, error) {
	if err := checkID(oid); err != nil {
		return nil, err
	}
	sess, err := s.checkTxn(txn)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	if forUpdate {
		s.stats.op(opGetObjectForUpdate)
	} else {
		s.stats.op(opGetObject)
	}

	data, err := s.getObject(sess, oid, forUpdate)
	if err != nil {
		return nil, err
	}
	s.stats.read(len(data))
	return data, nil
}

// getObject reads oid in sess and moves the hint. sess.mu must be held.
func (s *Store) getObject(sess *session, oid int64, forUpdate bool) ([]byte, error) {
	data, err := sess.dbTxn.Get(db.TableObjects, objectKey(oid), forUpdate)
	if errors.Is(err, db.ErrNotFound) {
		return nil, store.Errorf(store.RetCObjectNotFound, "object %d not found", oid)
	}
	if err != nil {
		return nil, s.convertError(sess, err, "get object")
	}
	sess.noteOID(oid, forUpdate)
	log.Debugf("%s: get object %d (forUpdate=%t, %d bytes)", sess, oid, forUpdate, len(data))
	return data, nil
}

func (s *Store) SetObject(txn store.Transaction, oid int64, data []byte) error {
	if err := checkID(oid); err != nil {
		return err
	}
	if data == nil {
		return store.NewError(store.RetCInvalidArgument, "object data must not be nil")
	}
	sess, err := s.checkTxn(txn)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	s.stats.op(opSetObject)

	if err := s.putObject(sess, oid, data); err != nil {
		return err
	}
	sess.noteOID(oid, true)
	return nil
}

func (s *Store) SetObjects(txn store.Transaction, oids []int64, data [][]byte) error {
	if len(oids) == 0 {
		return store.NewError(store.RetCInvalidArgument, "no objects given")
	}
	if len(oids) != len(data) {
		return store.Errorf(store.RetCInvalidArgument, "%d object ids but %d data values", len(oids), len(data))
	}
	for i, oid := range oids {
		if err := checkID(oid); err != nil {
			return err
		}
		if data[i] == nil {
			return store.Errorf(store.RetCInvalidArgument, "data of object %d must not be nil", oid)
		}
	}
	sess, err := s.checkTxn(txn)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	s.stats.op(opSetObjects)

	for i, oid := range oids {
		if err := s.putObject(sess, oid, data[i]); err != nil {
			return err
		}
	}
	sess.noteOID(oids[0], true)
	return nil
}

// putObject writes oid in sess. sess.mu must be held.
func (s *Store) putObject(sess *session, oid int64, data []byte) error {
	if err := sess.dbTxn.Put(db.TableObjects, objectKey(oid), data); err != nil {
		return s.convertError(sess, err, "set object")
	}
	sess.modified = true
	s.stats.written(len(data))
	log.Debugf("%s: set object %d (%d bytes)", sess, oid, len(data))
	return nil
}

func (s *Store) RemoveObject(txn store.Transaction, oid int64) error {
	if err := checkID(oid); err != nil {
		return err
	}
	sess, err := s.checkTxn(txn)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	s.stats.op(opRemoveObject)

	err = sess.dbTxn.Delete(db.TableObjects, objectKey(oid))
	if errors.Is(err, db.ErrNotFound) {
		return store.Errorf(store.RetCObjectNotFound, "object %d not found", oid)
	}
	if err != nil {
		return s.convertError(sess, err, "remove object")
	}
	sess.modified = true
	log.Debugf("%s: removed object %d", sess, oid)
	return nil
}

// --------------------------------------------------------------------------
// Bindings (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) GetBinding(txn store.Transaction, name string) (int64, error) {
	sess, err := s.checkTxn(txn)
	if err != nil {
		return -1, err
	}
	defer sess.mu.Unlock()
	s.stats.op(opGetBinding)

	raw, err := sess.dbTxn.Get(db.TableNames, []byte(name), false)
	if errors.Is(err, db.ErrNotFound) {
		return -1, store.Errorf(store.RetCNameNotBound, "name %q is not bound", name)
	}
	if err != nil {
		return -1, s.convertError(sess, err, "get binding")
	}
	oid, err := decodeInt64(raw)
	if err != nil {
		return -1, s.convertError(sess, err, "decode binding")
	}
	log.Debugf("%s: get binding %q -> %d", sess, name, oid)
	return oid, nil
}

func (s *Store) SetBinding(txn store.Transaction, name string, oid int64) error {
	if err := checkID(oid); err != nil {
		return err
	}
	sess, err := s.checkTxn(txn)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	s.stats.op(opSetBinding)

	// the cursor does not see writes made after it was opened
	sess.closeCursor()
	if err := sess.dbTxn.Put(db.TableNames, []byte(name), encodeInt64(oid)); err != nil {
		return s.convertError(sess, err, "set binding")
	}
	sess.modified = true
	log.Debugf("%s: set binding %q -> %d", sess, name, oid)
	return nil
}

func (s *Store) RemoveBinding(txn store.Transaction, name string) error {
	sess, err := s.checkTxn(txn)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	s.stats.op(opRemoveBinding)

	sess.closeCursor()
	err = sess.dbTxn.Delete(db.TableNames, []byte(name))
	if errors.Is(err, db.ErrNotFound) {
		return store.Errorf(store.RetCNameNotBound, "name %q is not bound", name)
	}
	if err != nil {
		return s.convertError(sess, err, "remove binding")
	}
	sess.modified = true
	log.Debugf("%s: removed binding %q", sess, name)
	return nil
}

func (s *Store) FirstBoundName(txn store.Transaction) (string, bool, error) {
	return s.nextBoundName(txn, nil)
}

func (s *Store) NextBoundName(txn store.Transaction, name string) (string, bool, error) {
	return s.nextBoundName(txn, &name)
}

// nextBoundName steps the session cursor when after is the name it returned
// last and repositions it otherwise. A nil after starts at the first name.
func (s *Store) nextBoundName(txn store.Transaction, after *string) (string, bool, error) {
	sess, err := s.checkTxn(txn)
	if err != nil {
		return "", false, err
	}
	defer sess.mu.Unlock()
	s.stats.op(opNextBoundName)

	if sess.cursor == nil {
		if sess.cursor, err = sess.dbTxn.Cursor(db.TableNames); err != nil {
			sess.cursor = nil
			return "", false, s.convertError(sess, err, "open cursor")
		}
		sess.lastCursorKey = nil
	}

	var (
		key []byte
		ok  bool
	)
	switch {
	case after == nil:
		key, ok, err = sess.cursor.First()
	case sess.lastCursorKey != nil && *sess.lastCursorKey == *after:
		key, ok, err = sess.cursor.Next()
	default:
		key, ok, err = sess.cursor.Seek([]byte(*after))
		if err == nil && ok && string(key) == *after {
			key, ok, err = sess.cursor.Next()
		}
	}
	if err != nil {
		sess.closeCursor()
		return "", false, s.convertError(sess, err, "iterate bindings")
	}
	if !ok {
		sess.lastCursorKey = nil
		return "", false, nil
	}
	name := string(key)
	sess.lastCursorKey = &name
	return name, true, nil
}
