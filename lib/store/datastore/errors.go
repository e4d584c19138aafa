package datastore

import (
	"errors"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/ValentinKolb/objstore/lib/store"
)

// convertError translates an engine error into the error reported to callers.
// Lock timeouts and conflicts abort the engine transaction of sess (if any),
// corruption makes the store unusable. sess.mu must be held when sess is not nil.
func (s *Store) convertError(sess *session, err error, op string) error {
	if err == nil {
		return nil
	}

	var se *store.Error
	var fe *store.FatalError
	if errors.As(err, &se) || errors.As(err, &fe) {
		return err
	}

	switch {
	case errors.Is(err, db.ErrCorrupted):
		fatal := &store.FatalError{Msg: op + ": database is corrupted", Cause: err}
		if s.fatal.CompareAndSwap(nil, fatal) {
			log.Errorf("%s: %v", s, fatal)
		}
		return s.fatal.Load()

	case errors.Is(err, db.ErrLockTimeout):
		s.abortSession(sess)
		return store.WrapError(store.RetCTransactionTimeout, err, op+": lock wait timed out")

	case errors.Is(err, db.ErrDeadlock):
		s.abortSession(sess)
		return store.WrapError(store.RetCTransactionConflict, err, op+": deadlock")

	case errors.Is(err, db.ErrConflict):
		s.abortSession(sess)
		return store.WrapError(store.RetCTransactionConflict, err, op+": conflict")

	case errors.Is(err, db.ErrPrepared), errors.Is(err, db.ErrTxnClosed):
		return store.WrapError(store.RetCWrongState, err, op)

	case errors.Is(err, db.ErrInvalidGID):
		return store.WrapError(store.RetCInvalidArgument, err, op)

	case errors.Is(err, db.ErrTxnTooBig):
		return store.WrapError(store.RetCInvalidArgument, err, op+": transaction exceeds the engine batch limit")
	}

	log.Warningf("%s: %s: %v", s, op, err)
	return store.WrapError(store.RetCInternalError, err, op)
}

func (s *Store) abortSession(sess *session) {
	if sess == nil {
		return
	}
	log.Debugf("%s: aborting engine transaction", sess)
	s.abortEngineTxn(sess)
}
