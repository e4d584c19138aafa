package badger

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/ValentinKolb/objstore/lib/lockmgr"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/y"
)

// mapError converts badger and lock manager errors into the db sentinels.
// The original error is kept in the message.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return db.ErrNotFound
	case errors.Is(err, lockmgr.ErrTimeout):
		return fmt.Errorf("%s: %w", op, db.ErrLockTimeout)
	case errors.Is(err, lockmgr.ErrDeadlock):
		return fmt.Errorf("%s: %w", op, db.ErrDeadlock)
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%s: %w", op, db.ErrConflict)
	case errors.Is(err, badger.ErrTxnTooBig):
		return fmt.Errorf("%s: %w", op, db.ErrTxnTooBig)
	case errors.Is(err, badger.ErrDiscardedTxn):
		return fmt.Errorf("%s: %w", op, db.ErrTxnClosed)
	case errors.Is(err, y.ErrChecksumMismatch), errors.Is(err, badger.ErrTruncateNeeded):
		return fmt.Errorf("%s: %w: %v", op, db.ErrCorrupted, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
