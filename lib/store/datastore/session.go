package datastore

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/ValentinKolb/objstore/lib/store"
)

// session binds one external transaction to one engine transaction.
//
// Thread-safety: mu serializes all operations of the session. The fields
// below mu are only accessed with mu held.
type session struct {
	mu sync.Mutex

	txn     store.Transaction
	id      string
	dbTxn   db.Txn
	created time.Time

	modified bool
	prepared bool
	aborted  bool // the engine transaction was aborted after a conflict or timeout
	finished bool

	// allocation hint, see noteOID
	hint           int64
	hintForUpdate  bool
	allocPerformed bool

	cursor        db.Cursor
	lastCursorKey *string

	// blocks claimed by this session, released when it ends
	claimed []*freeBlock
}

func newSession(txn store.Transaction, dbTxn db.Txn) *session {
	return &session{
		txn:     txn,
		id:      string(txn.ID()),
		dbTxn:   dbTxn,
		created: time.Now(),
		hint:    -1,
	}
}

// noteOID records oid as the allocation hint. Until the session allocated an
// id itself, a hint from a write is only replaced by another write; after an
// allocation only allocations move the hint.
func (s *session) noteOID(oid int64, forUpdate bool) {
	switch {
	case s.hint < 0:
		s.hint = oid
		s.hintForUpdate = forUpdate
	case s.allocPerformed:
	case !s.hintForUpdate:
		s.hint = oid
		s.hintForUpdate = forUpdate
	case forUpdate:
		s.hint = oid
	}
}

func (s *session) noteAllocation(oid int64) {
	s.hint = oid
	s.hintForUpdate = true
	s.allocPerformed = true
}

func (s *session) closeCursor() {
	if s.cursor != nil {
		s.cursor.Close()
		s.cursor = nil
	}
	s.lastCursorKey = nil
}

// gid returns the transaction id right aligned in a db.GIDSize token.
func (s *session) gid() []byte {
	g := make([]byte, db.GIDSize)
	copy(g[db.GIDSize-len(s.id):], s.id)
	return g
}

func (s *session) String() string {
	return "txn(" + printableID(s.id) + ")"
}

// printableID shortens binary or long ids for log output.
func printableID(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] < 0x20 || id[i] > 0x7e {
			if len(id) > 20 {
				id = id[:20]
			}
			return "0x" + hex.EncodeToString([]byte(id))
		}
	}
	if len(id) > 40 {
		return id[:37] + "..."
	}
	return id
}
