package datastore

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/objstore/lib/db"
	"github.com/stretchr/testify/assert"
)

func TestNoteOID(t *testing.T) {
	s := &session{hint: -1}

	s.noteOID(5, false)
	assert.Equal(t, int64(5), s.hint)

	// a read replaces a hint that came from a read
	s.noteOID(6, false)
	assert.Equal(t, int64(6), s.hint)

	s.noteOID(7, true)
	assert.Equal(t, int64(7), s.hint)
	assert.True(t, s.hintForUpdate)

	// only writes replace a hint that came from a write
	s.noteOID(8, false)
	assert.Equal(t, int64(7), s.hint)
	s.noteOID(9, true)
	assert.Equal(t, int64(9), s.hint)

	// after an allocation only allocations move the hint
	s.noteAllocation(20)
	s.noteOID(30, true)
	s.noteOID(31, false)
	assert.Equal(t, int64(20), s.hint)
	s.noteAllocation(21)
	assert.Equal(t, int64(21), s.hint)
}

func TestSessionGID(t *testing.T) {
	s := &session{id: "abc"}
	gid := s.gid()
	assert.Len(t, gid, db.GIDSize)
	assert.Equal(t, []byte("abc"), gid[db.GIDSize-3:])
	assert.Equal(t, make([]byte, db.GIDSize-3), gid[:db.GIDSize-3])
}

func TestPrintableID(t *testing.T) {
	assert.Equal(t, "txn-1", printableID("txn-1"))
	assert.Equal(t, "0x0001ff", printableID("\x00\x01\xff"))
	long := strings.Repeat("x", 50)
	assert.Equal(t, strings.Repeat("x", 37)+"...", printableID(long))
}
