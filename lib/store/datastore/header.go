package datastore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ValentinKolb/objstore/lib/db"
)

// Keys of the info table.
var (
	keyMagic         = []byte("magic")
	keyFreeBlockSize = []byte("freeBlockSize")
	keyNextTxnID     = []byte("nextTxnId")
	keyFreeObjectIDs = []byte("freeObjectIds")
)

const (
	headerMagic   = "OBJSTORE"
	headerVersion = uint32(1)
)

// header is the in-memory copy of the metadata records.
type header struct {
	freeBlockSize int64
	nextTxnID     int64
	freeIDs       []int64
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid int64 record of %d bytes", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func encodeInt64s(vs []int64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint64(b[8*i:], uint64(v))
	}
	return b
}

func decodeInt64s(b []byte) ([]int64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("invalid int64 list record of %d bytes", len(b))
	}
	vs := make([]int64, len(b)/8)
	for i := range vs {
		vs[i] = int64(binary.BigEndian.Uint64(b[8*i:]))
	}
	return vs, nil
}

func encodeMagic() []byte {
	b := make([]byte, len(headerMagic)+4)
	copy(b, headerMagic)
	binary.BigEndian.PutUint32(b[len(headerMagic):], headerVersion)
	return b
}

func checkMagic(b []byte) error {
	if len(b) != len(headerMagic)+4 || !bytes.Equal(b[:len(headerMagic)], []byte(headerMagic)) {
		return errors.New("not an object store")
	}
	if v := binary.BigEndian.Uint32(b[len(headerMagic):]); v != headerVersion {
		return fmt.Errorf("unsupported store version %d, want %d", v, headerVersion)
	}
	return nil
}

// --------------------------------------------------------------------------
// Access (every function runs in its own short engine transaction)
// --------------------------------------------------------------------------

// inTxn runs fn in a new engine transaction and commits it if fn succeeds.
func inTxn(engine db.Engine, fn func(txn db.Txn) error) error {
	txn, err := engine.Begin()
	if err != nil {
		return err
	}
	if err := fn(txn); err != nil {
		_ = txn.Abort()
		return err
	}
	return txn.Commit()
}

// loadOrCreateHeader reads the header or, for a new store, writes the initial
// one: one empty free block at id 0.
func loadOrCreateHeader(engine db.Engine, freeBlockSize int64) (header, error) {
	var h header
	err := inTxn(engine, func(txn db.Txn) error {
		magic, err := txn.Get(db.TableInfo, keyMagic, true)
		if errors.Is(err, db.ErrNotFound) {
			h = header{freeBlockSize: freeBlockSize, nextTxnID: 1, freeIDs: []int64{0}}
			log.Infof("creating new store header (free block size %d)", freeBlockSize)
			for _, rec := range []struct {
				key, value []byte
			}{
				{keyMagic, encodeMagic()},
				{keyFreeBlockSize, encodeInt64(h.freeBlockSize)},
				{keyNextTxnID, encodeInt64(h.nextTxnID)},
				{keyFreeObjectIDs, encodeInt64s(h.freeIDs)},
			} {
				if err := txn.Put(db.TableInfo, rec.key, rec.value); err != nil {
					return err
				}
			}
			return nil
		}
		if err != nil {
			return err
		}
		if err := checkMagic(magic); err != nil {
			return err
		}

		if h.freeBlockSize, err = readInt64(txn, keyFreeBlockSize); err != nil {
			return err
		}
		if h.nextTxnID, err = readInt64(txn, keyNextTxnID); err != nil {
			return err
		}
		raw, err := txn.Get(db.TableInfo, keyFreeObjectIDs, false)
		if err != nil {
			return fmt.Errorf("read free object ids: %w", err)
		}
		h.freeIDs, err = decodeInt64s(raw)
		return err
	})
	return h, err
}

func readInt64(txn db.Txn, key []byte) (int64, error) {
	raw, err := txn.Get(db.TableInfo, key, false)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return decodeInt64(raw)
}

// writeFreeIDs durably replaces the list of free object id boundaries.
func writeFreeIDs(engine db.Engine, ids []int64) error {
	return inTxn(engine, func(txn db.Txn) error {
		return txn.Put(db.TableInfo, keyFreeObjectIDs, encodeInt64s(ids))
	})
}

// reserveTxnIDs durably advances the transaction id counter by count and returns the first reserved id.
func reserveTxnIDs(engine db.Engine, count int64) (int64, error) {
	var first int64
	err := inTxn(engine, func(txn db.Txn) error {
		raw, err := txn.Get(db.TableInfo, keyNextTxnID, true)
		if err != nil {
			return fmt.Errorf("read %s: %w", keyNextTxnID, err)
		}
		if first, err = decodeInt64(raw); err != nil {
			return err
		}
		return txn.Put(db.TableInfo, keyNextTxnID, encodeInt64(first+count))
	})
	return first, err
}
