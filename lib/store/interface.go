package store

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Transaction Handle
// --------------------------------------------------------------------------

// Transaction is the handle of a transaction managed by an external coordinator.
// The store never creates handles itself; it only joins them.
type Transaction interface {
	// ID returns the globally unique id of the transaction. The id is stable
	// for the lifetime of the handle and at most 128 bytes long.
	ID() []byte

	// Join registers a participant with the transaction. The coordinator will
	// later call Prepare/Commit/Abort (or PrepareAndCommit) on it.
	Join(participant IParticipant) (err error)
}

// --------------------------------------------------------------------------
// Allocation Hints
// --------------------------------------------------------------------------

// Near is the placement hint of CreateObjectNear. A non-negative value names
// an existing object id the new object should be placed close to.
type Near int64

const (
	// NearUnspecified uses the session's own hint (the last id it touched).
	NearUnspecified Near = -1
	// NearNewRegion asks for a fresh part of the id space.
	NearNewRegion Near = -2
)

// NearID returns the hint for placing an object close to oid.
func NearID(oid int64) Near {
	return Near(oid)
}

func (n Near) String() string {
	switch n {
	case NearUnspecified:
		return "unspecified"
	case NearNewRegion:
		return "new-region"
	default:
		return fmt.Sprintf("near(%d)", int64(n))
	}
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IParticipant is the two-phase commit side of the store, called by the coordinator.
type IParticipant interface {
	// Prepare is the first phase of a two-phase commit.
	// readOnly is true if the session made no modifications; the session is
	// then already finished and the coordinator must not call Commit or Abort.
	Prepare(txn Transaction) (readOnly bool, err error)

	// Commit makes the prepared modifications durable.
	Commit(txn Transaction) (err error)

	// PrepareAndCommit prepares and commits in one call for transactions with a single participant.
	PrepareAndCommit(txn Transaction) (err error)

	// Abort discards all modifications of the session.
	Abort(txn Transaction) (err error)
}

// IDataStore is the transactional object store. Every object and binding
// operation runs in the session of the given transaction, which is opened
// (and joined to the transaction) by the first operation.
//
// All methods return *Error values, or *FatalError once the backing engine failed.
type IDataStore interface {
	IParticipant

	// Join opens the session of txn without performing an operation.
	Join(txn Transaction) (err error)

	// CreateObject allocates a new object id near the session's hint.
	// The object does not exist until SetObject is called for it.
	CreateObject(txn Transaction) (oid int64, err error)

	// CreateObjectNear allocates a new object id using the given placement hint.
	CreateObjectNear(txn Transaction, near Near) (oid int64, err error)

	// MarkForUpdate locks an object for writing without reading it.
	MarkForUpdate(txn Transaction, oid int64) (err error)

	// GetObject returns the bytes of an object. An existing empty object
	// returns an empty, non-nil slice.
	GetObject(txn Transaction, oid int64, forUpdate bool) (data []byte, err error)

	// SetObject creates or replaces the bytes of an object.
	SetObject(txn Transaction, oid int64, data []byte) (err error)

	// SetObjects writes several objects, oids[i] gets data[i].
	SetObjects(txn Transaction, oids []int64, data [][]byte) (err error)

	// RemoveObject deletes an object.
	RemoveObject(txn Transaction, oid int64) (err error)

	// GetBinding returns the object id bound to name.
	GetBinding(txn Transaction, name string) (oid int64, err error)

	// SetBinding binds name to oid, replacing any previous binding.
	SetBinding(txn Transaction, name string, oid int64) (err error)

	// RemoveBinding removes the binding of name.
	RemoveBinding(txn Transaction, name string) (err error)

	// FirstBoundName returns the smallest bound name. ok is false if there are no bindings.
	FirstBoundName(txn Transaction) (name string, ok bool, err error)

	// NextBoundName returns the smallest bound name strictly greater than name.
	// ok is false if there is none.
	NextBoundName(txn Transaction, name string) (next string, ok bool, err error)

	// NextTxnID reserves count consecutive transaction numbers and returns the first one.
	NextTxnID(count int64) (first int64, err error)

	// Shutdown waits until no session is active and closes the store. It
	// returns false if ctx ended first, in which case the store stays open.
	Shutdown(ctx context.Context) (ok bool, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the underlying cause, if any.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message.
	Cause error   // The error reported by the engine, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("DataStoreError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("DataStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code, so that the
// sentinels below can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError creates a new Error with the given cause.
func WrapError(code RetCode, cause error, msg string) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: cause,
	}
}

// Sentinels for errors.Is, only the code is compared.
var (
	ErrInternal            = NewError(RetCInternalError, "internal error")
	ErrInvalidArgument     = NewError(RetCInvalidArgument, "invalid argument")
	ErrObjectNotFound      = NewError(RetCObjectNotFound, "object not found")
	ErrNameNotBound        = NewError(RetCNameNotBound, "name not bound")
	ErrTransactionConflict = NewError(RetCTransactionConflict, "transaction conflict")
	ErrTransactionTimeout  = NewError(RetCTransactionTimeout, "transaction timeout")
	ErrWrongState          = NewError(RetCWrongState, "wrong state")
)

// FatalError reports an unrecoverable failure of the backing engine. It is
// not an *Error. Once returned, the store answers every further call with
// the same FatalError.
type FatalError struct {
	Msg   string
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("DataStore fatal error: %s: %v", e.Msg, e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err is (or wraps) a *FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess             RetCode = iota // 0: Command executed successfully.
	RetCInternalError                      // 1: Command failed because of an engine error.
	RetCInvalidArgument                    // 2: Malformed argument (negative id, nil data, ...).
	RetCObjectNotFound                     // 3: The object does not exist.
	RetCNameNotBound                       // 4: The name is not bound.
	RetCTransactionConflict                // 5: Lost a conflict or deadlock, the transaction was aborted.
	RetCTransactionTimeout                 // 6: The transaction or a lock wait timed out, the transaction was aborted.
	RetCWrongState                         // 7: Operation not allowed in the current state.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCObjectNotFound:
		return "ObjectNotFound"
	case RetCNameNotBound:
		return "NameNotBound"
	case RetCTransactionConflict:
		return "TransactionConflict"
	case RetCTransactionTimeout:
		return "TransactionTimeout"
	case RetCWrongState:
		return "WrongState"
	default:
		return "Unknown"
	}
}
