// Package store defines the interface of the transactional object store and
// its error types.
//
// The store durably holds opaque byte blobs addressed by numeric object ids
// plus a separate namespace of name to object id bindings. All operations run
// inside a transaction that is owned by an external coordinator; the store
// joins it as one participant of a two-phase commit.
//
// Key Components:
//
//   - IDataStore Interface: The object, binding and lifecycle operations. The
//     first operation under a Transaction opens a session in the store and
//     joins the store to the transaction as an IParticipant.
//
//   - IParticipant Interface: The two-phase commit side (Prepare, Commit,
//     PrepareAndCommit, Abort) called by the coordinator. A participant that
//     made no modifications reports itself read-only in Prepare and is finished
//     after that call.
//
//   - Error System: Every failure is reported as an *Error with a RetCode, so
//     callers can tell a missing object from a conflict or a timeout using
//     errors.Is with the exported sentinels. A failure of the backing engine
//     that leaves the store unusable is reported as a *FatalError instead.
//
// Implementations:
//
//	The engine backed implementation lives in the
//	"github.com/ValentinKolb/objstore/lib/store/datastore" package, a simple
//	coordinator for tests and tools in "github.com/ValentinKolb/objstore/lib/txn".
package store
