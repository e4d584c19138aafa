// Package datastore implements store.IDataStore on top of a db.Engine.
//
// Every external transaction gets one session which owns exactly one engine
// transaction. The session tracks whether it wrote anything, whether it has
// been prepared, the cursor used for binding iteration and an allocation hint
// (the last object id it touched).
//
// Object ID Allocation:
//
// The id space is split into free blocks of FreeBlockSize ids (a power of
// two, the block number of an id is the id with the low bits cleared). Each
// block in memory holds a range [next, last] of ids ready to be handed out.
// New ids are drawn from the hinted block first, so objects created together
// end up close together. When no block has room the allocator extends the
// hinted (or any non-full) block by AllocationSize ids, or adds a new block
// behind the highest one. Before the in memory range grows, the list of first
// unused ids per block is written to the engine in its own transaction. After
// a restart every listed id becomes an empty block, so ids are never handed
// out twice, even if the process crashed after the write.
//
// A block that is drawn from or extended is claimed by the session until it
// ends; other sessions skip it. This keeps sessions running in parallel in
// different blocks.
//
// Thread-safety:
//
// All methods of Store are safe for concurrent use. Operations of one session
// are serialized by the session mutex. The allocator uses a read/write lock for
// the block registry, a mutex per block and one slow path mutex that also
// serializes the durable writes of the free id list.
//
// Errors:
//
// Engine errors are translated: lock wait timeouts are reported as
// store.ErrTransactionTimeout, deadlocks and conflicts as
// store.ErrTransactionConflict. Both abort the engine transaction; the
// coordinator is expected to call Abort afterward. Corruption is reported as a
// *store.FatalError and every later call fails with it.
package datastore
