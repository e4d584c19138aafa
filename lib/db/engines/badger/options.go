package badger

import "time"

// Options configures the badger engine.
type Options struct {
	// Dir is the directory holding the badger files. Ignored if InMemory is set.
	Dir string
	// InMemory keeps all data in memory (only useful for tests).
	InMemory bool
	// SyncWrites flushes every commit to disk before returning.
	SyncWrites bool
	// BlockCacheSize is the size of the badger block cache in bytes.
	BlockCacheSize int64
	// MemTableSize is the size of a badger memtable. A single transaction may
	// write about 15% of it, counting only pointers for values in the value log.
	MemTableSize int64
	// ValueThreshold is the value size from which values are kept in the value log.
	// Ignored if InMemory is set.
	ValueThreshold int64
	// LockTimeout bounds the time a transaction waits for a row lock.
	LockTimeout time.Duration
	// GCInterval is the interval of the value log garbage collection, 0 disables it.
	GCInterval time.Duration
	// GCDiscardRatio is passed to badger's RunValueLogGC.
	GCDiscardRatio float64
}

// DefaultOptions returns the options used by the object store for dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:            dir,
		BlockCacheSize: 256 << 20,
		MemTableSize:   64 << 20,
		ValueThreshold: 1 << 10,
		LockTimeout:    time.Second,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}
