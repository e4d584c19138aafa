package datastore

import (
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/ValentinKolb/objstore/lib/db/engines/badger"
	"github.com/ValentinKolb/objstore/lib/store"
)

const (
	DefaultTxnTimeout     = 1000 * time.Millisecond
	DefaultAllocationSize = 1024
	DefaultFreeBlockSize  = 1 << 20
	MinFreeBlockSize      = 1024
	DefaultCacheSize      = 1_000_000
	MinCacheSize          = 20_000
)

// Config holds all configuration parameters of a data store.
// Objects have no size limit, but the writes of one transaction must fit into
// one engine batch (see badger.Options.MemTableSize), larger ones fail with RetCInvalidArgument.
type Config struct {
	// Directory holds the engine files. Required.
	Directory string

	// TxnTimeout is the maximum age of a session. It also bounds row lock waits.
	TxnTimeout time.Duration

	// AllocationSize is the number of object ids added to a free block per
	// extension. Rounded down to a power of two and to at most half the free block size.
	AllocationSize int64

	// FreeBlockSize is the size of an id block (power of two, >= MinFreeBlockSize).
	// It is only used when the store is created, afterward the persisted value wins.
	FreeBlockSize int64

	// CacheSize is the engine cache size in bytes (>= MinCacheSize).
	CacheSize int64

	// FlushToDisk makes every commit durable before it returns.
	FlushToDisk bool

	// LogStats logs statistics every LogStats new sessions, 0 disables it.
	LogStats int64
}

// DefaultConfig returns the default configuration for a store in dir.
func DefaultConfig(dir string) Config {
	return Config{
		Directory:      dir,
		TxnTimeout:     DefaultTxnTimeout,
		AllocationSize: DefaultAllocationSize,
		FreeBlockSize:  DefaultFreeBlockSize,
		CacheSize:      DefaultCacheSize,
	}
}

// normalize validates the configuration and applies the rounding rules.
func (c Config) normalize() (Config, error) {
	if c.Directory == "" {
		return c, store.NewError(store.RetCInvalidArgument, "directory must be specified")
	}
	if c.TxnTimeout <= 0 {
		return c, store.Errorf(store.RetCInvalidArgument, "transaction timeout must be positive, got %s", c.TxnTimeout)
	}
	if c.CacheSize < MinCacheSize {
		return c, store.Errorf(store.RetCInvalidArgument, "cache size must be at least %d, got %d", MinCacheSize, c.CacheSize)
	}
	if c.FreeBlockSize == 0 {
		c.FreeBlockSize = DefaultFreeBlockSize
	}
	if c.FreeBlockSize < MinFreeBlockSize || !isPowerOfTwo(c.FreeBlockSize) {
		return c, store.Errorf(store.RetCInvalidArgument, "free block size must be a power of two >= %d, got %d", MinFreeBlockSize, c.FreeBlockSize)
	}
	if c.LogStats < 0 {
		c.LogStats = 0
	}
	c.AllocationSize = roundAllocationSize(c.AllocationSize, c.FreeBlockSize)
	return c, nil
}

// roundAllocationSize rounds size down to a power of two smaller than blockSize.
func roundAllocationSize(size, blockSize int64) int64 {
	if size < 1 {
		size = 1
	}
	size = int64(1) << (bits.Len64(uint64(size)) - 1)
	if size >= blockSize {
		size = blockSize / 2
	}
	return size
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

// engineOptions converts the configuration to the badger engine options.
func (c Config) engineOptions() badger.Options {
	opts := badger.DefaultOptions(c.Directory)
	opts.SyncWrites = c.FlushToDisk
	opts.BlockCacheSize = c.CacheSize
	opts.LockTimeout = c.TxnTimeout
	return opts
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Directory", c.Directory)
	addField("Cache Size", fmt.Sprintf("%d bytes", c.CacheSize))
	addField("Flush To Disk", fmt.Sprintf("%t", c.FlushToDisk))

	addSection("Transactions")
	addField("Timeout", c.TxnTimeout.String())

	addSection("Allocation")
	addField("Allocation Size", fmt.Sprintf("%d", c.AllocationSize))
	addField("Free Block Size", fmt.Sprintf("%d", c.FreeBlockSize))

	addSection("Statistics")
	if c.LogStats > 0 {
		addField("Log Stats", fmt.Sprintf("every %d sessions", c.LogStats))
	} else {
		addField("Log Stats", "disabled")
	}

	return sb.String()
}
