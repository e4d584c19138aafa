package datastore

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundAllocationSize(t *testing.T) {
	tests := []struct {
		size, blockSize, want int64
	}{
		{0, 1024, 1},
		{-7, 1024, 1},
		{1, 1024, 1},
		{3, 1024, 2},
		{4, 1024, 4},
		{1000, 1024, 512},
		{1024, 1024, 512},
		{1 << 30, 1 << 20, 1 << 19},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundAllocationSize(tt.size, tt.blockSize), "size=%d blockSize=%d", tt.size, tt.blockSize)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg, err := DefaultConfig("/tmp/store").normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultAllocationSize), cfg.AllocationSize)
	assert.Equal(t, int64(DefaultFreeBlockSize), cfg.FreeBlockSize)

	cfg = DefaultConfig("/tmp/store")
	cfg.FreeBlockSize = 0
	cfg.LogStats = -1
	cfg.AllocationSize = 3000
	cfg, err = cfg.normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultFreeBlockSize), cfg.FreeBlockSize)
	assert.Equal(t, int64(2048), cfg.AllocationSize)
	assert.Equal(t, int64(0), cfg.LogStats)

	invalid := map[string]func(c *Config){
		"no directory":     func(c *Config) { c.Directory = "" },
		"zero timeout":     func(c *Config) { c.TxnTimeout = 0 },
		"small cache":      func(c *Config) { c.CacheSize = MinCacheSize - 1 },
		"small free block": func(c *Config) { c.FreeBlockSize = MinFreeBlockSize / 2 },
		"odd free block":   func(c *Config) { c.FreeBlockSize = MinFreeBlockSize + 1 },
	}
	for name, modify := range invalid {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig("/tmp/store")
			modify(&cfg)
			_, err := cfg.normalize()
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}
}

func TestConfigEngineOptions(t *testing.T) {
	cfg := DefaultConfig("/data")
	cfg.FlushToDisk = true
	cfg.TxnTimeout = 3 * time.Second
	opts := cfg.engineOptions()
	assert.Equal(t, "/data", opts.Dir)
	assert.True(t, opts.SyncWrites)
	assert.Equal(t, int64(DefaultCacheSize), opts.BlockCacheSize)
	assert.Equal(t, 3*time.Second, opts.LockTimeout)
}

func TestConfigString(t *testing.T) {
	out := DefaultConfig("/data").String()
	for _, want := range []string{"STORAGE", "TRANSACTIONS", "ALLOCATION", "/data", "disabled"} {
		assert.True(t, strings.Contains(out, want), "missing %q in %s", want, out)
	}
}
