package datastore

import (
	"sync"
	"testing"

	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/ValentinKolb/objstore/lib/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestAllocationUniqueConcurrent(t *testing.T) {
	ds := newTestStore(t, nil)

	const (
		workers     = 8
		txnsEach    = 25
		objectsEach = 7
	)

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < txnsEach; i++ {
				err := txn.Run(func(tx *txn.Transaction) error {
					for j := 0; j < objectsEach; j++ {
						oid, err := ds.CreateObject(tx)
						if err != nil {
							return err
						}
						mu.Lock()
						dup := seen[oid]
						seen[oid] = true
						mu.Unlock()
						assert.False(t, dup, "id %d handed out twice", oid)
						if err := ds.SetObject(tx, oid, []byte{byte(j)}); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, seen, workers*txnsEach*objectsEach)
}

func TestAllocationHintLocality(t *testing.T) {
	ds := newTestStore(t, nil)
	bs := ds.cfg.FreeBlockSize

	tx := txn.New()
	defer func() { require.NoError(t, tx.Abort(nil)) }()

	first, err := ds.CreateObject(tx)
	require.NoError(t, err)

	// more than one allocation size, the hinted block is extended
	for i := 0; i < 10; i++ {
		oid, err := ds.CreateObject(tx)
		require.NoError(t, err)
		assert.Equal(t, first&^(bs-1), oid&^(bs-1))
	}

	far, err := ds.CreateObjectNear(tx, store.NearNewRegion)
	require.NoError(t, err)
	assert.NotEqual(t, first&^(bs-1), far&^(bs-1))

	// the session hint follows the last allocation
	next, err := ds.CreateObject(tx)
	require.NoError(t, err)
	assert.Equal(t, far&^(bs-1), next&^(bs-1))

	near, err := ds.CreateObjectNear(tx, store.NearID(first))
	require.NoError(t, err)
	assert.Equal(t, first&^(bs-1), near&^(bs-1))
}

func TestAllocationSessionsUseDifferentBlocks(t *testing.T) {
	ds := newTestStore(t, nil)
	bs := ds.cfg.FreeBlockSize

	t1, t2 := txn.New(), txn.New()
	a, err := ds.CreateObject(t1)
	require.NoError(t, err)
	b, err := ds.CreateObject(t2)
	require.NoError(t, err)
	assert.NotEqual(t, a&^(bs-1), b&^(bs-1))

	// released blocks are reused by later sessions
	require.NoError(t, t1.Abort(nil))
	require.NoError(t, t2.Abort(nil))
	t3 := txn.New()
	c, err := ds.CreateObject(t3)
	require.NoError(t, err)
	assert.Contains(t, []int64{a &^ (bs - 1), b &^ (bs - 1)}, c&^(bs-1))
	require.NoError(t, t3.Abort(nil))
}

func TestAllocationRemovesExhaustedBlocks(t *testing.T) {
	ds := newTestStore(t, func(cfg *Config) { cfg.AllocationSize = MinFreeBlockSize / 2 })
	bs := ds.cfg.FreeBlockSize
	require.Equal(t, int64(1), int64(ds.alloc.size()))

	tx := txn.New()
	defer func() { require.NoError(t, tx.Abort(nil)) }()

	for i := int64(0); i < bs; i++ {
		oid, err := ds.CreateObject(tx)
		require.NoError(t, err)
		require.Equal(t, i, oid)
	}
	// block 0 is full and exhausted, the next allocation starts a new block and drops it
	oid, err := ds.CreateObject(tx)
	require.NoError(t, err)
	assert.Equal(t, bs, oid)
	assert.Equal(t, 1, ds.alloc.size())
	assert.Equal(t, uint64(1), ds.stats.blocksRemoved.Get())
}

func TestAllocatorFreeIDs(t *testing.T) {
	var persisted [][]int64
	a := newAllocator(1024, 4, []int64{0}, func(ids []int64) error {
		persisted = append(persisted, append([]int64(nil), ids...))
		return nil
	}, newStoreStats())

	s := &session{hint: -1}
	oid, err := a.allocate(s, -1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), oid)
	// block 0 after the extension and the start of the next block
	assert.Equal(t, [][]int64{{4, 1024}}, persisted)

	oid, err = a.allocate(s, -1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), oid)
	assert.Equal(t, []int64{4, 1028, 2048}, persisted[1])

	// restart from the last persisted list
	b := newAllocator(1024, 4, persisted[1], func([]int64) error { return nil }, newStoreStats())
	assert.Equal(t, 3, b.size())
	oid, err = b.allocate(&session{hint: -1}, 1024, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1028), oid)
}
