package datastore

import (
	"sort"
	"sync"

	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var allocLog = logger.GetLogger("datastore/alloc")

// --------------------------------------------------------------------------
// Free Block
// --------------------------------------------------------------------------

// freeBlock is a range [next, last] of ids that were never handed out.
// At most one session draws from a block at a time (the owner).
type freeBlock struct {
	mu    sync.Mutex
	next  int64
	last  int64
	owner *session
}

type drawResult int

const (
	drawOK    drawResult = iota
	drawEmpty            // usable by the session but no ids left
	drawBusy             // owned by another session
)

// claim makes s the owner if the block is unowned. b.mu must be held.
func (b *freeBlock) claim(s *session) bool {
	if b.owner == nil {
		b.owner = s
		s.claimed = append(s.claimed, b)
		return true
	}
	return b.owner == s
}

// draw claims the block for s and hands out the next id.
func (b *freeBlock) draw(s *session) (int64, drawResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.owner != nil && b.owner != s {
		return -1, drawBusy
	}
	if b.next > b.last {
		return -1, drawEmpty
	}
	b.claim(s)
	id := b.next
	b.next++
	return id, drawOK
}

// maybeUse claims the block for s, false if another session owns it.
func (b *freeBlock) maybeUse(s *session) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.claim(s)
}

// release clears the owner if it is s.
func (b *freeBlock) release(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owner == s {
		b.owner = nil
	}
}

func (b *freeBlock) lastID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// --------------------------------------------------------------------------
// Allocator
// --------------------------------------------------------------------------

// allocator is the registry of free blocks, keyed by block number.
//
// Locking: mu guards the blocks map itself (shared for lookups, exclusive for
// insert and remove), every block guards its own fields. slow serializes the
// slow path, the only place where last is changed and the free id list is
// persisted.
type allocator struct {
	blockSize int64
	allocSize int64

	mu     sync.RWMutex
	blocks map[int64]*freeBlock

	slow     sync.Mutex
	maxBlock int64 // highest block number ever known, guarded by slow

	persist func(ids []int64) error
	stats   *storeStats
}

func newAllocator(blockSize, allocSize int64, freeIDs []int64, persist func([]int64) error, stats *storeStats) *allocator {
	a := &allocator{
		blockSize: blockSize,
		allocSize: allocSize,
		blocks:    make(map[int64]*freeBlock, len(freeIDs)),
		maxBlock:  -1,
		persist:   persist,
		stats:     stats,
	}
	for _, id := range freeIDs {
		bn := a.blockNumber(id)
		a.blocks[bn] = &freeBlock{next: id, last: id - 1}
		if bn > a.maxBlock {
			a.maxBlock = bn
		}
	}
	allocLog.Infof("loaded %d free blocks (block size %d, allocation size %d)", len(freeIDs), blockSize, allocSize)
	return a
}

func (a *allocator) blockNumber(oid int64) int64 {
	return oid &^ (a.blockSize - 1)
}

func (a *allocator) nextBlockNumber(oid int64) int64 {
	return a.blockNumber(oid) + a.blockSize
}

// isFull reports whether no more ids fit behind last in the block of last.
func (a *allocator) isFull(bn, last int64) bool {
	return a.blockNumber(last+1) != bn
}

// growth returns how many ids an extension adds behind last, at most
// allocSize and never past the end of the block.
func (a *allocator) growth(bn, last int64) int64 {
	room := bn + a.blockSize - (last + 1)
	if room < a.allocSize {
		return room
	}
	return a.allocSize
}

// allocate returns a new object id for s. hint is the id the new one should be
// close to (-1 for none); newRegion skips the existing blocks.
func (a *allocator) allocate(s *session, hint int64, newRegion bool) (int64, error) {
	if !newRegion {
		if id := a.fastPath(s, hint); id >= 0 {
			a.stats.allocFast.Inc()
			return id, nil
		}
	}
	a.stats.allocSlow.Inc()
	return a.slowPath(s, hint, newRegion)
}

// fastPath draws from the hinted block, or any other block with room.
// Returns -1 if the slow path has to extend a block.
func (a *allocator) fastPath(s *session, hint int64) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if hint >= 0 {
		bn := a.blockNumber(hint)
		if b, ok := a.blocks[bn]; ok {
			id, res := b.draw(s)
			switch {
			case res == drawOK:
				return id
			case res == drawEmpty && !a.isFull(bn, b.lastID()):
				// extend the hinted block instead of leaving it
				return -1
			}
		}
	}

	for _, b := range a.blocks {
		if id, res := b.draw(s); res == drawOK {
			return id
		}
	}
	return -1
}

// slowPath extends a block (the hinted one if possible) or adds a new one,
// persists the new free id list and then updates the registry.
func (a *allocator) slowPath(s *session, hint int64, newRegion bool) (int64, error) {
	a.slow.Lock()
	defer a.slow.Unlock()

	var (
		extend   *freeBlock
		extendBN int64
		extendBy int64
		freeIDs  []int64
	)

	a.mu.RLock()
	if !newRegion && hint >= 0 {
		bn := a.blockNumber(hint)
		if b, ok := a.blocks[bn]; ok && !a.isFull(bn, b.lastID()) && b.maybeUse(s) {
			extend, extendBN = b, bn
		}
	}
	if extend == nil && !newRegion {
		for bn, b := range a.blocks {
			if !a.isFull(bn, b.lastID()) && b.maybeUse(s) {
				extend, extendBN = b, bn
				break
			}
		}
	}

	if extend != nil {
		extendBy = a.growth(extendBN, extend.lastID())
	}

	// the first id behind every block that still has room after the extension
	for bn, b := range a.blocks {
		next := b.lastID() + 1
		if b == extend {
			next += extendBy
		}
		if a.blockNumber(next) == bn {
			freeIDs = append(freeIDs, next)
		}
	}
	a.mu.RUnlock()

	newBN := int64(0)
	if a.maxBlock >= 0 {
		newBN = a.nextBlockNumber(a.maxBlock)
	}
	maxBlock := a.maxBlock
	if extend == nil {
		freeIDs = append(freeIDs, newBN+a.allocSize)
		maxBlock = newBN
	}
	// the start of the block after the highest one, so a restart never hands out ids of removed blocks
	freeIDs = append(freeIDs, a.nextBlockNumber(maxBlock))
	sort.Slice(freeIDs, func(i, j int) bool { return freeIDs[i] < freeIDs[j] })

	if err := a.persist(freeIDs); err != nil {
		return -1, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for bn, b := range a.blocks {
		if b == extend {
			continue
		}
		b.mu.Lock()
		exhausted := b.next > b.last && a.isFull(bn, b.last) && b.claim(s)
		b.mu.Unlock()
		if exhausted {
			delete(a.blocks, bn)
			a.stats.blocksRemoved.Inc()
			allocLog.Debugf("removed exhausted block %d", bn)
		}
	}

	if extend != nil {
		extend.mu.Lock()
		extend.last += extendBy
		extend.mu.Unlock()
		a.stats.blocksExtended.Inc()
		allocLog.Debugf("extended block %d by %d ids", extendBN, extendBy)
	} else {
		extend = &freeBlock{next: newBN, last: newBN + a.allocSize - 1, owner: s}
		s.claimed = append(s.claimed, extend)
		a.blocks[newBN] = extend
		a.maxBlock = newBN
		a.stats.blocksCreated.Inc()
		allocLog.Debugf("created block %d with %d ids", newBN, a.allocSize)
	}

	id, res := extend.draw(s)
	if res != drawOK {
		// can not happen: the block is owned by s and was just extended
		return -1, store.Errorf(store.RetCInternalError, "extended block %d has no free ids", extendBN)
	}
	return id, nil
}

// release clears the ownership of every block claimed by s.
func (a *allocator) release(s *session) {
	for _, b := range s.claimed {
		b.release(s)
	}
	s.claimed = nil
}

// size returns the number of blocks in the registry.
func (a *allocator) size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blocks)
}
