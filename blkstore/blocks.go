package blkstore

import (
	"fmt"

	"github.com/jacobsa/syncutil"

	"github.com/keks/flatfs"
)

// Blocks is a fixed pool of equally sized blocks with an allocation
// bitmap.
type Blocks struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	blksize int
	pool    []byte

	/////////////////////////
	// Mutable state
	/////////////////////////

	l syncutil.InvariantMutex

	// INVARIANT: len(taken) == len(pool)/blksize
	// INVARIANT: used == number of true entries in taken
	taken []bool // GUARDED_BY(l)
	used  int    // GUARDED_BY(l)
}

// New allocates a pool of count blocks of blksize bytes each.
func New(count, blksize int) (*Blocks, error) {
	if count <= 0 || blksize <= 0 {
		return nil, fmt.Errorf("%w: %d blocks of %d bytes", flatfs.ErrInvalidConfig, count, blksize)
	}

	blks := &Blocks{
		blksize: blksize,
		pool:    make([]byte, count*blksize),
		taken:   make([]bool, count),
	}
	blks.l = syncutil.NewInvariantMutex(blks.checkInvariants)

	return blks, nil
}

func (blks *Blocks) checkInvariants() {
	if len(blks.taken)*blks.blksize != len(blks.pool) {
		panic(fmt.Sprintf("bitmap covers %d blocks, pool holds %d bytes", len(blks.taken), len(blks.pool)))
	}

	var n int
	for _, t := range blks.taken {
		if t {
			n++
		}
	}
	if n != blks.used {
		panic(fmt.Sprintf("used is %d, bitmap has %d taken blocks", blks.used, n))
	}
}

// BlockSize returns the size of each block in bytes.
func (blks *Blocks) BlockSize() int { return blks.blksize }

// Len returns the number of blocks in the pool.
func (blks *Blocks) Len() int { return len(blks.taken) }

// Allocate marks the first free block as taken and returns it. The
// returned block is zeroed.
func (blks *Blocks) Allocate() (flatfs.BlockID, *Block, error) {
	blks.l.Lock()
	defer blks.l.Unlock()

	for i, t := range blks.taken {
		if t {
			continue
		}

		blks.taken[i] = true
		blks.used++

		blk := blks.block(flatfs.BlockID(i))
		blk.zero()
		return blk.id, blk, nil
	}

	return flatfs.NoBlock, nil, flatfs.ErrNoFreeBlock
}

// Free marks bid as free. Callers make sure a block is freed exactly once.
func (blks *Blocks) Free(bid flatfs.BlockID) error {
	if !blks.inRange(bid) {
		return fmt.Errorf("%w: %d", flatfs.ErrBadBlock, bid)
	}

	blks.l.Lock()
	defer blks.l.Unlock()

	if blks.taken[bid] {
		blks.taken[bid] = false
		blks.used--
	}

	return nil
}

// Get returns the block with index bid. It does not check the allocation
// state and takes no lock.
func (blks *Blocks) Get(bid flatfs.BlockID) (*Block, error) {
	if !blks.inRange(bid) {
		return nil, fmt.Errorf("%w: %d", flatfs.ErrBadBlock, bid)
	}

	return blks.block(bid), nil
}

// Used returns the number of taken blocks.
func (blks *Blocks) Used() int {
	blks.l.RLock()
	defer blks.l.RUnlock()

	return blks.used
}

// Bitmap returns a copy of the allocation bitmap.
func (blks *Blocks) Bitmap() []bool {
	blks.l.RLock()
	defer blks.l.RUnlock()

	return append([]bool(nil), blks.taken...)
}

func (blks *Blocks) inRange(bid flatfs.BlockID) bool {
	return bid.Valid() && int(bid) < len(blks.taken)
}

func (blks *Blocks) block(bid flatfs.BlockID) *Block {
	off := int(bid) * blks.blksize
	return &Block{
		id:  bid,
		buf: blks.pool[off : off+blks.blksize : off+blks.blksize],
	}
}
