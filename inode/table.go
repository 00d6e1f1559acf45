package inode

import (
	"fmt"

	"github.com/jacobsa/syncutil"

	"github.com/keks/flatfs"
	"github.com/keks/flatfs/blkstore"
)

// Table is a fixed array of inodes. The table lock only covers the
// allocation bitmap; inode contents are guarded by each inode's own lock.
//
// Lock order is inode before table: Delete is called with the inode lock
// held and takes the table lock, Create never holds both.
type Table struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	blks *blkstore.Blocks

	/////////////////////////
	// Constant data
	/////////////////////////

	inodes []*Inode

	/////////////////////////
	// Mutable state
	/////////////////////////

	l syncutil.InvariantMutex

	// INVARIANT: len(taken) == len(inodes)
	// INVARIANT: used == number of true entries in taken
	taken []bool // GUARDED_BY(l)
	used  int    // GUARDED_BY(l)
}

// NewTable creates a table of size inodes with ndirect direct blocks each,
// drawing blocks from blks.
func NewTable(blks *blkstore.Blocks, size, ndirect int) (*Table, error) {
	if size <= 0 || ndirect <= 0 {
		return nil, fmt.Errorf("%w: %d inodes with %d direct blocks", flatfs.ErrInvalidConfig, size, ndirect)
	}

	t := &Table{
		blks:   blks,
		inodes: make([]*Inode, size),
		taken:  make([]bool, size),
	}
	for i := range t.inodes {
		t.inodes[i] = newInode(flatfs.Inumber(i), ndirect)
	}
	t.l = syncutil.NewInvariantMutex(t.checkInvariants)

	return t, nil
}

func (t *Table) checkInvariants() {
	if len(t.taken) != len(t.inodes) {
		panic(fmt.Sprintf("bitmap covers %d inodes, table holds %d", len(t.taken), len(t.inodes)))
	}

	var n int
	for _, taken := range t.taken {
		if taken {
			n++
		}
	}
	if n != t.used {
		panic(fmt.Sprintf("used is %d, bitmap has %d taken inodes", t.used, n))
	}
}

// Len returns the capacity of the table.
func (t *Table) Len() int { return len(t.inodes) }

// MaxFileSize is the largest size an inode of this table can reach.
func (t *Table) MaxFileSize() int64 {
	return int64(len(t.inodes[0].blocks)) * int64(t.blks.BlockSize())
}

// Create takes the first free slot and initializes it as an empty inode
// of type typ.
func (t *Table) Create(typ flatfs.InodeType) (flatfs.Inumber, error) {
	inumber, err := t.reserve()
	if err != nil {
		return -1, err
	}

	in := t.inodes[inumber]
	in.Lock()
	defer in.Unlock()

	in.clear()
	in.typ = typ
	in.live = true

	return inumber, nil
}

func (t *Table) reserve() (flatfs.Inumber, error) {
	t.l.Lock()
	defer t.l.Unlock()

	for i, taken := range t.taken {
		if taken {
			continue
		}

		t.taken[i] = true
		t.used++
		return flatfs.Inumber(i), nil
	}

	return -1, flatfs.ErrNoFreeInode
}

// Get validates inumber and returns its inode without locking it. Callers
// lock the inode around every access and check Live, or use Lock and
// RLock which do both.
func (t *Table) Get(inumber flatfs.Inumber) (*Inode, error) {
	if inumber < 0 || int(inumber) >= len(t.inodes) {
		return nil, fmt.Errorf("%w: %d", flatfs.ErrBadInumber, inumber)
	}

	t.l.RLock()
	taken := t.taken[inumber]
	t.l.RUnlock()

	if !taken {
		return nil, fmt.Errorf("%w: %d is free", flatfs.ErrBadInumber, inumber)
	}

	return t.inodes[inumber], nil
}

// Lock returns the inode write locked. The caller must Unlock it.
func (t *Table) Lock(inumber flatfs.Inumber) (*Inode, error) {
	in, err := t.Get(inumber)
	if err != nil {
		return nil, err
	}

	in.Lock()
	if !in.live {
		in.Unlock()
		return nil, fmt.Errorf("%w: %d was deleted", flatfs.ErrBadInumber, inumber)
	}

	return in, nil
}

// RLock returns the inode read locked. The caller must RUnlock it.
func (t *Table) RLock(inumber flatfs.Inumber) (*Inode, error) {
	in, err := t.Get(inumber)
	if err != nil {
		return nil, err
	}

	in.RLock()
	if !in.live {
		in.RUnlock()
		return nil, fmt.Errorf("%w: %d was deleted", flatfs.ErrBadInumber, inumber)
	}

	return in, nil
}

// Delete frees every block of in and returns the slot to the table.
// REQUIRES_LOCK(in)
func (t *Table) Delete(in *Inode) error {
	if !in.live {
		return fmt.Errorf("%w: %d was deleted", flatfs.ErrBadInumber, in.inumber)
	}

	if err := t.DeleteBlocks(in); err != nil {
		return err
	}
	in.clear()

	t.l.Lock()
	defer t.l.Unlock()

	t.taken[in.inumber] = false
	t.used--

	return nil
}

// DeleteBlocks frees every block of in and resets its size to zero.
// REQUIRES_LOCK(in)
func (t *Table) DeleteBlocks(in *Inode) error {
	for i, bid := range in.blocks {
		if !bid.Valid() {
			continue
		}

		if err := t.blks.Free(bid); err != nil {
			return err
		}
		in.blocks[i] = flatfs.NoBlock
	}
	in.size = 0

	return nil
}

// MapBlock translates the logical block idx of in to a pool block. If the
// slot is empty and create is set a new block is allocated for it.
// REQUIRES_READ_LOCK(in), REQUIRES_LOCK(in) if create is set
func (t *Table) MapBlock(in *Inode, idx int, create bool) (flatfs.BlockID, error) {
	if idx < 0 || idx >= len(in.blocks) {
		return flatfs.NoBlock, fmt.Errorf("%w: block %d of inode %d", flatfs.ErrSizeLimit, idx, in.inumber)
	}

	if bid := in.blocks[idx]; bid.Valid() {
		return bid, nil
	}

	if !create {
		return flatfs.NoBlock, fmt.Errorf("%w: block %d of inode %d", flatfs.ErrNotAllocated, idx, in.inumber)
	}

	bid, _, err := t.blks.Allocate()
	if err != nil {
		return flatfs.NoBlock, err
	}
	in.blocks[idx] = bid

	return bid, nil
}

// Block is MapBlock followed by a lookup in the block store.
// Same locking requirements as MapBlock.
func (t *Table) Block(in *Inode, idx int, create bool) (*blkstore.Block, error) {
	bid, err := t.MapBlock(in, idx, create)
	if err != nil {
		return nil, err
	}

	return t.blks.Get(bid)
}

// Used returns the number of taken inodes.
func (t *Table) Used() int {
	t.l.RLock()
	defer t.l.RUnlock()

	return t.used
}

// Bitmap returns a copy of the allocation bitmap.
func (t *Table) Bitmap() []bool {
	t.l.RLock()
	defer t.l.RUnlock()

	return append([]bool(nil), t.taken...)
}
