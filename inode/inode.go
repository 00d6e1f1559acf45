package inode

import (
	"sync"

	"github.com/keks/flatfs"
)

// Inode is one slot of the inode table. All accessors require the inode
// lock, see the REQUIRES comments.
type Inode struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	inumber flatfs.Inumber

	/////////////////////////
	// Mutable state
	/////////////////////////

	sync.RWMutex

	// INVARIANT: !live implies size == 0 and every entry of blocks is NoBlock
	// INVARIANT: size <= len(blocks) * block size
	live   bool             // GUARDED_BY(RWMutex)
	typ    flatfs.InodeType // GUARDED_BY(RWMutex)
	size   int64            // GUARDED_BY(RWMutex)
	blocks []flatfs.BlockID // GUARDED_BY(RWMutex)
}

func newInode(inumber flatfs.Inumber, ndirect int) *Inode {
	in := &Inode{
		inumber: inumber,
		blocks:  make([]flatfs.BlockID, ndirect),
	}
	in.clear()
	return in
}

// Inumber returns the index of the inode in its table.
func (in *Inode) Inumber() flatfs.Inumber { return in.inumber }

// Live reports whether the slot holds a file or directory.
// REQUIRES_READ_LOCK(in)
func (in *Inode) Live() bool { return in.live }

// Type returns the inode type.
// REQUIRES_READ_LOCK(in)
func (in *Inode) Type() flatfs.InodeType { return in.typ }

// Size returns the number of valid content bytes.
// REQUIRES_READ_LOCK(in)
func (in *Inode) Size() int64 { return in.size }

// SetSize records a new content size.
// REQUIRES_LOCK(in)
func (in *Inode) SetSize(size int64) { in.size = size }

// Blocks returns a copy of the direct block list.
// REQUIRES_READ_LOCK(in)
func (in *Inode) Blocks() []flatfs.BlockID {
	return append([]flatfs.BlockID(nil), in.blocks...)
}

// BlockCount returns the number of allocated direct blocks.
// REQUIRES_READ_LOCK(in)
func (in *Inode) BlockCount() int {
	var n int
	for _, bid := range in.blocks {
		if bid.Valid() {
			n++
		}
	}
	return n
}

// REQUIRES_LOCK(in)
func (in *Inode) clear() {
	in.live = false
	in.typ = flatfs.TypeFile
	in.size = 0
	for i := range in.blocks {
		in.blocks[i] = flatfs.NoBlock
	}
}
