package blkstore

import (
	"io"

	"github.com/keks/flatfs"
)

// Block is a view of one pool block. It is not locked; callers serialize
// access through the lock of the inode owning the block.
type Block struct {
	id  flatfs.BlockID
	buf []byte
}

// ID returns the index of the block in the pool.
func (blk *Block) ID() flatfs.BlockID { return blk.id }

// Size returns the block size in bytes.
func (blk *Block) Size() int { return len(blk.buf) }

func (blk *Block) ReadAt(dst []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(blk.buf)) {
		return 0, io.EOF
	}

	n := copy(dst, blk.buf[off:])

	// return EOF if the caller wanted to read beyond the end of the block
	if n < len(dst) {
		return n, io.EOF
	}

	return n, nil
}

func (blk *Block) WriteAt(data []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(blk.buf)) {
		return 0, io.EOF
	}

	n := copy(blk.buf[off:], data)

	// the block does not grow, report the short write like ReadAt does
	if n < len(data) {
		return n, io.EOF
	}

	return n, nil
}

func (blk *Block) zero() {
	for i := range blk.buf {
		blk.buf[i] = 0
	}
}
