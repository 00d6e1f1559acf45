package blkstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keks/flatfs"
)

type op interface {
	Do(*testing.T, *Blocks)
}

type blksAllocateOp struct {
	blk   **Block
	blkid *flatfs.BlockID

	expBid flatfs.BlockID
	expErr error
}

func (op blksAllocateOp) Do(t *testing.T, blks *Blocks) {
	bid, blk, err := blks.Allocate()
	if op.expErr == nil {
		require.NoError(t, err)
	} else {
		require.ErrorIs(t, err, op.expErr)
		return
	}

	require.Equal(t, op.expBid, bid, "block id returned by allocate")
	require.Equal(t, bid, blk.ID())

	if op.blk != nil {
		*op.blk = blk
	}
	if op.blkid != nil {
		*op.blkid = bid
	}
}

type blksFreeOp struct {
	blkid flatfs.BlockID

	expErr error
}

func (op blksFreeOp) Do(t *testing.T, blks *Blocks) {
	err := blks.Free(op.blkid)
	if op.expErr == nil {
		require.NoError(t, err)
	} else {
		require.ErrorIs(t, err, op.expErr)
	}
}

type blksGetOp struct {
	blkid flatfs.BlockID
	blk   **Block

	expErr error
}

func (op blksGetOp) Do(t *testing.T, blks *Blocks) {
	t.Logf("blocks get bid=%d", op.blkid)
	blk, err := blks.Get(op.blkid)
	if op.expErr == nil {
		require.NoError(t, err)
	} else {
		require.ErrorIs(t, err, op.expErr)
		return
	}

	if op.blk != nil {
		*op.blk = blk
	}
}

type blksUsedOp struct {
	exp int
}

func (op blksUsedOp) Do(t *testing.T, blks *Blocks) {
	require.Equal(t, op.exp, blks.Used())
}

type blkWriteOp struct {
	blk  **Block
	data []byte
	off  int64

	expN   int
	expErr string
}

func (op blkWriteOp) Do(t *testing.T, blks *Blocks) {
	r := require.New(t)

	n, err := (*op.blk).WriteAt(op.data, op.off)

	t.Logf("writeOp, n: %d, err: %v", n, err)

	r.Equal(op.expN, n)
	if op.expErr == "" {
		r.NoError(err)
	} else {
		r.EqualError(err, op.expErr)
	}
}

type blkReadOp struct {
	blk     **Block
	off     int64
	readlen int

	exp    []byte
	expN   int
	expErr string
}

func (op blkReadOp) Do(t *testing.T, blks *Blocks) {
	r := require.New(t)
	if op.readlen == 0 {
		op.readlen = len(op.exp)
	}

	buf := make([]byte, op.readlen)
	n, err := (*op.blk).ReadAt(buf, op.off)

	t.Logf("readOp, n: %d, err: %v", n, err)

	if op.expErr == "" {
		r.NoError(err)
	} else {
		r.EqualError(err, op.expErr)
	}
	r.Equal(op.expN, n)
	t.Logf("buffer contents %q | 0x%x", buf[:op.expN], buf[:op.expN])
	r.True(bytes.Equal(buf[:op.expN], op.exp))
}

type dumpOp struct {
	name string
	v    interface{}
}

func (op dumpOp) Do(t *testing.T, blks *Blocks) {
	t.Logf("%s: %#v", op.name, op.v)
}
