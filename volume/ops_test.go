package volume

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keks/flatfs"
)

type op interface {
	Do(*testing.T, *Volume)
}

type openOp struct {
	path  string
	flags flatfs.OpenFlag
	fh    *flatfs.FileHandle

	expErr error
}

func (op openOp) Do(t *testing.T, v *Volume) {
	fh, err := v.Open(op.path, op.flags)
	if op.expErr != nil {
		require.ErrorIs(t, err, op.expErr)
		return
	}

	require.NoError(t, err)
	if op.fh != nil {
		*op.fh = fh
	}
}

type closeOp struct {
	fh *flatfs.FileHandle

	expErr error
}

func (op closeOp) Do(t *testing.T, v *Volume) {
	err := v.Close(*op.fh)
	if op.expErr == nil {
		require.NoError(t, err)
	} else {
		require.ErrorIs(t, err, op.expErr)
	}
}

type writeOp struct {
	fh   *flatfs.FileHandle
	data []byte

	// expN defaults to len(data)
	expN   int
	expErr error
}

func (op writeOp) Do(t *testing.T, v *Volume) {
	n, err := v.Write(*op.fh, op.data)
	if op.expErr != nil {
		require.ErrorIs(t, err, op.expErr)
		return
	}

	require.NoError(t, err)
	if op.expN == 0 {
		op.expN = len(op.data)
	}
	require.Equal(t, op.expN, n)
}

type readOp struct {
	fh      *flatfs.FileHandle
	readlen int

	exp    []byte
	expErr error
}

func (op readOp) Do(t *testing.T, v *Volume) {
	if op.readlen == 0 {
		op.readlen = len(op.exp)
	}

	buf := make([]byte, op.readlen)
	n, err := v.Read(*op.fh, buf)
	if op.expErr != nil {
		require.ErrorIs(t, err, op.expErr)
		return
	}

	require.NoError(t, err)
	t.Logf("readOp, n: %d, contents %q", n, buf[:n])
	require.Equal(t, len(op.exp), n)
	require.Equal(t, op.exp, buf[:n])
}

type statOp struct {
	path string

	expSize   int64
	expBlocks int
	expErr    error
}

func (op statOp) Do(t *testing.T, v *Volume) {
	fi, err := v.Stat(op.path)
	if op.expErr != nil {
		require.ErrorIs(t, err, op.expErr)
		return
	}

	require.NoError(t, err)
	require.Equal(t, flatfs.TypeFile, fi.Type)
	require.Equal(t, op.expSize, fi.Size, "size of %s", op.path)
	require.Equal(t, op.expBlocks, fi.Blocks, "blocks of %s", op.path)
}

type unlinkOp struct {
	path string

	expErr error
}

func (op unlinkOp) Do(t *testing.T, v *Volume) {
	err := v.Unlink(op.path)
	if op.expErr == nil {
		require.NoError(t, err)
	} else {
		require.ErrorIs(t, err, op.expErr)
	}
}

type blocksUsedOp struct {
	exp int
}

func (op blocksUsedOp) Do(t *testing.T, v *Volume) {
	require.Equal(t, op.exp, Used(v.Stats().Blocks))
}

type inodesUsedOp struct {
	exp int
}

func (op inodesUsedOp) Do(t *testing.T, v *Volume) {
	require.Equal(t, op.exp, Used(v.Stats().Inodes))
}

type funcOp func(*testing.T, *Volume)

func (op funcOp) Do(t *testing.T, v *Volume) { op(t, v) }
