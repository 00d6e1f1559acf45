// Package volume is the public file API of an in-memory volume: a flat
// root directory of files, each at most DataBlockCount blocks long, read
// and written through open file handles.
//
// Every operation is safe for concurrent use. Locks are taken in the order
// open file entry, inode, table, and each one is released on every return
// path.
package volume

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/atomic"

	"github.com/keks/flatfs"
	"github.com/keks/flatfs/blkstore"
	"github.com/keks/flatfs/dir"
	"github.com/keks/flatfs/inode"
	"github.com/keks/flatfs/openfile"
)

// Volume owns the block pool, the inode table, the root directory and the
// open file table of one in-memory file system.
type Volume struct {
	cfg flatfs.Config

	blks   *blkstore.Blocks
	inodes *inode.Table
	dir    *dir.Dir
	files  *openfile.Table

	destroyed    atomic.Bool
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// New allocates the tables described by cfg and creates the root
// directory.
func New(cfg flatfs.Config) (*Volume, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &Volume{cfg: cfg}

	var err error
	if v.blks, err = blkstore.New(cfg.DataBlocks, cfg.BlockSize); err != nil {
		return nil, err
	}
	if v.inodes, err = inode.NewTable(v.blks, cfg.InodeTableSize, cfg.DataBlockCount); err != nil {
		return nil, err
	}
	if v.dir, err = dir.New(v.inodes, cfg.BlockSize, cfg.MaxFileName); err != nil {
		return nil, err
	}
	if v.files, err = openfile.NewTable(cfg.MaxOpenFiles); err != nil {
		return nil, err
	}

	root, err := v.inodes.Create(flatfs.TypeDirectory)
	if err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}
	if root != flatfs.RootInumber {
		return nil, fmt.Errorf("root directory got inode %d, want %d", root, flatfs.RootInumber)
	}

	return v, nil
}

// Config returns the geometry of the volume.
func (v *Volume) Config() flatfs.Config { return v.cfg }

// Destroy closes every open handle. The volume cannot be used afterwards.
func (v *Volume) Destroy() error {
	if !v.destroyed.CompareAndSwap(false, true) {
		return flatfs.ErrDestroyed
	}

	for fh, open := range v.files.Bitmap() {
		if !open {
			continue
		}

		// a concurrent Close may win; that is fine
		err := v.files.Release(flatfs.FileHandle(fh))
		if err != nil && !errors.Is(err, flatfs.ErrBadHandle) {
			return err
		}
	}

	return nil
}

func (v *Volume) check() error {
	if v.destroyed.Load() {
		return flatfs.ErrDestroyed
	}
	return nil
}

// parsePath turns "/name" into the root directory entry name.
func parsePath(path string) (flatfs.FileName, error) {
	if len(path) <= 1 || !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: %q", flatfs.ErrInvalidPath, path)
	}

	return flatfs.FileName(path[1:]), nil
}

// Lookup returns the inode of path.
func (v *Volume) Lookup(path string) (flatfs.Inumber, error) {
	if err := v.check(); err != nil {
		return -1, err
	}

	name, err := parsePath(path)
	if err != nil {
		return -1, err
	}

	return v.dir.Find(flatfs.RootInumber, name)
}

// Open resolves path and returns a handle with its own cursor.
//
// OCreate creates a missing file, OTrunc drops the contents of an existing
// one and OAppend puts the cursor at its end. If another caller creates the
// same name concurrently, the file that made it into the directory is
// opened.
func (v *Volume) Open(path string, flags flatfs.OpenFlag) (flatfs.FileHandle, error) {
	if err := v.check(); err != nil {
		return -1, err
	}

	name, err := parsePath(path)
	if err != nil {
		return -1, err
	}

	inum, err := v.dir.Find(flatfs.RootInumber, name)
	if errors.Is(err, flatfs.ErrNotFound) && flags.Has(flatfs.OCreate) {
		inum, err = v.create(name)
		if errors.Is(err, flatfs.ErrExist) {
			inum, err = v.dir.Find(flatfs.RootInumber, name)
		} else if err == nil {
			// fresh file, nothing to truncate
			return v.files.Acquire(inum, 0)
		}
	}
	if err != nil {
		return -1, err
	}

	offset, err := v.prepare(inum, flags)
	if err != nil {
		return -1, err
	}

	// if the table is full a file created above stays created
	return v.files.Acquire(inum, offset)
}

// create makes a new file inode and binds it to name, deleting the inode
// again if the directory rejects the name.
func (v *Volume) create(name flatfs.FileName) (flatfs.Inumber, error) {
	if err := v.dir.ValidName(name); err != nil {
		return -1, err
	}

	inum, err := v.inodes.Create(flatfs.TypeFile)
	if err != nil {
		return -1, err
	}

	if err := v.dir.Insert(flatfs.RootInumber, inum, name); err != nil {
		in, lerr := v.inodes.Lock(inum)
		if lerr != nil {
			return -1, errors.Join(err, fmt.Errorf("rolling back inode %d: %w", inum, lerr))
		}
		defer in.Unlock()

		if derr := v.inodes.Delete(in); derr != nil {
			return -1, errors.Join(err, fmt.Errorf("rolling back inode %d: %w", inum, derr))
		}
		return -1, err
	}

	return inum, nil
}

// prepare applies OTrunc and returns the initial cursor for an existing
// file.
func (v *Volume) prepare(inum flatfs.Inumber, flags flatfs.OpenFlag) (int64, error) {
	if flags.Has(flatfs.OTrunc) {
		in, err := v.inodes.Lock(inum)
		if err != nil {
			return 0, err
		}
		defer in.Unlock()

		if in.Size() > 0 {
			if err := v.inodes.DeleteBlocks(in); err != nil {
				return 0, err
			}
		}

		return 0, nil
	}

	in, err := v.inodes.RLock(inum)
	if err != nil {
		return 0, err
	}
	defer in.RUnlock()

	if flags.Has(flatfs.OAppend) {
		return in.Size(), nil
	}

	return 0, nil
}

// Close releases fh. The file itself is untouched.
func (v *Volume) Close(fh flatfs.FileHandle) error {
	if err := v.check(); err != nil {
		return err
	}

	return v.files.Release(fh)
}

// Read copies up to len(buf) bytes from the cursor of fh into buf and
// advances the cursor. It returns 0 at the end of the file.
func (v *Volume) Read(fh flatfs.FileHandle, buf []byte) (int, error) {
	if err := v.check(); err != nil {
		return 0, err
	}

	of, err := v.files.Lock(fh)
	if err != nil {
		return 0, err
	}
	defer of.Unlock()

	in, err := v.inodes.RLock(of.Inumber())
	if err != nil {
		return 0, err
	}
	defer in.RUnlock()

	off, size := of.Offset(), in.Size()
	if off >= size {
		return 0, nil
	}

	toRead := int64(len(buf))
	if rest := size - off; toRead > rest {
		toRead = rest
	}

	if off+toRead > v.cfg.MaxFileSize() {
		return 0, fmt.Errorf("%w: read of %d bytes at %d", flatfs.ErrSizeLimit, toRead, off)
	}

	if err := v.readBlocks(in, buf[:toRead], off); err != nil {
		return 0, err
	}

	of.SetOffset(off + toRead)
	v.bytesRead.Add(uint64(toRead))

	return int(toRead), nil
}

// readBlocks fills dst from the file content at off. Unallocated blocks
// inside the file read as zeros.
// REQUIRES_READ_LOCK(in)
func (v *Volume) readBlocks(in *inode.Inode, dst []byte, off int64) error {
	bs := int64(v.cfg.BlockSize)

	for done := 0; done < len(dst); {
		pos := off + int64(done)
		idx, boff := int(pos/bs), pos%bs

		chunk := len(dst) - done
		if room := int(bs - boff); chunk > room {
			chunk = room
		}
		part := dst[done : done+chunk]

		blk, err := v.inodes.Block(in, idx, false)
		switch {
		case errors.Is(err, flatfs.ErrNotAllocated):
			for i := range part {
				part[i] = 0
			}
		case err != nil:
			return err
		default:
			if _, err := blk.ReadAt(part, boff); err != nil {
				return err
			}
		}

		done += chunk
	}

	return nil
}

// Write copies buf to the cursor of fh, allocating blocks as needed, and
// advances the cursor. Writes past the maximum file size are cut short;
// the returned count is what was actually written.
//
// If a block cannot be allocated midway the error is returned, the cursor
// and size stay put and blocks written so far keep their new content.
func (v *Volume) Write(fh flatfs.FileHandle, buf []byte) (int, error) {
	if err := v.check(); err != nil {
		return 0, err
	}

	of, err := v.files.Lock(fh)
	if err != nil {
		return 0, err
	}
	defer of.Unlock()

	in, err := v.inodes.Lock(of.Inumber())
	if err != nil {
		return 0, err
	}
	defer in.Unlock()

	off := of.Offset()

	toWrite := int64(len(buf))
	if max := v.cfg.MaxFileSize(); off+toWrite > max {
		toWrite = max - off
	}
	if toWrite <= 0 {
		return 0, nil
	}

	if err := v.writeBlocks(in, buf[:toWrite], off); err != nil {
		return 0, err
	}

	end := off + toWrite
	of.SetOffset(end)
	if end > in.Size() {
		in.SetSize(end)
	}
	v.bytesWritten.Add(uint64(toWrite))

	return int(toWrite), nil
}

// writeBlocks copies src into the file content at off.
// REQUIRES_LOCK(in)
func (v *Volume) writeBlocks(in *inode.Inode, src []byte, off int64) error {
	bs := int64(v.cfg.BlockSize)

	for done := 0; done < len(src); {
		pos := off + int64(done)
		idx, boff := int(pos/bs), pos%bs

		chunk := len(src) - done
		if room := int(bs - boff); chunk > room {
			chunk = room
		}

		blk, err := v.inodes.Block(in, idx, true)
		if err != nil {
			return err
		}
		if _, err := blk.WriteAt(src[done:done+chunk], boff); err != nil {
			return err
		}

		done += chunk
	}

	return nil
}
