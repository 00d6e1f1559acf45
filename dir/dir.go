// Package dir stores name to inode bindings in the blocks of a directory
// inode. Each block holds a fixed number of entries; an entry is the name,
// padded with zero bytes to the configured width, followed by the inode
// number as a little endian int32. An entry whose name starts with a zero
// byte is free.
package dir

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/keks/flatfs"
	"github.com/keks/flatfs/blkstore"
	"github.com/keks/flatfs/inode"
)

// Dir is the directory layer on top of an inode table.
type Dir struct {
	tbl *inode.Table

	nameSize int
	entSize  int
	perBlock int
}

// New returns the directory layer for tbl, whose blocks are blksize bytes
// wide, with names of up to maxName-1 bytes.
func New(tbl *inode.Table, blksize, maxName int) (*Dir, error) {
	d := &Dir{
		tbl:      tbl,
		nameSize: maxName,
		entSize:  flatfs.DirEntrySize(maxName),
	}
	d.perBlock = blksize / d.entSize

	if maxName < 2 || d.perBlock < 1 {
		return nil, fmt.Errorf("%w: %d byte names in %d byte blocks", flatfs.ErrInvalidConfig, maxName, blksize)
	}

	return d, nil
}

// EntriesPerBlock returns the number of entries that fit in one block.
func (d *Dir) EntriesPerBlock() int { return d.perBlock }

// ValidName checks that name fits an entry.
func (d *Dir) ValidName(name flatfs.FileName) error {
	if len(name) == 0 || len(name) > d.nameSize-1 {
		return fmt.Errorf("%w: %q", flatfs.ErrNameTooLong, name)
	}
	if bytes.IndexByte([]byte(name), 0) >= 0 {
		return fmt.Errorf("%w: %q contains a zero byte", flatfs.ErrInvalidPath, name)
	}

	return nil
}

type entry struct {
	name    []byte
	inumber flatfs.Inumber
}

func (e entry) free() bool { return len(e.name) == 0 }

func (d *Dir) readEntry(blk *blkstore.Block, slot int) (entry, error) {
	off := int64(slot * d.entSize)

	name := make([]byte, d.nameSize)
	if _, err := blk.ReadAt(name, off); err != nil {
		return entry{}, err
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	var inumber int32
	err := binary.Read(readerFromReaderAt(blk, off+int64(d.nameSize)), binary.LittleEndian, &inumber)
	if err != nil {
		return entry{}, err
	}

	return entry{name: name, inumber: flatfs.Inumber(inumber)}, nil
}

func (d *Dir) writeEntry(blk *blkstore.Block, slot int, e entry) error {
	off := int64(slot * d.entSize)

	name := make([]byte, d.nameSize)
	copy(name, e.name)
	if _, err := blk.WriteAt(name, off); err != nil {
		return err
	}

	return binary.Write(writerFromWriterAt(blk, off+int64(d.nameSize)), binary.LittleEndian, int32(e.inumber))
}

// scan calls fn for every slot of every allocated block of in until fn
// returns false.
// REQUIRES_READ_LOCK(in)
func (d *Dir) scan(in *inode.Inode, fn func(blk *blkstore.Block, slot int, e entry) bool) error {
	for idx := range in.Blocks() {
		blk, err := d.tbl.Block(in, idx, false)
		if errors.Is(err, flatfs.ErrNotAllocated) {
			continue
		} else if err != nil {
			return err
		}

		for slot := 0; slot < d.perBlock; slot++ {
			e, err := d.readEntry(blk, slot)
			if err != nil {
				return err
			}
			if !fn(blk, slot, e) {
				return nil
			}
		}
	}

	return nil
}

func checkDir(in *inode.Inode) error {
	if in.Type() != flatfs.TypeDirectory {
		return fmt.Errorf("%w: inode %d", flatfs.ErrNotDirectory, in.Inumber())
	}
	return nil
}

// Find returns the inode bound to name in directory dirnum.
func (d *Dir) Find(dirnum flatfs.Inumber, name flatfs.FileName) (flatfs.Inumber, error) {
	in, err := d.tbl.RLock(dirnum)
	if err != nil {
		return -1, fmt.Errorf("%w: %q: %v", flatfs.ErrNotFound, name, err)
	}
	defer in.RUnlock()

	if err := checkDir(in); err != nil {
		return -1, err
	}

	found := flatfs.Inumber(-1)
	err = d.scan(in, func(_ *blkstore.Block, _ int, e entry) bool {
		if !e.free() && string(e.name) == string(name) {
			found = e.inumber
			return false
		}
		return true
	})
	if err != nil {
		return -1, err
	}

	if found < 0 {
		return -1, fmt.Errorf("%w: %q", flatfs.ErrNotFound, name)
	}

	return found, nil
}

// Insert binds name to sub in directory dirnum. Names are unique; the
// directory grows by one block when every existing slot is taken.
func (d *Dir) Insert(dirnum, sub flatfs.Inumber, name flatfs.FileName) error {
	if sub < 0 {
		return fmt.Errorf("%w: %d", flatfs.ErrBadInumber, sub)
	}
	if err := d.ValidName(name); err != nil {
		return err
	}

	in, err := d.tbl.Lock(dirnum)
	if err != nil {
		return err
	}
	defer in.Unlock()

	if err := checkDir(in); err != nil {
		return err
	}

	var (
		exists  bool
		freeBlk *blkstore.Block
		free    = -1
	)
	err = d.scan(in, func(blk *blkstore.Block, slot int, e entry) bool {
		if e.free() {
			if freeBlk == nil {
				freeBlk, free = blk, slot
			}
			return true
		}

		exists = string(e.name) == string(name)
		return !exists
	})
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", flatfs.ErrExist, name)
	}

	e := entry{name: []byte(name), inumber: sub}
	if freeBlk != nil {
		return d.writeEntry(freeBlk, free, e)
	}

	blk, err := d.grow(in)
	if err != nil {
		return err
	}

	return d.writeEntry(blk, 0, e)
}

// grow maps the first empty direct block of in and marks all its slots
// free.
// REQUIRES_LOCK(in)
func (d *Dir) grow(in *inode.Inode) (*blkstore.Block, error) {
	for idx, bid := range in.Blocks() {
		if bid.Valid() {
			continue
		}

		blk, err := d.tbl.Block(in, idx, true)
		if err != nil {
			return nil, err
		}

		for slot := 0; slot < d.perBlock; slot++ {
			if err := d.writeEntry(blk, slot, entry{inumber: -1}); err != nil {
				return nil, err
			}
		}

		if end := int64(idx+1) * int64(blk.Size()); end > in.Size() {
			in.SetSize(end)
		}

		return blk, nil
	}

	return nil, fmt.Errorf("%w: inode %d", flatfs.ErrDirFull, in.Inumber())
}

// Remove frees the entry bound to sub in directory dirnum. Blocks are
// neither compacted nor released.
func (d *Dir) Remove(dirnum, sub flatfs.Inumber) error {
	in, err := d.tbl.Lock(dirnum)
	if err != nil {
		return err
	}
	defer in.Unlock()

	if err := checkDir(in); err != nil {
		return err
	}

	var (
		blk  *blkstore.Block
		slot = -1
	)
	err = d.scan(in, func(b *blkstore.Block, s int, e entry) bool {
		if !e.free() && e.inumber == sub {
			blk, slot = b, s
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	if blk == nil {
		return fmt.Errorf("%w: inode %d in directory %d", flatfs.ErrNotFound, sub, dirnum)
	}

	return d.writeEntry(blk, slot, entry{inumber: -1})
}

// List returns every live entry of directory dirnum in slot order.
func (d *Dir) List(dirnum flatfs.Inumber) ([]flatfs.Entry, error) {
	in, err := d.tbl.RLock(dirnum)
	if err != nil {
		return nil, err
	}
	defer in.RUnlock()

	if err := checkDir(in); err != nil {
		return nil, err
	}

	var ents []flatfs.Entry
	err = d.scan(in, func(_ *blkstore.Block, _ int, e entry) bool {
		if !e.free() {
			ents = append(ents, flatfs.Entry{Name: flatfs.FileName(e.name), Inumber: e.inumber})
		}
		return true
	})

	return ents, err
}
