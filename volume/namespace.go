package volume

import (
	"github.com/keks/flatfs"
)

// FileInfo describes an inode.
type FileInfo struct {
	Inumber flatfs.Inumber
	Type    flatfs.InodeType
	Size    int64
	Blocks  int
}

// Stat returns the inode metadata of path.
func (v *Volume) Stat(path string) (FileInfo, error) {
	inum, err := v.Lookup(path)
	if err != nil {
		return FileInfo{}, err
	}

	return v.statInode(inum)
}

func (v *Volume) statInode(inum flatfs.Inumber) (FileInfo, error) {
	in, err := v.inodes.RLock(inum)
	if err != nil {
		return FileInfo{}, err
	}
	defer in.RUnlock()

	return FileInfo{
		Inumber: inum,
		Type:    in.Type(),
		Size:    in.Size(),
		Blocks:  in.BlockCount(),
	}, nil
}

// ReadDir lists the root directory.
func (v *Volume) ReadDir() ([]flatfs.Entry, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	return v.dir.List(flatfs.RootInumber)
}

// Unlink removes path from the root directory and deletes its inode.
// Handles still open on it fail from then on.
func (v *Volume) Unlink(path string) error {
	inum, err := v.Lookup(path)
	if err != nil {
		return err
	}

	if err := v.dir.Remove(flatfs.RootInumber, inum); err != nil {
		return err
	}

	in, err := v.inodes.Lock(inum)
	if err != nil {
		return err
	}
	defer in.Unlock()

	return v.inodes.Delete(in)
}

// Stats is a snapshot of the allocation state of a volume.
type Stats struct {
	Config flatfs.Config

	Inodes    []bool
	Blocks    []bool
	OpenFiles []bool

	BytesRead    uint64
	BytesWritten uint64
}

// Used counts the taken slots of a bitmap.
func Used(bitmap []bool) int {
	var n int
	for _, taken := range bitmap {
		if taken {
			n++
		}
	}
	return n
}

// Stats returns the allocation bitmaps and I/O counters. The bitmaps are
// copied one after the other, not atomically.
func (v *Volume) Stats() Stats {
	return Stats{
		Config:       v.cfg,
		Inodes:       v.inodes.Bitmap(),
		Blocks:       v.blks.Bitmap(),
		OpenFiles:    v.files.Bitmap(),
		BytesRead:    v.bytesRead.Load(),
		BytesWritten: v.bytesWritten.Load(),
	}
}
