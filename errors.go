package flatfs

import (
	"fmt"
)

type constErr string

func (e constErr) Error() string { return string(e) }

// Error categories. Every error returned by this module matches one of
// them with errors.Is, except host I/O errors which wrap the os error.
const (
	ErrInvalid   constErr = "invalid argument"
	ErrNoSpace   constErr = "no space left"
	ErrSizeLimit constErr = "file size limit exceeded"
	ErrNotFound  constErr = "no such file"
	ErrExist     constErr = "file exists"
)

var (
	ErrInvalidPath   = fmt.Errorf("%w: bad path", ErrInvalid)
	ErrNameTooLong   = fmt.Errorf("%w: bad file name length", ErrInvalid)
	ErrBadHandle     = fmt.Errorf("%w: bad file handle", ErrInvalid)
	ErrBadInumber    = fmt.Errorf("%w: bad inode number", ErrInvalid)
	ErrBadBlock      = fmt.Errorf("%w: bad block index", ErrInvalid)
	ErrInvalidConfig = fmt.Errorf("%w: bad configuration", ErrInvalid)
	ErrNotDirectory  = fmt.Errorf("%w: not a directory", ErrInvalid)

	ErrNoFreeInode = fmt.Errorf("%w: out of inodes", ErrNoSpace)
	ErrNoFreeBlock = fmt.Errorf("%w: out of data blocks", ErrNoSpace)
	ErrTooManyOpen = fmt.Errorf("%w: open file table full", ErrNoSpace)
	ErrDirFull     = fmt.Errorf("%w: directory full", ErrNoSpace)

	// ErrNotAllocated is returned when mapping a logical block that has no
	// physical block and creation was not requested.
	ErrNotAllocated = fmt.Errorf("%w: block not allocated", ErrInvalid)
)

// ErrDestroyed is returned by every operation on a destroyed volume.
var ErrDestroyed = fmt.Errorf("%w: volume destroyed", ErrInvalid)
