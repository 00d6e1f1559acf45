package flatfs // import "github.com/keks/flatfs"

import (
	"io"
)

// Basic Types

// ReadWriterAt is both a ReaderAt and a WriterAt.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Block Layer

// BlockID identifies a block in the block pool.
type BlockID int32

// NoBlock marks an unused direct-block slot of an inode.
const NoBlock BlockID = -1

// Valid reports whether bid can refer to a block at all.
func (bid BlockID) Valid() bool { return bid >= 0 }

// Inode Layer

// Inumber identifies an inode in the inode table.
type Inumber int32

// RootInumber is the inode of the only directory.
const RootInumber Inumber = 0

// InodeType tells files and directories apart.
type InodeType uint8

const (
	TypeFile InodeType = iota
	TypeDirectory
)

func (t InodeType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	}
	return "unknown"
}

// Directory Layer

// FileName is a name inside the root directory, without the leading '/'.
type FileName string

// Entry is a live binding in the root directory.
type Entry struct {
	Name    FileName
	Inumber Inumber
}

// File Layer

// FileHandle identifies an entry of the open file table.
type FileHandle int32

// OpenFlag modifies how Open resolves a path.
type OpenFlag uint8

const (
	// OCreate creates the file if it does not exist.
	OCreate OpenFlag = 1 << iota

	// OTrunc drops the contents of an existing file.
	OTrunc

	// OAppend starts the cursor at the end of the file.
	OAppend
)

// Has reports whether all bits of o are set in f.
func (f OpenFlag) Has(o OpenFlag) bool { return f&o == o }
