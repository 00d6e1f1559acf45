package flatfs

import (
	"fmt"
)

// DirEntrySize is the on-block width of a directory entry for a given
// maximum name length: the name bytes plus a little endian int32 inumber.
func DirEntrySize(maxName int) int { return maxName + 4 }

// Config fixes the geometry of a volume. It cannot change after the
// volume is created.
type Config struct {
	// BlockSize is the size of every data block in bytes.
	BlockSize int

	// DataBlocks is the number of blocks in the pool.
	DataBlocks int

	// DataBlockCount is the number of direct blocks per inode.
	DataBlockCount int

	// InodeTableSize is the number of inodes.
	InodeTableSize int

	// MaxOpenFiles is the size of the open file table.
	MaxOpenFiles int

	// MaxFileName is the width of the name field of a directory entry,
	// terminator included.
	MaxFileName int
}

// DefaultConfig returns the stock geometry.
func DefaultConfig() Config {
	return Config{
		BlockSize:      1024,
		DataBlocks:     1024,
		DataBlockCount: 10,
		InodeTableSize: 50,
		MaxOpenFiles:   20,
		MaxFileName:    40,
	}
}

// MaxFileSize is the largest size a file can grow to.
func (cfg Config) MaxFileSize() int64 {
	return int64(cfg.DataBlockCount) * int64(cfg.BlockSize)
}

// MaxDirEntries is the number of directory entries that fit in a block.
func (cfg Config) MaxDirEntries() int {
	return cfg.BlockSize / DirEntrySize(cfg.MaxFileName)
}

// Validate checks that the geometry can hold at least the root directory.
func (cfg Config) Validate() error {
	switch {
	case cfg.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, cfg.BlockSize)
	case cfg.DataBlocks <= 0:
		return fmt.Errorf("%w: data blocks %d", ErrInvalidConfig, cfg.DataBlocks)
	case cfg.DataBlockCount <= 0:
		return fmt.Errorf("%w: direct blocks %d", ErrInvalidConfig, cfg.DataBlockCount)
	case cfg.InodeTableSize <= 0:
		return fmt.Errorf("%w: inodes %d", ErrInvalidConfig, cfg.InodeTableSize)
	case cfg.MaxOpenFiles <= 0:
		return fmt.Errorf("%w: open files %d", ErrInvalidConfig, cfg.MaxOpenFiles)
	case cfg.MaxFileName < 2:
		return fmt.Errorf("%w: max file name %d", ErrInvalidConfig, cfg.MaxFileName)
	case cfg.MaxDirEntries() < 1:
		return fmt.Errorf("%w: block size %d cannot hold a directory entry of %d bytes",
			ErrInvalidConfig, cfg.BlockSize, DirEntrySize(cfg.MaxFileName))
	}
	return nil
}
