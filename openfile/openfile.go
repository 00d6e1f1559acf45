// Package openfile implements the open file table: a fixed array of
// cursors into inodes. An entry does not own its inode.
package openfile

import (
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"

	"github.com/keks/flatfs"
)

// Entry binds an inode to a cursor. Distinct entries on the same inode
// have independent cursors.
type Entry struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	handle flatfs.FileHandle

	/////////////////////////
	// Mutable state
	/////////////////////////

	sync.RWMutex

	live    bool           // GUARDED_BY(RWMutex)
	inumber flatfs.Inumber // GUARDED_BY(RWMutex)
	offset  int64          // GUARDED_BY(RWMutex)
}

// Handle returns the index of the entry in its table.
func (e *Entry) Handle() flatfs.FileHandle { return e.handle }

// Inumber returns the inode the entry refers to.
// REQUIRES_READ_LOCK(e)
func (e *Entry) Inumber() flatfs.Inumber { return e.inumber }

// Offset returns the cursor position.
// REQUIRES_READ_LOCK(e)
func (e *Entry) Offset() int64 { return e.offset }

// SetOffset moves the cursor.
// REQUIRES_LOCK(e)
func (e *Entry) SetOffset(off int64) { e.offset = off }

// Table is the open file table.
type Table struct {
	entries []*Entry

	l syncutil.InvariantMutex

	// INVARIANT: len(taken) == len(entries)
	// INVARIANT: used == number of true entries in taken
	taken []bool // GUARDED_BY(l)
	used  int    // GUARDED_BY(l)
}

// NewTable returns a table with room for size open files.
func NewTable(size int) (*Table, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d open files", flatfs.ErrInvalidConfig, size)
	}

	t := &Table{
		entries: make([]*Entry, size),
		taken:   make([]bool, size),
	}
	for i := range t.entries {
		t.entries[i] = &Entry{handle: flatfs.FileHandle(i), inumber: -1}
	}
	t.l = syncutil.NewInvariantMutex(t.checkInvariants)

	return t, nil
}

func (t *Table) checkInvariants() {
	if len(t.taken) != len(t.entries) {
		panic(fmt.Sprintf("bitmap covers %d entries, table holds %d", len(t.taken), len(t.entries)))
	}

	var n int
	for _, taken := range t.taken {
		if taken {
			n++
		}
	}
	if n != t.used {
		panic(fmt.Sprintf("used is %d, bitmap has %d taken entries", t.used, n))
	}
}

// Len returns the capacity of the table.
func (t *Table) Len() int { return len(t.entries) }

// Acquire binds a free entry to inumber with its cursor at offset.
func (t *Table) Acquire(inumber flatfs.Inumber, offset int64) (flatfs.FileHandle, error) {
	fh, err := t.reserve()
	if err != nil {
		return -1, err
	}

	e := t.entries[fh]
	e.Lock()
	defer e.Unlock()

	e.inumber = inumber
	e.offset = offset
	e.live = true

	return fh, nil
}

func (t *Table) reserve() (flatfs.FileHandle, error) {
	t.l.Lock()
	defer t.l.Unlock()

	for i, taken := range t.taken {
		if taken {
			continue
		}

		t.taken[i] = true
		t.used++
		return flatfs.FileHandle(i), nil
	}

	return -1, flatfs.ErrTooManyOpen
}

// Release frees the entry fh. A concurrent read or write through fh
// finishes before the entry is reset.
func (t *Table) Release(fh flatfs.FileHandle) error {
	e, err := t.Lock(fh)
	if err != nil {
		return err
	}
	defer e.Unlock()

	e.live = false
	e.inumber = -1
	e.offset = 0

	t.l.Lock()
	defer t.l.Unlock()

	t.taken[fh] = false
	t.used--

	return nil
}

// Lookup validates fh and returns its entry without locking it.
func (t *Table) Lookup(fh flatfs.FileHandle) (*Entry, error) {
	if fh < 0 || int(fh) >= len(t.entries) {
		return nil, fmt.Errorf("%w: %d", flatfs.ErrBadHandle, fh)
	}

	t.l.RLock()
	taken := t.taken[fh]
	t.l.RUnlock()

	if !taken {
		return nil, fmt.Errorf("%w: %d is not open", flatfs.ErrBadHandle, fh)
	}

	return t.entries[fh], nil
}

// Lock returns the entry fh write locked. The caller must Unlock it.
func (t *Table) Lock(fh flatfs.FileHandle) (*Entry, error) {
	e, err := t.Lookup(fh)
	if err != nil {
		return nil, err
	}

	e.Lock()
	if !e.live {
		e.Unlock()
		return nil, fmt.Errorf("%w: %d was closed", flatfs.ErrBadHandle, fh)
	}

	return e, nil
}

// Used returns the number of open entries.
func (t *Table) Used() int {
	t.l.RLock()
	defer t.l.RUnlock()

	return t.used
}

// Bitmap returns a copy of the allocation bitmap.
func (t *Table) Bitmap() []bool {
	t.l.RLock()
	defer t.l.RUnlock()

	return append([]bool(nil), t.taken...)
}
