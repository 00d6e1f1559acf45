package volume

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/keks/flatfs"
)

// Export writes the whole content of path to w and returns the number of
// bytes written. The content is read in one call, so it is a snapshot
// taken under the inode lock.
func (v *Volume) Export(path string, w io.Writer) (int64, error) {
	fh, err := v.Open(path, 0)
	if err != nil {
		return 0, err
	}
	defer v.Close(fh)

	size, err := v.handleSize(fh)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, size)
	n, err := v.Read(fh, buf)
	if err != nil {
		return 0, err
	}

	written, err := w.Write(buf[:n])
	if err == nil && written != n {
		err = io.ErrShortWrite
	}

	return int64(written), err
}

// ExportToHost copies the content of path into a host file at dst, which
// is created or truncated. The content is read before dst is touched, so
// a source that cannot be read leaves dst as it was. A failed or short
// host write leaves whatever reached dst in place.
func (v *Volume) ExportToHost(path, dst string) error {
	var buf bytes.Buffer
	if _, err := v.Export(path, &buf); err != nil {
		return fmt.Errorf("exporting %s: %w", path, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("exporting %s: %w", path, err)
	}

	n, err := f.Write(buf.Bytes())
	if err == nil && n != buf.Len() {
		err = io.ErrShortWrite
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("exporting %s to %s: %w", path, dst, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("exporting %s to %s: %w", path, dst, err)
	}

	return nil
}

func (v *Volume) handleSize(fh flatfs.FileHandle) (int64, error) {
	of, err := v.files.Lookup(fh)
	if err != nil {
		return 0, err
	}

	of.RLock()
	inum := of.Inumber()
	of.RUnlock()

	in, err := v.inodes.RLock(inum)
	if err != nil {
		return 0, err
	}
	defer in.RUnlock()

	return in.Size(), nil
}
