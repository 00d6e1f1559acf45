// Package report renders the allocation state of a volume, either as a
// plain text bitmap or as a PNG grid.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"

	"github.com/keks/flatfs/volume"
)

// PerLine is the number of bitmap cells per text line and per PNG row.
const PerLine = 20

// Bitmap writes bitmap as 0 (free) and 1 (taken) digits, PerLine per line.
func Bitmap(w io.Writer, title string, bitmap []bool) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s (%d/%d used)\n", title, volume.Used(bitmap), len(bitmap))
	for i, taken := range bitmap {
		if taken {
			bw.WriteByte('1')
		} else {
			bw.WriteByte('0')
		}

		if (i+1)%PerLine == 0 {
			bw.WriteByte('\n')
		} else if i+1 < len(bitmap) {
			bw.WriteByte(' ')
		}
	}
	if len(bitmap)%PerLine != 0 {
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

// Text writes the inode, block and open file bitmaps of st followed by
// the I/O counters.
func Text(w io.Writer, st volume.Stats) error {
	sections := []struct {
		title  string
		bitmap []bool
	}{
		{"inodes", st.Inodes},
		{"blocks", st.Blocks},
		{"open files", st.OpenFiles},
	}

	for _, s := range sections {
		if err := Bitmap(w, s.title, s.bitmap); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "bytes read %d, bytes written %d\n", st.BytesRead, st.BytesWritten)
	return err
}

const (
	cell   = 16
	gap    = 2
	margin = 10
	header = 24
)

func gridHeight(n int) int {
	rows := (n + PerLine - 1) / PerLine
	return header + rows*(cell+gap)
}

// PNG draws one grid per bitmap of st, taken cells filled.
func PNG(w io.Writer, st volume.Stats) error {
	grids := []struct {
		title   string
		bitmap  []bool
		r, g, b float64
	}{
		{"inodes", st.Inodes, 0.4, 0.6, 1},
		{"blocks", st.Blocks, 0.4, 0.8, 0.4},
		{"open files", st.OpenFiles, 1, 0.6, 0.4},
	}

	width := 2*margin + PerLine*(cell+gap)
	height := margin
	for _, grid := range grids {
		height += gridHeight(len(grid.bitmap)) + margin
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	y := float64(margin)
	for _, grid := range grids {
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(
			fmt.Sprintf("%s %d/%d", grid.title, volume.Used(grid.bitmap), len(grid.bitmap)),
			margin, y+header/2, 0, 0.5)

		for i, taken := range grid.bitmap {
			x := float64(margin + (i%PerLine)*(cell+gap))
			cy := y + header + float64((i/PerLine)*(cell+gap))

			if taken {
				dc.SetRGB(grid.r, grid.g, grid.b)
			} else {
				dc.SetRGB(0.9, 0.9, 0.9)
			}
			dc.DrawRectangle(x, cy, cell, cell)
			dc.Fill()
		}

		y += float64(gridHeight(len(grid.bitmap)) + margin)
	}

	return dc.EncodePNG(w)
}

// WriteFile renders st to the host file path, as PNG if the name ends in
// .png and as text otherwise.
func WriteFile(path string, st volume.Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".png") {
		err = PNG(f, st)
	} else {
		err = Text(f, st)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("writing report %s: %w", path, err)
	}

	return f.Close()
}
