package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/keks/flatfs"
	"github.com/keks/flatfs/report"
	"github.com/keks/flatfs/volume"
)

var errUsage = errors.New("usage")

type shell struct {
	v   *volume.Volume
	out io.Writer
}

func cut(s string) (string, string) {
	head, tail, _ := strings.Cut(strings.TrimSpace(s), " ")
	return head, strings.TrimSpace(tail)
}

func parseHandle(s string) (flatfs.FileHandle, error) {
	fd, err := strconv.Atoi(s)
	if err != nil {
		return -1, fmt.Errorf("%w: bad fd %q", errUsage, s)
	}
	return flatfs.FileHandle(fd), nil
}

func parseFlags(s string) (flatfs.OpenFlag, error) {
	var flags flatfs.OpenFlag
	for _, c := range s {
		switch c {
		case 'c':
			flags |= flatfs.OCreate
		case 't':
			flags |= flatfs.OTrunc
		case 'a':
			flags |= flatfs.OAppend
		default:
			return 0, fmt.Errorf("%w: bad open flag %q", errUsage, c)
		}
	}
	return flags, nil
}

// exec runs a single command line. Empty lines and lines starting with #
// are skipped.
func (sh *shell) exec(line string) (quit bool, err error) {
	cmd, rest := cut(line)
	if cmd == "" || strings.HasPrefix(cmd, "#") {
		return false, nil
	}

	switch cmd {
	case "open":
		path, mode := cut(rest)
		flags, err := parseFlags(mode)
		if err != nil {
			return false, err
		}
		fh, err := sh.v.Open(path, flags)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "fd %d\n", fh)

	case "write":
		fd, text := cut(rest)
		fh, err := parseHandle(fd)
		if err != nil {
			return false, err
		}
		n, err := sh.v.Write(fh, []byte(text))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "wrote %d\n", n)

	case "read":
		fd, count := cut(rest)
		fh, err := parseHandle(fd)
		if err != nil {
			return false, err
		}
		n, err := strconv.Atoi(count)
		if err != nil || n < 0 {
			return false, fmt.Errorf("%w: bad count %q", errUsage, count)
		}
		// no file holds more than this
		if max := sh.v.Config().MaxFileSize(); int64(n) > max {
			n = int(max)
		}
		buf := make([]byte, n)
		if n, err = sh.v.Read(fh, buf); err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "read %d %q\n", n, buf[:n])

	case "close":
		fh, err := parseHandle(rest)
		if err != nil {
			return false, err
		}
		return false, sh.v.Close(fh)

	case "unlink":
		return false, sh.v.Unlink(rest)

	case "stat":
		fi, err := sh.v.Stat(rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "inode %d %s size %d blocks %d\n", fi.Inumber, fi.Type, fi.Size, fi.Blocks)

	case "ls":
		ents, err := sh.v.ReadDir()
		if err != nil {
			return false, err
		}
		for _, e := range ents {
			fi, err := sh.v.Stat("/" + string(e.Name))
			if err != nil {
				return false, err
			}
			fmt.Fprintf(sh.out, "%4d %8d /%s\n", e.Inumber, fi.Size, e.Name)
		}

	case "export":
		path, host := cut(rest)
		if host == "" {
			return false, fmt.Errorf("%w: export <path> <host>", errUsage)
		}
		return false, sh.v.ExportToHost(path, host)

	case "rep":
		if rest == "" {
			return false, fmt.Errorf("%w: rep <host>", errUsage)
		}
		return false, report.WriteFile(rest, sh.v.Stats())

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	return false, nil
}
