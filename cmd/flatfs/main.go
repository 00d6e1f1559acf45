package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
)

import (
	"github.com/timtadh/getopt"

	"github.com/keks/flatfs"
	"github.com/keks/flatfs/volume"
)

var ErrorCodes map[string]int = map[string]int{
	"usage":  0,
	"opts":   3,
	"badint": 5,
	"config": 6,
	"script": 7,
}

var UsageMessage string = "flatfs [options] [script]"
var ExtendedMessage string = `
flatfs -- an in-memory single directory file system driven by commands
          read from a script file or stdin

Options
  -h, --help                view this message
  --block-size=<int>        bytes per data block (default 1024)
  --data-blocks=<int>       blocks in the pool (default 1024)
  --direct-blocks=<int>     blocks per file (default 10)
  --inodes=<int>            inode table size (default 50)
  --open-files=<int>        open file table size (default 20)
  --max-name=<int>          name field width, terminator included (default 40)

Commands
  open <path> [c][t][a]     open a file, c creates, t truncates, a appends
  write <fd> <text>         write text at the cursor of fd
  read <fd> <n>             read up to n bytes from fd
  close <fd>                close fd
  unlink <path>             remove a file
  stat <path>               show inode, size and blocks of a file
  ls                        list the root directory
  export <path> <host>      copy a file out to the host
  rep <host>                write an allocation report, .png or text
  quit                      destroy the volume and exit
`

func Usage(code int) {
	fmt.Fprintln(os.Stderr, UsageMessage)
	if code == 0 {
		fmt.Fprintln(os.Stdout, ExtendedMessage)
		code = ErrorCodes["usage"]
	} else {
		fmt.Fprintln(os.Stderr, "Try -h or --help for help")
	}
	os.Exit(code)
}

func ParseInt(str string) int {
	i, err := strconv.Atoi(str)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing '%v' expected an int\n", str)
		Usage(ErrorCodes["badint"])
	}
	return i
}

func main() {
	args, optargs, err := getopt.GetOpt(
		os.Args[1:],
		"h",
		[]string{
			"help", "block-size=", "data-blocks=", "direct-blocks=",
			"inodes=", "open-files=", "max-name=",
		},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}

	cfg := flatfs.DefaultConfig()
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "--block-size":
			cfg.BlockSize = ParseInt(oa.Arg())
		case "--data-blocks":
			cfg.DataBlocks = ParseInt(oa.Arg())
		case "--direct-blocks":
			cfg.DataBlockCount = ParseInt(oa.Arg())
		case "--inodes":
			cfg.InodeTableSize = ParseInt(oa.Arg())
		case "--open-files":
			cfg.MaxOpenFiles = ParseInt(oa.Arg())
		case "--max-name":
			cfg.MaxFileName = ParseInt(oa.Arg())
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", oa.Opt())
			Usage(ErrorCodes["opts"])
		}
	}

	var in io.Reader = os.Stdin
	switch len(args) {
	case 0:
	case 1:
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			Usage(ErrorCodes["script"])
		}
		defer f.Close()
		in = f
	default:
		fmt.Fprintln(os.Stderr, "at most one script may be given")
		Usage(ErrorCodes["opts"])
	}

	v, err := volume.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["config"])
	}

	log.Printf("volume ready: %d blocks of %d bytes, %d inodes, files up to %d bytes",
		cfg.DataBlocks, cfg.BlockSize, cfg.InodeTableSize, cfg.MaxFileSize())

	sh := &shell{v: v, out: os.Stdout}
	run(sh, in)

	if err := v.Destroy(); err != nil {
		log.Fatal(err)
	}
}

// run executes one command per line until quit or end of input. Failed
// commands are logged and do not stop the script.
func run(sh *shell, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for lineno := 1; scanner.Scan(); lineno++ {
		quit, err := sh.exec(scanner.Text())
		if err != nil {
			log.Printf("line %d: %v", lineno, err)
		}
		if quit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading commands: %v", err)
	}
}
