package wal

import (
	"bufio"
	"io"
)

// newLineScanner wraps bufio.Scanner with a larger buffer so long WAL
// entries (unusually long temp/final paths) don't trip the scanner's
// default 64KiB token limit.
func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)
	return s
}
