package wire

import (
	"bufio"
	"errors"
	"io"
)

// ErrEmptyLine is returned by ReadLine for a bare "\n" with no tokens; callers
// should log and continue reading rather than treat it as fatal (spec §4.1).
var ErrEmptyLine = errors.New("wire: empty line")

// Scanner reads the line-delimited protocol off a stream, including the
// embedded binary payloads that follow certain headers. It is built on a
// single *bufio.Reader so that bytes already buffered while scanning for the
// newline of a header line are available, without a second read, to the
// following exact-length binary read (spec §4.1, §9 design note on embedded
// binary in a text protocol).
type Scanner struct {
	r *bufio.Reader
}

// NewScanner wraps r. The same reader must not be used concurrently or
// through any other path; Scanner owns all buffering.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 4096)}
}

// ReadLine reads one newline-terminated line and returns it without the
// trailing '\n'. A line containing only "\n" yields ErrEmptyLine so the
// caller can log-and-continue per spec §4.1's "reject empty lines with a
// logged warning" rule.
func (s *Scanner) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		// A final line with no trailing newline (peer closed mid-line) is
		// still surfaced to the caller so the EOF path can log what, if
		// anything, was read.
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return line, nil
		}
		return "", err
	}
	line = line[:len(line)-1]
	if len(line) == 0 {
		return "", ErrEmptyLine
	}
	return line, nil
}

// ReadExact reads exactly n bytes, which may contain any byte value
// including '\n' and NUL (spec §4.1's msgbin payload). It never delimits by
// newline.
func (s *Scanner) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
