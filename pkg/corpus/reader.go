// Package corpus reads training text out of chat logs.
//
// A chat log line usually carries a prefix such as a timestamp and a nick
// before the message itself, e.g. "12:01 <alice> hello there". Reader strips
// that prefix by taking the text between the first and the second occurrence
// of a delimiter, ">" by default.
package corpus

import (
	"bufio"
	"io"
	"strings"
)

// DefaultDelimiter separates the line prefix from the message.
const DefaultDelimiter = ">"

// DefaultMaxLineLength is the longest line the Reader accepts.
const DefaultMaxLineLength = 1 << 20

// Reader yields the message part of each line of a chat log.
type Reader struct {
	scanner       *bufio.Scanner
	delimiter     string
	keepUnmatched bool
	lines         int
}

// Option is a function that configures a Reader.
type Option func(*config)

type config struct {
	delimiter     string
	keepUnmatched bool
	maxLineLength int
}

// WithDelimiter sets the string separating the prefix from the message.
// An empty delimiter returns every line unchanged.
// Default: ">"
func WithDelimiter(delim string) Option {
	return func(c *config) {
		c.delimiter = delim
	}
}

// WithKeepUnmatched makes lines that do not contain the delimiter be returned
// whole instead of skipped.
// Default: false
func WithKeepUnmatched(keep bool) Option {
	return func(c *config) {
		c.keepUnmatched = keep
	}
}

// WithMaxLineLength sets the maximum accepted line length in bytes. Longer
// lines make Next fail with bufio.ErrTooLong.
// Default: 1 MiB
func WithMaxLineLength(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxLineLength = n
		}
	}
}

// NewReader creates a Reader over r with default settings, which can be
// overridden by providing one or more Option functions.
func NewReader(r io.Reader, opts ...Option) *Reader {
	c := config{
		delimiter:     DefaultDelimiter,
		maxLineLength: DefaultMaxLineLength,
	}
	for _, opt := range opts {
		opt(&c)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, c.maxLineLength)), c.maxLineLength)

	return &Reader{
		scanner:       scanner,
		delimiter:     c.delimiter,
		keepUnmatched: c.keepUnmatched,
	}
}

// Next returns the message of the next usable line. When the stream is
// exhausted it returns io.EOF. Any other error indicates a problem reading
// from the underlying stream.
func (r *Reader) Next() (string, error) {
	for r.scanner.Scan() {
		r.lines++
		if msg, ok := r.extract(r.scanner.Text()); ok {
			return msg, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Lines returns the number of raw lines consumed so far, including skipped
// ones.
func (r *Reader) Lines() int {
	return r.lines
}

func (r *Reader) extract(line string) (string, bool) {
	if r.delimiter == "" {
		return line, true
	}
	_, rest, found := strings.Cut(line, r.delimiter)
	if !found {
		return line, r.keepUnmatched
	}
	msg, _, _ := strings.Cut(rest, r.delimiter)
	return msg, true
}
