package markov

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// maxLineLength bounds a single line read by LearnFrom.
const maxLineLength = 1 << 20

// Learn records every two-token transition in line. Words are split on
// ASCII whitespace and lowercased; parts made only of other whitespace are
// dropped. Each word is recorded as following the
// current context once that context ends in a word, and the final context
// is recorded as being followed by EndOfLine. A line with no words learns
// nothing.
func (m *Model) Learn(line string) {
	var c Context
	for _, part := range strings.FieldsFunc(line, isASCIISpace) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		word := Word(part)
		if c.Valid() {
			m.add(c, word, 1)
		}
		c.Shift(word)
	}
	if c.Valid() {
		m.add(c, EndOfLine, 1)
	}
}

// LearnFrom learns every line read from r and returns how many lines were
// read.
func (m *Model) LearnFrom(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var lines int
	for scanner.Scan() {
		m.Learn(scanner.Text())
		lines++
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("failed reading line %d: %w", lines+1, err)
	}

	m.log().Info("Training completed",
		slog.Int("lines_processed", lines),
		slog.Int("contexts", len(m.chains)),
	)
	return lines, nil
}

// isASCIISpace matches space, \t, \n, \f and \r. Vertical tab is not
// treated as whitespace.
func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}
