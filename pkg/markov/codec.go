package markov

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Binary layout, all integers unsigned varints:
//
//	magic "WCHN", version byte
//	context count
//	per context: token prev, token prev_prev, entry count,
//	             per entry: token, count
//	token: kind byte, then for words: length, utf-8 bytes
//
// Contexts and entries are written in sorted order so equal models encode
// to identical bytes.
const (
	codecMagic   = "WCHN"
	codecVersion = 1

	// maxTokenBytes bounds a single decoded word.
	maxTokenBytes = 1 << 20
	// maxPrealloc caps map size hints taken from untrusted input.
	maxPrealloc = 1 << 16
)

// Encode writes the binary encoding of the model to w.
func (m *Model) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 64)

	buf = append(buf, codecMagic...)
	buf = append(buf, codecVersion)
	buf = binary.AppendUvarint(buf, uint64(len(m.chains)))

	for _, c := range m.Contexts() {
		table := m.chains[c]
		buf = appendToken(buf, c.Prev)
		buf = appendToken(buf, c.PrevPrev)
		buf = binary.AppendUvarint(buf, uint64(table.Len()))
		for _, tok := range sortedEntries(table) {
			buf = appendToken(buf, tok)
			buf = binary.AppendUvarint(buf, uint64(table.Count(tok)))
		}
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("%w: %w", ErrEncode, err)
		}
		buf = buf[:0]
	}

	if _, err := bw.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}

func appendToken(buf []byte, t Token) []byte {
	buf = append(buf, byte(t.Kind))
	if t.Kind == KindWord {
		buf = binary.AppendUvarint(buf, uint64(len(t.Text)))
		buf = append(buf, t.Text...)
	}
	return buf
}

// Decode reads a model written by Encode. Any deviation from the layout,
// including trailing bytes, is reported as ErrDecode.
func Decode(r io.Reader) (*Model, error) {
	m, err := decode(bufio.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return m, nil
}

func decode(br *bufio.Reader) (*Model, error) {
	header := make([]byte, len(codecMagic)+1)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, err
	}
	if string(header[:len(codecMagic)]) != codecMagic {
		return nil, errors.New("bad magic")
	}
	if header[len(codecMagic)] != codecVersion {
		return nil, fmt.Errorf("unsupported version %d", header[len(codecMagic)])
	}

	numContexts, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}

	m := NewModel()
	m.chains = make(map[Context]*ContinuationTable, min(numContexts, maxPrealloc))
	for i := uint64(0); i < numContexts; i++ {
		var c Context
		if c.Prev, err = readToken(br); err != nil {
			return nil, err
		}
		if c.PrevPrev, err = readToken(br); err != nil {
			return nil, err
		}
		if _, dup := m.chains[c]; dup {
			return nil, fmt.Errorf("duplicate context (%s, %s)", c.Prev, c.PrevPrev)
		}

		numEntries, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		if numEntries == 0 {
			return nil, fmt.Errorf("context (%s, %s) has no continuations", c.Prev, c.PrevPrev)
		}
		table := &ContinuationTable{
			counts: make(map[Token]int, min(numEntries, maxPrealloc)),
			order:  make([]Token, 0, min(numEntries, maxPrealloc)),
		}
		for j := uint64(0); j < numEntries; j++ {
			next, err := readToken(br)
			if err != nil {
				return nil, err
			}
			if err := checkLink(c, next); err != nil {
				return nil, err
			}
			if _, dup := table.counts[next]; dup {
				return nil, fmt.Errorf("duplicate continuation %s", next)
			}
			count, err := binary.ReadUvarint(br)
			if err != nil {
				return nil, err
			}
			if count == 0 || count > math.MaxInt-uint64(table.total) {
				return nil, fmt.Errorf("invalid count %d for %s", count, next)
			}
			table.add(next, int(count))
		}
		m.chains[c] = table
	}

	if _, err := br.ReadByte(); err != io.EOF {
		if err == nil {
			return nil, errors.New("trailing data after model")
		}
		return nil, err
	}
	return m, nil
}

func readToken(br *bufio.Reader) (Token, error) {
	kind, err := br.ReadByte()
	if err != nil {
		return Token{}, err
	}
	switch TokenKind(kind) {
	case KindStart:
		return StartOfLine, nil
	case KindEnd:
		return EndOfLine, nil
	case KindWord:
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return Token{}, err
		}
		if n > maxTokenBytes {
			return Token{}, fmt.Errorf("word of %d bytes exceeds limit", n)
		}
		text := make([]byte, n)
		if _, err := io.ReadFull(br, text); err != nil {
			return Token{}, err
		}
		word := string(text)
		if word == "" || strings.ToLower(word) != word {
			return Token{}, fmt.Errorf("word %q is not in canonical form", word)
		}
		return Token{Kind: KindWord, Text: word}, nil
	default:
		return Token{}, fmt.Errorf("unknown token kind %d", kind)
	}
}
