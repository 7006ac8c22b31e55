package markov

import (
	"cmp"
	"errors"
	"strings"
)

// TokenKind identifies which variant a Token holds.
type TokenKind uint8

const (
	// KindStart marks the implicit boundary before the first word of a line.
	KindStart TokenKind = iota
	// KindEnd marks the implicit boundary after the last word of a line.
	KindEnd
	// KindWord is a literal, lowercased word.
	KindWord
)

const (
	// StartTokenText is the reserved text for the start-of-line token in
	// exported and stored models.
	StartTokenText = "<SOL>"
	// EndTokenText is the reserved text for the end-of-line token in
	// exported and stored models.
	EndTokenText = "<EOL>"
)

// Token is a single unit in the chain: either a line boundary or a word.
// Tokens are comparable values and can be used directly as map keys. The
// zero Token is StartOfLine.
type Token struct {
	Kind TokenKind
	Text string // only set for KindWord
}

var (
	// StartOfLine is the boundary token that precedes every line.
	StartOfLine = Token{Kind: KindStart}
	// EndOfLine is the boundary token recorded after the last word of a line.
	EndOfLine = Token{Kind: KindEnd}
)

// Word returns a word token for w, folded to lowercase. It does not reject
// empty strings; callers are expected to filter those out first.
func Word(w string) Token {
	return Token{Kind: KindWord, Text: strings.ToLower(w)}
}

// IsWord reports whether t carries a literal word.
func (t Token) IsWord() bool {
	return t.Kind == KindWord
}

// String returns the word text, or the reserved text for boundary tokens.
func (t Token) String() string {
	switch t.Kind {
	case KindStart:
		return StartTokenText
	case KindEnd:
		return EndTokenText
	default:
		return t.Text
	}
}

// tokenFromText is the inverse of Token.String.
func tokenFromText(text string) Token {
	switch text {
	case StartTokenText:
		return StartOfLine
	case EndTokenText:
		return EndOfLine
	default:
		return Word(text)
	}
}

func compareTokens(a, b Token) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return strings.Compare(a.Text, b.Text)
}

// Context is the sliding window of the two most recently seen tokens. Prev
// is the newer of the two. The zero Context is (StartOfLine, StartOfLine),
// the state at the beginning of every line.
type Context struct {
	Prev     Token
	PrevPrev Token
}

// SeedContext returns the context a generated sentence starts from: the
// given word directly after the start of a line.
func SeedContext(word string) Context {
	return Context{Prev: Word(word), PrevPrev: StartOfLine}
}

// Shift slides the window forward by one token.
func (c *Context) Shift(t Token) {
	c.PrevPrev = c.Prev
	c.Prev = t
}

// Valid reports whether the context can be used as the key of a learned
// transition, which is the case once its newest slot holds a word.
func (c Context) Valid() bool {
	return c.Prev.IsWord()
}

func compareContexts(a, b Context) int {
	if c := compareTokens(a.Prev, b.Prev); c != 0 {
		return c
	}
	return compareTokens(a.PrevPrev, b.PrevPrev)
}

var (
	errInvalidContext = errors.New("context does not end in a word")
	errInvalidOlder   = errors.New("context cannot hold an end-of-line token")
	errInvalidNext    = errors.New("start-of-line cannot follow a context")
)

// checkLink rejects transitions that Learn can never produce. It guards the
// decoders so a loaded model has the same shape as a learned one.
func checkLink(c Context, next Token) error {
	if !c.Valid() {
		return errInvalidContext
	}
	if c.PrevPrev.Kind == KindEnd {
		return errInvalidOlder
	}
	if next.Kind == KindStart {
		return errInvalidNext
	}
	return nil
}
