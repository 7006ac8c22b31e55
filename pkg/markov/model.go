package markov

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// Model is a learned second-order Markov chain over words. It maps every
// observed Context to the ContinuationTable of tokens that followed it.
//
// Learn needs exclusive access. Generate and the inspection methods only
// read, so they may run concurrently with each other as long as nothing is
// learning at the same time. Model does no locking of its own.
type Model struct {
	chains map[Context]*ContinuationTable
	logger *slog.Logger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NewModel returns an empty model. The zero Model is also usable.
func NewModel() *Model {
	return &Model{
		chains: make(map[Context]*ContinuationTable),
		logger: discardLogger,
	}
}

// SetLogger sets the logger for the Model. By default, all logs are discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func (m *Model) log() *slog.Logger {
	if m.logger == nil {
		return discardLogger
	}
	return m.logger
}

// add records n occurrences of next after c, creating the table if needed.
func (m *Model) add(c Context, next Token, n int) {
	if m.chains == nil {
		m.chains = make(map[Context]*ContinuationTable)
	}
	table, ok := m.chains[c]
	if !ok {
		table = &ContinuationTable{}
		m.chains[c] = table
	}
	table.add(next, n)
}

// Len returns the number of learned contexts.
func (m *Model) Len() int {
	return len(m.chains)
}

// Lookup returns a copy of the continuation counts learned for c.
func (m *Model) Lookup(c Context) (map[Token]int, bool) {
	table, ok := m.chains[c]
	if !ok {
		return nil, false
	}
	return table.Counts(), true
}

// Contexts returns every learned context in a stable order: boundary tokens
// sort before words, words sort lexically.
func (m *Model) Contexts() []Context {
	contexts := make([]Context, 0, len(m.chains))
	for c := range m.chains {
		contexts = append(contexts, c)
	}
	slices.SortFunc(contexts, compareContexts)
	return contexts
}

// sortedEntries returns the entries of a table in the same stable order
// used by Contexts.
func sortedEntries(t *ContinuationTable) []Token {
	tokens := make([]Token, 0, len(t.counts))
	for tok := range t.counts {
		tokens = append(tokens, tok)
	}
	slices.SortFunc(tokens, compareTokens)
	return tokens
}

// ExportedModel is the JSON representation of a model, used by ExportJSON
// and ImportJSON.
type ExportedModel struct {
	Vocabulary map[string]int  `json:"vocabulary"` // token_text -> token_id
	Chains     []ExportedChain `json:"chains"`
}

// ExportedChain is a single context -> next token link within an
// ExportedModel. All fields except Frequency are vocabulary IDs.
type ExportedChain struct {
	Prev      int `json:"prev"`
	PrevPrev  int `json:"prev_prev"`
	Next      int `json:"next"`
	Frequency int `json:"frequency"`
}

const (
	// StartTokenID is the reserved vocabulary ID of StartOfLine.
	StartTokenID = 0
	// EndTokenID is the reserved vocabulary ID of EndOfLine.
	EndTokenID = 1
)

// ExportJSON writes the model as indented JSON to w. Output order is
// deterministic.
func (m *Model) ExportJSON(w io.Writer) error {
	vocab := map[Token]int{StartOfLine: StartTokenID, EndOfLine: EndTokenID}
	idOf := func(t Token) int {
		id, ok := vocab[t]
		if !ok {
			id = len(vocab)
			vocab[t] = id
		}
		return id
	}

	var chains []ExportedChain
	for _, c := range m.Contexts() {
		table := m.chains[c]
		prev, prevPrev := idOf(c.Prev), idOf(c.PrevPrev)
		for _, next := range sortedEntries(table) {
			chains = append(chains, ExportedChain{
				Prev:      prev,
				PrevPrev:  prevPrev,
				Next:      idOf(next),
				Frequency: table.Count(next),
			})
		}
	}

	exported := ExportedModel{
		Vocabulary: make(map[string]int, len(vocab)),
		Chains:     chains,
	}
	for tok, id := range vocab {
		exported.Vocabulary[tok.String()] = id
	}

	m.log().Info("Model exported",
		slog.Int("vocab_items_exported", len(exported.Vocabulary)),
		slog.Int("chains_exported", len(chains)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportJSON reads a model written by ExportJSON and merges it into m:
// frequencies are added to any existing counts. The import is validated in
// full before anything is merged, so on error m is left unchanged.
func (m *Model) ImportJSON(r io.Reader) error {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return fmt.Errorf("failed to decode json model: %w", err)
	}

	tokens := map[int]Token{StartTokenID: StartOfLine, EndTokenID: EndOfLine}
	for text, id := range imported.Vocabulary {
		if (text == StartTokenText && id != StartTokenID) || (text == EndTokenText && id != EndTokenID) {
			return fmt.Errorf("reserved token %s has id %d", text, id)
		}
		if text == StartTokenText || text == EndTokenText {
			continue
		}
		if id == StartTokenID || id == EndTokenID {
			return fmt.Errorf("token %q uses reserved id %d", text, id)
		}
		if text == "" {
			return fmt.Errorf("empty token text for id %d", id)
		}
		if _, dup := tokens[id]; dup {
			return fmt.Errorf("duplicate vocabulary id %d", id)
		}
		tokens[id] = Word(text)
	}

	type link struct {
		ctx  Context
		next Token
		freq int
	}
	links := make([]link, 0, len(imported.Chains))
	for _, chain := range imported.Chains {
		prev, ok1 := tokens[chain.Prev]
		prevPrev, ok2 := tokens[chain.PrevPrev]
		next, ok3 := tokens[chain.Next]
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("import consistency error: chain (%d, %d -> %d) references unknown token id", chain.Prev, chain.PrevPrev, chain.Next)
		}
		if chain.Frequency <= 0 {
			return fmt.Errorf("import consistency error: chain (%d, %d -> %d) has frequency %d", chain.Prev, chain.PrevPrev, chain.Next, chain.Frequency)
		}
		c := Context{Prev: prev, PrevPrev: prevPrev}
		if err := checkLink(c, next); err != nil {
			return fmt.Errorf("import consistency error: %w", err)
		}
		links = append(links, link{ctx: c, next: next, freq: chain.Frequency})
	}

	for _, l := range links {
		m.add(l.ctx, l.next, l.freq)
	}

	m.log().Info("Model imported",
		slog.Int("vocab_items_merged", len(imported.Vocabulary)),
		slog.Int("chains_merged", len(links)),
	)
	return nil
}
