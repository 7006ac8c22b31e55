package markov

import (
	"maps"
	"math/rand/v2"
)

// ContinuationTable counts how often each token has followed a single
// context. Counts only ever grow and every stored count is at least 1.
// The zero value is an empty table ready for use.
type ContinuationTable struct {
	counts map[Token]int
	order  []Token // first-seen order of the keys of counts
	total  int
}

// Record increments the count for t, inserting it with a count of 1 if it
// has not been seen before.
func (t *ContinuationTable) Record(tok Token) {
	t.add(tok, 1)
}

func (t *ContinuationTable) add(tok Token, n int) {
	if t.counts == nil {
		t.counts = make(map[Token]int)
	}
	if _, ok := t.counts[tok]; !ok {
		t.order = append(t.order, tok)
	}
	t.counts[tok] += n
	t.total += n
}

// Count returns how many times tok has been recorded.
func (t *ContinuationTable) Count(tok Token) int {
	return t.counts[tok]
}

// Total returns the sum of all recorded counts.
func (t *ContinuationTable) Total() int {
	return t.total
}

// Len returns the number of distinct tokens in the table.
func (t *ContinuationTable) Len() int {
	return len(t.counts)
}

// Counts returns a copy of the table's token counts.
func (t *ContinuationTable) Counts() map[Token]int {
	return maps.Clone(t.counts)
}

// Sample picks a token with probability count/total using rng. It returns
// false if the table is empty. Entries are scanned in the order they were
// first recorded, so the same rng state always yields the same token.
func (t *ContinuationTable) Sample(rng *rand.Rand) (Token, bool) {
	if len(t.counts) == 0 || t.total <= 0 {
		return Token{}, false
	}
	if rng == nil {
		rng = newRand()
	}
	index := rng.IntN(t.total)
	for _, tok := range t.order {
		count := t.counts[tok]
		if count > index {
			return tok, true
		}
		index -= count
	}
	return Token{}, false
}

// newRand returns a freshly seeded source for callers that did not inject one.
func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
