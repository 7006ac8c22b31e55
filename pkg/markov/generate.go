package markov

import (
	"log/slog"
	"math/rand/v2"
	"strings"
)

// breakChance is the percentage chance of stopping after produced words:
// 10% more for every three words. It is not capped, so from 30 words on the
// walk always stops.
func breakChance(produced int) int {
	return (produced / 3) * 10
}

// Generate tries to produce a sentence that starts with startingWord, using
// a freshly seeded random source. It returns false if no word could follow
// the starting word.
func (m *Model) Generate(startingWord string) (string, bool) {
	return m.GenerateRand(newRand(), startingWord)
}

// GenerateRand is Generate with an injected random source. Passing a
// seeded rng makes generation reproducible for a given model.
//
// The walk starts from (startingWord, StartOfLine) and repeatedly samples
// the next token from the current context. It stops at an unknown context,
// at EndOfLine, or when a draw falls under the growing break chance. The
// result is the lowercased starting word followed by every generated word.
func (m *Model) GenerateRand(rng *rand.Rand, startingWord string) (string, bool) {
	if rng == nil {
		rng = newRand()
	}
	word := strings.ToLower(startingWord)
	c := SeedContext(word)

	var builder strings.Builder
	produced := 0
	for {
		table, ok := m.chains[c]
		if !ok {
			m.log().Debug("Generation terminated due to dead-end",
				slog.String("prev", c.Prev.String()),
				slog.String("prev_prev", c.PrevPrev.String()),
				slog.Int("generated_length", produced),
			)
			break
		}
		next, ok := table.Sample(rng)
		if !ok || !next.IsWord() {
			m.log().Debug("Generation terminated by end of line",
				slog.Int("generated_length", produced),
			)
			break
		}

		if produced > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(next.Text)
		c.Shift(next)
		produced++

		if rng.IntN(100) < breakChance(produced) {
			m.log().Debug("Generation terminated by break chance",
				slog.Int("generated_length", produced),
			)
			break
		}
	}

	if produced == 0 {
		return "", false
	}
	return word + " " + builder.String(), true
}
