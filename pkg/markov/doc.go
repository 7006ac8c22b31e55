/*
Package markov implements a small second-order Markov chain over words.

A Model learns lines of text one at a time, recording which word followed
each pair of preceding tokens, and generates new sentences from a starting
word by walking those recorded transitions with weighted random choices.
Models round-trip through a compact zip archive (Save / Load), and can also
be exported as JSON or kept in a SQLite database through Store.

	m := markov.NewModel()
	m.Learn("the cat sat")
	m.Learn("the cat ran")
	sentence, ok := m.Generate("the") // "the cat sat" or "the cat ran"
*/
package markov
