package markov

import (
	"reflect"
	"strings"
	"testing"
)

func TestLearn(t *testing.T) {
	testCases := []struct {
		name  string
		lines []string
		want  map[Context]map[Token]int
	}{
		{
			name:  "Empty line",
			lines: []string{""},
			want:  map[Context]map[Token]int{},
		},
		{
			name:  "Whitespace only",
			lines: []string{"   ", "\t\r\n"},
			want:  map[Context]map[Token]int{},
		},
		{
			name:  "Single word",
			lines: []string{"hi"},
			want: map[Context]map[Token]int{
				SeedContext("hi"): {EndOfLine: 1},
			},
		},
		{
			name:  "Two words",
			lines: []string{"hi there"},
			want: map[Context]map[Token]int{
				SeedContext("hi"): {Word("there"): 1},
				{Prev: Word("there"), PrevPrev: Word("hi")}: {EndOfLine: 1},
			},
		},
		{
			name:  "Shared prefix",
			lines: []string{"The cat sat", "The cat ran"},
			want: map[Context]map[Token]int{
				SeedContext("the"): {Word("cat"): 2},
				{Prev: Word("cat"), PrevPrev: Word("the")}: {Word("sat"): 1, Word("ran"): 1},
				{Prev: Word("sat"), PrevPrev: Word("cat")}: {EndOfLine: 1},
				{Prev: Word("ran"), PrevPrev: Word("cat")}: {EndOfLine: 1},
			},
		},
		{
			name:  "Extra whitespace and case",
			lines: []string{"  HI \t  There  "},
			want: map[Context]map[Token]int{
				SeedContext("hi"): {Word("there"): 1},
				{Prev: Word("there"), PrevPrev: Word("hi")}: {EndOfLine: 1},
			},
		},
		{
			name:  "Non-ASCII whitespace only part is dropped",
			lines: []string{"hi \u00a0 there"},
			want: map[Context]map[Token]int{
				SeedContext("hi"): {Word("there"): 1},
				{Prev: Word("there"), PrevPrev: Word("hi")}: {EndOfLine: 1},
			},
		},
		{
			name:  "Non-ASCII whitespace and vertical tab inside a word",
			lines: []string{"a\u00a0b\vc"},
			want: map[Context]map[Token]int{
				SeedContext("a\u00a0b\vc"): {EndOfLine: 1},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewModel()
			for _, line := range tc.lines {
				m.Learn(line)
			}
			got := make(map[Context]map[Token]int)
			for _, c := range m.Contexts() {
				got[c], _ = m.Lookup(c)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("learned %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLearnTwiceDoublesCounts(t *testing.T) {
	line := "the quick brown fox jumps over the quick dog"
	once := NewModel()
	once.Learn(line)

	twice := NewModel()
	twice.Learn(line)
	twice.Learn(line)

	if !reflect.DeepEqual(once.Contexts(), twice.Contexts()) {
		t.Fatalf("learning a line twice changed the set of contexts")
	}
	for _, c := range once.Contexts() {
		first, _ := once.Lookup(c)
		second, _ := twice.Lookup(c)
		if len(first) != len(second) {
			t.Fatalf("context %v: continuation sets differ: %v vs %v", c, first, second)
		}
		for tok, n := range first {
			if second[tok] != 2*n {
				t.Errorf("context %v token %v: want %d, got %d", c, tok, 2*n, second[tok])
			}
		}
	}
}

func TestLearnZeroModel(t *testing.T) {
	var m Model
	m.Learn("hello world")
	if m.Len() != 2 {
		t.Errorf("expected 2 contexts on a zero Model, got %d", m.Len())
	}
}

func TestLearnFrom(t *testing.T) {
	m := NewModel()
	n, err := m.LearnFrom(strings.NewReader("The cat sat\n\nThe cat ran\n"))
	if err != nil {
		t.Fatalf("LearnFrom() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("LearnFrom() read %d lines, want 3", n)
	}
	assertSameModel(t, setupModelFromLines("The cat sat", "The cat ran"), m)
}

func setupModelFromLines(lines ...string) *Model {
	m := NewModel()
	for _, line := range lines {
		m.Learn(line)
	}
	return m
}

func BenchmarkLearn(b *testing.B) {
	lines := strings.Split(createBenchmarkCorpus(), "\n")
	var size int64
	for _, line := range lines {
		size += int64(len(line))
	}

	b.SetBytes(size)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m := NewModel()
		for _, line := range lines {
			m.Learn(line)
		}
	}
}
