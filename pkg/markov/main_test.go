package markov

import (
	"database/sql"
	"go/build"
	"math/rand/v2"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates a new SQLite database file and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTrainedModel returns a model that has learned a few short lines.
func setupTrainedModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel()
	for _, line := range []string{
		"The cat sat",
		"The cat ran",
		"one fish two fish",
		"red fish blue fish",
	} {
		m.Learn(line)
	}
	return m
}

// seededRand returns a deterministic random source.
func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// assertSameModel fails the test if the two models do not hold exactly the
// same contexts with the same continuation counts.
func assertSameModel(t *testing.T, want, got *Model) {
	t.Helper()
	wantContexts, gotContexts := want.Contexts(), got.Contexts()
	if !reflect.DeepEqual(wantContexts, gotContexts) {
		t.Fatalf("contexts differ:\nwant %v\ngot  %v", wantContexts, gotContexts)
	}
	for _, c := range wantContexts {
		wantCounts, _ := want.Lookup(c)
		gotCounts, ok := got.Lookup(c)
		if !ok {
			t.Fatalf("context %v missing", c)
		}
		if !reflect.DeepEqual(wantCounts, gotCounts) {
			t.Errorf("context %v: want %v, got %v", c, wantCounts, gotCounts)
		}
	}
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
