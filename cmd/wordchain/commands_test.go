package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/wordchain/pkg/markov"
)

const testLog = `[12:00] <alice> The cat sat
[12:01] * bob waves
[12:02] <bob> The cat sat
`

// setupWorkspace writes a chat log and a config pointing into a temporary
// directory, and returns the config path.
func setupWorkspace(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "logs.txt"), []byte(testLog), 0644); err != nil {
		t.Fatal(err)
	}

	config := &Config{
		Server: &ServerConfig{ApiAddr: "127.0.0.1:0", LogLevel: "error"},
		Model: &ModelConfig{
			ModelPath:    filepath.Join(dir, "memory.zip"),
			LogPath:      filepath.Join(dir, "logs.txt"),
			Delimiter:    ">",
			SeedWords:    []string{"The", "dog"},
			DatabasePath: filepath.Join(dir, "wordchain.db"),
			ModelName:    "test",
		},
	}
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatal(err)
	}
	configPath = filepath.Join(dir, "config.json")
	if err = os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatal(err)
	}
	return dir, configPath
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("wordchain %s failed: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestLearnFromLog(t *testing.T) {
	dir, _ := setupWorkspace(t)
	m := markov.NewModel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	n, err := learnFromLog(m, filepath.Join(dir, "logs.txt"), ">", logger)
	if err != nil {
		t.Fatalf("learnFromLog() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("learned %d lines, want 2", n)
	}
	counts, ok := m.Lookup(markov.SeedContext("the"))
	if !ok || counts[markov.Word("cat")] != 2 {
		t.Errorf("counts after (the, <SOL>) = %v, want cat: 2", counts)
	}

	if _, err = learnFromLog(m, filepath.Join(dir, "missing.txt"), ">", logger); err == nil {
		t.Error("expected an error for a missing log")
	}
}

func TestSpeak(t *testing.T) {
	m := markov.NewModel()
	m.Learn("The cat sat")

	var out bytes.Buffer
	speak(&out, m, []string{"The", "dog"})
	want := "The -> the cat sat\ndog -> (none)\n"
	if out.String() != want {
		t.Errorf("speak() wrote %q, want %q", out.String(), want)
	}
}

func TestSpeakLearnsWhenNoArchive(t *testing.T) {
	dir, configPath := setupWorkspace(t)

	out := runCommand(t, "--config", configPath, "speak")
	if !strings.Contains(out, "The -> the cat sat\n") || !strings.Contains(out, "dog -> (none)\n") {
		t.Errorf("unexpected speak output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "memory.zip")); err != nil {
		t.Errorf("expected the learned model to be saved: %v", err)
	}

	out = runCommand(t, "--config", configPath, "speak", "cat")
	if out != "cat -> (none)\n" {
		t.Errorf("unexpected speak output: %q", out)
	}
}

func TestLearnExtendsArchive(t *testing.T) {
	dir, configPath := setupWorkspace(t)
	runCommand(t, "--config", configPath, "learn")
	runCommand(t, "--config", configPath, "learn")

	m, err := markov.Load(filepath.Join(dir, "memory.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if counts, _ := m.Lookup(markov.SeedContext("the")); counts[markov.Word("cat")] != 4 {
		t.Errorf("counts after two learns = %v, want cat: 4", counts)
	}
}

func TestExportImportJSON(t *testing.T) {
	dir, configPath := setupWorkspace(t)
	runCommand(t, "--config", configPath, "learn")

	jsonPath := filepath.Join(dir, "model.json")
	runCommand(t, "--config", configPath, "export", "--json", jsonPath)

	if err := os.Remove(filepath.Join(dir, "memory.zip")); err != nil {
		t.Fatal(err)
	}
	runCommand(t, "--config", configPath, "import", "--json", jsonPath)

	m, err := markov.Load(filepath.Join(dir, "memory.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Stats(); got.TotalFrequency != 6 {
		t.Errorf("imported total frequency = %d, want 6", got.TotalFrequency)
	}
}

func TestExportImportDB(t *testing.T) {
	dir, configPath := setupWorkspace(t)
	runCommand(t, "--config", configPath, "learn")
	want, err := markov.Load(filepath.Join(dir, "memory.zip"))
	if err != nil {
		t.Fatal(err)
	}

	runCommand(t, "--config", configPath, "export", "--db")
	if err = os.Remove(filepath.Join(dir, "memory.zip")); err != nil {
		t.Fatal(err)
	}
	runCommand(t, "--config", configPath, "import", "--db")

	got, err := markov.Load(filepath.Join(dir, "memory.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats() != want.Stats() {
		t.Errorf("stats after database round trip = %+v, want %+v", got.Stats(), want.Stats())
	}
}

func TestExportRequiresTarget(t *testing.T) {
	_, configPath := setupWorkspace(t)
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", configPath, "export"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected export without --json or --db to fail")
	}
}
