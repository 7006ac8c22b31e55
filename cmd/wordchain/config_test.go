package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if !reflect.DeepEqual(config.Model, DefaultModelConfig()) {
		t.Errorf("model config = %+v, want defaults", config.Model)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	var written Config
	if err = json.Unmarshal(data, &written); err != nil {
		t.Fatalf("written config is not valid JSON: %v", err)
	}
	if written.Server == nil || written.Server.ApiAddr != DefaultServerConfig().ApiAddr {
		t.Errorf("written server config = %+v, want defaults", written.Server)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"model_config": {"model_path": "/tmp/other.zip", "seed_words": ["yo"]}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.Model.ModelPath != "/tmp/other.zip" {
		t.Errorf("ModelPath = %q, want /tmp/other.zip", config.Model.ModelPath)
	}
	if !reflect.DeepEqual(config.Model.SeedWords, []string{"yo"}) {
		t.Errorf("SeedWords = %v, want [yo]", config.Model.SeedWords)
	}
	if config.Model.Delimiter != ">" {
		t.Errorf("Delimiter = %q, want the default to survive", config.Model.Delimiter)
	}
	if config.Server == nil || config.Server.LogLevel != "info" {
		t.Errorf("expected a default server config, got %+v", config.Server)
	}
}

func TestLoadConfigNullSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server_config": null}`), 0644); err != nil {
		t.Fatal(err)
	}
	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.Server == nil {
		t.Fatal("expected a null section to fall back to defaults")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server_config": {"api_key": "from-file", "log_level": "warn"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envAPIKey, "from-env")
	t.Setenv(envLogLevel, "debug")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.Server.ApiKey != "from-env" {
		t.Errorf("ApiKey = %q, want from-env", config.Server.ApiKey)
	}
	if config.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.Server.LogLevel)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server_config": `), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestParseLogLevel(t *testing.T) {
	testCases := map[string]string{
		"debug":   "DEBUG",
		"INFO":    "INFO",
		"warn":    "WARN",
		"error":   "ERROR",
		"bananas": "INFO",
		"":        "INFO",
	}
	for in, want := range testCases {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
