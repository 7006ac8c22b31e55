package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/CTAG07/wordchain/pkg/corpus"
	"github.com/natefinch/atomic"
)

const (
	envAPIKey   = "WORDCHAIN_API_KEY"
	envLogLevel = "WORDCHAIN_LOG_LEVEL"
)

// ServerConfig holds the configuration for the HTTP API and logging.
type ServerConfig struct {
	ApiAddr  string `json:"api_addr"`
	LogLevel string `json:"log_level"`
	// ApiKey, when set, must be sent in the wordchain-auth header.
	ApiKey string `json:"api_key"`
}

// ModelConfig holds the locations of the model and its training data.
type ModelConfig struct {
	ModelPath    string   `json:"model_path"`
	LogPath      string   `json:"log_path"`
	Delimiter    string   `json:"delimiter"`
	SeedWords    []string `json:"seed_words"`
	DatabasePath string   `json:"database_path"`
	ModelName    string   `json:"model_name"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Model  *ModelConfig  `json:"model_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:  ":7278",
		LogLevel: "info",
	}
}

// DefaultModelConfig creates a model configuration with default values.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		ModelPath:    "./memory.zip",
		LogPath:      "./logs.txt",
		Delimiter:    corpus.DefaultDelimiter,
		SeedWords:    []string{"hello", "Hmm", "nice"},
		DatabasePath: "./wordchain.db?_journal_mode=WAL&_busy_timeout=5000",
		ModelName:    "default",
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values. The
// WORDCHAIN_API_KEY and WORDCHAIN_LOG_LEVEL environment variables override
// the file.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server: DefaultServerConfig(),
		Model:  DefaultModelConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var data []byte
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			// The defaults are still usable without the file.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
		}
	} else if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Sections missing from the file fall back to defaults.
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Model == nil {
		config.Model = DefaultModelConfig()
	}

	if v, ok := os.LookupEnv(envAPIKey); ok {
		config.Server.ApiKey = v
	}
	if v, ok := os.LookupEnv(envLogLevel); ok && v != "" {
		config.Server.LogLevel = v
	}

	return config, nil
}
