// Command wordchain learns a word-level Markov chain from chat logs and
// generates sentences from it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app carries the state shared by all subcommands once the root command has
// loaded the configuration.
type app struct {
	configPath string
	verbose    bool
	config     *Config
	logger     *slog.Logger
}

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "wordchain",
		Short: "Word-level Markov chain trained on chat logs",
		Long: `Learn which word tends to follow each pair of words in a chat log,
then produce new sentences by walking those chains from a starting word.

The learned model is kept in a zip archive and can also be exported to JSON
or stored in a SQLite database.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if a.verbose {
				config.Server.LogLevel = "debug"
			}
			a.config = config
			a.logger = newLogger(config.Server.LogLevel)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "./config.json", "Path to the JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(a.learnCmd())
	rootCmd.AddCommand(a.speakCmd())
	rootCmd.AddCommand(a.exportCmd())
	rootCmd.AddCommand(a.importCmd())
	rootCmd.AddCommand(a.serveCmd())

	return rootCmd
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
}
