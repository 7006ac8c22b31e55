package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/CTAG07/wordchain/pkg/corpus"
	"github.com/CTAG07/wordchain/pkg/markov"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

const progressInterval = 10000

func (a *app) learnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn [logfile]",
		Short: "Learn every line of a chat log and save the model",
		Long: `Learn every line of a chat log into the model archive.

The message of each line is the text after the configured delimiter. Lines
without it are skipped. An existing archive is extended, not replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := a.config.Model.LogPath
			if len(args) == 1 {
				logPath = args[0]
			}

			m, err := a.loadModelIfExists()
			if err != nil {
				return err
			}
			if _, err = learnFromLog(m, logPath, a.config.Model.Delimiter, a.logger); err != nil {
				return err
			}
			return m.Save(a.config.Model.ModelPath)
		},
	}
}

func (a *app) speakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "speak [words...]",
		Short: "Generate a sentence for each starting word",
		Long: `Generate a sentence for each starting word, or for the configured seed
words when none are given.

If no model archive exists yet, the configured chat log is learned and the
result saved first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			words := args
			if len(words) == 0 {
				words = a.config.Model.SeedWords
			}

			m, err := a.loadOrLearn()
			if err != nil {
				return err
			}
			speak(cmd.OutOrStdout(), m, words)
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var jsonPath string
	var toDB bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the model archive to JSON or to the SQLite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := markov.Load(a.config.Model.ModelPath)
			if err != nil {
				return err
			}
			m.SetLogger(a.logger)

			if toDB {
				return a.withStore(cmd.Context(), func(ctx context.Context, s *markov.Store) error {
					if err := s.Save(ctx, a.config.Model.ModelName, m); err != nil {
						return err
					}
					_, err := s.PruneVocabulary(ctx)
					return err
				})
			}

			var buf bytes.Buffer
			if err = m.ExportJSON(&buf); err != nil {
				return err
			}
			if err = atomic.WriteFile(jsonPath, &buf); err != nil {
				return fmt.Errorf("failed to write %s: %w", jsonPath, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jsonPath, "json", "", "Write the model as JSON to this file")
	cmd.Flags().BoolVar(&toDB, "db", false, "Store the model in the configured database under the configured name")
	cmd.MarkFlagsMutuallyExclusive("json", "db")
	cmd.MarkFlagsOneRequired("json", "db")

	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var jsonPath string
	var fromDB bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a model from JSON or from the SQLite store into the archive",
		Long: `Import a model into the archive.

A JSON import is merged into the existing archive: counts add up. A database
import replaces the archive with the stored model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *markov.Model
			if fromDB {
				err := a.withStore(cmd.Context(), func(ctx context.Context, s *markov.Store) error {
					var err error
					m, err = s.Load(ctx, a.config.Model.ModelName)
					if errors.Is(err, sql.ErrNoRows) {
						return fmt.Errorf("no model named '%s' in the database", a.config.Model.ModelName)
					}
					return err
				})
				if err != nil {
					return err
				}
				m.SetLogger(a.logger)
			} else {
				f, err := os.Open(jsonPath)
				if err != nil {
					return err
				}
				defer func(f *os.File) {
					_ = f.Close()
				}(f)

				if m, err = a.loadModelIfExists(); err != nil {
					return err
				}
				if err = m.ImportJSON(f); err != nil {
					return err
				}
			}
			return m.Save(a.config.Model.ModelPath)
		},
	}

	cmd.Flags().StringVar(&jsonPath, "json", "", "Merge the model in this JSON file into the archive")
	cmd.Flags().BoolVar(&fromDB, "db", false, "Load the configured model from the configured database")
	cmd.MarkFlagsMutuallyExclusive("json", "db")
	cmd.MarkFlagsOneRequired("json", "db")

	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the model over an HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadModelIfExists()
			if err != nil {
				return err
			}
			return runServer(a.config, a.logger, m)
		},
	}
}

// loadModelIfExists loads the configured archive, or returns an empty model
// when there is none yet.
func (a *app) loadModelIfExists() (*markov.Model, error) {
	m, err := markov.Load(a.config.Model.ModelPath)
	if errors.Is(err, os.ErrNotExist) {
		a.logger.Info("No model archive found, starting with a clean slate", "path", a.config.Model.ModelPath)
		m = markov.NewModel()
	} else if err != nil {
		return nil, err
	}
	m.SetLogger(a.logger)
	return m, nil
}

// loadOrLearn loads the configured archive. If there is none, the configured
// log is learned and saved first.
func (a *app) loadOrLearn() (*markov.Model, error) {
	m, err := markov.Load(a.config.Model.ModelPath)
	if err == nil {
		m.SetLogger(a.logger)
		return m, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	a.logger.Info("No model archive found, learning from log", "log_path", a.config.Model.LogPath)
	m = markov.NewModel()
	m.SetLogger(a.logger)
	if _, err = learnFromLog(m, a.config.Model.LogPath, a.config.Model.Delimiter, a.logger); err != nil {
		return nil, err
	}
	if err = m.Save(a.config.Model.ModelPath); err != nil {
		return nil, err
	}
	return m, nil
}

// withStore opens the configured database, prepares the schema and a Store,
// and runs fn with it.
func (a *app) withStore(ctx context.Context, fn func(context.Context, *markov.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := initDB(a.config.Model.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}(db)

	if err = markov.SetupSchema(db); err != nil {
		return fmt.Errorf("failed to setup markov schema: %w", err)
	}
	s, err := markov.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to prepare markov store: %w", err)
	}
	defer s.Close()
	s.SetLogger(a.logger)

	return fn(ctx, s)
}

// learnFromLog feeds the message of every line in the log at path to m and
// returns the number of lines learned.
func learnFromLog(m *markov.Model, path, delimiter string, logger *slog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("could not open logs: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	r := corpus.NewReader(f, corpus.WithDelimiter(delimiter))
	start := time.Now()
	count := 0
	for {
		text, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed reading %s after %d lines: %w", path, r.Lines(), err)
		}
		count++
		if count%progressInterval == 0 {
			logger.Info("Learning progress", "lines", count)
		}
		m.Learn(text)
	}

	elapsed := time.Since(start)
	rate := float64(count) / max(elapsed.Seconds(), 1e-9)
	logger.Info("Learning finished",
		slog.Int("lines", count),
		slog.Int("skipped", r.Lines()-count),
		slog.Duration("elapsed", elapsed),
		slog.String("lines_per_sec", fmt.Sprintf("%.2f", rate)),
		slog.Int("contexts", m.Len()),
	)
	return count, nil
}

// speak writes one "word -> sentence" line per starting word.
func speak(w io.Writer, m *markov.Model, words []string) {
	for _, word := range words {
		sentence, ok := m.Generate(word)
		if !ok {
			sentence = "(none)"
		}
		_, _ = fmt.Fprintf(w, "%s -> %s\n", word, sentence)
	}
}
