package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// SetupSchema initializes the tables and reserved vocabulary entries used by
// Store. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS markov_vocabulary (
    token_id INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE
);
`
		schemaChains = `
CREATE TABLE IF NOT EXISTS markov_chains (
    model_id INTEGER NOT NULL,
    prev_id INTEGER NOT NULL,
    prev_prev_id INTEGER NOT NULL,
    next_token_id INTEGER NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, prev_id, prev_prev_id, next_token_id)
);
`
	)

	startToken := fmt.Sprintf("INSERT OR IGNORE INTO markov_vocabulary (token_id, token_text) VALUES (%d, '%s');", StartTokenID, StartTokenText)
	endToken := fmt.Sprintf("INSERT OR IGNORE INTO markov_vocabulary (token_id, token_text) VALUES (%d, '%s');", EndTokenID, EndTokenText)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range []string{schemaVocab, schemaModels, schemaChains} {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if _, err = tx.Exec(startToken); err != nil {
		return fmt.Errorf("could not insert special tokens: %w", err)
	}
	if _, err = tx.Exec(endToken); err != nil {
		return fmt.Errorf("could not insert special tokens: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store keeps named models in a SQL database. Words are interned in a
// vocabulary shared by all models; each model's chains reference it by ID.
type Store struct {
	db                   *sql.DB
	stmtGetModelID       *sql.Stmt
	stmtGetModels        *sql.Stmt
	stmtGetOrInsertModel *sql.Stmt
	stmtInsertVocab      *sql.Stmt
	stmtLoadChains       *sql.Stmt
	logger               *slog.Logger
}

// NewStore prepares the statements used by Store. SetupSchema must have been
// called on db beforehand.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModelID, err := db.Prepare(`SELECT model_id FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_name FROM markov_models ORDER BY model_name;`)
	if err != nil {
		return nil, err
	}

	stmtGetOrInsertModel, err := db.Prepare(`INSERT INTO markov_models (model_name) VALUES (?) ON CONFLICT(model_name) DO UPDATE SET model_name=excluded.model_name RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtInsertVocab, err := db.Prepare(`INSERT INTO markov_vocabulary (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text=excluded.token_text RETURNING token_id;`)
	if err != nil {
		return nil, err
	}

	stmtLoadChains, err := db.Prepare(`
SELECT p.token_text, pp.token_text, n.token_text, c.frequency
FROM markov_chains c
JOIN markov_vocabulary p ON p.token_id = c.prev_id
JOIN markov_vocabulary pp ON pp.token_id = c.prev_prev_id
JOIN markov_vocabulary n ON n.token_id = c.next_token_id
WHERE c.model_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                   db,
		stmtGetModelID:       stmtGetModelID,
		stmtGetModels:        stmtGetModels,
		stmtGetOrInsertModel: stmtGetOrInsertModel,
		stmtInsertVocab:      stmtInsertVocab,
		stmtLoadChains:       stmtLoadChains,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtGetModelID.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtGetOrInsertModel.Close()
	_ = s.stmtInsertVocab.Close()
	_ = s.stmtLoadChains.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Models returns the names of all stored models, sorted.
func (s *Store) Models(ctx context.Context) ([]string, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// Save stores m under name, replacing any chains previously stored under
// that name. The whole operation runs in one transaction.
func (s *Store) Save(ctx context.Context, name string, m *Model) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	if err = tx.StmtContext(ctx, s.stmtGetOrInsertModel).QueryRowContext(ctx, name).Scan(&modelID); err != nil {
		return fmt.Errorf("failed to get or insert model '%s': %w", name, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_chains WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to clear chains for model '%s': %w", name, err)
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtInsertChain, err := tx.PrepareContext(ctx, `INSERT INTO markov_chains (model_id, prev_id, prev_prev_id, next_token_id, frequency) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare chain insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertChain)

	vocabCache := map[Token]int{StartOfLine: StartTokenID, EndOfLine: EndTokenID}
	idOf := func(t Token) (int, error) {
		if id, ok := vocabCache[t]; ok {
			return id, nil
		}
		var id int
		if err := stmtInsertVocab.QueryRowContext(ctx, t.Text).Scan(&id); err != nil {
			return 0, fmt.Errorf("sql insert vocabulary error for token '%s': %w", t.Text, err)
		}
		vocabCache[t] = id
		return id, nil
	}

	var chainCount int
	for c, table := range m.chains {
		prevID, err := idOf(c.Prev)
		if err != nil {
			return err
		}
		prevPrevID, err := idOf(c.PrevPrev)
		if err != nil {
			return err
		}
		for next, freq := range table.counts {
			nextID, err := idOf(next)
			if err != nil {
				return err
			}
			if _, err = stmtInsertChain.ExecContext(ctx, modelID, prevID, prevPrevID, nextID, freq); err != nil {
				return fmt.Errorf("failed to insert chain link (%s, %s -> %s): %w", c.Prev, c.PrevPrev, next, err)
			}
			chainCount++
		}
	}

	s.logger.InfoContext(ctx, "Model stored",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("contexts", len(m.chains)),
		slog.Int("chains_stored", chainCount),
	)

	return tx.Commit()
}

// Load rebuilds the model stored under name. If no such model exists the
// returned error wraps sql.ErrNoRows.
func (s *Store) Load(ctx context.Context, name string) (*Model, error) {
	var modelID int
	if err := s.stmtGetModelID.QueryRowContext(ctx, name).Scan(&modelID); err != nil {
		return nil, fmt.Errorf("could not find model '%s': %w", name, err)
	}

	rows, err := s.stmtLoadChains.QueryContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("could not query chains for model '%s': %w", name, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	m := NewModel()
	var chainCount int
	for rows.Next() {
		var prev, prevPrev, next string
		var freq int
		if err = rows.Scan(&prev, &prevPrev, &next, &freq); err != nil {
			return nil, err
		}
		c := Context{Prev: tokenFromText(prev), PrevPrev: tokenFromText(prevPrev)}
		nextToken := tokenFromText(next)
		if freq <= 0 {
			return nil, fmt.Errorf("consistency error: chain (%s, %s -> %s) has frequency %d", prev, prevPrev, next, freq)
		}
		if err = checkLink(c, nextToken); err != nil {
			return nil, fmt.Errorf("consistency error: %w", err)
		}
		m.add(c, nextToken, freq)
		chainCount++
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Model loaded from store",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("chains_loaded", chainCount),
	)
	return m, nil
}

// Remove deletes a stored model and all of its chains. Removing an unknown
// model is not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	err = tx.StmtContext(ctx, s.stmtGetModelID).QueryRowContext(ctx, name).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_chains WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove chains for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
	)

	return tx.Commit()
}
