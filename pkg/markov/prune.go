package markov

import (
	"context"
	"fmt"
	"log/slog"
)

// PruneVocabulary removes words no stored model refers to any more, which
// Remove and a replacing Save leave behind. Learned counts are never
// touched and the reserved tokens are never pruned.
func (s *Store) PruneVocabulary(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM markov_vocabulary
WHERE token_id NOT IN (?, ?)
  AND token_id NOT IN (SELECT prev_id FROM markov_chains)
  AND token_id NOT IN (SELECT prev_prev_id FROM markov_chains)
  AND token_id NOT IN (SELECT next_token_id FROM markov_chains);`,
		StartTokenID, EndTokenID)
	if err != nil {
		return 0, fmt.Errorf("could not prune vocabulary: %w", err)
	}
	removed, _ := res.RowsAffected()

	s.logger.InfoContext(ctx, "Vocabulary pruned", slog.Int64("tokens_removed", removed))
	return removed, nil
}
