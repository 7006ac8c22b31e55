package markov

// ModelStats holds aggregated statistics for a Model.
type ModelStats struct {
	Contexts       int `json:"contexts"`        // The number of learned two-token contexts.
	TotalChains    int `json:"total_chains"`    // The number of unique context->next_token links.
	TotalFrequency int `json:"total_frequency"` // The sum of all counts; the total number of learned transitions.
	StartingWords  int `json:"starting_words"`  // The number of words that can seed Generate.
}

// Stats returns a snapshot of statistics for the model.
func (m *Model) Stats() ModelStats {
	stats := ModelStats{Contexts: len(m.chains)}
	for c, table := range m.chains {
		stats.TotalChains += table.Len()
		stats.TotalFrequency += table.Total()
		if c.PrevPrev == StartOfLine {
			stats.StartingWords++
		}
	}
	return stats
}
