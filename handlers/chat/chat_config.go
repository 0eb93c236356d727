package chat

type ChatConfig struct {
	SystemPrompt   string   `json:"system_prompt"`    // Persona placed at the top of every prompt.
	BreakWords     []string `json:"break_words"`      // Trailing punctuation that makes the buffer speakable.
	MinFlushLength int      `json:"min_flush_length"` // The buffer must be longer than this (in runes) to flush.
	HistoryTurns   int      `json:"history_turns"`    // Stored exchanges replayed into the prompt.
	ContextTopK    int      `json:"context_top_k"`    // Knowledge chunks injected per turn.
	ChunkSuffix    string   `json:"chunk_suffix"`     // Appended to mid-stream text events so clients can concatenate them.
}

// DefaultConfig returns a ChatConfig with the stock flushing heuristics.
func DefaultConfig() ChatConfig {
	return ChatConfig{
		SystemPrompt:   SYSTEM_PROMPT,
		BreakWords:     []string{".", "!", "?", ",", ":", ";"},
		MinFlushLength: 5,
		HistoryTurns:   10,
		ContextTopK:    2,
		ChunkSuffix:    " ",
	}
}
