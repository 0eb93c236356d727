package protocol

// MessageType enumerates the chat socket message types.
type MessageType string

const (
	// Server -> client
	MsgTextChunk MessageType = "text_chunk"
	MsgDone      MessageType = "done"
	MsgError     MessageType = "error"
)

// ChatRequest starts one chat turn. Settings keys override the stored
// settings for this turn only.
type ChatRequest struct {
	Text     string         `json:"text"`
	Voice    string         `json:"voice,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// ChatEvent is a JSON frame sent to the chat client. Audio for a text chunk
// follows as a separate binary frame.
type ChatEvent struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`
}

// --- HTTP payloads ---

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type VoicesResponse struct {
	Voices []string `json:"voices"`
}

type TranscriptionResponse struct {
	Text string `json:"text"`
}

type KnowledgeFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"` // epoch milliseconds
}

type KnowledgeListResponse struct {
	Files []KnowledgeFile `json:"files"`
	Path  string          `json:"path"`
}

type KnowledgeFileResponse struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type KnowledgeSaveRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type KnowledgeMutationResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name,omitempty"`
	Documents int    `json:"documents"`
}

type SettingsUpdateResponse struct {
	Status   string         `json:"status"`
	Settings map[string]any `json:"settings"`
}

type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	KnowledgeChunks int    `json:"knowledge_chunks"`
	HistoryEntries  int    `json:"history_entries"`
}
