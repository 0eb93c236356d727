package store

import (
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"

	"midas/core"
)

const (
	historyKey = "history"

	DefaultMaxHistory = 100
	DefaultSaveEvery  = 5

	timestampLayout = "2006-01-02T15:04:05.000000"
)

// Exchange is one user/assistant round of a conversation.
type Exchange struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

type HistoryOptions struct {
	// MaxEntries bounds the persisted log; older entries are dropped on save.
	MaxEntries int
	// SaveEvery persists automatically whenever the log length is a multiple of it.
	SaveEvery int
}

func DefaultHistoryOptions() HistoryOptions {
	return HistoryOptions{MaxEntries: DefaultMaxHistory, SaveEvery: DefaultSaveEvery}
}

// History is the conversation log. Appends are persisted in batches, while
// Clear persists immediately.
type History struct {
	mu      sync.RWMutex
	entries []Exchange
	opts    HistoryOptions
	backend Backend
	logger  *core.Logger
	now     func() time.Time
}

func NewHistory(backend Backend, opts HistoryOptions, logger *core.Logger) *History {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxHistory
	}
	if opts.SaveEvery <= 0 {
		opts.SaveEvery = DefaultSaveEvery
	}
	h := &History{
		opts:    opts,
		backend: backend,
		logger:  logger.With(map[string]any{"component": "history"}),
		now:     time.Now,
	}
	var loaded []Exchange
	switch err := backend.Load(historyKey, &loaded); {
	case err == nil:
		h.entries = loaded
		h.logger.With(map[string]any{"entries": len(loaded)}).Info("history loaded")
	case errors.Is(err, ErrNotExist):
	default:
		h.logger.With(map[string]any{"error": err}).Warn("failed to load history")
	}
	return h
}

// Add appends an exchange.
func (h *History) Add(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Exchange{
		Timestamp: h.now().Format(timestampLayout),
		User:      user,
		Assistant: assistant,
	})
	if len(h.entries)%h.opts.SaveEvery == 0 {
		h.save()
	}
}

// All returns a copy of the whole log.
func (h *History) All() []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Exchange, len(h.entries))
	copy(out, h.entries)
	return out
}

// Recent returns a copy of the last n exchanges.
func (h *History) Recent(n int) []Exchange {
	if n <= 0 {
		return []Exchange{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	recent := lo.Subset(h.entries, -n, uint(n))
	out := make([]Exchange, len(recent))
	copy(out, recent)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear empties the log and persists immediately.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.save()
	h.logger.Info("history cleared")
}

// Save persists the most recent MaxEntries exchanges.
func (h *History) Save() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.save()
}

func (h *History) save() {
	h.entries = lo.Subset(h.entries, -h.opts.MaxEntries, uint(h.opts.MaxEntries))
	persisted := h.entries
	if persisted == nil {
		persisted = []Exchange{}
	}
	if err := h.backend.Save(historyKey, persisted); err != nil {
		h.logger.With(map[string]any{"error": err}).Error("failed to save history")
	}
}
