package knowledge

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"midas/core"
)

const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Retriever when knowledge files change on disk.
type Watcher struct {
	watcher   *fsnotify.Watcher
	retriever *Retriever
	debounce  time.Duration
	logger    *core.Logger
}

func NewWatcher(retriever *Retriever, debounce time.Duration, logger *core.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("knowledge: watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:   w,
		retriever: retriever,
		debounce:  debounce,
		logger:    logger.With(map[string]any{"component": "knowledge_watcher"}),
	}, nil
}

// Run watches the knowledge directory until ctx is done. Bursts of events are
// coalesced into one reload after the debounce interval.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	if err := w.watcher.Add(w.retriever.Dir()); err != nil {
		return fmt.Errorf("knowledge: watch %q: %w", w.retriever.Dir(), err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isKnowledgeFile(event.Name) || !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.With(map[string]any{"error": err}).Warn("knowledge watcher error")
		case <-timer.C:
			n := w.retriever.Reload()
			w.logger.With(map[string]any{"chunks": n}).Debug("knowledge reloaded after change on disk")
		}
	}
}

func isKnowledgeFile(path string) bool {
	return lo.Contains(Extensions, filepath.Ext(path))
}
