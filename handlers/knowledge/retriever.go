package knowledge

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"midas/core"
	"midas/utils/text"
)

const (
	// DefaultTopK is the number of chunks injected into a prompt.
	DefaultTopK = 2
	// snippetLength caps each retrieved chunk, in runes.
	snippetLength = 500
)

// Extensions are the knowledge file types, in load order.
var Extensions = []string{".md", ".txt"}

// Retriever scores knowledge chunks against a query by keyword overlap.
// The chunk collection is swapped atomically on reload, so readers always
// see one complete collection.
type Retriever struct {
	dir      string
	chunks   atomic.Pointer[[]Chunk]
	reloadMu sync.Mutex
	logger   *core.Logger

	// OnReload, when set, observes the chunk count after every load.
	OnReload func(chunks int)
}

func NewRetriever(dir string, logger *core.Logger) *Retriever {
	r := &Retriever{
		dir:    dir,
		logger: logger.With(map[string]any{"component": "knowledge"}),
	}
	empty := []Chunk{}
	r.chunks.Store(&empty)
	return r
}

// Dir returns the knowledge directory.
func (r *Retriever) Dir() string {
	return r.dir
}

// Load reads every knowledge file in the directory and replaces the chunk
// collection. A missing directory is created. Unreadable files are skipped.
// It returns the new chunk count.
func (r *Retriever) Load() int {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	chunks := []Chunk{}
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			r.logger.With(map[string]any{"dir": r.dir, "error": err}).Warn("failed to create knowledge directory")
		} else {
			r.logger.With(map[string]any{"dir": r.dir}).Info("created knowledge directory")
		}
		r.store(chunks)
		return 0
	}

	for _, ext := range Extensions {
		paths, err := filepath.Glob(filepath.Join(r.dir, "*"+ext))
		if err != nil {
			continue
		}
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				r.logger.With(map[string]any{"file": path, "error": err}).Warn("failed to load knowledge file")
				continue
			}
			chunks = append(chunks, SplitDocument(string(data), filepath.Base(path))...)
		}
	}

	r.store(chunks)
	r.logger.With(map[string]any{"dir": r.dir, "chunks": len(chunks)}).Info("knowledge loaded")
	return len(chunks)
}

// Reload re-reads the same directory.
func (r *Retriever) Reload() int {
	return r.Load()
}

func (r *Retriever) store(chunks []Chunk) {
	r.chunks.Store(&chunks)
	if r.OnReload != nil {
		r.OnReload(len(chunks))
	}
}

// Count returns the number of loaded chunks.
func (r *Retriever) Count() int {
	return len(*r.chunks.Load())
}

type scored struct {
	overlap int
	chunk   *Chunk
}

// Retrieve returns up to topK chunks sharing keywords with query, best first
// with ties in load order. Each is rendered as "[From <source>]\n<snippet>"
// and they are joined by a blank line. It returns "" when nothing matches.
func (r *Retriever) Retrieve(query string, topK int) string {
	chunks := *r.chunks.Load()
	if len(chunks) == 0 || topK <= 0 {
		return ""
	}

	queryKeywords := lo.Keys(text.Keywords(query))
	var matches []scored
	for i := range chunks {
		overlap := lo.CountBy(queryKeywords, func(k string) bool {
			_, ok := chunks[i].Keywords[k]
			return ok
		})
		if overlap > 0 {
			matches = append(matches, scored{overlap: overlap, chunk: &chunks[i]})
		}
	}
	if len(matches) == 0 {
		return ""
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].overlap > matches[b].overlap
	})

	parts := lo.Map(lo.Slice(matches, 0, topK), func(m scored, _ int) string {
		return "[From " + m.chunk.Source + "]\n" + text.Truncate(m.chunk.Content, snippetLength)
	})
	return strings.Join(parts, "\n\n")
}
