package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"midas/core"
	"midas/utils/text"
)

var (
	ErrNotFound    = errors.New("knowledge: file not found")
	ErrInvalidName = errors.New("knowledge: filename required")
)

const defaultExtension = ".md"

// FileInfo describes one knowledge file. Modified is in epoch milliseconds.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
}

// Library manages the files backing a Retriever. Every mutation reloads it.
type Library struct {
	retriever *Retriever
	logger    *core.Logger
}

func NewLibrary(retriever *Retriever, logger *core.Logger) *Library {
	return &Library{
		retriever: retriever,
		logger:    logger.With(map[string]any{"component": "knowledge_library"}),
	}
}

func (l *Library) Dir() string {
	return l.retriever.Dir()
}

// SanitizeName trims name, adds the default extension unless it already has
// an accepted one, and replaces every character other than word characters,
// '-' and '.' with '_'.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if !lo.SomeBy(Extensions, func(ext string) bool { return strings.HasSuffix(name, ext) }) {
		name += defaultExtension
	}
	return strings.Map(func(r rune) rune {
		if text.IsWordRune(r) || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, name), nil
}

// resolve maps a client supplied name to a path inside the directory.
func (l *Library) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrNotFound
	}
	path := filepath.Join(l.Dir(), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

// List returns the knowledge files, markdown first.
func (l *Library) List() ([]FileInfo, error) {
	files := []FileInfo{}
	for _, ext := range Extensions {
		paths, err := filepath.Glob(filepath.Join(l.Dir(), "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("knowledge: list: %w", err)
		}
		for _, path := range paths {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			files = append(files, FileInfo{
				Name:     info.Name(),
				Size:     info.Size(),
				Modified: info.ModTime().UnixMilli(),
			})
		}
	}
	return files, nil
}

// Read returns the content of one file.
func (l *Library) Read(name string) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("knowledge: read %q: %w", name, err)
	}
	return string(data), nil
}

// Save creates or replaces a file and reloads the retriever. It returns the
// stored name and the new chunk count.
func (l *Library) Save(name, content string) (string, int, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(l.Dir(), 0o755); err != nil {
		return "", 0, fmt.Errorf("knowledge: create dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.Dir(), name), []byte(content), 0o644); err != nil {
		return "", 0, fmt.Errorf("knowledge: write %q: %w", name, err)
	}
	l.logger.With(map[string]any{"file": name}).Info("knowledge file saved")
	return name, l.retriever.Reload(), nil
}

// Delete removes a file and reloads the retriever, returning the new chunk count.
func (l *Library) Delete(name string) (int, error) {
	path, err := l.resolve(name)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("knowledge: delete %q: %w", name, err)
	}
	l.logger.With(map[string]any{"file": name}).Info("knowledge file deleted")
	return l.retriever.Reload(), nil
}
