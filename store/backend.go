package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

// ErrNotExist is returned by Load when nothing has been saved under a key.
var ErrNotExist = errors.New("store: not found")

// Backend persists JSON documents by key.
type Backend interface {
	Load(key string, v any) error
	Save(key string, v any) error
}

// JSONFileBackend stores each key as <dir>/<key>.json.
type JSONFileBackend struct {
	dir string
}

func NewJSONFileBackend(dir string) (*JSONFileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %q: %w", dir, err)
	}
	return &JSONFileBackend{dir: dir}, nil
}

func (b *JSONFileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}

func (b *JSONFileBackend) Load(key string, v any) error {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("store: read %q: %w", key, err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %q: %w", key, err)
	}
	return nil
}

// Save writes through a temp file and rename so readers never see a torn file.
func (b *JSONFileBackend) Save(key string, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	tmp, err := os.CreateTemp(b.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: write %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), b.path(key)); err != nil {
		return fmt.Errorf("store: write %q: %w", key, err)
	}
	return nil
}
