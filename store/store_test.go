package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/core"
)

func quietLogger() *core.Logger {
	return core.NewLogger(core.LevelError, func(core.Level, string, map[string]any) {})
}

// memoryBackend keeps encoded documents and counts saves per key.
type memoryBackend struct {
	docs    map[string][]byte
	saves   map[string]int
	failing bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{docs: map[string][]byte{}, saves: map[string]int{}}
}

func (m *memoryBackend) Load(key string, v any) error {
	data, ok := m.docs[key]
	if !ok {
		return ErrNotExist
	}
	return sonic.Unmarshal(data, v)
}

func (m *memoryBackend) Save(key string, v any) error {
	m.saves[key]++
	if m.failing {
		return errors.New("disk full")
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	m.docs[key] = data
	return nil
}

func TestJSONFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := NewJSONFileBackend(dir)
	require.NoError(t, err)

	var missing Values
	assert.ErrorIs(t, b.Load("settings", &missing), ErrNotExist)

	require.NoError(t, b.Save("settings", DefaultValues()))
	raw, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"temperature\": 0.7")

	var loaded Values
	require.NoError(t, b.Load("settings", &loaded))
	assert.Equal(t, DefaultValues(), loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	err = b.Load("broken", &loaded)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotExist)
}

func TestSettingsDefaults(t *testing.T) {
	s := NewSettings(newMemoryBackend(), quietLogger())
	assert.Equal(t, DefaultValues(), s.Get())
	assert.ElementsMatch(t, []string{
		"temperature", "topP", "topK", "maxTokens", "repeatPenalty", "contextWindow",
		"beamSize", "vadFilter", "vadThreshold", "sampleRate", "voice",
		"soundEffects", "inputDevice", "outputDevice",
	}, KnownKeys)
}

func TestSettingsLoadMergesOverDefaults(t *testing.T) {
	backend := newMemoryBackend()
	backend.docs[settingsKey] = []byte(`{"temperature": 0.2, "voice": "en_21", "legacyKey": true}`)

	got := NewSettings(backend, quietLogger()).Get()
	want := DefaultValues()
	want.Temperature = 0.2
	want.Voice = "en_21"
	assert.Equal(t, want, got)
}

func TestSettingsLoadCorruptFallsBack(t *testing.T) {
	backend := newMemoryBackend()
	backend.docs[settingsKey] = []byte(`not json`)
	assert.Equal(t, DefaultValues(), NewSettings(backend, quietLogger()).Get())
}

func TestSettingsUpdateIgnoresUnknownKeys(t *testing.T) {
	backend := newMemoryBackend()
	s := NewSettings(backend, quietLogger())

	got, err := s.Update(map[string]any{"foo": 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultValues(), got)

	got, err = s.Update(map[string]any{"foo": 1, "topK": float64(12), "vadFilter": false})
	require.NoError(t, err)
	assert.Equal(t, 12, got.TopK)
	assert.False(t, got.VADFilter)
	assert.Equal(t, got, s.Get())
	assert.NotContains(t, string(backend.docs[settingsKey]), "foo")
	assert.Equal(t, 2, backend.saves[settingsKey], "every update persists")
}

func TestSettingsUpdateRejectsWrongType(t *testing.T) {
	s := NewSettings(newMemoryBackend(), quietLogger())
	_, err := s.Update(map[string]any{"topK": "many"})
	assert.ErrorIs(t, err, ErrInvalidSetting)
	assert.Equal(t, DefaultValues(), s.Get())
}

func TestSettingsSaveFailureIsLogged(t *testing.T) {
	backend := newMemoryBackend()
	backend.failing = true
	s := NewSettings(backend, quietLogger())

	got, err := s.Update(map[string]any{"voice": "en_3"})
	require.NoError(t, err)
	assert.Equal(t, "en_3", got.Voice)
}

func TestSettingsReset(t *testing.T) {
	backend := newMemoryBackend()
	s := NewSettings(backend, quietLogger())
	_, err := s.Update(map[string]any{"maxTokens": 64})
	require.NoError(t, err)

	assert.Equal(t, DefaultValues(), s.Reset())
	assert.Equal(t, 2, backend.saves[settingsKey])
}

func TestHistoryAutoSave(t *testing.T) {
	backend := newMemoryBackend()
	h := NewHistory(backend, DefaultHistoryOptions(), quietLogger())

	for i := 1; i <= 4; i++ {
		h.Add(fmt.Sprintf("q%d", i), "a")
	}
	assert.Equal(t, 0, backend.saves[historyKey])

	h.Add("q5", "a")
	assert.Equal(t, 1, backend.saves[historyKey])

	for i := 6; i <= 9; i++ {
		h.Add(fmt.Sprintf("q%d", i), "a")
		assert.Equal(t, 1, backend.saves[historyKey], "no save at %d", i)
	}
	h.Add("q10", "a")
	assert.Equal(t, 2, backend.saves[historyKey])
}

func TestHistoryTruncatesOnPersist(t *testing.T) {
	backend := newMemoryBackend()
	h := NewHistory(backend, HistoryOptions{MaxEntries: 3, SaveEvery: 5}, quietLogger())
	for i := 1; i <= 4; i++ {
		h.Add(fmt.Sprintf("q%d", i), "a")
	}
	assert.Equal(t, 4, h.Len(), "in-memory log may exceed the bound between saves")

	h.Add("q5", "a")
	var persisted []Exchange
	require.NoError(t, backend.Load(historyKey, &persisted))
	require.Len(t, persisted, 3)
	assert.Equal(t, "q3", persisted[0].User)
	assert.Equal(t, "q5", persisted[2].User)
}

func TestHistoryRecentAndAll(t *testing.T) {
	h := NewHistory(newMemoryBackend(), DefaultHistoryOptions(), quietLogger())
	h.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 600000000, time.UTC) }

	assert.Empty(t, h.Recent(10))
	h.Add("hi", "hello")
	h.Add("how are you", "")
	h.Add("bye", "goodbye [waves]")

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "how are you", recent[0].User)
	assert.Equal(t, "goodbye [waves]", recent[1].Assistant)
	assert.Len(t, h.Recent(10), 3)

	all := h.All()
	assert.Equal(t, "2025-01-02T03:04:05.600000", all[0].Timestamp)
	all[0].User = "mutated"
	assert.Equal(t, "hi", h.All()[0].User)
}

func TestHistoryClearPersists(t *testing.T) {
	backend := newMemoryBackend()
	h := NewHistory(backend, DefaultHistoryOptions(), quietLogger())
	h.Add("q", "a")
	h.Clear()

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 1, backend.saves[historyKey])
	assert.JSONEq(t, `[]`, string(backend.docs[historyKey]))
}

func TestHistoryLoadsPersisted(t *testing.T) {
	backend := newMemoryBackend()
	backend.docs[historyKey] = []byte(`[{"timestamp":"t","user":"u","assistant":"a"}]`)
	h := NewHistory(backend, DefaultHistoryOptions(), quietLogger())
	assert.Equal(t, []Exchange{{Timestamp: "t", User: "u", Assistant: "a"}}, h.All())
}
