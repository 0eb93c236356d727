package core

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycle struct {
	name    string
	order   *[]string
	initErr error
	cleaned bool
}

func (l *lifecycle) Init(context.Context) error {
	*l.order = append(*l.order, l.name)
	return l.initErr
}

func (l *lifecycle) Cleanup() error {
	l.cleaned = true
	return nil
}

func (l *lifecycle) Reset() error { return nil }

type sliceStream struct{ tokens []string }

func (s *sliceStream) Recv() (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

func (s *sliceStream) Close() error { return nil }

type stubLLM struct {
	lifecycle
	prompts []string
	params  []GenerationParams
	err     error
}

func (s *stubLLM) Generate(_ context.Context, prompt string, params GenerationParams) (TokenStream, error) {
	s.prompts = append(s.prompts, prompt)
	s.params = append(s.params, params)
	if s.err != nil {
		return nil, s.err
	}
	return &sliceStream{tokens: []string{"Hi", "!"}}, nil
}

type stubSTT struct {
	lifecycle
	files []string
}

func (s *stubSTT) Transcribe(_ context.Context, r io.Reader, filename string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	s.files = append(s.files, filename)
	return "hello", nil
}

type stubTTS struct {
	lifecycle
	calls int
	err   error
}

func (s *stubTTS) Synthesize(_ context.Context, text, voice string, sampleRate int) (AudioChunk, error) {
	s.calls++
	if s.err != nil {
		return AudioChunk{}, s.err
	}
	return AudioChunk{Samples: make([]float32, sampleRate/2), SampleRate: sampleRate}, nil
}

func newStubModels() (*Models, *stubLLM, *stubSTT, *stubTTS, *[]string) {
	var order []string
	llm := &stubLLM{lifecycle: lifecycle{name: "llm", order: &order}}
	stt := &stubSTT{lifecycle: lifecycle{name: "stt", order: &order}}
	tts := &stubTTS{lifecycle: lifecycle{name: "tts", order: &order}}
	return NewModels(llm, stt, tts), llm, stt, tts, &order
}

func quietLogger() *Logger {
	return NewLogger(LevelError, nil)
}

func TestModelsInitOrder(t *testing.T) {
	models, _, _, _, order := newStubModels()
	require.NoError(t, models.Init(context.Background()))
	assert.Equal(t, []string{"stt", "llm", "tts"}, *order)
}

func TestModelsInitStopsOnError(t *testing.T) {
	models, llm, _, _, order := newStubModels()
	llm.initErr = errors.New("unreachable")

	err := models.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.initErr)
	assert.Equal(t, []string{"stt", "llm"}, *order)
}

func TestModelsInitMissingService(t *testing.T) {
	models := NewModels(nil, nil, nil)
	assert.Error(t, models.Init(context.Background()))
}

func TestModelsCleanup(t *testing.T) {
	models, llm, stt, tts, _ := newStubModels()
	require.NoError(t, models.Cleanup())
	assert.True(t, llm.cleaned)
	assert.True(t, stt.cleaned)
	assert.True(t, tts.cleaned)
}

func TestModelsWarmup(t *testing.T) {
	models, llm, stt, tts, _ := newStubModels()
	path := filepath.Join(t.TempDir(), "warmup.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	models.WarmupAudio = path

	models.Warmup(context.Background(), quietLogger())

	assert.Equal(t, []string{"warmup.wav"}, stt.files)
	require.Len(t, llm.prompts, 1)
	assert.Equal(t, warmupPrompt, llm.prompts[0])
	assert.Equal(t, 5, llm.params[0].MaxTokens)
	assert.Equal(t, warmupTTSRounds, tts.calls)
}

func TestModelsWarmupToleratesFailures(t *testing.T) {
	models, llm, stt, tts, _ := newStubModels()
	llm.err = errors.New("no model")
	tts.err = errors.New("no voice")
	models.WarmupAudio = filepath.Join(t.TempDir(), "missing.wav")

	assert.NotPanics(t, func() { models.Warmup(context.Background(), quietLogger()) })
	assert.Empty(t, stt.files)
	assert.Equal(t, 1, tts.calls, "stops after the first synthesis failure")
}

func TestAudioChunkDuration(t *testing.T) {
	chunk := AudioChunk{Samples: make([]float32, 12000), SampleRate: 24000}
	assert.InDelta(t, 0.5, chunk.GetDurationInSeconds(), 1e-9)
	assert.Zero(t, (&AudioChunk{}).GetDurationInSeconds())
}
