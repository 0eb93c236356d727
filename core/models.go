package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	warmupPrompt     = "<|im_start|>user\nHi<|im_end|>\n<|im_start|>assistant\n"
	warmupSpeech     = "Hello."
	warmupVoice      = "en_0"
	warmupSampleRate = 24000
	warmupTTSRounds  = 3
)

// Models holds the three model handles shared by every connection.
// It is built once at startup and torn down at shutdown.
type Models struct {
	LLM LLMService
	STT STTService
	TTS TTSService

	WarmupAudio string
}

func NewModels(llm LLMService, stt STTService, tts TTSService) *Models {
	return &Models{LLM: llm, STT: stt, TTS: tts}
}

func (m *Models) services() []IService {
	return []IService{m.STT, m.LLM, m.TTS}
}

// Init initializes every backend in STT, LLM, TTS order.
func (m *Models) Init(ctx context.Context) error {
	for _, s := range m.services() {
		if s == nil {
			return errors.New("models: missing service")
		}
		if err := s.Init(ctx); err != nil {
			return fmt.Errorf("models: init %T: %w", s, err)
		}
	}
	return nil
}

// Cleanup releases every backend and returns the joined errors.
func (m *Models) Cleanup() error {
	var errs []error
	for _, s := range m.services() {
		if s == nil {
			continue
		}
		if err := s.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("models: cleanup %T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Warmup exercises each backend once so the first user turn does not pay for
// lazy model loading. Failures are logged, never returned.
func (m *Models) Warmup(ctx context.Context, logger *Logger) {
	started := time.Now()

	if m.WarmupAudio != "" {
		if err := m.warmupSTT(ctx); err != nil {
			logger.With(map[string]any{"error": err}).Warn("stt warmup failed")
		}
	}

	if err := m.warmupLLM(ctx); err != nil {
		logger.With(map[string]any{"error": err}).Warn("llm warmup failed")
	}

	for i := 0; i < warmupTTSRounds; i++ {
		if _, err := m.TTS.Synthesize(ctx, warmupSpeech, warmupVoice, warmupSampleRate); err != nil {
			logger.With(map[string]any{"error": err}).Warn("tts warmup failed")
			break
		}
	}

	logger.With(map[string]any{"elapsed_ms": time.Since(started).Milliseconds()}).Info("models warmed up")
}

func (m *Models) warmupSTT(ctx context.Context) error {
	f, err := os.Open(m.WarmupAudio)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = m.STT.Transcribe(ctx, f, filepath.Base(m.WarmupAudio))
	return err
}

func (m *Models) warmupLLM(ctx context.Context) error {
	stream, err := m.LLM.Generate(ctx, warmupPrompt, GenerationParams{
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        40,
		MaxTokens:   5,
		Stop:        []string{"<|im_end|>"},
	})
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
