package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// OpenAISTTService implements core.STTService against an OpenAI-compatible
// /v1/audio/transcriptions endpoint (whisper.cpp server, faster-whisper-server).
type OpenAISTTService struct {
	config Config
	client *openai.Client

	isInitialized bool
	mu            sync.RWMutex
}

type Config struct {
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`    // e.g. whisper-1 or Systran/faster-whisper-base.en
	Language string `toml:"language"` // ISO-639-1 hint; empty lets the server detect it.
}

func NewOpenAISTTService(config Config) *OpenAISTTService {
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	return &OpenAISTTService{config: config}
}

func (s *OpenAISTTService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.config.APIKey
	if key == "" {
		key = "local"
	}
	cfg := openai.DefaultConfig(key)
	if s.config.BaseURL != "" {
		cfg.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(cfg)
	s.isInitialized = true
	return nil
}

func (s *OpenAISTTService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

func (s *OpenAISTTService) Reset() error {
	return nil
}

// Transcribe uploads the recording and returns the recognized text.
func (s *OpenAISTTService) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	s.mu.RLock()
	client, ready := s.client, s.isInitialized
	s.mu.RUnlock()
	if !ready {
		return "", fmt.Errorf("openai stt: service not initialized")
	}

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.Model,
		Reader:   audio,
		FilePath: filename,
		Language: s.config.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai stt: transcription: %w", err)
	}
	return resp.Text, nil
}
