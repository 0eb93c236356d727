package tts

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"midas/core"
	"midas/utils/audio"
	"midas/utils/text"
)

// NativeSampleRate is the rate of the raw PCM returned by the speech endpoint.
const NativeSampleRate = 24000

// OpenAITTSService implements core.TTSService against an OpenAI-compatible
// /v1/audio/speech endpoint that can return raw 16-bit PCM (Kokoro-FastAPI,
// openedai-speech).
type OpenAITTSService struct {
	config Config
	client *openai.Client

	isInitialized bool
	mu            sync.RWMutex
}

type Config struct {
	BaseURL string            `toml:"base_url"`
	APIKey  string            `toml:"api_key"`
	Model   string            `toml:"model"`  // e.g. tts-1 or kokoro
	Voices  map[string]string `toml:"voices"` // Maps client voice ids (en_0, en_21...) to backend voice names.
	Speed   float64           `toml:"speed"`
}

func NewOpenAITTSService(config Config) *OpenAITTSService {
	if config.Model == "" {
		config.Model = string(openai.TTSModel1)
	}
	return &OpenAITTSService{config: config}
}

func (s *OpenAITTSService) Init(ctx context.Context) error {
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

func (s *OpenAITTSService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

func (s *OpenAITTSService) Reset() error {
	return nil
}

// backendVoice maps a client voice id; unmapped ids pass through unchanged.
func (s *OpenAITTSService) backendVoice(voice string) string {
	if mapped, ok := s.config.Voices[voice]; ok {
		return mapped
	}
	return voice
}

// Synthesize renders text to mono float audio at sampleRate. Text that is
// empty once normalized yields an empty chunk without a request.
func (s *OpenAITTSService) Synthesize(ctx context.Context, input, voice string, sampleRate int) (core.AudioChunk, error) {
	s.mu.RLock()
	client, ready := s.client, s.isInitialized
	s.mu.RUnlock()
	if !ready {
		return core.AudioChunk{}, fmt.Errorf("openai tts: service not initialized")
	}
	if sampleRate <= 0 {
		sampleRate = NativeSampleRate
	}

	speakable := text.NormalizeForSpeech(input)
	if speakable == "" {
		return core.AudioChunk{SampleRate: sampleRate}, nil
	}

	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Input:          speakable,
		Voice:          openai.SpeechVoice(s.backendVoice(voice)),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          s.config.Speed,
	})
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("openai tts: create speech: %w", err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("openai tts: read speech: %w", err)
	}

	chunk := core.AudioChunk{
		Samples:    audio.Resample(audio.PCM16ToFloat(pcm), NativeSampleRate, sampleRate),
		SampleRate: sampleRate,
	}
	core.LoggerFromContext(ctx).Debug("speech synthesized", "voice", voice, "seconds", chunk.GetDurationInSeconds())
	return chunk, nil
}
