package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"midas/core"
)

// OpenAILLMService implements core.LLMService against an OpenAI-compatible
// /v1/completions endpoint, such as the llama.cpp server. Prompts are sent
// raw so the ChatML template built by the chat handler is used verbatim.
type OpenAILLMService struct {
	client  *openai.Client
	apiKey  string
	baseURL string
	model   string
	probe   bool

	// Streaming management
	activeStreams map[string]*openai.CompletionStream
	streamsMutex  sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc

	// Service state
	isInitialized bool
	mu            sync.RWMutex
}

// Config holds the configuration for the completion service
type Config struct {
	BaseURL string `toml:"base_url"` // e.g. http://127.0.0.1:8080/v1
	APIKey  string `toml:"api_key"`  // Local servers accept any non-empty key.
	Model   string `toml:"model"`
	Probe   bool   `toml:"probe"` // List models during Init to fail fast when the server is down.
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config) *OpenAILLMService {
	return &OpenAILLMService{
		apiKey:        config.APIKey,
		baseURL:       config.BaseURL,
		model:         config.Model,
		probe:         config.Probe,
		activeStreams: make(map[string]*openai.CompletionStream),
	}
}

func (s *OpenAILLMService) newClient() *openai.Client {
	key := s.apiKey
	if key == "" {
		key = "local"
	}
	cfg := openai.DefaultConfig(key)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Init creates the client and optionally checks that the server answers.
func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == "" {
		return fmt.Errorf("openai llm: model is required")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.client = s.newClient()

	if s.probe {
		if _, err := s.client.ListModels(ctx); err != nil {
			return fmt.Errorf("openai llm: connect to %s: %w", s.baseURL, err)
		}
	}

	s.isInitialized = true
	return nil
}

// Cleanup closes every open stream and drops the client.
func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllStreams()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.client = nil
	s.isInitialized = false
	return nil
}

// Reset stops all active streams and starts over with a fresh client.
func (s *OpenAILLMService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllStreams()
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.client = s.newClient()
	return nil
}

func (s *OpenAILLMService) stopAllStreams() {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()

	for id, stream := range s.activeStreams {
		stream.Close()
		delete(s.activeStreams, id)
	}
}

func (s *OpenAILLMService) registerStream(stream *openai.CompletionStream) string {
	id := uuid.NewString()
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()
	s.activeStreams[id] = stream
	return id
}

func (s *OpenAILLMService) unregisterStream(id string) {
	s.streamsMutex.Lock()
	defer s.streamsMutex.Unlock()
	delete(s.activeStreams, id)
}

// Generate starts a streamed raw completion.
func (s *OpenAILLMService) Generate(ctx context.Context, prompt string, params core.GenerationParams) (core.TokenStream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isInitialized {
		return nil, fmt.Errorf("openai llm: service not initialized")
	}

	req := openai.CompletionRequest{
		Model:       s.model,
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stop:        params.Stop,
		Stream:      true,
	}

	// Reset cancels every stream started before it.
	streamCtx, cancel := context.WithCancel(ctx)
	go func(serviceCtx context.Context) {
		select {
		case <-serviceCtx.Done():
			cancel()
		case <-streamCtx.Done():
		}
	}(s.ctx)

	stream, err := s.client.CreateCompletionStream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openai llm: create completion stream: %w", err)
	}
	return &completionStream{
		service: s,
		id:      s.registerStream(stream),
		stream:  stream,
		cancel:  cancel,
	}, nil
}

type completionStream struct {
	service *OpenAILLMService
	id      string
	stream  *openai.CompletionStream
	cancel  context.CancelFunc
	once    sync.Once
}

// Recv returns the next non-empty text delta, or io.EOF when the server is done.
func (c *completionStream) Recv() (string, error) {
	for {
		resp, err := c.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("openai llm: recv: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Text == "" {
			continue
		}
		return resp.Choices[0].Text, nil
	}
}

func (c *completionStream) Close() error {
	c.once.Do(func() {
		c.service.unregisterStream(c.id)
		c.stream.Close()
		c.cancel()
	})
	return nil
}
