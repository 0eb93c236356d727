package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"midas/core"
)

// OllamaLLMService implements core.LLMService with Ollama's raw-prompt
// generate endpoint. Unlike the OpenAI-compatible route it forwards top_k,
// repeat_penalty and num_ctx.
type OllamaLLMService struct {
	client    *api.Client
	host      string
	model     string
	keepAlive time.Duration
	timeout   time.Duration

	isInitialized bool
	mu            sync.RWMutex
}

type Config struct {
	Host      string        `toml:"host"`       // Defaults to http://localhost:11434.
	Model     string        `toml:"model"`      // e.g. qwen2.5:3b
	KeepAlive time.Duration `toml:"keep_alive"` // How long Ollama keeps the model loaded after a request; 0 uses the server default.
	Timeout   time.Duration `toml:"timeout"`    // HTTP client timeout for a whole generation; 0 means none.
}

func NewOllamaLLMService(config Config) *OllamaLLMService {
	host := config.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	return &OllamaLLMService{
		host:      host,
		model:     config.Model,
		keepAlive: config.KeepAlive,
		timeout:   config.Timeout,
	}
}

// Init creates the client and checks that the server is reachable.
func (s *OllamaLLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == "" {
		return fmt.Errorf("ollama llm: model is required")
	}
	u, err := url.Parse(s.host)
	if err != nil {
		return fmt.Errorf("ollama llm: invalid host %q: %w", s.host, err)
	}
	s.client = api.NewClient(u, &http.Client{Timeout: s.timeout})

	if err := s.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama llm: connect to %s: %w", s.host, err)
	}
	s.isInitialized = true
	return nil
}

func (s *OllamaLLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

// Reset is a no-op: generations are bound to their caller's context.
func (s *OllamaLLMService) Reset() error {
	return nil
}

// Generate starts a raw (untemplated) streamed generation.
func (s *OllamaLLMService) Generate(ctx context.Context, prompt string, params core.GenerationParams) (core.TokenStream, error) {
	s.mu.RLock()
	client := s.client
	ready := s.isInitialized
	s.mu.RUnlock()
	if !ready {
		return nil, fmt.Errorf("ollama llm: service not initialized")
	}

	stream := true
	req := &api.GenerateRequest{
		Model:   s.model,
		Prompt:  prompt,
		Raw:     true,
		Stream:  &stream,
		Options: options(params),
	}
	if s.keepAlive > 0 {
		req.KeepAlive = &api.Duration{Duration: s.keepAlive}
	}

	genCtx, cancel := context.WithCancel(ctx)
	ts := &tokenStream{
		tokens: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(ts.done)
		ts.err = client.Generate(genCtx, req, func(resp api.GenerateResponse) error {
			if resp.Response == "" {
				return nil
			}
			select {
			case ts.tokens <- resp.Response:
				return nil
			case <-genCtx.Done():
				return genCtx.Err()
			}
		})
	}()
	return ts, nil
}

func options(p core.GenerationParams) map[string]any {
	opts := map[string]any{
		"temperature": p.Temperature,
		"top_p":       p.TopP,
	}
	if p.TopK > 0 {
		opts["top_k"] = p.TopK
	}
	if p.MaxTokens > 0 {
		opts["num_predict"] = p.MaxTokens
	}
	if p.RepeatPenalty > 0 {
		opts["repeat_penalty"] = p.RepeatPenalty
	}
	if p.ContextWindow > 0 {
		opts["num_ctx"] = p.ContextWindow
	}
	if len(p.Stop) > 0 {
		opts["stop"] = p.Stop
	}
	return opts
}

// tokenStream adapts Ollama's callback API to a pull-based stream.
type tokenStream struct {
	tokens chan string
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	once   sync.Once
}

func (t *tokenStream) Recv() (string, error) {
	select {
	case tok := <-t.tokens:
		return tok, nil
	case <-t.done:
		if t.err != nil {
			return "", fmt.Errorf("ollama llm: generate: %w", t.err)
		}
		return "", io.EOF
	}
}

func (t *tokenStream) Close() error {
	t.once.Do(func() {
		t.cancel()
		<-t.done
	})
	return nil
}
