package factories

import (
	"errors"

	"midas/core"
	ollamallm "midas/services/ollama/llm"
	openaillm "midas/services/openai/llm"
)

// LLMFactoryConfig holds provider-specific configs for LLM service construction.
// Set exactly one provider config; the rest should be left nil.
type LLMFactoryConfig struct {
	OpenAIConfig *openaillm.Config `toml:"openai"` // Any /v1/completions server, e.g. llama.cpp.
	OllamaConfig *ollamallm.Config `toml:"ollama"`
}

// Default endpoints for the local inference servers.
const (
	llamaCppBaseURL = "http://127.0.0.1:8080/v1"
	ollamaHost      = "http://127.0.0.1:11434"
)

// BuildLLMService constructs an LLMService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (core.LLMService, error) {
	if config.OpenAIConfig != nil && config.OllamaConfig != nil {
		return nil, errors.New("LLMFactoryConfig: more than one provider config specified")
	}
	if config.OpenAIConfig != nil {
		cfg := *config.OpenAIConfig
		if cfg.BaseURL == "" {
			cfg.BaseURL = llamaCppBaseURL
		}
		logger.With(map[string]any{"provider": "openai", "base_url": cfg.BaseURL, "model": cfg.Model}).Info("llm configured")
		return openaillm.NewOpenAILLMService(cfg), nil
	}
	if config.OllamaConfig != nil {
		cfg := *config.OllamaConfig
		if cfg.Host == "" {
			cfg.Host = ollamaHost
		}
		logger.With(map[string]any{"provider": "ollama", "host": cfg.Host, "model": cfg.Model}).Info("llm configured")
		return ollamallm.NewOllamaLLMService(cfg), nil
	}
	return nil, errors.New("LLMFactoryConfig: no provider config specified")
}
