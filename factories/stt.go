package factories

import (
	"errors"

	"midas/core"
	openaistt "midas/services/openai/stt"
)

// STTFactoryConfig holds provider-specific configs for STT service construction.
// Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	OpenAIConfig *openaistt.Config `toml:"openai"`
}

const whisperBaseURL = "http://127.0.0.1:9000/v1"

// BuildSTTService constructs an STTService from the given factory config.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (core.STTService, error) {
	if config.OpenAIConfig != nil {
		cfg := *config.OpenAIConfig
		if cfg.BaseURL == "" {
			cfg.BaseURL = whisperBaseURL
		}
		logger.With(map[string]any{"provider": "openai", "base_url": cfg.BaseURL}).Info("stt configured")
		return openaistt.NewOpenAISTTService(cfg), nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}
