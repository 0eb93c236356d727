package factories

import (
	"errors"

	"midas/core"
	openaitts "midas/services/openai/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	OpenAIConfig *openaitts.Config `toml:"openai"`
}

const speechBaseURL = "http://127.0.0.1:8880/v1"

// BuildTTSService constructs a TTSService from the given factory config.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (core.TTSService, error) {
	if config.OpenAIConfig != nil {
		cfg := *config.OpenAIConfig
		if cfg.BaseURL == "" {
			cfg.BaseURL = speechBaseURL
		}
		logger.With(map[string]any{"provider": "openai", "base_url": cfg.BaseURL, "voices": len(cfg.Voices)}).Info("tts configured")
		return openaitts.NewOpenAITTSService(cfg), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
