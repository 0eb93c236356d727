package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"

	"midas/core"
)

const settingsKey = "settings"

var ErrInvalidSetting = errors.New("store: invalid setting value")

// Values is the user-tunable settings schema. JSON names are the wire keys.
type Values struct {
	// LLM
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"topP"`
	TopK          int     `json:"topK"`
	MaxTokens     int     `json:"maxTokens"`
	RepeatPenalty float64 `json:"repeatPenalty"`
	ContextWindow int     `json:"contextWindow"`
	// STT
	BeamSize     int  `json:"beamSize"`
	VADFilter    bool `json:"vadFilter"`
	VADThreshold int  `json:"vadThreshold"`
	// TTS
	SampleRate int    `json:"sampleRate"`
	Voice      string `json:"voice"`
	// UI
	SoundEffects bool   `json:"soundEffects"`
	InputDevice  string `json:"inputDevice"`
	OutputDevice string `json:"outputDevice"`
}

func DefaultValues() Values {
	return Values{
		Temperature:   0.7,
		TopP:          0.9,
		TopK:          40,
		MaxTokens:     256,
		RepeatPenalty: 1.1,
		ContextWindow: 4096,
		BeamSize:      1,
		VADFilter:     true,
		VADThreshold:  300,
		SampleRate:    24000,
		Voice:         "en_0",
		SoundEffects:  true,
		InputDevice:   "",
		OutputDevice:  "",
	}
}

// KnownKeys lists every settings key.
var KnownKeys = lo.Keys(DefaultValues().Map())

// Map returns the values keyed by their wire names.
func (v Values) Map() map[string]any {
	data, _ := sonic.Marshal(v)
	out := map[string]any{}
	sonic.Unmarshal(data, &out)
	return out
}

// Merge returns a copy of v with every known key of updates applied. Unknown
// keys are ignored. A value of the wrong type fails with ErrInvalidSetting.
func (v Values) Merge(updates map[string]any) (Values, error) {
	picked := lo.PickByKeys(updates, KnownKeys)
	if len(picked) == 0 {
		return v, nil
	}
	merged := v.Map()
	for k, val := range picked {
		merged[k] = val
	}
	data, err := sonic.Marshal(merged)
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	var out Values
	if err := sonic.Unmarshal(data, &out); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	return out, nil
}

// Settings is the process-wide settings holder. Every mutation is persisted.
type Settings struct {
	mu      sync.RWMutex
	values  Values
	backend Backend
	logger  *core.Logger
}

// NewSettings loads persisted settings over the defaults.
func NewSettings(backend Backend, logger *core.Logger) *Settings {
	s := &Settings{
		values:  DefaultValues(),
		backend: backend,
		logger:  logger.With(map[string]any{"component": "settings"}),
	}
	loaded := DefaultValues()
	switch err := backend.Load(settingsKey, &loaded); {
	case err == nil:
		s.values = loaded
		s.logger.Info("settings loaded")
	case errors.Is(err, ErrNotExist):
	default:
		s.logger.With(map[string]any{"error": err}).Warn("failed to load settings, using defaults")
	}
	return s
}

func (s *Settings) Get() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Update applies the known keys of updates and persists the result.
func (s *Settings) Update(updates map[string]any) (Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := s.values.Merge(updates)
	if err != nil {
		return s.values, err
	}
	s.values = merged
	s.save()
	return s.values, nil
}

// Reset restores the defaults and persists them.
func (s *Settings) Reset() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = DefaultValues()
	s.save()
	return s.values
}

func (s *Settings) save() {
	if err := s.backend.Save(settingsKey, s.values); err != nil {
		s.logger.With(map[string]any{"error": err}).Error("failed to save settings")
		return
	}
	s.logger.Debug("settings saved")
}
