package factories

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"midas/core"
	"midas/handlers/knowledge"
	openaillm "midas/services/openai/llm"
	openaistt "midas/services/openai/stt"
	openaitts "midas/services/openai/tts"
	"midas/store"
)

// AppConfig is the process configuration, read from a TOML file. Runtime user
// settings live separately in the data directory.
type AppConfig struct {
	Server    ServerConfig     `toml:"server"`
	Paths     PathsConfig      `toml:"paths"`
	Log       LogConfig        `toml:"log"`
	LLM       LLMFactoryConfig `toml:"llm"`
	STT       STTFactoryConfig `toml:"stt"`
	TTS       TTSFactoryConfig `toml:"tts"`
	Knowledge KnowledgeConfig  `toml:"knowledge"`
	History   HistoryConfig    `toml:"history"`
	Models    ModelsConfig     `toml:"models"`
	Metrics   MetricsConfig    `toml:"metrics"`
}

type ServerConfig struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"` // Web UI assets; empty disables static serving.
}

type PathsConfig struct {
	DataDir      string `toml:"data_dir"`      // settings.json and history.json
	KnowledgeDir string `toml:"knowledge_dir"` // .md and .txt knowledge files
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "console" or "json"
	Path       string `toml:"path"`   // Also write JSON lines to this rotated file when set.
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type KnowledgeConfig struct {
	Watch      bool `toml:"watch"` // Reload when files in the knowledge dir change.
	DebounceMs int  `toml:"debounce_ms"`
	TopK       int  `toml:"top_k"`
}

type HistoryConfig struct {
	MaxEntries int `toml:"max_entries"`
	SaveEvery  int `toml:"save_every"`
}

type ModelsConfig struct {
	Warmup      bool   `toml:"warmup"`
	WarmupAudio string `toml:"warmup_audio"` // Optional recording transcribed during warmup.
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

func DefaultConfig() AppConfig {
	history := store.DefaultHistoryOptions()
	return AppConfig{
		Server: ServerConfig{Addr: "0.0.0.0:8000", StaticDir: "static"},
		Paths:  PathsConfig{DataDir: "data", KnowledgeDir: "knowledge"},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		LLM: LLMFactoryConfig{OpenAIConfig: &openaillm.Config{BaseURL: llamaCppBaseURL, Model: "qwen2.5-3b-instruct"}},
		STT: STTFactoryConfig{OpenAIConfig: &openaistt.Config{BaseURL: whisperBaseURL, Model: "Systran/faster-whisper-base.en", Language: "en"}},
		TTS: TTSFactoryConfig{OpenAIConfig: &openaitts.Config{BaseURL: speechBaseURL, Model: "kokoro"}},
		Knowledge: KnowledgeConfig{
			Watch:      true,
			DebounceMs: int(knowledge.DefaultDebounce / time.Millisecond),
			TopK:       knowledge.DefaultTopK,
		},
		History: HistoryConfig{MaxEntries: history.MaxEntries, SaveEvery: history.SaveEvery},
		Models:  ModelsConfig{Warmup: true},
		Metrics: MetricsConfig{Enabled: true, Namespace: "midas"},
	}
}

// LoadConfig reads path over DefaultConfig. ${VAR} references are expanded
// from the environment before parsing. An empty path returns the defaults.
// Naming one provider in a section replaces the default provider.
func LoadConfig(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	md, err := toml.Decode(os.ExpandEnv(string(raw)), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if md.IsDefined("llm", "ollama") && !md.IsDefined("llm", "openai") {
		cfg.LLM.OpenAIConfig = nil
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		core.GetLogger().With(map[string]any{"keys": fmt.Sprint(undecoded)}).Warn("unknown config keys ignored")
	}

	base := filepath.Dir(path)
	cfg.Paths.DataDir = resolvePath(base, cfg.Paths.DataDir)
	cfg.Paths.KnowledgeDir = resolvePath(base, cfg.Paths.KnowledgeDir)
	if cfg.Server.StaticDir != "" {
		cfg.Server.StaticDir = resolvePath(base, cfg.Server.StaticDir)
	}
	return cfg, nil
}

// resolvePath interprets relative paths against the config file's directory.
func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
