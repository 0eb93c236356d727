package factories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"midas/core"
	"midas/handlers/chat"
	"midas/handlers/knowledge"
	"midas/handlers/stt"
	"midas/metrics"
	"midas/store"
	"midas/transports/httpapi"
)

// App wires the assistant's components from an AppConfig.
type App struct {
	Config      AppConfig
	Logger      *core.Logger
	Models      *core.Models
	Settings    *store.Settings
	History     *store.History
	Retriever   *knowledge.Retriever
	Library     *knowledge.Library
	Chat        *chat.ChatHandler
	Transcriber *stt.Transcriber
	Metrics     *metrics.Metrics // nil when disabled

	closers []io.Closer
}

// BuildLogger creates the process logger: console or JSON on stdout, teed into
// a rotated JSON file when a log path is configured. The returned closer
// flushes the file and may be nil.
func BuildLogger(cfg LogConfig) (*core.Logger, io.Closer) {
	level := core.ParseLevel(cfg.Level)
	var console *core.Logger
	if cfg.Format == "json" {
		console = core.NewJSONLogger(os.Stdout, level)
	} else {
		console = core.NewConsoleLogger(os.Stdout, level)
	}
	if cfg.Path == "" {
		return console, nil
	}
	file := core.NewRotatingWriter(core.RotationConfig{
		Path:       cfg.Path,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	return core.NewTeeLogger(level, console, core.NewJSONLogger(file, level)), file
}

// NewApp builds every component. Models are constructed but not contacted
// until Start.
func NewApp(cfg AppConfig, logger *core.Logger) (*App, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	llm, err := BuildLLMService(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	sttService, err := BuildSTTService(cfg.STT, logger)
	if err != nil {
		return nil, err
	}
	ttsService, err := BuildTTSService(cfg.TTS, logger)
	if err != nil {
		return nil, err
	}
	a.Models = core.NewModels(llm, sttService, ttsService)
	a.Models.WarmupAudio = cfg.Models.WarmupAudio

	backend, err := store.NewJSONFileBackend(cfg.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("app: data dir: %w", err)
	}
	a.Settings = store.NewSettings(backend, logger)
	a.History = store.NewHistory(backend, store.HistoryOptions{
		MaxEntries: cfg.History.MaxEntries,
		SaveEvery:  cfg.History.SaveEvery,
	}, logger)

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(cfg.Metrics.Namespace)
	}

	a.Retriever = knowledge.NewRetriever(cfg.Paths.KnowledgeDir, logger)
	a.Retriever.OnReload = a.Metrics.SetKnowledgeChunks
	a.Retriever.Load()
	a.Library = knowledge.NewLibrary(a.Retriever, logger)

	chatConfig := chat.DefaultConfig()
	if cfg.Knowledge.TopK > 0 {
		chatConfig.ContextTopK = cfg.Knowledge.TopK
	}
	a.Chat = chat.NewChatHandler(a.Models, a.Retriever, a.History, a.Settings, chatConfig, logger)
	a.Transcriber = stt.NewTranscriber(sttService, a.Settings, stt.DefaultConfig(), logger)
	if a.Metrics != nil {
		a.Chat.WithRecorder(a.Metrics)
		a.Transcriber.WithRecorder(a.Metrics)
	}
	return a, nil
}

// Start initializes the model services and, when configured, warms them up.
func (a *App) Start(ctx context.Context) error {
	if err := a.Models.Init(ctx); err != nil {
		return fmt.Errorf("app: init models: %w", err)
	}
	a.closers = append(a.closers, closerFunc(a.Models.Cleanup))
	if a.Config.Models.Warmup {
		a.Models.Warmup(ctx, a.Logger)
	}
	return nil
}

// WatchKnowledge reloads the knowledge base on file changes until ctx is
// done. It returns immediately when watching is disabled.
func (a *App) WatchKnowledge(ctx context.Context) error {
	if !a.Config.Knowledge.Watch {
		return nil
	}
	w, err := knowledge.NewWatcher(a.Retriever, time.Duration(a.Config.Knowledge.DebounceMs)*time.Millisecond, a.Logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Server returns the HTTP API over this app's components.
func (a *App) Server() *httpapi.Server {
	return httpapi.NewServer(httpapi.Deps{
		Chat:        a.Chat,
		Transcriber: a.Transcriber,
		Settings:    a.Settings,
		History:     a.History,
		Library:     a.Library,
		Index:       a.Retriever,
		Metrics:     a.Metrics,
		StaticDir:   a.Config.Server.StaticDir,
		Logger:      a.Logger,
	})
}

// Close persists history and releases the model services.
func (a *App) Close() error {
	a.History.Save()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
