package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"midas/core"
	"midas/handlers/knowledge"
	"midas/metrics"
	"midas/store"
	ws "midas/transports/websocket"
)

// DefaultVoices are the voice ids offered to clients.
var DefaultVoices = []string{"en_0", "en_1", "en_2", "en_3", "en_21", "en_24", "en_28", "en_30"}

// Transcriber turns an uploaded recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (string, error)
}

type SettingsStore interface {
	Get() store.Values
	Update(updates map[string]any) (store.Values, error)
	Reset() store.Values
}

type HistoryStore interface {
	All() []store.Exchange
	Len() int
	Clear()
}

type KnowledgeLibrary interface {
	Dir() string
	List() ([]knowledge.FileInfo, error)
	Read(name string) (string, error)
	Save(name, content string) (string, int, error)
	Delete(name string) (int, error)
}

type KnowledgeIndex interface {
	Reload() int
	Count() int
}

// Deps are the components served over HTTP. Metrics may be nil.
type Deps struct {
	Chat        ws.TurnRunner
	Transcriber Transcriber
	Settings    SettingsStore
	History     HistoryStore
	Library     KnowledgeLibrary
	Index       KnowledgeIndex
	Metrics     *metrics.Metrics
	Voices      []string
	StaticDir   string // Serves index.html, styles.css and app.js when set.
	Logger      *core.Logger
}

type Server struct {
	deps     Deps
	engine   *gin.Engine
	upgrader *websocket.Upgrader
	logger   *core.Logger
}

func NewServer(deps Deps) *Server {
	if deps.Voices == nil {
		deps.Voices = DefaultVoices
	}
	if deps.Logger == nil {
		deps.Logger = core.GetLogger()
	}
	s := &Server{
		deps:     deps,
		engine:   gin.New(),
		upgrader: ws.NewUpgrader(),
		logger:   deps.Logger.With(map[string]any{"component": "http"}),
	}
	s.setupRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRouter() {
	e := s.engine
	e.Use(gin.Recovery(), s.requestLogger(), Cors)

	e.GET("/healthz", s.health)
	e.GET("/metrics", s.deps.Metrics.Handler())

	if s.deps.StaticDir != "" {
		e.StaticFile("/", filepath.Join(s.deps.StaticDir, "index.html"))
		e.StaticFile("/styles.css", filepath.Join(s.deps.StaticDir, "styles.css"))
		e.StaticFile("/app.js", filepath.Join(s.deps.StaticDir, "app.js"))
	}

	api := e.Group("/api")
	{
		api.GET("/voices", s.voices)
		api.POST("/transcribe", s.transcribe)
		api.GET("/chat", s.chat)

		api.GET("/settings", s.getSettings)
		api.POST("/settings", s.updateSettings)
		api.POST("/settings/reset", s.resetSettings)

		api.GET("/history", s.getHistory)
		api.DELETE("/history", s.clearHistory)

		api.GET("/knowledge", s.listKnowledge)
		api.GET("/knowledge/:name", s.readKnowledge)
		api.POST("/knowledge", s.saveKnowledge)
		api.DELETE("/knowledge/:name", s.deleteKnowledge)
		api.POST("/reload-knowledge", s.reloadKnowledge)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Open chat sockets see ctx cancelled through their request context.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.With(map[string]any{"addr": addr}).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
