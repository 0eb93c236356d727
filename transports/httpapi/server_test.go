package httpapi

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/core"
	chatevents "midas/events/chat"
	"midas/handlers/chat"
	"midas/handlers/knowledge"
	"midas/metrics"
	"midas/protocol"
	"midas/store"
)

type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, req protocol.ChatRequest, emitter chat.Emitter) error {
	if err := emitter.Emit(ctx, core.NewEventPacket(&chatevents.TextChunkEvent{Content: req.Text}, "t", "test")); err != nil {
		return err
	}
	return emitter.Emit(ctx, core.NewEventPacket(&chatevents.TurnCompletedEvent{}, "t", "test"))
}

type fakeTranscriber struct{ got []byte }

func (f *fakeTranscriber) Transcribe(_ context.Context, data []byte, filename string) (string, error) {
	f.got = data
	return "heard " + filename, nil
}

type testEnv struct {
	server      *Server
	dir         string
	history     *store.History
	transcriber *fakeTranscriber
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := core.NewLogger(core.LevelError, func(core.Level, string, map[string]any) {})

	dir := t.TempDir()
	backend, err := store.NewJSONFileBackend(filepath.Join(dir, "data"))
	require.NoError(t, err)

	static := filepath.Join(dir, "static")
	require.NoError(t, os.MkdirAll(static, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>midas</html>"), 0o644))

	retriever := knowledge.NewRetriever(filepath.Join(dir, "knowledge"), logger)
	retriever.Load()
	history := store.NewHistory(backend, store.DefaultHistoryOptions(), logger)
	tr := &fakeTranscriber{}

	s := NewServer(Deps{
		Chat:        echoRunner{},
		Transcriber: tr,
		Settings:    store.NewSettings(backend, logger),
		History:     history,
		Library:     knowledge.NewLibrary(retriever, logger),
		Index:       retriever,
		Metrics:     metrics.New("midas"),
		StaticDir:   static,
		Logger:      logger,
	})
	return &testEnv{server: s, dir: dir, history: history, transcriber: tr}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestVoicesAndHealth(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodGet, "/api/voices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["voices"], 8)

	w, body = env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestSettingsRoutes(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/settings", "")
	assert.Equal(t, 0.7, body["temperature"])

	w, body := env.do(t, http.MethodPost, "/api/settings", `{"temperature":0.2,"foo":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	settings := body["settings"].(map[string]any)
	assert.Equal(t, 0.2, settings["temperature"])
	assert.NotContains(t, settings, "foo")

	w, body = env.do(t, http.MethodPost, "/api/settings", `{"topK":"many"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body, "error")

	w, _ = env.do(t, http.MethodPost, "/api/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, body = env.do(t, http.MethodPost, "/api/settings/reset", "")
	assert.Equal(t, 0.7, body["settings"].(map[string]any)["temperature"])
}

func TestHistoryRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.history.Add("hi", "hello")

	_, body := env.do(t, http.MethodGet, "/api/history", "")
	entries := body["history"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].(map[string]any)["assistant"])

	w, body := env.do(t, http.MethodDelete, "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	_, body = env.do(t, http.MethodGet, "/api/history", "")
	assert.Empty(t, body["history"])
}

func TestKnowledgeRoutes(t *testing.T) {
	env := newTestEnv(t)
	content := "# Pets\nThe assistant's owner has a cat named Biscuit who likes boxes."

	w, body := env.do(t, http.MethodPost, "/api/knowledge", `{"name":"my pets","content":"`+strings.ReplaceAll(content, "\n", `\n`)+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "my_pets.md", body["name"])
	assert.EqualValues(t, 1, body["documents"])

	_, body = env.do(t, http.MethodGet, "/api/knowledge", "")
	files := body["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "my_pets.md", files[0].(map[string]any)["name"])
	assert.Equal(t, filepath.Join(env.dir, "knowledge"), body["path"])

	_, body = env.do(t, http.MethodGet, "/api/knowledge/my_pets.md", "")
	assert.Equal(t, content, body["content"])

	w, body = env.do(t, http.MethodGet, "/api/knowledge/missing.md", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File not found", body["error"])

	w, _ = env.do(t, http.MethodGet, "/api/knowledge/..", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/knowledge", `{"name":"  ","content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, body = env.do(t, http.MethodPost, "/api/reload-knowledge", "")
	assert.EqualValues(t, 1, body["documents"])

	w, body = env.do(t, http.MethodDelete, "/api/knowledge/my_pets.md", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["documents"])

	w, _ = env.do(t, http.MethodDelete, "/api/knowledge/my_pets.md", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTranscribeRoute(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "clip.webm")
	require.NoError(t, err)
	part.Write([]byte("audio-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"heard clip.webm"}`, w.Body.String())
	assert.Equal(t, []byte("audio-bytes"), env.transcriber.got)

	w, _ = env.do(t, http.MethodPost, "/api/transcribe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorsAndStatic(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/settings", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "midas")
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/voices", "")

	w, _ := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `midas_http_requests_total{method="GET",route="/api/voices",status="200"} 1`)
}

func TestChatSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/chat", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(protocol.ChatRequest{Text: "ping"}))
	var ev protocol.ChatEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, protocol.ChatEvent{Type: protocol.MsgTextChunk, Content: "ping"}, ev)
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, protocol.MsgDone, ev.Type)
}
