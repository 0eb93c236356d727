package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"midas/core"
	chatevents "midas/events/chat"
	"midas/protocol"
	"midas/store"
	"midas/utils/audio"
	"midas/utils/profiler"
	"midas/utils/text"
)

var ErrEmptyText = errors.New("chat: empty user text")

// Retriever supplies knowledge context for a query.
type Retriever interface {
	Retrieve(query string, topK int) string
}

// HistoryStore is the conversation log as seen by a turn.
type HistoryStore interface {
	Recent(n int) []store.Exchange
	Add(user, assistant string)
}

// SettingsSource provides the stored user settings.
type SettingsSource interface {
	Get() store.Values
}

// Emitter delivers turn events to the client in order. An error means the
// client is gone and the turn must stop.
type Emitter interface {
	Emit(ctx context.Context, packet *core.EventPacket) error
}

// Recorder observes pipeline metrics.
type Recorder interface {
	ObserveStage(stage string, ms float64)
	CountTurn(status string)
	CountChunk(kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, float64) {}
func (nopRecorder) CountTurn(string)             {}
func (nopRecorder) CountChunk(string)            {}

// ChatHandler runs chat turns: retrieve, prompt, generate, then flush speakable
// chunks as text and audio events.
type ChatHandler struct {
	models    *core.Models
	retriever Retriever
	history   HistoryStore
	settings  SettingsSource
	config    ChatConfig
	metrics   Recorder
	logger    *core.Logger
}

// NewChatHandler creates a chat handler.
// Use DefaultConfig() to get a config with the stock heuristics.
func NewChatHandler(
	models *core.Models,
	retriever Retriever,
	history HistoryStore,
	settings SettingsSource,
	config ChatConfig,
	logger *core.Logger,
) *ChatHandler {
	return &ChatHandler{
		models:    models,
		retriever: retriever,
		history:   history,
		settings:  settings,
		config:    config,
		metrics:   nopRecorder{},
		logger:    logger.With(map[string]any{"component": "chat"}),
	}
}

// WithRecorder registers a metrics recorder. Returns the handler to allow chaining.
func (h *ChatHandler) WithRecorder(r Recorder) *ChatHandler {
	if r != nil {
		h.metrics = r
	}
	return h
}

// turn is the per-request state of one chat exchange.
type turn struct {
	id         string
	userText   string
	voice      string
	sampleRate int
	params     core.GenerationParams
	emitter    Emitter
	profiler   *profiler.Profiler
	logger     *core.Logger
	synthTimed bool
}

// Run executes one turn. Events already emitted stay delivered when it fails,
// and history is only written for turns that complete.
func (h *ChatHandler) Run(ctx context.Context, req protocol.ChatRequest, emitter Emitter) error {
	userText := strings.TrimSpace(req.Text)
	if userText == "" {
		return ErrEmptyText
	}

	t, err := h.newTurn(req, userText, emitter)
	if err != nil {
		h.metrics.CountTurn("rejected")
		return err
	}
	ctx = core.ContextWithLogger(ctx, t.logger)

	fullText, err := h.generate(ctx, t)
	if err != nil {
		h.metrics.CountTurn("failed")
		t.logger.With(map[string]any{"error": err}).Error("chat turn aborted")
		return err
	}

	if err := t.emit(ctx, &chatevents.TurnCompletedEvent{FullText: fullText}); err != nil {
		h.metrics.CountTurn("failed")
		return err
	}

	h.history.Add(userText, strings.TrimSpace(fullText))
	h.metrics.CountTurn("completed")

	for _, e := range t.profiler.Report(t.logger) {
		h.metrics.ObserveStage(e.Name, e.Ms)
	}
	t.logger.With(map[string]any{"response": text.Truncate(fullText, 80)}).Info("chat turn completed")
	return nil
}

func (h *ChatHandler) newTurn(req protocol.ChatRequest, userText string, emitter Emitter) (*turn, error) {
	values, err := h.settings.Get().Merge(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("chat: request settings: %w", err)
	}
	voice := req.Voice
	if voice == "" {
		voice = values.Voice
	}

	id := uuid.NewString()
	return &turn{
		id:         id,
		userText:   userText,
		voice:      voice,
		sampleRate: values.SampleRate,
		params: core.GenerationParams{
			Temperature:   float32(values.Temperature),
			TopP:          float32(values.TopP),
			TopK:          values.TopK,
			MaxTokens:     values.MaxTokens,
			RepeatPenalty: float32(values.RepeatPenalty),
			ContextWindow: values.ContextWindow,
			Stop:          []string{RoleEndMarker},
		},
		emitter:  emitter,
		profiler: profiler.New(),
		logger:   h.logger.With(map[string]any{"turn_id": id}),
	}, nil
}

func (h *ChatHandler) buildPrompt(t *turn) string {
	knowledge := h.retriever.Retrieve(t.userText, h.config.ContextTopK)
	if knowledge != "" {
		t.logger.With(map[string]any{"chars": len(knowledge)}).Info("knowledge context found")
	}
	recent := h.history.Recent(h.config.HistoryTurns)
	t.logger.With(map[string]any{"history_turns": len(recent)}).Info("prompt built")
	return RenderChatML(buildContext(h.config.SystemPrompt, knowledge, recent, t.userText))
}

// generate folds the token stream into flushed chunks and returns the full
// generated text.
func (h *ChatHandler) generate(ctx context.Context, t *turn) (string, error) {
	prompt := h.buildPrompt(t)

	t.profiler.Start(profiler.StageLLMFirstToken)
	stream, err := h.models.LLM.Generate(ctx, prompt, t.params)
	if err != nil {
		return "", fmt.Errorf("chat: start generation: %w", err)
	}
	defer stream.Close()

	var (
		full   strings.Builder
		chunks = newChunker(h.config)
		tokens int
	)
	for t.params.MaxTokens <= 0 || tokens < t.params.MaxTokens {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("chat: generation: %w", err)
		}
		if tokens == 0 {
			t.profiler.Stop(profiler.StageLLMFirstToken)
		}
		tokens++
		full.WriteString(token)

		if ready, ok := chunks.Push(token); ok {
			if err := h.flush(ctx, t, ready, h.config.ChunkSuffix); err != nil {
				return "", err
			}
		}
	}

	if rest, ok := chunks.Drain(); ok {
		if err := h.flush(ctx, t, rest, ""); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

// flush emits the cleaned chunk as text, then its synthesized audio.
// Chunks that are empty after stripping annotations emit nothing.
func (h *ChatHandler) flush(ctx context.Context, t *turn, raw, suffix string) error {
	clean := text.StripAnnotations(raw)
	if clean == "" {
		return nil
	}

	if err := t.emit(ctx, &chatevents.TextChunkEvent{Content: clean + suffix}); err != nil {
		return err
	}
	h.metrics.CountChunk("text")

	first := !t.synthTimed
	if first {
		t.profiler.Start(profiler.StageTTSFirstSynth)
	}
	speech, err := h.models.TTS.Synthesize(ctx, clean, t.voice, t.sampleRate)
	if err != nil {
		return fmt.Errorf("chat: synthesize: %w", err)
	}
	if first {
		t.profiler.Stop(profiler.StageTTSFirstSynth)
		t.synthTimed = true
	}

	rate := speech.SampleRate
	if rate == 0 {
		rate = t.sampleRate
	}
	if err := t.emit(ctx, &chatevents.AudioOutputEvent{
		WAV:        audio.EncodeWAV(speech.Samples, rate),
		SampleRate: rate,
	}); err != nil {
		return err
	}
	h.metrics.CountChunk("audio")
	return nil
}

func (t *turn) emit(ctx context.Context, event core.IEvent) error {
	if err := t.emitter.Emit(ctx, core.NewEventPacket(event, t.id, "ChatHandler")); err != nil {
		return fmt.Errorf("chat: emit %s: %w", event.GetId(), err)
	}
	return nil
}
