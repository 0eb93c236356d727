package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"midas/core"
	"midas/store"
	"midas/utils/audio"
	"midas/utils/profiler"
)

var ErrEmptyAudio = errors.New("stt: empty audio upload")

// SettingsSource provides the stored user settings.
type SettingsSource interface {
	Get() store.Values
}

// Recorder observes transcription latency.
type Recorder interface {
	ObserveStage(stage string, ms float64)
}

// Transcriber prepares uploaded recordings and passes them to the STT service.
// WAV uploads are decoded (PCM, A-law or µ-law), optionally silence-trimmed,
// and re-encoded as 16-bit PCM. Anything else is forwarded untouched.
type Transcriber struct {
	service  core.STTService
	settings SettingsSource
	config   STTConfig
	metrics  Recorder
	logger   *core.Logger
}

func NewTranscriber(service core.STTService, settings SettingsSource, config STTConfig, logger *core.Logger) *Transcriber {
	return &Transcriber{
		service:  service,
		settings: settings,
		config:   config,
		logger:   logger.With(map[string]any{"component": "stt"}),
	}
}

// WithRecorder registers a metrics recorder. Returns the transcriber to allow chaining.
func (t *Transcriber) WithRecorder(r Recorder) *Transcriber {
	t.metrics = r
	return t
}

// Transcribe returns the recognized text of an uploaded recording.
func (t *Transcriber) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyAudio
	}
	if filename == "" {
		filename = t.config.DefaultFilename
	}

	payload, name := t.prepare(data, filename)

	prof := profiler.New()
	prof.Start(profiler.StageTranscription)
	text, err := t.service.Transcribe(ctx, bytes.NewReader(payload), name)
	ms := prof.Stop(profiler.StageTranscription)
	if err != nil {
		return "", fmt.Errorf("stt: transcribe: %w", err)
	}
	text = strings.TrimSpace(text)

	if t.metrics != nil {
		t.metrics.ObserveStage(profiler.StageTranscription, ms)
	}
	t.logger.With(map[string]any{
		"ms":    int64(ms + 0.5),
		"grade": profiler.GradeWithin(ms, t.config.GoodBelowMs, t.config.WarnBelowMs),
		"chars": len(text),
	}).Info("transcription finished")
	return text, nil
}

// prepare normalizes WAV uploads to mono 16-bit PCM.
func (t *Transcriber) prepare(data []byte, filename string) ([]byte, string) {
	wav, err := audio.DecodeWAV(data)
	if err != nil {
		if !errors.Is(err, audio.ErrNotWAV) {
			t.logger.With(map[string]any{"error": err}).Warn("forwarding undecodable wav upload as-is")
		}
		return data, filename
	}

	samples := wav.Samples
	values := t.settings.Get()
	if values.VADFilter {
		before := len(samples)
		samples = audio.TrimSilence(samples, wav.SampleRate, values.VADThreshold)
		t.logger.Debug("silence trimmed", "before", before, "after", len(samples))
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".wav") {
		filename += ".wav"
	}
	return audio.EncodePCM16WAV(samples, wav.SampleRate), filename
}
