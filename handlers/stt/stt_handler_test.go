package stt

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/core"
	"midas/store"
	"midas/utils/audio"
)

type fakeSTT struct {
	received []byte
	filename string
	text     string
	err      error
}

func (f *fakeSTT) Init(context.Context) error { return nil }
func (f *fakeSTT) Cleanup() error             { return nil }
func (f *fakeSTT) Reset() error               { return nil }
func (f *fakeSTT) Transcribe(_ context.Context, r io.Reader, filename string) (string, error) {
	f.received, _ = io.ReadAll(r)
	f.filename = filename
	return f.text, f.err
}

type settingsFunc func() store.Values

func (f settingsFunc) Get() store.Values { return f() }

type stageRecorder map[string]float64

func (r stageRecorder) ObserveStage(stage string, ms float64) { r[stage] = ms }

func quietLogger() *core.Logger {
	return core.NewLogger(core.LevelError, func(core.Level, string, map[string]any) {})
}

func newTestTranscriber(svc *fakeSTT, vad bool) *Transcriber {
	values := store.DefaultValues()
	values.VADFilter = vad
	values.VADThreshold = 100
	return NewTranscriber(svc, settingsFunc(func() store.Values { return values }), DefaultConfig(), quietLogger())
}

// speechWithGap is 100ms tone, 500ms silence, 100ms tone at 16 kHz.
func speechWithGap() []int16 {
	const rate = 16000
	var pcm []int16
	tone := func(n int) {
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				pcm = append(pcm, 3000)
			} else {
				pcm = append(pcm, -3000)
			}
		}
	}
	tone(rate / 10)
	pcm = append(pcm, make([]int16, rate/2)...)
	tone(rate / 10)
	return pcm
}

func TestTranscribeTrimsSilenceWhenEnabled(t *testing.T) {
	svc := &fakeSTT{text: "  hello world \n"}
	rec := stageRecorder{}
	tr := newTestTranscriber(svc, true).WithRecorder(rec)

	input := audio.EncodePCM16WAV(speechWithGap(), 16000)
	text, err := tr.Transcribe(context.Background(), input, "clip.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "clip.wav", svc.filename)

	sent, err := audio.DecodeWAV(svc.received)
	require.NoError(t, err)
	assert.Equal(t, 16000, sent.SampleRate)
	assert.Less(t, len(sent.Samples), len(speechWithGap()))
	assert.Contains(t, rec, "stt")
}

func TestTranscribeKeepsAudioWhenVADDisabled(t *testing.T) {
	svc := &fakeSTT{text: "ok"}
	tr := newTestTranscriber(svc, false)

	input := audio.EncodePCM16WAV(speechWithGap(), 16000)
	_, err := tr.Transcribe(context.Background(), input, "")
	require.NoError(t, err)
	assert.Equal(t, input, svc.received)
	assert.Equal(t, "recording.wav", svc.filename)
}

func TestTranscribeForwardsNonWAV(t *testing.T) {
	svc := &fakeSTT{text: "ok"}
	tr := newTestTranscriber(svc, true)

	webm := []byte("\x1aE\xdf\xa3 not a wav")
	_, err := tr.Transcribe(context.Background(), webm, "clip.webm")
	require.NoError(t, err)
	assert.Equal(t, webm, svc.received)
	assert.Equal(t, "clip.webm", svc.filename)
}

func TestTranscribeErrors(t *testing.T) {
	tr := newTestTranscriber(&fakeSTT{}, false)
	_, err := tr.Transcribe(context.Background(), nil, "a.wav")
	assert.ErrorIs(t, err, ErrEmptyAudio)

	boom := errors.New("whisper unavailable")
	tr = newTestTranscriber(&fakeSTT{err: boom}, false)
	_, err = tr.Transcribe(context.Background(), []byte("data"), "a.webm")
	assert.ErrorIs(t, err, boom)
}
