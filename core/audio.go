package core

import (
	"context"
	"io"
)

// AudioChunk is mono floating-point audio in [-1, 1].
type AudioChunk struct {
	Samples    []float32
	SampleRate int
}

func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 {
		return 0.0
	}
	return float64(len(ac.Samples)) / float64(ac.SampleRate)
}

// TTSService synthesizes speech for a piece of text.
type TTSService interface {
	IService
	Synthesize(ctx context.Context, text, voice string, sampleRate int) (AudioChunk, error)
}

// STTService transcribes an uploaded audio file.
type STTService interface {
	IService
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}
