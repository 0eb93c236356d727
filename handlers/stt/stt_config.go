package stt

import "midas/utils/profiler"

type STTConfig struct {
	DefaultFilename string  // Used when the upload carries no filename; the extension tells the server the container.
	GoodBelowMs     float64 // Transcriptions faster than this are logged as good.
	WarnBelowMs     float64 // Transcriptions faster than this (and not good) are logged as warning, slower ones as poor.
}

func DefaultConfig() STTConfig {
	return STTConfig{
		DefaultFilename: "recording.wav",
		GoodBelowMs:     profiler.TranscribeGoodBelowMs,
		WarnBelowMs:     profiler.TranscribeWarnBelowMs,
	}
}
