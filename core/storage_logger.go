package core

import (
	"context"
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

type requestLoggerKey struct{}

// ContextWithLogger returns a context carrying a request- or turn-scoped logger.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey{}, logger)
}

// LoggerFromContext returns the scoped logger, falling back to the global one.
func LoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(requestLoggerKey{}).(*Logger); ok && l != nil {
		return l
	}
	return GetLogger()
}

// LogEntry is a single JSON log line.
type LogEntry struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// RotationConfig configures the rotating log file.
type RotationConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewRotatingWriter returns a size-rotated file writer.
func NewRotatingWriter(cfg RotationConfig) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// NewTeeLogger fans every entry out to all given loggers' handlers.
// Children created via With() inherit this behaviour.
func NewTeeLogger(level Level, loggers ...*Logger) *Logger {
	return NewLogger(level, func(lvl Level, msg string, attrs map[string]any) {
		for _, l := range loggers {
			if l.handlerFunc != nil && lvl >= l.minLevel {
				l.handlerFunc(lvl, msg, attrs)
			}
		}
	})
}
