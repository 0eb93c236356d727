package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

var loggerInstance = NewConsoleLogger(os.Stdout, LevelInfo)

// SetLogger replaces the process-wide logger.
func SetLogger(logger *Logger) {
	loggerInstance = logger
}

// GetLogger returns the process-wide logger.
func GetLogger() *Logger {
	return loggerInstance
}

type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel maps a config string to a Level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// HandlerFunc receives every entry that passes the logger's level.
type HandlerFunc func(level Level, msg string, attrs map[string]any)

type Logger struct {
	handlerFunc HandlerFunc
	minLevel    Level
	attrs       map[string]any
}

func NewLogger(level Level, handler HandlerFunc) *Logger {
	return &Logger{
		handlerFunc: handler,
		minLevel:    level,
		attrs:       make(map[string]any),
	}
}

// NewConsoleLogger writes human readable lines: "<ts> [LEVEL] msg | k=v ...".
func NewConsoleLogger(w io.Writer, level Level) *Logger {
	var mu sync.Mutex
	return NewLogger(level, func(lvl Level, msg string, attrs map[string]any) {
		line := fmt.Sprintf("%s [%s] %s%s\n", time.Now().Format(time.RFC3339), lvl, msg, formatAttrs(attrs))
		mu.Lock()
		defer mu.Unlock()
		io.WriteString(w, line)
	})
}

// NewJSONLogger writes one JSON object per entry, suitable for a rotating file.
func NewJSONLogger(w io.Writer, level Level) *Logger {
	var mu sync.Mutex
	return NewLogger(level, func(lvl Level, msg string, attrs map[string]any) {
		data, err := sonic.Marshal(LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Level:     lvl.String(),
			Message:   msg,
			Attrs:     stringifyErrors(attrs),
		})
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		w.Write(append(data, '\n'))
	})
}

func formatAttrs(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(" |")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, attrs[k])
	}
	return b.String()
}

// error values marshal to {} otherwise.
func stringifyErrors(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if l == nil || l.handlerFunc == nil || level < l.minLevel {
		return
	}
	if len(args) > 0 {
		// Detect slog-style key-value pairs: even number of args where
		// odd-positioned args (keys) are strings.
		if isKeyValuePairs(args) {
			attrs := make(map[string]any, len(l.attrs)+len(args)/2)
			for k, v := range l.attrs {
				attrs[k] = v
			}
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				attrs[key] = args[i+1]
			}
			l.handlerFunc(level, msg, attrs)
			return
		}
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level, msg, l.attrs)
}

func isKeyValuePairs(args []any) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Trace(msg string, args ...any)     { l.log(LevelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)     { l.log(LevelDebug, msg, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(msg string, args ...any)      { l.log(LevelInfo, msg, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(msg string, args ...any)      { l.log(LevelWarn, msg, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(msg string, args ...any)     { l.log(LevelError, msg, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// With returns a child logger carrying the merged attributes.
func (l *Logger) With(attrs map[string]any) *Logger {
	combined := make(map[string]any, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combined[k] = v
	}
	for k, v := range attrs {
		combined[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		minLevel:    l.minLevel,
		attrs:       combined,
	}
}

// Level reports the minimum level this logger emits.
func (l *Logger) Level() Level {
	return l.minLevel
}
