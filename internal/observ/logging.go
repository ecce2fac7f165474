package observ

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = newLogger(os.Stdout, zerolog.InfoLevel, false)
)

func newLogger(out io.Writer, level zerolog.Level, pretty bool) zerolog.Logger {
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Logger()
}

// Setup replaces the process logger. Level is one of debug, info, warn, error.
func Setup(level string, pretty bool) {
	SetOutput(os.Stdout, level, pretty)
}

// SetOutput is Setup with an explicit writer; tests use it to capture lines.
func SetOutput(out io.Writer, level string, pretty bool) {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	logMu.Lock()
	logger = newLogger(out, lvl, pretty)
	logMu.Unlock()
}

func current() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func emit(e *zerolog.Event, event string, kv map[string]any) {
	e.Str("ts", time.Now().UTC().Format(time.RFC3339Nano)).
		Fields(kv).
		Str("event", event).
		Send()
}

// Log writes one structured line at info level.
func Log(event string, kv map[string]any) {
	l := current()
	emit(l.Info(), event, kv)
}

func Debug(event string, kv map[string]any) {
	l := current()
	emit(l.Debug(), event, kv)
}

func Warn(event string, kv map[string]any) {
	l := current()
	emit(l.Warn(), event, kv)
}

// Error logs at error level with the error attached under "error".
func Error(event string, err error, kv map[string]any) {
	l := current()
	emit(l.Error().Err(err), event, kv)
}
