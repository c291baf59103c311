package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a structured logger writing to stdout. Development uses the
// text handler; everything else emits JSON.
func New(level string, dev bool) *slog.Logger {
	return NewWithWriter(os.Stdout, level, dev)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string, dev bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if dev {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
