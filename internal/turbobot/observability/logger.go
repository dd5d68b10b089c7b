// Package observability provides structured logging helpers for turbobot.
//
// It wraps log/slog with trace ID propagation so every log line emitted while
// a command is handled carries the trace context, and bridges the same level
// and format choice onto the zerolog logger used by the Matrix SDK.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bdobrica/turbobot/common/trace"
)

// ParseLevel maps "debug", "warn" and "error" to their slog level; anything
// else is info.
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

// Setup configures the global slog logger according to the provided level and
// format strings (e.g. level="info", format="json").
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithTrace returns a child logger that always includes the trace_id from ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return slog.Default()
	}
	return slog.With("trace_id", traceID)
}

// Zerolog returns a zerolog logger with the same level and format as Setup,
// tagged with component. Text format uses zerolog's console writer.
func Zerolog(w io.Writer, level, format, component string) zerolog.Logger {
	var zl zerolog.Level
	switch ParseLevel(level) {
	case slog.LevelDebug:
		zl = zerolog.DebugLevel
	case slog.LevelWarn:
		zl = zerolog.WarnLevel
	case slog.LevelError:
		zl = zerolog.ErrorLevel
	default:
		zl = zerolog.InfoLevel
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(zl).With().Timestamp().Str("component", component).Logger()
}
