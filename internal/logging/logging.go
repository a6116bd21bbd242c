// Package logging carries a structured logger through contexts and maps
// engine errors to stable logging labels.
package logging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/example/meeting-scheduler/internal/interval"
	"github.com/example/meeting-scheduler/internal/persistence"
	"github.com/example/meeting-scheduler/internal/recurrence"
)

type contextKey struct{}

// New builds a JSON slog logger at the named level. Unknown level names
// fall back to info.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// ErrorKind maps engine errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, interval.ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, recurrence.ErrUnknownFrequency):
		return "unknown_frequency"
	case errors.Is(err, recurrence.ErrInvalidSpec):
		return "invalid_recurrence_spec"
	case errors.Is(err, recurrence.ErrCronInexpressible):
		return "cron_inexpressible"
	case errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	}
	return "unexpected"
}
