// Package logutil builds the process logger and holds small logging helpers shared by all components.
package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values map to info.
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

// New returns a logr.Logger writing JSON records to w at the given level.
func New(w io.Writer, level string) logr.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	return logr.FromSlogHandler(h)
}

// NewTimingLogger returns a closure that logs msg at V(1) with the elapsed duration when called.
func NewTimingLogger(logger logr.Logger, start time.Time, msg string, initialFields ...any) func() {
	return func() {
		fields := append(initialFields, "duration", time.Since(start).String())
		logger.V(1).Info(msg, fields...)
	}
}

// LogAndWrapErr logs an error with context fields and wraps it with a message.
// It returns a wrapped error (with %w) so errors.Is / errors.As still work.
func LogAndWrapErr(logger logr.Logger, msg string, err error, fields ...any) error {
	if err == nil {
		return nil
	}
	logger.Error(err, msg, fields...)
	return fmt.Errorf("%s: %w", msg, err)
}
