// Package logging builds the process logger on log/slog and provides the
// attribute helpers used across the exporter.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Common field names for consistent logging.
const (
	FieldService      = "service"
	FieldSystem       = "information_system"
	FieldSessionID    = "session_id"
	FieldBatchSize    = "batch_size"
	FieldCheckpointID = "checkpoint_id"
	FieldError        = "error"
)

// New creates a logger writing to stdout.
// format can be "json" or "text" (default is json).
func New(level slog.Level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location for errors and above
		AddSource: level <= slog.LevelError,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo for invalid values.
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

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// System returns a slog attribute for the monitored information system.
func System(name string) slog.Attr {
	return slog.String(FieldSystem, name)
}

// SessionID returns a slog attribute for an export session.
func SessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

// BatchSize returns a slog attribute for the number of records in a batch.
func BatchSize(n int) slog.Attr {
	return slog.Int(FieldBatchSize, n)
}

// CheckpointID returns a slog attribute for a checkpoint id.
func CheckpointID(id int64) slog.Attr {
	return slog.Int64(FieldCheckpointID, id)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
