// Package export is the checkpointed write path: bulk row loads, the
// existence lookup used after a resume, and the append-only checkpoint log.
//
// A Session bundles these over one store connection. Run one Session per
// monitored system (or share one across systems; ids are cached per system).
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/eventlog-export-service/internal/logging"
	"github.com/PratikDhanave/eventlog-export-service/internal/metrics"
	"github.com/PratikDhanave/eventlog-export-service/internal/models"
	"github.com/PratikDhanave/eventlog-export-service/internal/store"
	"github.com/PratikDhanave/eventlog-export-service/internal/translate"
)

// ErrEmptySystem is returned when an operation is called without a system name.
var ErrEmptySystem = errors.New("information system name required")

// Opener acquires a store connection.
type Opener func(ctx context.Context) (store.Backend, error)

// Session is the query surface of the exporter over a single connection.
type Session struct {
	id      string
	backend store.Backend
	logger  *slog.Logger

	writer      *BatchWriter
	dedup       *Dedup
	checkpoints *CheckpointStore
}

// NewSession wraps an open backend. The Session takes ownership of it.
func NewSession(backend store.Backend, translator *translate.Translator, logger *slog.Logger) *Session {
	if translator == nil {
		translator = translate.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:          id,
		backend:     backend,
		logger:      logger.With(logging.SessionID(id)),
		writer:      NewBatchWriter(backend, translator),
		dedup:       NewDedup(backend),
		checkpoints: NewCheckpointStore(backend, NewIDAllocator(backend)),
	}
}

// Open acquires a connection and provisions the schema. A schema failure
// closes the connection and is returned; the exporter cannot run without it.
func Open(ctx context.Context, open Opener, translator *translate.Translator, logger *slog.Logger) (*Session, error) {
	backend, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	if err := backend.EnsureSchema(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return NewSession(backend, translator, logger), nil
}

// WithSession opens a Session, runs fn and closes the Session on every path.
func WithSession(ctx context.Context, open Opener, translator *translate.Translator, logger *slog.Logger, fn func(*Session) error) (err error) {
	s, err := Open(ctx, open, translator, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close store: %w", cerr))
		}
	}()
	return fn(s)
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Ping checks the store connection.
func (s *Session) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the store connection.
func (s *Session) Close() error {
	return s.backend.Close()
}

// Write translates and bulk-loads records for system.
func (s *Session) Write(ctx context.Context, system string, records []models.SourceRecord) error {
	if system == "" {
		return ErrEmptySystem
	}
	if err := s.writer.Write(ctx, system, records); err != nil {
		s.logger.ErrorContext(ctx, "Bulk write failed",
			logging.System(system),
			logging.BatchSize(len(records)),
			logging.Error(err),
		)
		return err
	}
	s.logger.DebugContext(ctx, "Bulk write completed",
		logging.System(system),
		logging.BatchSize(len(records)),
	)
	return nil
}

// MaxPersistedPeriod returns the newest stored Period for system.
func (s *Session) MaxPersistedPeriod(ctx context.Context, system string) (time.Time, error) {
	if system == "" {
		return time.Time{}, ErrEmptySystem
	}
	return s.writer.MaxPersistedPeriod(ctx, system)
}

// Exists reports whether the row (system, rowID, period) is stored.
func (s *Session) Exists(ctx context.Context, system string, rowID int64, period time.Time) (bool, error) {
	if system == "" {
		return false, ErrEmptySystem
	}
	return s.dedup.Exists(ctx, system, rowID, period)
}

// LastPosition returns where the last export of system stopped, or nil.
func (s *Session) LastPosition(ctx context.Context, system string) (*models.Position, error) {
	if system == "" {
		return nil, ErrEmptySystem
	}
	return s.checkpoints.LastPosition(ctx, system)
}

// SavePosition appends a checkpoint for system and returns its id.
func (s *Session) SavePosition(ctx context.Context, system string, file models.FileInfo, pos models.Position) (int64, error) {
	if system == "" {
		return 0, ErrEmptySystem
	}
	id, err := s.checkpoints.SavePosition(ctx, system, file, pos)
	if err != nil {
		s.logger.ErrorContext(ctx, "Checkpoint save failed",
			logging.System(system),
			logging.Error(err),
		)
		return 0, err
	}
	metrics.CheckpointsSaved.WithLabelValues(system).Inc()
	s.logger.DebugContext(ctx, "Checkpoint saved",
		logging.System(system),
		logging.CheckpointID(id),
		slog.Int64("event_number", pos.EventNumber),
		slog.Int64("stream_position", pos.StreamPosition),
	)
	return id, nil
}
