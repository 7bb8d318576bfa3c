package export

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/eventlog-export-service/internal/metrics"
	"github.com/PratikDhanave/eventlog-export-service/internal/models"
	"github.com/PratikDhanave/eventlog-export-service/internal/translate"
)

// RowBackend is the part of store.Backend the batch writer uses.
type RowBackend interface {
	InsertRows(ctx context.Context, rows []models.EventRow) error
	MaxPeriod(ctx context.Context, system string) (time.Time, error)
}

// BatchWriter translates records and bulk-loads them.
type BatchWriter struct {
	backend    RowBackend
	translator *translate.Translator
}

// NewBatchWriter returns a writer over backend.
func NewBatchWriter(backend RowBackend, translator *translate.Translator) *BatchWriter {
	return &BatchWriter{backend: backend, translator: translator}
}

// Write translates records and stores them in one bulk load. It blocks until
// the load finishes. On error none of the records should be considered stored
// and the checkpoint must not move.
func (w *BatchWriter) Write(ctx context.Context, system string, records []models.SourceRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := w.translator.Rows(system, records)

	start := time.Now()
	err := w.backend.InsertRows(ctx, rows)
	metrics.BulkWriteDuration.WithLabelValues(system).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BulkWriteErrors.WithLabelValues(system).Inc()
		return fmt.Errorf("failed to write %d rows for %q: %w", len(rows), system, err)
	}

	metrics.RowsWritten.WithLabelValues(system).Add(float64(len(rows)))
	return nil
}

// MaxPersistedPeriod returns the newest stored Period for system, or
// models.MinPeriod when nothing is stored.
func (w *BatchWriter) MaxPersistedPeriod(ctx context.Context, system string) (time.Time, error) {
	t, err := w.backend.MaxPeriod(ctx, system)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read max period for %q: %w", system, err)
	}
	return t, nil
}
