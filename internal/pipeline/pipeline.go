// Package pipeline drives an export run for one information system:
// resume from the last checkpoint, skip rows that are already stored,
// bulk-load batches and checkpoint after each one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/PratikDhanave/eventlog-export-service/internal/lock"
	"github.com/PratikDhanave/eventlog-export-service/internal/logging"
	"github.com/PratikDhanave/eventlog-export-service/internal/metrics"
	"github.com/PratikDhanave/eventlog-export-service/internal/models"
	"github.com/PratikDhanave/eventlog-export-service/internal/source"
)

// DefaultBatchSize amortizes per-load overhead on a columnar store.
const DefaultBatchSize = 100000

// DefaultRefreshEvery is how many records are read between lease refreshes.
// Each record in the overlap window costs a store lookup, so a full batch
// can outlast the lease if it is only refreshed on commit.
const DefaultRefreshEvery = 1000

// Exporter is the query surface the pipeline drives. *export.Session
// implements it.
type Exporter interface {
	MaxPersistedPeriod(ctx context.Context, system string) (time.Time, error)
	Exists(ctx context.Context, system string, rowID int64, period time.Time) (bool, error)
	LastPosition(ctx context.Context, system string) (*models.Position, error)
	SavePosition(ctx context.Context, system string, file models.FileInfo, pos models.Position) (int64, error)
	Write(ctx context.Context, system string, records []models.SourceRecord) error
}

// Stats summarizes a run.
type Stats struct {
	Read    int
	Written int
	Skipped int
	Batches int
}

// Pipeline exports one system from a source into the store.
type Pipeline struct {
	System    string
	Source    source.Reader
	Exporter  Exporter
	Locker    lock.Locker
	BatchSize int
	Logger    *slog.Logger

	// RefreshEvery is the number of records read between lease refreshes.
	RefreshEvery int
}

// Run exports until the source is exhausted or ctx is cancelled.
//
// Cancellation stops new batches only: a batch whose write has started is
// finished and checkpointed before Run returns ctx.Err().
func (p *Pipeline) Run(ctx context.Context) (stats Stats, err error) {
	logger := p.logger()
	locker := p.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}

	lease, err := locker.Acquire(ctx, p.System)
	if err != nil {
		return stats, err
	}
	defer func() {
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Warn("Failed to release lock", logging.Error(rerr))
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RunsTotal.WithLabelValues(p.System, status).Inc()
	}()

	pos, err := p.Exporter.LastPosition(ctx, p.System)
	if err != nil {
		return stats, err
	}
	if pos != nil {
		if err := p.Source.Seek(*pos); err != nil {
			return stats, fmt.Errorf("failed to resume %q at event %d: %w", p.System, pos.EventNumber, err)
		}
		logger.Info("Resuming export",
			slog.Int64("event_number", pos.EventNumber),
			slog.Int64("stream_position", pos.StreamPosition),
		)
	} else {
		logger.Info("Starting export from the beginning of the log")
	}

	// Rows at or before this period may already be stored even though the
	// checkpoint does not cover them (a save that failed after a write).
	overlapUntil, err := p.Exporter.MaxPersistedPeriod(ctx, p.System)
	if err != nil {
		return stats, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		readBefore := stats.Read
		batch, eof, err := p.readBatch(ctx, overlapUntil, lease, &stats)
		if err != nil {
			return stats, err
		}

		// Nothing consumed means the position has not moved either.
		if stats.Read > readBefore {
			if err := p.commit(context.WithoutCancel(ctx), batch, lease, &stats); err != nil {
				return stats, err
			}
		}

		if eof {
			logger.Info("Export finished",
				slog.Int("read", stats.Read),
				slog.Int("written", stats.Written),
				slog.Int("skipped", stats.Skipped),
				slog.Int("batches", stats.Batches),
			)
			return stats, nil
		}
	}
}

// readBatch reads up to BatchSize new records. Records inside the overlap
// window are checked against the store and dropped if already present.
// The lease is refreshed every RefreshEvery records read.
func (p *Pipeline) readBatch(ctx context.Context, overlapUntil time.Time, lease lock.Lease, stats *Stats) ([]models.SourceRecord, bool, error) {
	size := p.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	refreshEvery := p.RefreshEvery
	if refreshEvery <= 0 {
		refreshEvery = DefaultRefreshEvery
	}

	batch := make([]models.SourceRecord, 0, min(size, 4096))
	for len(batch) < size {
		rec, err := p.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return batch, true, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read source for %q: %w", p.System, err)
		}
		stats.Read++

		if stats.Read%refreshEvery == 0 {
			if err := lease.Refresh(ctx); err != nil {
				return nil, false, err
			}
		}

		if !models.NormalizePeriod(rec.Period).After(overlapUntil) {
			exists, err := p.Exporter.Exists(ctx, p.System, rec.RowID, rec.Period)
			if err != nil {
				return nil, false, err
			}
			if exists {
				stats.Skipped++
				metrics.DuplicatesSkipped.WithLabelValues(p.System).Inc()
				continue
			}
		}
		batch = append(batch, rec)
	}
	return batch, false, nil
}

// commit writes the batch, then checkpoints the source position. Nothing is
// checkpointed when the write fails. A batch made entirely of skipped rows
// still moves the checkpoint forward.
func (p *Pipeline) commit(ctx context.Context, batch []models.SourceRecord, lease lock.Lease, stats *Stats) error {
	if err := lease.Refresh(ctx); err != nil {
		return err
	}

	if err := p.Exporter.Write(ctx, p.System, batch); err != nil {
		return err
	}
	stats.Written += len(batch)

	pos := p.Source.Position()
	id, err := p.Exporter.SavePosition(ctx, p.System, p.Source.FileInfo(), pos)
	if err != nil {
		return err
	}
	stats.Batches++

	p.logger().Info("Batch committed",
		logging.BatchSize(len(batch)),
		logging.CheckpointID(id),
		slog.Int64("event_number", pos.EventNumber),
	)
	return nil
}

func (p *Pipeline) logger() *slog.Logger {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(logging.System(p.System))
}
