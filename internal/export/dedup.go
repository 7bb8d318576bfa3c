package export

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/eventlog-export-service/internal/metrics"
	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// ExistenceBackend is the part of store.Backend the dedup lookup uses.
type ExistenceBackend interface {
	RowExists(ctx context.Context, system string, id int64, period time.Time) (bool, error)
}

// Dedup answers whether a row is already stored. It costs one query per
// call and is meant for the overlap window after a resume.
type Dedup struct {
	backend ExistenceBackend
}

// NewDedup returns a Dedup over backend.
func NewDedup(backend ExistenceBackend) *Dedup {
	return &Dedup{backend: backend}
}

// Exists reports whether (system, rowID, period) is stored. period is
// normalized the same way the translator normalizes it.
func (d *Dedup) Exists(ctx context.Context, system string, rowID int64, period time.Time) (bool, error) {
	metrics.DedupLookups.WithLabelValues(system).Inc()

	ok, err := d.backend.RowExists(ctx, system, rowID, models.NormalizePeriod(period))
	if err != nil {
		return false, fmt.Errorf("failed to check row %d at %s for %q: %w",
			rowID, period.Format(time.RFC3339), system, err)
	}
	return ok, nil
}
