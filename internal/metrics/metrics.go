package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Write path
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_export_rows_written_total",
			Help: "Total number of rows bulk-loaded into the store",
		},
		[]string{"system"},
	)

	BulkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventlog_export_bulk_write_duration_seconds",
			Help:    "Duration of bulk loads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"system"},
	)

	BulkWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_export_bulk_write_errors_total",
			Help: "Total number of rejected bulk loads",
		},
		[]string{"system"},
	)

	// Checkpoints
	CheckpointsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_export_checkpoints_saved_total",
			Help: "Total number of checkpoints appended",
		},
		[]string{"system"},
	)

	// Resume
	DedupLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_export_dedup_lookups_total",
			Help: "Total number of row existence lookups",
		},
		[]string{"system"},
	)

	DuplicatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_export_duplicates_skipped_total",
			Help: "Total number of source records skipped because they were already stored",
		},
		[]string{"system"},
	)

	// Runs
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlog_export_runs_total",
			Help: "Total number of export runs by outcome",
		},
		[]string{"system", "status"},
	)
)
