// Package store persists event rows and log file checkpoints.
//
// Three backends implement Backend: ClickHouse (the production target),
// Postgres and SQLite. Each owns one connection for its lifetime and is
// released with Close.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// Supported drivers.
const (
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
)

var (
	// ErrSchema wraps any failure to provision tables. It is fatal at startup.
	ErrSchema = errors.New("schema provisioning failed")
	// ErrBulkWrite wraps a rejected bulk load. Nothing from the batch is kept.
	ErrBulkWrite = errors.New("bulk write failed")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Backend is the storage capability the exporter needs.
type Backend interface {
	// EnsureSchema creates RowsData and LogFiles when missing. Safe to run on
	// every startup; never drops or alters existing data.
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error

	// InsertRows bulk-loads rows as one operation.
	InsertRows(ctx context.Context, rows []models.EventRow) error
	// MaxPeriod returns the latest Period stored for system, or
	// models.MinPeriod when there is none.
	MaxPeriod(ctx context.Context, system string) (time.Time, error)
	// RowExists reports whether (system, id, period) is already stored.
	RowExists(ctx context.Context, system string, id int64, period time.Time) (bool, error)

	// MaxCheckpointID returns the largest checkpoint id for system, 0 if none.
	MaxCheckpointID(ctx context.Context, system string) (int64, error)
	// LastCheckpoint returns the checkpoint with the largest id, or nil.
	LastCheckpoint(ctx context.Context, system string) (*models.LogFileCheckpoint, error)
	// InsertCheckpoint appends one LogFiles row.
	InsertCheckpoint(ctx context.Context, cp models.LogFileCheckpoint) error

	Close() error
}

// Open connects to the backend selected by driver and verifies it is
// reachable. The caller owns the returned Backend and must Close it.
func Open(ctx context.Context, driver, dsn string) (Backend, error) {
	switch driver {
	case DriverClickHouse:
		return NewClickHouseStore(ctx, dsn)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	case DriverSQLite:
		return NewSQLiteStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// schemaFS holds one directory of DDL files per driver, applied in name order.
//
//go:embed schema
var schemaFS embed.FS

func schemaStatements(driver string) ([]string, error) {
	dir := path.Join("schema", driver)
	entries, err := fs.ReadDir(schemaFS, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	stmts := make([]string, 0, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(schemaFS, path.Join(dir, n))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, string(b))
	}
	return stmts, nil
}

// applySchema runs every DDL file for driver through exec.
func applySchema(ctx context.Context, driver string, exec func(ctx context.Context, stmt string) error) error {
	stmts, err := schemaStatements(driver)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	for _, stmt := range stmts {
		if err := exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", ErrSchema, err)
		}
	}
	return nil
}

// floorPeriod maps the "no rows" results of the various backends
// (NULL, zero time, epoch) onto models.MinPeriod.
func floorPeriod(t time.Time) time.Time {
	if t.IsZero() {
		return models.MinPeriod
	}
	return models.NormalizePeriod(t)
}
