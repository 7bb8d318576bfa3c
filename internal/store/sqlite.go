package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// SQLiteStore is a single-file backend for local runs and tests.
// Dates are kept as Unix seconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database file named by dsn.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers anyway, and in-memory
	// databases are per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureSchema applies the embedded DDL.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	return applySchema(ctx, DriverSQLite, func(ctx context.Context, stmt string) error {
		_, err := s.db.ExecContext(ctx, stmt)
		return err
	})
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var sqliteInsertRows = "INSERT INTO RowsData (" + strings.Join(models.EventRowColumns, ", ") +
	") VALUES (?" + strings.Repeat(", ?", len(models.EventRowColumns)-1) + ")"

// InsertRows inserts the batch inside one transaction.
func (s *SQLiteStore) InsertRows(ctx context.Context, rows []models.EventRow) (err error) {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrBulkWrite, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, sqliteInsertRows)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", ErrBulkWrite, err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err = stmt.ExecContext(ctx, sqliteValues(rows[i])...); err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrBulkWrite, i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrBulkWrite, err)
	}
	return nil
}

// sqliteValues is EventRow.Values with times as Unix seconds.
func sqliteValues(r models.EventRow) []any {
	vals := r.Values()
	for i, v := range vals {
		if t, ok := v.(time.Time); ok {
			vals[i] = t.Unix()
		}
	}
	return vals
}

// MaxPeriod returns models.MinPeriod when max() is NULL.
func (s *SQLiteStore) MaxPeriod(ctx context.Context, system string) (time.Time, error) {
	var out sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT max(Period)
		FROM RowsData
		WHERE InformationSystem = ?
	`, system).Scan(&out)
	if err != nil {
		return time.Time{}, err
	}
	if !out.Valid {
		return models.MinPeriod, nil
	}
	return floorPeriod(time.Unix(out.Int64, 0)), nil
}

// RowExists checks the primary key.
func (s *SQLiteStore) RowExists(ctx context.Context, system string, id int64, period time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM RowsData
			WHERE InformationSystem = ?
			  AND Period = ?
			  AND Id = ?
		)
	`, system, period.Unix(), id).Scan(&exists)
	return exists, err
}

// MaxCheckpointID returns 0 for a system with no checkpoints.
func (s *SQLiteStore) MaxCheckpointID(ctx context.Context, system string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(max(Id), 0)
		FROM LogFiles
		WHERE InformationSystem = ?
	`, system).Scan(&id)
	return id, err
}

// LastCheckpoint returns nil when the system has never been checkpointed.
func (s *SQLiteStore) LastCheckpoint(ctx context.Context, system string) (*models.LogFileCheckpoint, error) {
	var (
		cp               models.LogFileCheckpoint
		created, changed int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			InformationSystem,
			Id,
			FileName,
			CreateDate,
			ModificationDate,
			LastEventNumber,
			LastCurrentFileReferences,
			LastCurrentFileData,
			LastStreamPosition
		FROM LogFiles
		WHERE InformationSystem = ?
		ORDER BY Id DESC
		LIMIT 1
	`, system).Scan(
		&cp.InformationSystem,
		&cp.ID,
		&cp.FileName,
		&created,
		&changed,
		&cp.LastEventNumber,
		&cp.LastCurrentFileReferences,
		&cp.LastCurrentFileData,
		&cp.LastStreamPosition,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp.CreateDate = time.Unix(created, 0).UTC()
	cp.ModificationDate = time.Unix(changed, 0).UTC()
	return &cp, nil
}

// InsertCheckpoint appends one LogFiles row.
func (s *SQLiteStore) InsertCheckpoint(ctx context.Context, cp models.LogFileCheckpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO LogFiles (
			InformationSystem,
			Id,
			FileName,
			CreateDate,
			ModificationDate,
			LastEventNumber,
			LastCurrentFileReferences,
			LastCurrentFileData,
			LastStreamPosition
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cp.InformationSystem,
		cp.ID,
		cp.FileName,
		models.NormalizePeriod(cp.CreateDate).Unix(),
		models.NormalizePeriod(cp.ModificationDate).Unix(),
		cp.LastEventNumber,
		cp.LastCurrentFileReferences,
		cp.LastCurrentFileData,
		cp.LastStreamPosition,
	)
	return err
}
