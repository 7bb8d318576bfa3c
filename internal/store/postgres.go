package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spaolacci/murmur3"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// PostgresStore keeps rows and checkpoints in Postgres tables partitioned
// by system and then by month. Leaf partitions are created on first use.
type PostgresStore struct {
	pool *pgxpool.Pool

	mu         sync.Mutex
	partitions map[string]bool // leaf partitions known to exist
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, partitions: make(map[string]bool)}, nil
}

// EnsureSchema applies the embedded DDL. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	return applySchema(ctx, DriverPostgres, func(ctx context.Context, stmt string) error {
		_, err := p.pool.Exec(ctx, stmt)
		return err
	})
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// partitionColumns is the monthly range key of each partitioned table.
var partitionColumns = map[string]string{
	"rows_data": "period",
	"log_files": "create_date",
}

// partitionName names table's partition for system, or its monthly
// sub-partition when month is set. System names are arbitrary text, so the
// name carries their hash.
func partitionName(table, system string, month time.Time) string {
	name := fmt.Sprintf("%s_%016x", table, murmur3.Sum64([]byte(system)))
	if !month.IsZero() {
		name += "_" + month.Format("200601")
	}
	return name
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// quoteLiteral renders s as a SQL string literal. Partition bounds cannot be
// bind parameters.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func timestampLiteral(t time.Time) string {
	return quoteLiteral(t.UTC().Format("2006-01-02 15:04:05") + "+00")
}

// partitionDDL creates the system partition of table and its sub-partition
// for the month starting at month.
func partitionDDL(table, system string, month time.Time) []string {
	parent := pgx.Identifier{partitionName(table, system, time.Time{})}.Sanitize()
	leaf := pgx.Identifier{partitionName(table, system, month)}.Sanitize()
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES IN (%s) PARTITION BY RANGE (%s)",
			parent, table, quoteLiteral(system), partitionColumns[table]),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM (%s) TO (%s)",
			leaf, parent, timestampLiteral(month), timestampLiteral(month.AddDate(0, 1, 0))),
	}
}

// ensurePartition creates the leaf partition of table holding (system, at).
// One writer per system means two sessions never race on the same leaf.
func (p *PostgresStore) ensurePartition(ctx context.Context, table, system string, at time.Time) error {
	month := monthStart(at)
	leaf := partitionName(table, system, month)

	p.mu.Lock()
	known := p.partitions[leaf]
	p.mu.Unlock()
	if known {
		return nil
	}

	for _, stmt := range partitionDDL(table, system, month) {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create partition %s: %w", leaf, err)
		}
	}

	p.mu.Lock()
	p.partitions[leaf] = true
	p.mu.Unlock()
	return nil
}

var pgRowColumns = []string{
	"information_system",
	"id",
	"period",
	"severity",
	"connect_id",
	"session",
	"transaction_status",
	"transaction_date",
	"transaction_id",
	"user",
	"computer",
	"application",
	"event",
	"comment",
	"metadata",
	"data",
	"data_uuid",
	"data_presentation",
	"work_server",
	"primary_port",
	"secondary_port",
}

// InsertRows streams the batch with COPY. A single COPY statement either
// lands completely or not at all; a duplicate key rejects the whole batch.
func (p *PostgresStore) InsertRows(ctx context.Context, rows []models.EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	for i := range rows {
		if err := p.ensurePartition(ctx, "rows_data", rows[i].InformationSystem, rows[i].Period); err != nil {
			return fmt.Errorf("%w: %w", ErrBulkWrite, err)
		}
	}

	n, err := p.pool.CopyFrom(
		ctx,
		pgx.Identifier{"rows_data"},
		pgRowColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return rows[i].Values(), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBulkWrite, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("%w: copied %d of %d rows", ErrBulkWrite, n, len(rows))
	}
	return nil
}

// MaxPeriod returns models.MinPeriod when max() is NULL.
func (p *PostgresStore) MaxPeriod(ctx context.Context, system string) (time.Time, error) {
	var out *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT max(period)
		FROM rows_data
		WHERE information_system = $1
	`, system).Scan(&out)
	if err != nil {
		return time.Time{}, err
	}
	if out == nil {
		return models.MinPeriod, nil
	}
	return floorPeriod(*out), nil
}

// RowExists checks the primary key.
func (p *PostgresStore) RowExists(ctx context.Context, system string, id int64, period time.Time) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM rows_data
			WHERE information_system = $1
			  AND period = $2
			  AND id = $3
		)
	`, system, period, id).Scan(&exists)
	return exists, err
}

// MaxCheckpointID returns 0 for a system with no checkpoints.
func (p *PostgresStore) MaxCheckpointID(ctx context.Context, system string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		SELECT COALESCE(max(id), 0)
		FROM log_files
		WHERE information_system = $1
	`, system).Scan(&id)
	return id, err
}

// LastCheckpoint returns nil when the system has never been checkpointed.
func (p *PostgresStore) LastCheckpoint(ctx context.Context, system string) (*models.LogFileCheckpoint, error) {
	var cp models.LogFileCheckpoint
	err := p.pool.QueryRow(ctx, `
		SELECT
			information_system,
			id,
			file_name,
			create_date,
			modification_date,
			last_event_number,
			last_current_file_references,
			last_current_file_data,
			last_stream_position
		FROM log_files
		WHERE information_system = $1
		ORDER BY id DESC
		LIMIT 1
	`, system).Scan(
		&cp.InformationSystem,
		&cp.ID,
		&cp.FileName,
		&cp.CreateDate,
		&cp.ModificationDate,
		&cp.LastEventNumber,
		&cp.LastCurrentFileReferences,
		&cp.LastCurrentFileData,
		&cp.LastStreamPosition,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp.CreateDate = cp.CreateDate.UTC()
	cp.ModificationDate = cp.ModificationDate.UTC()
	return &cp, nil
}

// InsertCheckpoint appends one log_files row.
func (p *PostgresStore) InsertCheckpoint(ctx context.Context, cp models.LogFileCheckpoint) error {
	created := models.NormalizePeriod(cp.CreateDate)
	if err := p.ensurePartition(ctx, "log_files", cp.InformationSystem, created); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO log_files (
			information_system,
			id,
			file_name,
			create_date,
			modification_date,
			last_event_number,
			last_current_file_references,
			last_current_file_data,
			last_stream_position
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		cp.InformationSystem,
		cp.ID,
		cp.FileName,
		created,
		models.NormalizePeriod(cp.ModificationDate),
		cp.LastEventNumber,
		cp.LastCurrentFileReferences,
		cp.LastCurrentFileData,
		cp.LastStreamPosition,
	)
	return err
}
