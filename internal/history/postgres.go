package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS enrichment_runs (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	column_name TEXT NOT NULL,
	sites       TEXT[] NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
)`

// PostgresRecorder stores runs in the enrichment_runs table.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates the runs table if it does not exist.
func NewPostgresRecorder(ctx context.Context, pool *pgxpool.Pool) (*PostgresRecorder, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create enrichment_runs table: %w", err)
	}
	return &PostgresRecorder{pool: pool}, nil
}

func (p *PostgresRecorder) Record(ctx context.Context, rec Record) error {
	rec = prepare(rec)

	_, err := p.pool.Exec(ctx,
		`INSERT INTO enrichment_runs
			(id, session_id, file_name, row_count, column_name, sites, started_at, duration_ms, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.SessionID, rec.FileName, rec.Rows, rec.Column, rec.Sites,
		rec.StartedAt, rec.Duration.Milliseconds(), string(rec.Status), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	return nil
}

func (p *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id::text, session_id, file_name, row_count, column_name, sites,
			started_at, duration_ms, status, error
		FROM enrichment_runs ORDER BY started_at DESC LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			rec        Record
			durationMs int64
			status     string
		)
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.FileName, &rec.Rows, &rec.Column, &rec.Sites,
			&rec.StartedAt, &durationMs, &status, &rec.Error,
		); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.Status = Status(status)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
