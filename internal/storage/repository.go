package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"momentum-scanner/internal/market"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

//go:embed migrations/001_scan_runs.sql
var schemaSQL string

const (
	insertRunSQL = `INSERT INTO scan_runs (
        id,
        started_at,
        finished_at,
        status,
        error,
        artifact_path,
        result_count,
        results
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (id) DO NOTHING;`

	listRecentRunsSQL = `SELECT
        id::text,
        started_at,
        finished_at,
        status,
        error,
        artifact_path,
        results,
        created_at
    FROM scan_runs
    ORDER BY finished_at DESC
    LIMIT $1;`
)

// RunRecorder persists finished scan runs.
type RunRecorder interface {
	InsertRun(ctx context.Context, run ScanRun) error
}

// RunLister reads scan history.
type RunLister interface {
	ListRecentRuns(ctx context.Context, limit int) ([]ScanRun, error)
}

// Store persists scan history in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the history table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertRun persists a finished run. Re-inserting the same id is a no-op.
func (s *Store) InsertRun(ctx context.Context, run ScanRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	results := run.Results
	if results == nil {
		results = []market.MetricRecord{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, execErr := pool.Exec(ctx, insertRunSQL,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		string(run.Status),
		nullable(run.Error),
		nullable(run.ArtifactPath),
		len(results),
		payload,
	)
	if execErr != nil {
		return fmt.Errorf("insert scan run: %w", execErr)
	}
	return nil
}

// ListRecentRuns lists the most recent runs, newest first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]ScanRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]ScanRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanRun(rows pgx.Rows) (ScanRun, error) {
	var (
		id         string
		startedAt  time.Time
		finishedAt time.Time
		status     string
		errMsg     sql.NullString
		artifact   sql.NullString
		results    []byte
		createdAt  time.Time
	)

	if err := rows.Scan(&id, &startedAt, &finishedAt, &status, &errMsg, &artifact, &results, &createdAt); err != nil {
		return ScanRun{}, err
	}

	run := ScanRun{
		ID:           id,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Status:       RunStatus(status),
		Error:        errMsg.String,
		ArtifactPath: artifact.String,
		CreatedAt:    createdAt,
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &run.Results); err != nil {
			return ScanRun{}, fmt.Errorf("parse results: %w", err)
		}
	}
	return run, nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

var (
	_ RunRecorder = (*Store)(nil)
	_ RunLister   = (*Store)(nil)
)
