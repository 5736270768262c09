package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_run_store.go -package=mocks vitalsource-rag/internal/storage RunStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStore records ingest runs.
type RunStore interface {
	// Start inserts a running row and sets run.ID and run.StartedAt.
	Start(ctx context.Context, run *IngestRun) error
	// Finish stores the final counters and status.
	Finish(ctx context.Context, run *IngestRun) error
	// Latest returns the most recent run, or ErrNotFound.
	Latest(ctx context.Context) (*IngestRun, error)
}

// RunRepo implements RunStore on SQLite.
type RunRepo struct {
	db *sql.DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Start records the beginning of a run.
func (r *RunRepo) Start(ctx context.Context, run *IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.StartedAt = time.Now().UTC()
	run.Status = RunStatusRunning

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO ingest_runs (id, started_at, status, files_received) VALUES (?, ?, ?, ?)",
		run.ID, run.StartedAt, run.Status, run.FilesReceived,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest run: %w", err)
	}
	return nil
}

// Finish stores the run's outcome.
func (r *RunRepo) Finish(ctx context.Context, run *IngestRun) error {
	reasons, err := json.Marshal(run.SkippedReasons)
	if err != nil {
		return fmt.Errorf("failed to encode skipped reasons: %w", err)
	}
	now := time.Now().UTC()
	run.FinishedAt = &now

	res, err := r.db.ExecContext(ctx,
		`UPDATE ingest_runs SET finished_at = ?, status = ?, files_processed = ?, total_pages = ?,
		 chunks_attempted = ?, chunks_indexed = ?, skipped_reasons = ?, error = ?
		 WHERE id = ?`,
		now, run.Status, run.FilesProcessed, run.TotalPages,
		run.ChunksAttempted, run.ChunksIndexed, string(reasons), run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ingest run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Latest returns the most recently started run.
func (r *RunRepo) Latest(ctx context.Context) (*IngestRun, error) {
	var run IngestRun
	var finished sql.NullTime
	var reasons string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, status, files_received, files_processed, total_pages,
		 chunks_attempted, chunks_indexed, skipped_reasons, error
		 FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.FilesReceived, &run.FilesProcessed,
		&run.TotalPages, &run.ChunksAttempted, &run.ChunksIndexed, &reasons, &run.Error)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest ingest run: %w", err)
	}

	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(reasons), &run.SkippedReasons); err != nil {
		return nil, fmt.Errorf("failed to decode skipped reasons: %w", err)
	}
	return &run, nil
}
