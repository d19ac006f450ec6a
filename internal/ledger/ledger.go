// Package ledger keeps a local history of pipeline runs in sqlite so a
// re-run can see what happened to a project before it, and the CLI can list
// past runs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/geoflux/insarpipe/internal/domain"
	_ "modernc.org/sqlite"
)

// Store persists run records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run ledger at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			project     TEXT NOT NULL,
			state       TEXT NOT NULL,
			error       TEXT,
			roi         TEXT,
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Started records a new run in its initial state.
func (s *Store) Started(ctx context.Context, job *domain.ProcessingJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, project, state, roi, started_at) VALUES (?, ?, ?, ?, ?)`,
		job.RunID.String(), job.Project, string(job.State), job.ROI.String(), job.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// Finished records a run's terminal state. runErr may be nil on success; for
// a failed run the recorded state names the stage that failed.
func (s *Store) Finished(ctx context.Context, job *domain.ProcessingJob, runErr error) error {
	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		string(job.State), errText, time.Now().UTC(), job.RunID.String(),
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RunRecord is one historical run.
type RunRecord struct {
	RunID      string
	Project    string
	State      string
	Error      string
	ROI        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// History returns the most recent runs for a project, newest first. An empty
// project returns runs across all projects.
func (s *Store) History(ctx context.Context, project string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT run_id, project, state, COALESCE(error, ''), COALESCE(roi, ''),
			started_at, COALESCE(finished_at, started_at)
		FROM runs`
	args := []any{}
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.Project, &rec.State, &rec.Error, &rec.ROI,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
