// Package sqlite caches server job snapshots locally so the CLI can show
// recent history (and the persisted selection) without a network call.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/voxalab/voxa-go/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    progress   INTEGER NOT NULL DEFAULT 0,
    message    TEXT,
    result     TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_updated ON jobs(updated_at);
CREATE TABLE IF NOT EXISTS selection (
    slot   INTEGER PRIMARY KEY CHECK (slot = 1),
    job_id TEXT NOT NULL
);
`

// Cache implements domain.JobStore using SQLite.
type Cache struct {
	db *sql.DB
}

// New creates a Cache, initializing the schema if needed.
func New(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// SaveJobs upserts server snapshots by job id.
func (c *Cache) SaveJobs(ctx context.Context, jobs []domain.Job) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, job := range jobs {
		var result []byte
		if job.Result != nil {
			if result, err = json.Marshal(job.Result); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO jobs (id, status, progress, message, result, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			     status = excluded.status,
			     progress = excluded.progress,
			     message = excluded.message,
			     result = excluded.result,
			     updated_at = excluded.updated_at`,
			job.ID, string(job.Status), job.Progress, job.Message,
			nullableText(result), job.CreatedAt, job.UpdatedOrCreated(),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentJobs returns cached snapshots, most recently updated first.
func (c *Cache) RecentJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, status, progress, COALESCE(message, ''), COALESCE(result, ''), created_at, updated_at
		 FROM jobs ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var job domain.Job
		var status, result string
		if err := rows.Scan(&job.ID, &status, &job.Progress, &job.Message, &result, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		job.Status = domain.JobStatus(status)
		if result != "" {
			if err := json.Unmarshal([]byte(result), &job.Result); err != nil {
				return nil, err
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// SaveSelection persists the selected job id; an empty id clears it.
func (c *Cache) SaveSelection(ctx context.Context, jobID string) error {
	if jobID == "" {
		_, err := c.db.ExecContext(ctx, `DELETE FROM selection WHERE slot = 1`)
		return err
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO selection (slot, job_id) VALUES (1, ?)
		 ON CONFLICT(slot) DO UPDATE SET job_id = excluded.job_id`, jobID,
	)
	return err
}

// Selection returns the persisted selected job id, or empty.
func (c *Cache) Selection(ctx context.Context) (string, error) {
	row := c.db.QueryRowContext(ctx, `SELECT job_id FROM selection WHERE slot = 1`)
	var jobID string
	err := row.Scan(&jobID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return jobID, nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
