package store

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidrelay/internal/models"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Audit appends every job transition to Postgres. It is an observer only:
// job state is never read back from it.
type Audit struct {
	pool *pgxpool.Pool
}

// TransitionRow is one recorded transition.
type TransitionRow struct {
	TaskID     string    `json:"task_id"`
	SessionID  string    `json:"session_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	TraceID    string    `json:"trace_id"`
	VideoURL   *string   `json:"video_url,omitempty"`
	LastError  *string   `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewAudit creates a pooled connection to Postgres.
func NewAudit(ctx context.Context, dsn string) (*Audit, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Audit{pool: pool}, nil
}

func (a *Audit) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// RunMigrations executes the embedded SQL migrations in order.
func (a *Audit) RunMigrations(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sql := strings.TrimSpace(string(content))
		if sql == "" {
			continue
		}
		if _, err := a.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("exec migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Record inserts one transition row.
func (a *Audit) Record(ctx context.Context, sessionID string, job models.Job) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO job_transitions (task_id, session_id, status, message, trace_id, video_url, last_error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, job.ID, sessionID, job.Status, job.Message, job.TraceID, job.VideoURL, job.Error, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// History returns the recorded transitions of a job in order.
func (a *Audit) History(ctx context.Context, taskID string) ([]TransitionRow, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT task_id, session_id, status, message, trace_id, video_url, last_error, recorded_at
		FROM job_transitions WHERE task_id = $1 ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionRow
	for rows.Next() {
		var row TransitionRow
		var videoURL, lastErr pgtype.Text
		if err := rows.Scan(&row.TaskID, &row.SessionID, &row.Status, &row.Message, &row.TraceID, &videoURL, &lastErr, &row.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		row.VideoURL = textPtr(videoURL)
		row.LastError = textPtr(lastErr)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
