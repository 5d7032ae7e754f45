package syncjob

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/rclonebox/internal/db"
	"github.com/openmined/rclonebox/internal/utils"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL,
    started_at TEXT NOT NULL, -- RFC3339
    finished_at TEXT NOT NULL, -- RFC3339
    success INTEGER NOT NULL,
    message TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    bytes INTEGER NOT NULL DEFAULT 0,
    files INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_task_id ON runs(task_id);
`

// RunRecord is one finished execution of a task
type RunRecord struct {
	ID         int64     `json:"id"`
	TaskID     string    `json:"task_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	ExitCode   int       `json:"exit_code"`
	Bytes      int64     `json:"bytes"`
	Files      int64     `json:"files"`
}

func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// dbRunRecord mirrors the runs table; times are stored as TEXT
type dbRunRecord struct {
	ID         int64  `db:"id"`
	TaskID     string `db:"task_id"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
	Success    bool   `db:"success"`
	Message    string `db:"message"`
	ExitCode   int    `db:"exit_code"`
	Bytes      int64  `db:"bytes"`
	Files      int64  `db:"files"`
}

// History is the append-only run journal backed by SQLite
type History struct {
	db     *sqlx.DB
	dbPath string
}

// OpenHistory opens or creates the journal at path. ":memory:" is allowed.
func OpenHistory(path string) (*History, error) {
	if path != ":memory:" {
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	conn, err := db.NewSqliteDB(
		db.WithPath(path),
		db.WithMaxOpenConns(1),
		db.WithSchema(historySchema),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}

	return &History{db: conn, dbPath: path}, nil
}

func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	if err := h.db.Close(); err != nil {
		slog.Error("failed to close run history", "error", err)
		return err
	}
	return nil
}

// Record appends a run and returns its id
func (h *History) Record(ctx context.Context, rec *RunRecord) (int64, error) {
	row := dbRunRecord{
		TaskID:     rec.TaskID,
		StartedAt:  rec.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		Success:    rec.Success,
		Message:    rec.Message,
		ExitCode:   rec.ExitCode,
		Bytes:      rec.Bytes,
		Files:      rec.Files,
	}

	query := `INSERT INTO runs (task_id, started_at, finished_at, success, message, exit_code, bytes, files)
	          VALUES (:task_id, :started_at, :finished_at, :success, :message, :exit_code, :bytes, :files)`
	res, err := h.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return 0, fmt.Errorf("failed to record run for task %s: %w", rec.TaskID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// List returns the newest runs first. An empty taskID lists every task.
// limit <= 0 means no limit.
func (h *History) List(ctx context.Context, taskID string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	var rows []dbRunRecord
	var err error
	if taskID == "" {
		err = h.db.SelectContext(ctx, &rows, "SELECT * FROM runs ORDER BY id DESC LIMIT ?", limit)
	} else {
		err = h.db.SelectContext(ctx, &rows, "SELECT * FROM runs WHERE task_id = ? ORDER BY id DESC LIMIT ?", taskID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	records := make([]*RunRecord, 0, len(rows))
	for _, row := range rows {
		started, err := time.Parse(time.RFC3339Nano, row.StartedAt)
		if err != nil {
			slog.Error("failed to parse started_at", "run", row.ID, "value", row.StartedAt, "error", err)
			continue
		}
		finished, err := time.Parse(time.RFC3339Nano, row.FinishedAt)
		if err != nil {
			slog.Error("failed to parse finished_at", "run", row.ID, "value", row.FinishedAt, "error", err)
			continue
		}
		records = append(records, &RunRecord{
			ID:         row.ID,
			TaskID:     row.TaskID,
			StartedAt:  started,
			FinishedAt: finished,
			Success:    row.Success,
			Message:    row.Message,
			ExitCode:   row.ExitCode,
			Bytes:      row.Bytes,
			Files:      row.Files,
		})
	}
	return records, nil
}

// Prune keeps the newest keep runs of every task and returns how many rows were removed
func (h *History) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := h.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT r.id FROM runs r WHERE r.task_id = runs.task_id ORDER BY r.id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteTask drops every run of taskID
func (h *History) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM runs WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete runs for task %s: %w", taskID, err)
	}
	return nil
}

func (h *History) Count(ctx context.Context) (int, error) {
	var count int
	if err := h.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM runs"); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
