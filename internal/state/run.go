package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the status of a recorded run.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

// Run represents one orchestration run in the history.
type Run struct {
	ID             string     `json:"id"`
	Query          string     `json:"query"`
	SpecSource     string     `json:"spec_source"`
	TaskCount      int        `json:"task_count"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	Summary        string     `json:"summary"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
}

// RunTask records the terminal state of one task within a run.
type RunTask struct {
	RunID       string `json:"run_id"`
	TaskID      int    `json:"task_id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	SpecID      string `json:"spec_id"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	ErrorDetail string `json:"error_detail"`
}

// CreateRun inserts a new run in the active state.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, query, spec_source, task_count, completed_count, failed_count, summary, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Query, r.SpecSource, r.TaskCount, r.CompletedCount, r.FailedCount, r.Summary, string(r.Status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil without error when the
// run does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, query, spec_source, task_count, completed_count, failed_count, summary, status, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.Query, &r.SpecSource, &r.TaskCount, &r.CompletedCount, &r.FailedCount,
		&r.Summary, &r.Status, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// FinishRun records the outcome of a run: counts, summary, terminal
// status, and the finish time.
func (db *DB) FinishRun(r *Run) error {
	finishedAt := sql.NullString{}
	if r.FinishedAt != nil {
		finishedAt = sql.NullString{String: formatTime(*r.FinishedAt), Valid: true}
	}
	_, err := db.Exec(`
		UPDATE runs SET task_count = ?, completed_count = ?, failed_count = ?, summary = ?, status = ?, finished_at = ?
		WHERE id = ?
	`, r.TaskCount, r.CompletedCount, r.FailedCount, r.Summary, string(r.Status), finishedAt, r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// DeleteRun deletes a run by ID; its tasks cascade.
func (db *DB) DeleteRun(id string) error {
	_, err := db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// ListRuns lists runs newest first. A limit of 0 returns all runs.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, query, spec_source, task_count, completed_count, failed_count, summary, status, started_at, finished_at
		FROM runs ORDER BY started_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Query, &r.SpecSource, &r.TaskCount, &r.CompletedCount, &r.FailedCount,
			&r.Summary, &r.Status, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, nil
}

// RecordTasks stores the terminal task states for a run in one
// transaction, replacing any previously recorded set.
func (db *DB) RecordTasks(runID string, tasks []RunTask) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM run_tasks WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("clear run tasks: %w", err)
		}
		for _, t := range tasks {
			_, err := tx.Exec(`
				INSERT INTO run_tasks (run_id, task_id, description, status, spec_id, method, url, error_detail)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, runID, t.TaskID, t.Description, t.Status, t.SpecID, t.Method, t.URL, t.ErrorDetail)
			if err != nil {
				return fmt.Errorf("record task %d: %w", t.TaskID, err)
			}
		}
		return nil
	})
}

// ListRunTasks returns the recorded tasks of a run in task order.
func (db *DB) ListRunTasks(runID string) ([]RunTask, error) {
	rows, err := db.Query(`
		SELECT run_id, task_id, description, status, spec_id, method, url, error_detail
		FROM run_tasks WHERE run_id = ? ORDER BY task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []RunTask
	for rows.Next() {
		var t RunTask
		if err := rows.Scan(&t.RunID, &t.TaskID, &t.Description, &t.Status, &t.SpecID, &t.Method, &t.URL, &t.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
