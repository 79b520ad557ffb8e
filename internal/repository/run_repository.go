package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guaminsects/crbmap/internal/models"
)

// RunRepository handles database operations for pipeline runs
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create records a stage as running and sets run.ID
func (r *RunRepository) Create(ctx context.Context, run *models.PipelineRun) error {
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_id, stage, status, summary, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Stage, run.Status, run.Summary, run.ErrorMessage, run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// MarkAsCompleted marks a stage as completed with its summary
func (r *RunRepository) MarkAsCompleted(ctx context.Context, id int64, summary string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, completed_at = ?, summary = ?
		WHERE id = ?`,
		models.RunStatusCompleted, time.Now().Unix(), summary, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run as completed: %w", err)
	}
	return nil
}

// MarkAsFailed marks a stage as failed with an error message
func (r *RunRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ?`,
		models.RunStatusFailed, time.Now().Unix(), errorMessage, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run as failed: %w", err)
	}
	return nil
}

// List retrieves pipeline runs with optional filters, newest first
func (r *RunRepository) List(ctx context.Context, filter models.RunFilter) ([]*models.PipelineRun, error) {
	query := `
		SELECT id, run_id, stage, status, summary, error_message, started_at, completed_at
		FROM pipeline_runs
		WHERE 1=1
	`

	args := []interface{}{}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PipelineRun
	for rows.Next() {
		run := &models.PipelineRun{}
		var summary, errMsg sql.NullString
		var started int64
		var completed sql.NullInt64
		err := rows.Scan(
			&run.ID,
			&run.RunID,
			&run.Stage,
			&run.Status,
			&summary,
			&errMsg,
			&started,
			&completed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		run.Summary = summary.String
		run.ErrorMessage = errMsg.String
		run.StartedAt = time.Unix(started, 0).UTC()
		if completed.Valid {
			t := time.Unix(completed.Int64, 0).UTC()
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// LatestRunID returns the run ID of the most recent stage, or "" if none.
func (r *RunRepository) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := r.db.QueryRowContext(ctx, `SELECT run_id FROM pipeline_runs ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return runID, nil
}
