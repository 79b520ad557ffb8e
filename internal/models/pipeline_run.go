package models

import "time"

// PipelineRun records one stage execution of a map build.
type PipelineRun struct {
	ID           int64      `json:"id" db:"id"`
	RunID        string     `json:"run_id" db:"run_id"`
	Stage        string     `json:"stage" db:"stage"`
	Status       string     `json:"status" db:"status"` // running, completed, failed
	Summary      string     `json:"summary,omitempty" db:"summary"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
