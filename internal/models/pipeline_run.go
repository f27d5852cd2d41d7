package models

import "time"

// PipelineRun represents one execution of a pipeline stage
type PipelineRun struct {
	ID     int64  `json:"id" db:"id"`
	RunKey string `json:"run_key" db:"run_key"`
	Stage  string `json:"stage" db:"stage"`

	// Status
	Status string `json:"status" db:"status"` // pending, running, completed, failed

	// Input parameters
	ParamsJSON string `json:"params_json,omitempty" db:"params_json"`

	// Execution info
	StartTime int64 `json:"start_time,omitempty" db:"start_time"` // Unix timestamp
	EndTime   int64 `json:"end_time,omitempty" db:"end_time"`     // Unix timestamp

	// Results
	ResultSummary string `json:"result_summary,omitempty" db:"result_summary"`
	ErrorMessage  string `json:"error_message,omitempty" db:"error_message"`

	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RunStatus constants
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunFilters narrows a run listing
type RunFilters struct {
	Stage  string
	Status string
	Limit  int
	Offset int
}

// SourceStat holds per-source ingestion counts of a run
type SourceStat struct {
	RunID    int64  `json:"run_id" db:"run_id"`
	Source   string `json:"source" db:"source"`
	Read     int    `json:"read" db:"read_count"`
	Repaired int    `json:"repaired" db:"repaired_count"`
	Accepted int    `json:"accepted" db:"accepted_count"`
	Within   int    `json:"within" db:"within_count"`
	NoYear   int    `json:"no_year" db:"no_year_count"`
}
