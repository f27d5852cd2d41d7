package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/regrowth-dataset/internal/models"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("pipeline run not found")

// RunRepository handles database operations for pipeline runs
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, run_key, stage, status, params_json, start_time, end_time,
	result_summary, error_message, created_by, created_at, updated_at`

// Create inserts a run and sets its ID
func (r *RunRepository) Create(run *models.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (run_key, stage, status, params_json, created_by)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query, run.RunKey, run.Stage, run.Status, run.ParamsJSON, run.CreatedBy)
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

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(id int64) (*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return run, nil
}

// List retrieves runs newest first
func (r *RunRepository) List(filters models.RunFilters) ([]*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE 1=1`

	args := []interface{}{}
	if filters.Stage != "" {
		query += " AND stage = ?"
		args = append(args, filters.Stage)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filters.Limit, filters.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.PipelineRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkAsRunning sets the status to running and records the start time
func (r *RunRepository) MarkAsRunning(id int64) error {
	query := `
		UPDATE pipeline_runs
		SET status = ?, start_time = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, models.RunStatusRunning, time.Now().Unix(), id)
}

// MarkAsCompleted stores the result summary
func (r *RunRepository) MarkAsCompleted(id int64, resultSummary string) error {
	query := `
		UPDATE pipeline_runs
		SET status = ?, result_summary = ?, end_time = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, models.RunStatusCompleted, resultSummary, time.Now().Unix(), id)
}

// MarkAsFailed stores the error message
func (r *RunRepository) MarkAsFailed(id int64, errorMessage string) error {
	query := `
		UPDATE pipeline_runs
		SET status = ?, error_message = ?, end_time = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(query, models.RunStatusFailed, errorMessage, time.Now().Unix(), id)
}

// SaveSourceStats replaces the per-source counts of a run
func (r *RunRepository) SaveSourceStats(runID int64, stats []models.SourceStat) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM source_stats WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to clear source stats: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO source_stats (run_id, source, read_count, repaired_count,
			accepted_count, within_count, no_year_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range stats {
		if _, err := stmt.Exec(runID, s.Source, s.Read, s.Repaired, s.Accepted, s.Within, s.NoYear); err != nil {
			return fmt.Errorf("failed to insert source stat %s: %w", s.Source, err)
		}
	}
	return tx.Commit()
}

// GetSourceStats returns the per-source counts of a run ordered by source
func (r *RunRepository) GetSourceStats(runID int64) ([]models.SourceStat, error) {
	rows, err := r.db.Query(`
		SELECT run_id, source, read_count, repaired_count, accepted_count, within_count, no_year_count
		FROM source_stats WHERE run_id = ? ORDER BY source
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query source stats: %w", err)
	}
	defer rows.Close()

	stats := []models.SourceStat{}
	for rows.Next() {
		var s models.SourceStat
		if err := rows.Scan(&s.RunID, &s.Source, &s.Read, &s.Repaired, &s.Accepted, &s.Within, &s.NoYear); err != nil {
			return nil, fmt.Errorf("failed to scan source stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *RunRepository) exec(query string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %v", ErrRunNotFound, args[len(args)-1])
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*models.PipelineRun, error) {
	run := &models.PipelineRun{}
	err := s.Scan(
		&run.ID,
		&run.RunKey,
		&run.Stage,
		&run.Status,
		&run.ParamsJSON,
		&run.StartTime,
		&run.EndTime,
		&run.ResultSummary,
		&run.ErrorMessage,
		&run.CreatedBy,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
