package repository

import (
	"database/sql"
	"fmt"

	"github.com/jengzang/regrowth-dataset/internal/models"
)

// PointRepository handles database operations for sampling points
type PointRepository struct {
	db *sql.DB
}

// NewPointRepository creates a new point repository
func NewPointRepository(db *sql.DB) *PointRepository {
	return &PointRepository{db: db}
}

// BulkInsert stores the points of a run in one transaction
func (r *PointRepository) BulkInsert(runID int64, points []models.SamplingPoint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sampling_points (run_id, cell_row, cell_col, x, y, lon, lat, geohash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(runID, p.Row, p.Col, p.X, p.Y, p.Lon, p.Lat, p.Geohash); err != nil {
			return fmt.Errorf("failed to insert sampling point (%d, %d): %w", p.Row, p.Col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sampling points: %w", err)
	}
	return nil
}

// ListByRun returns the points of a run in row-major order. A non-empty
// geohashPrefix keeps only points whose geohash starts with it.
func (r *PointRepository) ListByRun(runID int64, geohashPrefix string, limit, offset int) ([]models.SamplingPoint, error) {
	query := `
		SELECT id, run_id, cell_row, cell_col, x, y, lon, lat, geohash
		FROM sampling_points
		WHERE run_id = ?
	`
	args := []interface{}{runID}
	if geohashPrefix != "" {
		// geohash characters never include LIKE wildcards
		query += " AND geohash LIKE ?"
		args = append(args, geohashPrefix+"%")
	}
	query += " ORDER BY cell_row, cell_col LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sampling points: %w", err)
	}
	defer rows.Close()

	points := []models.SamplingPoint{}
	for rows.Next() {
		var p models.SamplingPoint
		if err := rows.Scan(&p.ID, &p.RunID, &p.Row, &p.Col, &p.X, &p.Y, &p.Lon, &p.Lat, &p.Geohash); err != nil {
			return nil, fmt.Errorf("failed to scan sampling point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// CountByRun returns the number of points stored for a run
func (r *PointRepository) CountByRun(runID int64) (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM sampling_points WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sampling points: %w", err)
	}
	return n, nil
}
