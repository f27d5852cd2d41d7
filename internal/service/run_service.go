package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
	"github.com/jengzang/regrowth-dataset/internal/repository"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// GeohashPrecision is the precision of stored sampling point geohashes
const GeohashPrecision = 8

// ErrUnknownStage is returned when a run names no registered stage
var ErrUnknownStage = errors.New("unknown stage")

// RunService creates pipeline runs and executes them in the background
type RunService struct {
	runs   *repository.RunRepository
	points *repository.PointRepository
	cfg    *config.Config

	ctx context.Context
	wg  sync.WaitGroup
}

// NewRunService creates a new run service. Runs stop when ctx is cancelled.
func NewRunService(ctx context.Context, runs *repository.RunRepository, points *repository.PointRepository, cfg *config.Config) *RunService {
	return &RunService{runs: runs, points: points, cfg: cfg, ctx: ctx}
}

// Create records a pending run and starts it asynchronously
func (s *RunService) Create(stageName string, params json.RawMessage, createdBy string) (*models.PipelineRun, error) {
	stage := pipeline.GetStage(stageName, s.cfg)
	if stage == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}

	paramsJSON := "{}"
	if len(params) > 0 {
		if !json.Valid(params) {
			return nil, errors.New("params must be valid JSON")
		}
		paramsJSON = string(params)
	}

	run := &models.PipelineRun{
		RunKey:     uuid.New().String(),
		Stage:      stageName,
		Status:     models.RunStatusPending,
		ParamsJSON: paramsJSON,
		CreatedBy:  createdBy,
	}
	if err := s.runs.Create(run); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(run.ID, stage, pipeline.Params{Raw: json.RawMessage(paramsJSON)})
	}()

	log.Printf("[RunService] Run %d (%s) created for stage %s", run.ID, run.RunKey, stageName)
	return run, nil
}

// Wait blocks until every started run has finished
func (s *RunService) Wait() {
	s.wg.Wait()
}

func (s *RunService) execute(runID int64, stage pipeline.Stage, params pipeline.Params) {
	if err := s.runs.MarkAsRunning(runID); err != nil {
		log.Printf("[RunService] Failed to mark run %d as running: %v", runID, err)
		return
	}

	summary, err := pipeline.Execute(s.ctx, stage, params)
	if err == nil {
		err = s.persist(runID, summary)
	}
	if err != nil {
		if markErr := s.runs.MarkAsFailed(runID, err.Error()); markErr != nil {
			log.Printf("[RunService] Failed to mark run %d as failed: %v", runID, markErr)
		}
		return
	}

	result, err := json.Marshal(summary.Result)
	if err != nil {
		if markErr := s.runs.MarkAsFailed(runID, fmt.Sprintf("failed to encode result: %v", err)); markErr != nil {
			log.Printf("[RunService] Failed to mark run %d as failed: %v", runID, markErr)
		}
		return
	}
	if err := s.runs.MarkAsCompleted(runID, string(result)); err != nil {
		log.Printf("[RunService] Failed to mark run %d as completed: %v", runID, err)
	}
}

// persist stores the sampling points and source counts of a summary
func (s *RunService) persist(runID int64, summary *pipeline.Summary) error {
	if len(summary.Sources) > 0 {
		if err := s.runs.SaveSourceStats(runID, summary.Sources); err != nil {
			return err
		}
	}
	if summary.Sample == nil || len(summary.Sample.Points) == 0 {
		return nil
	}

	t, err := spatial.NewTransformer(summary.Sample.CRS, spatial.WGS84)
	if err != nil {
		return err
	}
	points := make([]models.SamplingPoint, len(summary.Sample.Points))
	for i, p := range summary.Sample.Points {
		lon, lat, err := t(p.Point[0], p.Point[1])
		if err != nil {
			return fmt.Errorf("failed to convert point (%d, %d): %w", p.Row, p.Col, err)
		}
		points[i] = models.SamplingPoint{
			RunID:   runID,
			Row:     p.Row,
			Col:     p.Col,
			X:       p.Point[0],
			Y:       p.Point[1],
			Lon:     lon,
			Lat:     lat,
			Geohash: spatial.Geohash(orb.Point{lon, lat}, GeohashPrecision),
		}
	}
	return s.points.BulkInsert(runID, points)
}

// GetRun retrieves a run by ID
func (s *RunService) GetRun(id int64) (*models.PipelineRun, error) {
	return s.runs.GetByID(id)
}

// ListRuns retrieves runs with optional filters
func (s *RunService) ListRuns(filters models.RunFilters) ([]*models.PipelineRun, error) {
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	return s.runs.List(filters)
}

// GetSourceStats returns the per-source counts of a run
func (s *RunService) GetSourceStats(id int64) ([]models.SourceStat, error) {
	if _, err := s.runs.GetByID(id); err != nil {
		return nil, err
	}
	return s.runs.GetSourceStats(id)
}

// CountPoints returns how many sampling points a run stored
func (s *RunService) CountPoints(id int64) (int, error) {
	return s.points.CountByRun(id)
}

// ListPoints returns the sampling points of a run
func (s *RunService) ListPoints(id int64, geohashPrefix string, limit, offset int) ([]models.SamplingPoint, error) {
	if _, err := s.runs.GetByID(id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}
	if offset < 0 {
		offset = 0
	}
	return s.points.ListByRun(id, geohashPrefix, limit, offset)
}

// Stages lists the registered stage names
func (s *RunService) Stages() []string {
	return pipeline.StageNames()
}
