package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/database"
	"github.com/jengzang/regrowth-dataset/internal/grid"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
	"github.com/jengzang/regrowth-dataset/internal/repository"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// fakeSample returns two points in Web Mercator
type fakeSample struct{}

func (fakeSample) Name() string { return "fake-sample" }

func (fakeSample) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	var p struct {
		Fail   bool `json:"fail"`
		Opaque bool `json:"opaque"`
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	if p.Fail {
		return nil, errors.New("stage exploded")
	}
	if p.Opaque {
		return &pipeline.Summary{Result: func() {}}, nil
	}
	return &pipeline.Summary{
		Result: map[string]int{"points": 2},
		Sample: &grid.Result{
			CRS: spatial.WebMercator,
			Points: []models.SamplePoint{
				{Row: 0, Col: 0, Point: orb.Point{0, 0}},
				{Row: 0, Col: 1, Point: orb.Point{-5009377.085697311, 0}},
			},
		},
		Sources: []models.SourceStat{{Source: "sicar", Read: 3, Accepted: 2, Within: 2}},
	}, nil
}

func init() {
	pipeline.RegisterStage("fake-sample", func(cfg *config.Config) pipeline.Stage { return fakeSample{} })
}

func newService(t *testing.T) *RunService {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRunService(context.Background(), repository.NewRunRepository(db), repository.NewPointRepository(db), &config.Config{})
}

func TestCreateRunCompletes(t *testing.T) {
	s := newService(t)
	run, err := s.Create("fake-sample", nil, "tester")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if run.Status != models.RunStatusPending || len(run.RunKey) != 36 {
		t.Errorf("created run = %+v", run)
	}
	s.Wait()

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", got.Status, got.ErrorMessage)
	}
	var result map[string]int
	if err := json.Unmarshal([]byte(got.ResultSummary), &result); err != nil || result["points"] != 2 {
		t.Errorf("result summary = %s", got.ResultSummary)
	}

	if n, err := s.CountPoints(run.ID); err != nil || n != 2 {
		t.Errorf("CountPoints = %d, %v; want 2", n, err)
	}

	points, err := s.ListPoints(run.ID, "", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("stored %d points, want 2", len(points))
	}
	if points[1].Lon > -44.99 || points[1].Lon < -45.01 || len(points[1].Geohash) != GeohashPrecision {
		t.Errorf("second point = %+v, want lon -45", points[1])
	}

	filtered, err := s.ListPoints(run.ID, points[1].Geohash[:3], 0, 0)
	if err != nil || len(filtered) != 1 {
		t.Errorf("ListPoints with prefix = %d, %v; want 1", len(filtered), err)
	}

	stats, err := s.GetSourceStats(run.ID)
	if err != nil || len(stats) != 1 || stats[0].Accepted != 2 {
		t.Errorf("source stats = %+v, %v", stats, err)
	}
}

func TestCreateRunFails(t *testing.T) {
	s := newService(t)
	run, err := s.Create("fake-sample", json.RawMessage(`{"fail": true}`), "")
	if err != nil {
		t.Fatal(err)
	}
	s.Wait()

	got, _ := s.GetRun(run.ID)
	if got.Status != models.RunStatusFailed || got.ErrorMessage != "stage exploded" {
		t.Errorf("run = %s / %q, want failed / stage exploded", got.Status, got.ErrorMessage)
	}
}

func TestCreateRunFailsOnUnencodableResult(t *testing.T) {
	s := newService(t)
	run, err := s.Create("fake-sample", json.RawMessage(`{"opaque": true}`), "")
	if err != nil {
		t.Fatal(err)
	}
	s.Wait()

	got, _ := s.GetRun(run.ID)
	if got.Status != models.RunStatusFailed || !strings.HasPrefix(got.ErrorMessage, "failed to encode result") {
		t.Errorf("run = %s / %q, want failed / failed to encode result", got.Status, got.ErrorMessage)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	s := newService(t)
	if _, err := s.Create("nope", nil, ""); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("unknown stage error = %v", err)
	}
	if _, err := s.Create("fake-sample", json.RawMessage(`{bad`), ""); err == nil {
		t.Error("invalid JSON params should be rejected")
	}
}

func TestListRunsClampsPaging(t *testing.T) {
	s := newService(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Create("fake-sample", nil, ""); err != nil {
			t.Fatal(err)
		}
	}
	s.Wait()

	runs, err := s.ListRuns(models.RunFilters{Limit: -1, Offset: -5})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("ListRuns = %d runs, want 3", len(runs))
	}
	if _, err := s.ListPoints(404, "", 0, 0); !errors.Is(err, repository.ErrRunNotFound) {
		t.Errorf("ListPoints on a missing run = %v", err)
	}
}
