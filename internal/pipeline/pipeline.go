// Package pipeline holds the stage registry shared by the CLI and the run
// service, plus the collection files stages hand to each other.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/grid"
	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/models"
)

// Stage is one step of the dataset build
type Stage interface {
	Name() string
	Run(ctx context.Context, params Params) (*Summary, error)
}

// Params carries the JSON parameters of a run
type Params struct {
	Raw json.RawMessage
}

// NewParams encodes v as stage parameters
func NewParams(v interface{}) (Params, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Params{}, fmt.Errorf("failed to encode params: %w", err)
	}
	return Params{Raw: data}, nil
}

// Decode unmarshals the parameters into v. Unknown fields are rejected;
// empty parameters leave v untouched.
func (p Params) Decode(v interface{}) error {
	if len(bytes.TrimSpace(p.Raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(p.Raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// Summary is what a stage reports back
type Summary struct {
	// Result is stored as the JSON result summary of the run
	Result interface{}
	// Sample is set by stages that produce sampling points
	Sample *grid.Result
	// Sources is set by stages that ingest sources
	Sources []models.SourceStat
}

// StageFactory creates a stage bound to the process configuration
type StageFactory func(cfg *config.Config) Stage

var (
	registryMu    sync.RWMutex
	stageRegistry = make(map[string]StageFactory)
)

// RegisterStage registers a stage factory under name
func RegisterStage(name string, factory StageFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	stageRegistry[name] = factory
}

// GetStage returns a stage instance, or nil for an unknown name
func GetStage(name string, cfg *config.Config) Stage {
	registryMu.RLock()
	factory, ok := stageRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory(cfg)
}

// IsRegistered reports whether a stage exists
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := stageRegistry[name]
	return ok
}

// StageNames returns the registered stage names sorted
func StageNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(stageRegistry))
	for name := range stageRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a stage and records its duration
func Execute(ctx context.Context, stage Stage, params Params) (*Summary, error) {
	start := time.Now()
	log.Printf("[Pipeline] Stage %s started", stage.Name())

	summary, err := stage.Run(ctx, params)
	elapsed := time.Since(start)

	status := "completed"
	if err != nil {
		status = "failed"
	}
	metrics.StageDurationSeconds.WithLabelValues(stage.Name(), status).Observe(elapsed.Seconds())

	if err != nil {
		log.Printf("[Pipeline] Stage %s failed after %v: %v", stage.Name(), elapsed, err)
		return nil, err
	}
	if summary == nil {
		summary = &Summary{}
	}
	log.Printf("[Pipeline] Stage %s completed in %v", stage.Name(), elapsed)
	return summary, nil
}
