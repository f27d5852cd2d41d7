package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
)

func init() {
	pipeline.RegisterStage(BuildStage, func(cfg *config.Config) pipeline.Stage {
		return &BuildRunner{cfg: cfg}
	})
}

// BuildParams holds the parameters of each chained stage
type BuildParams struct {
	Ingest    json.RawMessage `json:"ingest"`
	Merge     json.RawMessage `json:"merge"`
	Sample    json.RawMessage `json:"sample"`
	Rasterize json.RawMessage `json:"rasterize"`
}

// BuildRunner runs ingest, merge, sample and rasterize in sequence. Each
// stage reads what the previous one wrote unless its params say otherwise.
type BuildRunner struct {
	cfg *config.Config
}

func (r *BuildRunner) Name() string { return BuildStage }

func (r *BuildRunner) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	var p BuildParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	results := make(map[string]interface{}, 4)
	summary := &pipeline.Summary{Result: results}

	ingested, err := r.step(ctx, &IngestRunner{cfg: r.cfg}, p.Ingest, nil)
	if err != nil {
		return nil, err
	}
	results[IngestStage] = ingested.Result
	summary.Sources = ingested.Sources

	merged, err := r.step(ctx, &MergeRunner{cfg: r.cfg}, p.Merge,
		map[string]interface{}{"inputs": ingested.Result.(*IngestResult).Outputs})
	if err != nil {
		return nil, err
	}
	results[MergeStage] = merged.Result
	output := merged.Result.(*MergeResult).Output

	sampled, err := r.step(ctx, &SampleRunner{cfg: r.cfg}, p.Sample, map[string]interface{}{"input": output})
	if err != nil {
		return nil, err
	}
	results[SampleStage] = sampled.Result
	summary.Sample = sampled.Sample

	rasterized, err := r.step(ctx, &RasterizeRunner{cfg: r.cfg}, p.Rasterize, map[string]interface{}{"input": output})
	if err != nil {
		return nil, err
	}
	results[RasterizeStage] = rasterized.Result
	return summary, nil
}

// step runs one stage with raw params, filling keys the caller left unset
func (r *BuildRunner) step(ctx context.Context, stage pipeline.Stage, raw json.RawMessage, fill map[string]interface{}) (*pipeline.Summary, error) {
	params := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("invalid %s params: %w", stage.Name(), err)
		}
	}
	for k, v := range fill {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}

	encoded, err := pipeline.NewParams(params)
	if err != nil {
		return nil, err
	}
	summary, err := pipeline.Execute(ctx, stage, encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage.Name(), err)
	}
	return summary, nil
}
