package stages

import (
	"context"
	"path/filepath"

	"github.com/jengzang/regrowth-dataset/internal/chips"
	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
)

func init() {
	pipeline.RegisterStage(SplitStage, func(cfg *config.Config) pipeline.Stage {
		return &SplitRunner{cfg: cfg}
	})
}

// SplitParams configures the split stage
type SplitParams struct {
	ChipDir       string   `json:"chip_dir"`
	OutputDir     string   `json:"output_dir"`
	TrainFraction float64  `json:"train_fraction"`
	Sensors       []string `json:"sensors"`
	Seed          *uint64  `json:"seed"`
}

// SplitResult counts the masks per set
type SplitResult struct {
	Train int `json:"train"`
	Val   int `json:"val"`
}

// SplitRunner divides cropped chips into training and validation sets
type SplitRunner struct {
	cfg *config.Config
}

func (r *SplitRunner) Name() string { return SplitStage }

func (r *SplitRunner) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	p := SplitParams{
		ChipDir:       filepath.Join(r.cfg.OutputDir, "cropped"),
		OutputDir:     filepath.Join(r.cfg.OutputDir, "dataset"),
		TrainFraction: 0.8,
		Sensors:       chips.Sensors,
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}

	seed := uint64(chips.DefaultSeed)
	if p.Seed != nil {
		seed = *p.Seed
	}
	res, err := chips.Split(chips.SplitConfig{
		ChipDir:       p.ChipDir,
		OutDir:        p.OutputDir,
		TrainFraction: p.TrainFraction,
		Sensors:       p.Sensors,
		Seed:          seed,
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.Summary{Result: &SplitResult{Train: len(res.Train), Val: len(res.Val)}}, nil
}
