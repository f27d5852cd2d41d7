package stages

import (
	"context"
	"path/filepath"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/filter"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
)

func init() {
	pipeline.RegisterStage(MergeStage, func(cfg *config.Config) pipeline.Stage {
		return &MergeRunner{cfg: cfg}
	})
}

// MergeParams configures the merge stage. Unset options fall back to the
// manifest merge section, then to the reference build defaults.
type MergeParams struct {
	// Inputs are collection files or globs, merged in order
	Inputs      []string `json:"inputs"`
	Output      string   `json:"output"`
	SourcesFile string   `json:"sources_file"`

	MaxYear        *int     `json:"max_year"`
	ExcludeSources []string `json:"exclude_sources"`
	MergeCRS       string   `json:"merge_crs"`
	AreaDivisor    float64  `json:"area_divisor"`
	AreaFloor      *float64 `json:"area_floor"`
}

// MergeResult is the merge report with the output path
type MergeResult struct {
	*filter.MergeReport
	Output string `json:"output"`
}

// MergeRunner concatenates and cleans ingested collections
type MergeRunner struct {
	cfg *config.Config
}

func (r *MergeRunner) Name() string { return MergeStage }

func (r *MergeRunner) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	p := MergeParams{
		Inputs: []string{filepath.Join(r.cfg.OutputDir, "sources", "*"+defaultFormat)},
		Output: filepath.Join(r.cfg.OutputDir, "merged"+defaultFormat),
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}

	opts, err := r.options(p)
	if err != nil {
		return nil, err
	}

	paths, err := expand(p.Inputs)
	if err != nil {
		return nil, err
	}
	collections := make([]*models.Collection, 0, len(paths))
	for _, path := range paths {
		coll, err := pipeline.ReadCollection(ctx, path, r.cfg.ScratchDir)
		if err != nil {
			return nil, err
		}
		collections = append(collections, coll)
	}

	merged, report, err := filter.MergeAndClean(collections, opts)
	if err != nil {
		return nil, err
	}
	if err := pipeline.WriteCollection(p.Output, merged); err != nil {
		return nil, err
	}
	return &pipeline.Summary{Result: &MergeResult{MergeReport: report, Output: p.Output}}, nil
}

func (r *MergeRunner) options(p MergeParams) (filter.MergeOptions, error) {
	opts := filter.DefaultMergeOptions()

	if p.SourcesFile != "" {
		m, err := config.LoadManifest(p.SourcesFile)
		if err != nil {
			return opts, err
		}
		if m.Merge.MaxYear != nil {
			opts.MaxYear = *m.Merge.MaxYear
		}
		if m.Merge.ExcludeSources != nil {
			opts.ExcludeSources = m.Merge.ExcludeSources
		}
	}

	if p.MaxYear != nil {
		opts.MaxYear = *p.MaxYear
	}
	if p.ExcludeSources != nil {
		opts.ExcludeSources = p.ExcludeSources
	}
	crs, err := parseCRS(orDefault(p.MergeCRS, r.cfg.MergeCRS), spatial.WebMercator)
	if err != nil {
		return opts, err
	}
	opts.MergeCRS = crs
	if p.AreaDivisor > 0 {
		opts.AreaDivisor = p.AreaDivisor
	}
	if p.AreaFloor != nil {
		opts.AreaFloor = *p.AreaFloor
	}
	return opts, nil
}
