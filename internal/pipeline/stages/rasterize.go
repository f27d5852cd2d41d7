package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
	"github.com/jengzang/regrowth-dataset/internal/raster"
	"github.com/paulmach/orb"
)

func init() {
	pipeline.RegisterStage(RasterizeStage, func(cfg *config.Config) pipeline.Stage {
		return &RasterizeRunner{cfg: cfg}
	})
}

// RasterizeParams configures the rasterize stage
type RasterizeParams struct {
	Input      string  `json:"input"`
	PixelSize  float64 `json:"pixel_size"`
	BurnValue  uint8   `json:"burn_value"`
	AllTouched bool    `json:"all_touched"`
	// Extent is xmin, ymin, xmax, ymax in the input CRS
	Extent    []float64 `json:"extent"`
	OutputDir string    `json:"output_dir"`
}

// RasterizeResult describes the written mask
type RasterizeResult struct {
	Output string `json:"output"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Burned int    `json:"burned"`
}

// RasterizeRunner burns a polygon collection into a reference mask
type RasterizeRunner struct {
	cfg *config.Config
}

func (r *RasterizeRunner) Name() string { return RasterizeStage }

func (r *RasterizeRunner) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	p := RasterizeParams{
		Input:     filepath.Join(r.cfg.OutputDir, "merged"+defaultFormat),
		OutputDir: filepath.Join(r.cfg.OutputDir, "masks"),
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}

	opts := raster.Options{PixelSize: p.PixelSize, BurnValue: p.BurnValue, AllTouched: p.AllTouched}
	if p.Extent != nil {
		if len(p.Extent) != 4 {
			return nil, fmt.Errorf("extent needs 4 values, got %d", len(p.Extent))
		}
		opts.Extent = &orb.Bound{
			Min: orb.Point{p.Extent[0], p.Extent[1]},
			Max: orb.Point{p.Extent[2], p.Extent[3]},
		}
	}

	coll, err := pipeline.ReadCollection(ctx, p.Input, r.cfg.ScratchDir)
	if err != nil {
		return nil, err
	}
	mask, err := raster.Rasterize(coll, opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	out := raster.OutputPath(p.Input, p.OutputDir)
	if err := raster.Write(out, mask); err != nil {
		return nil, err
	}
	return &pipeline.Summary{Result: &RasterizeResult{
		Output: out,
		Width:  mask.Width,
		Height: mask.Height,
		Burned: mask.Count(),
	}}, nil
}
