package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jengzang/regrowth-dataset/internal/chips"
	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/gdalio"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
)

func init() {
	pipeline.RegisterStage(CropStage, func(cfg *config.Config) pipeline.Stage {
		return &CropRunner{cfg: cfg}
	})
}

// CropParams configures the crop stage
type CropParams struct {
	// InputDir holds the downloaded reference chips and sensor images
	InputDir  string   `json:"input_dir"`
	OutputDir string   `json:"output_dir"`
	Size      int      `json:"size"`
	Sensors   []string `json:"sensors"`
}

// CropResult counts cropped rasters per kind
type CropResult struct {
	References int            `json:"references"`
	Sensors    map[string]int `json:"sensors"`
}

// CropRunner centre-crops reference chips and aligns sensor images to them
type CropRunner struct {
	cfg *config.Config
}

func (r *CropRunner) Name() string { return CropStage }

func (r *CropRunner) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	p := CropParams{
		InputDir:  filepath.Join(r.cfg.OutputDir, "chips"),
		OutputDir: filepath.Join(r.cfg.OutputDir, "cropped"),
		Size:      gdalio.DefaultCropSize,
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}

	refs, err := gdalio.CropReferences(p.InputDir, p.OutputDir, p.Size)
	if err != nil {
		return nil, err
	}
	result := &CropResult{References: len(refs), Sensors: map[string]int{}}

	for _, sensor := range p.Sensors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !chips.IsSensor(sensor) {
			return nil, fmt.Errorf("unknown sensor %q", sensor)
		}
		out, err := gdalio.CropSensor(sensor, p.InputDir, p.OutputDir, p.OutputDir)
		if err != nil {
			return nil, err
		}
		result.Sensors[sensor] = len(out)
	}
	return &pipeline.Summary{Result: result}, nil
}
