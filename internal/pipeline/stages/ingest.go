package stages

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/filter"
	"github.com/jengzang/regrowth-dataset/internal/ingest"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
)

func init() {
	pipeline.RegisterStage(IngestStage, func(cfg *config.Config) pipeline.Stage {
		return &IngestRunner{cfg: cfg}
	})
}

// IngestParams configures the ingest stage
type IngestParams struct {
	SourcesFile string `json:"sources_file"`
	// Sources restricts the run to the named sources
	Sources []string `json:"sources"`
	// Boundary overrides the manifest boundary
	Boundary  string `json:"boundary"`
	OutputDir string `json:"output_dir"`
	Format    string `json:"format"`
}

// IngestResult lists one collection file per source
type IngestResult struct {
	Sources []ingest.SourceReport `json:"sources"`
	Outputs []string              `json:"outputs"`
}

// IngestRunner runs every manifest source through ingest.Ingest
type IngestRunner struct {
	cfg *config.Config
}

func (r *IngestRunner) Name() string { return IngestStage }

func (r *IngestRunner) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	p := IngestParams{
		SourcesFile: r.cfg.SourcesFile,
		Boundary:    r.cfg.BoundaryPath,
		OutputDir:   filepath.Join(r.cfg.OutputDir, "sources"),
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}

	manifest, err := config.LoadManifest(p.SourcesFile)
	if err != nil {
		return nil, err
	}
	work, err := parseCRS(r.cfg.WorkCRS, spatial.WGS84)
	if err != nil {
		return nil, err
	}

	sources := manifest.Sources
	if len(p.Sources) > 0 {
		sources = sources[:0:0]
		for _, name := range p.Sources {
			src, ok := manifest.Source(name)
			if !ok {
				return nil, fmt.Errorf("unknown source %q", name)
			}
			sources = append(sources, src)
		}
	}

	boundaryPath := p.Boundary
	if boundaryPath == "" {
		boundaryPath = manifest.Resolve(manifest.Boundary)
	}
	var boundary *filter.Boundary
	if boundaryPath != "" {
		boundary, err = filter.LoadBoundary(ctx, boundaryPath, work, r.cfg.ScratchDir)
		if err != nil {
			return nil, err
		}
		defer boundary.Close()
	} else {
		log.Printf("[Ingest] Warning: no boundary configured, keeping every accepted polygon")
	}

	result := &IngestResult{}
	summary := &pipeline.Summary{Result: result}
	opts := ingest.Options{WorkCRS: work, ScratchDir: r.cfg.ScratchDir, BaseDir: manifest.Dir}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		coll, report, err := ingest.Ingest(ctx, src, boundary, opts)
		if err != nil {
			return nil, err
		}

		out := filepath.Join(p.OutputDir, src.Name+format(p.Format))
		if err := pipeline.WriteCollection(out, coll); err != nil {
			return nil, err
		}
		result.Sources = append(result.Sources, *report)
		result.Outputs = append(result.Outputs, out)
		summary.Sources = append(summary.Sources, models.SourceStat{
			Source:   report.Source,
			Read:     report.Read,
			Repaired: report.Repaired,
			Accepted: report.Accepted,
			Within:   report.Within,
			NoYear:   report.NoYear,
		})
	}
	return summary, nil
}
