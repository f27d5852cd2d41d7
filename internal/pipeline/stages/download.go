package stages

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jengzang/regrowth-dataset/internal/chips"
	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/grid"
	"github.com/jengzang/regrowth-dataset/internal/pipeline"
	"github.com/jengzang/regrowth-dataset/internal/vector"
	"github.com/paulmach/orb"
)

func init() {
	pipeline.RegisterStage(DownloadStage, func(cfg *config.Config) pipeline.Stage {
		return &DownloadRunner{cfg: cfg}
	})
}

// DownloadParams configures the download stage
type DownloadParams struct {
	Points     string  `json:"points"`
	OutputDir  string  `json:"output_dir"`
	Suffix     string  `json:"suffix"`
	Resolution float64 `json:"resolution"`
	CRS        string  `json:"crs"`
	ExportURL  string  `json:"export_url"`
	Workers    int     `json:"workers"`
	Limit      int     `json:"limit"`
	Attempts   int     `json:"attempts"`
	// TimeoutSeconds bounds each attempt
	TimeoutSeconds int     `json:"timeout_seconds"`
	Buffer         float64 `json:"buffer"`
	// LedgerKey names the Redis set of finished chips
	LedgerKey string `json:"ledger_key"`
}

// DownloadResult counts chip outcomes and lists the failures
type DownloadResult struct {
	Downloaded int             `json:"downloaded"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Failures   []chips.Outcome `json:"failures,omitempty"`
}

// DownloadRunner fetches an image chip around every sampling point
type DownloadRunner struct {
	cfg *config.Config
}

func (r *DownloadRunner) Name() string { return DownloadStage }

func (r *DownloadRunner) Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error) {
	p := DownloadParams{
		Points:    filepath.Join(r.cfg.OutputDir, "sampling", grid.PointsName+defaultFormat),
		OutputDir: filepath.Join(r.cfg.OutputDir, "chips"),
		Suffix:    "ref",
		ExportURL: r.cfg.ImageExportURL,
		Workers:   r.cfg.ChipWorkers,
		Limit:     r.cfg.ChipLimit,
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}

	layer, err := vector.Read(p.Points, vector.ReadOptions{})
	if err != nil {
		return nil, err
	}
	points := make([]orb.Point, 0, len(layer.Features))
	for _, f := range layer.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("%s: expected points, got %s", p.Points, f.Geometry.GeoJSONType())
		}
		points = append(points, pt)
	}

	source, err := chips.NewHTTPImageSource(p.ExportURL)
	if err != nil {
		return nil, err
	}
	ledger, closeLedger, err := r.ledger(ctx, orDefault(p.LedgerKey, "regrowth:chips:"+p.Suffix))
	if err != nil {
		return nil, err
	}
	defer closeLedger()

	d := chips.NewDownloader(source, ledger, nil, chips.Options{
		OutDir:     p.OutputDir,
		Suffix:     p.Suffix,
		Resolution: p.Resolution,
		CRS:        p.CRS,
		Workers:    p.Workers,
		Limit:      p.Limit,
		Attempts:   p.Attempts,
		Timeout:    time.Duration(p.TimeoutSeconds) * time.Second,
		Buffer:     p.Buffer,
	})
	outcomes, err := d.Run(ctx, points, layer.CRS)
	if err != nil {
		return nil, err
	}

	result := &DownloadResult{}
	for _, o := range outcomes {
		switch o.Status {
		case chips.StatusDownloaded:
			result.Downloaded++
		case chips.StatusSkipped:
			result.Skipped++
		case chips.StatusFailed:
			result.Failed++
			result.Failures = append(result.Failures, o)
		}
	}
	return &pipeline.Summary{Result: result}, nil
}

// ledger returns a Redis ledger when REDIS_ADDR is set, an in-memory one
// otherwise
func (r *DownloadRunner) ledger(ctx context.Context, key string) (chips.Ledger, func(), error) {
	if r.cfg.RedisAddr == "" {
		return chips.NewMemoryLedger(), func() {}, nil
	}
	l, err := chips.NewRedisLedger(ctx, r.cfg.RedisAddr, r.cfg.RedisPassword, key)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[ChipDownloader] Using redis ledger %s at %s", key, r.cfg.RedisAddr)
	return l, func() { l.Close() }, nil
}
