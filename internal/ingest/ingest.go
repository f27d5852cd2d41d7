// Package ingest turns the sources of a manifest into tagged, filtered
// polygon collections in the working CRS.
package ingest

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/filter"
	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/normalize"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
)

// Options configures an ingestion
type Options struct {
	WorkCRS    spatial.CRS
	ScratchDir string
	// BaseDir resolves relative source paths
	BaseDir string
}

// SourceReport holds the per-source counts of an ingestion
type SourceReport struct {
	Source   string `json:"source"`
	Files    int    `json:"files"`
	Read     int    `json:"read"`
	Repaired int    `json:"repaired"`
	Accepted int    `json:"accepted"`
	NoYear   int    `json:"no_year"`
	Within   int    `json:"within"`
}

// Ingest normalizes every path of src, reprojects to the working CRS,
// applies the acceptance predicates, parses years, keeps what lies within
// boundary (when given) and tags the result with the source name.
func Ingest(ctx context.Context, src config.Source, boundary *filter.Boundary, opts Options) (*models.Collection, *SourceReport, error) {
	if err := ValidatePredicates(src.Accept); err != nil {
		return nil, nil, fmt.Errorf("source %s: %w", src.Name, err)
	}

	work := opts.WorkCRS
	if work.IsZero() {
		work = spatial.WGS84
	}
	if boundary != nil && !boundary.CRS.Equal(work) {
		return nil, nil, fmt.Errorf("boundary CRS %s does not match working CRS %s", boundary.CRS, work)
	}

	var fallback spatial.CRS
	if src.CRS != "" {
		var err error
		fallback, err = spatial.ParseCRS(src.CRS)
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
	}

	paths, err := ResolvePaths(src, opts.BaseDir)
	if err != nil {
		return nil, nil, err
	}

	report := &SourceReport{Source: src.Name, Files: len(paths)}
	out := &models.Collection{CRS: work}
	for _, path := range paths {
		res, err := normalize.Load(ctx, path, normalize.Options{
			ScratchDir: opts.ScratchDir,
			Columns:    columns(src),
			CRS:        fallback,
			Source:     src.Name,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		report.Read += res.Read
		report.Repaired += res.Repaired

		t, err := spatial.NewTransformer(res.Collection.CRS, work)
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		var accepted []models.Polygon
		for _, p := range res.Collection.Polygons {
			if !Accept(p.Attributes, src.Accept) {
				continue
			}
			p.Geometry, err = spatial.ReprojectPolygon(p.Geometry, t)
			if err != nil {
				return nil, nil, fmt.Errorf("source %s: %w", src.Name, err)
			}
			p.Year = ParseYear(p.Attributes[src.Year.Column], src.Year)
			if p.Year == nil {
				report.NoYear++
			}
			p.Source = src.Name
			accepted = append(accepted, p)
		}
		report.Accepted += len(accepted)

		if boundary != nil {
			accepted = filter.Within(accepted, boundary)
		}
		report.Within += len(accepted)
		out.Polygons = append(out.Polygons, accepted...)
	}

	metrics.PolygonsDroppedTotal.WithLabelValues("ingest", "rejected").Add(float64(report.Read - report.Accepted))
	metrics.PolygonsDroppedTotal.WithLabelValues("ingest", "outside").Add(float64(report.Accepted - report.Within))

	log.Printf("[Ingest] %s: %d files, %d read, %d repaired, %d accepted, %d within, %d without year",
		src.Name, report.Files, report.Read, report.Repaired, report.Accepted, report.Within, report.NoYear)
	return out, report, nil
}

// ResolvePaths expands the source's paths and globs in declaration order
func ResolvePaths(src config.Source, baseDir string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range src.Paths {
		if baseDir != "" && !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("source %s: bad pattern %q: %w", src.Name, p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source %s: no files match %q", src.Name, p)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func columns(src config.Source) []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	add(src.Year.Column)
	for _, p := range src.Accept {
		add(p.Column)
	}
	return cols
}
