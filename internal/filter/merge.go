package filter

import (
	"fmt"
	"log"
	"sort"

	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb/encoding/wkb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MergeOptions configures MergeAndClean
type MergeOptions struct {
	// MaxYear drops records with year >= MaxYear; zero disables it
	MaxYear int
	// ExcludeSources drops records by provenance tag
	ExcludeSources []string
	// MergeCRS is the CRS of the merged output
	MergeCRS spatial.CRS
	// A record survives when area / AreaDivisor > AreaFloor
	AreaDivisor float64
	AreaFloor   float64
}

// DefaultMergeOptions returns the options of the reference dataset build
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		MaxYear:        2020,
		ExcludeSources: []string{"pacto"},
		MergeCRS:       spatial.WebMercator,
		AreaDivisor:    1000,
		AreaFloor:      1,
	}
}

// AreaStats summarises retained polygon areas in CRS units squared
type AreaStats struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

// MergeReport counts the records removed at each step
type MergeReport struct {
	Input      int       `json:"input"`
	NoYear     int       `json:"no_year"`
	Excluded   int       `json:"excluded"`
	Duplicates int       `json:"duplicates"`
	SmallArea  int       `json:"small_area"`
	Output     int       `json:"output"`
	Area       AreaStats `json:"area"`
}

// MergeAndClean concatenates the collections in order, drops records with no
// year or excluded by opts, removes exact-geometry duplicates keeping the
// first, and drops polygons at or below the area floor.
func MergeAndClean(collections []*models.Collection, opts MergeOptions) (*models.Collection, *MergeReport, error) {
	crs := opts.MergeCRS
	if crs.IsZero() {
		crs = spatial.WebMercator
	}
	divisor := opts.AreaDivisor
	if divisor == 0 {
		divisor = 1000
	}
	excluded := make(map[string]bool, len(opts.ExcludeSources))
	for _, s := range opts.ExcludeSources {
		excluded[s] = true
	}

	report := &MergeReport{}
	var all []models.Polygon
	for _, c := range collections {
		if c == nil {
			continue
		}
		t, err := spatial.NewTransformer(c.CRS, crs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to merge collection: %w", err)
		}
		for _, p := range c.Polygons {
			rp, err := spatial.ReprojectPolygon(p.Geometry, t)
			if err != nil {
				return nil, nil, err
			}
			q := p
			q.Geometry = rp
			all = append(all, q)
		}
	}
	report.Input = len(all)

	kept := all[:0]
	for _, p := range all {
		switch {
		case p.Year == nil:
			report.NoYear++
		case opts.MaxYear > 0 && *p.Year >= opts.MaxYear:
			report.Excluded++
		case excluded[p.Source]:
			report.Excluded++
		default:
			kept = append(kept, p)
		}
	}

	kept, report.Duplicates = Dedup(kept)

	var areas []float64
	out := make([]models.Polygon, 0, len(kept))
	for _, p := range kept {
		area := spatial.PolygonArea(p.Geometry)
		if area/divisor > opts.AreaFloor {
			out = append(out, p)
			areas = append(areas, area)
			continue
		}
		report.SmallArea++
	}
	report.Output = len(out)
	report.Area = areaStats(areas)

	metrics.PolygonsDroppedTotal.WithLabelValues("merge", "no_year").Add(float64(report.NoYear))
	metrics.PolygonsDroppedTotal.WithLabelValues("merge", "excluded").Add(float64(report.Excluded))
	metrics.PolygonsDroppedTotal.WithLabelValues("merge", "duplicate").Add(float64(report.Duplicates))
	metrics.PolygonsDroppedTotal.WithLabelValues("merge", "small_area").Add(float64(report.SmallArea))

	log.Printf("[Merge] %d in, %d no year, %d excluded, %d duplicates, %d small, %d out",
		report.Input, report.NoYear, report.Excluded, report.Duplicates, report.SmallArea, report.Output)

	return &models.Collection{CRS: crs, Polygons: out}, report, nil
}

// Dedup removes exact-geometry duplicates; the first occurrence wins
func Dedup(records []models.Polygon) ([]models.Polygon, int) {
	seen := make(map[string]bool, len(records))
	out := make([]models.Polygon, 0, len(records))
	for _, r := range records {
		key, err := wkb.Marshal(r.Geometry)
		if err != nil {
			out = append(out, r)
			continue
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

func areaStats(areas []float64) AreaStats {
	if len(areas) == 0 {
		return AreaStats{}
	}
	sorted := append([]float64(nil), areas...)
	sort.Float64s(sorted)
	return AreaStats{
		Count:  len(sorted),
		Total:  floats.Sum(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
}
