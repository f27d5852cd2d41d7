// Package normalize turns a raw vector source into clean single-part polygons.
package normalize

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/jengzang/regrowth-dataset/internal/vector"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// Options configures a normalization
type Options struct {
	// ScratchDir is the parent of temporary extraction directories; empty
	// means the OS temp dir
	ScratchDir string
	// Columns names the attributes to load from shapefiles
	Columns []string
	// CRS is used when the source declares none
	CRS spatial.CRS
	// Source labels log lines and metrics
	Source string
}

// Result is a normalized collection with its counts
type Result struct {
	Collection *models.Collection
	Read       int // single-part polygons after explode
	Repaired   int
	Dropped    int // non-polygonal parts and unrepairable polygons
}

// Normalize loads path and returns its polygons exploded and repaired
func Normalize(ctx context.Context, path string, opts Options) (*models.Collection, error) {
	res, err := Load(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return res.Collection, nil
}

// Load is Normalize with counts
func Load(ctx context.Context, path string, opts Options) (*Result, error) {
	src := path
	if isArchive(path) {
		dir, err := os.MkdirTemp(opts.ScratchDir, "normalize-")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch dir: %w", err)
		}
		defer os.RemoveAll(dir)

		src, err = extract(path, dir)
		if err != nil {
			return nil, err
		}
	}

	layer, err := vector.Read(src, vector.ReadOptions{Columns: opts.Columns})
	if err != nil {
		return nil, err
	}

	crs := layer.CRS
	if crs.IsZero() {
		crs = opts.CRS
	}
	if crs.IsZero() {
		return nil, fmt.Errorf("%w: %s declares no CRS", spatial.ErrUnknownCRS, path)
	}

	res := &Result{Collection: &models.Collection{CRS: crs}}
	for _, f := range layer.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		polys := Explode(f.Geometry)
		if len(polys) == 0 {
			res.Dropped++
			continue
		}
		for _, p := range polys {
			res.Read++
			fixed, repaired := Repair(p)
			if repaired {
				res.Repaired++
			}
			if len(fixed) == 0 {
				res.Dropped++
				continue
			}
			for _, fp := range fixed {
				res.Collection.Polygons = append(res.Collection.Polygons, models.Polygon{
					Geometry:   fp,
					Attributes: copyAttrs(f.Properties),
				})
			}
		}
	}

	label := opts.Source
	if label == "" {
		label = layer.Name
	}
	metrics.PolygonsReadTotal.WithLabelValues(label).Add(float64(res.Read))
	metrics.PolygonsRepairedTotal.WithLabelValues(label).Add(float64(res.Repaired))
	metrics.PolygonsDroppedTotal.WithLabelValues("normalize", "invalid").Add(float64(res.Dropped))

	log.Printf("[Normalizer] %s: %d features, %d polygons, %d repaired, %d dropped",
		label, len(layer.Features), len(res.Collection.Polygons), res.Repaired, res.Dropped)
	return res, nil
}

// Explode splits g into single-part polygons with closed rings. Points and
// lines yield nothing.
func Explode(g orb.Geometry) []orb.Polygon {
	switch g := g.(type) {
	case orb.Polygon:
		if p, ok := closePolygon(g); ok {
			return []orb.Polygon{p}
		}
	case orb.MultiPolygon:
		var out []orb.Polygon
		for _, p := range g {
			if cp, ok := closePolygon(p); ok {
				out = append(out, cp)
			}
		}
		return out
	case orb.Bound:
		return []orb.Polygon{g.ToPolygon()}
	case orb.Collection:
		var out []orb.Polygon
		for _, gg := range g {
			out = append(out, Explode(gg)...)
		}
		return out
	}
	return nil
}

func closePolygon(p orb.Polygon) (orb.Polygon, bool) {
	if len(p) == 0 || len(p[0]) == 0 {
		return nil, false
	}
	out := make(orb.Polygon, 0, len(p))
	for _, r := range p {
		if len(r) == 0 {
			continue
		}
		if !r.Closed() {
			r = append(r.Clone(), r[0])
		}
		out = append(out, r)
	}
	return out, true
}

// Repair returns p unchanged when valid. An invalid polygon is rebuilt with a
// zero-distance buffer and exploded again; an empty repair returns nothing.
func Repair(p orb.Polygon) (out []orb.Polygon, repaired bool) {
	data, err := wkb.Marshal(p)
	if err != nil {
		return nil, true
	}
	g, err := geos.NewGeomFromWKB(data)
	if err != nil {
		// GEOS rejects rings too short to close
		return nil, true
	}
	defer g.Destroy()

	if g.IsValid() {
		return []orb.Polygon{p}, false
	}

	fixed := g.Buffer(0, 8)
	defer fixed.Destroy()
	if fixed.IsEmpty() {
		return nil, true
	}

	rg, err := wkb.Unmarshal(fixed.ToWKB())
	if err != nil {
		return nil, true
	}
	return Explode(rg), true
}

func copyAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
