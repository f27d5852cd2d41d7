package filter

import (
	"context"
	"fmt"
	"log"

	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/normalize"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// Boundary is a prepared region for repeated "within" tests
type Boundary struct {
	CRS  spatial.CRS
	geom *geos.Geom
	prep *geos.PrepGeom
}

// NewBoundary unions polys into one prepared region
func NewBoundary(polys []orb.Polygon, crs spatial.CRS) (*Boundary, error) {
	if len(polys) == 0 {
		return nil, fmt.Errorf("boundary has no polygons")
	}

	data, err := wkb.Marshal(orb.MultiPolygon(polys))
	if err != nil {
		return nil, fmt.Errorf("failed to encode boundary: %w", err)
	}
	g, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("failed to build boundary: %w", err)
	}
	if !g.IsValid() {
		fixed := g.Buffer(0, 8)
		g.Destroy()
		g = fixed
	}

	return &Boundary{CRS: crs, geom: g, prep: g.Prepare()}, nil
}

// LoadBoundary reads a boundary dataset and reprojects it to crs
func LoadBoundary(ctx context.Context, path string, crs spatial.CRS, scratchDir string) (*Boundary, error) {
	coll, err := normalize.Normalize(ctx, path, normalize.Options{ScratchDir: scratchDir, Source: "boundary"})
	if err != nil {
		return nil, fmt.Errorf("failed to load boundary: %w", err)
	}

	t, err := spatial.NewTransformer(coll.CRS, crs)
	if err != nil {
		return nil, err
	}
	polys := make([]orb.Polygon, 0, len(coll.Polygons))
	for _, p := range coll.Polygons {
		rp, err := spatial.ReprojectPolygon(p.Geometry, t)
		if err != nil {
			return nil, fmt.Errorf("failed to reproject boundary: %w", err)
		}
		polys = append(polys, rp)
	}

	log.Printf("[SpatialFilter] Boundary %s loaded: %d polygons in %s", path, len(polys), crs)
	return NewBoundary(polys, crs)
}

// Contains reports whether p lies entirely inside the boundary
func (b *Boundary) Contains(p orb.Polygon) bool {
	if b.prep == nil {
		return false
	}
	data, err := wkb.Marshal(p)
	if err != nil {
		return false
	}
	g, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return false
	}
	defer g.Destroy()
	return b.prep.Contains(g)
}

// Close releases the GEOS geometry. A closed boundary contains nothing.
func (b *Boundary) Close() {
	b.prep = nil
	if b.geom != nil {
		b.geom.Destroy()
		b.geom = nil
	}
}

// Within keeps the records entirely inside the boundary, in input order.
// Straddling records are dropped, not clipped.
func Within(records []models.Polygon, boundary *Boundary) []models.Polygon {
	out := make([]models.Polygon, 0, len(records))
	for _, r := range records {
		if boundary.Contains(r.Geometry) {
			out = append(out, r)
		}
	}
	return out
}
