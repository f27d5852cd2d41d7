// Package grid samples chip locations on a regular grid over polygon data.
package grid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// DefaultInterArea is the minimum polygon area a cell must hold
const DefaultInterArea = 10000

// Params configures a sampling run
type Params struct {
	SpatialResolution float64
	// InterArea is the minimum intersection area, in CRS units squared, of
	// the single best polygon for a cell to be kept
	InterArea float64
	// TargetCRS reprojects the input first when set
	TargetCRS spatial.CRS
	SaveGrid  bool
}

// DefaultParams returns params for a resolution with the default InterArea
func DefaultParams(res float64) Params {
	return Params{SpatialResolution: res, InterArea: DefaultInterArea}
}

// Cell is a retained grid cell
type Cell struct {
	Row       int
	Col       int
	Bound     orb.Bound
	InterArea float64 // best single-polygon intersection area
}

// Result is the output of Sample
type Result struct {
	CRS    spatial.CRS
	Bound  orb.Bound
	Rows   int
	Cols   int
	Points []models.SamplePoint
	// Cells is filled only when SaveGrid is set
	Cells []Cell
}

// indexed is a polygon stored in the R-tree
type indexed struct {
	idx int
	b   *geom.Bounds
}

func (i *indexed) Bounds() *geom.Bounds { return i.b }

// Sample lays a grid over the bounding box of coll and keeps every cell whose
// largest intersection with a single polygon reaches InterArea. Points are
// the retained cell centres in row-major order.
func Sample(ctx context.Context, coll *models.Collection, p Params) (*Result, error) {
	res := p.SpatialResolution
	if !(res > 0) || math.IsInf(res, 0) {
		return nil, fmt.Errorf("spatial resolution must be positive, got %v", res)
	}
	if p.InterArea < 0 {
		return nil, errors.New("inter area must not be negative")
	}

	polys, crs, err := prepare(coll, p.TargetCRS)
	if err != nil {
		return nil, err
	}

	out := &Result{CRS: crs}
	bound, ok := spatial.BoundingBox(polys)
	if !ok {
		log.Printf("[GridSampler] No polygons, nothing to sample")
		return out, nil
	}

	dx := bound.Max[0] - bound.Min[0]
	dy := bound.Max[1] - bound.Min[1]
	out.Bound = bound
	out.Rows = int(math.Floor(dy/res)) + 1
	out.Cols = int(math.Floor(dx/res)) + 1
	xmin, ymin := bound.Min[0], bound.Min[1]

	tree := rtree.NewTree(25, 50)
	bounds := make([]orb.Bound, len(polys))
	for i, poly := range polys {
		bounds[i] = poly.Bound()
		tree.Insert(&indexed{idx: i, b: toBounds(bounds[i])})
	}

	hit := make([]bool, out.Cols)
	best := make([]float64, out.Cols)
	for row := 0; row < out.Rows; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		y0 := ymin + float64(row)*res
		band := orb.Bound{
			Min: orb.Point{xmin, y0},
			Max: orb.Point{xmin + float64(out.Cols)*res, y0 + res},
		}
		cands := candidates(tree, band, res)
		if len(cands) == 0 {
			continue
		}

		for c := range hit {
			hit[c], best[c] = false, 0
		}
		for _, i := range cands {
			pb := bounds[i]
			c0 := int(math.Floor((pb.Min[0]-xmin)/res)) - 1
			c1 := int(math.Floor((pb.Max[0] - xmin) / res))
			if c0 < 0 {
				c0 = 0
			}
			if c1 > out.Cols-1 {
				c1 = out.Cols - 1
			}
			for col := c0; col <= c1; col++ {
				cell := cellBound(xmin, ymin, res, row, col)
				if !cell.Intersects(pb) || !spatial.BoundIntersectsPolygon(cell, polys[i]) {
					continue
				}
				area := spatial.ClippedArea(cell, polys[i])
				if !hit[col] || area > best[col] {
					best[col] = area
				}
				hit[col] = true
			}
		}

		for col := 0; col < out.Cols; col++ {
			if !hit[col] || best[col] < p.InterArea {
				continue
			}
			cell := cellBound(xmin, ymin, res, row, col)
			out.Points = append(out.Points, models.SamplePoint{Row: row, Col: col, Point: cell.Center()})
			if p.SaveGrid {
				out.Cells = append(out.Cells, Cell{Row: row, Col: col, Bound: cell, InterArea: best[col]})
			}
		}
	}

	metrics.SamplingPointsTotal.Add(float64(len(out.Points)))
	log.Printf("[GridSampler] %dx%d grid at %v, %d polygons, %d cells retained",
		out.Rows, out.Cols, res, len(polys), len(out.Points))
	return out, nil
}

// prepare reprojects to the target CRS, then away from a geographic CRS
func prepare(coll *models.Collection, target spatial.CRS) ([]orb.Polygon, spatial.CRS, error) {
	if coll == nil {
		return nil, spatial.CRS{}, nil
	}
	polys := coll.Geometries()
	crs := coll.CRS

	if !target.IsZero() && !target.Equal(crs) {
		rp, err := reprojectAll(polys, crs, target)
		if err != nil {
			return nil, crs, err
		}
		polys, crs = rp, target
	}

	geographic, err := crs.IsGeographic()
	if err != nil {
		return nil, crs, err
	}
	if geographic {
		log.Printf("[GridSampler] Warning: %s is geographic, reprojecting to %s", crs, spatial.WebMercator)
		rp, err := reprojectAll(polys, crs, spatial.WebMercator)
		if err != nil {
			return nil, crs, err
		}
		polys, crs = rp, spatial.WebMercator
	}
	return polys, crs, nil
}

func reprojectAll(polys []orb.Polygon, src, dst spatial.CRS) ([]orb.Polygon, error) {
	t, err := spatial.NewTransformer(src, dst)
	if err != nil {
		return nil, err
	}
	out := make([]orb.Polygon, len(polys))
	for i, p := range polys {
		out[i], err = spatial.ReprojectPolygon(p, t)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// candidates returns the indices of polygons whose bounds touch band, sorted
func candidates(tree *rtree.Rtree, band orb.Bound, res float64) []int {
	eps := res * 1e-9
	q := &geom.Bounds{
		Min: geom.Point{X: band.Min[0] - eps, Y: band.Min[1] - eps},
		Max: geom.Point{X: band.Max[0] + eps, Y: band.Max[1] + eps},
	}
	found := tree.SearchIntersect(q)
	out := make([]int, 0, len(found))
	for _, f := range found {
		out = append(out, f.(*indexed).idx)
	}
	sort.Ints(out)
	return out
}

func cellBound(xmin, ymin, res float64, row, col int) orb.Bound {
	x0 := xmin + float64(col)*res
	y0 := ymin + float64(row)*res
	return orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x0 + res, y0 + res}}
}

func toBounds(b orb.Bound) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min[0], Y: b.Min[1]},
		Max: geom.Point{X: b.Max[0], Y: b.Max[1]},
	}
}
