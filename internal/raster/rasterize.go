package raster

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/jengzang/regrowth-dataset/internal/metrics"
	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// ErrGeographicCRS is returned for data in degrees; reproject it first
var ErrGeographicCRS = errors.New("raster: geographic CRS, reproject to a projected CRS first")

// Options configures Rasterize
type Options struct {
	PixelSize float64
	// BurnValue is written inside polygons; zero means 1
	BurnValue uint8
	// Extent overrides the bounding box of the collection
	Extent *orb.Bound
	// AllTouched also burns every pixel the polygon boundary touches
	AllTouched bool
}

// Rasterize burns coll into a north-up mask. A pixel is burned when its
// centre lies inside a polygon (holes excluded).
func Rasterize(coll *models.Collection, opts Options) (*Mask, error) {
	geographic, err := coll.CRS.IsGeographic()
	if err != nil {
		return nil, err
	}
	if geographic {
		return nil, fmt.Errorf("%w: %s", ErrGeographicCRS, coll.CRS)
	}

	res := opts.PixelSize
	if !(res > 0) || math.IsInf(res, 0) {
		return nil, fmt.Errorf("pixel size must be positive, got %v", res)
	}
	burn := opts.BurnValue
	if burn == 0 {
		burn = 1
	}

	polys := coll.Geometries()
	var extent orb.Bound
	if opts.Extent != nil {
		extent = *opts.Extent
	} else {
		var ok bool
		extent, ok = spatial.BoundingBox(polys)
		if !ok {
			return nil, errors.New("nothing to rasterize: no polygons and no extent")
		}
	}

	width := int(math.Floor((extent.Max[0] - extent.Min[0]) / res))
	height := int(math.Floor((extent.Max[1] - extent.Min[1]) / res))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("extent %v is smaller than one pixel of %v", extent, res)
	}

	m := NewMask(width, height, NorthUp(extent.Min[0], extent.Max[1], res), coll.CRS)
	for _, p := range polys {
		fillPolygon(m, p, burn)
		if opts.AllTouched {
			burnBoundary(m, p, burn)
		}
	}

	burned := m.Count()
	metrics.PixelsBurnedTotal.Add(float64(burned))
	log.Printf("[Rasterizer] %dx%d mask at %v, %d polygons, %d pixels burned",
		width, height, res, len(polys), burned)
	return m, nil
}

// fillPolygon scans each pixel row at its centre line. Crossings of all rings
// are paired even-odd so holes stay empty.
func fillPolygon(m *Mask, p orb.Polygon, burn uint8) {
	xmin, ymax, res := m.Transform[0], m.Transform[3], m.Transform[1]
	b := p.Bound()

	r0 := int(math.Floor((ymax-b.Max[1])/res - 0.5))
	r1 := int(math.Ceil((ymax-b.Min[1])/res - 0.5))
	r0, r1 = max(r0, 0), min(r1, m.Height-1)

	var xs []float64
	for row := r0; row <= r1; row++ {
		y := m.Transform.PixelCenter(0, row)[1]
		xs = xs[:0]
		for _, ring := range p {
			for i := 0; i+1 < len(ring); i++ {
				a, c := ring[i], ring[i+1]
				if (a[1] <= y) == (c[1] <= y) {
					continue
				}
				xs = append(xs, a[0]+(y-a[1])*(c[0]-a[0])/(c[1]-a[1]))
			}
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			c0 := int(math.Ceil((xs[i]-xmin)/res - 0.5))
			c1 := int(math.Ceil((xs[i+1]-xmin)/res-0.5)) - 1
			c0, c1 = max(c0, 0), min(c1, m.Width-1)
			for col := c0; col <= c1; col++ {
				m.Data[row*m.Width+col] = burn
			}
		}
	}
}

// burnBoundary burns every pixel a ring edge passes through
func burnBoundary(m *Mask, p orb.Polygon, burn uint8) {
	xmin, ymax, res := m.Transform[0], m.Transform[3], m.Transform[1]
	for _, ring := range p {
		for i := 0; i+1 < len(ring); i++ {
			a, c := ring[i], ring[i+1]
			c0 := int(math.Floor((min(a[0], c[0]) - xmin) / res))
			c1 := int(math.Floor((max(a[0], c[0]) - xmin) / res))
			r0 := int(math.Floor((ymax - max(a[1], c[1])) / res))
			r1 := int(math.Floor((ymax - min(a[1], c[1])) / res))
			c0, c1 = max(c0, 0), min(c1, m.Width-1)
			r0, r1 = max(r0, 0), min(r1, m.Height-1)

			for row := r0; row <= r1; row++ {
				for col := c0; col <= c1; col++ {
					x0 := xmin + float64(col)*res
					y1 := ymax - float64(row)*res
					px := orb.Bound{Min: orb.Point{x0, y1 - res}, Max: orb.Point{x0 + res, y1}}
					if spatial.SegmentIntersectsBound(a, c, px) {
						m.Data[row*m.Width+col] = burn
					}
				}
			}
		}
	}
}
