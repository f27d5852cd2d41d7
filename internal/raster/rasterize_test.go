package raster

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

func square(x0, y0, side float64) orb.Polygon {
	return orb.Polygon{{
		{x0, y0}, {x0 + side, y0}, {x0 + side, y0 + side}, {x0, y0 + side}, {x0, y0},
	}}
}

func collection(crs spatial.CRS, polys ...orb.Polygon) *models.Collection {
	c := &models.Collection{CRS: crs}
	for _, p := range polys {
		c.Polygons = append(c.Polygons, models.Polygon{Geometry: p})
	}
	return c
}

func TestRasterizeBlock(t *testing.T) {
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{30, 30}}
	m, err := Rasterize(collection(spatial.WebMercator, square(10, 10, 10)), Options{PixelSize: 1, Extent: &extent})
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	if m.Width != 30 || m.Height != 30 {
		t.Fatalf("size = %dx%d, want 30x30", m.Width, m.Height)
	}
	want := Affine{0, 1, 0, 30, 0, -1}
	if m.Transform != want {
		t.Errorf("Transform = %v, want %v", m.Transform, want)
	}

	for row := 0; row < 30; row++ {
		for col := 0; col < 30; col++ {
			inside := row >= 10 && row < 20 && col >= 10 && col < 20
			got := m.At(col, row)
			if inside && got != 1 {
				t.Fatalf("At(%d, %d) = %d, want 1", col, row, got)
			}
			if !inside && got != 0 {
				t.Fatalf("At(%d, %d) = %d, want 0", col, row, got)
			}
		}
	}
	if m.Count() != 100 {
		t.Errorf("Count = %d, want 100", m.Count())
	}
}

func TestRasterizeGeographic(t *testing.T) {
	_, err := Rasterize(collection(spatial.WGS84, square(-45, -10, 1)), Options{PixelSize: 0.01})
	if !errors.Is(err, ErrGeographicCRS) {
		t.Errorf("Rasterize error = %v, want ErrGeographicCRS", err)
	}
}

func TestRasterizeDefaultsToBoundingBox(t *testing.T) {
	rect := orb.Polygon{{{100, 200}, {110, 200}, {110, 205}, {100, 205}, {100, 200}}}
	m, err := Rasterize(collection(spatial.WebMercator, rect), Options{PixelSize: 1, BurnValue: 255})
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	if m.Width != 10 || m.Height != 5 {
		t.Fatalf("size = %dx%d, want 10x5", m.Width, m.Height)
	}
	for i, v := range m.Data {
		if v != 255 {
			t.Fatalf("Data[%d] = %d, want 255", i, v)
		}
	}
	if b := m.Bound(); !b.Equal(rect.Bound()) {
		t.Errorf("Bound = %v, want %v", b, rect.Bound())
	}
}

func TestRasterizeFloorsSize(t *testing.T) {
	m, err := Rasterize(collection(spatial.WebMercator, square(0, 0, 10.9)), Options{PixelSize: 2})
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	if m.Width != 5 || m.Height != 5 {
		t.Errorf("size = %dx%d, want 5x5", m.Width, m.Height)
	}
}

func TestRasterizeHole(t *testing.T) {
	donut := orb.Polygon{square(0, 0, 10)[0], square(3, 3, 4)[0]}
	m, err := Rasterize(collection(spatial.WebMercator, donut), Options{PixelSize: 1})
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	if m.Count() != 100-16 {
		t.Errorf("Count = %d, want 84", m.Count())
	}
	if m.At(5, 5) != 0 {
		t.Error("hole pixel burned")
	}
}

func TestRasterizeAreaApproximation(t *testing.T) {
	var ring orb.Ring
	for i := 0; i <= 64; i++ {
		a := 2 * math.Pi * float64(i%64) / 64
		ring = append(ring, orb.Point{500 + 300*math.Cos(a), 500 + 300*math.Sin(a)})
	}
	disc := orb.Polygon{ring}
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 1000}}

	m, err := Rasterize(collection(spatial.WebMercator, disc), Options{PixelSize: 10, Extent: &extent})
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	got := float64(m.Count()) * 100
	want := spatial.PolygonArea(disc)
	if math.Abs(got-want)/want > 0.02 {
		t.Errorf("burned area = %v, want within 2%% of %v", got, want)
	}
}

func TestRasterizeAllTouched(t *testing.T) {
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{30, 30}}
	tiny := square(10.1, 10.1, 0.3)

	m, err := Rasterize(collection(spatial.WebMercator, tiny), Options{PixelSize: 1, Extent: &extent})
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("centre rule Count = %d, want 0", m.Count())
	}

	m, err = Rasterize(collection(spatial.WebMercator, tiny), Options{PixelSize: 1, Extent: &extent, AllTouched: true})
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	if m.Count() != 1 || m.At(10, 19) != 1 {
		t.Errorf("all touched Count = %d, At(10, 19) = %d; want 1, 1", m.Count(), m.At(10, 19))
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("/data/merged/regrowth.gpkg", "/data/out")
	if want := filepath.Join("/data/out", "regrowth.tif"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
}

func TestWriteUsesRegisteredWriter(t *testing.T) {
	var gotPath string
	RegisterWriter(".test", func(path string, m *Mask) error {
		gotPath = path
		return nil
	})
	m := NewMask(1, 1, NorthUp(0, 1, 1), spatial.WebMercator)
	if err := Write("mask.test", m); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if gotPath != "mask.test" {
		t.Errorf("writer got %q", gotPath)
	}
	if err := Write("mask.unknown", m); err == nil {
		t.Error("Write without a registered writer should fail")
	}
}
