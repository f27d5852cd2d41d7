package spatial

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

func square(x0, y0, side float64) orb.Polygon {
	return orb.Polygon{{
		{x0, y0}, {x0 + side, y0}, {x0 + side, y0 + side}, {x0, y0 + side}, {x0, y0},
	}}
}

func TestPolygonArea(t *testing.T) {
	p := square(0, 0, 10)
	if got := PolygonArea(p); got != 100 {
		t.Errorf("PolygonArea = %v, want 100", got)
	}

	withHole := orb.Polygon{p[0], square(2, 2, 3)[0]}
	if got := PolygonArea(withHole); got != 91 {
		t.Errorf("PolygonArea(with hole) = %v, want 91", got)
	}

	// clockwise rings give the same unsigned area
	cw := orb.Polygon{{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}}
	if got := PolygonArea(cw); got != 100 {
		t.Errorf("PolygonArea(cw) = %v, want 100", got)
	}
}

func TestBoundingBox(t *testing.T) {
	if _, ok := BoundingBox(nil); ok {
		t.Error("BoundingBox(nil) should not be ok")
	}

	b, ok := BoundingBox([]orb.Polygon{square(0, 0, 10), square(50, -5, 5)})
	if !ok {
		t.Fatal("BoundingBox should be ok")
	}
	want := orb.Bound{Min: orb.Point{0, -5}, Max: orb.Point{55, 10}}
	if !b.Equal(want) {
		t.Errorf("BoundingBox = %v, want %v", b, want)
	}
}

func TestClippedArea(t *testing.T) {
	p := square(0, 0, 150)
	tests := []struct {
		name string
		cell orb.Bound
		want float64
	}{
		{"full", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}, 10000},
		{"half", orb.Bound{Min: orb.Point{100, 0}, Max: orb.Point{200, 100}}, 5000},
		{"quarter", orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{200, 200}}, 2500},
		{"edge contact", orb.Bound{Min: orb.Point{150, 0}, Max: orb.Point{250, 100}}, 0},
		{"disjoint", orb.Bound{Min: orb.Point{300, 300}, Max: orb.Point{400, 400}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClippedArea(tt.cell, p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ClippedArea = %v, want %v", got, tt.want)
			}
		})
	}

	// the input polygon must stay untouched
	if got := PolygonArea(p); got != 22500 {
		t.Errorf("input area after clipping = %v, want 22500", got)
	}
}

func TestBoundIntersectsPolygon(t *testing.T) {
	p := square(0, 0, 150)
	tests := []struct {
		name string
		cell orb.Bound
		want bool
	}{
		{"overlap", orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{200, 200}}, true},
		{"edge contact", orb.Bound{Min: orb.Point{150, 0}, Max: orb.Point{250, 100}}, true},
		{"corner contact", orb.Bound{Min: orb.Point{150, 150}, Max: orb.Point{250, 250}}, true},
		{"inside", orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{20, 20}}, true},
		{"disjoint", orb.Bound{Min: orb.Point{151, 0}, Max: orb.Point{250, 100}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BoundIntersectsPolygon(tt.cell, p); got != tt.want {
				t.Errorf("BoundIntersectsPolygon = %v, want %v", got, tt.want)
			}
		})
	}

	// a cell sitting entirely in a hole does not intersect
	donut := orb.Polygon{square(0, 0, 100)[0], square(20, 20, 60)[0]}
	hole := orb.Bound{Min: orb.Point{30, 30}, Max: orb.Point{40, 40}}
	if BoundIntersectsPolygon(hole, donut) {
		t.Error("cell inside hole should not intersect")
	}
}

func TestParseCRS(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"EPSG:4326", 4326},
		{"epsg:3857", 3857},
		{"urn:ogc:def:crs:EPSG::31984", 31984},
		{"4674", 4674},
	}
	for _, tt := range tests {
		got, err := ParseCRS(tt.in)
		if err != nil {
			t.Fatalf("ParseCRS(%q) error: %v", tt.in, err)
		}
		if got.Code != tt.want {
			t.Errorf("ParseCRS(%q).Code = %d, want %d", tt.in, got.Code, tt.want)
		}
	}

	c, err := ParseCRS("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil || c.Code != 0 || c.Def == "" {
		t.Errorf("ParseCRS(proj4) = %+v, %v", c, err)
	}

	if _, err := ParseCRS("not a crs"); !errors.Is(err, ErrUnknownCRS) {
		t.Errorf("ParseCRS(garbage) error = %v, want ErrUnknownCRS", err)
	}
}

func TestIsGeographic(t *testing.T) {
	tests := []struct {
		crs  CRS
		want bool
	}{
		{WGS84, true},
		{EPSG(4674), true},
		{WebMercator, false},
		{EPSG(31984), false},
	}
	for _, tt := range tests {
		got, err := tt.crs.IsGeographic()
		if err != nil {
			t.Fatalf("IsGeographic(%s) error: %v", tt.crs, err)
		}
		if got != tt.want {
			t.Errorf("IsGeographic(%s) = %v, want %v", tt.crs, got, tt.want)
		}
	}

	if _, err := EPSG(99999).IsGeographic(); !errors.Is(err, ErrUnknownCRS) {
		t.Errorf("IsGeographic(EPSG:99999) error = %v, want ErrUnknownCRS", err)
	}
}

func TestReprojectToWebMercator(t *testing.T) {
	tr, err := NewTransformer(WGS84, WebMercator)
	if err != nil {
		t.Fatalf("NewTransformer error: %v", err)
	}

	g, err := Reproject(orb.Point{-45, 0}, tr)
	if err != nil {
		t.Fatalf("Reproject error: %v", err)
	}
	p := g.(orb.Point)
	if math.Abs(p[0]-(-5009377.085697311)) > 1e-3 || math.Abs(p[1]) > 1e-3 {
		t.Errorf("Reproject = %v, want (-5009377.086, 0)", p)
	}
}

func TestReprojectIdentity(t *testing.T) {
	tr, err := NewTransformer(WebMercator, EPSG(3857))
	if err != nil {
		t.Fatalf("NewTransformer error: %v", err)
	}
	in := square(10, 20, 5)
	out, err := ReprojectPolygon(in, tr)
	if err != nil {
		t.Fatalf("ReprojectPolygon error: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("identity reprojection changed polygon: %v", out)
	}
}

func TestGeohash(t *testing.T) {
	if got := Geohash(orb.Point{-5.6, 42.6}, 5); got != "ezs42" {
		t.Errorf("Geohash = %q, want ezs42", got)
	}

	b := GeohashBound("ezs42")
	if !b.Contains(orb.Point{-5.6, 42.6}) {
		t.Errorf("GeohashBound(ezs42) = %v should contain the encoded point", b)
	}
}

func TestBufferBounds(t *testing.T) {
	b := BufferBounds(orb.Point{-47.0, -22.0}, 2000)

	center := s2.LatLngFromDegrees(-22.0, -47.0)
	north := s2.LatLngFromDegrees(b.Max[1], -47.0)
	if d := center.Distance(north).Radians() * EarthRadiusMeters; math.Abs(d-2000) > 1 {
		t.Errorf("north edge distance = %v, want 2000", d)
	}
	east := s2.LatLngFromDegrees(-22.0, b.Max[0])
	if d := center.Distance(east).Radians() * EarthRadiusMeters; d < 2000 {
		t.Errorf("east edge distance = %v, want >= 2000", d)
	}
}
