package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jengzang/regrowth-dataset/internal/config"
	"github.com/jengzang/regrowth-dataset/internal/filter"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/jengzang/regrowth-dataset/internal/vector"
	"github.com/paulmach/orb"
)

func TestParseYear(t *testing.T) {
	tests := []struct {
		raw    string
		format string
		want   int // 0 means nil
	}{
		{"2015", "", 2015},
		{"2015.0", "auto", 2015},
		{"0", "auto", 0},
		{"", "auto", 0},
		{"1850", "auto", 0},
		{"2014-03-01", "auto", 2014},
		{"2013-06-01T00:00:00Z", "auto", 2013},
		{"12/05/2014", "auto", 2014},
		{"2015/2019", "auto", 2015},
		{"Click 2016 - 2018", "auto", 2018},
		{"unknown", "auto", 0},
		{"2015/2019", "prefix", 2015},
		{"plantio_2017", "suffix", 2017},
		{"12/05/14", "yy", 2014},
		{"12/05/14", "auto", 0},
		{"2015", "none", 0},
	}
	for _, tt := range tests {
		got := ParseYear(tt.raw, config.YearSpec{Format: tt.format})
		switch {
		case tt.want == 0 && got != nil:
			t.Errorf("ParseYear(%q, %s) = %d, want nil", tt.raw, tt.format, *got)
		case tt.want != 0 && got == nil:
			t.Errorf("ParseYear(%q, %s) = nil, want %d", tt.raw, tt.format, tt.want)
		case tt.want != 0 && *got != tt.want:
			t.Errorf("ParseYear(%q, %s) = %d, want %d", tt.raw, tt.format, *got, tt.want)
		}
	}

	if got := ParseYear("", config.YearSpec{Format: "constant", Value: 2011}); got == nil || *got != 2011 {
		t.Errorf("ParseYear(constant 2011) = %v, want 2011", got)
	}
	if got := ParseYear("", config.YearSpec{Format: "constant"}); got != nil {
		t.Errorf("ParseYear(constant 0) = %d, want nil", *got)
	}
}

func TestAccept(t *testing.T) {
	attrs := map[string]string{"status": "ativo", "area": "12.5", "data": "2018-02-01"}
	tests := []struct {
		name string
		pred config.Predicate
		want bool
	}{
		{"eq", config.Predicate{Column: "status", Op: "eq", Values: []string{"ativo"}}, true},
		{"ne", config.Predicate{Column: "status", Op: "ne", Values: []string{"ativo"}}, false},
		{"in", config.Predicate{Column: "status", Op: "in", Values: []string{"x", "ativo"}}, true},
		{"not_in", config.Predicate{Column: "status", Op: "not_in", Values: []string{"cancelado"}}, true},
		{"not_null missing", config.Predicate{Column: "obs", Op: "not_null"}, false},
		{"not_null present", config.Predicate{Column: "status", Op: "not_null"}, true},
		{"gt", config.Predicate{Column: "area", Op: "gt", Values: []string{"10"}}, true},
		{"lt", config.Predicate{Column: "area", Op: "lt", Values: []string{"10"}}, false},
		{"gt non-numeric", config.Predicate{Column: "status", Op: "gt", Values: []string{"1"}}, false},
		{"year_lt", config.Predicate{Column: "data", Op: "year_lt", Values: []string{"2020"}}, true},
		{"year_lt missing", config.Predicate{Column: "obs", Op: "year_lt", Values: []string{"2020"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accept(attrs, []config.Predicate{tt.pred}); got != tt.want {
				t.Errorf("Accept = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidatePredicates(t *testing.T) {
	bad := [][]config.Predicate{
		{{Column: "a", Op: "like", Values: []string{"x"}}},
		{{Column: "a", Op: "eq"}},
		{{Op: "not_null"}},
		{{Column: "a", Op: "gt", Values: []string{"ten"}}},
	}
	for i, preds := range bad {
		if err := ValidatePredicates(preds); err == nil {
			t.Errorf("case %d: ValidatePredicates should fail", i)
		}
	}
	if err := ValidatePredicates([]config.Predicate{{Column: "a", Op: "not_null"}}); err != nil {
		t.Errorf("ValidatePredicates(not_null) error: %v", err)
	}
}

func square(x0, y0, side float64) orb.Polygon {
	return orb.Polygon{{
		{x0, y0}, {x0 + side, y0}, {x0 + side, y0 + side}, {x0, y0 + side}, {x0, y0},
	}}
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()
	layer := &vector.Layer{
		CRS: spatial.WGS84,
		Features: []vector.Feature{
			{Geometry: square(-45, -20, 0.1), Properties: map[string]string{"ano": "2015", "status": "ativo"}},
			{Geometry: square(-44, -20, 0.1), Properties: map[string]string{"ano": "", "status": "ativo"}},
			{Geometry: square(-43, -20, 0.1), Properties: map[string]string{"ano": "2016", "status": "cancelado"}},
			{Geometry: square(-10, -20, 0.1), Properties: map[string]string{"ano": "2017", "status": "ativo"}},
		},
	}
	if err := vector.Write(filepath.Join(dir, "part1.geojson"), layer); err != nil {
		t.Fatal(err)
	}

	boundary, err := filter.NewBoundary([]orb.Polygon{square(-50, -25, 10)}, spatial.WGS84)
	if err != nil {
		t.Fatal(err)
	}
	defer boundary.Close()

	src := config.Source{
		Name:   "sicar",
		Paths:  []string{"*.geojson"},
		Year:   config.YearSpec{Column: "ano"},
		Accept: []config.Predicate{{Column: "status", Op: "eq", Values: []string{"ativo"}}},
	}
	coll, report, err := Ingest(context.Background(), src, boundary, Options{BaseDir: dir, WorkCRS: spatial.WGS84})
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}

	want := SourceReport{Source: "sicar", Files: 1, Read: 4, Accepted: 3, NoYear: 1, Within: 2}
	if *report != want {
		t.Errorf("report = %+v, want %+v", *report, want)
	}
	if len(coll.Polygons) != 2 {
		t.Fatalf("polygons = %d, want 2", len(coll.Polygons))
	}
	p := coll.Polygons[0]
	if p.Source != "sicar" || p.Year == nil || *p.Year != 2015 {
		t.Errorf("first polygon = %s/%v, want sicar/2015", p.Source, p.Year)
	}
	if coll.Polygons[1].Year != nil {
		t.Errorf("second polygon year = %d, want nil", *coll.Polygons[1].Year)
	}
}

func TestResolvePathsNoMatch(t *testing.T) {
	src := config.Source{Name: "x", Paths: []string{"missing/*.kmz"}}
	if _, err := ResolvePaths(src, t.TempDir()); err == nil {
		t.Error("ResolvePaths should fail when nothing matches")
	}
}
