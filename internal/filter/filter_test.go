package filter

import (
	"math"
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

func record(p orb.Polygon, year int, source string) models.Polygon {
	r := models.Polygon{Geometry: p, Source: source}
	if year != 0 {
		r.Year = models.YearPtr(year)
	}
	return r
}

func TestWithin(t *testing.T) {
	b, err := NewBoundary([]orb.Polygon{square(0, 0, 100)}, spatial.WebMercator)
	if err != nil {
		t.Fatalf("NewBoundary error: %v", err)
	}
	defer b.Close()

	inside := []models.Polygon{
		record(square(10, 10, 5), 2010, "a"),
		record(square(50, 50, 5), 2011, "b"),
		record(square(80, 10, 5), 2012, "c"),
	}
	got := Within(inside, b)
	if len(got) != len(inside) {
		t.Fatalf("len(Within) = %d, want %d", len(got), len(inside))
	}
	for i := range got {
		if got[i].Source != inside[i].Source {
			t.Errorf("Within[%d].Source = %q, want %q", i, got[i].Source, inside[i].Source)
		}
	}

	outside := []models.Polygon{
		record(square(200, 200, 5), 2010, "far"),
		record(square(95, 50, 10), 2010, "straddle"),
	}
	if got := Within(outside, b); len(got) != 0 {
		t.Errorf("Within(outside) = %d records, want 0", len(got))
	}
}

func TestClosedBoundaryContainsNothing(t *testing.T) {
	b, err := NewBoundary([]orb.Polygon{square(0, 0, 100)}, spatial.WebMercator)
	if err != nil {
		t.Fatalf("NewBoundary error: %v", err)
	}
	b.Close()
	b.Close()
	if b.Contains(square(10, 10, 5)) {
		t.Error("Contains after Close = true, want false")
	}
}

func TestMergeAndClean(t *testing.T) {
	big := square(0, 0, 40)
	first := &models.Collection{CRS: spatial.WebMercator, Polygons: []models.Polygon{
		record(big, 2015, "sicar"),
		// no year
		record(square(100, 0, 40), 0, "sicar"),
		// too recent
		record(square(200, 0, 40), 2021, "sicar"),
		// 961, too small
		record(square(300, 0, 31), 2010, "sicar"),
		// exactly 1000 is not above the floor
		record(orb.Polygon{{{400, 0}, {500, 0}, {500, 10}, {400, 10}, {400, 0}}}, 2010, "sicar"),
	}}
	second := &models.Collection{CRS: spatial.WebMercator, Polygons: []models.Polygon{
		// duplicate of the first record
		record(big.Clone(), 2016, "ibama"),
		record(square(600, 0, 40), 2012, "pacto"),
		record(square(700, 0, 50), 2013, "ibama"),
	}}

	out, report, err := MergeAndClean([]*models.Collection{first, second}, DefaultMergeOptions())
	if err != nil {
		t.Fatalf("MergeAndClean error: %v", err)
	}

	if len(out.Polygons) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out.Polygons))
	}
	if out.Polygons[0].Source != "sicar" || *out.Polygons[0].Year != 2015 {
		t.Errorf("first survivor = %s/%d, want sicar/2015", out.Polygons[0].Source, *out.Polygons[0].Year)
	}
	if out.Polygons[1].Source != "ibama" {
		t.Errorf("second survivor source = %s, want ibama", out.Polygons[1].Source)
	}

	want := MergeReport{Input: 8, NoYear: 1, Excluded: 2, Duplicates: 1, SmallArea: 2, Output: 2}
	got := *report
	got.Area = AreaStats{}
	if got != want {
		t.Errorf("report = %+v, want %+v", got, want)
	}
	if report.Area.Count != 2 || report.Area.Total != 1600+2500 {
		t.Errorf("area stats = %+v, want count 2 total 4100", report.Area)
	}
	if !out.CRS.Equal(spatial.WebMercator) {
		t.Errorf("CRS = %s, want EPSG:3857", out.CRS)
	}
}

func TestMergeReprojects(t *testing.T) {
	geo := &models.Collection{CRS: spatial.WGS84, Polygons: []models.Polygon{
		record(square(-45, -10, 0.01), 2010, "geo"),
	}}
	out, _, err := MergeAndClean([]*models.Collection{geo}, DefaultMergeOptions())
	if err != nil {
		t.Fatalf("MergeAndClean error: %v", err)
	}
	if len(out.Polygons) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out.Polygons))
	}
	x := out.Polygons[0].Geometry[0][0][0]
	if math.Abs(x-(-5009377.085697311)) > 1e-3 {
		t.Errorf("x = %v, want -5009377.086", x)
	}
}

func TestDedupIdempotent(t *testing.T) {
	records := []models.Polygon{
		record(square(0, 0, 10), 2010, "a"),
		record(square(0, 0, 10), 2011, "b"),
		record(square(5, 5, 10), 2012, "c"),
	}
	once, removed := Dedup(records)
	if removed != 1 || len(once) != 2 {
		t.Fatalf("Dedup = %d kept, %d removed; want 2, 1", len(once), removed)
	}
	if once[0].Source != "a" {
		t.Errorf("first kept = %q, want a", once[0].Source)
	}

	twice, removed := Dedup(once)
	if removed != 0 || len(twice) != len(once) {
		t.Errorf("second Dedup removed %d, want 0", removed)
	}
}

func TestAreaStats(t *testing.T) {
	s := areaStats([]float64{5, 1, 4, 2, 3})
	if s.Count != 5 || s.Total != 15 || s.Mean != 3 || s.Median != 3 {
		t.Errorf("areaStats = %+v", s)
	}
	if s.P90 != 5 {
		t.Errorf("P90 = %v, want 5", s.P90)
	}
	if got := areaStats(nil); got != (AreaStats{}) {
		t.Errorf("areaStats(nil) = %+v, want zero", got)
	}
}
