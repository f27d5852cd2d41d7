package normalize

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/jengzang/regrowth-dataset/internal/vector"
	"github.com/paulmach/orb"
)

func square(x0, y0, side float64) orb.Polygon {
	return orb.Polygon{{
		{x0, y0}, {x0 + side, y0}, {x0 + side, y0 + side}, {x0, y0 + side}, {x0, y0},
	}}
}

func TestExplode(t *testing.T) {
	tests := []struct {
		name string
		in   orb.Geometry
		want int
	}{
		{"polygon", square(0, 0, 1), 1},
		{"multipolygon", orb.MultiPolygon{square(0, 0, 1), square(5, 5, 1)}, 2},
		{"point", orb.Point{1, 2}, 0},
		{"line", orb.LineString{{0, 0}, {1, 1}}, 0},
		{"collection", orb.Collection{orb.Point{0, 0}, square(0, 0, 1)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Explode(tt.in)); got != tt.want {
				t.Errorf("len(Explode) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExplodeClosesRings(t *testing.T) {
	open := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	out := Explode(open)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if !out[0][0].Closed() {
		t.Error("ring should be closed")
	}
	if len(open[0]) != 4 {
		t.Error("input ring was modified")
	}
}

func TestRepairValid(t *testing.T) {
	p := square(0, 0, 10)
	out, repaired := Repair(p)
	if repaired {
		t.Error("valid polygon reported as repaired")
	}
	if len(out) != 1 || !out[0].Equal(p) {
		t.Errorf("Repair(valid) = %v, want input unchanged", out)
	}
}

func TestRepairBowtie(t *testing.T) {
	bowtie := orb.Polygon{{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}
	out, repaired := Repair(bowtie)
	if !repaired {
		t.Error("bowtie should be repaired")
	}
	if len(out) == 0 {
		t.Fatal("repair dropped the bowtie entirely")
	}
	for i, p := range out {
		if spatial.PolygonArea(p) <= 0 {
			t.Errorf("part %d has zero area", i)
		}
	}
}

func TestRepairCollapsed(t *testing.T) {
	// a zero-area sliver buffers to nothing
	sliver := orb.Polygon{{{0, 0}, {10, 0}, {5, 0}, {0, 0}}}
	out, repaired := Repair(sliver)
	if !repaired {
		t.Error("sliver should be reported as repaired")
	}
	if len(out) != 0 {
		t.Errorf("Repair(sliver) = %v, want nothing", out)
	}
}

func writeLayer(t *testing.T, path string, layer *vector.Layer) {
	t.Helper()
	if err := vector.Write(path, layer); err != nil {
		t.Fatalf("vector.Write error: %v", err)
	}
}

func TestLoadExplodesAndKeepsAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "areas.geojson")
	writeLayer(t, path, &vector.Layer{
		CRS: spatial.EPSG(4674),
		Features: []vector.Feature{
			{Geometry: orb.MultiPolygon{square(0, 0, 1), square(5, 5, 1)}, Properties: map[string]string{"ano": "2012"}},
			{Geometry: orb.Point{3, 3}, Properties: map[string]string{"ano": "2013"}},
		},
	})

	res, err := Load(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !res.Collection.CRS.Equal(spatial.EPSG(4674)) {
		t.Errorf("CRS = %s, want EPSG:4674", res.Collection.CRS)
	}
	if len(res.Collection.Polygons) != 2 {
		t.Fatalf("polygons = %d, want 2", len(res.Collection.Polygons))
	}
	for _, p := range res.Collection.Polygons {
		if p.Attributes["ano"] != "2012" {
			t.Errorf("ano = %q, want 2012", p.Attributes["ano"])
		}
	}
	if res.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", res.Dropped)
	}
}

func writeZip(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadArchiveRemovesScratch(t *testing.T) {
	dir := t.TempDir()
	member := filepath.Join(dir, "member.geojson")
	writeLayer(t, member, &vector.Layer{
		CRS:      spatial.WGS84,
		Features: []vector.Feature{{Geometry: square(0, 0, 1)}},
	})
	data, err := os.ReadFile(member)
	if err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(dir, "areas.kmz")
	writeZip(t, archive, map[string][]byte{"files/areas.geojson": data, "readme.txt": []byte("x")})

	scratch := t.TempDir()
	coll, err := Normalize(context.Background(), archive, Options{ScratchDir: scratch})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(coll.Polygons) != 1 {
		t.Errorf("polygons = %d, want 1", len(coll.Polygons))
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned: %d entries left", len(entries))
	}
}

func TestLoadEmptyArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "empty.zip")
	writeZip(t, archive, map[string][]byte{"readme.txt": []byte("nothing here")})

	scratch := t.TempDir()
	_, err := Load(context.Background(), archive, Options{ScratchDir: scratch})
	if !errors.Is(err, ErrEmptyArchive) {
		t.Errorf("Load error = %v, want ErrEmptyArchive", err)
	}
	entries, _ := os.ReadDir(scratch)
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned after failure: %d entries left", len(entries))
	}
}

func TestLoadCorruptArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "broken.kmz")
	if err := os.WriteFile(archive, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), archive, Options{ScratchDir: t.TempDir()}); err == nil {
		t.Error("Load(corrupt archive) should fail")
	}
}
