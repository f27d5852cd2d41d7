package vector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

func TestReadUnsupportedFormat(t *testing.T) {
	_, err := Read("areas.xyz", ReadOptions{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Read(.xyz) error = %v, want ErrUnsupportedFormat", err)
	}
	if err := Write("areas.xyz", &Layer{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Write(.xyz) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestGeoJSONKeepsCRS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "areas.geojson")
	in := &Layer{
		CRS: spatial.WebMercator,
		Features: []Feature{{
			Geometry:   orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}},
			Properties: map[string]string{"ano": "2015"},
		}},
	}
	if err := Write(path, in); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out, err := Read(path, ReadOptions{})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !out.CRS.Equal(spatial.WebMercator) {
		t.Errorf("CRS = %s, want EPSG:3857", out.CRS)
	}
	if out.Name != "areas" {
		t.Errorf("Name = %q, want areas", out.Name)
	}
	if len(out.Features) != 1 {
		t.Fatalf("len(Features) = %d, want 1", len(out.Features))
	}
	if got := out.Features[0].Properties["ano"]; got != "2015" {
		t.Errorf("ano = %q, want 2015", got)
	}
}

func TestGeoJSONDefaultsToWGS84(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.geojson")
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-47,-22]},
		 "properties":{"year":2014,"ok":true,"note":null}}
	]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	layer, err := Read(path, ReadOptions{})
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !layer.CRS.Equal(spatial.WGS84) {
		t.Errorf("CRS = %s, want EPSG:4326", layer.CRS)
	}
	props := layer.Features[0].Properties
	if props["year"] != "2014" {
		t.Errorf("year = %q, want 2014", props["year"])
	}
	if props["ok"] != "true" {
		t.Errorf("ok = %q, want true", props["ok"])
	}
	if _, ok := props["note"]; ok {
		t.Error("null property should be absent")
	}
}

func TestSplitShells(t *testing.T) {
	shell := geom.Path{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := geom.Path{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	other := geom.Path{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}}

	mp := splitShells(geom.Polygon{shell, hole, other})
	if len(mp) != 2 {
		t.Fatalf("len = %d, want 2", len(mp))
	}
	if len(mp[0]) != 2 {
		t.Errorf("first polygon rings = %d, want 2", len(mp[0]))
	}
	if len(mp[1]) != 1 {
		t.Errorf("second polygon rings = %d, want 1", len(mp[1]))
	}
}

func TestFormats(t *testing.T) {
	want := map[string]bool{".geojson": true, ".json": true, ".shp": true}
	for _, ext := range Formats() {
		delete(want, ext)
	}
	if len(want) != 0 {
		t.Errorf("missing built-in formats: %v", want)
	}
}
