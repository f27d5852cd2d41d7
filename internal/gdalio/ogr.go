package gdalio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/jengzang/regrowth-dataset/internal/vector"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// ReadOGR loads every layer of an OGR dataset into one layer. The CRS of the
// first layer that declares one wins.
func ReadOGR(path string, _ vector.ReadOptions) (*vector.Layer, error) {
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer ds.Close()

	out := &vector.Layer{}
	for _, l := range ds.Layers() {
		if out.CRS.IsZero() {
			if sr := l.SpatialRef(); sr != nil {
				out.CRS, err = crsOf(sr)
				sr.Close()
				if err != nil {
					return nil, err
				}
			}
		}

		for {
			f := l.NextFeature()
			if f == nil {
				break
			}
			feat, ok := readFeature(f)
			f.Close()
			if ok {
				out.Features = append(out.Features, feat)
			}
		}
	}
	return out, nil
}

func readFeature(f *godal.Feature) (vector.Feature, bool) {
	g := f.Geometry()
	if g == nil {
		return vector.Feature{}, false
	}
	defer g.Close()

	data, err := g.WKB()
	if err != nil || len(data) == 0 {
		return vector.Feature{}, false
	}
	og, err := wkb.Unmarshal(data)
	if err != nil {
		return vector.Feature{}, false
	}

	props := make(map[string]string)
	for name, field := range f.Fields() {
		if v := field.String(); v != "" {
			props[name] = v
		}
	}
	return vector.Feature{Geometry: og, Properties: props}, true
}

// WriteOGR writes the layer geometries with the OGR driver of the extension.
// Attributes are not persisted; use GeoJSON when they matter.
func WriteOGR(path string, layer *vector.Layer) error {
	driver, ok := ogrDrivers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("%w: %s", vector.ErrUnsupportedFormat, path)
	}
	if err := removeExisting(path); err != nil {
		return err
	}

	sr, err := spatialRef(layer.CRS)
	if err != nil {
		return err
	}
	defer sr.Close()

	ds, err := godal.CreateVector(driver, path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	name := layer.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	l, err := ds.CreateLayer(name, sr, geometryType(layer))
	if err != nil {
		ds.Close()
		return fmt.Errorf("failed to create layer %s: %w", name, err)
	}

	for _, f := range layer.Features {
		data, err := wkb.Marshal(f.Geometry)
		if err != nil {
			ds.Close()
			return fmt.Errorf("failed to encode geometry: %w", err)
		}
		g, err := godal.NewGeometryFromWKB(data, sr)
		if err != nil {
			ds.Close()
			return fmt.Errorf("failed to build geometry: %w", err)
		}
		nf, err := l.NewFeature(g)
		g.Close()
		if err != nil {
			ds.Close()
			return fmt.Errorf("failed to add feature: %w", err)
		}
		nf.Close()
	}
	return ds.Close()
}

func geometryType(layer *vector.Layer) godal.GeometryType {
	if len(layer.Features) == 0 {
		return godal.GTUnknown
	}
	switch layer.Features[0].Geometry.(type) {
	case orb.Point:
		return godal.GTPoint
	case orb.Polygon:
		return godal.GTPolygon
	case orb.MultiPolygon:
		return godal.GTMultiPolygon
	}
	return godal.GTUnknown
}
