package vector

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

func init() {
	RegisterReader(".shp", ReadShapefile)
}

// ReadShapefile decodes a shapefile and the named attribute columns. The CRS
// comes from the sidecar .prj file; a shapefile without one has a zero CRS.
func ReadShapefile(path string, opts ReadOptions) (*Layer, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer dec.Close()

	layer := &Layer{}
	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if data, err := os.ReadFile(prj); err == nil {
		layer.CRS, err = spatial.ParseCRS(string(data))
		if err != nil {
			return nil, err
		}
	}

	for {
		g, fields, more := dec.DecodeRowFields(opts.Columns...)
		if !more {
			break
		}
		og, err := fromGeom(g)
		if err != nil {
			return nil, err
		}
		props := make(map[string]string, len(fields))
		for k, v := range fields {
			if v = strings.TrimSpace(v); v != "" {
				props[k] = v
			}
		}
		layer.Features = append(layer.Features, Feature{Geometry: og, Properties: props})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("failed to decode shapefile: %w", err)
	}
	return layer, nil
}

// fromGeom converts a decoded shape to orb. Shapefile polygons store all
// rings flat: clockwise rings are shells and counter-clockwise rings are holes
// of the preceding shell.
func fromGeom(g geom.Geom) (orb.Geometry, error) {
	switch g := g.(type) {
	case geom.Point:
		return orb.Point{g.X, g.Y}, nil
	case geom.MultiPoint:
		mp := make(orb.MultiPoint, len(g))
		for i, p := range g {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp, nil
	case geom.LineString:
		return orb.LineString(toPoints(g)), nil
	case geom.MultiLineString:
		mls := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			mls[i] = toPoints(ls)
		}
		return mls, nil
	case geom.Polygon:
		return splitShells(g), nil
	case geom.MultiPolygon:
		var mp orb.MultiPolygon
		for _, p := range g {
			mp = append(mp, splitShells(p)...)
		}
		return mp, nil
	}
	return nil, fmt.Errorf("unsupported shape type %T", g)
}

func splitShells(p geom.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, path := range p {
		r := orb.Ring(toPoints(path))
		if len(mp) == 0 || signedArea(r) <= 0 {
			mp = append(mp, orb.Polygon{r})
			continue
		}
		mp[len(mp)-1] = append(mp[len(mp)-1], r)
	}
	return mp
}

func toPoints(pts []geom.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

// signedArea is positive for counter-clockwise rings
func signedArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}
