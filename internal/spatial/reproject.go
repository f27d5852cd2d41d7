package spatial

import (
	"fmt"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
)

// NewTransformer returns a coordinate transformer from src to dst.
// Identical systems get an identity transformer.
func NewTransformer(src, dst CRS) (proj.Transformer, error) {
	if src.Equal(dst) {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}

	srcSR, err := src.SR()
	if err != nil {
		return nil, err
	}
	dstSR, err := dst.SR()
	if err != nil {
		return nil, err
	}
	t, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("failed to create transform %s -> %s: %w", src, dst, err)
	}
	return t, nil
}

// Reproject transforms a copy of g with t
func Reproject(g orb.Geometry, t proj.Transformer) (orb.Geometry, error) {
	switch g := g.(type) {
	case orb.Point:
		return transformPoint(g, t)
	case orb.MultiPoint:
		pts, err := transformPoints([]orb.Point(g), t)
		return orb.MultiPoint(pts), err
	case orb.LineString:
		pts, err := transformPoints([]orb.Point(g), t)
		return orb.LineString(pts), err
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			pts, err := transformPoints([]orb.Point(ls), t)
			if err != nil {
				return nil, err
			}
			out[i] = pts
		}
		return out, nil
	case orb.Ring:
		pts, err := transformPoints([]orb.Point(g), t)
		return orb.Ring(pts), err
	case orb.Polygon:
		return transformPolygon(g, t)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			tp, err := transformPolygon(p, t)
			if err != nil {
				return nil, err
			}
			out[i] = tp
		}
		return out, nil
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, gg := range g {
			tg, err := Reproject(gg, t)
			if err != nil {
				return nil, err
			}
			out[i] = tg
		}
		return out, nil
	case orb.Bound:
		p, err := transformPolygon(g.ToPolygon(), t)
		if err != nil {
			return nil, err
		}
		return p.Bound(), nil
	}
	return nil, fmt.Errorf("unsupported geometry type %T", g)
}

// ReprojectPolygon is Reproject specialised for polygons
func ReprojectPolygon(p orb.Polygon, t proj.Transformer) (orb.Polygon, error) {
	return transformPolygon(p, t)
}

func transformPolygon(p orb.Polygon, t proj.Transformer) (orb.Polygon, error) {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		pts, err := transformPoints([]orb.Point(r), t)
		if err != nil {
			return nil, err
		}
		out[i] = pts
	}
	return out, nil
}

func transformPoints(pts []orb.Point, t proj.Transformer) ([]orb.Point, error) {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		tp, err := transformPoint(p, t)
		if err != nil {
			return nil, err
		}
		out[i] = tp
	}
	return out, nil
}

func transformPoint(p orb.Point, t proj.Transformer) (orb.Point, error) {
	x, y, err := t(p[0], p[1])
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to transform point (%f, %f): %w", p[0], p[1], err)
	}
	return orb.Point{x, y}, nil
}
