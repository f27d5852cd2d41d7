package models

import (
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// Polygon is a single-part restoration polygon with its source attributes
type Polygon struct {
	Geometry   orb.Polygon
	Attributes map[string]string

	// Year is the planting year; nil when unknown
	Year   *int
	Source string
}

// Clone returns a deep copy of the polygon
func (p Polygon) Clone() Polygon {
	out := Polygon{
		Geometry: p.Geometry.Clone(),
		Source:   p.Source,
	}
	if p.Attributes != nil {
		out.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	if p.Year != nil {
		y := *p.Year
		out.Year = &y
	}
	return out
}

// Collection is an ordered set of polygons sharing one CRS
type Collection struct {
	CRS      spatial.CRS
	Polygons []Polygon
}

// Geometries returns the bare polygons in collection order
func (c *Collection) Geometries() []orb.Polygon {
	out := make([]orb.Polygon, len(c.Polygons))
	for i, p := range c.Polygons {
		out[i] = p.Geometry
	}
	return out
}

// YearPtr is a helper for literal years
func YearPtr(y int) *int {
	return &y
}
