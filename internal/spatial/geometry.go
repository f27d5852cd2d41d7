package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// BoundingBox calculates the bounding box of a set of polygons.
// ok is false when there are no polygons.
func BoundingBox(polys []orb.Polygon) (b orb.Bound, ok bool) {
	for _, p := range polys {
		if len(p) == 0 || len(p[0]) == 0 {
			continue
		}
		pb := p.Bound()
		if !ok {
			b, ok = pb, true
			continue
		}
		b = b.Union(pb)
	}
	return b, ok
}

// RingArea calculates the unsigned area of a ring with the shoelace formula
func RingArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}

	var sum float64
	p0 := r[len(r)-1]
	for _, p1 := range r {
		sum += p0[0]*p1[1] - p1[0]*p0[1]
		p0 = p1
	}
	return math.Abs(sum) / 2
}

// PolygonArea is the outer ring area minus the holes
func PolygonArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	area := RingArea(p[0])
	for _, hole := range p[1:] {
		area -= RingArea(hole)
	}
	if area < 0 {
		return 0
	}
	return area
}

// ClippedArea returns the area of p inside the rectangle b
func ClippedArea(b orb.Bound, p orb.Polygon) float64 {
	if !b.Intersects(p.Bound()) {
		return 0
	}
	clipped := clip.Polygon(b, p.Clone())
	if clipped == nil {
		return 0
	}
	return PolygonArea(clipped)
}

// BoundIntersectsPolygon reports whether the rectangle b and polygon p share
// any point, boundary contact included
func BoundIntersectsPolygon(b orb.Bound, p orb.Polygon) bool {
	if len(p) == 0 || !b.Intersects(p.Bound()) {
		return false
	}

	// a polygon vertex inside the rectangle lies on the polygon boundary
	for _, r := range p {
		for _, pt := range r {
			if b.Contains(pt) {
				return true
			}
		}
	}

	edges := boundEdges(b)
	for _, r := range p {
		for i := 0; i+1 < len(r); i++ {
			for _, e := range edges {
				if SegmentsIntersect(r[i], r[i+1], e[0], e[1]) {
					return true
				}
			}
		}
	}

	// no boundary contact: either disjoint or the rectangle is inside p
	return planar.PolygonContains(p, b.Center())
}

// SegmentIntersectsBound reports whether the segment a-b touches the rectangle
func SegmentIntersectsBound(a, b orb.Point, bound orb.Bound) bool {
	if bound.Contains(a) || bound.Contains(b) {
		return true
	}
	for _, e := range boundEdges(bound) {
		if SegmentsIntersect(a, b, e[0], e[1]) {
			return true
		}
	}
	return false
}

func boundEdges(b orb.Bound) [4][2]orb.Point {
	ll := b.Min
	lr := orb.Point{b.Max[0], b.Min[1]}
	ur := b.Max
	ul := orb.Point{b.Min[0], b.Max[1]}
	return [4][2]orb.Point{{ll, lr}, {lr, ur}, {ur, ul}, {ul, ll}}
}

// SegmentsIntersect reports whether segments p1-p2 and q1-q2 share a point
func SegmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// orientation is the cross product of (b-a) x (c-a)
func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment assumes c is collinear with a-b
func onSegment(a, b, c orb.Point) bool {
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}
