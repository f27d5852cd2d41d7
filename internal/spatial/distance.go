package spatial

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean Earth radius
const EarthRadiusMeters = 6371000.0

// BufferBounds returns the lon/lat bounds of a geodesic buffer of radius
// meters around a lon/lat center
func BufferBounds(center orb.Point, radius float64) orb.Bound {
	ll := s2.LatLngFromDegrees(center[1], center[0])
	angle := s1.Angle(radius / EarthRadiusMeters)
	rect := s2.CapFromCenterAngle(s2.PointFromLatLng(ll), angle).RectBound()

	lo, hi := rect.Lo(), rect.Hi()
	return orb.Bound{
		Min: orb.Point{lo.Lng.Degrees(), lo.Lat.Degrees()},
		Max: orb.Point{hi.Lng.Degrees(), hi.Lat.Degrees()},
	}
}
