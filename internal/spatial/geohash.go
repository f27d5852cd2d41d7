package spatial

import (
	"strings"

	"github.com/paulmach/orb"
)

// Base32 alphabet for geohash
const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash encodes a lon/lat point.
// precision: number of characters in the geohash (1-12)
func Geohash(p orb.Point, precision int) string {
	if precision < 1 {
		precision = 1
	}
	if precision > 12 {
		precision = 12
	}

	lon, lat := p[0], p[1]
	lonLo, lonHi := -180.0, 180.0
	latLo, latHi := -90.0, 90.0

	var sb strings.Builder
	sb.Grow(precision)

	evenBit := true
	ch, bits := 0, 0
	for sb.Len() < precision {
		ch <<= 1
		if evenBit {
			mid := (lonLo + lonHi) / 2
			if lon >= mid {
				ch |= 1
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				ch |= 1
				latLo = mid
			} else {
				latHi = mid
			}
		}
		evenBit = !evenBit

		bits++
		if bits == 5 {
			sb.WriteByte(geohashBase32[ch])
			ch, bits = 0, 0
		}
	}
	return sb.String()
}

// GeohashBound returns the lon/lat cell covered by a geohash.
// Characters outside the alphabet are skipped.
func GeohashBound(hash string) orb.Bound {
	lonLo, lonHi := -180.0, 180.0
	latLo, latHi := -90.0, 90.0

	evenBit := true
	for i := 0; i < len(hash); i++ {
		idx := strings.IndexByte(geohashBase32, hash[i])
		if idx < 0 {
			continue
		}
		for mask := 16; mask > 0; mask >>= 1 {
			if evenBit {
				mid := (lonLo + lonHi) / 2
				if idx&mask != 0 {
					lonLo = mid
				} else {
					lonHi = mid
				}
			} else {
				mid := (latLo + latHi) / 2
				if idx&mask != 0 {
					latLo = mid
				} else {
					latHi = mid
				}
			}
			evenBit = !evenBit
		}
	}

	return orb.Bound{Min: orb.Point{lonLo, latLo}, Max: orb.Point{lonHi, latHi}}
}
