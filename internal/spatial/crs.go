package spatial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// ErrUnknownCRS is returned when a CRS has neither a known EPSG code nor a definition
var ErrUnknownCRS = errors.New("spatial: unknown CRS")

// webMercatorDef is the spatial reference definition for web mapping (EPSG:3857)
const webMercatorDef = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

// epsgDefs maps the EPSG codes used by the restoration datasets to proj4 definitions
var epsgDefs = map[int]string{
	4326:  "+proj=longlat +datum=WGS84 +no_defs",
	4674:  "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	3857:  webMercatorDef,
	31982: "+proj=utm +zone=22 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	31983: "+proj=utm +zone=23 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	31984: "+proj=utm +zone=24 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	31985: "+proj=utm +zone=25 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	32722: "+proj=utm +zone=22 +south +datum=WGS84 +units=m +no_defs",
	32723: "+proj=utm +zone=23 +south +datum=WGS84 +units=m +no_defs",
	32724: "+proj=utm +zone=24 +south +datum=WGS84 +units=m +no_defs",
	32725: "+proj=utm +zone=25 +south +datum=WGS84 +units=m +no_defs",
}

// geographicCodes are the EPSG codes of lat/long systems
var geographicCodes = map[int]bool{
	4326: true,
	4674: true,
}

// CRS identifies a coordinate reference system.
// Code is the EPSG code (0 when unknown); Def is a proj4 or WKT definition.
type CRS struct {
	Code int
	Def  string
}

// Common reference systems
var (
	WGS84       = EPSG(4326)
	WebMercator = EPSG(3857)
)

// EPSG returns the CRS for an EPSG code
func EPSG(code int) CRS {
	return CRS{Code: code, Def: epsgDefs[code]}
}

// ParseCRS parses "EPSG:4326", "urn:ogc:def:crs:EPSG::3857", a bare code,
// a proj4 string or a WKT definition
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CRS{}, ErrUnknownCRS
	}

	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(s, "+"):
		return CRS{Def: s}, nil
	case strings.HasPrefix(upper, "GEOGCS") || strings.HasPrefix(upper, "PROJCS"):
		return CRS{Def: s}, nil
	}

	code := upper
	if i := strings.LastIndex(code, ":"); i >= 0 {
		code = code[i+1:]
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return CRS{}, fmt.Errorf("%w: %q", ErrUnknownCRS, s)
	}
	return EPSG(n), nil
}

// IsZero reports whether the CRS carries no information
func (c CRS) IsZero() bool {
	return c.Code == 0 && c.Def == ""
}

// Equal reports whether two CRS values refer to the same system
func (c CRS) Equal(o CRS) bool {
	if c.Code != 0 && o.Code != 0 {
		return c.Code == o.Code
	}
	return c.Code == o.Code && c.Def == o.Def
}

// String returns "EPSG:<code>" when the code is known, the definition otherwise
func (c CRS) String() string {
	if c.Code != 0 {
		return "EPSG:" + strconv.Itoa(c.Code)
	}
	return c.Def
}

// SR parses the CRS into a proj spatial reference
func (c CRS) SR() (*proj.SR, error) {
	def := c.Def
	if def == "" {
		def = epsgDefs[c.Code]
	}
	if def == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCRS, c)
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRS %s: %w", c, err)
	}
	return sr, nil
}

// IsGeographic reports whether coordinates are angular (degrees)
func (c CRS) IsGeographic() (bool, error) {
	if geographicCodes[c.Code] {
		return true, nil
	}
	if c.Code != 0 && c.Def == "" {
		if _, ok := epsgDefs[c.Code]; !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownCRS, c)
		}
	}
	sr, err := c.SR()
	if err != nil {
		return false, err
	}
	return sr.Name == "longlat", nil
}
