// Package gdalio wires GDAL/OGR into the vector and raster registries. Import
// it for its side effects:
//
//	import _ "github.com/jengzang/regrowth-dataset/internal/gdalio"
package gdalio

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/jengzang/regrowth-dataset/internal/raster"
	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/jengzang/regrowth-dataset/internal/vector"
)

// ogrDrivers maps writable extensions to OGR driver names
var ogrDrivers = map[string]godal.DriverName{
	".gpkg": godal.DriverName("GPKG"),
	".kml":  godal.DriverName("KML"),
	".fgb":  godal.DriverName("FlatGeobuf"),
}

func init() {
	godal.RegisterAll()

	for _, ext := range []string{".gpkg", ".kml", ".gml", ".fgb", ".gdb", ".tab", ".mif"} {
		vector.RegisterReader(ext, ReadOGR)
	}
	for ext := range ogrDrivers {
		vector.RegisterWriter(ext, WriteOGR)
	}
	raster.RegisterWriter(".tif", WriteMask)
	raster.RegisterWriter(".tiff", WriteMask)
}

// spatialRef builds a GDAL spatial reference for crs
func spatialRef(crs spatial.CRS) (*godal.SpatialRef, error) {
	switch {
	case crs.Code != 0:
		return godal.NewSpatialRefFromEPSG(crs.Code)
	case strings.HasPrefix(crs.Def, "+"):
		return godal.NewSpatialRefFromProj4(crs.Def)
	case crs.Def != "":
		return godal.NewSpatialRefFromWKT(crs.Def)
	}
	return nil, spatial.ErrUnknownCRS
}

// crsOf converts a GDAL spatial reference, preferring its EPSG code
func crsOf(sr *godal.SpatialRef) (spatial.CRS, error) {
	if sr == nil {
		return spatial.CRS{}, nil
	}
	if strings.EqualFold(sr.AuthorityName(""), "EPSG") {
		if code, err := strconv.Atoi(sr.AuthorityCode("")); err == nil {
			c := spatial.EPSG(code)
			if c.Def != "" {
				return c, nil
			}
		}
	}
	wkt, err := sr.WKT()
	if err != nil {
		return spatial.CRS{}, fmt.Errorf("failed to export spatial reference: %w", err)
	}
	return spatial.ParseCRS(wkt)
}

// removeExisting clears path so drivers that refuse to overwrite can create it
func removeExisting(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
