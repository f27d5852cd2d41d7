package gdalio

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/jengzang/regrowth-dataset/internal/raster"
)

// WriteMask writes m as a single-band uint8 GeoTIFF with nodata 0
func WriteMask(path string, m *raster.Mask) error {
	if err := removeExisting(path); err != nil {
		return err
	}

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Byte, m.Width, m.Height,
		godal.CreationOption("COMPRESS=LZW", "TILED=YES"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := ds.SetGeoTransform([6]float64(m.Transform)); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set geotransform: %w", err)
	}

	sr, err := spatialRef(m.CRS)
	if err != nil {
		ds.Close()
		return err
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set spatial reference: %w", err)
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(float64(m.NoData)); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set nodata: %w", err)
	}
	if err := band.Write(0, 0, m.Data, m.Width, m.Height); err != nil {
		ds.Close()
		return fmt.Errorf("failed to write band: %w", err)
	}
	return ds.Close()
}
