package gdalio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/airbusgeo/godal"
)

// DefaultCropSize is the side, in pixels, of a centre crop
const DefaultCropSize = 400

// CropCenter writes the size x size window at the centre of src to dst.
// Rasters smaller than size are cropped to their own extent.
func CropCenter(src, dst string, size int) error {
	if size <= 0 {
		size = DefaultCropSize
	}

	ds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer ds.Close()

	st := ds.Structure()
	w, h := min(size, st.SizeX), min(size, st.SizeY)
	xoff := (st.SizeX - w) / 2
	yoff := (st.SizeY - h) / 2

	return translate(ds, dst, []string{
		"-of", "GTiff",
		"-srcwin", itoa(xoff), itoa(yoff), itoa(w), itoa(h),
	})
}

// CropToReference writes the part of src covering the extent of ref to dst
func CropToReference(ref, src, dst string) error {
	rds, err := godal.Open(ref, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", ref, err)
	}
	gt, err := rds.GeoTransform()
	if err != nil {
		rds.Close()
		return fmt.Errorf("failed to read geotransform of %s: %w", ref, err)
	}
	st := rds.Structure()
	rds.Close()

	ulx, uly := gt[0], gt[3]
	lrx := gt[0] + float64(st.SizeX)*gt[1]
	lry := gt[3] + float64(st.SizeY)*gt[5]

	ds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer ds.Close()

	return translate(ds, dst, []string{
		"-of", "GTiff",
		"-projwin", ftoa(ulx), ftoa(uly), ftoa(lrx), ftoa(lry),
	})
}

func translate(ds *godal.Dataset, dst string, switches []string) error {
	if err := removeExisting(dst); err != nil {
		return err
	}
	out, err := ds.Translate(dst, switches)
	if err != nil {
		return fmt.Errorf("failed to crop to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	log.Printf("[Crop] Wrote %s", dst)
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// CropReferences centre-crops every *ref.tif in dir (or *planet.tif when
// there are none) into outDir under the same name
func CropReferences(dir, outDir string, size int) ([]string, error) {
	refs, err := referenceFiles(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		dst := filepath.Join(outDir, filepath.Base(ref))
		if err := CropCenter(ref, dst, size); err != nil {
			return out, err
		}
		out = append(out, dst)
	}
	return out, nil
}

// CropSensor crops every *<sensor>.tif in dir to the extent of the matching
// reference raster in refDir. Files pair up in name order.
func CropSensor(sensor, dir, outDir, refDir string) ([]string, error) {
	refs, err := referenceFiles(refDir)
	if err != nil {
		return nil, err
	}
	files, err := filepath.Glob(filepath.Join(dir, "*"+sensor+".tif"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	n := min(len(refs), len(files))
	if len(refs) != len(files) {
		log.Printf("[Crop] Warning: %d reference rasters but %d %s rasters, pairing the first %d",
			len(refs), len(files), sensor, n)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dst := filepath.Join(outDir, filepath.Base(files[i]))
		if err := CropToReference(refs[i], files[i], dst); err != nil {
			return out, err
		}
		out = append(out, dst)
	}
	return out, nil
}

func referenceFiles(dir string) ([]string, error) {
	for _, pattern := range []string{"*ref.tif", "*planet.tif"} {
		files, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			sort.Strings(files)
			return files, nil
		}
	}
	return nil, fmt.Errorf("no reference rasters in %s", dir)
}
