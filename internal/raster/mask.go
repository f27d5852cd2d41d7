// Package raster burns polygon collections into single-band reference masks.
package raster

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// Affine is a GDAL-ordered geotransform:
// x = t[0] + col*t[1] + row*t[2], y = t[3] + col*t[4] + row*t[5].
type Affine [6]float64

// NorthUp returns the transform of a grid anchored at its top-left corner
func NorthUp(xmin, ymax, res float64) Affine {
	return Affine{xmin, res, 0, ymax, 0, -res}
}

// PixelCenter returns the world coordinates of a pixel centre
func (a Affine) PixelCenter(col, row int) orb.Point {
	c, r := float64(col)+0.5, float64(row)+0.5
	return orb.Point{a[0] + c*a[1] + r*a[2], a[3] + c*a[4] + r*a[5]}
}

// Mask is a single-band uint8 raster, stored row-major from the top row
type Mask struct {
	Width     int
	Height    int
	Transform Affine
	CRS       spatial.CRS
	NoData    uint8
	Data      []uint8
}

// NewMask allocates a zero-filled mask
func NewMask(width, height int, t Affine, crs spatial.CRS) *Mask {
	return &Mask{
		Width:     width,
		Height:    height,
		Transform: t,
		CRS:       crs,
		Data:      make([]uint8, width*height),
	}
}

// At returns the value at col, row
func (m *Mask) At(col, row int) uint8 {
	return m.Data[row*m.Width+col]
}

// Count returns the number of non-zero pixels
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bound returns the world extent covered by the mask
func (m *Mask) Bound() orb.Bound {
	x0, y0 := m.Transform[0], m.Transform[3]
	x1 := x0 + float64(m.Width)*m.Transform[1]
	y1 := y0 + float64(m.Height)*m.Transform[5]
	return orb.Bound{
		Min: orb.Point{min(x0, x1), min(y0, y1)},
		Max: orb.Point{max(x0, x1), max(y0, y1)},
	}
}

// WriterFunc persists a mask, replacing any existing file
type WriterFunc func(path string, m *Mask) error

var (
	mu      sync.RWMutex
	writers = make(map[string]WriterFunc)
)

// RegisterWriter registers a mask writer for a file extension such as ".tif"
func RegisterWriter(ext string, fn WriterFunc) {
	mu.Lock()
	defer mu.Unlock()
	writers[strings.ToLower(ext)] = fn
}

// Write persists m with the writer registered for the extension of path
func Write(path string, m *Mask) error {
	ext := strings.ToLower(filepath.Ext(path))
	mu.RLock()
	fn, ok := writers[ext]
	mu.RUnlock()
	if !ok {
		return fmt.Errorf("no mask writer registered for %q", ext)
	}
	if err := fn(path, m); err != nil {
		return fmt.Errorf("failed to write mask %s: %w", path, err)
	}
	return nil
}

// OutputPath names the mask after the input file: <dir>/<basename>.tif
func OutputPath(input, dir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+".tif")
}
