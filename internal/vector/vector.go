// Package vector reads and writes vector datasets through a registry of
// per-extension drivers. GeoJSON and shapefiles are built in; other OGR
// formats are registered by the gdalio package.
package vector

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb"
)

// ErrUnsupportedFormat is returned when no driver handles a file extension
var ErrUnsupportedFormat = errors.New("vector: unsupported format")

// Feature is a geometry with string-valued attributes
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]string
}

// Layer is an ordered set of features sharing one CRS
type Layer struct {
	Name     string
	CRS      spatial.CRS
	Features []Feature
}

// ReadOptions tunes a read
type ReadOptions struct {
	// Columns lists the attributes to load for formats that need them named
	// up front (shapefiles). Other formats load every attribute.
	Columns []string
}

// ReaderFunc loads a dataset from path
type ReaderFunc func(path string, opts ReadOptions) (*Layer, error)

// WriterFunc persists a layer to path, replacing any existing file
type WriterFunc func(path string, layer *Layer) error

var (
	mu      sync.RWMutex
	readers = make(map[string]ReaderFunc)
	writers = make(map[string]WriterFunc)
)

// RegisterReader registers a reader for a file extension such as ".gpkg"
func RegisterReader(ext string, fn ReaderFunc) {
	mu.Lock()
	defer mu.Unlock()
	readers[normalizeExt(ext)] = fn
}

// RegisterWriter registers a writer for a file extension
func RegisterWriter(ext string, fn WriterFunc) {
	mu.Lock()
	defer mu.Unlock()
	writers[normalizeExt(ext)] = fn
}

// CanRead reports whether a reader is registered for the file's extension
func CanRead(path string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := readers[normalizeExt(filepath.Ext(path))]
	return ok
}

// Read loads the dataset at path with the driver registered for its extension
func Read(path string, opts ReadOptions) (*Layer, error) {
	ext := normalizeExt(filepath.Ext(path))
	mu.RLock()
	fn, ok := readers[ext]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (readable: %s)", ErrUnsupportedFormat, ext, strings.Join(Formats(), " "))
	}

	layer, err := fn(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if layer.Name == "" {
		layer.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return layer, nil
}

// Write persists layer to path with the driver registered for its extension
func Write(path string, layer *Layer) error {
	ext := normalizeExt(filepath.Ext(path))
	mu.RLock()
	fn, ok := writers[ext]
	mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err := fn(path, layer); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Formats lists the registered readable extensions
func Formats() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(readers))
	for ext := range readers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
