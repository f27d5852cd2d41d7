package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jengzang/regrowth-dataset/internal/models"
	"github.com/jengzang/regrowth-dataset/internal/normalize"
	"github.com/jengzang/regrowth-dataset/internal/vector"
)

// Reserved properties of collection files
const (
	YearProperty   = "year"
	SourceProperty = "source"
)

// WriteCollection writes coll to path with year and source as properties
// next to the source attributes
func WriteCollection(path string, coll *models.Collection) error {
	layer := &vector.Layer{CRS: coll.CRS, Features: make([]vector.Feature, len(coll.Polygons))}
	for i, p := range coll.Polygons {
		props := make(map[string]string, len(p.Attributes)+2)
		for k, v := range p.Attributes {
			props[k] = v
		}
		delete(props, YearProperty)
		delete(props, SourceProperty)
		if p.Year != nil {
			props[YearProperty] = strconv.Itoa(*p.Year)
		}
		if p.Source != "" {
			props[SourceProperty] = p.Source
		}
		layer.Features[i] = vector.Feature{Geometry: p.Geometry, Properties: props}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := vector.Write(path, layer); err != nil {
		return err
	}
	log.Printf("[Pipeline] Wrote %d polygons to %s", len(coll.Polygons), path)
	return nil
}

// ReadCollection loads a collection written by WriteCollection. The file
// goes through normalization, so any supported vector format is accepted.
// A year property that is not an integer leaves the record without a year.
func ReadCollection(ctx context.Context, path, scratchDir string) (*models.Collection, error) {
	coll, err := normalize.Normalize(ctx, path, normalize.Options{ScratchDir: scratchDir})
	if err != nil {
		return nil, err
	}

	invalid := 0
	for i := range coll.Polygons {
		p := &coll.Polygons[i]
		if v, ok := p.Attributes[YearProperty]; ok {
			if y, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				p.Year = models.YearPtr(y)
			} else {
				invalid++
			}
			delete(p.Attributes, YearProperty)
		}
		if v, ok := p.Attributes[SourceProperty]; ok {
			p.Source = v
			delete(p.Attributes, SourceProperty)
		}
	}
	if invalid > 0 {
		log.Printf("[Pipeline] %s: %d polygons have a non-integer year", path, invalid)
	}
	return coll, nil
}
