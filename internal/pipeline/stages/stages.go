// Package stages implements the dataset build stages. Each stage registers
// itself with the pipeline registry on import.
package stages

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jengzang/regrowth-dataset/internal/spatial"
)

// Stage names
const (
	IngestStage    = "ingest"
	MergeStage     = "merge"
	SampleStage    = "sample"
	RasterizeStage = "rasterize"
	DownloadStage  = "download"
	CropStage      = "crop"
	SplitStage     = "split"
	BuildStage     = "build"
)

// defaultFormat is the extension of intermediate vector files
const defaultFormat = ".geojson"

func parseCRS(s string, def spatial.CRS) (spatial.CRS, error) {
	if s == "" {
		return def, nil
	}
	return spatial.ParseCRS(s)
}

func format(ext string) string {
	if ext == "" {
		return defaultFormat
	}
	return "." + strings.TrimPrefix(ext, ".")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func required(name, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// expand resolves files and globs in order, dropping repeats
func expand(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
