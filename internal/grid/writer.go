package grid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jengzang/regrowth-dataset/internal/vector"
)

// Output file base names
const (
	PointsName = "points"
	GridName   = "sampling_grid"
)

// Write persists points.<ext> and, when cells were kept, sampling_grid.<ext>
// into dir. It returns the paths written.
func Write(dir, ext string, r *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	ext = "." + strings.TrimPrefix(ext, ".")

	points := &vector.Layer{Name: PointsName, CRS: r.CRS, Features: make([]vector.Feature, len(r.Points))}
	for i, p := range r.Points {
		points.Features[i] = vector.Feature{
			Geometry: p.Point,
			Properties: map[string]string{
				"row": strconv.Itoa(p.Row),
				"col": strconv.Itoa(p.Col),
			},
		}
	}
	pointsPath := filepath.Join(dir, PointsName+ext)
	if err := vector.Write(pointsPath, points); err != nil {
		return nil, err
	}
	written := []string{pointsPath}

	if len(r.Cells) > 0 {
		cells := &vector.Layer{Name: GridName, CRS: r.CRS, Features: make([]vector.Feature, len(r.Cells))}
		for i, c := range r.Cells {
			cells.Features[i] = vector.Feature{
				Geometry: c.Bound.ToPolygon(),
				Properties: map[string]string{
					"row":        strconv.Itoa(c.Row),
					"col":        strconv.Itoa(c.Col),
					"inter_area": strconv.FormatFloat(c.InterArea, 'f', -1, 64),
				},
			}
		}
		gridPath := filepath.Join(dir, GridName+ext)
		if err := vector.Write(gridPath, cells); err != nil {
			return nil, err
		}
		written = append(written, gridPath)
	}
	return written, nil
}
