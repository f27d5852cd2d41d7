package normalize

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jengzang/regrowth-dataset/internal/vector"
)

// ErrEmptyArchive is returned when an archive holds no readable vector member
var ErrEmptyArchive = errors.New("normalize: archive holds no vector data")

// isArchive reports whether path is a compressed vector source
func isArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kmz", ".zip":
		return true
	}
	return false
}

// extract unpacks the archive into dir and returns the vector member to read.
// A KMZ carries its document as doc.kml; for other archives the first
// readable member in name order wins.
func extract(path, dir string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	var members []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Clean(filepath.FromSlash(f.Name))
		if filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
			return "", fmt.Errorf("illegal archive member %q", f.Name)
		}
		dst := filepath.Join(dir, name)
		if err := extractFile(f, dst); err != nil {
			return "", err
		}
		if vector.CanRead(dst) {
			members = append(members, dst)
		}
	}

	if len(members) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyArchive, path)
	}
	sort.Strings(members)
	for _, m := range members {
		if strings.EqualFold(filepath.Base(m), "doc.kml") {
			return m, nil
		}
	}
	return members[0], nil
}

func extractFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open member %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
