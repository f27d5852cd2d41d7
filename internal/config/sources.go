package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the declarative list of restoration sources
type Manifest struct {
	Boundary string      `yaml:"boundary"`
	Sources  []Source    `yaml:"sources"`
	Merge    MergeConfig `yaml:"merge"`

	// Dir is the manifest's directory; relative paths resolve against it
	Dir string `yaml:"-"`
}

// Source describes one provider dataset
type Source struct {
	Name   string      `yaml:"name"`
	Paths  []string    `yaml:"paths"`
	Year   YearSpec    `yaml:"year"`
	Accept []Predicate `yaml:"accept"`
	CRS    string      `yaml:"crs"`
}

// YearSpec says where a source keeps its planting year
type YearSpec struct {
	Column string `yaml:"column"`
	Format string `yaml:"format"` // auto, prefix, suffix, yy, constant, none
	Value  int    `yaml:"value"`
}

// Predicate is one acceptance rule on an attribute
type Predicate struct {
	Column string   `yaml:"column"`
	Op     string   `yaml:"op"` // eq, ne, in, not_in, not_null, gt, lt, year_lt
	Values []string `yaml:"values"`
}

// MergeConfig mirrors the merge options of the dataset build
type MergeConfig struct {
	MaxYear        *int     `yaml:"max_year"`
	ExcludeSources []string `yaml:"exclude_sources"`
}

// LoadManifest parses a sources manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.Dir = filepath.Dir(path)

	seen := make(map[string]bool)
	for i, s := range m.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("source %d has no name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate source %q", s.Name)
		}
		seen[s.Name] = true
		if len(s.Paths) == 0 {
			return nil, fmt.Errorf("source %q has no paths", s.Name)
		}
	}
	return &m, nil
}

// Resolve returns p relative to the manifest directory unless absolute
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// Source returns the named source
func (m *Manifest) Source(name string) (Source, bool) {
	for _, s := range m.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
