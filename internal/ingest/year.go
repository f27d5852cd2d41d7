package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/regrowth-dataset/internal/config"
)

// Year formats
const (
	YearAuto     = "auto"
	YearPrefix   = "prefix"
	YearSuffix   = "suffix"
	YearYY       = "yy"
	YearConstant = "constant"
	YearNone     = "none"
)

const (
	minYear = 1900
	maxYear = 2100
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
}

// ParseYear extracts a planting year from raw as described by spec.
// Unknown, zero and empty values give nil.
func ParseYear(raw string, spec config.YearSpec) *int {
	switch strings.ToLower(spec.Format) {
	case YearNone:
		return nil
	case YearConstant:
		return validYear(spec.Value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	switch strings.ToLower(spec.Format) {
	case YearPrefix:
		return prefixYear(raw)
	case YearSuffix:
		return suffixYear(raw)
	case YearYY:
		return twoDigitYear(raw)
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		if y := validYear(int(f)); y != nil {
			return y
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return validYear(t.Year())
		}
	}
	if y := prefixYear(raw); y != nil {
		return y
	}
	return suffixYear(raw)
}

func validYear(y int) *int {
	if y < minYear || y > maxYear {
		return nil
	}
	return &y
}

func prefixYear(s string) *int {
	if len(s) < 4 {
		return nil
	}
	return digitsYear(s[:4])
}

func suffixYear(s string) *int {
	if len(s) < 4 {
		return nil
	}
	return digitsYear(s[len(s)-4:])
}

func twoDigitYear(s string) *int {
	if len(s) < 2 {
		return nil
	}
	tail := s[len(s)-2:]
	if !isDigits(tail) {
		return nil
	}
	yy, _ := strconv.Atoi(tail)
	return validYear(2000 + yy)
}

func digitsYear(s string) *int {
	if !isDigits(s) {
		return nil
	}
	y, _ := strconv.Atoi(s)
	return validYear(y)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
