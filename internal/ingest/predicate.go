package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jengzang/regrowth-dataset/internal/config"
)

var predicateOps = map[string]int{
	"eq":       1,
	"ne":       1,
	"in":       1,
	"not_in":   1,
	"not_null": 0,
	"gt":       1,
	"lt":       1,
	"year_lt":  1,
}

// ValidatePredicates checks operators and value counts
func ValidatePredicates(preds []config.Predicate) error {
	for _, p := range preds {
		minValues, ok := predicateOps[p.Op]
		if !ok {
			return fmt.Errorf("unknown predicate op %q on column %q", p.Op, p.Column)
		}
		if p.Column == "" {
			return fmt.Errorf("predicate %q has no column", p.Op)
		}
		if len(p.Values) < minValues {
			return fmt.Errorf("predicate %q on column %q needs a value", p.Op, p.Column)
		}
		switch p.Op {
		case "gt", "lt", "year_lt":
			if _, err := strconv.ParseFloat(p.Values[0], 64); err != nil {
				return fmt.Errorf("predicate %q on column %q needs a number: %w", p.Op, p.Column, err)
			}
		}
	}
	return nil
}

// Accept reports whether attrs satisfy every predicate
func Accept(attrs map[string]string, preds []config.Predicate) bool {
	for _, p := range preds {
		if !match(attrs, p) {
			return false
		}
	}
	return true
}

func match(attrs map[string]string, p config.Predicate) bool {
	v, present := attrs[p.Column]
	v = strings.TrimSpace(v)

	switch p.Op {
	case "not_null":
		return present && v != ""
	case "eq":
		return v == p.Values[0]
	case "ne":
		return v != p.Values[0]
	case "in":
		return contains(p.Values, v)
	case "not_in":
		return !contains(p.Values, v)
	case "gt", "lt":
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false
		}
		limit, _ := strconv.ParseFloat(p.Values[0], 64)
		if p.Op == "gt" {
			return x > limit
		}
		return x < limit
	case "year_lt":
		y := ParseYear(v, config.YearSpec{Format: YearAuto})
		if y == nil {
			return false
		}
		limit, _ := strconv.ParseFloat(p.Values[0], 64)
		return float64(*y) < limit
	}
	return false
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
