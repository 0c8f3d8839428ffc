package selection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
)

var filterColumns = map[string]func(archive.RowKey) float64{
	"TIME":           func(k archive.RowKey) float64 { return k.Time },
	"SCAN_NUMBER":    func(k archive.RowKey) float64 { return float64(k.ScanNumber) },
	"FIELD_ID":       func(k archive.RowKey) float64 { return float64(k.FieldID) },
	"DATA_DESC_ID":   func(k archive.RowKey) float64 { return float64(k.DataDescID) },
	"STATE_ID":       func(k archive.RowKey) float64 { return float64(k.StateID) },
	"OBSERVATION_ID": func(k archive.RowKey) float64 { return float64(k.ObservationID) },
	"ARRAY_ID":       func(k archive.RowKey) float64 { return float64(k.ArrayID) },
	"ANTENNA1":       func(k archive.RowKey) float64 { return float64(k.Antenna1) },
	"ANTENNA2":       func(k archive.RowKey) float64 { return float64(k.Antenna2) },
	"FEED1":          func(k archive.RowKey) float64 { return float64(k.Feed1) },
	"FEED2":          func(k archive.RowKey) float64 { return float64(k.Feed2) },
	"UVDIST":         func(k archive.RowKey) float64 { return math.Hypot(k.UVW[0], k.UVW[1]) },
}

type comparison struct {
	col   func(archive.RowKey) float64
	op    string
	value float64
}

func (c comparison) eval(k archive.RowKey) bool {
	v := c.col(k)
	switch c.op {
	case "==", "=":
		return v == c.value
	case "!=":
		return v != c.value
	case "<":
		return v < c.value
	case "<=":
		return v <= c.value
	case ">":
		return v > c.value
	default:
		return v >= c.value
	}
}

func parseFilter(expr string) (*Parsed, error) {
	var terms []comparison
	for _, term := range strings.Split(expr, "&&") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		c, err := parseComparison(term)
		if err != nil {
			return nil, err
		}
		terms = append(terms, c)
	}

	return &Parsed{Predicate: func(k archive.RowKey) bool {
		for _, c := range terms {
			if !c.eval(k) {
				return false
			}
		}
		return true
	}}, nil
}

func parseComparison(term string) (comparison, error) {
	for _, op := range []string{"==", "!=", "<=", ">=", "=", "<", ">"} {
		lhs, rhs, ok := strings.Cut(term, op)
		if !ok {
			continue
		}

		col, known := filterColumns[strings.ToUpper(strings.TrimSpace(lhs))]
		if !known {
			return comparison{}, fmt.Errorf("%w: unknown filter column %q", ErrSyntax, lhs)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(rhs), 64)
		if err != nil {
			return comparison{}, fmt.Errorf("%w: filter value %q", ErrSyntax, rhs)
		}

		return comparison{col: col, op: op, value: v}, nil
	}

	return comparison{}, fmt.Errorf("%w: filter term %q", ErrSyntax, term)
}

// RowFilter accepts or rejects main-table rows by key.
type RowFilter struct {
	ddis         map[int]bool
	fields       map[int]bool
	scans        map[int]bool
	states       map[int]bool
	observations map[int]bool
	arrays       map[int]bool
	feeds        map[int]bool
	baselines    *Baselines
	times        [][2]float64
	uv           [][2]float64
	predicate    func(archive.RowKey) bool
}

func setOf(ids []int) map[int]bool {
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}

	return m
}

func inSet(m map[int]bool, id int) bool {
	return m == nil || m[id]
}

func inRanges(ranges [][2]float64, v float64) bool {
	if ranges == nil {
		return true
	}

	for _, r := range ranges {
		if v >= r[0] && v <= r[1] {
			return true
		}
	}

	return false
}

// Accept reports whether the row with key k is selected.
func (f *RowFilter) Accept(k archive.RowKey) bool {
	if f == nil {
		return true
	}

	return inSet(f.ddis, k.DataDescID) &&
		inSet(f.fields, k.FieldID) &&
		inSet(f.scans, k.ScanNumber) &&
		inSet(f.states, k.StateID) &&
		inSet(f.observations, k.ObservationID) &&
		inSet(f.arrays, k.ArrayID) &&
		(f.feeds == nil || (f.feeds[k.Feed1] && f.feeds[k.Feed2])) &&
		f.baselines.Accept(k.Antenna1, k.Antenna2) &&
		inRanges(f.times, k.Time) &&
		inRanges(f.uv, math.Hypot(k.UVW[0], k.UVW[1])) &&
		(f.predicate == nil || f.predicate(k))
}
