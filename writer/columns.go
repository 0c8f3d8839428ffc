package writer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
)

// ColumnPair routes one input column to one output column.
type ColumnPair struct {
	In, Out archive.Column
}

// ColumnMap is the resolved datacolumn option.
type ColumnMap struct {
	Pairs []ColumnPair
	// PromotedCorrected is set when CORRECTED_DATA alone becomes DATA; the
	// output sigma is then re-derived from the weight.
	PromotedCorrected bool
}

// Outputs returns the set of output columns.
func (m ColumnMap) Outputs() archive.ColumnSet {
	var s archive.ColumnSet
	for _, p := range m.Pairs {
		s = s.With(p.Out)
	}

	return s
}

// ResolveColumns maps a datacolumn value onto the available input columns.
// A single column other than FLOAT_DATA and LAG_DATA is written to DATA; ALL
// and comma-joined lists keep every column under its own name. A missing
// CORRECTED_DATA falls back to DATA with a warning; any other missing column
// is an error.
func ResolveColumns(spec string, available archive.ColumnSet, logger *slog.Logger) (ColumnMap, error) {
	spec = strings.ToUpper(strings.TrimSpace(spec))
	if spec == "" {
		spec = "CORRECTED"
	}

	if spec == "ALL" {
		var m ColumnMap
		for _, c := range available.List() {
			if c.IsVisibility() {
				m.Pairs = append(m.Pairs, ColumnPair{In: c, Out: c})
			}
		}
		if len(m.Pairs) == 0 {
			return ColumnMap{}, fmt.Errorf("%w: no visibility columns", ErrMissingColumn)
		}
		return m, nil
	}

	var cols []archive.Column
	for _, tok := range strings.Split(spec, ",") {
		c, ok := archive.ParseColumn(tok)
		if !ok || !c.IsVisibility() {
			return ColumnMap{}, fmt.Errorf("%w: %q", ErrUnknownColumn, strings.TrimSpace(tok))
		}
		cols = append(cols, c)
	}

	for i, c := range cols {
		if available.Has(c) {
			continue
		}
		if c == archive.ColCorrected && available.Has(archive.ColData) {
			logger.Warn("CORRECTED_DATA not present, using DATA", "column", c.String())
			cols[i] = archive.ColData
			continue
		}
		return ColumnMap{}, fmt.Errorf("%w: %s", ErrMissingColumn, c)
	}

	if len(cols) == 1 {
		c := cols[0]
		out := archive.ColData
		if c == archive.ColFloatData || c == archive.ColLagData {
			out = c
		}
		return ColumnMap{
			Pairs:             []ColumnPair{{In: c, Out: out}},
			PromotedCorrected: c == archive.ColCorrected,
		}, nil
	}

	var m ColumnMap
	seen := make(map[archive.Column]bool)
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			m.Pairs = append(m.Pairs, ColumnPair{In: c, Out: c})
		}
	}

	return m, nil
}
