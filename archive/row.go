package archive

import (
	"fmt"
	"slices"
	"strings"
)

// Column identifies a main-table cell column.
type Column int

const (
	ColData Column = iota
	ColCorrected
	ColModel
	ColFloatData
	ColLagData
	ColFlag
	ColWeightSpectrum
	ColSigmaSpectrum
	numColumns
)

var columnNames = [...]string{
	ColData:           "DATA",
	ColCorrected:      "CORRECTED_DATA",
	ColModel:          "MODEL_DATA",
	ColFloatData:      "FLOAT_DATA",
	ColLagData:        "LAG_DATA",
	ColFlag:           "FLAG",
	ColWeightSpectrum: "WEIGHT_SPECTRUM",
	ColSigmaSpectrum:  "SIGMA_SPECTRUM",
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return fmt.Sprintf("Column(%d)", int(c))
	}

	return columnNames[c]
}

// ParseColumn parses a main-table column name. "CORRECTED" and "MODEL" are
// accepted for the corrected and model columns.
func ParseColumn(name string) (Column, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "CORRECTED":
		return ColCorrected, true
	case "MODEL":
		return ColModel, true
	}

	for i, s := range columnNames {
		if s == n {
			return Column(i), true
		}
	}

	return 0, false
}

// IsVisibility reports whether c holds visibility samples.
func (c Column) IsVisibility() bool {
	return c <= ColLagData
}

// ColumnSet is a set of optional main-table columns.
type ColumnSet uint16

// Columns builds a set from cols.
func Columns(cols ...Column) ColumnSet {
	var s ColumnSet
	for _, c := range cols {
		s = s.With(c)
	}

	return s
}

// Has reports whether c is in the set.
func (s ColumnSet) Has(c Column) bool {
	return s&(1<<uint(c)) != 0
}

// With returns the set plus c.
func (s ColumnSet) With(c Column) ColumnSet {
	return s | 1<<uint(c)
}

// Without returns the set minus c.
func (s ColumnSet) Without(c Column) ColumnSet {
	return s &^ (1 << uint(c))
}

// List returns the members in column order.
func (s ColumnSet) List() []Column {
	var out []Column
	for c := Column(0); c < numColumns; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}

	return out
}

func (s ColumnSet) String() string {
	names := make([]string, 0, numColumns)
	for _, c := range s.List() {
		names = append(names, c.String())
	}

	return strings.Join(names, ",")
}

// Row is one main-table row. Cells are flat slices indexed chan*ncorr+corr;
// absent columns are nil.
type Row struct {
	Time          float64
	TimeCentroid  float64
	Interval      float64
	Exposure      float64
	Antenna1      int
	Antenna2      int
	Feed1         int
	Feed2         int
	DataDescID    int
	FieldID       int
	ScanNumber    int
	StateID       int
	ObservationID int
	ArrayID       int
	ProcessorID   int
	UVW           [3]float64
	Weight        []float32
	Sigma         []float32
	FlagRow       bool

	Data           []complex64
	Corrected      []complex64
	Model          []complex64
	Lag            []complex64
	FloatData      []float32
	Flag           []bool
	WeightSpectrum []float32
	SigmaSpectrum  []float32
}

// Clone returns a deep copy.
func (r Row) Clone() Row {
	r.Weight = slices.Clone(r.Weight)
	r.Sigma = slices.Clone(r.Sigma)
	r.Data = slices.Clone(r.Data)
	r.Corrected = slices.Clone(r.Corrected)
	r.Model = slices.Clone(r.Model)
	r.Lag = slices.Clone(r.Lag)
	r.FloatData = slices.Clone(r.FloatData)
	r.Flag = slices.Clone(r.Flag)
	r.WeightSpectrum = slices.Clone(r.WeightSpectrum)
	r.SigmaSpectrum = slices.Clone(r.SigmaSpectrum)
	return r
}

// Visibility returns the complex cell of a visibility column. FLOAT_DATA is
// not complex and returns nil.
func (r *Row) Visibility(c Column) []complex64 {
	switch c {
	case ColData:
		return r.Data
	case ColCorrected:
		return r.Corrected
	case ColModel:
		return r.Model
	case ColLagData:
		return r.Lag
	default:
		return nil
	}
}

// SetVisibility replaces the complex cell of a visibility column.
func (r *Row) SetVisibility(c Column, v []complex64) {
	switch c {
	case ColData:
		r.Data = v
	case ColCorrected:
		r.Corrected = v
	case ColModel:
		r.Model = v
	case ColLagData:
		r.Lag = v
	}
}

// SortColumn is a main-table column usable in an iteration sort key.
type SortColumn int

const (
	SortObservation SortColumn = iota
	SortArray
	SortScan
	SortState
	SortField
	SortDataDesc
	SortTime
)

func (c SortColumn) String() string {
	switch c {
	case SortObservation:
		return "OBSERVATION_ID"
	case SortArray:
		return "ARRAY_ID"
	case SortScan:
		return "SCAN_NUMBER"
	case SortState:
		return "STATE_ID"
	case SortField:
		return "FIELD_ID"
	case SortDataDesc:
		return "DATA_DESC_ID"
	case SortTime:
		return "TIME"
	default:
		return fmt.Sprintf("SortColumn(%d)", int(c))
	}
}

// RowKey is the lightweight per-row metadata used for sorting and selection.
type RowKey struct {
	Index         int
	Time          float64
	ObservationID int
	ArrayID       int
	ScanNumber    int
	StateID       int
	FieldID       int
	DataDescID    int
	Antenna1      int
	Antenna2      int
	Feed1         int
	Feed2         int
	UVW           [3]float64
}

// KeyOf extracts the key of row r stored at index i.
func KeyOf(i int, r *Row) RowKey {
	return RowKey{
		Index:         i,
		Time:          r.Time,
		ObservationID: r.ObservationID,
		ArrayID:       r.ArrayID,
		ScanNumber:    r.ScanNumber,
		StateID:       r.StateID,
		FieldID:       r.FieldID,
		DataDescID:    r.DataDescID,
		Antenna1:      r.Antenna1,
		Antenna2:      r.Antenna2,
		Feed1:         r.Feed1,
		Feed2:         r.Feed2,
		UVW:           r.UVW,
	}
}

// Value returns the key value of sort column c.
func (k RowKey) Value(c SortColumn) float64 {
	switch c {
	case SortObservation:
		return float64(k.ObservationID)
	case SortArray:
		return float64(k.ArrayID)
	case SortScan:
		return float64(k.ScanNumber)
	case SortState:
		return float64(k.StateID)
	case SortField:
		return float64(k.FieldID)
	case SortDataDesc:
		return float64(k.DataDescID)
	default:
		return k.Time
	}
}

// TileShape is the storage tile of a cell column: NCorr x NChan x NRows.
type TileShape struct {
	NCorr int
	NChan int
	NRows int
}

// SameHypercube reports whether both tiles describe cells of the same shape.
func (t TileShape) SameHypercube(o TileShape) bool {
	return t.NCorr == o.NCorr && t.NChan == o.NChan
}
