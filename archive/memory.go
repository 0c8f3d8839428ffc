package archive

import (
	"fmt"
	"slices"
)

// Archive is an in-memory archive. It implements both Reader and Sink and
// serves as the scratch table in buffer mode.
type Archive struct {
	Tables *Subtables
	Cols   ColumnSet
	Rows   []Row
	Tiles  map[Column][]TileShape
}

// New returns an archive with the given tables and columns and no rows.
func New(tables *Subtables, cols ColumnSet) *Archive {
	if tables == nil {
		tables = &Subtables{}
	}

	return &Archive{Tables: tables, Cols: cols, Tiles: make(map[Column][]TileShape)}
}

var (
	_ Reader = (*Archive)(nil)
	_ Sink   = (*Archive)(nil)
)

// Subtables returns a deep copy of the auxiliary tables.
func (a *Archive) Subtables() (*Subtables, error) {
	return a.Tables.Clone(), nil
}

// Columns returns the cell columns of the main table.
func (a *Archive) Columns() ColumnSet {
	return a.Cols
}

// NumRows returns the number of main-table rows.
func (a *Archive) NumRows() int {
	return len(a.Rows)
}

// Keys returns the key of every row.
func (a *Archive) Keys() ([]RowKey, error) {
	keys := make([]RowKey, len(a.Rows))
	for i := range a.Rows {
		keys[i] = KeyOf(i, &a.Rows[i])
	}

	return keys, nil
}

// ReadRows returns copies of the requested rows.
func (a *Archive) ReadRows(idx []int) ([]Row, error) {
	out := make([]Row, len(idx))
	for i, r := range idx {
		if r < 0 || r >= len(a.Rows) {
			return nil, fmt.Errorf("%w: %d", ErrRowRange, r)
		}
		out[i] = a.Rows[r].Clone()
	}

	return out, nil
}

// WriteSubtables replaces the auxiliary tables with a copy of t.
func (a *Archive) WriteSubtables(t *Subtables) error {
	a.Tables = t.Clone()
	return nil
}

// SetColumns declares the cell columns.
func (a *Archive) SetColumns(cols ColumnSet) error {
	a.Cols = cols
	return nil
}

// DeclareTile records the tile shape of a column hypercube. Declaring the same
// shape twice is a no-op; a different row count for a known hypercube fails.
func (a *Archive) DeclareTile(col Column, shape TileShape) error {
	if a.Tiles == nil {
		a.Tiles = make(map[Column][]TileShape)
	}

	for _, t := range a.Tiles[col] {
		if t.SameHypercube(shape) {
			if t != shape {
				return fmt.Errorf("%w: %s %v", ErrTileRedeclared, col, t)
			}
			return nil
		}
	}

	a.Tiles[col] = append(a.Tiles[col], shape)
	return nil
}

// PutRows stores copies of rows starting at start, growing the table as needed.
func (a *Archive) PutRows(start int, rows []Row) error {
	if start < 0 || start > len(a.Rows) {
		return fmt.Errorf("%w: start %d of %d", ErrRowRange, start, len(a.Rows))
	}

	end := start + len(rows)
	if end > len(a.Rows) {
		a.Rows = slices.Grow(a.Rows, end-len(a.Rows))[:end]
	}

	for i := range rows {
		a.Rows[start+i] = rows[i].Clone()
	}

	return nil
}

// Close is a no-op.
func (a *Archive) Close() error {
	return nil
}

// Validate checks that every main-table row references live auxiliary rows.
func (a *Archive) Validate() error {
	t := a.Tables
	for i := range a.Rows {
		r := &a.Rows[i]
		if r.DataDescID < 0 || r.DataDescID >= len(t.DataDescriptions) {
			return fmt.Errorf("%w: row %d DATA_DESC_ID %d", ErrDanglingID, i, r.DataDescID)
		}

		dd := t.DataDescriptions[r.DataDescID]
		if dd.SpwID < 0 || dd.SpwID >= len(t.SpectralWindows) {
			return fmt.Errorf("%w: row %d SPECTRAL_WINDOW_ID %d", ErrDanglingID, i, dd.SpwID)
		}
		if dd.PolID < 0 || dd.PolID >= len(t.Polarizations) {
			return fmt.Errorf("%w: row %d POLARIZATION_ID %d", ErrDanglingID, i, dd.PolID)
		}
		if len(t.Fields) > 0 && (r.FieldID < 0 || r.FieldID >= len(t.Fields)) {
			return fmt.Errorf("%w: row %d FIELD_ID %d", ErrDanglingID, i, r.FieldID)
		}
		if len(t.Antennas) > 0 && (r.Antenna1 >= len(t.Antennas) || r.Antenna2 >= len(t.Antennas)) {
			return fmt.Errorf("%w: row %d ANTENNA %d&%d", ErrDanglingID, i, r.Antenna1, r.Antenna2)
		}
		if len(t.Observations) > 0 && (r.ObservationID < 0 || r.ObservationID >= len(t.Observations)) {
			return fmt.Errorf("%w: row %d OBSERVATION_ID %d", ErrDanglingID, i, r.ObservationID)
		}
		if len(t.States) > 0 && r.StateID >= len(t.States) {
			return fmt.Errorf("%w: row %d STATE_ID %d", ErrDanglingID, i, r.StateID)
		}
	}

	return nil
}
