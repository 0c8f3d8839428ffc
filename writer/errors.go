package writer

import "errors"

var (
	// ErrUnknownColumn is returned for a datacolumn token naming no column.
	ErrUnknownColumn = errors.New("writer: unknown data column")
	// ErrMissingColumn is returned when a requested column is absent from the input.
	ErrMissingColumn = errors.New("writer: requested column missing from input")
	// ErrUnmappedRow is returned for a row whose data description has no output.
	ErrUnmappedRow = errors.New("writer: row has no output data description")
)
