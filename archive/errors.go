package archive

import "errors"

var (
	// ErrRowRange indicates a row index outside the main table.
	ErrRowRange = errors.New("archive: row index out of range")
	// ErrTileRedeclared indicates a second, different tile shape for an already declared hypercube.
	ErrTileRedeclared = errors.New("archive: tile shape already declared")
	// ErrDanglingID indicates a main-table row referencing a missing auxiliary row.
	ErrDanglingID = errors.New("archive: dangling foreign id")
	// ErrUnknownFrame indicates an unparsable reference-frame name.
	ErrUnknownFrame = errors.New("archive: unknown frequency frame")
	// ErrUnknownStokes indicates an unparsable correlation name.
	ErrUnknownStokes = errors.New("archive: unknown correlation type")
)
