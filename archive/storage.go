package archive

// Reader is read access to an archive.
type Reader interface {
	// Subtables returns a private copy of the auxiliary tables.
	Subtables() (*Subtables, error)
	// Columns returns the optional cell columns present in the main table.
	Columns() ColumnSet
	// NumRows returns the main-table row count.
	NumRows() int
	// Keys returns the sort/selection key of every main-table row.
	Keys() ([]RowKey, error)
	// ReadRows returns copies of the rows at the given indices, in order.
	ReadRows(idx []int) ([]Row, error)
	Close() error
}

// Sink is write access to an output archive. The main table only grows.
type Sink interface {
	// WriteSubtables replaces the auxiliary tables.
	WriteSubtables(t *Subtables) error
	// SetColumns declares the cell columns of the main table.
	SetColumns(cols ColumnSet) error
	// DeclareTile fixes the tile shape of one column hypercube.
	DeclareTile(col Column, shape TileShape) error
	// NumRows returns the main-table row count.
	NumRows() int
	// PutRows stores rows starting at row offset start; start may equal NumRows.
	PutRows(start int, rows []Row) error
	Close() error
}
