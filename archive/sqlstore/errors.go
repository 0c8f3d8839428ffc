package sqlstore

import "errors"

var (
	// ErrExists is returned by Create when the file is already present.
	ErrExists = errors.New("sqlstore: archive already exists")
	// ErrNotFound is returned by Open when the file is missing.
	ErrNotFound = errors.New("sqlstore: archive not found")
	// ErrCorruptCell indicates a cell blob that cannot be decoded.
	ErrCorruptCell = errors.New("sqlstore: corrupt cell blob")
	// ErrSchemaVersion indicates a file written by a newer layout.
	ErrSchemaVersion = errors.New("sqlstore: unsupported schema version")
)
