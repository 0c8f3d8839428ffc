package sqlstore

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cwbudde/algo-mstransform/archive"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is an archive kept in a SQLite file.
type Store struct {
	db     *sql.DB
	path   string
	id     string
	cols   archive.ColumnSet
	rows   int
	codec  *codec
	logger *slog.Logger
}

var (
	_ archive.Reader = (*Store)(nil)
	_ archive.Sink   = (*Store)(nil)
)

// Create makes a new, empty archive at path. It fails if path exists.
func Create(path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	}

	s, err := open(path, opts)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := s.withTx(func(tx *sql.Tx) error { return initSchema(tx, id) }); err != nil {
		s.Close()
		return nil, err
	}
	s.id = id

	s.logger.Info("archive created", "path", path, "id", id)
	return s, nil
}

// Open opens an existing archive.
func Open(path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	s, err := open(path, opts)
	if err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Debug("archive opened", "path", path, "id", s.id, "rows", s.rows, "columns", s.cols.String())
	return s, nil
}

func open(path string, opts []Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	// One connection keeps writes ordered and the file consistent.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", p, err)
		}
	}

	c, err := newCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		path:   path,
		codec:  c,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}

	return s, nil
}

func (s *Store) load() error {
	if err := checkSchema(s.db); err != nil {
		return err
	}

	id, err := readMeta(s.db, "archive_id")
	if err != nil {
		return err
	}
	s.id = id

	v, err := readMeta(s.db, "columns")
	if err != nil {
		return err
	}
	cols, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return fmt.Errorf("sqlstore: columns %q: %w", v, err)
	}
	s.cols = archive.ColumnSet(cols)

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM main`).Scan(&s.rows); err != nil {
		return fmt.Errorf("sqlstore: count rows: %w", err)
	}

	return nil
}

func (s *Store) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", err, "rollback_error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}

	return nil
}

// ID returns the archive id assigned at creation.
func (s *Store) ID() string {
	return s.id
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database.
func (s *Store) Close() error {
	if s.codec != nil {
		s.codec.close()
		s.codec = nil
	}
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// Subtables returns the auxiliary tables. An archive without tables yields
// an empty set.
func (s *Store) Subtables() (*archive.Subtables, error) {
	t := &archive.Subtables{}

	var blob []byte
	err := s.db.QueryRow(`SELECT body FROM subtables WHERE id = 0`).Scan(&blob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("sqlstore: read subtables: %w", err)
	default:
		raw, err := s.codec.decompress(blob)
		if err != nil {
			return nil, err
		}
		if err := json.NewDecoder(bytes.NewReader(raw)).Decode(t); err != nil {
			return nil, fmt.Errorf("sqlstore: decode subtables: %w", err)
		}
	}

	h, err := s.History()
	if err != nil {
		return nil, err
	}
	t.History = h

	return t, nil
}

// History returns the HISTORY rows in insertion order.
func (s *Store) History() ([]archive.History, error) {
	rows, err := s.db.Query(`SELECT time, origin, message, run_id FROM history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read history: %w", err)
	}
	defer rows.Close()

	var out []archive.History
	for rows.Next() {
		var h archive.History
		if err := rows.Scan(&h.Time, &h.Origin, &h.Message, &h.RunID); err != nil {
			return nil, fmt.Errorf("sqlstore: scan history: %w", err)
		}
		out = append(out, h)
	}

	return out, rows.Err()
}

// WriteSubtables replaces the auxiliary tables, HISTORY included.
func (s *Store) WriteSubtables(t *archive.Subtables) error {
	cp := t.Clone()
	history := cp.History
	cp.History = nil

	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("sqlstore: encode subtables: %w", err)
	}
	blob := s.codec.compress(raw)

	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO subtables (id, body) VALUES (0, ?)`, blob); err != nil {
			return fmt.Errorf("sqlstore: write subtables: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM history`); err != nil {
			return fmt.Errorf("sqlstore: clear history: %w", err)
		}
		for _, h := range history {
			if _, err := tx.Exec(`INSERT INTO history (time, origin, message, run_id) VALUES (?, ?, ?, ?)`,
				h.Time, h.Origin, h.Message, h.RunID); err != nil {
				return fmt.Errorf("sqlstore: write history: %w", err)
			}
		}
		return nil
	})
}

// Columns returns the declared cell columns.
func (s *Store) Columns() archive.ColumnSet {
	return s.cols
}

// SetColumns declares the cell columns.
func (s *Store) SetColumns(cols archive.ColumnSet) error {
	if _, err := s.db.Exec(`UPDATE meta SET value = ? WHERE key = 'columns'`, strconv.Itoa(int(cols))); err != nil {
		return fmt.Errorf("sqlstore: write columns: %w", err)
	}
	s.cols = cols

	return nil
}

// DeclareTile records the tile shape of a column hypercube. Declaring the
// same shape twice is a no-op.
func (s *Store) DeclareTile(col archive.Column, shape archive.TileShape) error {
	var nrows int
	err := s.db.QueryRow(`SELECT nrows FROM tiles WHERE col = ? AND ncorr = ? AND nchan = ?`,
		col.String(), shape.NCorr, shape.NChan).Scan(&nrows)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("sqlstore: read tiles: %w", err)
	case nrows != shape.NRows:
		return fmt.Errorf("%w: %s %dx%d has %d rows", archive.ErrTileRedeclared, col, shape.NCorr, shape.NChan, nrows)
	default:
		return nil
	}

	if _, err := s.db.Exec(`INSERT INTO tiles (col, ncorr, nchan, nrows) VALUES (?, ?, ?, ?)`,
		col.String(), shape.NCorr, shape.NChan, shape.NRows); err != nil {
		return fmt.Errorf("sqlstore: write tile: %w", err)
	}

	return nil
}

// Tiles returns the declared tile shapes per column.
func (s *Store) Tiles() (map[archive.Column][]archive.TileShape, error) {
	rows, err := s.db.Query(`SELECT col, ncorr, nchan, nrows FROM tiles ORDER BY col, ncorr, nchan`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read tiles: %w", err)
	}
	defer rows.Close()

	out := make(map[archive.Column][]archive.TileShape)
	for rows.Next() {
		var name string
		var t archive.TileShape
		if err := rows.Scan(&name, &t.NCorr, &t.NChan, &t.NRows); err != nil {
			return nil, fmt.Errorf("sqlstore: scan tile: %w", err)
		}
		col, ok := archive.ParseColumn(name)
		if !ok {
			return nil, fmt.Errorf("sqlstore: unknown tile column %q", name)
		}
		out[col] = append(out[col], t)
	}

	return out, rows.Err()
}

// NumRows returns the main-table row count.
func (s *Store) NumRows() int {
	return s.rows
}

const keyColumns = `row_index, time, observation_id, array_id, scan_number, state_id, field_id,
	data_desc_id, antenna1, antenna2, feed1, feed2, u, v, w`

// Keys returns the key of every row without reading cells.
func (s *Store) Keys() ([]archive.RowKey, error) {
	rows, err := s.db.Query(`SELECT ` + keyColumns + ` FROM main ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read keys: %w", err)
	}
	defer rows.Close()

	out := make([]archive.RowKey, 0, s.rows)
	for rows.Next() {
		var k archive.RowKey
		if err := rows.Scan(&k.Index, &k.Time, &k.ObservationID, &k.ArrayID, &k.ScanNumber, &k.StateID,
			&k.FieldID, &k.DataDescID, &k.Antenna1, &k.Antenna2, &k.Feed1, &k.Feed2,
			&k.UVW[0], &k.UVW[1], &k.UVW[2]); err != nil {
			return nil, fmt.Errorf("sqlstore: scan key: %w", err)
		}
		out = append(out, k)
	}

	return out, rows.Err()
}

const rowColumns = `time, time_centroid, interval, exposure, antenna1, antenna2, feed1, feed2,
	data_desc_id, field_id, scan_number, state_id, observation_id, array_id, processor_id,
	u, v, w, flag_row, cells`

// ReadRows returns the rows at idx, in order.
func (s *Store) ReadRows(idx []int) ([]archive.Row, error) {
	stmt, err := s.db.Prepare(`SELECT ` + rowColumns + ` FROM main WHERE row_index = ?`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: prepare read: %w", err)
	}
	defer stmt.Close()

	out := make([]archive.Row, len(idx))
	for i, n := range idx {
		r := &out[i]
		var blob []byte
		err := stmt.QueryRow(n).Scan(&r.Time, &r.TimeCentroid, &r.Interval, &r.Exposure,
			&r.Antenna1, &r.Antenna2, &r.Feed1, &r.Feed2,
			&r.DataDescID, &r.FieldID, &r.ScanNumber, &r.StateID, &r.ObservationID, &r.ArrayID, &r.ProcessorID,
			&r.UVW[0], &r.UVW[1], &r.UVW[2], &r.FlagRow, &blob)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", archive.ErrRowRange, n)
		}
		if err != nil {
			return nil, fmt.Errorf("sqlstore: read row %d: %w", n, err)
		}
		if err := s.codec.decode(blob, r); err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
	}

	return out, nil
}

// PutRows stores rows starting at start. Existing rows are overwritten.
func (s *Store) PutRows(start int, rows []archive.Row) error {
	if start < 0 || start > s.rows {
		return fmt.Errorf("%w: start %d of %d", archive.ErrRowRange, start, s.rows)
	}

	err := s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO main (row_index, ` + rowColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("sqlstore: prepare write: %w", err)
		}
		defer stmt.Close()

		for i := range rows {
			r := &rows[i]
			if _, err := stmt.Exec(start+i, r.Time, r.TimeCentroid, r.Interval, r.Exposure,
				r.Antenna1, r.Antenna2, r.Feed1, r.Feed2,
				r.DataDescID, r.FieldID, r.ScanNumber, r.StateID, r.ObservationID, r.ArrayID, r.ProcessorID,
				r.UVW[0], r.UVW[1], r.UVW[2], r.FlagRow, s.codec.encode(r)); err != nil {
				return fmt.Errorf("sqlstore: write row %d: %w", start+i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.rows = max(s.rows, start+len(rows))
	return nil
}

// Import copies every table and row of src into s.
func (s *Store) Import(src archive.Reader) error {
	t, err := src.Subtables()
	if err != nil {
		return err
	}
	if err := s.WriteSubtables(t); err != nil {
		return err
	}
	if err := s.SetColumns(src.Columns()); err != nil {
		return err
	}

	const batch = 1024
	for start := 0; start < src.NumRows(); start += batch {
		n := min(batch, src.NumRows()-start)
		idx := make([]int, n)
		for i := range idx {
			idx[i] = start + i
		}

		rows, err := src.ReadRows(idx)
		if err != nil {
			return err
		}
		if err := s.PutRows(start, rows); err != nil {
			return err
		}
	}

	s.logger.Info("archive imported", "rows", src.NumRows(), "columns", src.Columns().String())
	return nil
}
