package sqlstore

import (
	"database/sql"
	"fmt"
	"strconv"
)

const schemaVersion = 1

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subtables (
		id   INTEGER PRIMARY KEY CHECK (id = 0),
		body BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS main (
		row_index      INTEGER PRIMARY KEY,
		time           REAL NOT NULL,
		time_centroid  REAL NOT NULL,
		interval       REAL NOT NULL,
		exposure       REAL NOT NULL,
		antenna1       INTEGER NOT NULL,
		antenna2       INTEGER NOT NULL,
		feed1          INTEGER NOT NULL,
		feed2          INTEGER NOT NULL,
		data_desc_id   INTEGER NOT NULL,
		field_id       INTEGER NOT NULL,
		scan_number    INTEGER NOT NULL,
		state_id       INTEGER NOT NULL,
		observation_id INTEGER NOT NULL,
		array_id       INTEGER NOT NULL,
		processor_id   INTEGER NOT NULL,
		u              REAL NOT NULL,
		v              REAL NOT NULL,
		w              REAL NOT NULL,
		flag_row       INTEGER NOT NULL,
		cells          BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tiles (
		col   TEXT NOT NULL,
		ncorr INTEGER NOT NULL,
		nchan INTEGER NOT NULL,
		nrows INTEGER NOT NULL,
		PRIMARY KEY (col, ncorr, nchan)
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		time    REAL NOT NULL,
		origin  TEXT NOT NULL,
		message TEXT NOT NULL,
		run_id  TEXT NOT NULL
	)`,
}

func initSchema(tx *sql.Tx, id string) error {
	for _, stmt := range tables {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("sqlstore: create table: %w", err)
		}
	}

	meta := map[string]string{
		"schema_version": strconv.Itoa(schemaVersion),
		"archive_id":     id,
		"columns":        "0",
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("sqlstore: write %s: %w", k, err)
		}
	}

	return nil
}

func readMeta(db *sql.DB, key string) (string, error) {
	var v string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v); err != nil {
		return "", fmt.Errorf("sqlstore: read %s: %w", key, err)
	}

	return v, nil
}

func checkSchema(db *sql.DB) error {
	v, err := readMeta(db, "schema_version")
	if err != nil {
		return err
	}

	n, err := strconv.Atoi(v)
	if err != nil || n > schemaVersion {
		return fmt.Errorf("%w: %q", ErrSchemaVersion, v)
	}

	return nil
}
