// Package sqlstore keeps an archive in a single SQLite file.
//
// The main table holds one SQL row per archive row. Scalar columns are plain
// SQL columns so that row keys can be read without touching the cells; the
// cells of a row are packed into one zstd-compressed blob. Auxiliary tables
// are stored as one compressed JSON document, except HISTORY, which is a
// table of its own so that runs can be listed cheaply.
//
// A Store implements both archive.Reader and archive.Sink.
package sqlstore
