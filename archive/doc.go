// Package archive models a radio-interferometry observation archive: a main
// table of per-baseline rows carrying per-channel, per-correlation cells, and
// the auxiliary tables those rows reference by id.
//
// Cells are stored row by row as flat slices indexed chan*ncorr+corr, the
// correlation axis varying fastest.
//
// Storage engines are reached through the Reader and Sink interfaces. Archive
// is the in-memory implementation; package sqlstore persists archives on disk.
package archive
