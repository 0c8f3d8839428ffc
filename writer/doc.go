// Package writer turns row buffers into output main-table rows.
//
// A [Writer] applies the per-window kernel transforms to every selected data
// column of a buffer, collapses the rows of combined windows into one output
// row, replicates rows across split windows, rewrites the remapped ids, scales
// WEIGHT and SIGMA, and appends the rows to an [archive.Sink]. Each column
// hypercube gets its tile shape declared before its first row is written.
//
// In buffer mode the rows go to an in-memory scratch archive and the writer
// also keeps per-row, per-correlation median weights and sigmas.
package writer
