// Package pipeline produces the row buffers of a transformation.
//
// A [Scan] reads the selected main-table rows of an archive in sort-key order
// and yields one [Buffer] per distinct key tuple, with channels and
// correlations already sliced to the selection. Optional layers wrap the scan
// in a fixed order:
//
//	scan -> calibration -> continuum subtraction -> pointing -> atmosphere
//	     -> polarization average -> time average -> phase shift
//
// [Builder] composes the layers from a [Config]. Iteration is synchronous and
// forward-only: Next returns io.EOF once the input is exhausted, and a buffer
// belongs to the caller until the following call to Next.
package pipeline
