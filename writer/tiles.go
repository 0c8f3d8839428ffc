package writer

import "github.com/cwbudde/algo-mstransform/archive"

// tileBytes is the target size of one storage tile.
const tileBytes = 1 << 20

func cellBytes(c archive.Column) int {
	switch c {
	case archive.ColFlag:
		return 1
	case archive.ColFloatData, archive.ColWeightSpectrum, archive.ColSigmaSpectrum:
		return 4
	default:
		return 8
	}
}

// TileFor returns the tile of a column hypercube: as many rows as fit in
// about one MiB, at least one.
func TileFor(c archive.Column, ncorr, nchan int) archive.TileShape {
	per := ncorr * nchan * cellBytes(c)
	rows := 1
	if per > 0 {
		rows = max(1, tileBytes/per)
	}

	return archive.TileShape{NCorr: ncorr, NChan: nchan, NRows: rows}
}

type tileKey struct {
	col          archive.Column
	ncorr, nchan int
}
