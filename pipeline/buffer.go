package pipeline

import "github.com/cwbudde/algo-mstransform/archive"

// spectral describes the sliced channel axis of every input data description.
// It is built once by the scan and shared read-only by all buffers.
type spectral struct {
	chans map[int][]int
	freqs map[int][]float64
	spws  map[int]int
	corrs map[int][]archive.Stokes
	prods map[int][][2]int
	idx   map[int][]int
}

// Buffer is one iteration step: the rows of one sort-key tuple. Cells are
// sliced to the selected channels and correlations of each row's data
// description.
type Buffer struct {
	Rows []archive.Row
	// Float holds FLOAT_DATA widened to complex samples, one cell per row,
	// when the archive carries that column.
	Float [][]complex64
	// Pointing holds the interpolated (antenna1, antenna2) pointing
	// directions per row when pointing interpolation is active.
	Pointing [][2]archive.Direction
	// ChunkStart is set on the first buffer after a non-time sort column
	// changed value.
	ChunkStart bool

	meta *spectral
}

// Len returns the number of rows.
func (b *Buffer) Len() int {
	return len(b.Rows)
}

// Shape returns the channel and correlation counts of row i.
func (b *Buffer) Shape(i int) (nchan, ncorr int) {
	r := &b.Rows[i]
	ncorr = len(r.Weight)
	if ncorr == 0 {
		return 0, 0
	}

	return len(r.Flag) / ncorr, ncorr
}

// Cell returns the complex samples of column c in row i. FLOAT_DATA returns
// the widened copy held in Float.
func (b *Buffer) Cell(i int, c archive.Column) []complex64 {
	if c == archive.ColFloatData {
		if i < len(b.Float) {
			return b.Float[i]
		}
		return nil
	}

	return b.Rows[i].Visibility(c)
}

// SetCell replaces the complex samples of column c in row i.
func (b *Buffer) SetCell(i int, c archive.Column, v []complex64) {
	if c == archive.ColFloatData {
		if b.Float == nil {
			b.Float = make([][]complex64, len(b.Rows))
		}
		b.Float[i] = v
		return
	}

	b.Rows[i].SetVisibility(c, v)
}

// Channels returns the selected input channel indices of data description ddi.
func (b *Buffer) Channels(ddi int) []int {
	if b.meta == nil {
		return nil
	}

	return b.meta.chans[ddi]
}

// Frequencies returns the selected channel frequencies of data description ddi.
func (b *Buffer) Frequencies(ddi int) []float64 {
	if b.meta == nil {
		return nil
	}

	return b.meta.freqs[ddi]
}

// Spw returns the input window of data description ddi, or -1.
func (b *Buffer) Spw(ddi int) int {
	if b.meta == nil {
		return -1
	}
	if spw, ok := b.meta.spws[ddi]; ok {
		return spw
	}

	return -1
}

// Correlations returns the selected correlation types of data description ddi.
func (b *Buffer) Correlations(ddi int) []archive.Stokes {
	if b.meta == nil {
		return nil
	}

	return b.meta.corrs[ddi]
}

// products returns the receptor pairs of the selected correlations of ddi.
func (b *Buffer) products(ddi int) [][2]int {
	if b.meta == nil {
		return nil
	}

	return b.meta.prods[ddi]
}

// visibilityColumns lists the complex-valued columns present in the buffer.
func (b *Buffer) visibilityColumns() []archive.Column {
	var out []archive.Column
	if len(b.Rows) == 0 {
		return nil
	}

	r := &b.Rows[0]
	for _, c := range []archive.Column{archive.ColData, archive.ColCorrected, archive.ColModel, archive.ColLagData} {
		if r.Visibility(c) != nil {
			out = append(out, c)
		}
	}
	if len(b.Float) > 0 && b.Float[0] != nil {
		out = append(out, archive.ColFloatData)
	}

	return out
}
