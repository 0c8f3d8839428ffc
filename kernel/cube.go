package kernel

import "slices"

// Cube is the channel x correlation block of one row.
type Cube struct {
	NChan  int
	NCorr  int
	Data   []complex64
	Flag   []bool
	Weight []float32
}

// NewCube allocates a zero cube.
func NewCube(nchan, ncorr int) *Cube {
	n := nchan * ncorr
	return &Cube{
		NChan:  nchan,
		NCorr:  ncorr,
		Data:   make([]complex64, n),
		Flag:   make([]bool, n),
		Weight: make([]float32, n),
	}
}

// Validate checks buffer lengths against the dimensions.
func (c *Cube) Validate() error {
	n := c.NChan * c.NCorr
	if len(c.Data) != n || len(c.Flag) != n || len(c.Weight) != n {
		return ErrShape
	}

	return nil
}

// Clone returns a deep copy.
func (c *Cube) Clone() *Cube {
	return &Cube{
		NChan:  c.NChan,
		NCorr:  c.NCorr,
		Data:   slices.Clone(c.Data),
		Flag:   slices.Clone(c.Flag),
		Weight: slices.Clone(c.Weight),
	}
}

// Channels returns channels [start, start+n) as a new cube.
func (c *Cube) Channels(start, n int) *Cube {
	lo, hi := start*c.NCorr, (start+n)*c.NCorr
	return &Cube{
		NChan:  n,
		NCorr:  c.NCorr,
		Data:   slices.Clone(c.Data[lo:hi]),
		Flag:   slices.Clone(c.Flag[lo:hi]),
		Weight: slices.Clone(c.Weight[lo:hi]),
	}
}

// Permuted returns the cube with channels reordered by order.
func (c *Cube) Permuted(order []int) *Cube {
	out := NewCube(len(order), c.NCorr)
	for i, src := range order {
		copy(out.Data[i*c.NCorr:(i+1)*c.NCorr], c.Data[src*c.NCorr:(src+1)*c.NCorr])
		copy(out.Flag[i*c.NCorr:(i+1)*c.NCorr], c.Flag[src*c.NCorr:(src+1)*c.NCorr])
		copy(out.Weight[i*c.NCorr:(i+1)*c.NCorr], c.Weight[src*c.NCorr:(src+1)*c.NCorr])
	}

	return out
}
