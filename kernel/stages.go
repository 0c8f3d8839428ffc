package kernel

import (
	"github.com/cwbudde/algo-mstransform/dsp/core"
	"github.com/cwbudde/algo-mstransform/dsp/interp"
	"github.com/cwbudde/algo-mstransform/grid"
)

// Hanning taps.
const (
	hanningEdge   = 0.25
	hanningCentre = 0.5
)

// average reduces bin consecutive channels into one. Bin widths of 1 or
// less return the input unchanged.
func average(in *Cube, bin int, agg *Aggregator) *Cube {
	if bin <= 1 {
		return in.Clone()
	}

	n := in.NChan / bin
	out := NewCube(n, in.NCorr)
	for k := range n {
		for corr := range in.NCorr {
			agg.Reset()
			for c := k * bin; c < (k+1)*bin; c++ {
				i := c*in.NCorr + corr
				agg.Add(in.Data[i], in.Flag[i], in.Weight[i], 1)
			}

			o := k*in.NCorr + corr
			out.Data[o], out.Flag[o], out.Weight[o] = agg.Result()
		}
	}

	return out
}

// hanning applies the 3-tap Hanning window along channels. Edge channels
// are flagged; flags of the three taps propagate to the output; weights
// follow the variance of the weighted sum.
func hanning(in *Cube) *Cube {
	out := in.Clone()
	last := in.NChan - 1

	for c := range in.NChan {
		for corr := range in.NCorr {
			i := c*in.NCorr + corr
			if c == 0 || c == last {
				out.Flag[i] = true
				continue
			}

			p, n := i-in.NCorr, i+in.NCorr
			out.Data[i] = hanningEdge*in.Data[p] + hanningCentre*in.Data[i] + hanningEdge*in.Data[n]
			out.Flag[i] = in.Flag[p] || in.Flag[i] || in.Flag[n]

			wp, wc, wn := in.Weight[p], in.Weight[i], in.Weight[n]
			if wp <= 0 || wc <= 0 || wn <= 0 {
				out.Weight[i] = 0
				continue
			}
			variance := hanningEdge*hanningEdge/wp + hanningCentre*hanningCentre/wc + hanningEdge*hanningEdge/wn
			out.Weight[i] = 1 / variance
		}
	}

	return out
}

// combine builds the cube of a combined grid from the cubes of its input
// windows, keyed by window id.
func combine(cubes map[int]*Cube, contrib [][]grid.Contribution, agg *Aggregator) (*Cube, error) {
	ncorr := -1
	for _, c := range cubes {
		if ncorr >= 0 && c.NCorr != ncorr {
			return nil, ErrShape
		}
		ncorr = c.NCorr
	}
	if ncorr < 0 {
		return nil, ErrShape
	}

	out := NewCube(len(contrib), ncorr)
	for k, list := range contrib {
		for corr := range ncorr {
			agg.Reset()
			for _, x := range list {
				cube := cubes[x.Spw]
				if cube == nil || x.Chan >= cube.NChan {
					continue
				}
				i := x.Chan*ncorr + corr
				agg.Add(cube.Data[i], cube.Flag[i], cube.Weight[i], x.Fraction)
			}

			o := k*ncorr + corr
			out.Data[o], out.Flag[o], out.Weight[o] = agg.Result()
		}
	}

	return out, nil
}

// regrid maps the cube from its input grid (in the output frame) onto out.
func regrid(in *Cube, from grid.Grid, out grid.Grid, method interp.Method, fine *grid.FineGrid, agg *Aggregator) (*Cube, error) {
	if from.Len() != in.NChan {
		return nil, ErrMissingFrequencies
	}

	if fine != nil {
		return regridFine(in, from, out, *fine, agg), nil
	}

	order := from.AscendingOrder()
	sorted := in.Permuted(order)
	x := make([]float64, len(order))
	for i, c := range order {
		x[i] = from.Freq[c]
	}

	res := NewCube(out.Len(), in.NCorr)
	var y []complex64
	vals := make([]complex64, out.Len())
	valid := make([]bool, out.Len())
	nb := make([][2]int, out.Len())

	for corr := range in.NCorr {
		y = core.Stride(y, sorted.Data, corr, in.NCorr)
		if err := interp.Resample(method, x, y, out.Freq, vals, valid, nb); err != nil {
			return nil, err
		}

		for k := range vals {
			o := k*in.NCorr + corr
			if !valid[k] {
				res.Flag[o] = true
				continue
			}

			flagged := false
			var wsum float32
			for c := nb[k][0]; c < nb[k][1]; c++ {
				i := c*in.NCorr + corr
				flagged = flagged || sorted.Flag[i]
				wsum += sorted.Weight[i]
			}

			res.Data[o] = vals[k]
			res.Flag[o] = flagged
			if n := nb[k][1] - nb[k][0]; n > 0 {
				res.Weight[o] = wsum / float32(n)
			}
		}
	}

	return res, nil
}

func regridFine(in *Cube, from grid.Grid, out grid.Grid, fine grid.FineGrid, agg *Aggregator) *Cube {
	m := fine.Map(from, out)
	res := NewCube(out.Len(), in.NCorr)

	for k := range out.Len() {
		for corr := range in.NCorr {
			agg.Reset()
			for j := range fine.Sub {
				src := m[k*fine.Sub+j]
				if src < 0 {
					continue
				}
				i := src*in.NCorr + corr
				agg.Add(in.Data[i], in.Flag[i], in.Weight[i], 1)
			}

			o := k*in.NCorr + corr
			res.Data[o], res.Flag[o], res.Weight[o] = agg.Result()
		}
	}

	return res
}
