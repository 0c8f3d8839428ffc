package pipeline

import (
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/selection"
)

// ContinuumModel removes the continuum from one cell.
type ContinuumModel interface {
	// Subtract fits and removes the continuum of a chan*ncorr+corr cell of
	// window spw. chans holds the input channel numbers of the cell rows and
	// freq their frequencies.
	Subtract(spw int, chans []int, freq []float64, cell []complex64, flag []bool, ncorr int)
}

// PolyFit subtracts a least-squares polynomial in frequency fitted to the
// unflagged line-free channels, separately for each correlation and for the
// real and imaginary parts.
type PolyFit struct {
	Order int
	// LineFree lists the fit channels per window in input channel numbers.
	// Windows without an entry fit every channel.
	LineFree map[int][]selection.ChannelRange
}

// Subtract implements ContinuumModel.
func (p PolyFit) Subtract(spw int, chans []int, freq []float64, cell []complex64, flag []bool, ncorr int) {
	nchan := len(chans)
	if nchan == 0 || ncorr == 0 {
		return
	}

	var free map[int]bool
	if r, ok := p.LineFree[spw]; ok {
		free = make(map[int]bool)
		for _, c := range selection.ChannelIndices(r) {
			free[c] = true
		}
	}

	lo, hi := freq[0], freq[0]
	for _, f := range freq {
		lo, hi = math.Min(lo, f), math.Max(hi, f)
	}
	mid, half := 0.5*(lo+hi), 0.5*(hi-lo)
	if half == 0 {
		half = 1
	}
	x := make([]float64, nchan)
	for i, f := range freq {
		x[i] = (f - mid) / half
	}

	for k := range ncorr {
		var fx, re, im []float64
		for i := range nchan {
			if flag[i*ncorr+k] || (free != nil && !free[chans[i]]) {
				continue
			}
			v := cell[i*ncorr+k]
			fx = append(fx, x[i])
			re = append(re, float64(real(v)))
			im = append(im, float64(imag(v)))
		}
		if len(fx) == 0 {
			continue
		}

		order := min(p.Order, len(fx)-1)
		basis := powers(fx, order)
		cr := solveNormal(basis, re)
		ci := solveNormal(basis, im)

		for i := range nchan {
			m := complex(float32(horner(cr, x[i])), float32(horner(ci, x[i])))
			cell[i*ncorr+k] -= m
		}
	}
}

// powers returns the columns x^0..x^order.
func powers(x []float64, order int) [][]float64 {
	out := make([][]float64, order+1)
	out[0] = make([]float64, len(x))
	for i := range out[0] {
		out[0][i] = 1
	}
	for j := 1; j <= order; j++ {
		out[j] = make([]float64, len(x))
		vecmath.MulBlock(out[j], out[j-1], x)
	}

	return out
}

// solveNormal solves the least-squares normal equations by Gaussian
// elimination with partial pivoting.
func solveNormal(basis [][]float64, y []float64) []float64 {
	n := len(basis)
	a := make([][]float64, n)
	for i := range n {
		a[i] = make([]float64, n+1)
		for j := range n {
			a[i][j] = vecmath.DotProduct(basis[i], basis[j])
		}
		a[i][n] = vecmath.DotProduct(basis[i], y)
	}

	for col := range n {
		piv := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[piv][col]) {
				piv = r
			}
		}
		a[col], a[piv] = a[piv], a[col]
		if a[col][col] == 0 {
			continue
		}
		for r := range n {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	out := make([]float64, n)
	for i := range n {
		if a[i][i] != 0 {
			out[i] = a[i][n] / a[i][i]
		}
	}

	return out
}

func horner(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}

	return v
}

// contsub applies a continuum model to the corrected column when present,
// else to DATA.
type contsub struct {
	inner Iterator
	model ContinuumModel
}

func (c *contsub) Columns() archive.ColumnSet {
	return c.inner.Columns()
}

func (c *contsub) Next() (*Buffer, error) {
	b, err := c.inner.Next()
	if err != nil {
		return nil, err
	}

	for i := range b.Rows {
		r := &b.Rows[i]
		_, ncorr := b.Shape(i)
		cell := r.Corrected
		if cell == nil {
			cell = r.Data
		}
		if cell == nil {
			continue
		}
		c.model.Subtract(b.Spw(r.DataDescID), b.Channels(r.DataDescID), b.Frequencies(r.DataDescID), cell, r.Flag, ncorr)
	}

	return b, nil
}
