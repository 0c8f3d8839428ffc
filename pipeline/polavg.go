package pipeline

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/core"
)

// PolAverageMode selects how parallel hands are combined into Stokes I.
type PolAverageMode int

const (
	// PolAverageDefault takes the weighted mean of the unflagged hands.
	PolAverageDefault PolAverageMode = iota
	// PolAverageStokes takes (p+q)/2 and flags the sample when either hand is flagged.
	PolAverageStokes
)

func (m PolAverageMode) String() string {
	if m == PolAverageStokes {
		return "stokes"
	}

	return "default"
}

// ParsePolAverageMode parses "default" (or "") and "stokes".
func ParsePolAverageMode(s string) (PolAverageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PolAverageDefault, nil
	case "stokes":
		return PolAverageStokes, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrPolAverageMode, s)
	}
}

// polavg reduces averageable rows to one Stokes I correlation. Other rows
// pass unchanged.
type polavg struct {
	inner Iterator
	mode  PolAverageMode
}

func (p *polavg) Columns() archive.ColumnSet {
	return p.inner.Columns()
}

func (p *polavg) Next() (*Buffer, error) {
	b, err := p.inner.Next()
	if err != nil {
		return nil, err
	}

	cols := b.visibilityColumns()
	for i := range b.Rows {
		r := &b.Rows[i]
		a, c, ok := archive.ParallelHands(b.Correlations(r.DataDescID))
		if !ok {
			continue
		}

		nchan, ncorr := b.Shape(i)
		wa, wc := r.Weight[a], r.Weight[c]

		flag := make([]bool, nchan)
		var wspec []float32
		if r.WeightSpectrum != nil {
			wspec = make([]float32, nchan)
		}

		for _, col := range cols {
			cell := b.Cell(i, col)
			out := make([]complex64, nchan)
			for ch := range nchan {
				sa, sc := ch*ncorr+a, ch*ncorr+c
				w1, w2 := wa, wc
				if r.WeightSpectrum != nil {
					w1, w2 = r.WeightSpectrum[sa], r.WeightSpectrum[sc]
				}
				v, f, w := p.combine(cell[sa], cell[sc], r.Flag[sa], r.Flag[sc], w1, w2)
				out[ch] = v
				flag[ch] = f
				if wspec != nil {
					wspec[ch] = w
				}
			}
			b.SetCell(i, col, out)
		}

		_, _, w := p.combine(0, 0, false, false, wa, wc)
		r.Flag = flag
		r.Weight = []float32{w}
		r.Sigma = []float32{sigmaOf(w)}
		if wspec != nil {
			r.WeightSpectrum = wspec
			if r.SigmaSpectrum != nil {
				r.SigmaSpectrum = make([]float32, nchan)
				for ch, w := range wspec {
					r.SigmaSpectrum[ch] = sigmaOf(w)
				}
			}
		} else {
			r.SigmaSpectrum = nil
		}

		allFlagged := true
		for _, f := range flag {
			allFlagged = allFlagged && f
		}
		r.FlagRow = allFlagged
	}

	return b, nil
}

// combine reduces one pair of hand samples.
func (p *polavg) combine(va, vc complex64, fa, fc bool, wa, wc float32) (complex64, bool, float32) {
	if p.mode == PolAverageStokes {
		w := float32(0)
		if wa > 0 && wc > 0 {
			w = 4 / (1/wa + 1/wc)
		}
		return (va + vc) / 2, fa || fc, w
	}

	switch {
	case fa && fc:
		return (va + vc) / 2, true, wa + wc
	case fa:
		return vc, false, wc
	case fc:
		return va, false, wa
	}

	if wa+wc <= 0 {
		return 0, true, 0
	}

	v := (va*complex(wa, 0) + vc*complex(wc, 0)) / complex(wa+wc, 0)
	return v, false, wa + wc
}

func sigmaOf(w float32) float32 {
	return float32(core.WeightToSigma(float64(w)))
}
