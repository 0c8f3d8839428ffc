package grid

import (
	"math"
	"slices"
	"sort"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mstransform/archive"
)

// Grid is an ordered list of channels. Widths carry the sign of the channel
// order: descending grids have negative widths.
type Grid struct {
	Freq        []float64
	Width       []float64
	EffectiveBW []float64
	Resolution  []float64
}

// FromWindow extracts the channels idx of spw. A nil idx takes every channel.
func FromWindow(spw archive.SpectralWindow, idx []int) Grid {
	if idx == nil {
		idx = make([]int, spw.NumChan())
		for i := range idx {
			idx[i] = i
		}
	}

	g := makeGrid(len(idx))
	for i, c := range idx {
		ch := spw.Channel(c)
		g.Freq[i] = ch.Freq
		g.Width[i] = ch.Width
		g.EffectiveBW[i] = orDefault(ch.EffectiveBW, math.Abs(ch.Width))
		g.Resolution[i] = orDefault(ch.Resolution, math.Abs(ch.Width))
	}

	return g
}

func orDefault(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}

func makeGrid(n int) Grid {
	return Grid{
		Freq:        make([]float64, n),
		Width:       make([]float64, n),
		EffectiveBW: make([]float64, n),
		Resolution:  make([]float64, n),
	}
}

// Len returns the channel count.
func (g Grid) Len() int {
	return len(g.Freq)
}

// Lower returns the lower edge of channel i.
func (g Grid) Lower(i int) float64 {
	return g.Freq[i] - 0.5*math.Abs(g.Width[i])
}

// Upper returns the upper edge of channel i.
func (g Grid) Upper(i int) float64 {
	return g.Freq[i] + 0.5*math.Abs(g.Width[i])
}

// Bandwidth returns the summed absolute channel width.
func (g Grid) Bandwidth() float64 {
	abs := make([]float64, g.Len())
	for i, w := range g.Width {
		abs[i] = math.Abs(w)
	}

	return vecmath.Sum(abs)
}

// Span returns the lowest lower edge and highest upper edge.
func (g Grid) Span() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range g.Freq {
		lo = math.Min(lo, g.Lower(i))
		hi = math.Max(hi, g.Upper(i))
	}

	return lo, hi
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	return Grid{
		Freq:        slices.Clone(g.Freq),
		Width:       slices.Clone(g.Width),
		EffectiveBW: slices.Clone(g.EffectiveBW),
		Resolution:  slices.Clone(g.Resolution),
	}
}

// Slice returns channels [lo, hi).
func (g Grid) Slice(lo, hi int) Grid {
	return Grid{
		Freq:        slices.Clone(g.Freq[lo:hi]),
		Width:       slices.Clone(g.Width[lo:hi]),
		EffectiveBW: slices.Clone(g.EffectiveBW[lo:hi]),
		Resolution:  slices.Clone(g.Resolution[lo:hi]),
	}
}

// Scaled returns the grid with frequencies and widths multiplied by factor.
func (g Grid) Scaled(factor float64) Grid {
	out := makeGrid(g.Len())
	vecmath.ScaleBlock(out.Freq, g.Freq, factor)
	vecmath.ScaleBlock(out.Width, g.Width, factor)
	vecmath.ScaleBlock(out.EffectiveBW, g.EffectiveBW, factor)
	vecmath.ScaleBlock(out.Resolution, g.Resolution, factor)
	return out
}

// AscendingOrder returns the permutation that sorts channels by frequency.
func (g Grid) AscendingOrder() []int {
	order := make([]int, g.Len())
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool { return g.Freq[order[a]] < g.Freq[order[b]] })
	return order
}

// Average bins bin consecutive channels into one. A trailing partial bin is
// dropped; dropped reports how many channels were discarded.
func (g Grid) Average(bin int) (out Grid, dropped int) {
	if bin <= 1 {
		return g.Clone(), 0
	}

	n := g.Len() / bin
	out = makeGrid(n)
	for k := range n {
		lo, hi := k*bin, (k+1)*bin-1
		// centre of the covered span, width the summed channel width
		first, last := g.Freq[lo], g.Freq[hi]
		var width, ebw, res float64
		for c := lo; c <= hi; c++ {
			width += g.Width[c]
			ebw += g.EffectiveBW[c]
			res += g.Resolution[c]
		}
		out.Freq[k] = 0.5*(first-0.5*g.Width[lo]) + 0.5*(last+0.5*g.Width[hi])
		out.Width[k] = width
		out.EffectiveBW[k] = ebw
		out.Resolution[k] = res
	}

	return out, g.Len() - n*bin
}

// Window converts the grid into a spectral-window row based on tmpl.
func (g Grid) Window(tmpl archive.SpectralWindow, frame archive.Frame) archive.SpectralWindow {
	spw := tmpl
	spw.Frame = frame
	spw.ChanFreq = slices.Clone(g.Freq)
	spw.ChanWidth = slices.Clone(g.Width)
	spw.EffectiveBW = slices.Clone(g.EffectiveBW)
	spw.Resolution = slices.Clone(g.Resolution)
	spw.TotalBandwidth = g.Bandwidth()
	if g.Len() > 0 {
		spw.RefFrequency = g.Freq[0]
	}

	return spw
}
