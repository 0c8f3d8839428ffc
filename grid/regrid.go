package grid

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/interp"
)

// Mode selects how output channels of a regrid are specified.
type Mode int

const (
	ModeChannel Mode = iota
	ModeFrequency
	ModeVelocity
)

func (m Mode) String() string {
	switch m {
	case ModeFrequency:
		return "frequency"
	case ModeVelocity:
		return "velocity"
	default:
		return "channel"
	}
}

// ParseMode parses a regrid mode name. The empty string selects channel mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "channel", "channel_b":
		return ModeChannel, nil
	case "frequency":
		return ModeFrequency, nil
	case "velocity":
		return ModeVelocity, nil
	default:
		return ModeChannel, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// RegridSpec describes the output grid of a regrid.
type RegridSpec struct {
	Mode Mode
	// Start is the first output channel: an input channel index, a frequency
	// or a velocity depending on Mode. NaN selects the default.
	Start float64
	// Width is the output channel width in input channels, Hz or m/s.
	// Zero selects the default. A negative width counts down from Start.
	Width float64
	// NChan is the output channel count; zero or less fills the input span.
	NChan int
	// RestFreq anchors velocity grids.
	RestFreq float64
	VelType  VelocityType
	// OutFrame is the output frame; FrameUndefined keeps the input frame.
	OutFrame      archive.Frame
	Interpolation interp.Method
}

// DefaultRegrid returns a spec that regrids onto the input span.
func DefaultRegrid() RegridSpec {
	return RegridSpec{Start: math.NaN(), OutFrame: archive.FrameUndefined, Interpolation: interp.Linear}
}

// outputGrid computes ascending output channels from an input grid that is
// already expressed in the output frame.
func outputGrid(in Grid, spec RegridSpec) (Grid, error) {
	if in.Len() == 0 {
		return Grid{}, ErrEmptyGrid
	}

	order := in.AscendingOrder()
	asc := makeGrid(in.Len())
	for i, c := range order {
		asc.Freq[i] = in.Freq[c]
		asc.Width[i] = math.Abs(in.Width[c])
		asc.EffectiveBW[i] = in.EffectiveBW[c]
		asc.Resolution[i] = in.Resolution[c]
	}

	var lower, upper []float64
	var err error
	switch spec.Mode {
	case ModeFrequency:
		lower, upper, err = frequencyEdges(asc, spec)
	case ModeVelocity:
		lower, upper, err = velocityEdges(asc, spec)
	default:
		lower, upper, err = channelEdges(asc, spec)
	}
	if err != nil {
		return Grid{}, err
	}
	if len(lower) == 0 {
		return Grid{}, ErrEmptyGrid
	}

	out := makeGrid(len(lower))
	for i := range lower {
		out.Freq[i] = 0.5 * (lower[i] + upper[i])
		out.Width[i] = upper[i] - lower[i]
		out.EffectiveBW[i] = out.Width[i]
		out.Resolution[i] = out.Width[i]
	}

	sortGrid(out)
	return out, nil
}

func sortGrid(g Grid) {
	order := g.AscendingOrder()
	if slices.IsSorted(order) {
		return
	}

	c := g.Clone()
	for i, o := range order {
		g.Freq[i] = c.Freq[o]
		g.Width[i] = c.Width[o]
		g.EffectiveBW[i] = c.EffectiveBW[o]
		g.Resolution[i] = c.Resolution[o]
	}
}

// channelEdges bins Width input channels per output channel starting at
// input channel Start.
func channelEdges(asc Grid, spec RegridSpec) (lower, upper []float64, err error) {
	start := 0
	if !math.IsNaN(spec.Start) {
		start = int(spec.Start)
	}
	width := max(int(math.Abs(spec.Width)), 1)
	if start < 0 || start >= asc.Len() {
		return nil, nil, fmt.Errorf("%w: start channel %d of %d", ErrEmptyGrid, start, asc.Len())
	}

	n := (asc.Len() - start) / width
	if spec.NChan > 0 {
		n = min(spec.NChan, n)
	}

	for i := range n {
		lo := start + i*width
		hi := lo + width - 1
		lower = append(lower, asc.Lower(lo))
		upper = append(upper, asc.Upper(hi))
	}

	return lower, upper, nil
}

func frequencyEdges(asc Grid, spec RegridSpec) (lower, upper []float64, err error) {
	spanLo, spanHi := asc.Span()

	width := spec.Width
	if width == 0 {
		width = asc.Width[0]
		if !math.IsNaN(spec.Start) {
			width = asc.Width[nearest(asc.Freq, spec.Start)]
		}
	}
	if math.IsNaN(width) || math.IsInf(width, 0) {
		return nil, nil, ErrBadWidth
	}

	return uniformEdges(spec.Start, width, spec.NChan, spanLo, spanHi)
}

// uniformEdges lays out equal-width channels from start (a channel centre)
// across [spanLo, spanHi]. Negative widths count down from start.
func uniformEdges(start, width float64, nchan int, spanLo, spanHi float64) (lower, upper []float64, err error) {
	abs := math.Abs(width)
	if abs == 0 {
		return nil, nil, ErrBadWidth
	}

	if math.IsNaN(start) {
		if width > 0 {
			start = spanLo + 0.5*abs
		} else {
			start = spanHi - 0.5*abs
		}
	}

	if nchan <= 0 {
		if width > 0 {
			nchan = int(math.Floor((spanHi-(start-0.5*abs))/abs + 1e-9))
		} else {
			nchan = int(math.Floor(((start+0.5*abs)-spanLo)/abs + 1e-9))
		}
	}

	for i := range max(nchan, 0) {
		c := start + float64(i)*width
		lower = append(lower, c-0.5*abs)
		upper = append(upper, c+0.5*abs)
	}

	return lower, upper, nil
}

func velocityEdges(asc Grid, spec RegridSpec) (lower, upper []float64, err error) {
	rest := spec.RestFreq
	if rest <= 0 {
		return nil, nil, ErrNoRestFrequency
	}

	vt := spec.VelType
	spanLo, spanHi := asc.Span()
	// velocity decreases with frequency
	vLo, vHi := vt.ToVelocity(spanHi, rest), vt.ToVelocity(spanLo, rest)

	width := spec.Width
	if width == 0 {
		mid := asc.Len() / 2
		width = math.Abs(vt.ToVelocity(asc.Lower(mid), rest) - vt.ToVelocity(asc.Upper(mid), rest))
	}

	vl, vu, err := uniformEdges(spec.Start, width, spec.NChan, vLo, vHi)
	if err != nil {
		return nil, nil, err
	}

	for i := range vl {
		// velocity edges swap when mapped to frequency
		lower = append(lower, vt.ToFrequency(vu[i], rest))
		upper = append(upper, vt.ToFrequency(vl[i], rest))
	}

	return lower, upper, nil
}

func nearest(x []float64, v float64) int {
	best, dist := 0, math.Inf(1)
	for i, f := range x {
		if d := math.Abs(f - v); d < dist {
			best, dist = i, d
		}
	}

	return best
}

// FineGrid is the compatibility approximation used when output channels are
// more than twice as wide as input channels: each output channel is split
// into Sub sub-channels of input width aligned to its edges, each sub-channel
// takes the nearest input channel, and the sub-channels are then averaged.
// It mirrors the behaviour of the imaging tools downstream and is kept
// deliberately as is.
type FineGrid struct {
	Sub int
}

// Map returns, for each sub-channel k*Sub+j of out, the index into in of the
// input channel nearest its centre, or -1 when the sub-channel lies outside
// the input span.
func (f FineGrid) Map(in Grid, out Grid) []int {
	order := in.AscendingOrder()
	asc := make([]float64, len(order))
	for i, c := range order {
		asc[i] = in.Freq[c]
	}
	lo, hi := in.Span()

	m := make([]int, out.Len()*f.Sub)
	for k := range out.Len() {
		sw := math.Abs(out.Width[k]) / float64(f.Sub)
		base := out.Lower(k)
		for j := range f.Sub {
			centre := base + (float64(j)+0.5)*sw
			if centre < lo || centre > hi {
				m[k*f.Sub+j] = -1
				continue
			}
			m[k*f.Sub+j] = order[nearestSorted(asc, centre)]
		}
	}

	return m
}

func nearestSorted(asc []float64, v float64) int {
	i, _ := slices.BinarySearch(asc, v)
	switch {
	case i == 0:
		return 0
	case i == len(asc):
		return len(asc) - 1
	case v-asc[i-1] <= asc[i]-v:
		return i - 1
	default:
		return i
	}
}

// widthRatio returns median output width over median input width.
func widthRatio(in, out Grid) float64 {
	med := func(w []float64) float64 {
		a := make([]float64, len(w))
		for i, v := range w {
			a[i] = math.Abs(v)
		}
		slices.Sort(a)
		return a[len(a)/2]
	}

	if in.Len() == 0 || out.Len() == 0 {
		return 1
	}

	return med(out.Width) / med(in.Width)
}
