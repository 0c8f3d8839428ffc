package grid

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-mstransform/dsp/core"
)

// Contribution is the share of one input channel in one output channel.
// Chan indexes the selected channels of Spw in buffer order.
type Contribution struct {
	Spw      int
	Chan     int
	Fraction float64
}

// Overlap returns, for each channel of out, the channels of in (tagged with
// spw) that overlap it. Fraction is the overlap width divided by the output
// channel width, so it is exactly 1 when the output channel lies inside one
// input channel and the fractions from one window never sum above 1.
func Overlap(in Grid, spw int, out Grid) [][]Contribution {
	order := in.AscendingOrder()
	lower := make([]float64, len(order))
	for i, c := range order {
		lower[i] = in.Lower(c)
	}

	contrib := make([][]Contribution, out.Len())
	for k := range contrib {
		lo, hi := out.Lower(k), out.Upper(k)
		width := hi - lo
		if width <= 0 {
			continue
		}

		// first input channel whose upper edge may exceed lo
		start := sort.SearchFloat64s(lower, lo)
		if start > 0 {
			start--
		}

		for i := start; i < len(order); i++ {
			c := order[i]
			if in.Lower(c) >= hi {
				break
			}

			ov := math.Min(hi, in.Upper(c)) - math.Max(lo, in.Lower(c))
			if ov <= 0 {
				continue
			}

			frac := ov / width
			if frac > 1 || nearlyOne(frac) {
				frac = 1
			}
			contrib[k] = append(contrib[k], Contribution{Spw: spw, Chan: c, Fraction: frac})
		}
	}

	return contrib
}

func nearlyOne(v float64) bool {
	return core.NearlyEqual(v, 1, 1e-9)
}

// Merge concatenates per-channel contribution lists of several windows.
func Merge(lists ...[][]Contribution) [][]Contribution {
	if len(lists) == 0 {
		return nil
	}

	out := make([][]Contribution, len(lists[0]))
	for _, l := range lists {
		for k := range out {
			out[k] = append(out[k], l[k]...)
		}
	}

	return out
}

// SumFraction returns the summed fraction of spw in one contribution list.
func SumFraction(c []Contribution, spw int) float64 {
	sum := 0.0
	for _, x := range c {
		if x.Spw == spw {
			sum += x.Fraction
		}
	}

	return sum
}
