package kernel

import "fmt"

// Weighting selects how samples are reduced into one.
type Weighting int

const (
	// Mean averages every sample.
	Mean Weighting = iota
	// FlagMean averages unflagged samples.
	FlagMean
	// WeightMean averages every sample by weight.
	WeightMean
	// FlagWeightMean averages unflagged samples by weight.
	FlagWeightMean
	// FlagNonZeroMean averages the current run: accumulation restarts at the
	// first unflagged sample and flagged samples after it are ignored. An
	// all-flagged input yields the flagged mean of everything.
	FlagNonZeroMean
	// FlagWeightNonZeroMean is FlagNonZeroMean weighted by weight.
	FlagWeightNonZeroMean
	// CumSum sums every sample.
	CumSum
	// FlagCumSum sums unflagged samples.
	FlagCumSum
	// FlagCumSumNonZero sums the current run like FlagNonZeroMean.
	FlagCumSumNonZero
)

var weightingNames = [...]string{
	Mean:                  "mean",
	FlagMean:              "flag-mean",
	WeightMean:            "weight-mean",
	FlagWeightMean:        "flag-weight-mean",
	FlagNonZeroMean:       "flag-nonzero-mean",
	FlagWeightNonZeroMean: "flag-weight-nonzero-mean",
	CumSum:                "cum-sum",
	FlagCumSum:            "flag-cum-sum",
	FlagCumSumNonZero:     "flag-cum-sum-nonzero",
}

func (w Weighting) String() string {
	if w < 0 || int(w) >= len(weightingNames) {
		return fmt.Sprintf("Weighting(%d)", int(w))
	}

	return weightingNames[w]
}

func (w Weighting) weighted() bool {
	return w == WeightMean || w == FlagWeightMean || w == FlagWeightNonZeroMean
}

func (w Weighting) run() bool {
	return w == FlagNonZeroMean || w == FlagWeightNonZeroMean || w == FlagCumSumNonZero
}

func (w Weighting) sum() bool {
	return w == CumSum || w == FlagCumSum || w == FlagCumSumNonZero
}

func (w Weighting) flagAware() bool {
	return w != Mean && w != WeightMean && w != CumSum
}

type sums struct {
	v    complex128
	norm float64
	n    int
}

func (s *sums) add(v complex128, norm float64) {
	s.v += v * complex(norm, 0)
	s.norm += norm
	s.n++
}

type acc struct {
	mode Weighting
	// cur is the run of run modes or the unflagged samples otherwise.
	cur       sums
	all       sums
	unflagged bool
}

func (a *acc) reset() {
	a.cur, a.all, a.unflagged = sums{}, sums{}, false
}

func (a *acc) add(v complex128, norm float64, flagged bool) {
	if a.mode.run() {
		switch {
		case flagged && a.unflagged:
			return
		case !flagged && !a.unflagged:
			a.cur = sums{}
			a.unflagged = true
		}
		a.cur.add(v, norm)
		return
	}

	a.all.add(v, norm)
	if !flagged {
		a.cur.add(v, norm)
		a.unflagged = true
	}
}

func (a *acc) result() (complex128, bool) {
	s := a.cur
	flagged := !a.unflagged
	if !a.mode.flagAware() {
		s = a.all
	} else if !a.mode.run() && flagged {
		return 0, true
	}

	if s.n == 0 {
		return 0, true
	}
	if a.mode.sum() {
		return s.v, flagged
	}
	if s.norm == 0 {
		return 0, true
	}

	return s.v / complex(s.norm, 0), flagged
}

// Aggregator reduces a set of samples into one with a data and a weight
// kernel. It is reused across outputs via Reset.
type Aggregator struct {
	data   acc
	weight acc
}

// NewAggregator returns an aggregator for the given kernels.
func NewAggregator(data, weight Weighting) *Aggregator {
	return &Aggregator{data: acc{mode: data}, weight: acc{mode: weight}}
}

// Reset clears the accumulated samples.
func (a *Aggregator) Reset() {
	a.data.reset()
	a.weight.reset()
}

// Add accumulates one sample. frac scales its contribution, as for a
// partially overlapping channel.
func (a *Aggregator) Add(v complex64, flagged bool, w float32, frac float64) {
	norm := frac
	if a.data.mode.weighted() {
		norm *= float64(w)
	}

	a.data.add(complex128(v), norm, flagged)
	a.weight.add(complex(float64(w), 0), frac, flagged)
}

// Result returns the reduced sample, its flag and its weight. Outputs with
// zero normalization are zero and flagged.
func (a *Aggregator) Result() (complex64, bool, float32) {
	v, flagged := a.data.result()
	w, _ := a.weight.result()
	return complex64(v), flagged, float32(real(w))
}
