package kernel

import (
	"fmt"

	"github.com/cwbudde/algo-mstransform/grid"
)

// Config holds the flags that select kernels and transforms.
type Config struct {
	Combine        bool
	Regrid         bool
	ChanAverage    bool
	Smooth         bool
	Split          bool
	WeightSpectrum bool
	TimeAverage    bool
	// IgnoreFlags reduces samples regardless of their flags.
	IgnoreFlags bool
}

// Strategy is the resolved kernel selection of a configuration.
type Strategy struct {
	Kind    Kind
	Combine bool
	Split   bool
	// Data reduces visibilities; Weight reduces weights.
	Data   Weighting
	Weight Weighting
}

func (s Strategy) String() string {
	name := s.Kind.String()
	if s.Combine {
		name = "combine+" + name
	}
	if s.Split {
		name += "+split"
	}

	return fmt.Sprintf("%s data=%v weight=%v", name, s.Data, s.Weight)
}

// Resolve selects the transform kind and kernels for cfg. Every flag
// combination resolves.
func Resolve(cfg Config) Strategy {
	s := Strategy{Combine: cfg.Combine, Split: cfg.Split}

	switch {
	case cfg.ChanAverage && cfg.Smooth && cfg.Regrid:
		s.Kind = KindAverageSmoothRegrid
	case cfg.ChanAverage && cfg.Regrid:
		s.Kind = KindAverageRegrid
	case cfg.ChanAverage && cfg.Smooth:
		s.Kind = KindAverageSmooth
	case cfg.Smooth && cfg.Regrid:
		s.Kind = KindSmoothRegrid
	case cfg.ChanAverage:
		s.Kind = KindAverage
	case cfg.Smooth:
		s.Kind = KindSmooth
	case cfg.Regrid:
		s.Kind = KindRegrid
	default:
		s.Kind = KindCopy
	}

	switch {
	case cfg.IgnoreFlags && cfg.WeightSpectrum:
		s.Data, s.Weight = WeightMean, CumSum
	case cfg.IgnoreFlags:
		s.Data, s.Weight = Mean, CumSum
	case cfg.TimeAverage && cfg.WeightSpectrum:
		s.Data, s.Weight = FlagWeightNonZeroMean, FlagCumSumNonZero
	case cfg.TimeAverage:
		s.Data, s.Weight = FlagNonZeroMean, FlagCumSumNonZero
	case cfg.WeightSpectrum:
		s.Data, s.Weight = FlagWeightMean, FlagCumSum
	default:
		s.Data, s.Weight = FlagMean, FlagCumSum
	}

	return s
}

// NewAggregator returns an aggregator for the strategy's kernels.
func (s Strategy) NewAggregator() *Aggregator {
	return NewAggregator(s.Data, s.Weight)
}

// Build creates one transform per window of plan, in window order.
func (s Strategy) Build(plan *grid.Plan) ([]Transform, error) {
	out := make([]Transform, len(plan.Windows))
	for i := range plan.Windows {
		t, err := s.build(plan, i)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}

	return out, nil
}

func (s Strategy) build(plan *grid.Plan, i int) (Transform, error) {
	w := &plan.Windows[i]
	agg := s.NewAggregator()

	var rp RegridParams
	switch s.Kind {
	case KindRegrid, KindAverageRegrid, KindSmoothRegrid, KindAverageSmoothRegrid:
		if w.Regrid == nil {
			return nil, fmt.Errorf("%w: %v without a regrid plan for spw %d", ErrIllegalConfig, s.Kind, w.Spws[0])
		}
		rp = RegridParams{Output: w.Output, Method: w.Regrid.Interpolation, Fine: w.Fine}
	}

	var t Transform
	switch s.Kind {
	case KindAverage:
		t = &Average{Bin: w.Bin, agg: agg}
	case KindSmooth:
		t = &Smooth{}
	case KindRegrid:
		t = &Regrid{RegridParams: rp, agg: agg}
	case KindAverageSmooth:
		t = &AverageSmooth{Bin: w.Bin, agg: agg}
	case KindAverageRegrid:
		t = &AverageRegrid{Bin: w.Bin, RegridParams: rp, agg: agg}
	case KindSmoothRegrid:
		t = &SmoothRegrid{RegridParams: rp, agg: agg}
	case KindAverageSmoothRegrid:
		t = &AverageSmoothRegrid{Bin: w.Bin, RegridParams: rp, agg: agg}
	default:
		t = &Copy{}
	}

	if w.Combined() {
		t = &Combine{Contributions: w.Contributions, CombinedID: w.Spws[0], Then: t, agg: s.NewAggregator()}
	}

	outputs := plan.OutputsOf(i)
	if len(outputs) > 1 {
		parts := make([][2]int, len(outputs))
		for j, o := range outputs {
			parts[j] = [2]int{plan.Outputs[o].Start, plan.Outputs[o].NChan}
		}
		t = &Split{Inner: t, Parts: parts}
	}

	return t, nil
}

// Hanning returns the 3-tap Hanning-smoothed copy of c.
func Hanning(c *Cube) *Cube {
	return hanning(c)
}
