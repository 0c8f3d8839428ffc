package kernel

import (
	"math"
	"strings"
	"testing"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/interp"
	"github.com/cwbudde/algo-mstransform/grid"
	"github.com/cwbudde/algo-mstransform/internal/testutil"
	"github.com/cwbudde/algo-mstransform/selection"
)

func cubeOf(ncorr int, data []complex64, flags []bool, weights []float32) *Cube {
	c := NewCube(len(data)/ncorr, ncorr)
	copy(c.Data, data)
	if flags != nil {
		copy(c.Flag, flags)
	}
	for i := range c.Weight {
		c.Weight[i] = 1
	}
	if weights != nil {
		copy(c.Weight, weights)
	}
	return c
}

func TestAverageFullyFlaggedPair(t *testing.T) {
	in := cubeOf(1, []complex64{1, 3, 5, 7}, []bool{false, false, true, true}, nil)

	for _, s := range []Strategy{Resolve(Config{ChanAverage: true}), Resolve(Config{ChanAverage: true, WeightSpectrum: true})} {
		out := average(in, 2, s.NewAggregator())
		if out.NChan != 2 {
			t.Fatalf("%v: nchan = %d", s, out.NChan)
		}
		if out.Data[0] != 2 || out.Flag[0] || out.Weight[0] != 2 {
			t.Fatalf("%v: first = %v %v %v", s, out.Data[0], out.Flag[0], out.Weight[0])
		}
		if out.Data[1] != 0 || !out.Flag[1] || out.Weight[1] != 0 {
			t.Fatalf("%v: flagged pair = %v %v %v, want zero flagged", s, out.Data[1], out.Flag[1], out.Weight[1])
		}
	}
}

func TestAverageBinOneIsIdentity(t *testing.T) {
	in := cubeOf(2, []complex64{1, 2, 3, 4, 5, 6}, []bool{true, false, false, true, false, false}, []float32{1, 2, 3, 4, 5, 6})

	for w := Mean; w <= FlagCumSumNonZero; w++ {
		tr := &Average{Bin: 1, agg: NewAggregator(w, FlagCumSum)}
		out, err := tr.Apply(Single(0, in, grid.Grid{}))
		if err != nil {
			t.Fatal(err)
		}
		for i := range in.Data {
			if out[0].Data[i] != in.Data[i] || out[0].Flag[i] != in.Flag[i] || out[0].Weight[i] != in.Weight[i] {
				t.Fatalf("%v: sample %d changed", w, i)
			}
		}
	}
}

func TestWeightings(t *testing.T) {
	// samples 1 (w=1), 3 (w=3, flagged), 5 (w=2)
	data := []complex64{1, 3, 5}
	flags := []bool{false, true, false}
	weights := []float32{1, 3, 2}

	tests := []struct {
		w       Weighting
		value   complex64
		flagged bool
	}{
		{Mean, 3, false},
		{FlagMean, 3, false},
		{WeightMean, complex(float32(20.0/6.0), 0), false},
		{FlagWeightMean, complex(float32(11.0/3.0), 0), false},
		{FlagNonZeroMean, 3, false},
		{FlagWeightNonZeroMean, complex(float32(11.0/3.0), 0), false},
		{CumSum, 9, false},
		{FlagCumSum, 6, false},
		{FlagCumSumNonZero, 6, false},
	}

	for _, tc := range tests {
		agg := NewAggregator(tc.w, CumSum)
		for i := range data {
			agg.Add(data[i], flags[i], weights[i], 1)
		}
		v, f, w := agg.Result()
		if math.Abs(float64(real(v-tc.value))) > 1e-5 || f != tc.flagged {
			t.Fatalf("%v: got %v %v, want %v %v", tc.w, v, f, tc.value, tc.flagged)
		}
		if w != 6 {
			t.Fatalf("%v: cum-sum weight = %v, want 6", tc.w, w)
		}
	}
}

func TestNonZeroMeanRestartsAtUnflaggedRun(t *testing.T) {
	agg := NewAggregator(FlagNonZeroMean, FlagCumSumNonZero)
	for _, s := range []struct {
		v complex64
		f bool
	}{{10, true}, {2, false}, {100, true}, {4, false}} {
		agg.Add(s.v, s.f, 1, 1)
	}

	v, f, w := agg.Result()
	if v != 3 || f || w != 2 {
		t.Fatalf("got %v %v %v, want 3 false 2", v, f, w)
	}

	agg.Reset()
	agg.Add(2, true, 1, 1)
	agg.Add(4, true, 1, 1)
	v, f, w = agg.Result()
	if v != 3 || !f || w != 2 {
		t.Fatalf("all flagged: got %v %v %v, want 3 true 2", v, f, w)
	}
}

func TestZeroNormalizationIsFlagged(t *testing.T) {
	agg := NewAggregator(FlagWeightMean, FlagCumSum)
	agg.Add(5, false, 0, 1)
	v, f, _ := agg.Result()
	if v != 0 || !f {
		t.Fatalf("got %v %v, want zero flagged", v, f)
	}
}

func TestHanning(t *testing.T) {
	in := cubeOf(1, []complex64{1, 2, 3, 4, 5}, []bool{false, false, false, true, false}, nil)
	out := Hanning(in)

	if !out.Flag[0] || !out.Flag[4] {
		t.Fatal("edge channels must be flagged")
	}
	if out.Data[1] != 2 {
		t.Fatalf("smoothed ramp = %v, want 2", out.Data[1])
	}
	if out.Flag[1] {
		t.Fatal("channel 1 has no flagged tap")
	}
	if !out.Flag[2] || !out.Flag[3] {
		t.Fatal("flag of channel 3 must spread to its neighbours")
	}
	if math.Abs(float64(out.Weight[1])-1/0.375) > 1e-5 {
		t.Fatalf("weight = %v, want %v", out.Weight[1], 1/0.375)
	}
}

func TestResolveCoversEveryConfiguration(t *testing.T) {
	for mask := 0; mask < 1<<8; mask++ {
		cfg := Config{
			Combine:        mask&1 != 0,
			Regrid:         mask&2 != 0,
			ChanAverage:    mask&4 != 0,
			Smooth:         mask&8 != 0,
			Split:          mask&16 != 0,
			WeightSpectrum: mask&32 != 0,
			TimeAverage:    mask&64 != 0,
			IgnoreFlags:    mask&128 != 0,
		}
		s := Resolve(cfg)

		name := s.Kind.String()
		has := func(stage string) bool { return strings.Contains(name, stage) }
		if has("average") != cfg.ChanAverage || has("smooth") != cfg.Smooth || has("regrid") != cfg.Regrid {
			t.Fatalf("%+v resolved to %v", cfg, s)
		}
		if s.Combine != cfg.Combine || s.Split != cfg.Split {
			t.Fatalf("%+v resolved to %v", cfg, s)
		}
		if cfg.WeightSpectrum != s.Data.weighted() {
			t.Fatalf("%+v: data kernel %v", cfg, s.Data)
		}
	}
}

func TestCombineThenSplit(t *testing.T) {
	a := testutil.NewArchive(testutil.ArchiveSpec{Spws: []archive.SpectralWindow{
		testutil.UniformSpw("hi", 4, 1.004e9, 1e6),
		testutil.UniformSpw("lo", 4, 1.000e9, 1e6),
	}})
	keys, _ := a.Keys()
	res, err := selection.NewResolver().Resolve(selection.Criteria{}, a.Tables, keys)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := grid.NewPlanner().Plan(res, a.Tables, grid.Config{Combine: true, NSpw: 2})
	if err != nil {
		t.Fatal(err)
	}

	s := Resolve(Config{Combine: true, Split: true})
	trs, err := s.Build(plan)
	if err != nil {
		t.Fatal(err)
	}
	if trs[0].Kind() != KindSplit {
		t.Fatalf("kind = %v", trs[0].Kind())
	}

	hi := cubeOf(1, []complex64{5, 6, 7, 8}, nil, nil)
	lo := cubeOf(1, []complex64{1, 2, 3, 4}, nil, nil)
	out, err := trs[0].Apply(Input{Cubes: map[int]*Cube{0: hi, 1: lo}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].NChan != 4 || out[1].NChan != 4 {
		t.Fatalf("split shapes wrong: %d parts", len(out))
	}
	want := []complex64{1, 2, 3, 4, 5, 6, 7, 8}
	for i, v := range want {
		part := out[i/4]
		if part.Data[i%4] != v {
			t.Fatalf("channel %d = %v, want %v", i, part.Data[i%4], v)
		}
	}
}

func TestRegridOntoSameGridIsIdentity(t *testing.T) {
	g := grid.FromWindow(testutil.UniformSpw("a", 6, 1e9, 1e6), nil)
	in := cubeOf(1, []complex64{1, 2, 3, 4, 5, 6}, []bool{false, false, true, false, false, false}, nil)

	out, err := regrid(in, g, g, interp.Linear, nil, Resolve(Config{}).NewAggregator())
	if err != nil {
		t.Fatal(err)
	}
	for i := range in.Data {
		if out.Data[i] != in.Data[i] {
			t.Fatalf("channel %d = %v, want %v", i, out.Data[i], in.Data[i])
		}
	}
	if !out.Flag[2] {
		t.Fatal("flag must survive regrid")
	}
}

func TestRegridFineGridAverages(t *testing.T) {
	from := grid.FromWindow(testutil.UniformSpw("in", 6, 1e9, 1e6), nil)
	to := grid.FromWindow(testutil.UniformSpw("out", 2, 1e9+1e6, 3e6), nil)
	in := cubeOf(1, []complex64{1, 2, 3, 4, 5, 6}, nil, nil)

	out, err := regrid(in, from, to, interp.Linear, &grid.FineGrid{Sub: 3}, Resolve(Config{}).NewAggregator())
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireFinite(t, out.Data)
	if out.Data[0] != 2 || out.Data[1] != 5 {
		t.Fatalf("fine regrid = %v, want [2 5]", out.Data)
	}
}
