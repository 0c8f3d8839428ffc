package grid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/internal/testutil"
	"github.com/cwbudde/algo-mstransform/selection"
)

func resolved(t *testing.T, spws []archive.SpectralWindow, c selection.Criteria) (*selection.Resolution, *archive.Subtables) {
	t.Helper()
	a := testutil.NewArchive(testutil.ArchiveSpec{Spws: spws})
	keys, _ := a.Keys()
	res, err := selection.NewResolver().Resolve(c, a.Tables, keys)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return res, a.Tables
}

type fixedConverter float64

func (f fixedConverter) Factor(from, to archive.Frame, _ Epoch) (float64, error) {
	if from == to {
		return 1, nil
	}
	return float64(f), nil
}

func TestOverlapFractionsNeverExceedOne(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		in := testutil.UniformSpw("in", 5+rng.Intn(20), 1e9+rng.Float64()*1e6, 1e5+rng.Float64()*1e6)
		out := testutil.UniformSpw("out", 3+rng.Intn(10), 1e9+rng.Float64()*2e6, 5e4+rng.Float64()*3e6)
		gin, gout := FromWindow(in, nil), FromWindow(out, nil)

		contrib := Overlap(gin, 0, gout)
		for k, c := range contrib {
			sum := SumFraction(c, 0)
			if sum > 1+1e-9 {
				t.Fatalf("trial %d: channel %d sum %v > 1", trial, k, sum)
			}

			inside := false
			for i := range gin.Freq {
				if gin.Lower(i) <= gout.Lower(k) && gout.Upper(k) <= gin.Upper(i) {
					inside = true
				}
			}
			if inside && math.Abs(sum-1) > 1e-12 {
				t.Fatalf("trial %d: channel %d fully contained but sum %v", trial, k, sum)
			}
		}
	}
}

func TestChannelAverageHalvesChannels(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{testutil.UniformSpw("a", 4, 1e9, 1e6)}, selection.Criteria{})

	plan, err := NewPlanner().Plan(res, tables, Config{ChanBin: []int{2}})
	if err != nil {
		t.Fatal(err)
	}

	w := plan.Windows[0]
	if w.Output.Len() != 2 {
		t.Fatalf("output channels = %d, want 2", w.Output.Len())
	}
	if w.WeightFactor != 2 {
		t.Fatalf("weight factor = %v, want 2", w.WeightFactor)
	}
	if math.Abs(w.SigmaFactor-1/math.Sqrt2) > 1e-15 {
		t.Fatalf("sigma factor = %v", w.SigmaFactor)
	}
	if w.Output.Freq[0] != 1e9+0.5e6 || w.Output.Width[0] != 2e6 {
		t.Fatalf("first channel = %v/%v", w.Output.Freq[0], w.Output.Width[0])
	}
}

func TestChannelBinClampAndTrailingDrop(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{testutil.UniformSpw("a", 5, 1e9, 1e6)}, selection.Criteria{})

	plan, err := NewPlanner().Plan(res, tables, Config{ChanBin: []int{2}})
	if err != nil {
		t.Fatal(err)
	}
	if got := plan.Windows[0].Output.Len(); got != 2 {
		t.Fatalf("bin 2 over 5 channels = %d outputs, want 2", got)
	}

	plan, err = NewPlanner().Plan(res, tables, Config{ChanBin: []int{10}})
	if err != nil {
		t.Fatal(err)
	}
	if w := plan.Windows[0]; w.Bin != 5 || w.Output.Len() != 1 {
		t.Fatalf("clamped bin = %d, outputs = %d", w.Bin, w.Output.Len())
	}
}

func TestCombineSortsByFrequency(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{
		testutil.UniformSpw("hi", 4, 1.004e9, 1e6),
		testutil.UniformSpw("lo", 4, 1.000e9, 1e6),
	}, selection.Criteria{})

	plan, err := NewPlanner().Plan(res, tables, Config{Combine: true})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Combined() || len(plan.Outputs) != 1 {
		t.Fatalf("combined = %v, outputs = %d", plan.Combined(), len(plan.Outputs))
	}

	w := plan.Windows[0]
	if w.Output.Len() != 8 {
		t.Fatalf("combined channels = %d, want 8", w.Output.Len())
	}
	for i := 1; i < 8; i++ {
		if w.Output.Freq[i] <= w.Output.Freq[i-1] {
			t.Fatalf("combined grid not ascending at %d", i)
		}
	}

	first := w.Contributions[0]
	if len(first) != 1 || first[0].Spw != 1 || first[0].Chan != 0 || first[0].Fraction != 1 {
		t.Fatalf("first contribution = %+v", first)
	}
	if idx, ok := plan.WindowOf(0); !ok || idx != 0 {
		t.Fatalf("WindowOf(0) = %d, %v", idx, ok)
	}
}

func TestCombineDifferentChannelCountsIsStructural(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{
		testutil.UniformSpw("a", 4, 1e9, 1e6),
		testutil.UniformSpw("b", 6, 2e9, 1e6),
	}, selection.Criteria{})

	_, err := NewPlanner().Plan(res, tables, Config{Combine: true})
	if !fault.Is(err, fault.KindStructural) {
		t.Fatalf("expected structural failure, got %v", err)
	}
}

func TestSplitLastAbsorbsRemainder(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{testutil.UniformSpw("a", 8, 1e9, 1e6)}, selection.Criteria{})

	for _, tc := range []struct {
		nspw int
		want []int
	}{
		{2, []int{4, 4}},
		{3, []int{2, 2, 4}},
	} {
		plan, err := NewPlanner().Plan(res, tables, Config{NSpw: tc.nspw})
		if err != nil {
			t.Fatal(err)
		}
		if len(plan.Outputs) != len(tc.want) {
			t.Fatalf("nspw %d: %d outputs", tc.nspw, len(plan.Outputs))
		}

		total := 0
		for i, o := range plan.Outputs {
			if o.NChan != tc.want[i] || o.Spw.NumChan() != tc.want[i] {
				t.Fatalf("nspw %d: output %d has %d channels, want %d", tc.nspw, i, o.NChan, tc.want[i])
			}
			total += o.NChan
		}
		if total != 8 {
			t.Fatalf("nspw %d: total %d, want 8", tc.nspw, total)
		}
		if plan.Outputs[1].Spw.ChanFreq[0] != tables.SpectralWindows[0].ChanFreq[plan.Outputs[1].Start] {
			t.Fatalf("nspw %d: second output is not a channel slice", tc.nspw)
		}
	}
}

func TestRegridFrequencyMode(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{testutil.UniformSpw("a", 12, 1e9, 1e6)}, selection.Criteria{})

	spec := DefaultRegrid()
	spec.Mode = ModeFrequency
	spec.Width = 2e6

	plan, err := NewPlanner().Plan(res, tables, Config{Regrid: &spec})
	if err != nil {
		t.Fatal(err)
	}
	w := plan.Windows[0]
	if w.Output.Len() != 6 || w.Fine != nil {
		t.Fatalf("outputs = %d fine = %v", w.Output.Len(), w.Fine)
	}
	if math.Abs(w.Output.Freq[0]-(1e9+0.5e6)) > 1e-3 {
		t.Fatalf("first centre = %v", w.Output.Freq[0])
	}

	spec.Width = 3e6
	plan, err = NewPlanner().Plan(res, tables, Config{Regrid: &spec})
	if err != nil {
		t.Fatal(err)
	}
	if w := plan.Windows[0]; w.Fine == nil || w.Fine.Sub != 3 || w.Output.Len() != 4 {
		t.Fatalf("fine = %v, outputs = %d", w.Fine, w.Output.Len())
	}
}

func TestRegridOutputIsAscending(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{testutil.UniformSpw("d", 10, 1.01e9, -1e6)}, selection.Criteria{})

	for _, mode := range []Mode{ModeChannel, ModeFrequency, ModeVelocity} {
		spec := DefaultRegrid()
		spec.Mode = mode
		spec.RestFreq = 1.02e9

		plan, err := NewPlanner().Plan(res, tables, Config{Regrid: &spec})
		if err != nil {
			t.Fatalf("%v: %v", mode, err)
		}
		out := plan.Windows[0].Output
		if out.Len() == 0 {
			t.Fatalf("%v: empty output", mode)
		}
		for i := 1; i < out.Len(); i++ {
			if out.Freq[i] <= out.Freq[i-1] || out.Width[i] <= 0 {
				t.Fatalf("%v: output not ascending at %d", mode, i)
			}
		}
	}
}

func TestAverageOnlyKeepsChannelOrder(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{testutil.UniformSpw("d", 4, 1.01e9, -1e6)}, selection.Criteria{})

	plan, err := NewPlanner().Plan(res, tables, Config{ChanBin: []int{2}})
	if err != nil {
		t.Fatal(err)
	}
	out := plan.Windows[0].Output
	if out.Freq[0] <= out.Freq[1] || out.Width[0] >= 0 {
		t.Fatalf("descending order lost: %v %v", out.Freq, out.Width)
	}
}

func TestInputFrequenciesUseConverter(t *testing.T) {
	res, tables := resolved(t, []archive.SpectralWindow{testutil.UniformSpw("a", 4, 1e9, 1e6)}, selection.Criteria{})

	spec := DefaultRegrid()
	spec.OutFrame = archive.FrameLSRK

	plan, err := NewPlanner(WithFrameConverter(fixedConverter(2))).Plan(res, tables, Config{Regrid: &spec})
	if err != nil {
		t.Fatal(err)
	}

	freq, err := plan.InputFrequencies(0, Epoch{})
	if err != nil {
		t.Fatal(err)
	}
	if freq[0] != 2e9 {
		t.Fatalf("converted frequency = %v, want 2e9", freq[0])
	}
	if plan.Outputs[0].Spw.Frame != archive.FrameLSRK {
		t.Fatalf("output frame = %v", plan.Outputs[0].Spw.Frame)
	}
}

func TestGridAverageAndScale(t *testing.T) {
	g := FromWindow(testutil.UniformSpw("a", 5, 1e9, 1e6), nil)

	avg, dropped := g.Average(2)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	testutil.RequireSliceNearlyEqual(t, avg.Freq, []float64{1e9 + 0.5e6, 1e9 + 2.5e6}, 1e-6)
	testutil.RequireSliceNearlyEqual(t, avg.Width, []float64{2e6, 2e6}, 1e-9)

	scaled := avg.Scaled(0.5)
	testutil.RequireSliceNearlyEqual(t, scaled.Freq, []float64{5e8 + 0.25e6, 5e8 + 1.25e6}, 1e-6)
	testutil.RequireSliceNearlyEqual(t, scaled.Resolution, []float64{1e6, 1e6}, 1e-9)
}

func TestFineGridMap(t *testing.T) {
	in := FromWindow(testutil.UniformSpw("in", 6, 1e9, 1e6), nil)
	out := FromWindow(testutil.UniformSpw("out", 2, 1e9+1e6, 3e6), nil)

	m := FineGrid{Sub: 3}.Map(in, out)
	want := []int{0, 1, 2, 3, 4, 5}
	for i := range want {
		if m[i] != want[i] {
			t.Fatalf("map = %v, want %v", m, want)
		}
	}
}

func TestDopplerConverter(t *testing.T) {
	d := DopplerConverter{SysVel: func(int) float64 { return 1000 }}
	e := Epoch{Time: 5e9, Direction: archive.Direction{Lon: 1, Lat: 0.3}}

	if f, _ := d.Factor(archive.FrameTOPO, archive.FrameTOPO, e); f != 1 {
		t.Fatalf("identity factor = %v", f)
	}

	for _, pair := range [][2]archive.Frame{
		{archive.FrameTOPO, archive.FrameLSRK},
		{archive.FrameBARY, archive.FrameCMB},
		{archive.FrameGEO, archive.FrameGALACTO},
	} {
		a, err := d.Factor(pair[0], pair[1], e)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := d.Factor(pair[1], pair[0], e)
		if math.Abs(a*b-1) > 1e-12 {
			t.Fatalf("%v: round trip %v", pair, a*b)
		}
		if math.Abs(a-1) > 2e-3 {
			t.Fatalf("%v: implausible factor %v", pair, a)
		}
	}

	f, _ := d.Factor(archive.FrameLSRK, archive.FrameSOURCE, e)
	if math.Abs(f-doppler(1000)) > 1e-8 {
		t.Fatalf("source factor = %v, want %v", f, doppler(1000))
	}

	if _, err := d.Factor(archive.FrameREST, archive.FrameLSRK, e); err == nil {
		t.Fatal("REST must not convert")
	}
}

func TestVelocityRoundTrip(t *testing.T) {
	for _, vt := range []VelocityType{Radio, Optical} {
		f := vt.ToFrequency(-25000, 1.4204e9)
		if v := vt.ToVelocity(f, 1.4204e9); math.Abs(v+25000) > 1e-6 {
			t.Fatalf("%v: round trip %v", vt, v)
		}
	}
}
