package pipeline

import (
	"errors"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/internal/testutil"
	"github.com/cwbudde/algo-mstransform/selection"
)

func fixture(t *testing.T, spec testutil.ArchiveSpec, c selection.Criteria) (*archive.Archive, *selection.Resolution) {
	t.Helper()
	if len(spec.Spws) == 0 {
		spec.Spws = []archive.SpectralWindow{testutil.UniformSpw("a", 8, 1e9, 1e6)}
	}
	a := testutil.NewArchive(spec)
	keys, _ := a.Keys()
	res, err := selection.NewResolver().Resolve(c, a.Tables, keys)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return a, res
}

func build(t *testing.T, a *archive.Archive, res *selection.Resolution, cfg Config) *Chain {
	t.Helper()
	c, err := NewBuilder().Build(a, a.Tables, res, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c
}

func drain(t *testing.T, it Iterator) []*Buffer {
	t.Helper()
	var out []*Buffer
	for {
		b, err := it.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, b)
	}
}

func TestScanSlicesChannelsAndCorrelations(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Antennas: 3, Times: 2}, selection.Criteria{Spw: "0:2~4", Correlation: "YY"})
	bufs := drain(t, build(t, a, res, Config{}))

	if len(bufs) != 2 {
		t.Fatalf("buffers = %d, want 2", len(bufs))
	}
	for ti, b := range bufs {
		if b.Len() != 3 {
			t.Fatalf("buffer %d has %d rows", ti, b.Len())
		}
		for i, r := range b.Rows {
			nchan, ncorr := b.Shape(i)
			if nchan != 3 || ncorr != 1 {
				t.Fatalf("shape = %dx%d", nchan, ncorr)
			}
			for c := range 3 {
				if want := testutil.Sample(0, ti, c+2, 1); r.Data[c] != want {
					t.Fatalf("buffer %d row %d chan %d = %v, want %v", ti, i, c, r.Data[c], want)
				}
			}
		}
		if got := b.Frequencies(0); len(got) != 3 || got[0] != 1.002e9 {
			t.Fatalf("frequencies = %v", got)
		}
	}
}

func TestScanSortOrderAndChunks(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Times: 4, Fields: 2}, selection.Criteria{})
	bufs := drain(t, build(t, a, res, Config{}))

	wantField := []int{0, 0, 1, 1}
	wantChunk := []bool{true, false, true, false}
	if len(bufs) != 4 {
		t.Fatalf("buffers = %d", len(bufs))
	}
	for i, b := range bufs {
		if b.Rows[0].FieldID != wantField[i] || b.ChunkStart != wantChunk[i] {
			t.Fatalf("buffer %d: field %d chunk %v", i, b.Rows[0].FieldID, b.ChunkStart)
		}
	}
	if bufs[1].Rows[0].Time <= bufs[0].Rows[0].Time {
		t.Fatal("time not ascending within a chunk")
	}
}

func TestScanRejectsRepeatedSortColumn(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{}, selection.Criteria{})
	_, err := NewScan(a, a.Tables, res, []archive.SortColumn{archive.SortField, archive.SortField})
	if !fault.Is(err, fault.KindConfiguration) || !errors.Is(err, ErrSortKey) {
		t.Fatalf("expected sort key configuration failure, got %v", err)
	}
}

func TestScanWidensFloatData(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Cols: archive.Columns(archive.ColFloatData)}, selection.Criteria{})
	b := drain(t, build(t, a, res, Config{}))[0]

	cell := b.Cell(0, archive.ColFloatData)
	for j, v := range cell {
		if v != complex(real(b.Rows[0].Data[j]), 0) {
			t.Fatalf("sample %d = %v", j, v)
		}
	}
}

func TestCalibrationDividesGains(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Antennas: 3}, selection.Criteria{})
	gt, err := GainTableFromRecord(map[string]any{
		"gain": []map[string]any{{"antenna": 1, "spw": -1, "receptor": -1, "amp": 2.0, "phase": 90.0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	c := build(t, a, res, Config{Calibration: gt})
	if !c.Calibrated || !c.Columns().Has(archive.ColCorrected) {
		t.Fatalf("calibrated = %v, columns = %v", c.Calibrated, c.Columns())
	}

	b := drain(t, c)[0]
	for i, r := range b.Rows {
		// antenna 1 enters as g on a1 or conj(g) on a2
		var g complex128 = 1
		switch {
		case r.Antenna1 == 1:
			g = cmplx.Rect(2, math.Pi/2)
		case r.Antenna2 == 1:
			g = cmplx.Rect(2, -math.Pi/2)
		}
		for j, v := range r.Data {
			want := complex64(complex128(v) / g)
			if cmplx.Abs(complex128(r.Corrected[j]-want)) > 1e-4 {
				t.Fatalf("row %d sample %d = %v, want %v", i, j, r.Corrected[j], want)
			}
		}
		wantW := float32(real(g * cmplx.Conj(g)))
		if math.Abs(float64(r.Weight[0]-wantW)) > 1e-5 {
			t.Fatalf("row %d weight = %v, want %v", i, r.Weight[0], wantW)
		}
	}
}

func TestCalibrationFallsBackWhenNothingApplies(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{}, selection.Criteria{})
	gt := &GainTable{Gains: []Gain{{Antenna: 0, Spw: 5, Receptor: -1, Amp: 1}}}

	c := build(t, a, res, Config{Calibration: gt, PolAverage: true})
	if c.Calibrated || c.Columns().Has(archive.ColCorrected) {
		t.Fatalf("calibration kept: %v", c.Layers)
	}
	if len(c.Layers) != 2 || c.Layers[1] != "polaverage" {
		t.Fatalf("layers = %v", c.Layers)
	}
}

func TestLoadGainTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gains.toml")
	body := "[[gain]]\nantenna = 0\nspw = 0\nreceptor = -1\namp = 1.5\nphase = 0.0\n\n" +
		"[[gain]]\nantenna = 0\nspw = -1\nreceptor = -1\namp = 3.0\nphase = 0.0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	gt, err := LoadGainTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if g, ok := gt.Gain(0, 0, 1, 0); !ok || real(g) != 1.5 {
		t.Fatalf("specific gain = %v, %v", g, ok)
	}
	if g, ok := gt.Gain(0, 3, 1, 0); !ok || real(g) != 3 {
		t.Fatalf("wildcard gain = %v, %v", g, ok)
	}
	if _, ok := gt.Gain(2, 0, 0, 0); ok {
		t.Fatal("unexpected gain for antenna 2")
	}

	if _, err := LoadGainTable(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, ErrGainTable) {
		t.Fatalf("expected ErrGainTable, got %v", err)
	}
}

func TestPolyFitRemovesLinearContinuum(t *testing.T) {
	const nchan, ncorr = 16, 2
	chans := make([]int, nchan)
	freq := make([]float64, nchan)
	cell := make([]complex64, nchan*ncorr)
	flag := make([]bool, nchan*ncorr)
	for i := range nchan {
		chans[i] = i
		freq[i] = 1e9 + float64(i)*1e6
		for k := range ncorr {
			cell[i*ncorr+k] = complex(float32(2+0.5*float64(i)), float32(k))
		}
	}
	// a line in channels 6..8, excluded from the fit
	for i := 6; i <= 8; i++ {
		cell[i*ncorr] += 10
	}

	PolyFit{Order: 1, LineFree: map[int][]selection.ChannelRange{
		0: {{Start: 0, Stop: 5, Step: 1}, {Start: 9, Stop: 15, Step: 1}},
	}}.Subtract(0, chans, freq, cell, flag, ncorr)

	for i := range nchan {
		want := complex64(0)
		if i >= 6 && i <= 8 {
			want = 10
		}
		if cmplx.Abs(complex128(cell[i*ncorr]-want)) > 1e-3 || cmplx.Abs(complex128(cell[i*ncorr+1])) > 1e-3 {
			t.Fatalf("channel %d = %v, %v", i, cell[i*ncorr], cell[i*ncorr+1])
		}
	}
}

func TestPolarizationAverageModes(t *testing.T) {
	for _, tc := range []struct {
		mode    PolAverageMode
		flagXX  bool
		want    func(xx, yy complex64) complex64
		flagged bool
		weight  float32
	}{
		{PolAverageDefault, false, func(xx, yy complex64) complex64 { return (xx + yy) / 2 }, false, 2},
		{PolAverageDefault, true, func(_, yy complex64) complex64 { return yy }, false, 2},
		{PolAverageStokes, false, func(xx, yy complex64) complex64 { return (xx + yy) / 2 }, false, 2},
		{PolAverageStokes, true, func(xx, yy complex64) complex64 { return (xx + yy) / 2 }, true, 2},
	} {
		a, res := fixture(t, testutil.ArchiveSpec{}, selection.Criteria{})
		if tc.flagXX {
			for i := range a.Rows {
				for c := 0; c < len(a.Rows[i].Flag); c += 2 {
					a.Rows[i].Flag[c] = true
				}
			}
		}

		b := drain(t, build(t, a, res, Config{PolAverage: true, PolMode: tc.mode}))[0]
		r := b.Rows[0]
		if nchan, ncorr := b.Shape(0); nchan != 8 || ncorr != 1 {
			t.Fatalf("%v: shape %dx%d", tc.mode, nchan, ncorr)
		}
		for c := range 8 {
			want := tc.want(testutil.Sample(0, 0, c, 0), testutil.Sample(0, 0, c, 1))
			if r.Data[c] != want || r.Flag[c] != tc.flagged {
				t.Fatalf("%v flagXX=%v chan %d = %v/%v, want %v/%v", tc.mode, tc.flagXX, c, r.Data[c], r.Flag[c], want, tc.flagged)
			}
		}
		if r.Weight[0] != tc.weight {
			t.Fatalf("%v: weight = %v", tc.mode, r.Weight[0])
		}
	}

	if _, err := ParsePolAverageMode("median"); !errors.Is(err, ErrPolAverageMode) {
		t.Fatalf("expected ErrPolAverageMode, got %v", err)
	}
}

func TestTimeAverageBins(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Antennas: 3, Times: 4}, selection.Criteria{})
	bufs := drain(t, build(t, a, res, Config{TimeAverage: &TimeAverage{Bin: 20}}))

	if len(bufs) != 2 {
		t.Fatalf("buffers = %d, want 2", len(bufs))
	}
	for bi, b := range bufs {
		if b.Len() != 3 {
			t.Fatalf("buffer %d rows = %d", bi, b.Len())
		}
		r := b.Rows[0]
		if r.Interval != 20 || r.Time != 4.8e9+float64(20*bi)+5 {
			t.Fatalf("buffer %d: time %v interval %v", bi, r.Time, r.Interval)
		}
		if r.Weight[0] != 2 {
			t.Fatalf("buffer %d: weight %v", bi, r.Weight[0])
		}
		// mean of times 2bi and 2bi+1
		want := complex(float32(3), float32(1)+float32(2*bi)+0.5)
		if r.Data[2*2+1] != want {
			t.Fatalf("buffer %d: sample %v, want %v", bi, r.Data[5], want)
		}
	}
}

func TestTimeAverageRestartsAtFirstUnflaggedSample(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Times: 3}, selection.Criteria{})
	a.Rows[0].Flag[0] = true

	b := drain(t, build(t, a, res, Config{TimeAverage: &TimeAverage{Bin: 100}}))[0]
	r := b.Rows[0]
	// the flagged first sample is dropped; times 1 and 2 are averaged
	want := complex(float32(1), 1.5)
	if r.Flag[0] || r.Data[0] != want {
		t.Fatalf("sample = %v flagged %v, want %v", r.Data[0], r.Flag[0], want)
	}
	if r.Data[1] != complex(float32(1), 2) {
		t.Fatalf("unflagged correlation = %v", r.Data[1])
	}
}

func TestTimeAverageWeightsObservedBySigma(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Antennas: 2, Times: 2, Cols: archive.Columns(archive.ColCorrected)}, selection.Criteria{})
	a.Rows[0].Sigma = []float32{0.5, 0.5}

	bufs := drain(t, build(t, a, res, Config{TimeAverage: &TimeAverage{Bin: 20}}))
	if len(bufs) != 1 || bufs[0].Len() != 1 {
		t.Fatalf("buffers = %d", len(bufs))
	}

	r := bufs[0].Rows[0]
	// DATA: weights 4 and 1 from sigma; CORRECTED: WEIGHT 1 and 1.
	testutil.RequireComplexNearlyEqual(t, r.Data[:1], []complex64{1 + 0.2i}, 1e-6)
	testutil.RequireComplexNearlyEqual(t, r.Corrected[:1], []complex64{2 + 1i}, 1e-6)
}

func TestTimeAverageSpanAndValidation(t *testing.T) {
	span, err := ParseTimeSpan("scan, field,scan")
	if err != nil || len(span) != 2 {
		t.Fatalf("span = %v, %v", span, err)
	}
	if _, err := ParseTimeSpan("baseline"); !errors.Is(err, ErrTimeSpan) {
		t.Fatalf("expected ErrTimeSpan, got %v", err)
	}

	a, res := fixture(t, testutil.ArchiveSpec{Times: 4, Fields: 2}, selection.Criteria{})
	sortBy := []archive.SortColumn{archive.SortDataDesc, archive.SortTime}
	bufs := drain(t, build(t, a, res, Config{SortBy: sortBy, TimeAverage: &TimeAverage{Bin: 40, Span: span}}))
	if len(bufs) != 1 || bufs[0].Len() != 1 {
		t.Fatalf("field span: %d buffers", len(bufs))
	}

	_, err = NewBuilder().Build(a, a.Tables, res, Config{TimeAverage: &TimeAverage{}})
	if !fault.Is(err, fault.KindConfiguration) {
		t.Fatalf("expected configuration failure, got %v", err)
	}
}

func TestTimeAverageSpanKeepsBinsOfInterleavedFields(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Times: 4, Fields: 2}, selection.Criteria{})
	cfg := Config{TimeAverage: &TimeAverage{Bin: 20, Span: []archive.SortColumn{archive.SortField}}}
	bufs := drain(t, build(t, a, res, cfg))

	if len(bufs) != 2 {
		t.Fatalf("buffers = %d, want 2", len(bufs))
	}
	for bi, b := range bufs {
		if b.Len() != 1 {
			t.Fatalf("buffer %d rows = %d", bi, b.Len())
		}
		r := b.Rows[0]
		if r.Time != 4.8e9+float64(20*bi)+5 || r.Interval != 20 {
			t.Fatalf("buffer %d: time %v interval %v", bi, r.Time, r.Interval)
		}
		// times 2bi (field 0) and 2bi+1 (field 1)
		want := complex(float32(1), float32(2*bi)+0.5)
		if r.Data[0] != want {
			t.Fatalf("buffer %d: sample %v, want %v", bi, r.Data[0], want)
		}
	}
}

func TestSpanSortKey(t *testing.T) {
	got := SpanSortKey(nil, []archive.SortColumn{archive.SortField, archive.SortState})
	want := []archive.SortColumn{
		archive.SortObservation, archive.SortArray, archive.SortScan,
		archive.SortDataDesc, archive.SortTime,
	}
	if len(got) != len(want) {
		t.Fatalf("key = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key = %v, want %v", got, want)
		}
	}
	if len(DefaultSortKey) != 7 {
		t.Fatal("default key modified")
	}
}

func TestPhaseShiftOffset(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{}, selection.Criteria{})
	b := drain(t, build(t, a, res, Config{PhaseCenter: &PhaseCenter{Field: -1, DX: 10}}))[0]

	r := b.Rows[0]
	l := 10 * arcsec
	n := math.Sqrt(1 - l*l)
	delay := r.UVW[0]*l + r.UVW[2]*(n-1)
	for c, f := range b.Frequencies(0) {
		orig := complex128(testutil.Sample(0, 0, c, 0))
		want := orig * cmplx.Exp(complex(0, -2*math.Pi*f*delay/299792458))
		if cmplx.Abs(complex128(r.Data[2*c])-want) > 1e-3*cmplx.Abs(orig) {
			t.Fatalf("chan %d = %v, want %v", c, r.Data[2*c], want)
		}
	}

	if _, err := NewBuilder().Build(a, a.Tables, res, Config{PhaseCenter: &PhaseCenter{Field: 9}}); !errors.Is(err, ErrPhaseCenter) {
		t.Fatalf("expected ErrPhaseCenter, got %v", err)
	}
}

func TestPointingInterpolation(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{Times: 2}, selection.Criteria{})
	t0 := a.Rows[0].Time
	for k := range 5 {
		a.Tables.Pointings = append(a.Tables.Pointings, archive.Pointing{
			AntennaID: 0,
			Time:      t0 - 20 + 8*float64(k),
			Direction: archive.Direction{Lon: 0.1 * float64(k), Lat: 0.2},
		})
	}

	bufs := drain(t, build(t, a, res, Config{Pointing: true}))
	got := bufs[0].Pointing[0][0]
	// t0 lies halfway between samples 2 and 3 on a linear ramp
	if math.Abs(got.Lon-0.25) > 1e-12 || math.Abs(got.Lat-0.2) > 1e-12 {
		t.Fatalf("antenna 0 pointing = %+v", got)
	}
	if d := bufs[0].Pointing[0][1]; d != a.Tables.Fields[0].PhaseDir {
		t.Fatalf("antenna 1 without pointing = %+v", d)
	}
}

func TestAtmosphereScalesByAirmass(t *testing.T) {
	a, res := fixture(t, testutil.ArchiveSpec{}, selection.Criteria{})
	for i := range a.Tables.Antennas {
		a.Tables.Antennas[i].Position = [3]float64{0, 0, 6.4e6}
	}

	const tau = 0.1
	b := drain(t, build(t, a, res, Config{Atmosphere: ZenithOpacity{0: tau}}))[0]
	el := a.Tables.Fields[0].PhaseDir.Lat
	f := math.Exp(tau / math.Sin(el))

	r := b.Rows[0]
	want := complex64(complex128(testutil.Sample(0, 0, 0, 0)) * complex(f, 0))
	if cmplx.Abs(complex128(r.Data[0]-want)) > 1e-4 {
		t.Fatalf("sample = %v, want %v", r.Data[0], want)
	}
	if math.Abs(float64(r.Weight[0])-1/(f*f)) > 1e-6 {
		t.Fatalf("weight = %v", r.Weight[0])
	}
}

func TestAttemptOr(t *testing.T) {
	ok := Try(1, nil)
	bad := Try(2, errors.New("x"))
	if ok.Or(9) != 1 || bad.Or(9) != 9 || bad.OK() || bad.Err() == nil {
		t.Fatal("Attempt fallback broken")
	}
}
