package pipeline

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/core"
	"github.com/cwbudde/algo-mstransform/kernel"
)

// TimeAverage configures the time-average layer.
type TimeAverage struct {
	// Bin is the averaging interval in seconds.
	Bin float64
	// Span lists the key columns (scan, state, field) an average may cross.
	Span []archive.SortColumn
	// MaxUVWDistance closes a bin early once a baseline has moved this far
	// in metres. Zero disables the limit.
	MaxUVWDistance float64
}

// ParseTimeSpan parses a comma-separated subset of "scan", "state", "field".
func ParseTimeSpan(s string) ([]archive.SortColumn, error) {
	var out []archive.SortColumn
	for _, tok := range strings.Split(s, ",") {
		var c archive.SortColumn
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "":
			continue
		case "scan":
			c = archive.SortScan
		case "state":
			c = archive.SortState
		case "field":
			c = archive.SortField
		default:
			return nil, fmt.Errorf("%w: %q", ErrTimeSpan, tok)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}

	return out, nil
}

// SpanSortKey returns sortBy (DefaultSortKey when empty) without the spanned
// columns, so that rows a bin may merge arrive in time order.
func SpanSortKey(sortBy, span []archive.SortColumn) []archive.SortColumn {
	if len(sortBy) == 0 {
		sortBy = DefaultSortKey
	}

	out := make([]archive.SortColumn, 0, len(sortBy))
	for _, c := range sortBy {
		if !slices.Contains(span, c) {
			out = append(out, c)
		}
	}

	return out
}

type avgKey struct {
	a1, a2, f1, f2 int
	ddi            int
	field, scan    int
	state, obs     int
	array          int
}

type accumulator struct {
	seq, bin     int
	first        archive.Row
	nchan, ncorr int
	rows         int
	start, end   float64
	centroid     float64
	exposure     float64
	uvw          [3]float64
	weight       []float64
	flaggedRows  int
	aggs         map[archive.Column][]kernel.Aggregator
	spectrum     bool
	sigmaSpec    bool
}

// timeavg averages rows of one baseline and key over fixed time bins aligned
// to the first row time. Samples are reduced with flag-run-aware weighted
// kernels.
type timeavg struct {
	inner    Iterator
	cfg      TimeAverage
	strategy kernel.Strategy

	t0    float64
	begun bool
	seq   int
	open  map[avgKey]*accumulator
	ready []*accumulator
	meta  *spectral
	first bool
	done  bool
}

func newTimeAverage(inner Iterator, cfg TimeAverage) (*timeavg, error) {
	if cfg.Bin <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrTimeBin, cfg.Bin)
	}

	return &timeavg{
		inner:    inner,
		cfg:      cfg,
		strategy: kernel.Resolve(kernel.Config{TimeAverage: true, WeightSpectrum: true}),
		open:     make(map[avgKey]*accumulator),
		first:    true,
	}, nil
}

func (t *timeavg) Columns() archive.ColumnSet {
	return t.inner.Columns()
}

func (t *timeavg) Next() (*Buffer, error) {
	for len(t.ready) == 0 {
		if t.done {
			return nil, io.EOF
		}

		b, err := t.inner.Next()
		if err == io.EOF {
			t.done = true
			t.flush(math.MaxInt)
			continue
		}
		if err != nil {
			return nil, err
		}

		t.meta = b.meta
		t.consume(b)
	}

	out := &Buffer{meta: t.meta, ChunkStart: t.first}
	t.first = false

	slices.SortFunc(t.ready, func(a, b *accumulator) int { return a.seq - b.seq })
	hasFloat := false
	for _, acc := range t.ready {
		if _, ok := acc.aggs[archive.ColFloatData]; ok {
			hasFloat = true
		}
	}
	for _, acc := range t.ready {
		row, float := acc.result()
		out.Rows = append(out.Rows, row)
		if hasFloat {
			out.Float = append(out.Float, float)
		}
	}
	t.ready = t.ready[:0]

	return out, nil
}

func (t *timeavg) key(r *archive.Row) avgKey {
	k := avgKey{
		a1: r.Antenna1, a2: r.Antenna2, f1: r.Feed1, f2: r.Feed2,
		ddi: r.DataDescID, field: r.FieldID, scan: r.ScanNumber,
		state: r.StateID, obs: r.ObservationID, array: r.ArrayID,
	}
	for _, c := range t.cfg.Span {
		switch c {
		case archive.SortScan:
			k.scan = -1
		case archive.SortState:
			k.state = -1
		case archive.SortField:
			k.field = -1
		}
	}

	return k
}

func (t *timeavg) consume(b *Buffer) {
	cols := b.visibilityColumns()
	for i := range b.Rows {
		r := &b.Rows[i]
		if !t.begun {
			t.t0, t.begun = r.Time, true
		}

		bin := int(math.Floor((r.Time - t.t0) / t.cfg.Bin))
		t.flush(bin)

		k := t.key(r)
		acc, ok := t.open[k]
		if ok && (acc.bin != bin || t.cfg.MaxUVWDistance > 0 && uvwDistance(acc.first.UVW, r.UVW) > t.cfg.MaxUVWDistance) {
			t.ready = append(t.ready, acc)
			delete(t.open, k)
			ok = false
		}
		if !ok {
			nchan, ncorr := b.Shape(i)
			acc = t.newAccumulator(r, bin, nchan, ncorr, cols)
			t.open[k] = acc
		}

		acc.add(b, i, cols)
	}
}

// flush moves every open accumulator of a bin before bin to the ready list.
func (t *timeavg) flush(bin int) {
	for k, acc := range t.open {
		if acc.bin < bin {
			t.ready = append(t.ready, acc)
			delete(t.open, k)
		}
	}
}

func (t *timeavg) newAccumulator(r *archive.Row, bin, nchan, ncorr int, cols []archive.Column) *accumulator {
	t.seq++
	acc := &accumulator{
		seq:       t.seq,
		bin:       bin,
		first:     *r,
		nchan:     nchan,
		ncorr:     ncorr,
		start:     r.Time - r.Interval/2,
		end:       r.Time + r.Interval/2,
		weight:    make([]float64, ncorr),
		aggs:      make(map[archive.Column][]kernel.Aggregator),
		spectrum:  r.WeightSpectrum != nil,
		sigmaSpec: r.SigmaSpectrum != nil,
	}

	proto := t.strategy.NewAggregator()
	for _, c := range cols {
		a := make([]kernel.Aggregator, nchan*ncorr)
		for j := range a {
			a[j] = *proto
		}
		acc.aggs[c] = a
	}

	return acc
}

func (a *accumulator) add(b *Buffer, i int, cols []archive.Column) {
	r := &b.Rows[i]
	a.rows++
	a.start = math.Min(a.start, r.Time-r.Interval/2)
	a.end = math.Max(a.end, r.Time+r.Interval/2)
	a.centroid += r.TimeCentroid
	a.exposure += r.Exposure
	for d := range 3 {
		a.uvw[d] += r.UVW[d]
	}

	if r.FlagRow {
		a.flaggedRows++
	}
	for k := range min(a.ncorr, len(r.Weight)) {
		if !r.FlagRow {
			a.weight[k] += float64(r.Weight[k])
		}
	}

	for _, c := range cols {
		aggs, ok := a.aggs[c]
		cell := b.Cell(i, c)
		if !ok || len(cell) != len(aggs) {
			continue
		}
		for j, v := range cell {
			aggs[j].Add(v, r.Flag[j] || r.FlagRow, sampleWeight(r, c, j, a.ncorr), 1)
		}
	}
}

// sampleWeight is the averaging weight of sample j of column c. Observed
// columns use 1/sigma² unless a weight spectrum is present; the others use
// WEIGHT.
func sampleWeight(r *archive.Row, c archive.Column, j, ncorr int) float32 {
	if r.WeightSpectrum != nil {
		return r.WeightSpectrum[j]
	}

	k := j % ncorr
	if (c == archive.ColData || c == archive.ColFloatData) && k < len(r.Sigma) {
		return float32(core.SigmaToWeight(float64(r.Sigma[k])))
	}

	return r.Weight[k]
}

// result builds the averaged row and its widened FLOAT_DATA cell.
func (a *accumulator) result() (archive.Row, []complex64) {
	r := a.first
	n := float64(a.rows)
	r.Time = 0.5 * (a.start + a.end)
	r.Interval = a.end - a.start
	r.Exposure = a.exposure
	r.TimeCentroid = a.centroid / n
	r.UVW = [3]float64{a.uvw[0] / n, a.uvw[1] / n, a.uvw[2] / n}

	size := a.nchan * a.ncorr
	r.Flag = make([]bool, size)
	r.Weight = make([]float32, a.ncorr)
	r.Sigma = make([]float32, a.ncorr)
	for k := range a.ncorr {
		r.Weight[k] = float32(a.weight[k])
		r.Sigma[k] = sigmaOf(r.Weight[k])
	}

	var wspec []float32
	r.Data, r.Corrected, r.Model, r.Lag, r.FloatData = nil, nil, nil, nil, nil
	var float []complex64
	first := true
	for _, c := range []archive.Column{archive.ColData, archive.ColCorrected, archive.ColModel, archive.ColLagData, archive.ColFloatData} {
		aggs, ok := a.aggs[c]
		if !ok {
			continue
		}

		cell := make([]complex64, size)
		for j := range aggs {
			v, f, w := aggs[j].Result()
			cell[j] = v
			if first {
				r.Flag[j] = f
				if a.spectrum {
					if wspec == nil {
						wspec = make([]float32, size)
					}
					wspec[j] = w
				}
			}
		}
		first = false

		if c == archive.ColFloatData {
			float = cell
			r.FloatData = make([]float32, size)
			for j, v := range cell {
				r.FloatData[j] = real(v)
			}
			continue
		}
		r.SetVisibility(c, cell)
	}

	r.WeightSpectrum = wspec
	r.SigmaSpectrum = nil
	if a.sigmaSpec && wspec != nil {
		r.SigmaSpectrum = make([]float32, size)
		for j, w := range wspec {
			r.SigmaSpectrum[j] = sigmaOf(w)
		}
	}

	r.FlagRow = a.flaggedRows == a.rows || !slices.Contains(r.Flag, false)

	return r, float
}

func uvwDistance(a, b [3]float64) float64 {
	return math.Sqrt((a[0]-b[0])*(a[0]-b[0]) + (a[1]-b[1])*(a[1]-b[1]) + (a[2]-b[2])*(a[2]-b[2]))
}
