package writer

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/core"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/grid"
	"github.com/cwbudde/algo-mstransform/kernel"
	"github.com/cwbudde/algo-mstransform/pipeline"
	"github.com/cwbudde/algo-mstransform/reindex"
)

const writeOp = "writer.Write"

// Config controls what the writer emits.
type Config struct {
	Columns ColumnMap
	// WeightSpectrum writes WEIGHT_SPECTRUM; row weights become its medians.
	WeightSpectrum bool
	// SigmaSpectrum writes SIGMA_SPECTRUM alongside WEIGHT_SPECTRUM.
	SigmaSpectrum bool
	// BufferMode writes into an in-memory scratch archive.
	BufferMode bool
	// Anchor supplies the observatory position of per-row frame conversions.
	Anchor grid.Epoch
	// Fields supplies the phase centres of per-row frame conversions.
	Fields []archive.Field
}

// Summary reports what a writer has done.
type Summary struct {
	Buffers int
	// RowsRead counts the rows handed to Write. A driver that averages
	// upstream replaces it with the count of input rows.
	RowsRead    int
	RowsWritten int
	Tiles       map[archive.Column][]archive.TileShape
}

// RowMedians holds the per-correlation median weight and sigma of one
// written row.
type RowMedians struct {
	Weight []float32
	Sigma  []float32
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// Writer appends transformed rows to a sink.
type Writer struct {
	sink       archive.Sink
	scratch    *archive.Archive
	plan       *grid.Plan
	layout     *reindex.Layout
	transforms []kernel.Transform
	cfg        Config

	declared map[tileKey]bool
	summary  Summary
	medians  []RowMedians
	logger   *slog.Logger
}

// New creates a writer and declares the output columns on sink. In buffer
// mode sink may be nil and a scratch archive is used instead.
func New(sink archive.Sink, plan *grid.Plan, layout *reindex.Layout, transforms []kernel.Transform, cfg Config, opts ...Option) (*Writer, error) {
	if len(transforms) != len(plan.Windows) {
		return nil, fault.Structural("writer.New", "%d transforms for %d windows", len(transforms), len(plan.Windows))
	}
	if len(cfg.Columns.Pairs) == 0 {
		return nil, fault.Configuration("writer.New", "no data column to write")
	}

	w := &Writer{
		plan:       plan,
		layout:     layout,
		transforms: transforms,
		cfg:        cfg,
		declared:   make(map[tileKey]bool),
		summary:    Summary{Tiles: make(map[archive.Column][]archive.TileShape)},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(w)
	}

	cols := w.columns()
	if cfg.BufferMode {
		w.scratch = archive.New(nil, cols)
		sink = w.scratch
	}
	if sink == nil {
		return nil, fault.Configuration("writer.New", "no output archive")
	}
	if err := sink.SetColumns(cols); err != nil {
		return nil, fault.IO("writer.New", err, "cannot declare columns %v", cols)
	}
	w.sink = sink

	return w, nil
}

func (w *Writer) columns() archive.ColumnSet {
	cols := w.cfg.Columns.Outputs().With(archive.ColFlag)
	if w.cfg.WeightSpectrum {
		cols = cols.With(archive.ColWeightSpectrum)
		if w.cfg.SigmaSpectrum {
			cols = cols.With(archive.ColSigmaSpectrum)
		}
	}

	return cols
}

// Sink returns the output archive.
func (w *Writer) Sink() archive.Sink {
	return w.sink
}

// Scratch returns the scratch archive of buffer mode, or nil.
func (w *Writer) Scratch() *archive.Archive {
	return w.scratch
}

// Summary returns the counters so far.
func (w *Writer) Summary() Summary {
	s := w.summary
	s.Tiles = make(map[archive.Column][]archive.TileShape, len(w.summary.Tiles))
	for c, t := range w.summary.Tiles {
		s.Tiles[c] = slices.Clone(t)
	}

	return s
}

// Medians returns the per-row medians collected in buffer mode, in output
// row order.
func (w *Writer) Medians() []RowMedians {
	return w.medians
}

// Write transforms b and appends the resulting rows.
func (w *Writer) Write(b *pipeline.Buffer) error {
	w.summary.Buffers++
	w.summary.RowsRead += b.Len()

	var out []archive.Row
	for _, g := range w.groups(b) {
		rows, err := w.transform(b, g)
		if err != nil {
			return err
		}
		out = append(out, rows...)
	}
	if len(out) == 0 {
		return nil
	}

	for i := range out {
		if err := w.declare(&out[i]); err != nil {
			return err
		}
	}

	start := w.sink.NumRows()
	if err := w.sink.PutRows(start, out); err != nil {
		return fault.IO(writeOp, err, "cannot write rows %d..%d", start, start+len(out)-1)
	}
	w.summary.RowsWritten += len(out)

	w.logger.Debug("buffer written", "in", b.Len(), "out", len(out), "start", start)
	return nil
}

type groupKey struct {
	time               float64
	a1, a2, f1, f2     int
	field, scan, state int
	obs, array         int
	group              int
}

// groups returns row index groups that merge into one output row: the rows
// of one baseline and time across combined windows, or single rows.
func (w *Writer) groups(b *pipeline.Buffer) [][]int {
	if !w.layout.Combined {
		out := make([][]int, b.Len())
		for i := range out {
			out[i] = []int{i}
		}
		return out
	}

	index := make(map[groupKey]int)
	var out [][]int
	for i := range b.Rows {
		r := &b.Rows[i]
		group := -1
		if g := w.layout.Group(r.DataDescID); len(g) > 0 {
			group = g[0]
		}
		k := groupKey{
			time: r.Time, a1: r.Antenna1, a2: r.Antenna2, f1: r.Feed1, f2: r.Feed2,
			field: r.FieldID, scan: r.ScanNumber, state: r.StateID,
			obs: r.ObservationID, array: r.ArrayID, group: group,
		}
		if j, ok := index[k]; ok {
			out[j] = append(out[j], i)
			continue
		}
		index[k] = len(out)
		out = append(out, []int{i})
	}

	return out
}

func (w *Writer) epoch(r *archive.Row) grid.Epoch {
	e := w.cfg.Anchor
	e.Time = r.Time
	e.FieldID = r.FieldID
	if r.FieldID >= 0 && r.FieldID < len(w.cfg.Fields) {
		e.Direction = w.cfg.Fields[r.FieldID].PhaseDir
	}

	return e
}

// transform produces the output rows of one group.
func (w *Writer) transform(b *pipeline.Buffer, idx []int) ([]archive.Row, error) {
	first := &b.Rows[idx[0]]

	spw := b.Spw(first.DataDescID)
	win, ok := w.plan.WindowOf(spw)
	if !ok {
		return nil, fault.Structural(writeOp, "spw %d has no planned window", spw)
	}
	ddis, ok := w.layout.OutputDDIs(first.DataDescID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnmappedRow, first.DataDescID)
	}

	g, err := w.plan.InputGrid(win, w.epoch(first))
	if err != nil {
		return nil, err
	}

	cubes := make([][]*kernel.Cube, len(w.cfg.Columns.Pairs))
	for p, pair := range w.cfg.Columns.Pairs {
		in := kernel.Input{Cubes: make(map[int]*kernel.Cube, len(idx)), Grid: g}
		for _, i := range idx {
			cell := b.Cell(i, pair.In)
			if cell == nil {
				return nil, fault.Wrap(fault.KindConfiguration, writeOp, ErrMissingColumn, "row has no %s", pair.In)
			}
			in.Cubes[b.Spw(b.Rows[i].DataDescID)] = cubeOf(b, i, cell)
		}

		res, err := w.transforms[win].Apply(in)
		if err != nil {
			return nil, fault.Wrap(fault.KindNumerical, writeOp, err, "spw %d %s", spw, pair.In)
		}
		if len(res) != len(ddis) {
			return nil, fault.Structural(writeOp, "spw %d: %d output cubes for %d data descriptions", spw, len(res), len(ddis))
		}
		cubes[p] = res
	}

	window := &w.plan.Windows[win]
	out := make([]archive.Row, len(ddis))
	for j, ddi := range ddis {
		out[j] = w.row(first, ddi, j, cubes, window)
	}

	return out, nil
}

// row assembles output row j of a group.
func (w *Writer) row(first *archive.Row, ddi, j int, cubes [][]*kernel.Cube, window *grid.Window) archive.Row {
	primary := cubes[0][j]
	ncorr, nchan := primary.NCorr, primary.NChan

	r := archive.Row{
		Time:          first.Time,
		TimeCentroid:  first.TimeCentroid,
		Interval:      first.Interval,
		Exposure:      first.Exposure,
		Antenna1:      first.Antenna1,
		Antenna2:      first.Antenna2,
		Feed1:         first.Feed1,
		Feed2:         first.Feed2,
		DataDescID:    ddi,
		FieldID:       remap(w.layout.Field.Lookup, first.FieldID),
		ScanNumber:    first.ScanNumber,
		StateID:       remap(w.layout.State.Lookup, first.StateID),
		ObservationID: remap(w.layout.Observation.Lookup, first.ObservationID),
		ArrayID:       first.ArrayID,
		ProcessorID:   first.ProcessorID,
		UVW:           first.UVW,
		Flag:          slices.Clone(primary.Flag),
		Weight:        make([]float32, ncorr),
		Sigma:         make([]float32, ncorr),
	}

	for p, pair := range w.cfg.Columns.Pairs {
		c := cubes[p][j]
		if pair.Out == archive.ColFloatData {
			r.FloatData = make([]float32, len(c.Data))
			for i, v := range c.Data {
				r.FloatData[i] = real(v)
			}
			continue
		}
		r.SetVisibility(pair.Out, slices.Clone(c.Data))
	}

	if w.cfg.WeightSpectrum {
		r.WeightSpectrum = slices.Clone(primary.Weight)
		for k := range ncorr {
			r.Weight[k] = core.Median(core.Stride(nil, primary.Weight, k, ncorr))
			r.Sigma[k] = float32(core.WeightToSigma(float64(r.Weight[k])))
		}
		if w.cfg.SigmaSpectrum {
			r.SigmaSpectrum = make([]float32, len(primary.Weight))
			for i, v := range primary.Weight {
				r.SigmaSpectrum[i] = float32(core.WeightToSigma(float64(v)))
			}
		}
	} else {
		for k := range ncorr {
			if k < len(first.Weight) {
				r.Weight[k] = first.Weight[k] * float32(window.WeightFactor)
			}
			if k < len(first.Sigma) {
				r.Sigma[k] = first.Sigma[k] * float32(window.SigmaFactor)
			}
		}
	}

	if w.cfg.Columns.PromotedCorrected {
		for k := range ncorr {
			r.Sigma[k] = float32(core.WeightToSigma(float64(r.Weight[k])))
		}
	}

	r.FlagRow = nchan*ncorr > 0 && !slices.Contains(r.Flag, false)

	if w.cfg.BufferMode {
		w.medians = append(w.medians, mediansOf(primary))
	}

	return r
}

func remap(lookup func(int) (int, bool), id int) int {
	if id < 0 {
		return id
	}
	if n, ok := lookup(id); ok {
		return n
	}

	return id
}

// cubeOf builds the transform input of row i from one of its cells.
func cubeOf(b *pipeline.Buffer, i int, cell []complex64) *kernel.Cube {
	r := &b.Rows[i]
	nchan, ncorr := b.Shape(i)

	c := &kernel.Cube{
		NChan: nchan,
		NCorr: ncorr,
		Data:  slices.Clone(cell),
		Flag:  slices.Clone(r.Flag),
	}
	if r.FlagRow {
		for j := range c.Flag {
			c.Flag[j] = true
		}
	}

	if r.WeightSpectrum != nil {
		c.Weight = slices.Clone(r.WeightSpectrum)
		return c
	}

	c.Weight = make([]float32, nchan*ncorr)
	for j := range c.Weight {
		c.Weight[j] = r.Weight[j%ncorr]
	}

	return c
}

func mediansOf(c *kernel.Cube) RowMedians {
	m := RowMedians{Weight: make([]float32, c.NCorr), Sigma: make([]float32, c.NCorr)}
	sig := make([]float32, len(c.Weight))
	for i, v := range c.Weight {
		sig[i] = float32(core.WeightToSigma(float64(v)))
	}

	for k := range c.NCorr {
		m.Weight[k] = core.Median(core.Stride(nil, c.Weight, k, c.NCorr))
		m.Sigma[k] = core.Median(core.Stride(nil, sig, k, c.NCorr))
	}

	return m
}

// declare fixes the tile shape of each cell column of r on first use.
func (w *Writer) declare(r *archive.Row) error {
	ncorr := len(r.Weight)
	if ncorr == 0 {
		return nil
	}
	nchan := len(r.Flag) / ncorr

	for _, c := range w.columns().List() {
		k := tileKey{col: c, ncorr: ncorr, nchan: nchan}
		if w.declared[k] {
			continue
		}

		shape := TileFor(c, ncorr, nchan)
		if err := w.sink.DeclareTile(c, shape); err != nil {
			return fault.IO(writeOp, err, "cannot declare %s tile %v", c, shape)
		}
		w.declared[k] = true
		w.summary.Tiles[c] = append(w.summary.Tiles[c], shape)
	}

	return nil
}
