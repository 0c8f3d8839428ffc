package transform

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/grid"
	"github.com/cwbudde/algo-mstransform/kernel"
	"github.com/cwbudde/algo-mstransform/pipeline"
	"github.com/cwbudde/algo-mstransform/reindex"
	"github.com/cwbudde/algo-mstransform/selection"
	"github.com/cwbudde/algo-mstransform/writer"
)

const (
	setupOp = "transform.Setup"
	runOp   = "transform.Run"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger of the manager and every stage it builds.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithParser replaces the selection expression parser.
func WithParser(p selection.Parser) Option {
	return func(m *Manager) {
		m.parser = p
	}
}

// WithFrameConverter replaces the spectral frame converter.
func WithFrameConverter(c grid.FrameConverter) Option {
	return func(m *Manager) {
		m.conv = c
	}
}

// Manager runs one transformation. Setup must succeed before Run.
type Manager struct {
	opts   Options
	logger *slog.Logger
	parser selection.Parser
	conv   grid.FrameConverter
	runID  string

	res        *selection.Resolution
	plan       *grid.Plan
	tables     *archive.Subtables
	layout     *reindex.Layout
	strategy   kernel.Strategy
	transforms []kernel.Transform
	chain      *pipeline.Chain
	writer     *writer.Writer
}

// New creates a manager for opts.
func New(opts Options, options ...Option) *Manager {
	m := &Manager{
		opts:   opts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		runID:  uuid.NewString(),
	}
	for _, o := range options {
		o(m)
	}

	return m
}

// RunID identifies this run in the output HISTORY table.
func (m *Manager) RunID() string { return m.runID }

// Plan returns the spectral plan, or nil before Setup.
func (m *Manager) Plan() *grid.Plan { return m.plan }

// Resolution returns the resolved selection, or nil before Setup.
func (m *Manager) Resolution() *selection.Resolution { return m.res }

// Layout returns the output row layout, or nil before Setup.
func (m *Manager) Layout() *reindex.Layout { return m.layout }

// Tables returns the rewritten auxiliary tables, or nil before Setup.
func (m *Manager) Tables() *archive.Subtables { return m.tables }

// Strategy returns the resolved kernel strategy.
func (m *Manager) Strategy() kernel.Strategy { return m.strategy }

// Layers names the active iterator layers.
func (m *Manager) Layers() []string {
	if m.chain == nil {
		return nil
	}
	return slices.Clone(m.chain.Layers)
}

// Writer returns the writer; in buffer mode it holds the scratch archive and
// the per-row medians.
func (m *Manager) Writer() *writer.Writer { return m.writer }

// Setup resolves, plans, reindexes and builds everything Run needs, then
// writes the auxiliary tables to dst. No main-table row is written. dst may
// be nil in buffer mode.
func (m *Manager) Setup(src archive.Reader, dst archive.Sink) error {
	if src == nil {
		return fault.Configuration(setupOp, "no input archive")
	}
	if dst == nil && !m.opts.BufferMode {
		return fault.Configuration(setupOp, "no output archive")
	}
	if len(m.opts.Unknown) > 0 {
		m.logger.Warn("ignoring unknown options", "keys", strings.Join(m.opts.Unknown, ","))
	}

	tables, err := src.Subtables()
	if err != nil {
		return fault.IO(setupOp, err, "cannot read auxiliary tables")
	}
	keys, err := src.Keys()
	if err != nil {
		return fault.IO(setupOp, err, "cannot read row keys")
	}

	if err := m.resolve(tables, keys); err != nil {
		return err
	}

	anchor := grid.AnchorEpoch(tables, m.res, keys)
	if err := m.planGrid(tables, anchor); err != nil {
		return err
	}

	m.tables, m.layout, err = reindex.New(reindex.WithLogger(m.logger)).
		Apply(tables, m.res, m.plan, reindex.Config{PolAverage: m.opts.PolAverage})
	if err != nil {
		return err
	}

	if err := m.dispatch(src.Columns()); err != nil {
		return err
	}

	pcfg, err := m.pipelineConfig(tables)
	if err != nil {
		return err
	}
	m.chain, err = pipeline.NewBuilder(pipeline.WithLogger(m.logger)).Build(src, tables, m.res, pcfg)
	if err != nil {
		return err
	}

	cols, err := writer.ResolveColumns(m.opts.DataColumn, m.chain.Columns(), m.logger)
	if err != nil {
		return fault.Wrap(fault.KindConfiguration, setupOp, err, "datacolumn %q", m.opts.DataColumn)
	}

	m.tables.History = append(m.tables.History, archive.History{
		Time:    mjdSeconds(time.Now()),
		Origin:  "mstransform",
		Message: m.describe(),
		RunID:   m.runID,
	})

	in := src.Columns()
	wcfg := writer.Config{
		Columns:        cols,
		WeightSpectrum: m.opts.WeightSpectrum || in.Has(archive.ColWeightSpectrum),
		SigmaSpectrum:  in.Has(archive.ColSigmaSpectrum),
		BufferMode:     m.opts.BufferMode,
		Anchor:         anchor,
		Fields:         tables.Fields,
	}
	m.writer, err = writer.New(dst, m.plan, m.layout, m.transforms, wcfg, writer.WithLogger(m.logger))
	if err != nil {
		return err
	}
	if err := m.writer.Sink().WriteSubtables(m.tables); err != nil {
		return fault.IO(setupOp, err, "cannot write auxiliary tables")
	}

	m.logger.Debug("selection shape",
		"select_all", m.opts.Selection.Empty(),
		"narrow_channels", m.res.NarrowsChannels(tables),
		"narrow_correlations", m.res.NarrowsCorrelations(tables),
		"per_row_conversion", m.plan.PerRowConversion())
	m.logger.Info("transform set up",
		"run", m.runID,
		"rows", m.chain.NumRows(),
		"spws", len(m.res.Spws),
		"outputs", len(m.plan.Outputs),
		"strategy", m.strategy.String(),
		"layers", strings.Join(m.chain.Layers, ","),
		"columns", cols.Outputs().String())

	return nil
}

func (m *Manager) resolve(tables *archive.Subtables, keys []archive.RowKey) error {
	opts := []selection.Option{
		selection.WithLogger(m.logger),
		selection.WithReindex(m.opts.Reindex),
		selection.WithDDIStart(m.opts.DDIStart),
	}
	if m.parser != nil {
		opts = append(opts, selection.WithParser(m.parser))
	}

	res, err := selection.NewResolver(opts...).Resolve(m.opts.Selection, tables, keys)
	if err != nil {
		return err
	}
	m.res = res

	return nil
}

func (m *Manager) planGrid(tables *archive.Subtables, anchor grid.Epoch) error {
	cfg := grid.Config{
		// nspw implies combining when there is more than one window to combine.
		Combine: m.opts.CombineSpws || (m.opts.NSpw > 1 && len(m.res.Spws) > 1),
		NSpw:    m.opts.NSpw,
		Anchor:  anchor,
	}
	if m.opts.ChanAverage {
		cfg.ChanBin = m.opts.ChanBin
	}
	if m.opts.RegridMS {
		spec := m.opts.Regrid
		cfg.Regrid = &spec
	}

	opts := []grid.Option{grid.WithLogger(m.logger)}
	if m.conv != nil {
		opts = append(opts, grid.WithFrameConverter(m.conv))
	}

	plan, err := grid.NewPlanner(opts...).Plan(m.res, tables, cfg)
	if err != nil {
		return err
	}
	m.plan = plan

	return nil
}

func (m *Manager) dispatch(in archive.ColumnSet) error {
	averaging := false
	for _, w := range m.plan.Windows {
		if w.Bin > 1 {
			averaging = true
		}
	}

	m.strategy = kernel.Resolve(kernel.Config{
		Combine:        m.plan.Combined(),
		Regrid:         m.opts.RegridMS,
		ChanAverage:    averaging,
		Smooth:         m.opts.Hanning,
		Split:          m.plan.Split(),
		WeightSpectrum: in.Has(archive.ColWeightSpectrum),
		TimeAverage:    m.opts.TimeAverage,
	})

	transforms, err := m.strategy.Build(m.plan)
	if err != nil {
		return err
	}
	m.transforms = transforms

	return nil
}

func (m *Manager) pipelineConfig(tables *archive.Subtables) (pipeline.Config, error) {
	cfg := pipeline.Config{
		Pointing:   m.opts.Pointing,
		PolAverage: m.opts.PolAverage,
		PolMode:    m.opts.PolAverageMode,
	}

	if m.plan.Combined() {
		cfg.SortBy = pipeline.CombineSortKey
	}

	if cal := m.calibrator(); cal != nil {
		cfg.Calibration = cal
	}

	if m.opts.ContSub {
		fit := pipeline.PolyFit{Order: m.opts.FitOrder}
		if m.opts.FitSpw != "" {
			free, err := m.lineFree(tables)
			if err != nil {
				return cfg, err
			}
			fit.LineFree = free
		}
		cfg.Continuum = fit
	}

	if m.opts.AtmCor {
		cfg.Atmosphere = pipeline.ZenithOpacity(m.opts.Opacity)
	}

	if m.opts.TimeAverage {
		cfg.TimeAverage = &pipeline.TimeAverage{
			Bin:            m.opts.TimeBin,
			Span:           m.opts.TimeSpan,
			MaxUVWDistance: m.opts.MaxUVWDistance,
		}
	}

	if m.opts.PhaseCenter != nil {
		pc := *m.opts.PhaseCenter
		cfg.PhaseCenter = &pc
	}

	return cfg, nil
}

// calibrator loads the gain table. A table that cannot be loaded disables
// calibration with a warning.
func (m *Manager) calibrator() pipeline.Calibrator {
	var (
		g   *pipeline.GainTable
		err error
	)
	switch {
	case m.opts.CalLib != "":
		g, err = pipeline.LoadGainTable(m.opts.CalLib)
	case len(m.opts.CalRecord) > 0:
		g, err = pipeline.GainTableFromRecord(m.opts.CalRecord)
	default:
		return nil
	}

	if err != nil {
		m.logger.Warn("calibration disabled", "err", err)
		return nil
	}

	return g
}

// lineFree resolves fitspw into channel ranges per window.
func (m *Manager) lineFree(tables *archive.Subtables) (map[int][]selection.ChannelRange, error) {
	p := m.parser
	if p == nil {
		p = selection.ExprParser{}
	}

	parsed, err := p.Parse(selection.KindSpw, m.opts.FitSpw, &selection.Metadata{Tables: tables})
	if err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, setupOp, err, "fitspw %q", m.opts.FitSpw)
	}

	free := make(map[int][]selection.ChannelRange, len(parsed.IDs))
	for _, spw := range parsed.IDs {
		if r, ok := parsed.Channels[spw]; ok {
			free[spw] = r
		}
	}

	return free, nil
}

// Run pulls every buffer through the writer. A failure stops the run and
// leaves the rows written so far in place.
func (m *Manager) Run() (writer.Summary, error) {
	if m.writer == nil || m.chain == nil {
		return writer.Summary{}, ErrNotSetUp
	}

	for {
		b, err := m.chain.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return m.summary(), err
		}
		if err := m.writer.Write(b); err != nil {
			return m.summary(), err
		}
	}

	s := m.summary()
	m.logger.Info("transform finished",
		"run", m.runID, "buffers", s.Buffers, "rows_read", s.RowsRead, "rows_written", s.RowsWritten)
	if s.RowsWritten == 0 {
		return s, fault.New(fault.KindSelection, runOp, "no rows written")
	}

	return s, nil
}

// summary is the writer summary with rows read counted at the scan.
func (m *Manager) summary() writer.Summary {
	s := m.writer.Summary()
	s.RowsRead = m.chain.RowsRead()
	return s
}

// describe summarizes the options for the HISTORY table.
func (m *Manager) describe() string {
	o := m.opts
	parts := []string{"datacolumn=" + o.DataColumn}
	add := func(on bool, s string) {
		if on {
			parts = append(parts, s)
		}
	}

	add(o.Selection.Spw != "", "spw="+o.Selection.Spw)
	add(o.Selection.Field != "", "field="+o.Selection.Field)
	add(o.ChanAverage, fmt.Sprintf("chanbin=%v", o.ChanBin))
	add(o.CombineSpws, "combinespws")
	add(o.RegridMS, fmt.Sprintf("regrid=%v", o.Regrid.Mode))
	add(o.NSpw > 1, fmt.Sprintf("nspw=%d", o.NSpw))
	add(o.Hanning, "hanning")
	add(o.TimeAverage, fmt.Sprintf("timebin=%gs", o.TimeBin))
	add(o.PolAverage, "polaverage="+o.PolAverageMode.String())
	add(o.PhaseCenter != nil, "phasecenter")
	add(o.ContSub, fmt.Sprintf("fitorder=%d", o.FitOrder))

	return strings.Join(parts, " ")
}

// mjdSeconds converts t to modified Julian date seconds.
func mjdSeconds(t time.Time) float64 {
	const unixEpochMJD = 40587
	return float64(t.UnixNano())/1e9 + unixEpochMJD*86400
}
