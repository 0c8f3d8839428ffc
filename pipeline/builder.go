package pipeline

import (
	"io"
	"log/slog"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/selection"
)

const buildOp = "pipeline.Build"

// Config selects the layers of an iterator. Zero values disable a layer.
type Config struct {
	SortBy      []archive.SortColumn
	Calibration Calibrator
	Continuum   ContinuumModel
	Pointing    bool
	Atmosphere  Opacity
	PolAverage  bool
	PolMode     PolAverageMode
	TimeAverage *TimeAverage
	PhaseCenter *PhaseCenter
}

// Chain is a composed iterator.
type Chain struct {
	Iterator
	// Layers names the active layers from the scan outwards.
	Layers []string
	// Calibrated reports whether the calibration layer is active.
	Calibrated bool

	scan *Scan
}

// NumRows returns the number of selected input rows.
func (c *Chain) NumRows() int {
	return c.scan.NumRows()
}

// RowsRead returns the number of input rows the scan has delivered. Layers
// that merge rows make this differ from the rows seen downstream.
func (c *Chain) RowsRead() int {
	return c.scan.Read()
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger of the builder and its scan.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder composes iterators.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, o := range opts {
		o(b)
	}

	return b
}

// Build composes the scan and the configured layers. A calibration that
// cannot be applied is dropped with a warning and the remaining layers are
// built over the uncalibrated scan; callers should recheck Columns.
func (b *Builder) Build(src archive.Reader, tables *archive.Subtables, res *selection.Resolution, cfg Config) (*Chain, error) {
	sortBy := cfg.SortBy
	if cfg.TimeAverage != nil && len(cfg.TimeAverage.Span) > 0 {
		sortBy = SpanSortKey(sortBy, cfg.TimeAverage.Span)
	}

	scan, err := NewScan(src, tables, res, sortBy, WithScanLogger(b.logger))
	if err != nil {
		return nil, err
	}

	c := &Chain{Iterator: scan, Layers: []string{"scan"}, scan: scan}
	push := func(it Iterator, name string) {
		c.Iterator = it
		c.Layers = append(c.Layers, name)
	}

	if cfg.Calibration != nil {
		a := Try(newCalibration(c.Iterator, cfg.Calibration, res.Spws))
		if a.OK() {
			push(a.Or(c.Iterator), "calibration")
			c.Calibrated = true
		} else {
			b.logger.Warn("calibration unavailable, continuing without it", "err", a.Err())
		}
	}
	if cfg.Continuum != nil {
		push(&contsub{inner: c.Iterator, model: cfg.Continuum}, "contsub")
	}
	if cfg.Pointing {
		push(newPointing(c.Iterator, tables), "pointing")
	}
	if cfg.Atmosphere != nil {
		push(&atmosphere{inner: c.Iterator, opacity: cfg.Atmosphere, antennas: tables.Antennas, fields: tables.Fields}, "atmosphere")
	}
	if cfg.PolAverage {
		push(&polavg{inner: c.Iterator, mode: cfg.PolMode}, "polaverage")
	}
	if cfg.TimeAverage != nil {
		ta, err := newTimeAverage(c.Iterator, *cfg.TimeAverage)
		if err != nil {
			return nil, fault.Wrap(fault.KindConfiguration, buildOp, err, "time average")
		}
		push(ta, "timeaverage")
	}
	if cfg.PhaseCenter != nil {
		ps, err := newPhaseShift(c.Iterator, *cfg.PhaseCenter, tables)
		if err != nil {
			return nil, fault.Wrap(fault.KindConfiguration, buildOp, err, "phase shift")
		}
		push(ps, "phaseshift")
	}

	b.logger.Debug("iterator built", "layers", c.Layers, "rows", scan.NumRows())

	return c, nil
}
