package reindex

import (
	"io"
	"log/slog"
	"slices"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/grid"
	"github.com/cwbudde/algo-mstransform/selection"
)

const reindexOp = "reindex.Apply"

// Config holds the reindexing options that do not come from the plan.
type Config struct {
	// PolAverage points averageable setups at a Stokes I row.
	PolAverage bool
}

// Option configures a Reindexer.
type Option func(*Reindexer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reindexer) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reindexer rewrites auxiliary tables.
type Reindexer struct {
	logger *slog.Logger
}

// New creates a reindexer.
func New(opts ...Option) *Reindexer {
	r := &Reindexer{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, o := range opts {
		o(r)
	}

	return r
}

// Apply returns the rewritten tables and the row layout. in is not modified.
func (r *Reindexer) Apply(in *archive.Subtables, res *selection.Resolution, plan *grid.Plan, cfg Config) (*archive.Subtables, *Layout, error) {
	if in == nil || res == nil || plan == nil {
		return nil, nil, fault.Structural(reindexOp, "missing tables, resolution or plan")
	}

	t := in.Clone()
	dense := res.Reindex || plan.Combined() || plan.Split()

	l := &Layout{
		DDI:         make(map[int][]int),
		Spw:         make(map[int][]int),
		AveragedPol: make(map[int]bool),
		StokesPol:   -1,
		NCorr:       make(map[int]int),
		Field:       res.Maps.Field,
		Observation: res.Maps.Observation,
		State:       res.Maps.State,
		Combined:    plan.Combined(),
		Split:       plan.Split(),
	}

	if err := r.spectralWindows(t, res, plan, l, dense); err != nil {
		return nil, nil, err
	}

	if res.Reindex {
		t.Fields = filterRows(t.Fields, res.Maps.Field)
		t.Observations = filterRows(t.Observations, res.Maps.Observation)
		t.States = filterRows(t.States, res.Maps.State)
		t.Sources = r.sources(t, in, l)
	}

	t.Feeds = remap(t.Feeds, l, dense,
		func(f *archive.Feed) *int { return &f.SpwID },
		func(f archive.Feed) key { return key{a: f.AntennaID, b: f.FeedID, t: f.Time, i: f.Interval, s: f.SpwID} })
	t.Sources = remap(t.Sources, l, dense,
		func(s *archive.Source) *int { return &s.SpwID },
		func(s archive.Source) key { return key{a: s.SourceID, t: s.Time, i: s.Interval, s: s.SpwID} })
	t.SysCal = remap(t.SysCal, l, dense,
		func(s *archive.SysCal) *int { return &s.SpwID },
		func(s archive.SysCal) key { return key{a: s.AntennaID, b: s.FeedID, t: s.Time, i: s.Interval, s: s.SpwID} })
	t.FreqOffsets = remap(t.FreqOffsets, l, dense,
		func(f *archive.FreqOffset) *int { return &f.SpwID },
		func(f archive.FreqOffset) key {
			return key{a: f.Antenna1, b: f.Antenna2, c: f.FeedID, t: f.Time, i: f.Interval, s: f.SpwID}
		})
	t.CalDevices = remap(t.CalDevices, l, dense,
		func(c *archive.CalDevice) *int { return &c.SpwID },
		func(c archive.CalDevice) key { return key{a: c.AntennaID, b: c.FeedID, t: c.Time, i: c.Interval, s: c.SpwID} })
	t.SysPower = remap(t.SysPower, l, dense,
		func(s *archive.SysPower) *int { return &s.SpwID },
		func(s archive.SysPower) key { return key{a: s.AntennaID, b: s.FeedID, t: s.Time, i: s.Interval, s: s.SpwID} })

	narrowCorrelations(t, res)
	if cfg.PolAverage {
		r.averagePolarizations(t, res, l)
	}

	r.dataDescriptions(t, in, res, l, dense)

	return t, l, nil
}

// spectralWindows replaces the window table and fills Layout.Spw.
func (r *Reindexer) spectralWindows(t *archive.Subtables, res *selection.Resolution, plan *grid.Plan, l *Layout, dense bool) error {
	outs := plan.SpectralWindows()

	if dense {
		for _, spw := range res.Spws {
			w, ok := plan.WindowOf(spw)
			if !ok {
				return fault.Structural(reindexOp, "spw %d has no planned window", spw)
			}
			l.Spw[spw] = plan.OutputsOf(w)
		}
		t.SpectralWindows = outs
		return nil
	}

	for _, spw := range res.Spws {
		w, ok := plan.WindowOf(spw)
		if !ok {
			return fault.Structural(reindexOp, "spw %d has no planned window", spw)
		}
		o := plan.OutputsOf(w)[0]
		t.SpectralWindows[spw] = outs[o]
		l.Spw[spw] = []int{spw}
	}

	return nil
}

func filterRows[T any](rows []T, m selection.IndexMap) []T {
	if rows == nil {
		return nil
	}

	out := make([]T, m.Len())
	n := 0
	for old, row := range rows {
		id, ok := m.Lookup(old)
		if !ok {
			continue
		}
		out[id-m.Offset()] = row
		n++
	}

	return out[:n]
}

// sources keeps the SOURCE rows referenced by surviving fields.
func (r *Reindexer) sources(t, in *archive.Subtables, l *Layout) []archive.Source {
	if t.Sources == nil {
		return nil
	}

	keep := make(map[int]bool)
	for _, old := range l.Field.IDs() {
		if old < len(in.Fields) {
			keep[in.Fields[old].SourceID] = true
		}
	}

	out := t.Sources[:0:0]
	for _, s := range t.Sources {
		if keep[s.SourceID] {
			out = append(out, s)
		}
	}

	return out
}

// key identifies a window-carrying row for duplicate removal.
type key struct {
	a, b, c int
	t, i    float64
	s       int
}

// remap rewrites the window id of each row. Rows of unselected windows are
// dropped when dense; rows with id -1 apply to all windows and are kept.
// Combined windows collapse onto one id and the duplicates this creates are
// dropped; split windows replicate each row once per output window.
func remap[T any](rows []T, l *Layout, dense bool, spw func(*T) *int, id func(T) key) []T {
	if rows == nil || !dense {
		return rows
	}

	seen := make(map[key]bool)
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		old := *spw(&row)
		if old < 0 {
			out = append(out, row)
			continue
		}

		targets, ok := l.Spw[old]
		if !ok {
			continue
		}

		for _, s := range targets {
			cp := row
			*spw(&cp) = s
			k := id(cp)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, cp)
		}
	}

	return slices.Clip(out)
}

// narrowCorrelations rewrites the polarization rows whose correlations are
// partly deselected.
func narrowCorrelations(t *archive.Subtables, res *selection.Resolution) {
	for pol, idx := range res.Correlations {
		p := &t.Polarizations[pol]
		if len(idx) == p.NumCorr() {
			continue
		}

		types := make([]archive.Stokes, len(idx))
		var products [][2]int
		if len(p.CorrProduct) == p.NumCorr() {
			products = make([][2]int, len(idx))
		}
		for i, c := range idx {
			types[i] = p.CorrType[c]
			if products != nil {
				products[i] = p.CorrProduct[c]
			}
		}
		p.CorrType = types
		p.CorrProduct = products
	}
}

// averagePolarizations points averageable setups at a one-correlation
// Stokes I row, appending it unless the table already holds one.
func (r *Reindexer) averagePolarizations(t *archive.Subtables, res *selection.Resolution, l *Layout) {
	pols := make([]int, 0, len(res.Correlations))
	for pol := range res.Correlations {
		pols = append(pols, pol)
	}
	slices.Sort(pols)

	for _, pol := range pols {
		if archive.AverageableBasis(t.Polarizations[pol].CorrType) == archive.BasisOther {
			r.logger.Warn("polarization setup cannot be averaged", "pol", pol)
			continue
		}
		l.AveragedPol[pol] = true
	}

	if len(l.AveragedPol) == 0 {
		return
	}

	for i, p := range t.Polarizations {
		if slices.Equal(p.CorrType, []archive.Stokes{archive.StokesI}) && !p.Flag {
			l.StokesPol = i
			return
		}
	}

	t.Polarizations = append(t.Polarizations, archive.Polarization{
		CorrType:    []archive.Stokes{archive.StokesI},
		CorrProduct: [][2]int{{0, 0}},
	})
	l.StokesPol = len(t.Polarizations) - 1
}

type ddKey struct {
	spw, pol int
}

// dataDescriptions rebuilds the data description table last, once the
// window and polarization ids are final.
func (r *Reindexer) dataDescriptions(t, in *archive.Subtables, res *selection.Resolution, l *Layout, dense bool) {
	index := make(map[ddKey]int)

	if dense {
		start := res.Maps.DataDescription.Offset()
		t.DataDescriptions = make([]archive.DataDescription, start)
		for i := range t.DataDescriptions {
			t.DataDescriptions[i] = archive.DataDescription{Flag: true}
		}
	} else {
		for i, dd := range t.DataDescriptions {
			if !dd.Flag {
				index[ddKey{dd.SpwID, dd.PolID}] = i
			}
		}
	}

	for _, ddi := range res.DDIs {
		dd := in.DataDescriptions[ddi]
		pol := dd.PolID
		if l.AveragedPol[pol] {
			pol = l.StokesPol
		}

		if !dense && pol == dd.PolID {
			l.DDI[ddi] = []int{ddi}
			l.NCorr[ddi] = t.Polarizations[pol].NumCorr()
			continue
		}

		for _, spw := range l.Spw[dd.SpwID] {
			k := ddKey{spw, pol}
			id, ok := index[k]
			if !ok {
				t.DataDescriptions = append(t.DataDescriptions, archive.DataDescription{SpwID: spw, PolID: pol})
				id = len(t.DataDescriptions) - 1
				index[k] = id
			}
			l.DDI[ddi] = append(l.DDI[ddi], id)
			l.NCorr[id] = t.Polarizations[pol].NumCorr()
		}
	}

	r.logger.Debug("data descriptions rebuilt", "in", len(res.DDIs), "out", len(index), "dense", dense)
}
