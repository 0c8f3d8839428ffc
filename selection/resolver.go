package selection

import (
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
)

const resolveOp = "selection.Resolve"

// Resolution is the outcome of resolving all criteria. It is built once and
// not modified afterwards.
type Resolution struct {
	// Spws lists the selected spectral windows, ascending.
	Spws []int
	// Channels holds the merged channel ranges of each selected window.
	Channels map[int][]ChannelRange
	// DDIs lists the surviving data descriptions, ascending.
	DDIs []int
	// Correlations holds the selected correlation indices of each surviving
	// polarization setup.
	Correlations map[int][]int
	// Filter accepts the selected main-table rows.
	Filter *RowFilter
	// Maps holds old-to-new ids per table kind.
	Maps IndexMaps
	// Reindex reports whether the maps renumber ids densely.
	Reindex bool
}

// SelectedChannels returns the number of selected channels of spw.
func (r *Resolution) SelectedChannels(spw int) int {
	return CountChannels(r.Channels[spw])
}

// ChannelIndices returns the selected channel indices of spw, ascending.
func (r *Resolution) ChannelIndices(spw int) []int {
	return ChannelIndices(r.Channels[spw])
}

// CorrelationIndices returns the selected correlation indices of polarization
// setup pol.
func (r *Resolution) CorrelationIndices(pol int) ([]int, bool) {
	c, ok := r.Correlations[pol]
	return c, ok
}

// NarrowsChannels reports whether any window keeps only part of its channels.
func (r *Resolution) NarrowsChannels(t *archive.Subtables) bool {
	for _, spw := range r.Spws {
		if r.SelectedChannels(spw) != t.SpectralWindows[spw].NumChan() {
			return true
		}
	}

	return false
}

// NarrowsCorrelations reports whether any setup keeps only part of its correlations.
func (r *Resolution) NarrowsCorrelations(t *archive.Subtables) bool {
	for pol, idx := range r.Correlations {
		if len(idx) != t.Polarizations[pol].NumCorr() {
			return true
		}
	}

	return false
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithParser replaces the expression parser.
func WithParser(p Parser) Option {
	return func(r *Resolver) {
		r.parser = p
	}
}

// WithLogger sets the logger used for selection warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReindex enables dense renumbering of the index maps.
func WithReindex(on bool) Option {
	return func(r *Resolver) {
		r.reindex = on
	}
}

// WithDDIStart sets the first output data description id of a dense map.
func WithDDIStart(start int) Option {
	return func(r *Resolver) {
		r.ddiStart = max(start, 0)
	}
}

// Resolver resolves selection criteria against archive metadata.
type Resolver struct {
	parser   Parser
	logger   *slog.Logger
	reindex  bool
	ddiStart int
}

// NewResolver creates a resolver. By default it uses ExprParser, logs nowhere
// and re-indexes.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		parser:  ExprParser{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		reindex: true,
	}
	for _, o := range opts {
		o(r)
	}

	return r
}

func active(expr string) bool {
	e := strings.TrimSpace(expr)
	return e != "" && !strings.EqualFold(e, "all")
}

// Resolve resolves c against tables and the main-table keys.
func (r *Resolver) Resolve(c Criteria, tables *archive.Subtables, keys []archive.RowKey) (*Resolution, error) {
	if tables == nil || len(tables.DataDescriptions) == 0 {
		return nil, fault.Selection(resolveOp, "archive has no data descriptions")
	}

	md := metadataOf(tables, keys)

	parsed := make(map[Kind]*Parsed)
	for k := KindField; k <= KindFilter; k++ {
		expr := c.Expr(k)
		if !active(expr) {
			continue
		}

		p, err := r.parser.Parse(k, expr, md)
		if err != nil {
			return nil, fault.Wrap(fault.KindConfiguration, resolveOp, err, "cannot parse %s selection %q", k, expr)
		}
		if len(p.Unmatched) > 0 {
			r.logger.Warn("selection tokens matched nothing",
				"kind", k.String(), "expr", expr, "tokens", strings.Join(p.Unmatched, ","))
		}
		if idKind(k) && len(p.IDs) == 0 {
			return nil, fault.Selection(resolveOp, "%s selection %q matches nothing", k, expr)
		}
		if k == KindCorrelation && len(p.Correlations) == 0 {
			return nil, fault.Selection(resolveOp, "correlation selection %q matches nothing", expr)
		}
		parsed[k] = p
	}

	res := &Resolution{
		Channels:     make(map[int][]ChannelRange),
		Correlations: make(map[int][]int),
		Reindex:      r.reindex,
	}

	spwSel := seq(len(tables.SpectralWindows))
	if p := parsed[KindSpw]; p != nil {
		spwSel = p.IDs
	}

	corrs := make(map[int][]int)
	for pol, setup := range tables.Polarizations {
		var idx []int
		for i, s := range setup.CorrType {
			if p := parsed[KindCorrelation]; p == nil || slices.Contains(p.Correlations, s) {
				idx = append(idx, i)
			}
		}
		if len(idx) > 0 {
			corrs[pol] = idx
		}
	}

	for ddi, dd := range tables.DataDescriptions {
		if !slices.Contains(spwSel, dd.SpwID) {
			continue
		}
		idx, ok := corrs[dd.PolID]
		if !ok {
			continue
		}
		res.DDIs = append(res.DDIs, ddi)
		res.Correlations[dd.PolID] = idx
		if !slices.Contains(res.Spws, dd.SpwID) {
			res.Spws = append(res.Spws, dd.SpwID)
		}
	}

	if len(res.DDIs) == 0 {
		return nil, fault.Selection(resolveOp, "spw %q and correlation %q select no data description", c.Spw, c.Correlation)
	}
	slices.Sort(res.Spws)

	for _, spw := range res.Spws {
		if p := parsed[KindSpw]; p != nil && len(p.Channels[spw]) > 0 {
			res.Channels[spw] = p.Channels[spw]
			continue
		}
		n := tables.SpectralWindows[spw].NumChan()
		res.Channels[spw] = []ChannelRange{{Start: 0, Stop: n - 1, Step: 1}}
	}

	res.Filter = r.rowFilter(parsed, res.DDIs)
	res.Maps = r.indexMaps(parsed, tables, res)

	if len(keys) > 0 && !slices.ContainsFunc(keys, res.Filter.Accept) {
		return nil, fault.Selection(resolveOp, "selection eliminates every main-table row")
	}

	return res, nil
}

func idKind(k Kind) bool {
	switch k {
	case KindField, KindSpw, KindScan, KindIntent, KindObservation, KindArray, KindFeed, KindAntenna:
		return true
	default:
		return false
	}
}

func (r *Resolver) rowFilter(parsed map[Kind]*Parsed, ddis []int) *RowFilter {
	f := &RowFilter{ddis: setOf(ddis)}
	ids := func(k Kind) map[int]bool {
		if p := parsed[k]; p != nil {
			return setOf(p.IDs)
		}
		return nil
	}

	f.fields = ids(KindField)
	f.scans = ids(KindScan)
	f.states = ids(KindIntent)
	f.observations = ids(KindObservation)
	f.arrays = ids(KindArray)
	f.feeds = ids(KindFeed)

	if p := parsed[KindAntenna]; p != nil {
		f.baselines = p.Baselines
	}
	if p := parsed[KindTime]; p != nil {
		f.times = p.Ranges
	}
	if p := parsed[KindUVRange]; p != nil {
		f.uv = p.Ranges
	}
	if p := parsed[KindFilter]; p != nil {
		f.predicate = p.Predicate
	}

	return f
}

func (r *Resolver) indexMaps(parsed map[Kind]*Parsed, t *archive.Subtables, res *Resolution) IndexMaps {
	build := func(kind TableKind, ids []int, offset int) IndexMap {
		if r.reindex {
			return DenseMap(kind, ids, offset)
		}
		return IdentityMap(kind, ids)
	}
	selected := func(k Kind, n int) []int {
		if p := parsed[k]; p != nil {
			return p.IDs
		}
		return seq(n)
	}

	return IndexMaps{
		Spw:             build(TableSpw, res.Spws, 0),
		DataDescription: build(TableDataDescription, res.DDIs, r.ddiStart),
		Field:           build(TableField, selected(KindField, len(t.Fields)), 0),
		Observation:     build(TableObservation, selected(KindObservation, len(t.Observations)), 0),
		State:           build(TableState, selected(KindIntent, len(t.States)), 0),
		Antenna:         IdentityMap(TableAntenna, seq(len(t.Antennas))),
		Polarization:    IdentityMap(TablePolarization, seq(len(t.Polarizations))),
	}
}

func metadataOf(t *archive.Subtables, keys []archive.RowKey) *Metadata {
	md := &Metadata{Tables: t}
	for _, k := range keys {
		md.Scans = append(md.Scans, k.ScanNumber)
		md.Arrays = append(md.Arrays, k.ArrayID)
		md.Feeds = append(md.Feeds, k.Feed1, k.Feed2)
	}

	for _, s := range []*[]int{&md.Scans, &md.Arrays, &md.Feeds} {
		slices.Sort(*s)
		*s = slices.Compact(*s)
	}

	return md
}
