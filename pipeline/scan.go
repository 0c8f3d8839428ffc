package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/selection"
)

const scanOp = "pipeline.Scan"

// DefaultSortKey orders rows by observation, array, scan, state, field, data
// description and time.
var DefaultSortKey = []archive.SortColumn{
	archive.SortObservation, archive.SortArray, archive.SortScan, archive.SortState,
	archive.SortField, archive.SortDataDesc, archive.SortTime,
}

// CombineSortKey leaves out the data description so that the rows of all
// windows at one time share a buffer.
var CombineSortKey = []archive.SortColumn{
	archive.SortObservation, archive.SortArray, archive.SortScan, archive.SortState,
	archive.SortField, archive.SortTime,
}

// ScanOption configures a Scan.
type ScanOption func(*Scan)

// WithScanLogger sets the logger of the scan.
func WithScanLogger(l *slog.Logger) ScanOption {
	return func(s *Scan) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scan is the base iterator: it reads selected rows in sort-key order.
type Scan struct {
	src    archive.Reader
	cols   archive.ColumnSet
	sortBy []archive.SortColumn
	keys   []archive.RowKey
	pos    int
	prev   []float64
	meta   *spectral
	logger *slog.Logger
}

// NewScan prepares a scan of src restricted to res. The sort key must not
// repeat a column; time is appended when missing and always sorts last.
func NewScan(src archive.Reader, tables *archive.Subtables, res *selection.Resolution, sortBy []archive.SortColumn, opts ...ScanOption) (*Scan, error) {
	key, err := normalizeSortKey(sortBy)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, scanOp, err, "sort key %v", sortBy)
	}

	all, err := src.Keys()
	if err != nil {
		return nil, fault.IO(scanOp, err, "cannot read row keys")
	}

	s := &Scan{
		src:    src,
		cols:   src.Columns(),
		sortBy: key,
		meta:   spectralOf(tables, res),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}

	s.keys = make([]archive.RowKey, 0, len(all))
	for _, k := range all {
		if res.Filter == nil || res.Filter.Accept(k) {
			s.keys = append(s.keys, k)
		}
	}
	slices.SortStableFunc(s.keys, func(a, b archive.RowKey) int {
		for _, c := range s.sortBy {
			if d := cmpFloat(a.Value(c), b.Value(c)); d != 0 {
				return d
			}
		}
		return 0
	})

	s.logger.Debug("scan prepared", "rows", len(s.keys), "of", len(all), "sort", fmt.Sprint(s.sortBy))

	return s, nil
}

func normalizeSortKey(sortBy []archive.SortColumn) ([]archive.SortColumn, error) {
	if len(sortBy) == 0 {
		return slices.Clone(DefaultSortKey), nil
	}

	seen := make(map[archive.SortColumn]bool)
	out := make([]archive.SortColumn, 0, len(sortBy)+1)
	for _, c := range sortBy {
		if seen[c] {
			return nil, fmt.Errorf("%w: %v repeated", ErrSortKey, c)
		}
		seen[c] = true
		if c != archive.SortTime {
			out = append(out, c)
		}
	}

	return append(out, archive.SortTime), nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func spectralOf(t *archive.Subtables, res *selection.Resolution) *spectral {
	m := &spectral{
		chans: make(map[int][]int),
		freqs: make(map[int][]float64),
		spws:  make(map[int]int),
		corrs: make(map[int][]archive.Stokes),
		prods: make(map[int][][2]int),
		idx:   make(map[int][]int),
	}

	for _, ddi := range res.DDIs {
		dd := t.DataDescriptions[ddi]
		chans := res.ChannelIndices(dd.SpwID)
		spw := t.SpectralWindows[dd.SpwID]

		freqs := make([]float64, len(chans))
		for i, c := range chans {
			freqs[i] = spw.ChanFreq[c]
		}

		m.chans[ddi] = chans
		m.freqs[ddi] = freqs
		m.spws[ddi] = dd.SpwID

		pol := t.Polarizations[dd.PolID]
		idx, _ := res.CorrelationIndices(dd.PolID)
		m.idx[ddi] = idx
		for _, k := range idx {
			m.corrs[ddi] = append(m.corrs[ddi], pol.CorrType[k])
			if k < len(pol.CorrProduct) {
				m.prods[ddi] = append(m.prods[ddi], pol.CorrProduct[k])
			}
		}
	}

	return m
}

// Columns returns the cell columns of the source.
func (s *Scan) Columns() archive.ColumnSet {
	return s.cols
}

// NumRows returns the number of selected rows.
func (s *Scan) NumRows() int {
	return len(s.keys)
}

// Read returns the number of rows returned so far.
func (s *Scan) Read() int {
	return s.pos
}

// Next reads the rows of the next key tuple.
func (s *Scan) Next() (*Buffer, error) {
	if s.pos >= len(s.keys) {
		return nil, io.EOF
	}

	end := s.pos + 1
	for end < len(s.keys) && s.sameTuple(s.keys[s.pos], s.keys[end]) {
		end++
	}

	idx := make([]int, end-s.pos)
	for i, k := range s.keys[s.pos:end] {
		idx[i] = k.Index
	}

	rows, err := s.src.ReadRows(idx)
	if err != nil {
		return nil, fault.IO(scanOp, err, "cannot read rows %d..%d", s.pos, end-1)
	}

	b := &Buffer{Rows: rows, meta: s.meta}
	b.ChunkStart = s.chunkChanged(s.keys[s.pos])
	s.pos = end

	for i := range b.Rows {
		s.slice(&b.Rows[i])
	}
	if s.cols.Has(archive.ColFloatData) {
		b.Float = make([][]complex64, len(b.Rows))
		for i := range b.Rows {
			b.Float[i] = widen(b.Rows[i].FloatData)
		}
	}

	return b, nil
}

func (s *Scan) sameTuple(a, b archive.RowKey) bool {
	for _, c := range s.sortBy {
		if a.Value(c) != b.Value(c) {
			return false
		}
	}

	return true
}

func (s *Scan) chunkChanged(k archive.RowKey) bool {
	cur := make([]float64, 0, len(s.sortBy)-1)
	for _, c := range s.sortBy[:len(s.sortBy)-1] {
		cur = append(cur, k.Value(c))
	}

	changed := s.prev == nil || !slices.Equal(cur, s.prev)
	s.prev = cur

	return changed
}

// slice narrows the cells of r to the selected channels and correlations.
func (s *Scan) slice(r *archive.Row) {
	chans := s.meta.chans[r.DataDescID]
	corrs := s.meta.idx[r.DataDescID]

	ncorr := len(r.Weight)
	if ncorr == 0 {
		return
	}
	if len(r.Flag) == 0 && len(r.Data) > 0 {
		r.Flag = make([]bool, len(r.Data))
	}
	nchan := len(r.Flag) / ncorr

	if len(corrs) == ncorr && len(chans) == nchan {
		return
	}

	r.Data = sliceCell(r.Data, ncorr, chans, corrs)
	r.Corrected = sliceCell(r.Corrected, ncorr, chans, corrs)
	r.Model = sliceCell(r.Model, ncorr, chans, corrs)
	r.Lag = sliceCell(r.Lag, ncorr, chans, corrs)
	r.FloatData = sliceCell(r.FloatData, ncorr, chans, corrs)
	r.Flag = sliceCell(r.Flag, ncorr, chans, corrs)
	r.WeightSpectrum = sliceCell(r.WeightSpectrum, ncorr, chans, corrs)
	r.SigmaSpectrum = sliceCell(r.SigmaSpectrum, ncorr, chans, corrs)
	r.Weight = pick(r.Weight, corrs)
	r.Sigma = pick(r.Sigma, corrs)
}

// sliceCell gathers the selected channels and correlations of a flat
// chan*ncorr+corr cell. A nil cell stays nil.
func sliceCell[T any](cell []T, ncorr int, chans, corrs []int) []T {
	if cell == nil {
		return nil
	}

	out := make([]T, 0, len(chans)*len(corrs))
	for _, c := range chans {
		for _, k := range corrs {
			out = append(out, cell[c*ncorr+k])
		}
	}

	return out
}

func pick[T any](v []T, idx []int) []T {
	if v == nil {
		return nil
	}

	out := make([]T, len(idx))
	for i, k := range idx {
		out[i] = v[k]
	}

	return out
}

func widen(v []float32) []complex64 {
	if v == nil {
		return nil
	}

	out := make([]complex64, len(v))
	for i, x := range v {
		out[i] = complex(x, 0)
	}

	return out
}
