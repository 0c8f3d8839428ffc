package grid

import (
	"io"
	"log/slog"
	"math"
	"slices"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/interp"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/selection"
)

const planOp = "grid.Plan"

// fineRatio is the output/input width ratio above which regridding goes
// through a FineGrid.
const fineRatio = 2.0

// Config selects the spectral operations to plan.
type Config struct {
	// ChanBin holds one bin width for all windows, or one per selected window
	// in ascending window order. Empty or 1 disables averaging.
	ChanBin []int
	Combine bool
	// Regrid is nil when the channel grid is kept.
	Regrid *RegridSpec
	// NSpw splits the (combined) output into this many windows when above 1.
	NSpw int
	// Anchor fixes the epoch at which regrid output grids are computed.
	Anchor Epoch
}

// Window is the spectral plan of one output window before splitting.
type Window struct {
	// Spws lists the contributing input windows, ascending.
	Spws []int
	// Selected holds the selected channel indices of each contributing window.
	Selected map[int][]int
	// Contributions lists, per channel of a combined grid, the input channels
	// (by position in Selected) that feed it. Nil unless combining.
	Contributions [][]Contribution
	// Bin is the channel-average width; 1 means no averaging.
	Bin int
	// Input is the grid after combination and averaging, in InFrame.
	Input   Grid
	InFrame archive.Frame
	// Regrid is nil when no regrid is planned; Output then equals Input.
	Regrid   *RegridSpec
	OutFrame archive.Frame
	Output   Grid
	// Fine is set when output channels are more than twice as wide as input
	// channels.
	Fine *FineGrid
	// WeightFactor scales WEIGHT, SigmaFactor scales SIGMA when spectra are not carried.
	WeightFactor float64
	SigmaFactor  float64

	template archive.SpectralWindow
}

// Combined reports whether the window merges several input windows.
func (w *Window) Combined() bool {
	return w.Contributions != nil
}

// Output is one output spectral window.
type Output struct {
	// Window indexes Plan.Windows.
	Window int
	// Start and NChan select the output channels of the window.
	Start int
	NChan int
	Spw   archive.SpectralWindow
}

// Plan is the spectral plan of a transformation. It is immutable once built.
type Plan struct {
	Windows []Window
	Outputs []Output

	converter FrameConverter
	byInput   map[int]int
}

// WindowOf returns the index of the window fed by input spw.
func (p *Plan) WindowOf(spw int) (int, bool) {
	w, ok := p.byInput[spw]
	return w, ok
}

// OutputsOf returns the output ids produced by window w, ascending.
func (p *Plan) OutputsOf(w int) []int {
	var out []int
	for i, o := range p.Outputs {
		if o.Window == w {
			out = append(out, i)
		}
	}

	return out
}

// Combined reports whether the plan merges input windows.
func (p *Plan) Combined() bool {
	return len(p.Windows) == 1 && p.Windows[0].Combined()
}

// Split reports whether a window is divided into several outputs.
func (p *Plan) Split() bool {
	return len(p.Outputs) > len(p.Windows)
}

// SpectralWindows returns the output window rows in output id order.
func (p *Plan) SpectralWindows() []archive.SpectralWindow {
	out := make([]archive.SpectralWindow, len(p.Outputs))
	for i, o := range p.Outputs {
		out[i] = o.Spw.Clone()
	}

	return out
}

// PerRowConversion reports whether frame conversion depends on the field of
// each row.
func (p *Plan) PerRowConversion() bool {
	for _, w := range p.Windows {
		if w.Regrid != nil && (w.OutFrame == archive.FrameSOURCE || w.InFrame == archive.FrameSOURCE) {
			return true
		}
	}

	return false
}

// InputGrid returns the input grid of window w converted to its output frame at epoch e.
func (p *Plan) InputGrid(w int, e Epoch) (Grid, error) {
	win := &p.Windows[w]
	if win.Regrid == nil || win.InFrame == win.OutFrame {
		return win.Input, nil
	}

	f, err := p.converter.Factor(win.InFrame, win.OutFrame, e)
	if err != nil {
		return Grid{}, fault.Wrap(fault.KindConfiguration, "grid.InputGrid", err, "frame %v to %v", win.InFrame, win.OutFrame)
	}

	return win.Input.Scaled(f), nil
}

// InputFrequencies returns the input channel frequencies of window w in its
// output frame at epoch e.
func (p *Plan) InputFrequencies(w int, e Epoch) ([]float64, error) {
	win := &p.Windows[w]
	if win.Regrid == nil || win.InFrame == win.OutFrame {
		return slices.Clone(win.Input.Freq), nil
	}

	f, err := p.converter.Factor(win.InFrame, win.OutFrame, e)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, "grid.InputFrequencies", err, "frame %v to %v", win.InFrame, win.OutFrame)
	}

	out := make([]float64, win.Input.Len())
	vecmath.ScaleBlock(out, win.Input.Freq, f)
	return out, nil
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger used for planning warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithFrameConverter replaces the frame converter.
func WithFrameConverter(c FrameConverter) Option {
	return func(p *Planner) {
		p.converter = c
	}
}

// Planner builds spectral plans.
type Planner struct {
	logger    *slog.Logger
	converter FrameConverter
}

// NewPlanner creates a planner. Without WithFrameConverter it uses a
// DopplerConverter built from the tables passed to Plan.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, o := range opts {
		o(p)
	}

	return p
}

// Plan computes the spectral plan of the selected windows.
func (p *Planner) Plan(res *selection.Resolution, t *archive.Subtables, cfg Config) (*Plan, error) {
	if len(res.Spws) == 0 {
		return nil, fault.Selection(planOp, "no spectral window selected")
	}

	conv := p.converter
	if conv == nil {
		conv = NewDopplerConverter(t)
	}

	bins, err := p.resolveBins(res, cfg.ChanBin)
	if err != nil {
		return nil, err
	}

	plan := &Plan{converter: conv, byInput: make(map[int]int)}

	combine := (cfg.Combine || cfg.NSpw > 1) && len(res.Spws) > 1
	if combine {
		w, err := p.combinedWindow(res, t)
		if err != nil {
			return nil, err
		}
		w.Bin = bins[res.Spws[0]]
		plan.Windows = append(plan.Windows, w)
	} else {
		for _, spw := range res.Spws {
			sel := res.ChannelIndices(spw)
			w := Window{
				Spws:     []int{spw},
				Selected: map[int][]int{spw: sel},
				Input:    FromWindow(t.SpectralWindows[spw], sel),
				InFrame:  t.SpectralWindows[spw].Frame,
				Bin:      bins[spw],
				template: t.SpectralWindows[spw],
			}
			plan.Windows = append(plan.Windows, w)
		}
	}

	for i := range plan.Windows {
		w := &plan.Windows[i]
		for _, spw := range w.Spws {
			plan.byInput[spw] = i
		}

		if err := p.planWindow(w, t, cfg, conv); err != nil {
			return nil, err
		}
	}

	if err := p.split(plan, cfg.NSpw); err != nil {
		return nil, err
	}

	return plan, nil
}

func (p *Planner) resolveBins(res *selection.Resolution, chanbin []int) (map[int]int, error) {
	bins := make(map[int]int, len(res.Spws))
	switch {
	case len(chanbin) == 0:
		for _, spw := range res.Spws {
			bins[spw] = 1
		}
	case len(chanbin) == 1:
		for _, spw := range res.Spws {
			bins[spw] = chanbin[0]
		}
	case len(chanbin) == len(res.Spws):
		for i, spw := range res.Spws {
			bins[spw] = chanbin[i]
		}
	default:
		return nil, fault.Configuration(planOp, "chanbin has %d entries for %d selected windows", len(chanbin), len(res.Spws))
	}

	for spw, b := range bins {
		nsel := res.SelectedChannels(spw)
		switch {
		case b < 1:
			bins[spw] = 1
		case b > nsel:
			p.logger.Warn("channel bin exceeds selected channels; clamping", "spw", spw, "bin", b, "channels", nsel)
			bins[spw] = nsel
		}
	}

	return bins, nil
}

// combinedWindow flattens the selected channels of all windows into one
// frequency-sorted grid. Channels overlapping an already accepted channel are
// not repeated; they still contribute through the overlap table.
func (p *Planner) combinedWindow(res *selection.Resolution, t *archive.Subtables) (Window, error) {
	nchan := res.SelectedChannels(res.Spws[0])
	frame := t.SpectralWindows[res.Spws[0]].Frame
	for _, spw := range res.Spws[1:] {
		if n := res.SelectedChannels(spw); n != nchan {
			return Window{}, fault.Structural(planOp,
				"cannot combine windows with different channel counts: spw %d has %d, spw %d has %d",
				res.Spws[0], nchan, spw, n)
		}
		if f := t.SpectralWindows[spw].Frame; f != frame {
			return Window{}, fault.Structural(planOp, "cannot combine windows in frames %v and %v", frame, f)
		}
	}

	type tagged struct {
		spw int
		pos int
		ch  archive.Channel
	}

	w := Window{
		Spws:     slices.Clone(res.Spws),
		Selected: make(map[int][]int),
		InFrame:  frame,
		template: t.SpectralWindows[res.Spws[0]],
	}

	var all []tagged
	grids := make(map[int]Grid)
	for _, spw := range res.Spws {
		sel := res.ChannelIndices(spw)
		w.Selected[spw] = sel
		grids[spw] = FromWindow(t.SpectralWindows[spw], sel)
		for pos, c := range sel {
			all = append(all, tagged{spw: spw, pos: pos, ch: t.SpectralWindows[spw].Channel(c)})
		}
	}

	slices.SortStableFunc(all, func(a, b tagged) int {
		switch {
		case a.ch.Freq < b.ch.Freq:
			return -1
		case a.ch.Freq > b.ch.Freq:
			return 1
		default:
			return 0
		}
	})

	var combined Grid
	lastUpper := math.Inf(-1)
	for _, c := range all {
		lo, hi := c.ch.Lower(), c.ch.Upper()
		if lo < lastUpper-1e-6*math.Abs(c.ch.Width) {
			continue
		}

		width := math.Abs(c.ch.Width)
		combined.Freq = append(combined.Freq, c.ch.Freq)
		combined.Width = append(combined.Width, width)
		combined.EffectiveBW = append(combined.EffectiveBW, orDefault(c.ch.EffectiveBW, width))
		combined.Resolution = append(combined.Resolution, orDefault(c.ch.Resolution, width))
		lastUpper = hi
	}

	lists := make([][][]Contribution, 0, len(res.Spws))
	for _, spw := range res.Spws {
		lists = append(lists, Overlap(grids[spw], spw, combined))
	}

	w.Contributions = Merge(lists...)
	w.Input = combined
	return w, nil
}

func (p *Planner) planWindow(w *Window, t *archive.Subtables, cfg Config, conv FrameConverter) error {
	base := w.Input.Len()

	avg, dropped := w.Input.Average(w.Bin)
	if dropped > 0 {
		p.logger.Warn("channel bin does not fill the last output channel; dropping it",
			"spw", w.Spws[0], "bin", w.Bin, "dropped", dropped)
	}
	if avg.Len() == 0 {
		return fault.Numerical(planOp, "spw %d: bin %d leaves no output channel", w.Spws[0], w.Bin)
	}
	w.Input = avg
	w.OutFrame = w.InFrame
	w.Output = avg

	if cfg.Regrid != nil {
		spec := *cfg.Regrid
		if spec.OutFrame != archive.FrameUndefined {
			w.OutFrame = spec.OutFrame
		}
		if spec.Mode == ModeVelocity && spec.RestFreq <= 0 {
			spec.RestFreq = p.restFrequency(t, w)
		}

		e := cfg.Anchor
		f, err := conv.Factor(w.InFrame, w.OutFrame, e)
		if err != nil {
			return fault.Wrap(fault.KindConfiguration, planOp, err, "spw %d: frame %v to %v", w.Spws[0], w.InFrame, w.OutFrame)
		}

		out, err := outputGrid(w.Input.Scaled(f), spec)
		if err != nil {
			return fault.Wrap(fault.KindConfiguration, planOp, err, "spw %d: %v regrid", w.Spws[0], spec.Mode)
		}

		if spec.Interpolation == interp.FFTShift && out.Len() != w.Input.Len() {
			return fault.Configuration(planOp, "spw %d: fftshift needs %d output channels, got %d", w.Spws[0], w.Input.Len(), out.Len())
		}

		if r := widthRatio(w.Input, out); r > fineRatio {
			w.Fine = &FineGrid{Sub: int(math.Round(r))}
		}

		w.Regrid = &spec
		w.Output = out
	}

	w.WeightFactor = float64(base) / float64(w.Output.Len())
	w.SigmaFactor = 1 / math.Sqrt(w.WeightFactor)
	return nil
}

// restFrequency falls back to the SOURCE table, then to the window centre.
func (p *Planner) restFrequency(t *archive.Subtables, w *Window) float64 {
	for _, s := range t.Sources {
		if (s.SpwID == -1 || slices.Contains(w.Spws, s.SpwID)) && len(s.RestFrequency) > 0 && s.RestFrequency[0] > 0 {
			return s.RestFrequency[0]
		}
	}

	lo, hi := w.Input.Span()
	rest := 0.5 * (lo + hi)
	p.logger.Warn("no rest frequency given or found; using window centre", "spw", w.Spws[0], "restfreq", rest)
	return rest
}

func (p *Planner) split(plan *Plan, nspw int) error {
	for i := range plan.Windows {
		w := &plan.Windows[i]
		n := w.Output.Len()
		if nspw <= 1 {
			plan.Outputs = append(plan.Outputs, Output{Window: i, NChan: n, Spw: w.Output.Window(w.template, w.OutFrame)})
			continue
		}

		per := n / nspw
		if per == 0 {
			return fault.Configuration(planOp, "cannot split %d channels into %d windows", n, nspw)
		}

		for s := range nspw {
			start := s * per
			count := per
			if s == nspw-1 {
				count = n - start
			}
			g := w.Output.Slice(start, start+count)
			plan.Outputs = append(plan.Outputs, Output{Window: i, Start: start, NChan: count, Spw: g.Window(w.template, w.OutFrame)})
		}
	}

	return nil
}

// AnchorEpoch builds the epoch at which output grids are computed: the first
// selected row's time, the phase centre of the first selected field and the
// first antenna position.
func AnchorEpoch(t *archive.Subtables, res *selection.Resolution, keys []archive.RowKey) Epoch {
	var e Epoch
	for _, k := range keys {
		if res.Filter.Accept(k) {
			e.Time = k.Time
			e.FieldID = k.FieldID
			break
		}
	}

	if e.FieldID >= 0 && e.FieldID < len(t.Fields) {
		e.Direction = t.Fields[e.FieldID].PhaseDir
	}
	if len(t.Antennas) > 0 {
		e.Position = t.Antennas[0].Position
	}

	return e
}
