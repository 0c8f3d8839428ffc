package transform

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/interp"
	"github.com/cwbudde/algo-mstransform/fault"
	"github.com/cwbudde/algo-mstransform/grid"
	"github.com/cwbudde/algo-mstransform/pipeline"
	"github.com/cwbudde/algo-mstransform/selection"
)

const optionsOp = "transform.ParseOptions"

// Options is the parsed option map.
type Options struct {
	Vis       string
	OutputVis string
	// DataColumn is the datacolumn value; see writer.ResolveColumns.
	DataColumn string
	Selection  selection.Criteria
	Reindex    bool
	DDIStart   int

	ChanAverage bool
	ChanBin     []int
	CombineSpws bool
	RegridMS    bool
	Regrid      grid.RegridSpec
	NSpw        int
	Hanning     bool

	TimeAverage    bool
	TimeBin        float64
	TimeSpan       []archive.SortColumn
	MaxUVWDistance float64

	PhaseCenter *pipeline.PhaseCenter

	// CalLib is a gain-table file; CalRecord an inline gain table.
	CalLib    string
	CalRecord map[string]any

	ContSub  bool
	FitOrder int
	// FitSpw selects the line-free channels of the continuum fit.
	FitSpw string

	PolAverage     bool
	PolAverageMode pipeline.PolAverageMode
	Pointing       bool
	AtmCor         bool
	// Opacity is the zenith opacity per input window.
	Opacity map[int]float64

	BufferMode     bool
	WeightSpectrum bool

	// Unknown lists unrecognized keys, sorted.
	Unknown []string
}

// DefaultOptions returns the options of an empty map.
func DefaultOptions() Options {
	return Options{
		DataColumn: "CORRECTED",
		Reindex:    true,
		Regrid:     grid.DefaultRegrid(),
		NSpw:       1,
	}
}

type setter func(o *Options, v any) error

func stringOpt(field func(*Options) *string) setter {
	return func(o *Options, v any) error {
		s, err := cast.ToStringE(v)
		if err != nil {
			return err
		}
		*field(o) = strings.TrimSpace(s)
		return nil
	}
}

func boolOpt(field func(*Options) *bool) setter {
	return func(o *Options, v any) error {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return err
		}
		*field(o) = b
		return nil
	}
}

func intOpt(field func(*Options) *int) setter {
	return func(o *Options, v any) error {
		n, err := cast.ToIntE(v)
		if err != nil {
			return err
		}
		*field(o) = n
		return nil
	}
}

func floatOpt(field func(*Options) *float64) setter {
	return func(o *Options, v any) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		*field(o) = f
		return nil
	}
}

func quantityOpt(field func(*Options) *float64, units []unit) setter {
	return func(o *Options, v any) error {
		if s, ok := v.(string); ok {
			q, err := parseQuantity(s, units)
			if err != nil {
				return err
			}
			*field(o) = q
			return nil
		}
		return floatOpt(field)(o, v)
	}
}

func selectOpt(field func(*selection.Criteria) *string) setter {
	return stringOpt(func(o *Options) *string { return field(&o.Selection) })
}

// timeUnits accepts the usual suffixes of timebin values.
var timeUnits = []unit{{"min", 60}, {"h", 3600}, {"s", 1}}

var setters = map[string]setter{
	"vis":        stringOpt(func(o *Options) *string { return &o.Vis }),
	"outputvis":  stringOpt(func(o *Options) *string { return &o.OutputVis }),
	"datacolumn": stringOpt(func(o *Options) *string { return &o.DataColumn }),

	"field":       selectOpt(func(c *selection.Criteria) *string { return &c.Field }),
	"spw":         selectOpt(func(c *selection.Criteria) *string { return &c.Spw }),
	"scan":        selectOpt(func(c *selection.Criteria) *string { return &c.Scan }),
	"antenna":     selectOpt(func(c *selection.Criteria) *string { return &c.Antenna }),
	"correlation": selectOpt(func(c *selection.Criteria) *string { return &c.Correlation }),
	"timerange":   selectOpt(func(c *selection.Criteria) *string { return &c.TimeRange }),
	"uvrange":     selectOpt(func(c *selection.Criteria) *string { return &c.UVRange }),
	"intent":      selectOpt(func(c *selection.Criteria) *string { return &c.Intent }),
	"observation": selectOpt(func(c *selection.Criteria) *string { return &c.Observation }),
	"array":       selectOpt(func(c *selection.Criteria) *string { return &c.Array }),
	"feed":        selectOpt(func(c *selection.Criteria) *string { return &c.Feed }),
	"taql":        selectOpt(func(c *selection.Criteria) *string { return &c.Filter }),

	"reindex":  boolOpt(func(o *Options) *bool { return &o.Reindex }),
	"ddistart": intOpt(func(o *Options) *int { return &o.DDIStart }),

	"chanaverage": boolOpt(func(o *Options) *bool { return &o.ChanAverage }),
	"chanbin":     setChanBin,
	"combinespws": boolOpt(func(o *Options) *bool { return &o.CombineSpws }),
	"nspw":        intOpt(func(o *Options) *int { return &o.NSpw }),
	"hanning":     boolOpt(func(o *Options) *bool { return &o.Hanning }),

	"regridms":      boolOpt(func(o *Options) *bool { return &o.RegridMS }),
	"mode":          setMode,
	"start":         setStart,
	"width":         setWidth,
	"nchan":         intOpt(func(o *Options) *int { return &o.Regrid.NChan }),
	"restfreq":      quantityOpt(func(o *Options) *float64 { return &o.Regrid.RestFreq }, frequencyUnits),
	"outframe":      setOutFrame,
	"interpolation": setInterpolation,
	"veltype":       setVelType,

	"timeaverage":    boolOpt(func(o *Options) *bool { return &o.TimeAverage }),
	"timebin":        quantityOpt(func(o *Options) *float64 { return &o.TimeBin }, timeUnits),
	"timespan":       setTimeSpan,
	"maxuvwdistance": quantityOpt(func(o *Options) *float64 { return &o.MaxUVWDistance }, []unit{{"km", 1e3}, {"m", 1}}),

	"phasecenter": setPhaseCenter,
	"dx":          setPhaseOffset(func(p *pipeline.PhaseCenter) *float64 { return &p.DX }),
	"dy":          setPhaseOffset(func(p *pipeline.PhaseCenter) *float64 { return &p.DY }),

	"callib": setCalLib,

	"douvcontsub": boolOpt(func(o *Options) *bool { return &o.ContSub }),
	"fitorder":    intOpt(func(o *Options) *int { return &o.FitOrder }),
	"fitspw":      stringOpt(func(o *Options) *string { return &o.FitSpw }),

	"polaverage":             boolOpt(func(o *Options) *bool { return &o.PolAverage }),
	"polaveragemode":         setPolMode,
	"pointingsinterpolation": boolOpt(func(o *Options) *bool { return &o.Pointing }),
	"atmcor":                 boolOpt(func(o *Options) *bool { return &o.AtmCor }),
	"opacity":                setOpacity,

	"buffermode":    boolOpt(func(o *Options) *bool { return &o.BufferMode }),
	"usewtspectrum": boolOpt(func(o *Options) *bool { return &o.WeightSpectrum }),
}

// Keys returns the recognized option keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// ParseOptions parses a flat option map. Keys are case-insensitive;
// unknown keys are collected in Options.Unknown. Nil values keep defaults.
func ParseOptions(m map[string]any) (Options, error) {
	o := DefaultOptions()

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		name := strings.ToLower(strings.TrimSpace(k))
		set, ok := setters[name]
		if !ok {
			o.Unknown = append(o.Unknown, k)
			continue
		}
		if v == nil {
			continue
		}
		if err := set(&o, v); err != nil {
			return Options{}, fault.Wrap(fault.KindConfiguration, optionsOp, err, "option %s=%v", name, v)
		}
	}

	if o.NSpw < 1 {
		return Options{}, fault.Configuration(optionsOp, "nspw must be positive, got %d", o.NSpw)
	}
	if o.TimeAverage && o.TimeBin <= 0 {
		return Options{}, fault.Wrap(fault.KindConfiguration, optionsOp, pipeline.ErrTimeBin, "timebin %v", o.TimeBin)
	}
	if o.ContSub && o.FitOrder < 0 {
		return Options{}, fault.Configuration(optionsOp, "fitorder must not be negative, got %d", o.FitOrder)
	}

	return o, nil
}

// intList accepts a scalar, a slice or a comma-separated string.
func intList(v any) ([]int, error) {
	if s, ok := v.(string); ok {
		var out []int
		for _, tok := range strings.Split(s, ",") {
			if tok = strings.TrimSpace(tok); tok == "" {
				continue
			}
			n, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrOptionType, s)
			}
			out = append(out, n)
		}
		return out, nil
	}

	if n, err := cast.ToIntE(v); err == nil {
		return []int{n}, nil
	}

	return cast.ToIntSliceE(v)
}

func setChanBin(o *Options, v any) error {
	bins, err := intList(v)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(bins, func(b int) bool { return b < 1 }) {
		return fmt.Errorf("%w: chanbin %v", ErrOptionType, bins)
	}
	o.ChanBin = bins

	return nil
}

func setMode(o *Options, v any) error {
	m, err := grid.ParseMode(cast.ToString(v))
	if err != nil {
		return err
	}
	o.Regrid.Mode = m

	return nil
}

// regridValue parses a start or width value. Strings may carry a frequency
// or velocity unit; an empty string selects the default.
func regridValue(v any) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return cast.ToFloat64E(v)
	}
	if strings.TrimSpace(s) == "" {
		return math.NaN(), nil
	}

	t := strings.ToLower(s)
	if strings.HasSuffix(t, "/s") {
		return parseQuantity(s, velocityUnits)
	}

	return parseQuantity(s, frequencyUnits)
}

func setStart(o *Options, v any) error {
	f, err := regridValue(v)
	if err != nil {
		return err
	}
	o.Regrid.Start = f

	return nil
}

func setWidth(o *Options, v any) error {
	f, err := regridValue(v)
	if err != nil {
		return err
	}
	if math.IsNaN(f) {
		f = 0
	}
	o.Regrid.Width = f

	return nil
}

func setOutFrame(o *Options, v any) error {
	s := cast.ToString(v)
	if strings.TrimSpace(s) == "" {
		o.Regrid.OutFrame = archive.FrameUndefined
		return nil
	}

	f, err := archive.ParseFrame(s)
	if err != nil {
		return err
	}
	o.Regrid.OutFrame = f

	return nil
}

func setInterpolation(o *Options, v any) error {
	m, err := interp.ParseMethod(cast.ToString(v))
	if err != nil {
		return err
	}
	o.Regrid.Interpolation = m

	return nil
}

func setVelType(o *Options, v any) error {
	t, err := grid.ParseVelocityType(cast.ToString(v))
	if err != nil {
		return err
	}
	o.Regrid.VelType = t

	return nil
}

func setTimeSpan(o *Options, v any) error {
	var s string
	if list, err := cast.ToStringSliceE(v); err == nil && !isString(v) {
		s = strings.Join(list, ",")
	} else {
		s = cast.ToString(v)
	}
	if strings.TrimSpace(s) == "" {
		o.TimeSpan = nil
		return nil
	}

	span, err := pipeline.ParseTimeSpan(s)
	if err != nil {
		return err
	}
	o.TimeSpan = span

	return nil
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func phaseCenter(o *Options) *pipeline.PhaseCenter {
	if o.PhaseCenter == nil {
		o.PhaseCenter = &pipeline.PhaseCenter{Field: -1}
	}
	return o.PhaseCenter
}

// setPhaseCenter accepts a field id or a direction string.
func setPhaseCenter(o *Options, v any) error {
	s, isStr := v.(string)
	if isStr && strings.TrimSpace(s) == "" {
		return nil
	}
	if !isStr || isInteger(s) {
		id, err := cast.ToIntE(v)
		if err != nil {
			return err
		}
		phaseCenter(o).Field = id
		return nil
	}

	d, err := parseDirection(s)
	if err != nil {
		return err
	}
	phaseCenter(o).Direction = &d

	return nil
}

func isInteger(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}

// setPhaseOffset sets a tangent-plane offset in arcseconds.
func setPhaseOffset(field func(*pipeline.PhaseCenter) *float64) setter {
	return func(o *Options, v any) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		if f != 0 {
			*field(phaseCenter(o)) = f
		}
		return nil
	}
}

// setCalLib accepts a gain-table path or an inline record.
func setCalLib(o *Options, v any) error {
	if s, ok := v.(string); ok {
		o.CalLib = strings.TrimSpace(s)
		return nil
	}

	rec, err := cast.ToStringMapE(v)
	if err != nil {
		return err
	}
	o.CalRecord = rec

	return nil
}

func setPolMode(o *Options, v any) error {
	m, err := pipeline.ParsePolAverageMode(cast.ToString(v))
	if err != nil {
		return err
	}
	o.PolAverageMode = m

	return nil
}

// setOpacity accepts one value for all windows, a list indexed by window or
// a map keyed by window id.
func setOpacity(o *Options, v any) error {
	o.Opacity = make(map[int]float64)

	if m, err := cast.ToStringMapE(v); err == nil {
		for k, x := range m {
			spw, err := strconv.Atoi(k)
			if err != nil {
				return fmt.Errorf("%w: opacity window %q", ErrOptionType, k)
			}
			tau, err := cast.ToFloat64E(x)
			if err != nil {
				return err
			}
			o.Opacity[spw] = tau
		}
		return nil
	}

	if tau, err := cast.ToFloat64E(v); err == nil {
		o.Opacity[allWindows] = tau
		return nil
	}

	list, err := cast.ToSliceE(v)
	if err != nil {
		if f, ok := v.([]float64); ok {
			for spw, tau := range f {
				o.Opacity[spw] = tau
			}
			return nil
		}
		return err
	}
	for spw, x := range list {
		tau, err := cast.ToFloat64E(x)
		if err != nil {
			return err
		}
		o.Opacity[spw] = tau
	}

	return nil
}

// allWindows keys an opacity that applies to every window.
const allWindows = -1
