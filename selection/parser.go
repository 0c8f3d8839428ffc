package selection

import (
	"fmt"
	"math"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
)

// Metadata is what a parser may resolve expressions against.
type Metadata struct {
	Tables *archive.Subtables
	// Scans, Arrays and Feeds are the distinct values found in the main table.
	Scans  []int
	Arrays []int
	Feeds  []int
}

// Parsed is the outcome of one expression. Only the fields matching the
// expression kind are set.
type Parsed struct {
	// IDs lists matched ids, ascending and duplicate-free.
	IDs []int
	// Channels holds channel sub-ranges per matched spectral window
	// (spw expressions only). A window without sub-ranges is fully selected.
	Channels map[int][]ChannelRange
	// Correlations lists the matched correlation types.
	Correlations []archive.Stokes
	// Baselines filters antenna pairs.
	Baselines *Baselines
	// Ranges are inclusive value ranges (time in seconds, uv distance in metres).
	Ranges [][2]float64
	// Predicate filters rows by key (generic filters).
	Predicate func(archive.RowKey) bool
	// Unmatched lists tokens that matched nothing.
	Unmatched []string
}

// Parser turns one selection expression into ids, ranges or a predicate.
type Parser interface {
	Parse(kind Kind, expr string, md *Metadata) (*Parsed, error)
}

// ExprParser is the default selection grammar.
//
// Id lists are comma separated. Each token is an id, a range "a~b", an open
// bound "<a" / ">a", a glob on the table's name column, or "*". Spectral
// window tokens take channel ranges after a colon: "0:4~10;20~30^2".
// Antenna tokens select baselines: "a" (cross), "a&b", "a&&" (with autos),
// "a&&&" (autos only), "!a" (exclude). Time ranges accept seconds or
// "YYYY/MM/DD/hh:mm:ss"; uv ranges accept an "m" or "km" suffix. Filters are
// conjunctions "COLUMN op VALUE && ...".
type ExprParser struct{}

var _ Parser = ExprParser{}

// Parse implements Parser.
func (ExprParser) Parse(kind Kind, expr string, md *Metadata) (*Parsed, error) {
	t := md.Tables
	if t == nil {
		t = &archive.Subtables{}
	}

	switch kind {
	case KindField:
		return parseIDs(expr, seq(len(t.Fields)), func(i int) string { return t.Fields[i].Name })
	case KindSpw:
		return parseSpw(expr, t)
	case KindScan:
		return parseIDs(expr, md.Scans, nil)
	case KindObservation:
		return parseIDs(expr, seq(len(t.Observations)), func(i int) string { return t.Observations[i].Project })
	case KindArray:
		return parseIDs(expr, md.Arrays, nil)
	case KindFeed:
		return parseIDs(expr, md.Feeds, nil)
	case KindIntent:
		return parseIntent(expr, t)
	case KindCorrelation:
		return parseCorrelations(expr)
	case KindAntenna:
		return parseBaselines(expr, t)
	case KindTime:
		return parseRanges(expr, parseTime)
	case KindUVRange:
		return parseRanges(expr, parseDistance)
	case KindFilter:
		return parseFilter(expr)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}

	return out
}

func tokens(expr string) []string {
	var out []string
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}

	return out
}

// matchIDs resolves one id token against universe. name may be nil when the
// ids have no name column.
func matchIDs(tok string, universe []int, name func(int) string) ([]int, error) {
	if tok == "*" {
		return slices.Clone(universe), nil
	}

	if lo, hi, ok := strings.Cut(tok, "~"); ok {
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			return nil, fmt.Errorf("%w: range %q", ErrSyntax, tok)
		}
		return filterIDs(universe, func(id int) bool { return id >= a && id <= b }), nil
	}

	for _, op := range []string{"<=", ">=", "<", ">"} {
		rest, ok := strings.CutPrefix(tok, op)
		if !ok {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("%w: bound %q", ErrSyntax, tok)
		}
		return filterIDs(universe, func(id int) bool { return compareInt(id, op, v) }), nil
	}

	if v, err := strconv.Atoi(tok); err == nil {
		return filterIDs(universe, func(id int) bool { return id == v }), nil
	}

	if name == nil {
		return nil, fmt.Errorf("%w: %q is not an id", ErrSyntax, tok)
	}

	return filterIDs(universe, func(id int) bool {
		ok, err := path.Match(tok, name(id))
		return err == nil && ok
	}), nil
}

func compareInt(a int, op string, b int) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}

func filterIDs(universe []int, keep func(int) bool) []int {
	var out []int
	for _, id := range universe {
		if keep(id) {
			out = append(out, id)
		}
	}

	return out
}

func parseIDs(expr string, universe []int, name func(int) string) (*Parsed, error) {
	p := &Parsed{}
	for _, tok := range tokens(expr) {
		ids, err := matchIDs(tok, universe, name)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			p.Unmatched = append(p.Unmatched, tok)
			continue
		}
		p.IDs = append(p.IDs, ids...)
	}

	slices.Sort(p.IDs)
	p.IDs = slices.Compact(p.IDs)
	return p, nil
}

func parseSpw(expr string, t *archive.Subtables) (*Parsed, error) {
	p := &Parsed{Channels: make(map[int][]ChannelRange)}
	name := func(i int) string { return t.SpectralWindows[i].Name }
	universe := seq(len(t.SpectralWindows))

	for _, tok := range tokens(expr) {
		spwTok, chanTok, hasChan := strings.Cut(tok, ":")
		ids, err := matchIDs(strings.TrimSpace(spwTok), universe, name)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			p.Unmatched = append(p.Unmatched, tok)
			continue
		}

		for _, id := range ids {
			p.IDs = append(p.IDs, id)
			nchan := t.SpectralWindows[id].NumChan()
			if !hasChan {
				p.Channels[id] = append(p.Channels[id], ChannelRange{Start: 0, Stop: nchan - 1, Step: 1})
				continue
			}

			ranges, err := parseChannelRanges(chanTok, nchan)
			if err != nil {
				return nil, err
			}
			if len(ranges) == 0 {
				p.Unmatched = append(p.Unmatched, tok)
				continue
			}
			p.Channels[id] = append(p.Channels[id], ranges...)
		}
	}

	slices.Sort(p.IDs)
	p.IDs = slices.Compact(p.IDs)
	for id, r := range p.Channels {
		p.Channels[id] = MergeRanges(r)
	}

	return p, nil
}

// parseChannelRanges parses "a~b^s;c;*" and clips to [0, nchan).
func parseChannelRanges(expr string, nchan int) ([]ChannelRange, error) {
	var out []ChannelRange
	for _, tok := range strings.Split(expr, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		step := 1
		if body, s, ok := strings.Cut(tok, "^"); ok {
			v, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || v < 1 {
				return nil, fmt.Errorf("%w: channel step %q", ErrSyntax, tok)
			}
			step, tok = v, strings.TrimSpace(body)
		}

		var r ChannelRange
		switch {
		case tok == "*":
			r = ChannelRange{Start: 0, Stop: nchan - 1}
		case strings.Contains(tok, "~"):
			lo, hi, _ := strings.Cut(tok, "~")
			a, errA := strconv.Atoi(strings.TrimSpace(lo))
			b, errB := strconv.Atoi(strings.TrimSpace(hi))
			if errA != nil || errB != nil {
				return nil, fmt.Errorf("%w: channel range %q", ErrSyntax, tok)
			}
			r = ChannelRange{Start: a, Stop: b}
		default:
			a, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("%w: channel %q", ErrSyntax, tok)
			}
			r = ChannelRange{Start: a, Stop: a}
		}

		r.Step = step
		r.Start = max(r.Start, 0)
		r.Stop = min(r.Stop, nchan-1)
		if r.Stop >= r.Start {
			out = append(out, r)
		}
	}

	return out, nil
}

func parseIntent(expr string, t *archive.Subtables) (*Parsed, error) {
	p := &Parsed{}
	for _, tok := range tokens(expr) {
		pattern := tok
		if !strings.ContainsAny(pattern, "*?[") {
			pattern = "*" + pattern + "*"
		}

		matched := false
		for i, s := range t.States {
			if ok, err := path.Match(pattern, s.ObsMode); err == nil && ok {
				p.IDs = append(p.IDs, i)
				matched = true
			}
		}
		if !matched {
			p.Unmatched = append(p.Unmatched, tok)
		}
	}

	slices.Sort(p.IDs)
	p.IDs = slices.Compact(p.IDs)
	return p, nil
}

func parseCorrelations(expr string) (*Parsed, error) {
	p := &Parsed{}
	fields := strings.FieldsFunc(expr, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	for _, tok := range fields {
		s, err := archive.ParseStokes(tok)
		if err != nil {
			p.Unmatched = append(p.Unmatched, tok)
			continue
		}
		if !slices.Contains(p.Correlations, s) {
			p.Correlations = append(p.Correlations, s)
		}
	}

	return p, nil
}

func parseRanges(expr string, value func(string) (float64, error)) (*Parsed, error) {
	p := &Parsed{}
	for _, tok := range tokens(expr) {
		var lo, hi float64
		var err error

		switch {
		case strings.HasPrefix(tok, "<"):
			lo = math.Inf(-1)
			hi, err = value(strings.TrimLeft(tok, "<="))
		case strings.HasPrefix(tok, ">"):
			hi = math.Inf(1)
			lo, err = value(strings.TrimLeft(tok, ">="))
		case strings.Contains(tok, "~"):
			a, b, _ := strings.Cut(tok, "~")
			lo, err = value(a)
			if err == nil {
				hi, err = value(b)
			}
		default:
			lo, err = value(tok)
			hi = lo
		}

		if err != nil {
			return nil, err
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		p.Ranges = append(p.Ranges, [2]float64{lo, hi})
	}

	return p, nil
}

// parseDistance parses a uv distance in metres; "km" and "m" suffixes are accepted.
func parseDistance(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	scale := 1.0
	switch {
	case strings.HasSuffix(s, "km"):
		scale, s = 1000, strings.TrimSuffix(s, "km")
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSuffix(s, "m")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: uv distance %q", ErrSyntax, s)
	}

	return v * scale, nil
}
