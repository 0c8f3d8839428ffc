package selection

import (
	"slices"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
)

type baselineRule struct {
	a, b    []int // b nil: any partner
	cross   bool
	auto    bool
	exclude bool
}

// Baselines filters antenna pairs.
type Baselines struct {
	rules []baselineRule
}

// Accept reports whether the baseline a1-a2 is selected.
func (b *Baselines) Accept(a1, a2 int) bool {
	if b == nil {
		return true
	}

	included, positive := false, false
	for _, r := range b.rules {
		if r.exclude {
			if r.match(a1, a2) {
				return false
			}
			continue
		}
		positive = true
		if r.match(a1, a2) {
			included = true
		}
	}

	return included || !positive
}

func (r baselineRule) match(a1, a2 int) bool {
	if a1 == a2 {
		if !r.auto {
			return false
		}
	} else if !r.cross {
		return false
	}

	in := func(set []int, v int) bool { return slices.Contains(set, v) }
	if r.b == nil {
		return in(r.a, a1) || in(r.a, a2)
	}

	return (in(r.a, a1) && in(r.b, a2)) || (in(r.a, a2) && in(r.b, a1))
}

func parseBaselines(expr string, t *archive.Subtables) (*Parsed, error) {
	p := &Parsed{Baselines: &Baselines{}}
	universe := seq(len(t.Antennas))
	name := func(i int) string { return t.Antennas[i].Name }

	side := func(s string) ([]int, error) {
		var out []int
		for _, tok := range strings.Split(s, ";") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			ids, err := matchIDs(tok, universe, name)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
		return out, nil
	}

	for _, tok := range tokens(expr) {
		r := baselineRule{cross: true}
		body := tok
		if rest, ok := strings.CutPrefix(body, "!"); ok {
			r.exclude, body = true, rest
		}

		var lhs, rhs string
		hasRHS := false
		switch {
		case strings.Contains(body, "&&&"):
			lhs, rhs, _ = strings.Cut(body, "&&&")
			r.auto, r.cross = true, false
			hasRHS = strings.TrimSpace(rhs) != ""
		case strings.Contains(body, "&&"):
			lhs, rhs, _ = strings.Cut(body, "&&")
			r.auto = true
			hasRHS = strings.TrimSpace(rhs) != ""
		case strings.Contains(body, "&"):
			lhs, rhs, _ = strings.Cut(body, "&")
			hasRHS = true
		default:
			lhs = body
		}

		a, err := side(lhs)
		if err != nil {
			return nil, err
		}
		if len(a) == 0 {
			p.Unmatched = append(p.Unmatched, tok)
			continue
		}
		r.a = a

		if hasRHS {
			b, err := side(rhs)
			if err != nil {
				return nil, err
			}
			if len(b) == 0 {
				p.Unmatched = append(p.Unmatched, tok)
				continue
			}
			r.b = b
		}

		p.Baselines.rules = append(p.Baselines.rules, r)
		p.IDs = append(p.IDs, r.a...)
		p.IDs = append(p.IDs, r.b...)
	}

	slices.Sort(p.IDs)
	p.IDs = slices.Compact(p.IDs)
	return p, nil
}
