package selection

import "fmt"

// Kind names the table or column a selection expression applies to.
type Kind int

const (
	KindField Kind = iota
	KindSpw
	KindScan
	KindAntenna
	KindCorrelation
	KindTime
	KindUVRange
	KindIntent
	KindObservation
	KindArray
	KindFeed
	KindFilter
)

var kindNames = [...]string{
	KindField:       "field",
	KindSpw:         "spw",
	KindScan:        "scan",
	KindAntenna:     "antenna",
	KindCorrelation: "correlation",
	KindTime:        "timerange",
	KindUVRange:     "uvrange",
	KindIntent:      "intent",
	KindObservation: "observation",
	KindArray:       "array",
	KindFeed:        "feed",
	KindFilter:      "taql",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// Criteria holds one expression per selection kind. Empty strings and "all"
// select everything.
type Criteria struct {
	Field       string
	Spw         string
	Scan        string
	Antenna     string
	Correlation string
	TimeRange   string
	UVRange     string
	Intent      string
	Observation string
	Array       string
	Feed        string
	Filter      string
}

// Expr returns the expression of kind k.
func (c Criteria) Expr(k Kind) string {
	switch k {
	case KindField:
		return c.Field
	case KindSpw:
		return c.Spw
	case KindScan:
		return c.Scan
	case KindAntenna:
		return c.Antenna
	case KindCorrelation:
		return c.Correlation
	case KindTime:
		return c.TimeRange
	case KindUVRange:
		return c.UVRange
	case KindIntent:
		return c.Intent
	case KindObservation:
		return c.Observation
	case KindArray:
		return c.Array
	case KindFeed:
		return c.Feed
	case KindFilter:
		return c.Filter
	default:
		return ""
	}
}

// Empty reports whether no criterion narrows the selection.
func (c Criteria) Empty() bool {
	for k := KindField; k <= KindFilter; k++ {
		if active(c.Expr(k)) {
			return false
		}
	}

	return true
}
