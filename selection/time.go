package selection

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// mjdEpoch is the zero of the archive time column (MJD seconds).
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

var timeLayouts = []string{
	"2006/01/02/15:04:05.999999999",
	"2006/01/02/15:04:05",
	"2006/01/02/15:04",
	"2006/01/02",
}

// parseTime parses MJD seconds or a calendar date into MJD seconds.
func parseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return MJDSeconds(t), nil
		}
	}

	return 0, fmt.Errorf("%w: time %q", ErrSyntax, s)
}

// MJDSeconds converts t to seconds since the MJD epoch.
func MJDSeconds(t time.Time) float64 {
	return t.Sub(mjdEpoch).Seconds()
}
