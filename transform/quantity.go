package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-mstransform/archive"
)

type unit struct {
	suffix string
	scale  float64
}

// Longest suffixes first so that "km/s" is not read as "m/s".
var (
	frequencyUnits = []unit{{"ghz", 1e9}, {"mhz", 1e6}, {"khz", 1e3}, {"hz", 1}}
	velocityUnits  = []unit{{"km/s", 1e3}, {"m/s", 1}}
)

// parseQuantity parses a number with an optional unit suffix and returns it
// in base units (Hz or m/s). A bare number is taken as already in base units.
func parseQuantity(s string, units []unit) (float64, error) {
	t := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	scale := 1.0
	for _, u := range units {
		if strings.HasSuffix(t, u.suffix) {
			t, scale = strings.TrimSuffix(t, u.suffix), u.scale
			break
		}
	}

	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrQuantity, s)
	}

	return v * scale, nil
}

// parseDirection parses "[FRAME] LON LAT". Angles take an "h m s" or
// "hh:mm:ss" form (longitude), a "d m s" form, or a "deg"/"rad" suffix;
// bare numbers are radians. The frame defaults to J2000.
func parseDirection(s string) (archive.Direction, error) {
	f := strings.Fields(s)
	d := archive.Direction{Frame: "J2000"}

	switch len(f) {
	case 2:
	case 3:
		d.Frame, f = strings.ToUpper(f[0]), f[1:]
	default:
		return d, fmt.Errorf("%w: %q", ErrDirection, s)
	}

	lon, err := parseAngle(f[0], true)
	if err != nil {
		return d, err
	}
	lat, err := parseAngle(f[1], false)
	if err != nil {
		return d, err
	}
	if math.Abs(lat) > math.Pi/2 {
		return d, fmt.Errorf("%w: latitude %q out of range", ErrDirection, f[1])
	}

	d.Lon, d.Lat = lon, lat
	return d, nil
}

func parseAngle(s string, hours bool) (float64, error) {
	t := strings.ToLower(s)

	switch {
	case strings.HasSuffix(t, "rad"):
		return parseFloat(strings.TrimSuffix(t, "rad"), s)
	case strings.HasSuffix(t, "deg"):
		v, err := parseFloat(strings.TrimSuffix(t, "deg"), s)
		return v * math.Pi / 180, err
	case strings.Contains(t, "h"):
		v, err := sexagesimal(t, "h", "m", s)
		return v * math.Pi / 12, err
	case strings.Contains(t, "d"):
		v, err := sexagesimal(t, "d", "m", s)
		return v * math.Pi / 180, err
	case strings.Count(t, ":") == 2:
		v, err := sexagesimal(strings.Replace(strings.Replace(t, ":", "x", 1), ":", "y", 1), "x", "y", s)
		if hours {
			return v * math.Pi / 12, err
		}
		return v * math.Pi / 180, err
	default:
		return parseFloat(t, s)
	}
}

// sexagesimal parses "AAmajBBminCC" into A + B/60 + C/3600 with the sign of A.
func sexagesimal(t, major, minor, orig string) (float64, error) {
	a, rest, ok := strings.Cut(t, major)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrDirection, orig)
	}
	b, c, _ := strings.Cut(rest, minor)
	c = strings.TrimSuffix(c, "s")

	neg := strings.HasPrefix(a, "-")
	parts := []string{strings.TrimLeft(a, "+-"), b, c}
	scale := []float64{1, 1.0 / 60, 1.0 / 3600}

	var v float64
	for i, p := range parts {
		if p == "" {
			continue
		}
		x, err := parseFloat(p, orig)
		if err != nil {
			return 0, err
		}
		v += x * scale[i]
	}
	if neg {
		v = -v
	}

	return v, nil
}

func parseFloat(t, orig string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrDirection, orig)
	}

	return v, nil
}
