package pipeline

import (
	"math"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/core"
	"github.com/cwbudde/algo-mstransform/grid"
)

// Opacity supplies the zenith opacity of a window.
type Opacity interface {
	Tau(spw int) float64
}

// ZenithOpacity is a constant zenith opacity per window.
type ZenithOpacity map[int]float64

// Tau implements Opacity. Windows without an entry take the entry of
// window -1, or zero.
func (z ZenithOpacity) Tau(spw int) float64 {
	if tau, ok := z[spw]; ok {
		return tau
	}
	return z[-1]
}

// atmosphere scales visibilities by sqrt(exp(tau/sin el1) exp(tau/sin el2))
// and weights by the inverse square of that factor. Samples of antennas
// below the horizon are flagged.
type atmosphere struct {
	inner    Iterator
	opacity  Opacity
	antennas []archive.Antenna
	fields   []archive.Field
}

func (a *atmosphere) Columns() archive.ColumnSet {
	return a.inner.Columns()
}

func (a *atmosphere) Next() (*Buffer, error) {
	b, err := a.inner.Next()
	if err != nil {
		return nil, err
	}

	cols := b.visibilityColumns()
	for i := range b.Rows {
		r := &b.Rows[i]
		tau := a.opacity.Tau(b.Spw(r.DataDescID))
		if tau == 0 {
			continue
		}

		dir1, dir2 := a.direction(b, i, 0), a.direction(b, i, 1)
		el1 := elevation(a.antenna(r.Antenna1), dir1, r.Time)
		el2 := elevation(a.antenna(r.Antenna2), dir2, r.Time)
		if el1 <= 0 || el2 <= 0 {
			for j := range r.Flag {
				r.Flag[j] = true
			}
			r.FlagRow = true
			continue
		}

		f := math.Sqrt(math.Exp(tau/math.Sin(el1)) * math.Exp(tau/math.Sin(el2)))
		for _, c := range cols {
			cell := b.Cell(i, c)
			for j := range cell {
				cell[j] *= complex(float32(f), 0)
			}
		}

		w := float32(1 / (f * f))
		for k := range r.Weight {
			r.Weight[k] *= w
		}
		for k := range r.Sigma {
			r.Sigma[k] *= float32(f)
		}
		for j := range r.WeightSpectrum {
			r.WeightSpectrum[j] *= w
		}
	}

	return b, nil
}

func (a *atmosphere) antenna(id int) archive.Antenna {
	if id >= 0 && id < len(a.antennas) {
		return a.antennas[id]
	}

	return archive.Antenna{}
}

func (a *atmosphere) direction(b *Buffer, i, which int) archive.Direction {
	if i < len(b.Pointing) {
		return b.Pointing[i][which]
	}

	field := b.Rows[i].FieldID
	if field >= 0 && field < len(a.fields) {
		return a.fields[field].PhaseDir
	}

	return archive.Direction{}
}

// elevation returns the elevation in radians of an equatorial direction seen
// from antenna at time t (MJD seconds).
func elevation(ant archive.Antenna, dir archive.Direction, t float64) float64 {
	x, y, z := ant.Position[0], ant.Position[1], ant.Position[2]
	lat := math.Atan2(z, math.Hypot(x, y))
	lon := math.Atan2(y, x)

	ha := grid.LocalSiderealAngle(t, lon) - dir.Lon
	sinEl := math.Sin(lat)*math.Sin(dir.Lat) + math.Cos(lat)*math.Cos(dir.Lat)*math.Cos(ha)

	return math.Asin(core.Clamp(sinEl, -1, 1))
}
