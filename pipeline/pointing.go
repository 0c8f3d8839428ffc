package pipeline

import (
	"slices"
	"sort"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/dsp/core"
	"github.com/cwbudde/algo-mstransform/dsp/interp"
)

// pointing attaches per-antenna pointing directions interpolated at the row
// time. Antennas without POINTING rows use the phase center of the row's field.
type pointing struct {
	inner  Iterator
	byAnt  map[int][]archive.Pointing
	fields []archive.Field
}

func newPointing(inner Iterator, t *archive.Subtables) *pointing {
	p := &pointing{inner: inner, byAnt: make(map[int][]archive.Pointing), fields: t.Fields}
	for _, row := range t.Pointings {
		p.byAnt[row.AntennaID] = append(p.byAnt[row.AntennaID], row)
	}
	for _, rows := range p.byAnt {
		slices.SortStableFunc(rows, func(a, b archive.Pointing) int { return cmpFloat(a.Time, b.Time) })
	}

	return p
}

func (p *pointing) Columns() archive.ColumnSet {
	return p.inner.Columns()
}

func (p *pointing) Next() (*Buffer, error) {
	b, err := p.inner.Next()
	if err != nil {
		return nil, err
	}

	b.Pointing = make([][2]archive.Direction, len(b.Rows))
	for i := range b.Rows {
		r := &b.Rows[i]
		b.Pointing[i] = [2]archive.Direction{
			p.direction(r.Antenna1, r.Time, r.FieldID),
			p.direction(r.Antenna2, r.Time, r.FieldID),
		}
	}

	return b, nil
}

// direction interpolates the pointing of antenna at t with a 4-point Hermite
// over the neighbouring samples.
func (p *pointing) direction(antenna int, t float64, field int) archive.Direction {
	rows := p.byAnt[antenna]
	if len(rows) == 0 {
		if field >= 0 && field < len(p.fields) {
			return p.fields[field].PhaseDir
		}
		return archive.Direction{}
	}

	n := len(rows)
	if t <= rows[0].Time {
		return rows[0].Direction
	}
	if t >= rows[n-1].Time {
		return rows[n-1].Direction
	}

	i := sort.Search(n, func(k int) bool { return rows[k].Time > t }) - 1
	span := rows[i+1].Time - rows[i].Time
	if span <= 0 {
		return rows[i].Direction
	}
	frac := (t - rows[i].Time) / span

	at := func(k int) archive.Direction {
		return rows[core.ClampInt(k, 0, n-1)].Direction
	}
	m1, p0, p1, p2 := at(i-1), at(i), at(i+1), at(i+2)

	return archive.Direction{
		Lon:   interp.Hermite4(frac, m1.Lon, p0.Lon, p1.Lon, p2.Lon),
		Lat:   interp.Hermite4(frac, m1.Lat, p0.Lat, p1.Lat, p2.Lat),
		Frame: p0.Frame,
	}
}
