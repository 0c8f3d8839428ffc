package pipeline

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-mstransform/archive"
	"github.com/cwbudde/algo-mstransform/grid"
)

const arcsec = math.Pi / (180 * 3600)

// PhaseCenter names a new phase center: a field id, an explicit direction,
// or an offset in arcseconds from each row's field center.
type PhaseCenter struct {
	// Field is the id of the field whose phase center is used, or -1.
	Field     int
	Direction *archive.Direction
	DX, DY    float64
}

// phaseshift rotates visibilities to a new phase center:
// V' = V exp(-2 pi i f/c (u l + v m + w (n-1))).
type phaseshift struct {
	inner  Iterator
	center PhaseCenter
	fields []archive.Field
}

func newPhaseShift(inner Iterator, pc PhaseCenter, t *archive.Subtables) (*phaseshift, error) {
	if pc.Direction == nil && pc.Field >= len(t.Fields) {
		return nil, fmt.Errorf("%w: field %d of %d", ErrPhaseCenter, pc.Field, len(t.Fields))
	}

	return &phaseshift{inner: inner, center: pc, fields: t.Fields}, nil
}

func (p *phaseshift) Columns() archive.ColumnSet {
	return p.inner.Columns()
}

// offset returns the direction cosines of the new center relative to the
// phase center of field.
func (p *phaseshift) offset(field int) (l, m, n float64) {
	if p.center.Direction == nil && p.center.Field < 0 {
		l, m = p.center.DX*arcsec, p.center.DY*arcsec
		return l, m, math.Sqrt(math.Max(0, 1-l*l-m*m))
	}

	target := p.center.Direction
	if target == nil {
		target = &p.fields[p.center.Field].PhaseDir
	}

	var ref archive.Direction
	if field >= 0 && field < len(p.fields) {
		ref = p.fields[field].PhaseDir
	}

	return directionCosines(ref, *target)
}

// directionCosines returns (l, m, n) of dir in the tangent plane at ref.
func directionCosines(ref, dir archive.Direction) (l, m, n float64) {
	dra := dir.Lon - ref.Lon
	l = math.Cos(dir.Lat) * math.Sin(dra)
	m = math.Sin(dir.Lat)*math.Cos(ref.Lat) - math.Cos(dir.Lat)*math.Sin(ref.Lat)*math.Cos(dra)
	n = math.Sin(dir.Lat)*math.Sin(ref.Lat) + math.Cos(dir.Lat)*math.Cos(ref.Lat)*math.Cos(dra)

	return l, m, n
}

func (p *phaseshift) Next() (*Buffer, error) {
	b, err := p.inner.Next()
	if err != nil {
		return nil, err
	}

	cols := b.visibilityColumns()
	for i := range b.Rows {
		r := &b.Rows[i]
		l, m, n := p.offset(r.FieldID)
		delay := r.UVW[0]*l + r.UVW[1]*m + r.UVW[2]*(n-1)
		if delay == 0 {
			continue
		}

		freqs := b.Frequencies(r.DataDescID)
		_, ncorr := b.Shape(i)
		rot := make([]complex64, len(freqs))
		for ch, f := range freqs {
			rot[ch] = complex64(cmplx.Exp(complex(0, -2*math.Pi*f*delay/grid.SpeedOfLight)))
		}

		for _, c := range cols {
			cell := b.Cell(i, c)
			if c == archive.ColFloatData || len(cell) != len(rot)*ncorr {
				continue
			}
			for j := range cell {
				cell[j] *= rot[j/ncorr]
			}
		}
	}

	return b, nil
}
