package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/BurntSushi/toml"

	"github.com/cwbudde/algo-mstransform/archive"
)

// Calibrator supplies the complex gain of one antenna receptor.
type Calibrator interface {
	// Gain returns the gain of antenna's receptor in window spw at time t,
	// or false when the calibrator has no solution for it.
	Gain(antenna, spw, receptor int, t float64) (complex128, bool)
	// Covers reports whether any solution applies to window spw.
	Covers(spw int) bool
}

// Gain is one gain-table solution. Spw and Receptor -1 apply to all.
type Gain struct {
	Antenna  int     `toml:"antenna"`
	Spw      int     `toml:"spw"`
	Receptor int     `toml:"receptor"`
	Amp      float64 `toml:"amp"`
	// Phase is in degrees.
	Phase float64 `toml:"phase"`
}

// GainTable is a time-independent antenna-based gain calibration.
type GainTable struct {
	Gains []Gain `toml:"gain"`
}

// LoadGainTable reads a TOML gain table with one [[gain]] entry per solution.
func LoadGainTable(path string) (*GainTable, error) {
	var g GainTable
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrGainTable, path, err)
	}

	return g.validate()
}

// GainTableFromRecord builds a gain table from an inline record of the same
// layout as the TOML file, e.g. {"gain": [{"antenna": 0, "amp": 2}]}.
func GainTableFromRecord(rec map[string]any) (*GainTable, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGainTable, err)
	}

	var g GainTable
	if _, err := toml.Decode(buf.String(), &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGainTable, err)
	}

	return g.validate()
}

func (g *GainTable) validate() (*GainTable, error) {
	if len(g.Gains) == 0 {
		return nil, fmt.Errorf("%w: no solutions", ErrGainTable)
	}
	for i, s := range g.Gains {
		if s.Amp <= 0 {
			return nil, fmt.Errorf("%w: solution %d has amplitude %v", ErrGainTable, i, s.Amp)
		}
	}

	return g, nil
}

// Gain returns the most specific matching solution.
func (g *GainTable) Gain(antenna, spw, receptor int, _ float64) (complex128, bool) {
	best, score := -1, -1
	for i, s := range g.Gains {
		if s.Antenna != antenna {
			continue
		}
		if s.Spw != -1 && s.Spw != spw {
			continue
		}
		if s.Receptor != -1 && s.Receptor != receptor {
			continue
		}

		sc := 0
		if s.Spw == spw {
			sc += 2
		}
		if s.Receptor == receptor {
			sc++
		}
		if sc > score {
			best, score = i, sc
		}
	}

	if best < 0 {
		return 0, false
	}

	s := g.Gains[best]
	return cmplx.Rect(s.Amp, s.Phase*math.Pi/180), true
}

// Covers reports whether a solution applies to spw.
func (g *GainTable) Covers(spw int) bool {
	for _, s := range g.Gains {
		if s.Spw == -1 || s.Spw == spw {
			return true
		}
	}

	return false
}

// calibration writes CORRECTED_DATA = DATA / (g1 * conj(g2)) and scales the
// weights by |g1 g2|². Receptors without a solution have unit gain.
type calibration struct {
	inner Iterator
	cal   Calibrator
}

func newCalibration(inner Iterator, cal Calibrator, spws []int) (Iterator, error) {
	if cal == nil {
		return nil, ErrNoCalibration
	}
	if !inner.Columns().Has(archive.ColData) {
		return nil, fmt.Errorf("%w: archive has no DATA column", ErrNoCalibration)
	}

	for _, spw := range spws {
		if cal.Covers(spw) {
			return &calibration{inner: inner, cal: cal}, nil
		}
	}

	return nil, fmt.Errorf("%w: windows %v", ErrNoCalibration, spws)
}

func (c *calibration) Columns() archive.ColumnSet {
	return c.inner.Columns().With(archive.ColCorrected)
}

func (c *calibration) Next() (*Buffer, error) {
	b, err := c.inner.Next()
	if err != nil {
		return nil, err
	}

	for i := range b.Rows {
		r := &b.Rows[i]
		spw := b.Spw(r.DataDescID)
		prods := b.products(r.DataDescID)
		_, ncorr := b.Shape(i)
		if ncorr == 0 {
			continue
		}

		gains := make([]complex128, ncorr)
		for k := range ncorr {
			p, q := 0, 0
			if k < len(prods) {
				p, q = prods[k][0], prods[k][1]
			}
			gains[k] = c.gain(r.Antenna1, spw, p, r.Time) * cmplx.Conj(c.gain(r.Antenna2, spw, q, r.Time))
		}

		out := make([]complex64, len(r.Data))
		for j, v := range r.Data {
			out[j] = complex64(complex128(v) / gains[j%ncorr])
		}
		r.Corrected = out

		for k := range ncorr {
			g2 := real(gains[k] * cmplx.Conj(gains[k]))
			if k < len(r.Weight) {
				r.Weight[k] *= float32(g2)
			}
			if k < len(r.Sigma) {
				r.Sigma[k] /= float32(math.Sqrt(g2))
			}
		}
		if r.WeightSpectrum != nil {
			for j := range r.WeightSpectrum {
				g := gains[j%ncorr]
				r.WeightSpectrum[j] *= float32(real(g * cmplx.Conj(g)))
			}
		}
	}

	return b, nil
}

func (c *calibration) gain(antenna, spw, receptor int, t float64) complex128 {
	if g, ok := c.cal.Gain(antenna, spw, receptor, t); ok {
		return g
	}

	return 1
}
