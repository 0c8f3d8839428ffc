package testutil

import "github.com/cwbudde/algo-mstransform/archive"

// UniformSpw returns a window of nchan channels starting at start (first
// channel centre) with constant width. A negative width gives a descending grid.
func UniformSpw(name string, nchan int, start, width float64) archive.SpectralWindow {
	spw := archive.SpectralWindow{
		Name:         name,
		RefFrequency: start,
		Frame:        archive.FrameTOPO,
		ChanFreq:     make([]float64, nchan),
		ChanWidth:    make([]float64, nchan),
		EffectiveBW:  make([]float64, nchan),
		Resolution:   make([]float64, nchan),
	}

	for i := range nchan {
		spw.ChanFreq[i] = start + float64(i)*width
		spw.ChanWidth[i] = width
		spw.EffectiveBW[i] = abs(width)
		spw.Resolution[i] = abs(width)
	}
	spw.TotalBandwidth = abs(width) * float64(nchan)

	return spw
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ArchiveSpec describes a synthetic archive.
type ArchiveSpec struct {
	Spws []archive.SpectralWindow
	// Pols lists correlation setups; defaults to one XX,YY setup.
	Pols [][]archive.Stokes
	// DDIs pairs (spw, pol); defaults to one per window with setup 0.
	DDIs     [][2]int
	Antennas int
	Times    int
	Interval float64
	Fields   int
	Cols     archive.ColumnSet
}

// Sample returns the deterministic DATA value of a fixture cell.
func Sample(ddi, time, chanIdx, corr int) complex64 {
	return complex(float32(100*ddi+chanIdx+1), float32(corr+time))
}

// NewArchive builds an in-memory archive with one row per time, baseline and
// data description, ordered by time then data description then baseline.
// DATA holds Sample values, CORRECTED_DATA twice that, MODEL_DATA ones.
func NewArchive(spec ArchiveSpec) *archive.Archive {
	if len(spec.Pols) == 0 {
		spec.Pols = [][]archive.Stokes{{archive.StokesXX, archive.StokesYY}}
	}
	if len(spec.DDIs) == 0 {
		for i := range spec.Spws {
			spec.DDIs = append(spec.DDIs, [2]int{i, 0})
		}
	}
	spec.Antennas = max(spec.Antennas, 2)
	spec.Times = max(spec.Times, 1)
	spec.Fields = max(spec.Fields, 1)
	if spec.Interval == 0 {
		spec.Interval = 10
	}

	t := &archive.Subtables{
		SpectralWindows: spec.Spws,
		Observations:    []archive.Observation{{Telescope: "SYNTH", Project: "fixture"}},
		States:          []archive.State{{ObsMode: "OBSERVE_TARGET#ON_SOURCE", Sig: true}},
	}
	for _, corr := range spec.Pols {
		products := make([][2]int, len(corr))
		for i := range corr {
			products[i] = [2]int{i / 2 % 2, i % 2}
		}
		t.Polarizations = append(t.Polarizations, archive.Polarization{CorrType: corr, CorrProduct: products})
	}
	for _, dd := range spec.DDIs {
		t.DataDescriptions = append(t.DataDescriptions, archive.DataDescription{SpwID: dd[0], PolID: dd[1]})
	}
	for i := range spec.Fields {
		t.Fields = append(t.Fields, archive.Field{
			Name:     "F" + string(rune('A'+i)),
			PhaseDir: archive.Direction{Lon: 0.1 * float64(i), Lat: 0.5, Frame: "J2000"},
			SourceID: i,
		})
		t.Sources = append(t.Sources, archive.Source{SourceID: i, SpwID: -1, Name: "S" + string(rune('A'+i))})
	}
	for i := range spec.Antennas {
		t.Antennas = append(t.Antennas, archive.Antenna{
			Name:         "A" + string(rune('0'+i%10)),
			Position:     [3]float64{float64(100 * i), float64(-50 * i), 0},
			DishDiameter: 12,
		})
		for spw := range spec.Spws {
			t.Feeds = append(t.Feeds, archive.Feed{AntennaID: i, SpwID: spw, NumReceptors: 2, PolarizationType: []string{"X", "Y"}})
		}
	}

	a := archive.New(t, spec.Cols.With(archive.ColData).With(archive.ColFlag))

	for ti := range spec.Times {
		for ddi, dd := range spec.DDIs {
			nchan := spec.Spws[dd[0]].NumChan()
			ncorr := len(spec.Pols[dd[1]])
			for a1 := 0; a1 < spec.Antennas; a1++ {
				for a2 := a1 + 1; a2 < spec.Antennas; a2++ {
					a.Rows = append(a.Rows, fixtureRow(spec, ti, ddi, a1, a2, nchan, ncorr))
				}
			}
		}
	}

	return a
}

func fixtureRow(spec ArchiveSpec, ti, ddi, a1, a2, nchan, ncorr int) archive.Row {
	n := nchan * ncorr
	r := archive.Row{
		Time:         4.8e9 + float64(ti)*spec.Interval,
		Interval:     spec.Interval,
		Exposure:     spec.Interval,
		Antenna1:     a1,
		Antenna2:     a2,
		DataDescID:   ddi,
		FieldID:      ti % spec.Fields,
		ScanNumber:   1,
		UVW:          [3]float64{float64(100 * (a2 - a1)), float64(10 * a1), 0},
		Weight:       make([]float32, ncorr),
		Sigma:        make([]float32, ncorr),
		Data:         make([]complex64, n),
		Flag:         make([]bool, n),
	}
	r.TimeCentroid = r.Time

	for k := range ncorr {
		r.Weight[k] = 1
		r.Sigma[k] = 1
	}
	for c := range nchan {
		for k := range ncorr {
			r.Data[c*ncorr+k] = Sample(ddi, ti, c, k)
		}
	}

	if spec.Cols.Has(archive.ColCorrected) {
		r.Corrected = make([]complex64, n)
		for i, v := range r.Data {
			r.Corrected[i] = 2 * v
		}
	}
	if spec.Cols.Has(archive.ColModel) {
		r.Model = make([]complex64, n)
		for i := range r.Model {
			r.Model[i] = 1
		}
	}
	if spec.Cols.Has(archive.ColFloatData) {
		r.FloatData = make([]float32, n)
		for i, v := range r.Data {
			r.FloatData[i] = real(v)
		}
	}
	if spec.Cols.Has(archive.ColWeightSpectrum) {
		r.WeightSpectrum = make([]float32, n)
		for i := range r.WeightSpectrum {
			r.WeightSpectrum[i] = 1
		}
	}
	if spec.Cols.Has(archive.ColSigmaSpectrum) {
		r.SigmaSpectrum = make([]float32, n)
		for i := range r.SigmaSpectrum {
			r.SigmaSpectrum[i] = 1
		}
	}

	return r
}
