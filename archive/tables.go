package archive

import "slices"

// Channel is one spectral channel of a window.
type Channel struct {
	Freq        float64
	Width       float64
	EffectiveBW float64
	Resolution  float64
}

// Lower returns the lower frequency edge of the channel.
func (c Channel) Lower() float64 {
	if c.Width < 0 {
		return c.Freq + 0.5*c.Width
	}

	return c.Freq - 0.5*c.Width
}

// Upper returns the upper frequency edge of the channel.
func (c Channel) Upper() float64 {
	if c.Width < 0 {
		return c.Freq - 0.5*c.Width
	}

	return c.Freq + 0.5*c.Width
}

// SpectralWindow is one row of the SPECTRAL_WINDOW table.
// Channel index order need not match frequency order.
type SpectralWindow struct {
	Name           string
	RefFrequency   float64
	Frame          Frame
	ChanFreq       []float64
	ChanWidth      []float64
	EffectiveBW    []float64
	Resolution     []float64
	TotalBandwidth float64
	NetSideband    int
	IFConvChain    int
	FreqGroup      int
	FreqGroupName  string
	Flag           bool
}

// NumChan returns the number of channels.
func (s SpectralWindow) NumChan() int {
	return len(s.ChanFreq)
}

// Channel returns channel i.
func (s SpectralWindow) Channel(i int) Channel {
	c := Channel{Freq: s.ChanFreq[i], Width: s.ChanWidth[i]}
	if i < len(s.EffectiveBW) {
		c.EffectiveBW = s.EffectiveBW[i]
	}
	if i < len(s.Resolution) {
		c.Resolution = s.Resolution[i]
	}

	return c
}

// Clone returns a deep copy.
func (s SpectralWindow) Clone() SpectralWindow {
	s.ChanFreq = slices.Clone(s.ChanFreq)
	s.ChanWidth = slices.Clone(s.ChanWidth)
	s.EffectiveBW = slices.Clone(s.EffectiveBW)
	s.Resolution = slices.Clone(s.Resolution)
	return s
}

// Polarization is one correlation setup.
type Polarization struct {
	CorrType    []Stokes
	CorrProduct [][2]int
	Flag        bool
}

// NumCorr returns the number of correlations.
func (p Polarization) NumCorr() int {
	return len(p.CorrType)
}

// Clone returns a deep copy.
func (p Polarization) Clone() Polarization {
	p.CorrType = slices.Clone(p.CorrType)
	p.CorrProduct = slices.Clone(p.CorrProduct)
	return p
}

// DataDescription pairs a spectral window with a polarization setup.
type DataDescription struct {
	SpwID int
	PolID int
	Flag  bool
}

// Field is one row of the FIELD table.
type Field struct {
	Name     string
	Code     string
	Time     float64
	PhaseDir Direction
	SourceID int
	Flag     bool
}

// Source is one row of the SOURCE table. RestFrequency, SysVel and
// Transition are optional columns.
type Source struct {
	SourceID      int
	Time          float64
	Interval      float64
	SpwID         int
	Name          string
	Direction     Direction
	RestFrequency []float64
	SysVel        []float64
	Transition    []string
}

// Feed is one row of the FEED table. BeamOffset and ReceptorAngle are optional.
type Feed struct {
	AntennaID        int
	FeedID           int
	SpwID            int
	Time             float64
	Interval         float64
	NumReceptors     int
	PolarizationType []string
	BeamOffset       [][2]float64
	ReceptorAngle    []float64
}

// SysCal is one row of the SYSCAL table. All measurement columns are optional.
type SysCal struct {
	AntennaID    int
	FeedID       int
	SpwID        int
	Time         float64
	Interval     float64
	TSys         []float32
	TCal         []float32
	TSysSpectrum []float32
}

// FreqOffset is one row of the FREQ_OFFSET table.
type FreqOffset struct {
	Antenna1 int
	Antenna2 int
	FeedID   int
	SpwID    int
	Time     float64
	Interval float64
	Offset   float64
}

// CalDevice is one row of the CALDEVICE table. NoiseCal, CalEff and
// TemperatureLoad are optional.
type CalDevice struct {
	AntennaID       int
	FeedID          int
	SpwID           int
	Time            float64
	Interval        float64
	NumCalLoad      int
	CalLoadNames    []string
	NoiseCal        []float64
	CalEff          []float32
	TemperatureLoad []float64
}

// SysPower is one row of the SYSPOWER table. The measurement columns are optional.
type SysPower struct {
	AntennaID       int
	FeedID          int
	SpwID           int
	Time            float64
	Interval        float64
	SwitchedDiff    []float32
	SwitchedSum     []float32
	RequantizerGain []float32
}

// Observation is one row of the OBSERVATION table.
type Observation struct {
	Telescope string
	Observer  string
	Project   string
	TimeRange [2]float64
}

// Antenna is one row of the ANTENNA table. Position is ITRF in metres.
type Antenna struct {
	Name         string
	Station      string
	Mount        string
	Position     [3]float64
	DishDiameter float64
}

// State is one row of the STATE table.
type State struct {
	ObsMode string
	Sig     bool
	Ref     bool
	SubScan int
}

// Pointing is one row of the POINTING table.
type Pointing struct {
	AntennaID int
	Time      float64
	Interval  float64
	Direction Direction
	Tracking  bool
}

// History is one row of the HISTORY table.
type History struct {
	Time    float64
	Origin  string
	Message string
	RunID   string
}

// Subtables holds every auxiliary table of an archive. A nil slice means the
// table is absent from the archive.
type Subtables struct {
	SpectralWindows  []SpectralWindow
	DataDescriptions []DataDescription
	Polarizations    []Polarization
	Fields           []Field
	Sources          []Source
	Feeds            []Feed
	SysCal           []SysCal
	FreqOffsets      []FreqOffset
	CalDevices       []CalDevice
	SysPower         []SysPower
	Observations     []Observation
	Antennas         []Antenna
	States           []State
	Pointings        []Pointing
	History          []History
}

// Clone returns a deep copy of all tables.
func (t *Subtables) Clone() *Subtables {
	if t == nil {
		return nil
	}

	out := &Subtables{
		DataDescriptions: slices.Clone(t.DataDescriptions),
		Fields:           slices.Clone(t.Fields),
		FreqOffsets:      slices.Clone(t.FreqOffsets),
		Observations:     slices.Clone(t.Observations),
		Antennas:         slices.Clone(t.Antennas),
		States:           slices.Clone(t.States),
		Pointings:        slices.Clone(t.Pointings),
		History:          slices.Clone(t.History),
	}

	if t.SpectralWindows != nil {
		out.SpectralWindows = make([]SpectralWindow, len(t.SpectralWindows))
		for i, s := range t.SpectralWindows {
			out.SpectralWindows[i] = s.Clone()
		}
	}
	if t.Polarizations != nil {
		out.Polarizations = make([]Polarization, len(t.Polarizations))
		for i, p := range t.Polarizations {
			out.Polarizations[i] = p.Clone()
		}
	}
	if t.Sources != nil {
		out.Sources = make([]Source, len(t.Sources))
		for i, s := range t.Sources {
			s.RestFrequency = slices.Clone(s.RestFrequency)
			s.SysVel = slices.Clone(s.SysVel)
			s.Transition = slices.Clone(s.Transition)
			out.Sources[i] = s
		}
	}
	if t.Feeds != nil {
		out.Feeds = make([]Feed, len(t.Feeds))
		for i, f := range t.Feeds {
			f.PolarizationType = slices.Clone(f.PolarizationType)
			f.BeamOffset = slices.Clone(f.BeamOffset)
			f.ReceptorAngle = slices.Clone(f.ReceptorAngle)
			out.Feeds[i] = f
		}
	}
	if t.SysCal != nil {
		out.SysCal = make([]SysCal, len(t.SysCal))
		for i, s := range t.SysCal {
			s.TSys = slices.Clone(s.TSys)
			s.TCal = slices.Clone(s.TCal)
			s.TSysSpectrum = slices.Clone(s.TSysSpectrum)
			out.SysCal[i] = s
		}
	}
	if t.CalDevices != nil {
		out.CalDevices = make([]CalDevice, len(t.CalDevices))
		for i, c := range t.CalDevices {
			c.CalLoadNames = slices.Clone(c.CalLoadNames)
			c.NoiseCal = slices.Clone(c.NoiseCal)
			c.CalEff = slices.Clone(c.CalEff)
			c.TemperatureLoad = slices.Clone(c.TemperatureLoad)
			out.CalDevices[i] = c
		}
	}
	if t.SysPower != nil {
		out.SysPower = make([]SysPower, len(t.SysPower))
		for i, s := range t.SysPower {
			s.SwitchedDiff = slices.Clone(s.SwitchedDiff)
			s.SwitchedSum = slices.Clone(s.SwitchedSum)
			s.RequantizerGain = slices.Clone(s.RequantizerGain)
			out.SysPower[i] = s
		}
	}

	return out
}
