package archive

import (
	"fmt"
	"strings"
)

// Frame is a spectral reference frame.
type Frame int

const (
	FrameREST Frame = iota
	FrameLSRK
	FrameLSRD
	FrameBARY
	FrameGEO
	FrameTOPO
	FrameGALACTO
	FrameLGROUP
	FrameCMB
	// FrameSOURCE is the radial-velocity-corrected frame of the observed source.
	// Converting into it needs a per-field radial velocity.
	FrameSOURCE
	FrameUndefined
)

var frameNames = [...]string{
	FrameREST:      "REST",
	FrameLSRK:      "LSRK",
	FrameLSRD:      "LSRD",
	FrameBARY:      "BARY",
	FrameGEO:       "GEO",
	FrameTOPO:      "TOPO",
	FrameGALACTO:   "GALACTO",
	FrameLGROUP:    "LGROUP",
	FrameCMB:       "CMB",
	FrameSOURCE:    "SOURCE",
	FrameUndefined: "UNDEFINED",
}

func (f Frame) String() string {
	if f < 0 || int(f) >= len(frameNames) {
		return fmt.Sprintf("Frame(%d)", int(f))
	}

	return frameNames[f]
}

// ParseFrame parses a frame name case-insensitively. "LSR" is accepted for LSRK
// and "BARYCENT" for BARY.
func ParseFrame(name string) (Frame, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "LSR":
		return FrameLSRK, nil
	case "BARYCENT", "ICRS":
		return FrameBARY, nil
	case "TOPOCENT":
		return FrameTOPO, nil
	}

	for i, s := range frameNames {
		if s == n {
			return Frame(i), nil
		}
	}

	return FrameUndefined, fmt.Errorf("%w: %q", ErrUnknownFrame, name)
}

// Stokes identifies a correlation product type.
type Stokes int

const (
	StokesUndefined Stokes = iota
	StokesI
	StokesQ
	StokesU
	StokesV
	StokesRR
	StokesRL
	StokesLR
	StokesLL
	StokesXX
	StokesXY
	StokesYX
	StokesYY
)

var stokesNames = [...]string{
	StokesUndefined: "UNDEFINED",
	StokesI:         "I",
	StokesQ:         "Q",
	StokesU:         "U",
	StokesV:         "V",
	StokesRR:        "RR",
	StokesRL:        "RL",
	StokesLR:        "LR",
	StokesLL:        "LL",
	StokesXX:        "XX",
	StokesXY:        "XY",
	StokesYX:        "YX",
	StokesYY:        "YY",
}

func (s Stokes) String() string {
	if s < 0 || int(s) >= len(stokesNames) {
		return fmt.Sprintf("Stokes(%d)", int(s))
	}

	return stokesNames[s]
}

// ParseStokes parses a correlation name such as "XX" or "RL".
func ParseStokes(name string) (Stokes, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for i, s := range stokesNames {
		if i > 0 && s == n {
			return Stokes(i), nil
		}
	}

	return StokesUndefined, fmt.Errorf("%w: %q", ErrUnknownStokes, name)
}

// Basis names the feed basis of a correlation setup.
type Basis int

const (
	BasisOther Basis = iota
	BasisLinear
	BasisCircular
)

// AverageableBasis reports the basis of a 2- or 4-correlation linear or
// circular setup whose parallel hands can be averaged into Stokes I.
// Any other setup returns BasisOther.
func AverageableBasis(corr []Stokes) Basis {
	switch len(corr) {
	case 2:
		if corr[0] == StokesXX && corr[1] == StokesYY {
			return BasisLinear
		}
		if corr[0] == StokesRR && corr[1] == StokesLL {
			return BasisCircular
		}
	case 4:
		if corr[0] == StokesXX && corr[1] == StokesXY && corr[2] == StokesYX && corr[3] == StokesYY {
			return BasisLinear
		}
		if corr[0] == StokesRR && corr[1] == StokesRL && corr[2] == StokesLR && corr[3] == StokesLL {
			return BasisCircular
		}
	}

	return BasisOther
}

// ParallelHands returns the indices of the two parallel-hand correlations
// (XX/YY or RR/LL) of an averageable setup.
func ParallelHands(corr []Stokes) (p, q int, ok bool) {
	if AverageableBasis(corr) == BasisOther {
		return 0, 0, false
	}

	return 0, len(corr) - 1, true
}

// Direction is a sky or horizon direction in radians.
type Direction struct {
	Lon   float64
	Lat   float64
	Frame string
}
