package grid

import (
	"fmt"
	"strings"
)

// SpeedOfLight in m/s.
const SpeedOfLight = 299792458.0

// VelocityType is the Doppler velocity definition of a velocity grid.
type VelocityType int

const (
	Radio VelocityType = iota
	Optical
)

func (v VelocityType) String() string {
	if v == Optical {
		return "optical"
	}

	return "radio"
}

// ParseVelocityType parses "radio" or "optical"; "z" is accepted for optical.
func ParseVelocityType(name string) (VelocityType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "radio":
		return Radio, nil
	case "optical", "z":
		return Optical, nil
	default:
		return Radio, fmt.Errorf("%w: %q", ErrUnknownVelocity, name)
	}
}

// ToFrequency converts a velocity into a frequency given the rest frequency.
func (v VelocityType) ToFrequency(vel, rest float64) float64 {
	if v == Optical {
		return rest / (1 + vel/SpeedOfLight)
	}

	return rest * (1 - vel/SpeedOfLight)
}

// ToVelocity converts a frequency into a velocity given the rest frequency.
func (v VelocityType) ToVelocity(freq, rest float64) float64 {
	if v == Optical {
		return SpeedOfLight * (rest/freq - 1)
	}

	return SpeedOfLight * (1 - freq/rest)
}
