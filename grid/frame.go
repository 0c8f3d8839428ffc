package grid

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mstransform/archive"
)

// Epoch anchors a frame conversion: when, where and towards what.
type Epoch struct {
	// Time in MJD seconds.
	Time float64
	// Position is the observatory ITRF position in metres.
	Position [3]float64
	// Direction is the J2000 phase centre.
	Direction archive.Direction
	// FieldID selects the source radial velocity for the SOURCE frame.
	FieldID int
}

// FrameConverter converts frequencies between spectral frames.
// Factor returns k such that f_to = k * f_from.
type FrameConverter interface {
	Factor(from, to archive.Frame, e Epoch) (float64, error)
}

// Solar and galactic motions used by DopplerConverter.
const (
	earthOrbitSpeed   = 29785.0
	earthEquatorSpeed = 465.1
	obliquity         = 23.4392911 * math.Pi / 180

	lsrkSpeed    = 20000.0
	lsrdSpeed    = 16552.94
	galactoSpeed = 220000.0
	lgroupSpeed  = 308000.0
	cmbSpeed     = 369500.0
)

var (
	// solar apex in J2000 (standard solar motion, 20 km/s)
	lsrkApex = archive.Direction{Lon: 270.0 * math.Pi / 180, Lat: 30.0 * math.Pi / 180}
	// apexes in galactic coordinates
	lsrdApexGal    = [2]float64{53.13 * math.Pi / 180, 25.02 * math.Pi / 180}
	galactoApexGal = [2]float64{90 * math.Pi / 180, 0}
	lgroupApexGal  = [2]float64{105 * math.Pi / 180, -7 * math.Pi / 180}
	cmbApexGal     = [2]float64{264.4 * math.Pi / 180, 48.4 * math.Pi / 180}
)

// DopplerConverter is a low-precision frame converter. It projects the
// velocity of each frame relative to the solar-system barycentre onto the
// line of sight and applies the relativistic Doppler factor. Accuracy is a
// few m/s, enough for channel planning.
type DopplerConverter struct {
	// SysVel returns the radial velocity of the source observed in field, in
	// m/s relative to LSRK. A nil func means zero.
	SysVel func(field int) float64
}

var _ FrameConverter = DopplerConverter{}

// NewDopplerConverter returns a converter whose SOURCE frame uses the
// systemic velocities of the SOURCE table.
func NewDopplerConverter(t *archive.Subtables) DopplerConverter {
	vel := make(map[int]float64)
	if t != nil {
		for fid, f := range t.Fields {
			for _, s := range t.Sources {
				if s.SourceID == f.SourceID && len(s.SysVel) > 0 {
					vel[fid] = s.SysVel[0]
					break
				}
			}
		}
	}

	return DopplerConverter{SysVel: func(field int) float64 { return vel[field] }}
}

// Factor implements FrameConverter.
func (d DopplerConverter) Factor(from, to archive.Frame, e Epoch) (float64, error) {
	if from == to {
		return 1, nil
	}

	vFrom, err := d.radial(from, e)
	if err != nil {
		return 0, err
	}
	vTo, err := d.radial(to, e)
	if err != nil {
		return 0, err
	}

	return doppler(vTo) / doppler(vFrom), nil
}

// doppler is the frequency factor seen by an observer approaching the source at v.
func doppler(v float64) float64 {
	beta := v / SpeedOfLight
	return math.Sqrt((1 + beta) / (1 - beta))
}

// radial returns the velocity of frame f relative to the barycentre projected
// onto the direction of e, positive towards the source.
func (d DopplerConverter) radial(f archive.Frame, e Epoch) (float64, error) {
	s := unit(e.Direction.Lon, e.Direction.Lat)

	switch f {
	case archive.FrameBARY:
		return 0, nil
	case archive.FrameGEO:
		return dot(earthVelocity(e.Time), s), nil
	case archive.FrameTOPO:
		v := earthVelocity(e.Time)
		r := rotationVelocity(e.Time, e.Position)
		return dot(v, s) + dot(r, s), nil
	case archive.FrameLSRK:
		return -lsrkSpeed * dot(unit(lsrkApex.Lon, lsrkApex.Lat), s), nil
	case archive.FrameLSRD:
		return -lsrdSpeed * dot(galactic(lsrdApexGal), s), nil
	case archive.FrameGALACTO:
		return -lsrdSpeed*dot(galactic(lsrdApexGal), s) - galactoSpeed*dot(galactic(galactoApexGal), s), nil
	case archive.FrameLGROUP:
		return -lgroupSpeed * dot(galactic(lgroupApexGal), s), nil
	case archive.FrameCMB:
		return -cmbSpeed * dot(galactic(cmbApexGal), s), nil
	case archive.FrameSOURCE:
		v := -lsrkSpeed * dot(unit(lsrkApex.Lon, lsrkApex.Lat), s)
		if d.SysVel != nil {
			v += d.SysVel(e.FieldID)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFrame, f)
	}
}

func unit(lon, lat float64) [3]float64 {
	return [3]float64{math.Cos(lat) * math.Cos(lon), math.Cos(lat) * math.Sin(lon), math.Sin(lat)}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// galactic converts galactic (l, b) to a J2000 unit vector.
func galactic(lb [2]float64) [3]float64 {
	g := unit(lb[0], lb[1])
	// transpose of the J2000 -> galactic rotation
	m := [3][3]float64{
		{-0.0548755604, 0.4941094279, -0.8676661490},
		{-0.8734370902, -0.4448296300, -0.1980763734},
		{-0.4838350155, 0.7469822445, 0.4559837762},
	}

	var out [3]float64
	for i := range 3 {
		out[i] = m[i][0]*g[0] + m[i][1]*g[1] + m[i][2]*g[2]
	}

	return out
}

func daysSinceJ2000(mjdSeconds float64) float64 {
	return mjdSeconds/86400 + 2400000.5 - 2451545.0
}

// earthVelocity is the orbital velocity of the Earth in J2000 equatorial
// coordinates, from the low-precision solar longitude.
func earthVelocity(mjdSeconds float64) [3]float64 {
	n := daysSinceJ2000(mjdSeconds)
	deg := math.Pi / 180
	l := (280.460 + 0.9856474*n) * deg
	g := (357.528 + 0.9856003*n) * deg
	lambda := l + (1.915*math.Sin(g)+0.020*math.Sin(2*g))*deg

	vx := earthOrbitSpeed * math.Sin(lambda)
	vy := -earthOrbitSpeed * math.Cos(lambda)
	return [3]float64{vx, vy * math.Cos(obliquity), vy * math.Sin(obliquity)}
}

// LocalSiderealAngle returns the local sidereal angle in radians, in
// [0, 2pi), at east longitude lon (radians) from the Earth rotation angle.
func LocalSiderealAngle(mjdSeconds, lon float64) float64 {
	era := 2 * math.Pi * (0.7790572732640 + 1.00273781191135448*daysSinceJ2000(mjdSeconds))
	a := math.Mod(era+lon, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}

	return a
}

// rotationVelocity is the diurnal velocity of an ITRF position in J2000
// equatorial coordinates.
func rotationVelocity(mjdSeconds float64, pos [3]float64) [3]float64 {
	r := math.Hypot(pos[0], pos[1])
	lat := 0.0
	lon := 0.0
	if r > 0 || pos[2] != 0 {
		lat = math.Atan2(pos[2], r)
		lon = math.Atan2(pos[1], pos[0])
	}

	lst := LocalSiderealAngle(mjdSeconds, lon)

	v := earthEquatorSpeed * math.Cos(lat)
	// eastward direction at local sidereal time
	return [3]float64{-v * math.Sin(lst), v * math.Cos(lst), 0}
}
