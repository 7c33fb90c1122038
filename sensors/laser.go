// Package sensors provides ray-based sensing behaviors that attach to
// simulation models: a scanning laser and a set of fixed range transducers.
package sensors

import (
	"math"

	"github.com/robosim/stagehand/geom"
	"github.com/robosim/stagehand/sim"
)

// LaserSample is one beam of a completed scan.
type LaserSample struct {
	// Range is the measured distance in meters. Beams that hit nothing
	// report the laser's maximum range.
	Range float64

	// Reflectance is non-zero when the beam hit a brightly reflective
	// body.
	Reflectance int
}

const (
	defaultLaserRange       = 8.0
	defaultLaserFOV         = math.Pi
	defaultLaserSampleCount = 32
)

// Laser is a scanning range finder behavior. Each model update it casts a
// fan of rays from the carrying model's body frame and stores the
// resulting scan. Bodies related to the carrier and bodies that are laser
// invisible never register.
type Laser struct {
	// MaxRange is the sensing distance in meters. Zero selects 8m.
	MaxRange float64

	// FOV is the scan's angular width in radians. Zero selects pi.
	FOV float64

	// SampleCount is the number of beams per scan. Zero selects 32.
	SampleCount int

	// ScanHeight is the beam plane's height in the carrier's body frame.
	ScanHeight float64

	samples []LaserSample
}

func (l *Laser) Setup(m *sim.Model) {
	if l.MaxRange == 0 {
		l.MaxRange = defaultLaserRange
	}
	if l.FOV == 0 {
		l.FOV = defaultLaserFOV
	}
	if l.SampleCount == 0 {
		l.SampleCount = defaultLaserSampleCount
	}
	l.samples = make([]LaserSample, l.SampleCount)
}

func (l *Laser) Update(m *sim.Model) {
	raw := m.RaytraceFan(
		geom.Pose{Z: l.ScanHeight},
		l.MaxRange,
		l.FOV,
		l.SampleCount,
		laserMatch,
		true,
	)

	for i, s := range raw {
		l.samples[i] = LaserSample{Range: s.Range}
		if s.Block != nil && s.Block.Model().LaserReturn() == sim.LaserBright {
			l.samples[i].Reflectance = 1
		}
	}
}

func (l *Laser) Shutdown(m *sim.Model) {
	for i := range l.samples {
		l.samples[i] = LaserSample{Range: l.MaxRange}
	}
}

// Samples returns a copy of the most recent scan, in bearing order from
// the right edge of the field of view to the left.
func (l *Laser) Samples() []LaserSample {
	return append([]LaserSample(nil), l.samples...)
}

func laserMatch(b *sim.Block, finder *sim.Model) bool {
	if finder != nil && finder.IsRelated(b.Model()) {
		return false
	}
	return b.Model().LaserReturn() != sim.LaserInvisible
}
