package sensors

import (
	"math"

	"github.com/robosim/stagehand/geom"
	"github.com/robosim/stagehand/sim"
)

const (
	defaultTransducerRange = 5.0
	defaultTransducerFOV   = 0.3
	transducerRayCount     = 3
)

// Transducer is one fixed range sensor element: a sonar or infrared cell
// mounted somewhere on the carrier's body.
type Transducer struct {
	// Pose is the element's mount point in the carrier's body frame.
	Pose geom.Pose

	// MaxRange is the sensing distance in meters. Zero selects 5m.
	MaxRange float64

	// FOV is the element's cone width in radians. Zero selects 0.3.
	FOV float64

	// Range is the last measured distance, the shortest return within
	// the cone.
	Range float64
}

// Ranger is a bank of fixed range transducers. Each model update every
// transducer casts a narrow fan of rays and keeps the shortest return.
// Only bodies with their ranger return set register, and the carrier's
// own assembly is ignored.
type Ranger struct {
	Transducers []Transducer
}

// NewRangerRing builds a ranger with count transducers mounted evenly
// around a circle of the given radius, each facing outward.
func NewRangerRing(count int, radius float64) *Ranger {
	r := &Ranger{Transducers: make([]Transducer, count)}
	for i := range r.Transducers {
		a := geom.NormalizeAngle(2 * math.Pi * float64(i) / float64(count))
		r.Transducers[i].Pose = geom.Pose{
			X: radius * math.Cos(a),
			Y: radius * math.Sin(a),
			A: a,
		}
	}
	return r
}

func (r *Ranger) Setup(m *sim.Model) {
	for i := range r.Transducers {
		t := &r.Transducers[i]
		if t.MaxRange == 0 {
			t.MaxRange = defaultTransducerRange
		}
		if t.FOV == 0 {
			t.FOV = defaultTransducerFOV
		}
		t.Range = t.MaxRange
	}
}

func (r *Ranger) Update(m *sim.Model) {
	for i := range r.Transducers {
		t := &r.Transducers[i]

		samples := m.RaytraceFan(t.Pose, t.MaxRange, t.FOV, transducerRayCount, rangerMatch, true)

		t.Range = t.MaxRange
		for _, s := range samples {
			if s.Block != nil && s.Range < t.Range {
				t.Range = s.Range
			}
		}
	}
}

func (r *Ranger) Shutdown(m *sim.Model) {
	for i := range r.Transducers {
		r.Transducers[i].Range = r.Transducers[i].MaxRange
	}
}

// Ranges returns the last measurement of every transducer in mount order.
func (r *Ranger) Ranges() []float64 {
	out := make([]float64, len(r.Transducers))
	for i := range r.Transducers {
		out[i] = r.Transducers[i].Range
	}
	return out
}

func rangerMatch(b *sim.Block, finder *sim.Model) bool {
	if finder != nil && finder.IsRelated(b.Model()) {
		return false
	}
	return b.Model().RangerReturn()
}
