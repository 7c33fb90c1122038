package sim

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/robosim/stagehand/geom"
)

// Sample is the result of a model-issued ray query. Block is nil when
// nothing qualifying was hit within range.
type Sample struct {
	Block *Block
	Range float64
	X     float64
	Y     float64
}

// MatchFunc decides whether a block terminates a ray cast on behalf of
// finder.
type MatchFunc func(b *Block, finder *Model) bool

// ObstacleMatch is the collision predicate: any block of another model
// with its obstacle return set blocks movement.
func ObstacleMatch(b *Block, finder *Model) bool {
	return b.Model() != finder && b.Model().ObstacleReturn()
}

// Raytrace casts a single ray from a pose given in the model's body frame
// and returns the first qualifying hit.
func (m *Model) Raytrace(p geom.Pose, maxRange float64, match MatchFunc, ztest bool) (Sample, bool) {
	return m.world.Raytrace(m.LocalToGlobal(p), maxRange, match, m, ztest)
}

// RaytraceFan casts count rays spread across fov, centered on the given
// body-frame pose's heading, and returns one sample per ray in bearing
// order.
func (m *Model) RaytraceFan(p geom.Pose, maxRange, fov float64, count int, match MatchFunc, ztest bool) []Sample {
	return m.world.RaytraceFan(m.LocalToGlobal(p), maxRange, fov, count, match, m, ztest)
}

// TestCollision reports the first other model whose obstacle return is set
// that the model's body would touch after the given displacement, or nil.
// Rays are cast along every edge of every owned block, in the model frame
// shifted by displacement. The model is unmapped for the duration so its
// own cells never register as hits. A model with no blocks collides with
// nothing.
func (m *Model) TestCollision(displacement geom.Pose) *Model {
	if len(m.blocks) == 0 {
		return nil
	}

	m.UnMap()
	defer m.Map()

	for _, b := range m.blocks {
		n := len(b.points)
		for i := 0; i < n; i++ {
			p1 := b.points[i]
			p2 := b.points[(i+1)%n]
			dx := p2.X - p1.X
			dy := p2.Y - p1.Y

			edge := geom.Pose{X: p1.X, Y: p1.Y, A: math.Atan2(dy, dx)}

			sample, ok := m.Raytrace(geom.Compose(displacement, edge), math.Hypot(dx, dy), ObstacleMatch, true)
			if ok {
				collisionCounter.Inc()
				return sample.Block.Model()
			}
		}
	}

	return nil
}

// UpdatePose advances the model by one world tick worth of its velocity.
// Every tenth tick a trail checkpoint is recorded first. If the tentative
// displacement collides, the model stalls in place; otherwise the
// displacement is applied.
func (m *Model) UpdatePose() {
	if m.disabled {
		return
	}

	if m.world.updates%10 == 0 {
		m.appendTrail()
	}

	dt := m.world.interval.Seconds()
	displacement := geom.Pose{
		X: m.velocity.X * dt,
		Y: m.velocity.Y * dt,
		A: m.velocity.A * dt,
	}

	if hit := m.TestCollision(displacement); hit != nil {
		m.SetStall(true)
		return
	}

	m.SetStall(false)
	m.SetPose(geom.Compose(m.pose, displacement))
}

// PlaceInFreeSpace moves the model to a random collision-free pose within
// bounds. The current pose counts first; after it, at most attempts random
// poses are set and tested (a non-positive value selects a default budget).
// An error is returned when every candidate collides, with the model left
// at the last pose tried.
func (m *Model) PlaceInFreeSpace(bounds geom.Rect, attempts int) error {
	if attempts <= 0 {
		attempts = 1000
	}

	if m.TestCollision(geom.Pose{}) == nil {
		return nil
	}

	for i := 0; i < attempts; i++ {
		m.SetPose(geom.Pose{
			X: bounds.MinX + m.world.rand.Float64()*(bounds.MaxX-bounds.MinX),
			Y: bounds.MinY + m.world.rand.Float64()*(bounds.MaxY-bounds.MinY),
			A: geom.NormalizeAngle(m.world.rand.Float64() * 2 * math.Pi),
		})

		if m.TestCollision(geom.Pose{}) == nil {
			return nil
		}
	}

	return errors.New("no free pose found").
		WithTag("model", m.name).
		WithTag("attempts", attempts)
}
