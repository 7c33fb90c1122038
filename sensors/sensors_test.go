package sensors

import (
	"math"
	"testing"
	"time"

	"github.com/robosim/stagehand/geom"
	"github.com/robosim/stagehand/sim"
	"github.com/stretchr/testify/require"
)

func newSensorWorld(t *testing.T) (*sim.World, *sim.Model) {
	t.Helper()

	w := sim.NewWorld("test", 0.05, 100*time.Millisecond)

	robot := w.NewModel(nil, "robot")
	robot.SetGeometry(sim.Geometry{Size: geom.Size{X: 0.4, Y: 0.4, Z: 0.4}})

	wall := w.NewModel(nil, "wall")
	wall.SetGeometry(sim.Geometry{Size: geom.Size{X: 0.2, Y: 10, Z: 1}})
	wall.SetPose(geom.Pose{X: 4})

	return w, robot
}

func TestLaserScan(t *testing.T) {
	_, robot := newSensorWorld(t)

	laser := &Laser{MaxRange: 8, FOV: math.Pi, SampleCount: 9, ScanHeight: 0.2}
	robot.SetBehavior(laser)
	robot.Subscribe()
	robot.Update()

	samples := laser.Samples()
	require.Len(t, samples, 9)

	// The center beam faces the wall's near face at x=3.9.
	require.InDelta(t, 3.9, samples[4].Range, 0.2)
	require.Zero(t, samples[4].Reflectance)

	// Beams at 67.5 degrees and beyond would need more than 8m to reach
	// the wall plane, so they report the maximum range...
	require.InDelta(t, 8, samples[0].Range, 1e-9)
	require.InDelta(t, 8, samples[1].Range, 1e-9)
	// ...while beams that do reach it obliquely measure longer than the
	// center beam.
	require.Greater(t, samples[3].Range, samples[4].Range)
	require.Less(t, samples[3].Range, 8.0)
}

func TestLaserReflectance(t *testing.T) {
	w, robot := newSensorWorld(t)

	w.ModelByName("wall").SetLaserReturn(sim.LaserBright)

	laser := &Laser{MaxRange: 8, FOV: math.Pi / 2, SampleCount: 3, ScanHeight: 0.2}
	robot.SetBehavior(laser)
	robot.Subscribe()
	robot.Update()

	require.Equal(t, 1, laser.Samples()[1].Reflectance)
}

func TestLaserIgnoresInvisibleAndRelated(t *testing.T) {
	w, robot := newSensorWorld(t)

	w.ModelByName("wall").SetLaserReturn(sim.LaserInvisible)

	// A child of the carrier sits right in front of it; related bodies
	// must not register either.
	probe := w.NewModel(robot, "probe")
	probe.SetGeometry(sim.Geometry{Size: geom.Size{X: 0.1, Y: 0.1, Z: 0.1}})
	probe.SetPose(geom.Pose{X: 1})

	laser := &Laser{MaxRange: 8, FOV: math.Pi / 2, SampleCount: 3, ScanHeight: 0.2}
	robot.SetBehavior(laser)
	robot.Subscribe()
	robot.Update()

	for _, s := range laser.Samples() {
		require.InDelta(t, 8, s.Range, 1e-9)
	}
}

func TestLaserDefaults(t *testing.T) {
	_, robot := newSensorWorld(t)

	laser := &Laser{}
	robot.SetBehavior(laser)
	robot.Subscribe()

	require.InDelta(t, defaultLaserRange, laser.MaxRange, 1e-9)
	require.InDelta(t, defaultLaserFOV, laser.FOV, 1e-9)
	require.Len(t, laser.Samples(), defaultLaserSampleCount)
}

func TestRangerRing(t *testing.T) {
	_, robot := newSensorWorld(t)

	ranger := NewRangerRing(4, 0.2)
	robot.SetBehavior(ranger)
	robot.Subscribe()

	require.Len(t, ranger.Transducers, 4)
	require.InDelta(t, 0, ranger.Transducers[0].Pose.A, 1e-9)
	require.InDelta(t, math.Pi/2, ranger.Transducers[1].Pose.A, 1e-9)

	robot.Update()

	ranges := ranger.Ranges()
	// The forward transducer sees the wall; the mount point sits 0.2m
	// ahead of the body origin.
	require.InDelta(t, 3.7, ranges[0], 0.2)
	// The other three face open space.
	require.InDelta(t, defaultTransducerRange, ranges[1], 1e-9)
	require.InDelta(t, defaultTransducerRange, ranges[2], 1e-9)
	require.InDelta(t, defaultTransducerRange, ranges[3], 1e-9)
}

func TestRangerRespectsRangerReturn(t *testing.T) {
	w, robot := newSensorWorld(t)

	w.ModelByName("wall").SetRangerReturn(false)

	ranger := NewRangerRing(1, 0)
	robot.SetBehavior(ranger)
	robot.Subscribe()
	robot.Update()

	require.InDelta(t, defaultTransducerRange, ranger.Ranges()[0], 1e-9)
}
