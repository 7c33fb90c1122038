// Package smoketest runs a short self-contained simulation scenario and
// verifies its core invariants. It backs the --smoke-test flag and the
// admin smoke test endpoint.
package smoketest

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/robosim/stagehand/geom"
	"github.com/robosim/stagehand/sim"
)

// Options tune the scenario.
type Options struct {
	// Ticks is the number of world updates to run. Zero selects 200.
	Ticks int

	// Interval is the simulated time per tick. Zero selects 50ms.
	Interval time.Duration
}

// Results summarizes a completed run.
type Results struct {
	Ticks       int           `json:"ticks"`
	SimTime     time.Duration `json:"sim_time"`
	RobotPose   geom.Pose     `json:"robot_pose"`
	RobotStall  bool          `json:"robot_stall"`
	GridEntries int           `json:"grid_entries"`
}

// Run drives a robot toward a wall inside a small closed world and checks
// that it stalls instead of passing through, that grid bookkeeping stays
// balanced, and that teardown leaves the index empty. ctx cancelation
// aborts the run early.
func Run(ctx context.Context, opts Options) (Results, error) {
	if opts.Ticks <= 0 {
		opts.Ticks = 200
	}
	if opts.Interval <= 0 {
		opts.Interval = 50 * time.Millisecond
	}

	w := sim.NewWorld("smoke-test", 0.05, opts.Interval)

	wall := w.NewModel(nil, "wall")
	wall.SetGeometry(sim.Geometry{Size: geom.Size{X: 0.2, Y: 4, Z: 1}})
	wall.SetPose(geom.Pose{X: 3})

	robot := w.NewModel(nil, "robot")
	robot.SetGeometry(sim.Geometry{Size: geom.Size{X: 0.4, Y: 0.4, Z: 0.4}})
	robot.SetVelocity(geom.Velocity{X: 0.5})

	var res Results
	for i := 0; i < opts.Ticks; i++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		w.Update()
	}

	res = Results{
		Ticks:       opts.Ticks,
		SimTime:     w.SimTime(),
		RobotPose:   robot.Pose(),
		RobotStall:  robot.Stall(),
		GridEntries: w.Grid().EntryCount(),
	}

	if !res.RobotStall {
		return res, errors.New("robot did not stall at the wall").
			WithTag("pose_x", res.RobotPose.X)
	}
	if res.RobotPose.X >= 3 {
		return res, errors.New("robot passed through the wall").
			WithTag("pose_x", res.RobotPose.X)
	}
	if res.GridEntries == 0 {
		return res, errors.New("grid is empty while bodies are mapped")
	}

	robot.Destroy()
	wall.Destroy()
	if n := w.Grid().EntryCount(); n != 0 {
		return res, errors.New("grid not empty after teardown").
			WithTag("entries", n)
	}

	logs.WithTag("ticks", res.Ticks).
		WithTag("pose_x", res.RobotPose.X).
		Info("smoke test passed")
	return res, nil
}
