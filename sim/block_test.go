package sim

import (
	"testing"
	"time"

	"github.com/robosim/stagehand/geom"
	"github.com/stretchr/testify/require"
)

func TestBlockMapUnMapBalance(t *testing.T) {
	w := NewWorld("test", 0.1, 100*time.Millisecond)
	m := w.NewModel(nil, "box")

	require.NotZero(t, w.Grid().EntryCount())
	require.True(t, m.Blocks()[0].Mapped())

	m.UnMap()
	require.Zero(t, w.Grid().EntryCount())
	require.False(t, m.Blocks()[0].Mapped())

	m.UnMap()
	require.Zero(t, w.Grid().EntryCount())

	m.Map()
	require.NotZero(t, w.Grid().EntryCount())
}

func TestBlockGlobalZBounds(t *testing.T) {
	w := NewWorld("test", 0.1, 100*time.Millisecond)
	m := w.NewModel(nil, "box")
	m.SetGeometry(Geometry{Size: geom.Size{X: 1, Y: 1, Z: 2}})

	b := m.Blocks()[0]
	zmin, zmax := b.GlobalZBounds()
	require.InDelta(t, 0, zmin, 1e-9)
	require.InDelta(t, 2, zmax, 1e-9)

	m.SetPose(geom.Pose{Z: 0.5})
	zmin, zmax = b.GlobalZBounds()
	require.InDelta(t, 0.5, zmin, 1e-9)
	require.InDelta(t, 2.5, zmax, 1e-9)
}

func TestScaleBlocks(t *testing.T) {
	w := NewWorld("test", 0.1, 100*time.Millisecond)
	m := w.NewModel(nil, "box")

	m.ClearBlocks()
	m.AddBlock([]geom.Point{
		{X: 0, Y: 0},
		{X: 2, Y: 0},
		{X: 2, Y: 1},
		{X: 0, Y: 1},
	}, 0, 1, 0, true)

	m.SetGeometry(Geometry{Size: geom.Size{X: 4, Y: 2, Z: 1}})

	pts := m.Blocks()[0].Points()
	require.InDelta(t, -2, pts[0].X, 1e-9)
	require.InDelta(t, -1, pts[0].Y, 1e-9)
	require.InDelta(t, 2, pts[2].X, 1e-9)
	require.InDelta(t, 1, pts[2].Y, 1e-9)

	zmin, zmax := m.Blocks()[0].ZBounds()
	require.InDelta(t, 0, zmin, 1e-9)
	require.InDelta(t, 1, zmax, 1e-9)
}

func TestScaleBlocksDegenerateExtent(t *testing.T) {
	w := NewWorld("test", 0.1, 100*time.Millisecond)
	m := w.NewModel(nil, "post")

	// a vertical line segment has zero x extent; scaling must collapse
	// that axis onto the center instead of dividing by it.
	m.ClearBlocks()
	m.AddBlock([]geom.Point{
		{X: 1, Y: 0},
		{X: 1, Y: 2},
	}, 0, 1, 0, true)

	require.NotPanics(t, func() {
		m.SetGeometry(Geometry{Size: geom.Size{X: 2, Y: 4, Z: 1}})
	})

	pts := m.Blocks()[0].Points()
	require.InDelta(t, 0, pts[0].X, 1e-9)
	require.InDelta(t, 0, pts[1].X, 1e-9)
	require.InDelta(t, -2, pts[0].Y, 1e-9)
	require.InDelta(t, 2, pts[1].Y, 1e-9)
}

func TestBlockColorInheritance(t *testing.T) {
	w := NewWorld("test", 0.1, 100*time.Millisecond)
	m := w.NewModel(nil, "box")

	inherited := m.Blocks()[0]
	require.Equal(t, DefaultColor, inherited.Color())

	m.SetColor(0xFF00FF00)
	require.Equal(t, Color(0xFF00FF00), inherited.Color())

	own := m.AddBlock([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}, 0, 1, 0xFF0000FF, false)
	require.Equal(t, Color(0xFF0000FF), own.Color())
}

func TestClearBlocksUnmaps(t *testing.T) {
	w := NewWorld("test", 0.1, 100*time.Millisecond)
	m := w.NewModel(nil, "box")

	m.ClearBlocks()
	require.Zero(t, w.Grid().EntryCount())
	require.Empty(t, m.Blocks())
}
