package grid

import (
	"math"
	"testing"

	"github.com/robosim/stagehand/geom"
	"github.com/stretchr/testify/require"
)

type testOccupant struct {
	zmin float64
	zmax float64
}

func (o *testOccupant) GlobalZBounds() (float64, float64) {
	return o.zmin, o.zmax
}

func TestGridInsertRemove(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmax: 1}

	h := g.Insert(CellLoc{X: 3, Y: -2}, o)
	require.Equal(t, 1, g.EntryCount())
	require.Len(t, g.OccupantsAt(CellLoc{X: 3, Y: -2}), 1)

	g.Remove(h)
	require.Equal(t, 0, g.EntryCount())
	require.Empty(t, g.OccupantsAt(CellLoc{X: 3, Y: -2}))
}

func TestGridRemoveZeroHandle(t *testing.T) {
	g := New(1)
	g.Remove(Handle{})
	require.Equal(t, 0, g.EntryCount())
}

func TestGridSlotReuse(t *testing.T) {
	g := New(1)
	a := &testOccupant{}
	b := &testOccupant{}
	loc := CellLoc{X: 0, Y: 0}

	ha := g.Insert(loc, a)
	hb := g.Insert(loc, b)
	require.Len(t, g.OccupantsAt(loc), 2)

	// removing a must not disturb b's handle.
	g.Remove(ha)
	require.Len(t, g.OccupantsAt(loc), 1)

	hc := g.Insert(loc, a)
	require.Len(t, g.OccupantsAt(loc), 2)

	g.Remove(hb)
	g.Remove(hc)
	require.Equal(t, 0, g.EntryCount())
}

func TestMetersToCell(t *testing.T) {
	g := New(0.5)
	require.Equal(t, 0, g.MetersToCell(0))
	require.Equal(t, 1, g.MetersToCell(0.5))
	require.Equal(t, -1, g.MetersToCell(-0.2))
	require.Equal(t, 9, g.MetersToCell(4.9))
}

func TestRenderPolygonBalance(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmax: 1}

	square := []CellLoc{{0, 0}, {4, 0}, {4, 4}, {0, 4}}

	var handles []Handle
	g.RenderPolygon(square, o, func(h Handle) {
		handles = append(handles, h)
	})

	require.Equal(t, len(handles), g.EntryCount())
	require.NotEmpty(t, g.OccupantsAt(CellLoc{X: 2, Y: 0}))
	require.NotEmpty(t, g.OccupantsAt(CellLoc{X: 4, Y: 2}))
	// interior cells stay empty, only edges are rasterized.
	require.Empty(t, g.OccupantsAt(CellLoc{X: 2, Y: 2}))

	for _, h := range handles {
		g.Remove(h)
	}
	require.Equal(t, 0, g.EntryCount())
}

func TestRenderLineNegativeCoords(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmax: 1}

	var handles []Handle
	g.RenderPolygon([]CellLoc{{-3, -3}, {3, 3}}, o, func(h Handle) {
		handles = append(handles, h)
	})

	require.NotEmpty(t, g.OccupantsAt(CellLoc{X: 0, Y: 0}))
	require.NotEmpty(t, g.OccupantsAt(CellLoc{X: -3, Y: -3}))
	require.NotEmpty(t, g.OccupantsAt(CellLoc{X: 3, Y: 3}))
}

func TestRaytraceHit(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmin: 0, zmax: 1}

	wall := []CellLoc{{5, -2}, {5, 2}}
	g.RenderPolygon(wall, o, func(Handle) {})

	sample, ok := g.Raytrace(geom.Pose{X: 0.5, Y: 0.5}, 10, func(Occupant) bool { return true }, false)
	require.True(t, ok)
	require.Equal(t, o, sample.Occupant)
	require.InDelta(t, 4.5, sample.Range, 1.0)
}

func TestRaytraceMiss(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmax: 1}
	g.RenderPolygon([]CellLoc{{5, 0}, {5, 1}}, o, func(Handle) {})

	// aim away from the wall.
	sample, ok := g.Raytrace(geom.Pose{X: 0.5, Y: 0.5, A: 3.14159}, 10, func(Occupant) bool { return true }, false)
	require.False(t, ok)
	require.Nil(t, sample.Occupant)
	require.Equal(t, 10.0, sample.Range)
}

func TestRaytraceMatchFilter(t *testing.T) {
	g := New(1)
	near := &testOccupant{zmax: 1}
	far := &testOccupant{zmax: 1}
	g.RenderPolygon([]CellLoc{{3, 0}, {3, 1}}, near, func(Handle) {})
	g.RenderPolygon([]CellLoc{{7, 0}, {7, 1}}, far, func(Handle) {})

	sample, ok := g.Raytrace(geom.Pose{X: 0.5, Y: 0.5}, 20, func(o Occupant) bool {
		return o != near
	}, false)
	require.True(t, ok)
	require.Equal(t, far, sample.Occupant)
}

func TestRaytraceZTest(t *testing.T) {
	g := New(1)
	low := &testOccupant{zmin: 0, zmax: 1}
	g.RenderPolygon([]CellLoc{{5, 0}, {5, 1}}, low, func(Handle) {})

	all := func(Occupant) bool { return true }

	_, ok := g.Raytrace(geom.Pose{X: 0.5, Y: 0.5, Z: 2}, 10, all, true)
	require.False(t, ok)

	_, ok = g.Raytrace(geom.Pose{X: 0.5, Y: 0.5, Z: 0.5}, 10, all, true)
	require.True(t, ok)

	// disabled z-test ignores the vertical extent.
	_, ok = g.Raytrace(geom.Pose{X: 0.5, Y: 0.5, Z: 2}, 10, all, false)
	require.True(t, ok)
}

func TestRaytraceDiagonalCornerCells(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmax: 1}

	// a one-cell-thick corner: the 45 degree ray below crosses (1,0) and
	// (0,1) without ever landing in (1,1).
	g.Insert(CellLoc{X: 0, Y: 1}, o)
	g.Insert(CellLoc{X: 1, Y: 0}, o)

	sample, ok := g.Raytrace(geom.Pose{X: 0.2, Y: 0.1, A: math.Pi / 4}, 5, func(Occupant) bool { return true }, false)
	require.True(t, ok)
	require.Equal(t, o, sample.Occupant)
	// first boundary crossed is x=1, at range 0.8/cos(pi/4).
	require.InDelta(t, 0.8/math.Cos(math.Pi/4), sample.Range, 1e-9)
}

func TestRaytraceHitsFirstCellAfterEmptyRegions(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmax: 1}

	// single occupied cell on the leading edge of its region (regions are
	// 16 cells wide), reached across two empty regions.
	g.Insert(CellLoc{X: 32, Y: 3}, o)

	sample, ok := g.Raytrace(geom.Pose{X: 0.5, Y: 3.5}, 100, func(Occupant) bool { return true }, false)
	require.True(t, ok)
	require.Equal(t, o, sample.Occupant)
	require.InDelta(t, 31.5, sample.Range, 1e-9)
}

func TestRaytraceSkipsEmptySpace(t *testing.T) {
	g := New(0.1)
	o := &testOccupant{zmax: 1}

	// wall one thousand cells out, behind several empty super-regions.
	x := g.MetersToCell(100)
	g.RenderPolygon([]CellLoc{{x, -10}, {x, 10}}, o, func(Handle) {})

	sample, ok := g.Raytrace(geom.Pose{}, 200, func(Occupant) bool { return true }, false)
	require.True(t, ok)
	require.Equal(t, o, sample.Occupant)
	require.InDelta(t, 100, sample.Range, 1.0)
}

func TestRaytraceFan(t *testing.T) {
	g := New(1)
	o := &testOccupant{zmax: 1}
	g.RenderPolygon([]CellLoc{{5, -40}, {5, 40}}, o, func(Handle) {})

	samples := g.RaytraceFan(geom.Pose{X: 0.5, Y: 0.5}, 20, 1.5708, 3, func(Occupant) bool { return true }, false)
	require.Len(t, samples, 3)

	// center ray is perpendicular to the wall, the outer two are oblique.
	require.NotNil(t, samples[1].Occupant)
	require.Less(t, samples[1].Range, samples[0].Range)
	require.Less(t, samples[1].Range, samples[2].Range)
}
