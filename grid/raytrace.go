package grid

import (
	"math"

	"github.com/robosim/stagehand/geom"
)

// Sample is the result of a single ray query. Occupant is nil when the ray
// reached its maximum range without a qualifying hit, in which case Range
// holds that maximum.
type Sample struct {
	Occupant Occupant
	Range    float64
	X        float64
	Y        float64
}

// MatchFunc decides whether a cell occupant terminates a ray.
type MatchFunc func(o Occupant) bool

// Raytrace walks the grid from origin along origin's heading, visiting
// every cell the continuous ray crosses in range order, and stops at the
// first occupant for which match returns true. With ztest enabled,
// occupants whose global vertical extent does not contain the ray's z are
// skipped. Empty regions and super-regions are crossed without inspecting
// their cells, using their occupancy counters.
func (g *Grid) Raytrace(origin geom.Pose, maxRange float64, match MatchFunc, ztest bool) (Sample, bool) {
	raytraceCounter.Inc()

	cosa := math.Cos(origin.A)
	sina := math.Sin(origin.A)

	ix := g.MetersToCell(origin.X)
	iy := g.MetersToCell(origin.Y)

	stepX, tMaxX, tDeltaX := g.axisWalk(origin.X, cosa, ix)
	stepY, tMaxY, tDeltaY := g.axisWalk(origin.Y, sina, iy)

	// advance moves to the next cell the ray crosses. Crossing one
	// boundary at a time keeps corner-adjacent cells on the walk.
	t := 0.0
	advance := func() {
		if tMaxX < tMaxY {
			t = tMaxX
			tMaxX += tDeltaX
			ix += stepX
		} else {
			t = tMaxY
			tMaxY += tDeltaY
			iy += stepY
		}
	}

	for t <= maxRange {
		loc := CellLoc{X: ix, Y: iy}

		if s := g.superAt(loc); s == nil || s.count == 0 {
			sx := floorDiv(ix, superCellSpan)
			sy := floorDiv(iy, superCellSpan)
			for t <= maxRange && floorDiv(ix, superCellSpan) == sx && floorDiv(iy, superCellSpan) == sy {
				advance()
			}
			continue
		}

		reg := g.regionAt(loc, false)
		if reg == nil || reg.count == 0 {
			rx := floorDiv(ix, regionWidth)
			ry := floorDiv(iy, regionWidth)
			for t <= maxRange && floorDiv(ix, regionWidth) == rx && floorDiv(iy, regionWidth) == ry {
				advance()
			}
			continue
		}

		for _, o := range reg.cells[cellIndex(loc)].occupants {
			if o == nil || !match(o) {
				continue
			}
			if ztest {
				zmin, zmax := o.GlobalZBounds()
				if origin.Z < zmin || origin.Z > zmax {
					continue
				}
			}
			return Sample{
				Occupant: o,
				Range:    t,
				X:        origin.X + t*cosa,
				Y:        origin.Y + t*sina,
			}, true
		}

		advance()
	}

	return Sample{Range: maxRange}, false
}

// axisWalk prepares one axis of the traversal: the cell step direction,
// the ray distance to the first boundary crossing on that axis, and the
// distance between successive crossings.
func (g *Grid) axisWalk(o, dir float64, i int) (step int, tMax, tDelta float64) {
	switch {
	case dir > 0:
		return 1, (float64(i+1)*g.resolution - o) / dir, g.resolution / dir
	case dir < 0:
		return -1, (float64(i)*g.resolution - o) / dir, -g.resolution / dir
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

// RaytraceFan casts count rays spread evenly across the field of view
// centered on origin's heading and returns one sample per ray, in bearing
// order. Rays that hit nothing report the maximum range.
func (g *Grid) RaytraceFan(origin geom.Pose, maxRange, fov float64, count int, match MatchFunc, ztest bool) []Sample {
	if count <= 0 {
		return nil
	}

	samples := make([]Sample, count)

	bearing := origin.A - fov/2
	increment := 0.0
	if count > 1 {
		increment = fov / float64(count-1)
	} else {
		bearing = origin.A
	}

	for i := range samples {
		ray := origin
		ray.A = bearing + float64(i)*increment
		samples[i], _ = g.Raytrace(ray, maxRange, match, ztest)
	}
	return samples
}
