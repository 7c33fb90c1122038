package sim

import (
	"math"

	"github.com/robosim/stagehand/geom"
	"github.com/robosim/stagehand/grid"
)

// Block is a flat polygon with a vertical extent, the atomic collidable
// shape unit. A block is owned by exactly one model and lives inside its
// owner's lifecycle.
type Block struct {
	model *Model

	points       []geom.Point
	zMin         float64
	zMax         float64
	color        Color
	inheritColor bool

	// derived on Map, in world coordinates.
	globalPixels []grid.CellLoc
	globalZMin   float64
	globalZMax   float64

	// removal handles for every grid cell the block currently occupies.
	// Empty iff the block is unmapped.
	rendered []grid.Handle
}

func newBlock(m *Model, pts []geom.Point, zMin, zMax float64, color Color, inheritColor bool) *Block {
	return &Block{
		model:        m,
		points:       append([]geom.Point(nil), pts...),
		zMin:         zMin,
		zMax:         zMax,
		color:        color,
		inheritColor: inheritColor,
		globalPixels: make([]grid.CellLoc, len(pts)),
		globalZMin:   -1,
		globalZMax:   -1,
	}
}

// Model returns the owning model.
func (b *Block) Model() *Model {
	return b.model
}

// Points returns a copy of the block's local vertices.
func (b *Block) Points() []geom.Point {
	return append([]geom.Point(nil), b.points...)
}

// ZBounds returns the block's vertical extent in its owner's local frame.
func (b *Block) ZBounds() (zmin, zmax float64) {
	return b.zMin, b.zMax
}

// Color returns the block's color, deferring to the owning model's color
// when the block inherits it.
func (b *Block) Color() Color {
	if b.inheritColor {
		return b.model.color
	}
	return b.color
}

// GlobalZBounds returns the block's vertical extent in world coordinates.
// It is only meaningful while the block is mapped.
func (b *Block) GlobalZBounds() (zmin, zmax float64) {
	return b.globalZMin, b.globalZMax
}

// Mapped reports whether the block is currently rendered into the grid.
func (b *Block) Mapped() bool {
	return len(b.rendered) > 0
}

// Map renders the block into the world's grid: every local vertex is
// composed through the owner's pose chain, converted to cell coordinates,
// and the polygon's edges are rasterized into the occupancy index. Callers
// must unmap before remapping; mapping twice double-renders.
func (b *Block) Map() {
	g := b.model.world.grid

	var gz float64
	for i, pt := range b.points {
		p := b.model.LocalToGlobal(geom.Pose{X: pt.X, Y: pt.Y, Z: b.zMin})
		b.globalPixels[i] = grid.CellLoc{
			X: g.MetersToCell(p.X),
			Y: g.MetersToCell(p.Y),
		}
		if i == 0 {
			gz = p.Z
		}
	}

	b.globalZMin = gz
	b.globalZMax = gz + (b.zMax - b.zMin)

	g.RenderPolygon(b.globalPixels, b, b.recordRenderPoint)
}

// UnMap removes every cell entry the block rendered, in O(1) per cell,
// and forgets the handles. Unmapping an unmapped block is a no-op.
func (b *Block) UnMap() {
	g := b.model.world.grid
	for _, h := range b.rendered {
		g.Remove(h)
	}
	b.rendered = b.rendered[:0]
}

// recordRenderPoint stores the removal handle for one rendered cell. It is
// invoked by the grid during Map, once per cell touched.
func (b *Block) recordRenderPoint(h grid.Handle) {
	b.rendered = append(b.rendered, h)
}

// ScaleBlocks remaps the vertices of blocks so their combined bounding box
// fills size centered on the origin, and rescales the z extents so the
// tallest block reaches size.Z. An axis with zero extent collapses onto the
// center line instead of being stretched. Every block is unmapped first.
// Panics if a vertex coordinate is NaN: that indicates corrupt upstream
// geometry the simulation is not designed to recover from.
func ScaleBlocks(blocks []*Block, size geom.Size) {
	if len(blocks) == 0 {
		return
	}

	minX := math.Inf(1)
	minY := math.Inf(1)
	maxX := math.Inf(-1)
	maxY := math.Inf(-1)
	var maxZ float64

	for _, b := range blocks {
		b.UnMap()

		for _, pt := range b.points {
			assertNotNaN(pt)

			minX = math.Min(minX, pt.X)
			minY = math.Min(minY, pt.Y)
			maxX = math.Max(maxX, pt.X)
			maxY = math.Max(maxY, pt.Y)
		}

		if b.zMax > maxZ {
			maxZ = b.zMax
		}
	}

	scaleX := maxX - minX
	scaleY := maxY - minY
	var scaleZ float64
	if maxZ != 0 {
		scaleZ = size.Z / maxZ
	}

	for _, b := range blocks {
		for i := range b.points {
			if scaleX != 0 {
				b.points[i].X = (b.points[i].X-minX)/scaleX*size.X - size.X/2
			} else {
				b.points[i].X = 0
			}
			if scaleY != 0 {
				b.points[i].Y = (b.points[i].Y-minY)/scaleY*size.Y - size.Y/2
			} else {
				b.points[i].Y = 0
			}
			assertNotNaN(b.points[i])
		}

		b.zMin *= scaleZ
		b.zMax *= scaleZ
	}
}

func assertNotNaN(pt geom.Point) {
	if math.IsNaN(pt.X) || math.IsNaN(pt.Y) {
		panic("sim: block vertex is not a number")
	}
}
