// Package grid implements the shared occupancy index the simulation kernel
// renders model geometry into. Cells are grouped into regions and regions
// into super-regions, each level keeping a count of the occupied cell
// entries below it so ray queries can skip empty space wholesale.
package grid

import "math"

const (
	// regionWidth is the number of cells along a region side.
	regionWidth = 16

	// superWidth is the number of regions along a super-region side.
	superWidth = 16

	// superCellSpan is the number of cells along a super-region side.
	superCellSpan = regionWidth * superWidth
)

// Occupant is an entry rendered into grid cells.
type Occupant interface {
	// GlobalZBounds returns the occupant's vertical extent in world
	// coordinates. It is consulted by z-tested ray queries.
	GlobalZBounds() (zmin, zmax float64)
}

// CellLoc is a discrete cell coordinate.
type CellLoc struct {
	X int
	Y int
}

type cell struct {
	occupants []Occupant
	free      []int
}

type region struct {
	cells [regionWidth * regionWidth]cell
	count int
	super *superRegion
}

type superRegion struct {
	regions [superWidth * superWidth]*region
	count   int
}

// Handle identifies a single rendered cell entry. It references the entry's
// slot in its cell's occupant list and the region and super-region counters
// to decrement, allowing O(1) removal.
type Handle struct {
	cell   *cell
	slot   int
	region *region
}

// Grid is the spatial index. It grows on demand and is not safe for
// concurrent use; the kernel is single-threaded by contract.
type Grid struct {
	resolution float64 // meters per cell
	supers     map[CellLoc]*superRegion
}

// New returns a grid with the given resolution in meters per cell.
func New(resolution float64) *Grid {
	if resolution <= 0 {
		resolution = 0.1
	}
	return &Grid{
		resolution: resolution,
		supers:     make(map[CellLoc]*superRegion),
	}
}

// Resolution returns the cell size in meters.
func (g *Grid) Resolution() float64 {
	return g.resolution
}

// MetersToCell converts a world-metric coordinate into a cell coordinate.
func (g *Grid) MetersToCell(m float64) int {
	return int(math.Floor(m / g.resolution))
}

// Insert renders o into the cell at loc and returns the removal handle.
func (g *Grid) Insert(loc CellLoc, o Occupant) Handle {
	r := g.regionAt(loc, true)
	c := &r.cells[cellIndex(loc)]

	var slot int
	if n := len(c.free); n > 0 {
		slot = c.free[n-1]
		c.free = c.free[:n-1]
		c.occupants[slot] = o
	} else {
		slot = len(c.occupants)
		c.occupants = append(c.occupants, o)
	}

	r.count++
	r.super.count++
	insertCounter.Inc()

	return Handle{cell: c, slot: slot, region: r}
}

// Remove deletes the cell entry identified by h. Removing the zero Handle
// is a no-op.
func (g *Grid) Remove(h Handle) {
	if h.cell == nil {
		return
	}

	h.cell.occupants[h.slot] = nil
	h.cell.free = append(h.cell.free, h.slot)
	h.region.count--
	h.region.super.count--
	removeCounter.Inc()
}

// OccupantsAt returns the occupants currently rendered into the cell at
// loc. Entries rendered more than once appear once per entry.
func (g *Grid) OccupantsAt(loc CellLoc) []Occupant {
	r := g.regionAt(loc, false)
	if r == nil {
		return nil
	}

	c := &r.cells[cellIndex(loc)]
	var out []Occupant
	for _, o := range c.occupants {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// EntryCount returns the total number of rendered cell entries. For any
// sequence of renders and removals it equals the number of cells currently
// occupied, counted once per occupant per cell.
func (g *Grid) EntryCount() int {
	var n int
	for _, s := range g.supers {
		n += s.count
	}
	return n
}

func (g *Grid) regionAt(loc CellLoc, create bool) *region {
	rx := floorDiv(loc.X, regionWidth)
	ry := floorDiv(loc.Y, regionWidth)
	sx := floorDiv(rx, superWidth)
	sy := floorDiv(ry, superWidth)

	s := g.supers[CellLoc{X: sx, Y: sy}]
	if s == nil {
		if !create {
			return nil
		}
		s = &superRegion{}
		g.supers[CellLoc{X: sx, Y: sy}] = s
	}

	idx := (ry-sy*superWidth)*superWidth + (rx - sx*superWidth)
	r := s.regions[idx]
	if r == nil {
		if !create {
			return nil
		}
		r = &region{super: s}
		s.regions[idx] = r
	}
	return r
}

func (g *Grid) superAt(loc CellLoc) *superRegion {
	sx := floorDiv(loc.X, superCellSpan)
	sy := floorDiv(loc.Y, superCellSpan)
	return g.supers[CellLoc{X: sx, Y: sy}]
}

func cellIndex(loc CellLoc) int {
	x := loc.X - floorDiv(loc.X, regionWidth)*regionWidth
	y := loc.Y - floorDiv(loc.Y, regionWidth)*regionWidth
	return y*regionWidth + x
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
