package grid

// RenderPolygon rasterizes the closed polygon's edges into the grid,
// inserting o into every cell each edge crosses. The polygon is closed
// implicitly: the last vertex connects back to the first. record is
// invoked once per inserted cell with that entry's removal handle.
func (g *Grid) RenderPolygon(pts []CellLoc, o Occupant, record func(Handle)) {
	switch len(pts) {
	case 0:
		return
	case 1:
		record(g.Insert(pts[0], o))
		return
	}

	for i := range pts {
		g.renderLine(pts[i], pts[(i+1)%len(pts)], o, record)
	}
}

// renderLine walks the cells between a and b inclusive with an integer
// Bresenham traversal.
func (g *Grid) renderLine(a, b CellLoc, o Occupant, record func(Handle)) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)

	sx := 1
	if a.X > b.X {
		sx = -1
	}
	sy := 1
	if a.Y > b.Y {
		sy = -1
	}

	x, y := a.X, a.Y
	err := dx + dy

	for {
		record(g.Insert(CellLoc{X: x, Y: y}, o))

		if x == b.X && y == b.Y {
			return
		}

		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
