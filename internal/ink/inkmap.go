package ink

// InkMap is a fixed-size spatial hash from erase cells to the paths that pass
// through them. It is a cache derived from the ink set and is rebuilt, never
// patched, when that ink set is redrawn.
type InkMap struct {
	resolution int
	table      [][]node
}

type node struct {
	x, y int
	path *Path
}

// NewInkMap builds an index with the given bucket count; resolution is the
// number of pixels per cell side.
func NewInkMap(buckets, resolution int) *InkMap {
	if buckets <= 0 {
		buckets = 1
	}
	if resolution <= 0 {
		resolution = 1
	}
	return &InkMap{resolution: resolution, table: make([][]node, buckets)}
}

func (m *InkMap) Buckets() int    { return len(m.table) }
func (m *InkMap) Resolution() int { return m.resolution }

// Cell maps a pixel coordinate to its erase cell.
func (m *InkMap) Cell(x, y int) (int, int) {
	return floorDiv(x, m.resolution), floorDiv(y, m.resolution)
}

func (m *InkMap) Clear() {
	m.table = make([][]node, len(m.table))
}

// Rebuild clears the index and inserts every segment of paths.
func (m *InkMap) Rebuild(paths []*Path) {
	m.Clear()
	for _, p := range paths {
		m.AddPath(p)
	}
}

// AddPath indexes every segment of p; a single-point path occupies one cell.
func (m *InkMap) AddPath(p *Path) {
	switch len(p.Points) {
	case 0:
		return
	case 1:
		cx, cy := m.Cell(p.Points[0].X, p.Points[0].Y)
		m.InsertCell(cx, cy, p)
		return
	}
	for i := 1; i < len(p.Points); i++ {
		a, b := p.Points[i-1], p.Points[i]
		m.InsertSegment(a.X, a.Y, b.X, b.Y, p)
	}
}

// InsertSegment rasterizes the pixel segment (x0,y0)-(x1,y1) over the cell
// grid with Bresenham stepping and records path in every traversed cell.
func (m *InkMap) InsertSegment(x0, y0, x1, y1 int, path *Path) {
	cx0, cy0 := m.Cell(x0, y0)
	cx1, cy1 := m.Cell(x1, y1)
	m.insertCellSegment(cx0, cy0, cx1, cy1, path)
}

func (m *InkMap) insertCellSegment(x0, y0, x1, y1 int, path *Path) {
	steep := abs(y1-y0) > abs(x1-x0)
	if steep {
		x0, y0 = y0, x0
		x1, y1 = y1, x1
	}
	if x0 > x1 {
		x0, x1 = x1, x0
		y0, y1 = y1, y0
	}
	dx := x1 - x0
	dy := abs(y1 - y0)
	errTerm := dx / 2
	ystep := -1
	if y0 < y1 {
		ystep = 1
	}
	y := y0
	for x := x0; x <= x1; x++ {
		if steep {
			m.InsertCell(y, x, path)
		} else {
			m.InsertCell(x, y, path)
		}
		errTerm -= dy
		if errTerm < 0 {
			y += ystep
			errTerm += dx
		}
	}
}

// InsertCell records path in cell (cx, cy).
func (m *InkMap) InsertCell(cx, cy int, path *Path) {
	h := m.hash(cx, cy)
	for _, n := range m.table[h] {
		if n.x == cx && n.y == cy && n.path == path {
			return
		}
	}
	m.table[h] = append(m.table[h], node{x: cx, y: cy, path: path})
}

// Query returns the distinct paths crossing the cell under pixel (x, y).
func (m *InkMap) Query(x, y int) []*Path {
	cx, cy := m.Cell(x, y)
	return m.QueryCell(cx, cy)
}

func (m *InkMap) QueryCell(cx, cy int) []*Path {
	var out []*Path
	for _, n := range m.table[m.hash(cx, cy)] {
		if n.x == cx && n.y == cy {
			out = appendUnique(out, n.path)
		}
	}
	return out
}

// Remove drops every entry for the cell under pixel (x, y) and returns the
// paths that were recorded there.
func (m *InkMap) Remove(x, y int) []*Path {
	cx, cy := m.Cell(x, y)
	h := m.hash(cx, cy)
	var removed []*Path
	kept := m.table[h][:0]
	for _, n := range m.table[h] {
		if n.x == cx && n.y == cy {
			removed = appendUnique(removed, n.path)
			continue
		}
		kept = append(kept, n)
	}
	m.table[h] = kept
	return removed
}

func (m *InkMap) hash(cx, cy int) int {
	h := (cx + cy) % len(m.table)
	if h < 0 {
		h += len(m.table)
	}
	return h
}

func appendUnique(list []*Path, p *Path) []*Path {
	for _, q := range list {
		if q == p {
			return list
		}
	}
	return append(list, p)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
