// Package spatial provides the uniform grid used for range queries over
// live enemies, such as ricochet retargeting and chain lightning hops.
//
// The grid stores integer slot indices (not pointers) in preallocated
// slices; it is rebuilt from the enemy list once per use.
package spatial

import (
	"math"
)

// Grid buckets entity slot indices into fixed-size square cells.
//
// Cell size should be on the order of the typical query radius. For an
// 800x600 arena with 150-300 unit queries, 100 unit cells give an 8x6 grid.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col]).
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32 // reused by QueryRadius
	count       int
}

// NewGrid creates a grid covering [0,width]×[0,height].
// capacity is the expected number of entities and only sizes the buckets.
func NewGrid(width, height, cellSize float64, capacity int) *Grid {
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	perCell := capacity / len(cells)
	if perCell < 4 {
		perCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, perCell)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells, keeping their capacity.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert adds slot id at (x, y). Positions outside the grid land in the
// nearest edge cell so nothing is ever lost.
func (g *Grid) Insert(id uint32, x, y float64) {
	idx := g.row(y)*g.cols + g.col(x)
	g.cells[idx] = append(g.cells[idx], id)
	g.count++
}

// Rebuild clears the grid and inserts n entities, reading each position
// from pos.
func (g *Grid) Rebuild(n int, pos func(i int) (x, y float64)) {
	g.Clear()
	for i := 0; i < n; i++ {
		x, y := pos(i)
		g.Insert(uint32(i), x, y)
	}
}

// Len returns the number of inserted entities.
func (g *Grid) Len() int { return g.count }

// QueryRadius returns every slot id whose cell intersects the square
// around (cx, cy) with half-width radius.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Candidates may lie outside the radius; callers do the narrow phase.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, maxCol := g.col(cx-radius), g.col(cx+radius)
	minRow, maxRow := g.row(cy-radius), g.row(cy+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

// Nearest runs QueryRadius and returns the candidate with the smallest
// distance reported by dist. dist returns ok=false to reject a candidate
// (out of range, excluded, outside a cone). Ties go to the lower slot id so
// results match a linear scan in slot order.
func (g *Grid) Nearest(cx, cy, radius float64, dist func(id uint32) (float64, bool)) (uint32, bool) {
	var (
		best  uint32
		bestD = math.Inf(1)
		found bool
	)
	for _, id := range g.QueryRadius(cx, cy, radius) {
		d, ok := dist(id)
		if !ok {
			continue
		}
		if d < bestD || (d == bestD && id < best) {
			best, bestD, found = id, d, true
		}
	}
	return best, found
}

func (g *Grid) col(x float64) int {
	return clampIndex(int(math.Floor(x*g.invCellSize)), g.cols)
}

func (g *Grid) row(y float64) int {
	return clampIndex(int(math.Floor(y*g.invCellSize)), g.rows)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
