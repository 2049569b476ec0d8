// internal/sim/grid.go
//
// Grid is the heat/energy field every animation variant works on.
//
// Cells are float64, stored row-major, and always kept inside [0, Max].
// Dimensions are fixed for the lifetime of a grid; a resize means a new grid.

package sim

import "math"

// Grid is a W×H field of values in [0, Max].
type Grid struct {
	W, H  int
	Max   float64
	cells []float64
}

// NewGrid returns a zero-filled grid. Width and height are clamped to at
// least 1, and a non-positive max becomes 1.
func NewGrid(w, h int, max float64) *Grid {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if !(max > 0) || math.IsInf(max, 0) {
		max = 1
	}
	return &Grid{W: w, H: h, Max: max, cells: make([]float64, w*h)}
}

// Cells exposes the backing slice (row-major).
func (g *Grid) Cells() []float64 { return g.cells }

// Index returns the slice offset for (x, y). No bounds check.
func (g *Grid) Index(x, y int) int { return y*g.W + x }

// InBounds reports whether (x, y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.W && y < g.H
}

// At returns the value at (x, y); cells off the grid read as 0.
func (g *Grid) At(x, y int) float64 {
	if !g.InBounds(x, y) {
		return 0
	}
	return g.cells[y*g.W+x]
}

// Set stores v at (x, y) after clamping. Off-grid writes are ignored.
func (g *Grid) Set(x, y int, v float64) {
	if !g.InBounds(x, y) {
		return
	}
	g.cells[y*g.W+x] = g.Clamp(v)
}

// Clamp pins v into [0, Max]. NaN becomes 0.
func (g *Grid) Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > g.Max:
		return g.Max
	}
	return v
}

// Clear zeroes every cell.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = 0
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := &Grid{W: g.W, H: g.H, Max: g.Max, cells: make([]float64, len(g.cells))}
	copy(c.cells, g.cells)
	return c
}

// Peak returns the largest cell value.
func (g *Grid) Peak() float64 {
	var p float64
	for _, v := range g.cells {
		if v > p {
			p = v
		}
	}
	return p
}

// sameShape reports whether a and b share dimensions and range.
func sameShape(a, b *Grid) bool {
	return a != nil && b != nil && a.W == b.W && a.H == b.H && a.Max == b.Max
}

// swapBuffer hands back a scratch grid shaped like cur and remembers cur as
// the scratch for the following call, giving rules a double buffer.
func swapBuffer(buf **Grid, cur *Grid) *Grid {
	next := *buf
	if next == cur || !sameShape(next, cur) {
		next = NewGrid(cur.W, cur.H, cur.Max)
	}
	*buf = cur
	return next
}
