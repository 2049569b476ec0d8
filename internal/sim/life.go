package sim

import "github.com/higherpwned/server/internal/rng"

// DefaultDensity is the fraction of live cells Life seeds with.
const DefaultDensity = 0.3

// Life is Conway's Game of Life on the grid. A cell is alive when its value
// is at least half of Max; live cells are written as Max, dead ones as 0.
// Edges are bounded (off-grid neighbours are dead) unless Wrap is set.
type Life struct {
	// Density is the live fraction used by Seed. Zero means DefaultDensity.
	Density float64
	Wrap    bool

	buf *Grid
}

func (l *Life) Kind() Kind { return KindAutomaton }

func (l *Life) Seed(g *Grid, r rng.Source) {
	l.buf = nil
	d := l.Density
	if d <= 0 {
		d = DefaultDensity
	}
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if rng.Chance(r, d) {
				g.Set(x, y, g.Max)
			} else {
				g.Set(x, y, 0)
			}
		}
	}
}

func (l *Life) Step(cur *Grid, _ rng.Source) *Grid {
	next := swapBuffer(&l.buf, cur)
	for y := 0; y < cur.H; y++ {
		for x := 0; x < cur.W; x++ {
			n := l.neighbours(cur, x, y)
			alive := l.alive(cur, x, y)
			if n == 3 || (alive && n == 2) {
				next.Set(x, y, cur.Max)
			} else {
				next.Set(x, y, 0)
			}
		}
	}
	return next
}

func (l *Life) alive(g *Grid, x, y int) bool {
	if l.Wrap {
		x = ((x % g.W) + g.W) % g.W
		y = ((y % g.H) + g.H) % g.H
	}
	return g.At(x, y) >= g.Max/2
}

func (l *Life) neighbours(g *Grid, x, y int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if l.alive(g, x+dx, y+dy) {
				n++
			}
		}
	}
	return n
}
