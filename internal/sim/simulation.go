// internal/sim/simulation.go
//
// Simulation ties a grid, a rule, a palette and a random source together.
// The rendered frame is cached and only recomputed after a step.

package sim

import "github.com/higherpwned/server/internal/rng"

// Simulation owns one grid and the rule that evolves it. It is not safe for
// concurrent use.
type Simulation struct {
	grid    *Grid
	rule    Rule
	palette Palette
	rng     rng.Source

	ticks   uint64
	frame   string
	dirty   bool
	renders int
}

// New seeds a fresh grid of w×h with the given rule.
func New(w, h int, max float64, rule Rule, p Palette, r rng.Source) *Simulation {
	s := &Simulation{rule: rule, palette: p, rng: r}
	s.reset(NewGrid(w, h, max))
	return s
}

// Step advances one tick.
func (s *Simulation) Step() {
	s.grid = s.rule.Step(s.grid, s.rng)
	s.ticks++
	s.dirty = true
}

// Frame returns the text frame, rendering only if the grid changed.
func (s *Simulation) Frame() string {
	if s.dirty {
		s.frame = Render(s.grid, s.palette)
		s.dirty = false
		s.renders++
	}
	return s.frame
}

// Cells renders the current grid with colours.
func (s *Simulation) Cells() [][]Cell { return RenderCells(s.grid, s.palette) }

// HTML renders the current grid as coloured markup.
func (s *Simulation) HTML() string { return RenderHTML(s.grid, s.palette) }

// Reset throws away the grid and particles and seeds from scratch. A nil
// rule keeps the current one.
func (s *Simulation) Reset(w, h int, rule Rule) {
	if rule != nil {
		s.rule = rule
	}
	s.reset(NewGrid(w, h, s.grid.Max))
}

func (s *Simulation) reset(g *Grid) {
	s.grid = g
	s.rule.Seed(g, s.rng)
	s.ticks = 0
	s.dirty = true
}

// SetPalette swaps the palette; the next Frame re-renders.
func (s *Simulation) SetPalette(p Palette) {
	s.palette = p
	s.dirty = true
}

func (s *Simulation) Grid() *Grid      { return s.grid }
func (s *Simulation) Rule() Rule       { return s.rule }
func (s *Simulation) Palette() Palette { return s.palette }
func (s *Simulation) Ticks() uint64    { return s.ticks }
