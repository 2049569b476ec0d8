// internal/sim/fire.go
//
// Diffusion fire. The bottom row is re-seeded every tick; every other cell
// takes a weighted average of the three cells below a (possibly drifted)
// source column and loses heat to cooling plus a random decay.
//
// The same rule covers the smooth score-driven fire (float levels, clamped
// edges), the doom-style fire (quantized levels, wrapping drift) and the
// pre-rendered fire with a pinned heat source.

package sim

import (
	"math"

	"github.com/higherpwned/server/internal/rng"
)

// Square is an axis-aligned block of cells pinned at Max.
type Square struct {
	X, Y, Size int
}

// Fire is the diffusion rule.
type Fire struct {
	// Weights for below, below-left and below-right. All zero means 1,1,1.
	Weights [3]float64
	// DecayMax bounds the random decay U[0, DecayMax] subtracted per row.
	DecayMax float64
	// Cooling is subtracted unconditionally per row.
	Cooling float64
	// DriftRange and Wind shift the source column by
	// round(Wind + U[-DriftRange, DriftRange]).
	DriftRange float64
	Wind       float64
	// SparkRate is the chance a bottom cell ignites on a tick.
	SparkRate float64
	// SparkIntensity is the ignited level as a fraction of Max (0 means 1).
	SparkIntensity float64
	// Flicker is the random spread applied to bottom cells.
	Flicker float64
	// Wrap makes columns wrap around instead of clamping at the edges.
	Wrap bool
	// Quantize floors every value to an integer level.
	Quantize bool
	// HeatSource, when set, is pinned at Max every tick.
	HeatSource *Square

	buf *Grid
}

func (f *Fire) Kind() Kind { return KindDiffusion }

func (f *Fire) Seed(g *Grid, r rng.Source) {
	g.Clear()
	f.buf = nil
	f.seedRow(g, r)
	f.pinSource(g)
}

func (f *Fire) Step(cur *Grid, r rng.Source) *Grid {
	next := swapBuffer(&f.buf, cur)
	w := f.weights()
	wsum := w[0] + w[1] + w[2]

	for y := 0; y < cur.H-1; y++ {
		for x := 0; x < cur.W; x++ {
			src := x + f.drift(r)
			below := cur.At(f.column(src, cur.W), y+1)
			left := cur.At(f.column(src-1, cur.W), y+1)
			right := cur.At(f.column(src+1, cur.W), y+1)

			v := (w[0]*below + w[1]*left + w[2]*right) / wsum
			v -= f.Cooling
			if f.DecayMax > 0 {
				v -= r.Float64() * f.DecayMax
			}
			next.Set(x, y, f.level(v))
		}
	}
	f.seedRow(next, r)
	f.pinSource(next)
	return next
}

// seedRow re-ignites the bottom row.
func (f *Fire) seedRow(g *Grid, r rng.Source) {
	y := g.H - 1
	intensity := f.SparkIntensity
	if intensity <= 0 {
		intensity = 1
	}
	for x := 0; x < g.W; x++ {
		var v float64
		if rng.Chance(r, f.SparkRate) {
			v = g.Max*intensity - r.Float64()*f.Flicker
		} else {
			v = r.Float64() * f.Flicker
		}
		g.Set(x, y, f.level(v))
	}
}

func (f *Fire) pinSource(g *Grid) {
	s := f.HeatSource
	if s == nil {
		return
	}
	for y := s.Y; y < s.Y+s.Size; y++ {
		for x := s.X; x < s.X+s.Size; x++ {
			g.Set(x, y, g.Max)
		}
	}
}

func (f *Fire) weights() [3]float64 {
	w := f.Weights
	if w[0] < 0 {
		w[0] = 0
	}
	if w[1] < 0 {
		w[1] = 0
	}
	if w[2] < 0 {
		w[2] = 0
	}
	if w[0]+w[1]+w[2] == 0 {
		return [3]float64{1, 1, 1}
	}
	return w
}

func (f *Fire) drift(r rng.Source) int {
	if f.DriftRange <= 0 {
		return int(math.Round(f.Wind))
	}
	return int(math.Round(f.Wind + rng.Between(r, -f.DriftRange, f.DriftRange)))
}

// column maps a possibly off-grid column back onto the grid.
func (f *Fire) column(x, w int) int {
	if f.Wrap {
		return ((x % w) + w) % w
	}
	if x < 0 {
		return 0
	}
	if x >= w {
		return w - 1
	}
	return x
}

func (f *Fire) level(v float64) float64 {
	if f.Quantize {
		return math.Floor(v)
	}
	return v
}
