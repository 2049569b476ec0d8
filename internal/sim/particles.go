// internal/sim/particles.go
//
// Particle-based variants: rising embers and fireworks.
//
// Particles are owned by the rule instance that spawned them. Each tick they
// are integrated, culled when their life runs out or they leave the grid,
// and then splatted onto a freshly zeroed grid.

package sim

import (
	"math"

	"github.com/higherpwned/server/internal/rng"
)

// ParticleKind distinguishes what a particle is doing.
type ParticleKind uint8

const (
	KindEmber ParticleKind = iota
	KindRocket
	KindSpark
)

// Particle is a point with velocity and a remaining life.
type Particle struct {
	X, Y    float64
	VX, VY  float64
	Life    float64
	MaxLife float64
	Kind    ParticleKind
}

// offGrid also reports true for a NaN position.
func (p *Particle) offGrid(w, h int) bool {
	return !(p.X >= 0 && p.Y >= 0 && p.X < float64(w) && p.Y < float64(h))
}

// ---------------------------------------------------------------- embers

// MaxEmberDt caps the simulated time per tick so a stalled loop does not
// produce a burst of spawns.
const MaxEmberDt = 0.1

// Embers spawns glowing particles on the bottom row that drift upward.
type Embers struct {
	// SpawnRate is particles per simulated second.
	SpawnRate float64
	// MaxParticles caps the live set.
	MaxParticles int
	// Dt is simulated seconds per tick, capped at MaxEmberDt. Zero means 1/30.
	Dt float64
	// Blur applies a 5-point smoothing pass after splatting.
	Blur bool
	// Normalize rescales the frame so its hottest cell sits at Max.
	Normalize bool

	particles []Particle
	acc       float64
	heat      []float64
}

func (e *Embers) Kind() Kind { return KindParticle }

// Particles returns the live particle set.
func (e *Embers) Particles() []Particle { return e.particles }

func (e *Embers) Seed(g *Grid, _ rng.Source) {
	g.Clear()
	e.particles = e.particles[:0]
	e.acc = 0
}

func (e *Embers) Step(cur *Grid, r rng.Source) *Grid {
	dt := e.Dt
	if dt <= 0 {
		dt = 1.0 / 30
	}
	dt = math.Min(dt, MaxEmberDt)

	e.acc += e.SpawnRate * dt
	for e.acc >= 1 {
		e.acc--
		if len(e.particles) >= e.MaxParticles {
			e.acc = 0
			break
		}
		e.particles = append(e.particles, e.spawn(cur, r))
	}

	live := e.particles[:0]
	for _, p := range e.particles {
		p.VX += (r.Float64() - 0.5) * 0.04
		p.VY += (r.Float64() - 0.5) * 0.02
		p.X += p.VX
		p.Y += p.VY
		p.Life -= dt
		if p.Life <= 0 || p.offGrid(cur.W, cur.H) {
			continue
		}
		live = append(live, p)
	}
	e.particles = live

	return e.splat(cur)
}

func (e *Embers) spawn(g *Grid, r rng.Source) Particle {
	life := 1 + r.Float64()*1.5
	return Particle{
		X:       r.Float64() * float64(g.W),
		Y:       float64(g.H - 1),
		VX:      (r.Float64() - 0.5) * 0.4,
		VY:      -(0.6 + r.Float64()*1.4),
		Life:    life,
		MaxLife: life,
		Kind:    KindEmber,
	}
}

// splat distributes each particle's heat bilinearly over its four nearest
// cells, then blurs and normalizes as configured.
func (e *Embers) splat(cur *Grid) *Grid {
	w, h := cur.W, cur.H
	if len(e.heat) != w*h {
		e.heat = make([]float64, w*h)
	}
	heat := e.heat
	for i := range heat {
		heat[i] = 0
	}
	add := func(x, y int, v float64) {
		if x >= 0 && y >= 0 && x < w && y < h {
			heat[y*w+x] += v
		}
	}
	for _, p := range e.particles {
		amount := p.Life + 0.3
		x0, y0 := math.Floor(p.X), math.Floor(p.Y)
		fx, fy := p.X-x0, p.Y-y0
		ix, iy := int(x0), int(y0)
		add(ix, iy, amount*(1-fx)*(1-fy))
		add(ix+1, iy, amount*fx*(1-fy))
		add(ix, iy+1, amount*(1-fx)*fy)
		add(ix+1, iy+1, amount*fx*fy)
	}
	if e.Blur {
		heat = blur5(heat, w, h)
	}

	out := NewGrid(w, h, cur.Max)
	scale := 1.0
	if e.Normalize {
		var peak float64
		for _, v := range heat {
			peak = math.Max(peak, v)
		}
		if peak > 0 {
			scale = cur.Max / peak
		}
	}
	for i, v := range heat {
		out.cells[i] = out.Clamp(v * scale)
	}
	return out
}

// blur5 is a centre-weighted 5-point blur normalised by the weights that
// actually land on the grid.
func blur5(src []float64, w, h int) []float64 {
	const centre, side = 0.6, 0.1
	out := make([]float64, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := src[y*w+x] * centre
			weight := centre
			if x > 0 {
				sum += src[y*w+x-1] * side
				weight += side
			}
			if x < w-1 {
				sum += src[y*w+x+1] * side
				weight += side
			}
			if y > 0 {
				sum += src[(y-1)*w+x] * side
				weight += side
			}
			if y < h-1 {
				sum += src[(y+1)*w+x] * side
				weight += side
			}
			out[y*w+x] = sum / weight
		}
	}
	return out
}

// ------------------------------------------------------------- fireworks

// Fireworks launches rockets from the bottom row that burst into sparks.
type Fireworks struct {
	// LaunchRate is the chance per tick of a new rocket.
	LaunchRate float64
	// ParticleCount is the number of sparks per burst.
	ParticleCount int
	// FadeRate is the life a spark loses per tick.
	FadeRate float64
	// Gravity is added to VY every tick. Values that are not positive use
	// DefaultGravity.
	Gravity float64
	// Drag is the fraction of velocity lost per tick, in [0, 1).
	Drag float64
	// Intensity is the brightest level as a fraction of Max (0 means 1).
	Intensity float64

	particles []Particle
}

func (f *Fireworks) Kind() Kind { return KindParticle }

// Particles returns the live particle set.
func (f *Fireworks) Particles() []Particle { return f.particles }

func (f *Fireworks) Seed(g *Grid, _ rng.Source) {
	g.Clear()
	f.particles = f.particles[:0]
}

// DefaultGravity applies when Fireworks.Gravity is not positive.
const DefaultGravity = 0.1

func (f *Fireworks) Step(cur *Grid, r rng.Source) *Grid {
	// Rockets need a downward pull to reach a peak.
	gravity := f.Gravity
	if !(gravity > 0) {
		gravity = DefaultGravity
	}
	drag := math.Min(math.Max(f.Drag, 0), 0.99)

	if rng.Chance(r, f.LaunchRate) {
		f.particles = append(f.particles, f.launch(cur, r, gravity))
	}

	var bursts []Particle
	live := f.particles[:0]
	for _, p := range f.particles {
		p.VX *= 1 - drag
		p.VY = p.VY*(1-drag) + gravity
		p.X += p.VX
		p.Y += p.VY

		switch p.Kind {
		case KindRocket:
			p.Life -= 1 / p.MaxLife
			if p.VY >= 0 || p.Life <= 0 {
				bursts = append(bursts, p)
				continue
			}
		default:
			p.Life -= f.FadeRate
		}
		if p.Life <= 0 || p.offGrid(cur.W, cur.H) {
			continue
		}
		live = append(live, p)
	}
	f.particles = live
	for _, b := range bursts {
		f.burst(b, cur, r)
	}

	intensity := f.Intensity
	if intensity <= 0 {
		intensity = 1
	}
	out := NewGrid(cur.W, cur.H, cur.Max)
	for _, p := range f.particles {
		x, y := int(math.Round(p.X)), int(math.Round(p.Y))
		if !out.InBounds(x, y) {
			continue
		}
		v := out.Max * intensity
		if p.Kind == KindSpark {
			v *= p.Life
		}
		if v > out.At(x, y) {
			out.Set(x, y, v)
		}
	}
	return out
}

// launch fires a rocket from the bottom row with enough upward speed to
// peak somewhere in the upper two thirds of the grid.
func (f *Fireworks) launch(g *Grid, r rng.Source, gravity float64) Particle {
	h := float64(g.H)
	peak := rng.Between(r, 0.3, 0.8) * h
	maxLife := 20 + r.Float64()*30
	return Particle{
		X:       rng.Between(r, 0.2, 0.8) * float64(g.W),
		Y:       h - 1,
		VX:      rng.Between(r, -0.3, 0.3),
		VY:      -math.Sqrt(2 * gravity * peak),
		Life:    1,
		MaxLife: maxLife,
		Kind:    KindRocket,
	}
}

func (f *Fireworks) burst(rocket Particle, g *Grid, r rng.Source) {
	n := f.ParticleCount
	if n <= 0 {
		return
	}
	if rocket.offGrid(g.W, g.H) {
		return
	}
	for i := 0; i < n; i++ {
		angle := 2*math.Pi*float64(i)/float64(n) + rng.Between(r, -0.2, 0.2)
		speed := rng.Between(r, 0.5, 1.5)
		f.particles = append(f.particles, Particle{
			X:       rocket.X,
			Y:       rocket.Y,
			VX:      math.Cos(angle) * speed,
			VY:      math.Sin(angle) * speed * 0.5,
			Life:    1,
			MaxLife: 1,
			Kind:    KindSpark,
		})
	}
}
