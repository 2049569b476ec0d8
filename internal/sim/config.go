// internal/sim/config.go
//
// Config is the plain record of tunables for one animation: which variant,
// how big, how fast, which palette and the per-variant parameters.
// ForScore layers the score tables on top of a variant's defaults.

package sim

import (
	"errors"
	"fmt"

	"github.com/higherpwned/server/internal/rng"
)

// Variant names a stock animation.
type Variant string

const (
	VariantFire      Variant = "fire"
	VariantDoom      Variant = "doom"
	VariantBlock     Variant = "block"
	VariantEmbers    Variant = "embers"
	VariantFireworks Variant = "fireworks"
	VariantLife      Variant = "life"
)

// Variants lists every stock variant in display order.
var Variants = []Variant{VariantFire, VariantDoom, VariantBlock, VariantEmbers, VariantFireworks, VariantLife}

// ErrUnknownVariant is returned for names outside Variants.
var ErrUnknownVariant = errors.New("sim: unknown variant")

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownVariant, s)
}

// Config describes one animation.
type Config struct {
	Variant       Variant
	Width, Height int
	FPS           int
	Max           float64
	Palette       Palette

	Fire      Fire
	Life      Life
	Embers    Embers
	Fireworks Fireworks
}

// Defaults returns the stock tuning of a variant at the given size.
func Defaults(v Variant, w, h int) (Config, error) {
	c := Config{Variant: v, Width: w, Height: h, FPS: 30, Max: 1}
	switch v {
	case VariantFire:
		c.Palette = FirePalette
		c.Fire = Fire{DecayMax: 0.1, SparkRate: 0.75, Flicker: 0.15, DriftRange: 1}
	case VariantDoom:
		c.Max = 36
		c.Palette = FirePalette
		c.Fire = Fire{
			Weights:    [3]float64{1, 0, 0},
			DecayMax:   2,
			DriftRange: 1,
			SparkRate:  1,
			Wrap:       true,
			Quantize:   true,
		}
	case VariantBlock:
		c.Max = 15
		c.Palette = BlockFirePalette
		size := max(w/8, 1)
		c.Fire = Fire{
			Weights:    [3]float64{2, 1, 1},
			DecayMax:   4,
			SparkRate:  0.6,
			Flicker:    3,
			Quantize:   true,
			HeatSource: &Square{X: (w - size) / 2, Y: h - size, Size: size},
		}
	case VariantEmbers:
		c.Palette = FirePalette
		c.Embers = Embers{SpawnRate: 40, MaxParticles: 200, Blur: true, Normalize: true}
	case VariantFireworks:
		c.FPS = 20
		c.Palette = FireworksPalette
		c.Fireworks = Fireworks{LaunchRate: 0.01, ParticleCount: 12, FadeRate: 0.03, Drag: 0.02}
	case VariantLife:
		c.FPS = 10
		c.Palette = LifePalette
		c.Life = Life{Density: DefaultDensity}
	default:
		return Config{}, fmt.Errorf("%w %q", ErrUnknownVariant, v)
	}
	return c, nil
}

// ForScore returns the variant's defaults with the score table applied.
// Variants without a table ignore the score, and scores below a table's
// first threshold keep the defaults.
func ForScore(v Variant, score, w, h int) (Config, error) {
	c, err := Defaults(v, w, h)
	if err != nil {
		return c, err
	}
	switch {
	case v == VariantFire && score >= FireByScore[0].Min:
		t := FireForScore(score)
		c.Fire.DecayMax = t.Decay
		c.Fire.SparkRate = t.SparkRate
		c.Fire.Cooling = t.Cooling
		c.FPS = t.FPS
	case v == VariantFireworks && score >= FireworksByScore[0].Min:
		t := FireworksForScore(score)
		c.Fireworks.LaunchRate = t.LaunchRate
		c.Fireworks.ParticleCount = t.ParticleCount
		c.Fireworks.FadeRate = t.FadeRate
		c.FPS = t.FPS
	}
	return c, nil
}

// Rule builds a fresh rule instance from the config's parameters.
func (c Config) Rule() Rule {
	switch c.Variant {
	case VariantEmbers:
		e := Embers{
			SpawnRate:    c.Embers.SpawnRate,
			MaxParticles: c.Embers.MaxParticles,
			Dt:           c.Embers.Dt,
			Blur:         c.Embers.Blur,
			Normalize:    c.Embers.Normalize,
		}
		if e.Dt == 0 && c.FPS > 0 {
			e.Dt = 1 / float64(c.FPS)
		}
		return &e
	case VariantFireworks:
		f := c.Fireworks
		f.particles = nil
		return &f
	case VariantLife:
		l := c.Life
		l.buf = nil
		return &l
	default:
		f := c.Fire
		f.buf = nil
		if f.HeatSource != nil {
			hs := *f.HeatSource
			f.HeatSource = &hs
		}
		return &f
	}
}

// Build returns a seeded simulation.
func (c Config) Build(r rng.Source) *Simulation {
	return New(c.Width, c.Height, c.Max, c.Rule(), c.Palette, r)
}

// Retune copies the score-dependent tunables of c onto a running rule so an
// animation can follow the score without restarting. It reports false when
// r is not the kind of rule c builds.
func (c Config) Retune(r Rule) bool {
	switch rule := r.(type) {
	case *Fire:
		switch c.Variant {
		case VariantFire, VariantDoom, VariantBlock:
		default:
			return false
		}
		rule.DecayMax = c.Fire.DecayMax
		rule.SparkRate = c.Fire.SparkRate
		rule.Cooling = c.Fire.Cooling
	case *Fireworks:
		if c.Variant != VariantFireworks {
			return false
		}
		rule.LaunchRate = c.Fireworks.LaunchRate
		rule.ParticleCount = c.Fireworks.ParticleCount
		rule.FadeRate = c.Fireworks.FadeRate
	case *Embers:
		if c.Variant != VariantEmbers {
			return false
		}
		rule.SpawnRate = c.Embers.SpawnRate
	case *Life:
		return c.Variant == VariantLife
	default:
		return false
	}
	return true
}
