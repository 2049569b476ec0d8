// internal/rng/rng.go
//
// Injectable random source shared by the animation engine and the game.
// Everything stochastic (decay, sparks, drift, particle spawns, password picks)
// draws from a Source so tests can replay a run from a fixed seed.

package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Source is the subset of *rand.Rand the rest of the module relies on.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// New returns a deterministic PCG-backed source for the given seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRandom returns a source seeded from crypto/rand.
func NewRandom() *rand.Rand {
	return New(Seed())
}

// Seed reads a fresh 64-bit seed from crypto/rand.
func Seed() uint64 {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Between returns a value in [lo, hi).
func Between(r Source, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// Chance reports true with probability p. p <= 0 never fires, p >= 1 always does.
func Chance(r Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// Sequence is a Source that replays fixed values. Float64 cycles through
// Floats; IntN cycles through Ints reduced modulo n. Intended for tests.
type Sequence struct {
	Floats []float64
	Ints   []int
	fi, ii int
}

// Float64 returns the next scripted float, or 0 if none are scripted.
func (s *Sequence) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

// IntN returns the next scripted int modulo n, or 0 if none are scripted.
func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to IntN")
	}
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	return ((v % n) + n) % n
}
