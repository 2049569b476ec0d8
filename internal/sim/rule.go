// internal/sim/rule.go
//
// Rule is the per-variant update step. There are three families:
//   - diffusion (Fire): every cell derives from its neighbours below.
//   - particle (Embers, Fireworks): a particle set is integrated and splatted.
//   - automaton (Life): discrete birth/survival on the 8-neighbourhood.
//
// A rule instance owns its particle set and scratch buffer, so one instance
// must drive one grid only. Step may hand back a grid that the call after next
// reuses as its output buffer; callers that keep old frames must Clone them.

package sim

import "github.com/higherpwned/server/internal/rng"

// Kind tags a rule's family.
type Kind string

const (
	KindDiffusion Kind = "diffusion"
	KindParticle  Kind = "particle"
	KindAutomaton Kind = "automaton"
)

// Rule advances a grid by one tick.
type Rule interface {
	Kind() Kind
	// Seed writes the initial state into g and drops any particles.
	Seed(g *Grid, r rng.Source)
	// Step returns the grid for the next tick.
	Step(cur *Grid, r rng.Source) *Grid
}
