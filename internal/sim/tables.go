package sim

import "sort"

// Step is one row of a threshold table: Value applies from score Min upward.
type Step[T any] struct {
	Min   int
	Value T
}

// Table maps a score to the entry with the highest Min not above it.
// Scores below the first threshold get the first entry. Rows must be sorted
// by Min.
type Table[T any] []Step[T]

// Lookup returns the value for score. An empty table yields the zero value.
func (t Table[T]) Lookup(score int) T {
	var zero T
	if len(t) == 0 {
		return zero
	}
	i := sort.Search(len(t), func(i int) bool { return t[i].Min > score })
	if i == 0 {
		return t[0].Value
	}
	return t[i-1].Value
}

// FireTuning is the score-driven part of the fire config.
type FireTuning struct {
	Decay     float64 `json:"decay"`
	SparkRate float64 `json:"sparkRate"`
	Cooling   float64 `json:"cooling"`
	FPS       int     `json:"fps"`
}

// FireworksTuning is the score-driven part of the fireworks config.
type FireworksTuning struct {
	LaunchRate    float64 `json:"launchRate"`
	ParticleCount int     `json:"particleCount"`
	FadeRate      float64 `json:"fadeRate"`
	FPS           int     `json:"fps"`
}

// The fire grows hotter and faster as the score climbs.
var FireByScore = Table[FireTuning]{
	{1, FireTuning{Decay: 0.1, SparkRate: 0, Cooling: 0, FPS: 24}},
	{5, FireTuning{Decay: 0.5, SparkRate: 0.25, Cooling: 0, FPS: 26}},
	{10, FireTuning{Decay: 0.2, SparkRate: 0.75, Cooling: 0, FPS: 28}},
	{15, FireTuning{Decay: 0.1, SparkRate: 0.75, Cooling: 0, FPS: 30}},
	{20, FireTuning{Decay: 0.05, SparkRate: 0.75, Cooling: 0, FPS: 32}},
	{25, FireTuning{Decay: 0.02, SparkRate: 0.8, Cooling: 0, FPS: 34}},
	{30, FireTuning{Decay: 0.01, SparkRate: 0.8, Cooling: 0, FPS: 36}},
	{35, FireTuning{Decay: 0.01, SparkRate: 0.9, Cooling: 0, FPS: 38}},
	{40, FireTuning{Decay: 0.01, SparkRate: 1, Cooling: 0, FPS: 40}},
	{45, FireTuning{Decay: 0, SparkRate: 1, Cooling: 0, FPS: 40}},
}

var FireworksByScore = Table[FireworksTuning]{
	{1, FireworksTuning{LaunchRate: 0.01, ParticleCount: 12, FadeRate: 0.03, FPS: 20}},
	{10, FireworksTuning{LaunchRate: 0.01, ParticleCount: 12, FadeRate: 0.03, FPS: 20}},
	{15, FireworksTuning{LaunchRate: 0.02, ParticleCount: 16, FadeRate: 0.025, FPS: 22}},
	{20, FireworksTuning{LaunchRate: 0.03, ParticleCount: 20, FadeRate: 0.02, FPS: 24}},
	{25, FireworksTuning{LaunchRate: 0.04, ParticleCount: 24, FadeRate: 0.02, FPS: 26}},
	{30, FireworksTuning{LaunchRate: 0.05, ParticleCount: 28, FadeRate: 0.018, FPS: 28}},
	{35, FireworksTuning{LaunchRate: 0.06, ParticleCount: 32, FadeRate: 0.016, FPS: 30}},
	{40, FireworksTuning{LaunchRate: 0.07, ParticleCount: 36, FadeRate: 0.014, FPS: 32}},
	{45, FireworksTuning{LaunchRate: 0.08, ParticleCount: 40, FadeRate: 0.012, FPS: 34}},
}

// FireForScore looks up the fire tuning for score.
func FireForScore(score int) FireTuning { return FireByScore.Lookup(score) }

// FireworksForScore looks up the fireworks tuning for score.
func FireworksForScore(score int) FireworksTuning { return FireworksByScore.Lookup(score) }
