// Package sketchrand provides the pluggable, seedable uniform random source
// used by the frequency sketch's purge-sampling and the req sketch's
// compaction coin flips.
//
// Callers that need reproducible behavior for testing seed a PCG
// deterministically; no example repo in the retrieval pack reaches for a
// third-party RNG library even for much larger Monte-Carlo test suites
// (axiomhq/hyperloglog's zipf-distributed tests and benitolopez's bench
// tests both use math/rand directly), so this wraps math/rand/v2 rather
// than inventing a dependency the corpus itself doesn't use.
package sketchrand

import "math/rand/v2"

// UniformRng is the capability a sketch needs from a random source: a
// uniform float in [0, 1) and a uniform integer in [0, n).
type UniformRng interface {
	Float64() float64
	IntN(n int) int
}

// PCG is the default UniformRng, backed by math/rand/v2's PCG source.
type PCG struct {
	r *rand.Rand
}

// NewPCG builds a PCG-backed UniformRng seeded deterministically from the
// two given seed words. Same seed, same sequence, every time.
func NewPCG(seed1, seed2 uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed1, seed2))}
}

func (p *PCG) Float64() float64 { return p.r.Float64() }

func (p *PCG) IntN(n int) int { return p.r.IntN(n) }
