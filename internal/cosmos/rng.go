package cosmos

import (
	"fmt"
	"math/rand/v2"
)

// streamSeq is the fixed PCG sequence for base streams. Sub-streams use a
// sequence derived from the generation and index instead.
const streamSeq = 0x9e3779b97f4a7c15

// ValidateSeed reports whether seed is usable as a stream seed.
func ValidateSeed(seed int64) error {
	if seed < 0 || seed > MaxSeed {
		return fmt.Errorf("%w: malformed seed %d (must be in [0, %d])", ErrInvalidArgument, seed, int64(MaxSeed))
	}
	return nil
}

// NewStream returns a caller-owned deterministic random stream for seed.
// Two streams built from the same seed produce identical draws.
func NewStream(seed int64) (*rand.Rand, error) {
	if err := ValidateSeed(seed); err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(uint64(seed), streamSeq)), nil
}

// SubStream returns an independent stream for the child at (generation, index)
// of a run seeded with seed. The stream depends only on its three inputs, so
// children can be derived in any order or concurrently.
func SubStream(seed int64, generation, index int) *rand.Rand {
	seq := uint64(generation)<<32 | uint64(uint32(index))
	return rand.New(rand.NewPCG(uint64(seed), seq^streamSeq))
}

type normalPrior struct {
	mean   float64
	stddev float64
}

func (p normalPrior) draw(rng *rand.Rand) float64 {
	return p.mean + p.stddev*rng.NormFloat64()
}

func normal(rng *rand.Rand, mean, stddev float64) float64 {
	return mean + stddev*rng.NormFloat64()
}
