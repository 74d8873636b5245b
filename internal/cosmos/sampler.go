package cosmos

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// SampleRoot draws a parent universe from the fixed priors using rng. Draws
// happen in a fixed order so a stream in the same state always yields the
// same parent.
func (e *Engine) SampleRoot(rng *rand.Rand) *ParentUniverse {
	darkEnergy := darkEnergyPrior.draw(rng)
	matter := matterDensityPrior.draw(rng)
	baryon := baryonDensityPrior.draw(rng)
	hubble := hubblePrior.draw(rng)
	spectralIndex := spectralIndexPrior.draw(rng)
	curvature := curvatures[rng.IntN(len(curvatures))]
	dimensions := MinDimensions + rng.IntN(MaxDimensions-MinDimensions+1)
	suffix := rng.IntN(idSuffixModulus)

	now := e.clock()
	root := &ParentUniverse{
		ID:             fmt.Sprintf("PU-%s-%04d", now.UTC().Format(idTimeLayout), suffix),
		CreatedAt:      now,
		DarkEnergy:     darkEnergy,
		MatterDensity:  matter,
		BaryonDensity:  baryon,
		HubbleConstant: hubble,
		SpectralIndex:  spectralIndex,
		PowerSpectrum:  PowerSpectrum(spectralIndex),
		Curvature:      curvature,
		Dimensions:     dimensions,
	}

	e.logger.Debug("Parent universe sampled",
		"component", "sampler",
		"parent_id", root.ID,
		"dark_energy", root.DarkEnergy,
		"matter_density", root.MatterDensity,
		"hubble_constant", root.HubbleConstant,
		"curvature", root.Curvature.String(),
		"dimensions", root.Dimensions,
	)
	return root
}

// SampleRootSeed builds a fresh stream for seed and samples a parent from it.
func (e *Engine) SampleRootSeed(seed int64) (*ParentUniverse, error) {
	rng, err := e.newStream(seed)
	if err != nil {
		return nil, err
	}
	return e.SampleRoot(rng), nil
}

// LogSpace returns n points spaced evenly on a log10 scale from min to max
// inclusive.
func LogSpace(min, max float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{min}
	}
	lo, hi := math.Log10(min), math.Log10(max)
	step := (hi - lo) / float64(n-1)
	points := make([]float64, n)
	for i := range points {
		points[i] = math.Pow(10, lo+float64(i)*step)
	}
	return points
}

// PowerSpectrum evaluates k^(ns-1) over the fixed wavenumber domain.
func PowerSpectrum(spectralIndex float64) []float64 {
	ks := LogSpace(SpectrumMinK, SpectrumMaxK, SpectrumPoints)
	for i, k := range ks {
		ks[i] = math.Pow(k, spectralIndex-1)
	}
	return ks
}
