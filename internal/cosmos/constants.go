package cosmos

// Physical constants used by the heuristic model. Years are used as the time
// unit throughout.
const (
	UniverseAge     = 13.8e9
	TimelineStep    = 1e8
	CMBTemperature  = 2.725
	MinAgeFloor     = 1e6
	MinDensity      = 0.01
	MaxDensity      = 0.99
	BaseGridSize    = 20
	GridGrowth      = 5
	SpectrumPoints  = 100
	SpectrumMinK    = 0.001
	SpectrumMaxK    = 10.0
	MinDimensions   = 3
	MaxDimensions   = 11
	StabilityCeil   = 0.95
	StabilityFloor  = 0.1
	MaxSeed         = 1<<32 - 1
	idSuffixModulus = 10000
)

// Prior distributions for the parent universe.
var (
	darkEnergyPrior    = normalPrior{mean: 0.65, stddev: 0.05}
	matterDensityPrior = normalPrior{mean: 0.30, stddev: 0.03}
	baryonDensityPrior = normalPrior{mean: 0.049, stddev: 0.005}
	hubblePrior        = normalPrior{mean: 67, stddev: 3}
	spectralIndexPrior = normalPrior{mean: 0.96, stddev: 0.02}
)

// Perturbation scales per generation.
const (
	densityFluctuationPerGen   = 0.1
	expansionFluctuationPerGen = 0.15
)
