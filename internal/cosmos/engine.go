package cosmos

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
)

const idTimeLayout = "20060102T150405.000000000"

// Engine samples parent universes and derives child generations from them.
// An Engine holds no random state; every call takes or creates its own stream.
type Engine struct {
	clock     func() time.Time
	logger    *slog.Logger
	newStream func(seed int64) (*rand.Rand, error)
}

type Option func(*Engine)

// WithClock overrides the clock used for identifiers and creation times.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:     time.Now,
		logger:    slog.Default(),
		newStream: NewStream,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeriveChild derives the child universe at (generation, index) from root.
// The perturbation of density and expansion rate grows linearly with
// generation; the draws are density, expansion, age and then the grid.
func (e *Engine) DeriveChild(rng *rand.Rand, root *ParentUniverse, generation, index int) (*ChildUniverse, error) {
	if generation < 1 {
		return nil, fmt.Errorf("%w: generation %d must be >= 1", ErrInvalidArgument, generation)
	}
	if index < 1 {
		return nil, fmt.Errorf("%w: index %d must be >= 1", ErrInvalidArgument, index)
	}

	g := float64(generation)
	density := clamp(root.MatterDensity+normal(rng, 0, densityFluctuationPerGen*g), MinDensity, MaxDensity)
	expansion := root.HubbleConstant * (1 + normal(rng, 0, expansionFluctuationPerGen*g))
	age := rng.Float64() * UniverseAge
	effectiveAge := math.Max(age, MinAgeFloor)

	// Unbounded as effectiveAge approaches its floor; kept as the model defines it.
	temperature := CMBTemperature * (root.HubbleConstant / expansion) * (UniverseAge / effectiveAge)

	grid := StandardizeGrid(randomGrid(rng, GridSide(generation)))

	now := e.clock()
	return &ChildUniverse{
		ID:             fmt.Sprintf("CU-%s-G%d-%03d", now.UTC().Format(idTimeLayout), generation, index),
		ParentID:       root.ID,
		Generation:     generation,
		Index:          index,
		CreatedAt:      now,
		LocalDensity:   density,
		ExpansionRate:  expansion,
		Temperature:    temperature,
		Age:            age,
		MatterGrid:     grid,
		FieldVariance:  FieldVariance(generation),
		StabilityIndex: StabilityIndex(generation),
	}, nil
}

// ValidateCounts rejects negative generation or children counts.
func ValidateCounts(generations, childrenPerGeneration int) error {
	if generations < 0 {
		return fmt.Errorf("%w: generations %d must be >= 0", ErrInvalidArgument, generations)
	}
	if childrenPerGeneration < 0 {
		return fmt.Errorf("%w: children per generation %d must be >= 0", ErrInvalidArgument, childrenPerGeneration)
	}
	return nil
}

// BuildPopulation samples a parent and derives generations 1..generations,
// each holding childrenPerGeneration children, from a single stream seeded
// with seed. Arguments are validated before the stream is created.
func (e *Engine) BuildPopulation(ctx context.Context, generations, childrenPerGeneration int, seed int64) (*Population, error) {
	if err := ValidateCounts(generations, childrenPerGeneration); err != nil {
		return nil, err
	}
	if err := ValidateSeed(seed); err != nil {
		return nil, err
	}

	logger := e.logger.With(
		"component", "generation_engine",
		"operation", "build_population",
		"generations", generations,
		"children_per_generation", childrenPerGeneration,
		"seed", seed,
	)
	logger.Debug("Building population")
	start := time.Now()

	rng, err := e.newStream(seed)
	if err != nil {
		return nil, err
	}

	root := e.SampleRoot(rng)
	gens := make([]Generation, 0, generations)
	for g := 1; g <= generations; g++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Population build cancelled", "generation", g, "error", err)
			return nil, err
		}

		children := make([]ChildUniverse, 0, childrenPerGeneration)
		for idx := 1; idx <= childrenPerGeneration; idx++ {
			child, err := e.DeriveChild(rng, root, g, idx)
			if err != nil {
				return nil, err
			}
			children = append(children, *child)
		}
		gens = append(gens, Generation{Number: g, Children: children})
	}

	population := NewPopulation(seed, *root, gens)
	logger.Info("Population built",
		"parent_id", root.ID,
		"total_universes", population.TotalUniverses(),
		"duration", time.Since(start),
	)
	return population, nil
}

// BuildPopulationParallel is like BuildPopulation but derives every child from
// its own sub-stream (see SubStream) using up to workers goroutines. Results
// are reproducible for a given seed and independent of workers, but differ
// from the sequential BuildPopulation output.
func (e *Engine) BuildPopulationParallel(ctx context.Context, generations, childrenPerGeneration int, seed int64, workers int) (*Population, error) {
	if err := ValidateCounts(generations, childrenPerGeneration); err != nil {
		return nil, err
	}
	if err := ValidateSeed(seed); err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("%w: workers %d must be >= 1", ErrInvalidArgument, workers)
	}

	logger := e.logger.With(
		"component", "generation_engine",
		"operation", "build_population_parallel",
		"generations", generations,
		"children_per_generation", childrenPerGeneration,
		"seed", seed,
		"workers", workers,
	)
	logger.Debug("Building population in parallel")
	start := time.Now()

	rng, err := e.newStream(seed)
	if err != nil {
		return nil, err
	}
	root := e.SampleRoot(rng)

	gens := make([]Generation, generations)
	for g := range gens {
		gens[g] = Generation{Number: g + 1, Children: make([]ChildUniverse, childrenPerGeneration)}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for g := 1; g <= generations; g++ {
		for idx := 1; idx <= childrenPerGeneration; idx++ {
			group.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				child, err := e.DeriveChild(SubStream(seed, g, idx), root, g, idx)
				if err != nil {
					return err
				}
				gens[g-1].Children[idx-1] = *child
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		logger.Warn("Parallel population build failed", "error", err)
		return nil, err
	}

	population := NewPopulation(seed, *root, gens)
	logger.Info("Population built",
		"parent_id", root.ID,
		"total_universes", population.TotalUniverses(),
		"duration", time.Since(start),
	)
	return population, nil
}

// GridSide is the side length of a child's matter grid.
func GridSide(generation int) int {
	return BaseGridSize + GridGrowth*generation
}

// FieldVariance decreases strictly with depth and stays in (0, 1].
func FieldVariance(generation int) float64 {
	return 1 / (1 + float64(generation))
}

// StabilityIndex decreases with depth and never drops below StabilityFloor.
func StabilityIndex(generation int) float64 {
	return math.Max(StabilityFloor, StabilityCeil-0.1*float64(generation)/5)
}

func randomGrid(rng *rand.Rand, side int) [][]float64 {
	grid := make([][]float64, side)
	for i := range grid {
		row := make([]float64, side)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		grid[i] = row
	}
	return grid
}

// StandardizeGrid shifts and scales grid in place to zero mean and unit
// population standard deviation. A constant grid is only centred.
func StandardizeGrid(grid [][]float64) [][]float64 {
	var sum float64
	n := 0
	for _, row := range grid {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return grid
	}
	mean := sum / float64(n)

	var sq float64
	for _, row := range grid {
		for _, v := range row {
			d := v - mean
			sq += d * d
		}
	}
	std := math.Sqrt(sq / float64(n))

	for _, row := range grid {
		for j, v := range row {
			if std == 0 {
				row[j] = v - mean
				continue
			}
			row[j] = (v - mean) / std
		}
	}
	return grid
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
