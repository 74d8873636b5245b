package population

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/metrics"
	"multiverse-server/internal/shared/config"
	"multiverse-server/internal/shared/errors"

	"github.com/google/uuid"
)

type Service struct {
	store   Store
	cache   Cache
	engine  *cosmos.Engine
	limits  config.SimulationConfig
	metrics *metrics.Recorder
	logger  *slog.Logger
}

func NewService(store Store, cache Cache, engine *cosmos.Engine, limits config.SimulationConfig, recorder *metrics.Recorder, logger *slog.Logger) *Service {
	logger.Debug("Initializing population service")

	if cache == nil {
		cache = NewMemoryCache()
	}

	return &Service{
		store:   store,
		cache:   cache,
		engine:  engine,
		limits:  limits,
		metrics: recorder,
		logger:  logger,
	}
}

// resolved is a CreateRequest with defaults applied and limits checked.
type resolved struct {
	generations int
	children    int
	seed        int64
	parallel    bool
	workers     int
}

func (s *Service) resolve(req CreateRequest) (resolved, error) {
	r := resolved{
		generations: s.limits.DefaultGenerations,
		children:    s.limits.DefaultChildrenPerGeneration,
		seed:        s.limits.DefaultSeed,
		parallel:    req.Parallel,
		workers:     req.Workers,
	}
	if req.Generations != nil {
		r.generations = *req.Generations
	}
	if req.ChildrenPerGeneration != nil {
		r.children = *req.ChildrenPerGeneration
	}
	if req.Seed != nil {
		r.seed = *req.Seed
	}

	if err := cosmos.ValidateCounts(r.generations, r.children); err != nil {
		return r, classify("invalid population request", err)
	}
	if err := cosmos.ValidateSeed(r.seed); err != nil {
		return r, classify("invalid population request", err)
	}
	if s.limits.MaxGenerations > 0 && r.generations > s.limits.MaxGenerations {
		return r, errors.Validationf("generations %d exceeds the limit of %d", r.generations, s.limits.MaxGenerations)
	}
	if s.limits.MaxChildrenPerGeneration > 0 && r.children > s.limits.MaxChildrenPerGeneration {
		return r, errors.Validationf("children per generation %d exceeds the limit of %d", r.children, s.limits.MaxChildrenPerGeneration)
	}
	if s.limits.MaxGridCells > 0 && exceedsGridBudget(r.generations, r.children, s.limits.MaxGridCells) {
		return r, errors.Validationf("%d generations of %d children exceed the limit of %d grid cells",
			r.generations, r.children, s.limits.MaxGridCells)
	}

	if r.parallel {
		if r.workers == 0 {
			r.workers = max(s.limits.DefaultWorkers, 1)
		}
		if r.workers < 1 || (s.limits.MaxWorkers > 0 && r.workers > s.limits.MaxWorkers) {
			return r, errors.Validationf("workers must be between 1 and %d", s.limits.MaxWorkers)
		}
	}
	return r, nil
}

// exceedsGridBudget reports whether a population of the given shape carries
// more than limit density grid cells across all of its children.
func exceedsGridBudget(generations, children int, limit int64) bool {
	if children == 0 {
		return false
	}
	var n int64
	for g := 1; g <= generations; g++ {
		side := int64(cosmos.GridSide(g))
		per := side * side
		if int64(children) > (limit-n)/per {
			return true
		}
		n += int64(children) * per
	}
	return false
}

// classify maps simulation errors onto application errors. Invalid arguments
// become validation errors, empty populations become unprocessable and
// anything else is internal. Errors that are already classified pass through.
func classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	switch {
	case stderrors.Is(err, cosmos.ErrInvalidArgument):
		return errors.WrapValidation(message, err)
	case stderrors.Is(err, cosmos.ErrEmptyPopulation):
		return errors.WrapUnprocessable(message, err)
	default:
		return errors.WrapInternal(message, err)
	}
}

// Create generates a population, stores it and returns its record together
// with its statistics. An empty population is stored without statistics.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	r, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(
		"component", "population_service",
		"operation", "create",
		"generations", r.generations,
		"children_per_generation", r.children,
		"seed", r.seed,
		"parallel", r.parallel,
	)
	logger.Info("Creating population")

	start := time.Now()
	var pop *cosmos.Population
	if r.parallel {
		pop, err = s.engine.BuildPopulationParallel(ctx, r.generations, r.children, r.seed, r.workers)
	} else {
		pop, err = s.engine.BuildPopulation(ctx, r.generations, r.children, r.seed)
	}
	if err != nil {
		return nil, classify("failed to build population", err)
	}
	s.metrics.PopulationBuilt(r.parallel, pop.TotalUniverses(), time.Since(start))

	record := NewRecord(uuid.NewString(), pop, r.children, r.parallel, time.Now().UTC())
	if err := s.store.Save(ctx, record, pop); err != nil {
		return nil, errors.WrapInternal("failed to save population", err)
	}

	result := &CreateResult{Record: record}
	stats, err := cosmos.Summarize(pop)
	switch {
	case err == nil:
		result.Statistics = stats
		if err := s.cache.SetStatistics(ctx, record.ID, stats); err != nil {
			logger.Warn("Failed to cache statistics", "population_id", record.ID, "error", err)
		}
	case stderrors.Is(err, cosmos.ErrEmptyPopulation):
		logger.Debug("Population has no child universes, statistics omitted", "population_id", record.ID)
	default:
		return nil, classify("failed to summarize population", err)
	}

	logger.Info("Population created",
		"population_id", record.ID,
		"total_universes", record.TotalUniverses,
		"duration", time.Since(start))
	return result, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Stored, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.store.List(ctx)
}

// Children returns the children of one generation, or an empty slice when
// the population has no such generation.
func (s *Service) Children(ctx context.Context, id string, generation int) ([]cosmos.ChildUniverse, error) {
	stored, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	children := stored.Population.Children(generation)
	if children == nil {
		children = []cosmos.ChildUniverse{}
	}
	return children, nil
}

// Statistics returns cached statistics when available and otherwise
// summarises the stored population.
func (s *Service) Statistics(ctx context.Context, id string) (*cosmos.Statistics, error) {
	logger := s.logger.With("component", "population_service", "operation", "statistics", "population_id", id)

	stats, ok, err := s.cache.GetStatistics(ctx, id)
	if err != nil {
		logger.Warn("Statistics cache unavailable", "error", err)
	}
	s.metrics.CacheLookup(ok)
	if ok {
		logger.Debug("Statistics served from cache")
		return stats, nil
	}

	stored, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err = cosmos.Summarize(stored.Population)
	if err != nil {
		if stderrors.Is(err, cosmos.ErrEmptyPopulation) {
			s.metrics.EmptySummary()
		}
		return nil, classify(fmt.Sprintf("cannot summarize population %s", id), err)
	}

	if err := s.cache.SetStatistics(ctx, id, stats); err != nil {
		logger.Warn("Failed to cache statistics", "error", err)
	}
	return stats, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	logger := s.logger.With("component", "population_service", "operation", "delete", "population_id", id)
	logger.Info("Deleting population")

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.Warn("Failed to invalidate cached statistics", "error", err)
	}
	return nil
}
