package population

import (
	"context"
	"time"

	"multiverse-server/internal/cosmos"
)

// Record describes one stored population run without its entities.
type Record struct {
	ID                    string    `json:"id" yaml:"id"`
	Seed                  int64     `json:"seed" yaml:"seed"`
	Generations           int       `json:"generations" yaml:"generations"`
	ChildrenPerGeneration int       `json:"children_per_generation" yaml:"children_per_generation"`
	Parallel              bool      `json:"parallel" yaml:"parallel"`
	ParentID              string    `json:"parent_id" yaml:"parent_id"`
	TotalUniverses        int       `json:"total_universes" yaml:"total_universes"`
	TotalMassEnergy       float64   `json:"total_mass_energy" yaml:"total_mass_energy"`
	CreatedAt             time.Time `json:"created_at" yaml:"created_at"`
}

// CreateRequest is the input for a new run. Nil fields fall back to the
// configured defaults.
type CreateRequest struct {
	Generations           *int   `json:"generations" yaml:"generations"`
	ChildrenPerGeneration *int   `json:"children_per_generation" yaml:"children_per_generation"`
	Seed                  *int64 `json:"seed" yaml:"seed"`
	Parallel              bool   `json:"parallel" yaml:"parallel"`
	Workers               int    `json:"workers" yaml:"workers"`
}

// CreateResult is returned after a run has been generated and stored.
// Statistics is nil when the population has no child universes.
type CreateResult struct {
	Record     Record             `json:"record"`
	Statistics *cosmos.Statistics `json:"statistics"`
}

// Stored pairs a record with its reconstructed population.
type Stored struct {
	Record     Record
	Population *cosmos.Population
}

// Store persists populations. Implementations must keep generation and index
// order intact so that a reloaded population summarises identically.
type Store interface {
	Save(ctx context.Context, record Record, pop *cosmos.Population) error
	Get(ctx context.Context, id string) (*Stored, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
}

// Cache holds computed statistics keyed by population ID.
type Cache interface {
	GetStatistics(ctx context.Context, id string) (*cosmos.Statistics, bool, error)
	SetStatistics(ctx context.Context, id string, stats *cosmos.Statistics) error
	Invalidate(ctx context.Context, id string) error
}

// NewRecord builds the record for a freshly generated population.
// childrenPerGeneration is passed explicitly because a population without
// generations cannot report it.
func NewRecord(id string, pop *cosmos.Population, childrenPerGeneration int, parallel bool, createdAt time.Time) Record {
	return Record{
		ID:                    id,
		Seed:                  pop.Seed(),
		Generations:           pop.GenerationCount(),
		ChildrenPerGeneration: childrenPerGeneration,
		Parallel:              parallel,
		ParentID:              pop.Root().ID,
		TotalUniverses:        pop.TotalUniverses(),
		TotalMassEnergy:       pop.TotalMassEnergy(),
		CreatedAt:             createdAt,
	}
}

// EmptyGenerations returns n generation records numbered 1..n with no
// children, ready to be filled by a store while loading.
func EmptyGenerations(n, capacity int) []cosmos.Generation {
	gens := make([]cosmos.Generation, n)
	for i := range gens {
		gens[i] = cosmos.Generation{Number: i + 1, Children: make([]cosmos.ChildUniverse, 0, capacity)}
	}
	return gens
}
