package cosmos

import (
	"encoding/json"
	"time"
)

type Curvature int

const (
	CurvatureOpen   Curvature = -1
	CurvatureFlat   Curvature = 0
	CurvatureClosed Curvature = 1
)

var curvatures = []Curvature{CurvatureOpen, CurvatureFlat, CurvatureClosed}

func (c Curvature) String() string {
	switch c {
	case CurvatureOpen:
		return "open"
	case CurvatureFlat:
		return "flat"
	case CurvatureClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParentUniverse is the root of a population. Its sampled parameters are
// never clamped, so slightly non-physical values are possible.
type ParentUniverse struct {
	ID             string    `json:"id" yaml:"id"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	DarkEnergy     float64   `json:"dark_energy" yaml:"dark_energy"`
	MatterDensity  float64   `json:"matter_density" yaml:"matter_density"`
	BaryonDensity  float64   `json:"baryon_density" yaml:"baryon_density"`
	HubbleConstant float64   `json:"hubble_constant" yaml:"hubble_constant"`
	SpectralIndex  float64   `json:"spectral_index" yaml:"spectral_index"`
	PowerSpectrum  []float64 `json:"power_spectrum" yaml:"power_spectrum,flow"`
	Curvature      Curvature `json:"curvature" yaml:"curvature"`
	Dimensions     int       `json:"dimensions" yaml:"dimensions"`
}

// ChildUniverse is derived from a parent for one (generation, index) pair.
type ChildUniverse struct {
	ID             string      `json:"id" yaml:"id"`
	ParentID       string      `json:"parent_id" yaml:"parent_id"`
	Generation     int         `json:"generation" yaml:"generation"`
	Index          int         `json:"index" yaml:"index"`
	CreatedAt      time.Time   `json:"created_at" yaml:"created_at"`
	LocalDensity   float64     `json:"local_density" yaml:"local_density"`
	ExpansionRate  float64     `json:"expansion_rate" yaml:"expansion_rate"`
	Temperature    float64     `json:"temperature" yaml:"temperature"`
	Age            float64     `json:"age" yaml:"age"`
	MatterGrid     [][]float64 `json:"matter_grid" yaml:"matter_grid,flow"`
	FieldVariance  float64     `json:"field_variance" yaml:"field_variance"`
	StabilityIndex float64     `json:"stability_index" yaml:"stability_index"`
}

// Generation groups the children of one depth level in index order.
type Generation struct {
	Number   int             `json:"generation" yaml:"generation"`
	Children []ChildUniverse `json:"children" yaml:"children"`
}

// Population is the complete output of one run. It is immutable after
// construction; accessors return the stored values without copying grids.
type Population struct {
	seed            int64
	root            ParentUniverse
	generations     []Generation
	timeline        []float64
	totalMassEnergy float64
}

// NewPopulation assembles a population from already-derived entities and
// recomputes the timeline and total mass-energy. Generations must be ordered
// so that generations[i].Number == i+1.
func NewPopulation(seed int64, root ParentUniverse, generations []Generation) *Population {
	total := root.DarkEnergy + root.MatterDensity
	for _, gen := range generations {
		for _, child := range gen.Children {
			total += child.LocalDensity
		}
	}

	return &Population{
		seed:            seed,
		root:            root,
		generations:     generations,
		timeline:        EvolutionTimeline(),
		totalMassEnergy: total,
	}
}

func (p *Population) Seed() int64 { return p.seed }

func (p *Population) Root() ParentUniverse { return p.root }

// Children returns the children of generation g, or nil when the population
// has no such generation.
func (p *Population) Children(g int) []ChildUniverse {
	if g < 1 || g > len(p.generations) {
		return nil
	}
	return p.generations[g-1].Children
}

// Generations returns the generation records in ascending order.
func (p *Population) Generations() []Generation { return p.generations }

// Each calls fn for every generation in ascending order.
func (p *Population) Each(fn func(generation int, children []ChildUniverse)) {
	for _, gen := range p.generations {
		fn(gen.Number, gen.Children)
	}
}

func (p *Population) GenerationCount() int { return len(p.generations) }

func (p *Population) Timeline() []float64 { return p.timeline }

func (p *Population) TotalMassEnergy() float64 { return p.totalMassEnergy }

// ChildCount returns the number of child universes across all generations.
func (p *Population) ChildCount() int {
	n := 0
	for _, gen := range p.generations {
		n += len(gen.Children)
	}
	return n
}

// TotalUniverses counts the parent plus every child.
func (p *Population) TotalUniverses() int { return 1 + p.ChildCount() }

// AllChildren flattens every generation into one slice in production order.
func (p *Population) AllChildren() []ChildUniverse {
	all := make([]ChildUniverse, 0, p.ChildCount())
	for _, gen := range p.generations {
		all = append(all, gen.Children...)
	}
	return all
}

type populationJSON struct {
	Seed            int64          `json:"seed"`
	Parent          ParentUniverse `json:"parent"`
	Generations     []Generation   `json:"generations"`
	Timeline        []float64      `json:"timeline"`
	TotalMassEnergy float64        `json:"total_mass_energy"`
}

func (p *Population) MarshalJSON() ([]byte, error) {
	generations := p.generations
	if generations == nil {
		generations = []Generation{}
	}
	return json.Marshal(populationJSON{
		Seed:            p.seed,
		Parent:          p.root,
		Generations:     generations,
		Timeline:        p.timeline,
		TotalMassEnergy: p.totalMassEnergy,
	})
}

func (p *Population) UnmarshalJSON(data []byte) error {
	var raw populationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = *NewPopulation(raw.Seed, raw.Parent, raw.Generations)
	return nil
}

// EvolutionTimeline returns the time points 0, step, 2*step, ... up to and
// including UniverseAge.
func EvolutionTimeline() []float64 {
	n := int(UniverseAge/TimelineStep) + 1
	points := make([]float64, n)
	for i := range points {
		points[i] = float64(i) * TimelineStep
	}
	return points
}

type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

type GenerationStats struct {
	Generation    int     `json:"generation" yaml:"generation"`
	Count         int     `json:"count" yaml:"count"`
	MeanStability float64 `json:"mean_stability" yaml:"mean_stability"`
}

// Statistics summarises a population. Pooled fields cover every child
// universe regardless of generation.
type Statistics struct {
	TotalUniverses    int               `json:"total_universes" yaml:"total_universes"`
	MeanDensity       float64           `json:"mean_density" yaml:"mean_density"`
	StdDensity        float64           `json:"std_density" yaml:"std_density"`
	MeanTemperature   float64           `json:"mean_temperature" yaml:"mean_temperature"`
	MeanExpansionRate float64           `json:"mean_expansion_rate" yaml:"mean_expansion_rate"`
	MeanStability     float64           `json:"mean_stability" yaml:"mean_stability"`
	DensityRange      Range             `json:"density_range" yaml:"density_range"`
	ParentDarkEnergy  float64           `json:"parent_dark_energy" yaml:"parent_dark_energy"`
	ParentDimensions  int               `json:"parent_dimensions" yaml:"parent_dimensions"`
	TotalMassEnergy   float64           `json:"total_mass_energy" yaml:"total_mass_energy"`
	Generations       []GenerationStats `json:"generations" yaml:"generations"`
}
