package cosmos

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// Summarize computes pooled and per-generation statistics for p. It returns
// ErrEmptyPopulation when p has no child universes. Generations of width zero
// are reported with a zero count.
func Summarize(p *Population) (*Statistics, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil population", ErrInvalidArgument)
	}

	stats, err := pooled(p.Root(), p.AllChildren())
	if err != nil {
		return nil, err
	}

	stats.TotalMassEnergy = p.TotalMassEnergy()
	stats.Generations = make([]GenerationStats, 0, p.GenerationCount())
	p.Each(func(generation int, children []ChildUniverse) {
		gs := GenerationStats{Generation: generation, Count: len(children)}
		if len(children) > 0 {
			gs.MeanStability = mean(children, func(c ChildUniverse) float64 { return c.StabilityIndex })
		}
		stats.Generations = append(stats.Generations, gs)
	})
	return stats, nil
}

// SummarizeChildren computes the pooled statistics over children. The
// per-generation breakdown is grouped by each child's Generation field.
func SummarizeChildren(parent ParentUniverse, children []ChildUniverse) (*Statistics, error) {
	stats, err := pooled(parent, children)
	if err != nil {
		return nil, err
	}
	stats.Generations = breakdown(children)
	return stats, nil
}

func pooled(parent ParentUniverse, children []ChildUniverse) (*Statistics, error) {
	if len(children) == 0 {
		return nil, ErrEmptyPopulation
	}

	density := func(c ChildUniverse) float64 { return c.LocalDensity }
	meanDensity := mean(children, density)

	var sq float64
	densityRange := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, c := range children {
		d := c.LocalDensity - meanDensity
		sq += d * d
		densityRange.Min = math.Min(densityRange.Min, c.LocalDensity)
		densityRange.Max = math.Max(densityRange.Max, c.LocalDensity)
	}

	total := parent.DarkEnergy + parent.MatterDensity
	for _, c := range children {
		total += c.LocalDensity
	}

	return &Statistics{
		TotalUniverses:    1 + len(children),
		MeanDensity:       meanDensity,
		StdDensity:        math.Sqrt(sq / float64(len(children))),
		MeanTemperature:   mean(children, func(c ChildUniverse) float64 { return c.Temperature }),
		MeanExpansionRate: mean(children, func(c ChildUniverse) float64 { return c.ExpansionRate }),
		MeanStability:     mean(children, func(c ChildUniverse) float64 { return c.StabilityIndex }),
		DensityRange:      densityRange,
		ParentDarkEnergy:  parent.DarkEnergy,
		ParentDimensions:  parent.Dimensions,
		TotalMassEnergy:   total,
	}, nil
}

// breakdown groups children by generation in ascending order. Children with a
// generation below 1 are skipped.
func breakdown(children []ChildUniverse) []GenerationStats {
	type acc struct {
		count int
		sum   float64
	}

	groups := make(map[int]*acc)
	for _, c := range children {
		if c.Generation < 1 {
			continue
		}
		a, ok := groups[c.Generation]
		if !ok {
			a = &acc{}
			groups[c.Generation] = a
		}
		a.count++
		a.sum += c.StabilityIndex
	}

	out := make([]GenerationStats, 0, len(groups))
	for _, g := range slices.Sorted(maps.Keys(groups)) {
		a := groups[g]
		out = append(out, GenerationStats{
			Generation:    g,
			Count:         a.count,
			MeanStability: a.sum / float64(a.count),
		})
	}
	return out
}

func mean(children []ChildUniverse, field func(ChildUniverse) float64) float64 {
	var sum float64
	for _, c := range children {
		sum += field(c)
	}
	return sum / float64(len(children))
}
