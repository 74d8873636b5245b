package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/population"
)

func printParent(w io.Writer, p cosmos.ParentUniverse) {
	fmt.Fprintf(w, "Parent universe %s\n", p.ID)
	fmt.Fprintf(w, "  Dark energy:       %.4f\n", p.DarkEnergy)
	fmt.Fprintf(w, "  Matter density:    %.4f\n", p.MatterDensity)
	fmt.Fprintf(w, "  Baryon density:    %.4f\n", p.BaryonDensity)
	fmt.Fprintf(w, "  Hubble constant:   %.2f km/s/Mpc\n", p.HubbleConstant)
	fmt.Fprintf(w, "  Spectral index:    %.4f\n", p.SpectralIndex)
	fmt.Fprintf(w, "  Curvature:         %s\n", p.Curvature)
	fmt.Fprintf(w, "  Dimensions:        %d\n", p.Dimensions)
}

func printGenerateReport(w io.Writer, stored *population.Stored, stats *cosmos.Statistics) {
	rec := stored.Record
	fmt.Fprintf(w, "Population %s\n", rec.ID)
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "  Seed: %d  Generations: %d  Children/generation: %d  Parallel: %t\n",
		rec.Seed, rec.Generations, rec.ChildrenPerGeneration, rec.Parallel)
	fmt.Fprintln(w)

	printParent(w, stored.Population.Root())
	fmt.Fprintln(w)

	if stats == nil {
		fmt.Fprintln(w, "No child universes were generated; statistics are undefined.")
		return
	}
	printStatistics(w, stats)
}

func printStatistics(w io.Writer, s *cosmos.Statistics) {
	fmt.Fprintln(w, "Statistics")
	fmt.Fprintln(w, "----------")
	fmt.Fprintf(w, "  Total universes:      %d\n", s.TotalUniverses)
	fmt.Fprintf(w, "  Mean density:         %.4f (std %.4f)\n", s.MeanDensity, s.StdDensity)
	fmt.Fprintf(w, "  Density range:        %.4f .. %.4f\n", s.DensityRange.Min, s.DensityRange.Max)
	fmt.Fprintf(w, "  Mean temperature:     %.4f K\n", s.MeanTemperature)
	fmt.Fprintf(w, "  Mean expansion rate:  %.4f\n", s.MeanExpansionRate)
	fmt.Fprintf(w, "  Mean stability:       %.4f\n", s.MeanStability)
	fmt.Fprintf(w, "  Total mass-energy:    %.4f\n", s.TotalMassEnergy)
	fmt.Fprintf(w, "  Parent dark energy:   %.4f  dimensions: %d\n", s.ParentDarkEnergy, s.ParentDimensions)

	if len(s.Generations) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  GENERATION\tCHILDREN\tMEAN STABILITY")
	for _, g := range s.Generations {
		fmt.Fprintf(tw, "  %d\t%d\t%.4f\n", g.Generation, g.Count, g.MeanStability)
	}
	tw.Flush()
}

func printRecords(w io.Writer, records []population.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No archived populations.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEED\tGENERATIONS\tCHILDREN\tUNIVERSES\tCREATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.Seed, r.Generations, r.ChildrenPerGeneration, r.TotalUniverses, formatTime(r.CreatedAt))
	}
	tw.Flush()
}
