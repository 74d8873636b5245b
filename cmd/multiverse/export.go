package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/population"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// exportDocument is the JSON/YAML shape of an exported run.
type exportDocument struct {
	Record          population.Record     `json:"record" yaml:"record"`
	Parent          cosmos.ParentUniverse `json:"parent" yaml:"parent"`
	Generations     []cosmos.Generation   `json:"generations" yaml:"generations"`
	Timeline        []float64             `json:"timeline" yaml:"timeline,flow"`
	TotalMassEnergy float64               `json:"total_mass_energy" yaml:"total_mass_energy"`
	Statistics      *cosmos.Statistics    `json:"statistics,omitempty" yaml:"statistics,omitempty"`
}

type exportWriter func(w io.Writer, stored *population.Stored) error

var exportWriters = map[string]exportWriter{
	"json": func(w io.Writer, stored *population.Stored) error {
		return writeJSON(w, newExportDocument(stored))
	},
	"yaml": func(w io.Writer, stored *population.Stored) error {
		return writeYAML(w, newExportDocument(stored))
	},
	"csv": func(w io.Writer, stored *population.Stored) error {
		return writeCSV(w, stored.Population)
	},
}

var csvHeader = []string{
	"id", "parent_id", "generation", "index", "created_at",
	"local_density", "expansion_rate", "temperature", "age",
	"grid_side", "field_variance", "stability_index",
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export an archived population as JSON, YAML or CSV",
		Long: `Export writes an archived population to a file or stdout.

CSV output has one row per child universe; matter grids are omitted and
only their side length is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			write, ok := exportWriters[format]
			if !ok {
				return fmt.Errorf("unknown export format %q (want json, yaml or csv)", format)
			}

			ctx := cmd.Context()
			service, closeFn, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			stored, err := service.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if out == "" {
				return write(cmd.OutOrStdout(), stored)
			}
			return writeFile(out, func(w io.Writer) error { return write(w, stored) })
		},
	}

	cmd.Flags().String("format", "json", "Output format: json, yaml or csv")
	cmd.Flags().String("out", "", "Output file (default stdout)")
	addArchiveFlag(cmd, defaultArchivePath())
	return cmd
}

func newExportDocument(stored *population.Stored) exportDocument {
	pop := stored.Population
	doc := exportDocument{
		Record:          stored.Record,
		Parent:          pop.Root(),
		Generations:     pop.Generations(),
		Timeline:        pop.Timeline(),
		TotalMassEnergy: pop.TotalMassEnergy(),
	}
	if stats, err := cosmos.Summarize(pop); err == nil {
		doc.Statistics = stats
	}
	return doc
}

// writeFile creates path and hands it to fn. The close error is returned when
// fn succeeds, since a failed flush leaves a truncated file.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return fn(f)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func writeCSV(w io.Writer, pop *cosmos.Population) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, c := range pop.AllChildren() {
		row := []string{
			c.ID,
			c.ParentID,
			strconv.Itoa(c.Generation),
			strconv.Itoa(c.Index),
			formatTime(c.CreatedAt),
			formatFloat(c.LocalDensity),
			formatFloat(c.ExpansionRate),
			formatFloat(c.Temperature),
			formatFloat(c.Age),
			strconv.Itoa(len(c.MatterGrid)),
			formatFloat(c.FieldVariance),
			formatFloat(c.StabilityIndex),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
