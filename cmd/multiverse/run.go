package main

import (
	"bytes"
	"fmt"
	"os"

	"multiverse-server/internal/population"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// loadRunFile reads a YAML run description such as
//
//	generations: 5
//	children_per_generation: 10
//	seed: 42
//	parallel: true
//	workers: 4
func loadRunFile(path string) (population.CreateRequest, error) {
	var req population.CreateRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read run file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to parse run file %s: %w", path, err)
	}
	return req, nil
}

// runRequest merges the run file (if any) with flags; explicitly set flags win.
func runRequest(cmd *cobra.Command) (population.CreateRequest, error) {
	var req population.CreateRequest

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if req, err = loadRunFile(path); err != nil {
			return req, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("generations") {
		v, _ := flags.GetInt("generations")
		req.Generations = &v
	}
	if flags.Changed("children") {
		v, _ := flags.GetInt("children")
		req.ChildrenPerGeneration = &v
	}
	if flags.Changed("seed") {
		v, _ := flags.GetInt64("seed")
		req.Seed = &v
	}
	if flags.Changed("parallel") {
		req.Parallel, _ = flags.GetBool("parallel")
	}
	if flags.Changed("workers") {
		req.Workers, _ = flags.GetInt("workers")
	}
	return req, nil
}
