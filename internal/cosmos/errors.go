package cosmos

import "errors"

var (
	// ErrInvalidArgument is returned before any sampling happens when a count,
	// generation number or seed is out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyPopulation is returned when pooled statistics are requested over
	// a population without child universes.
	ErrEmptyPopulation = errors.New("empty population: statistics undefined")
)
