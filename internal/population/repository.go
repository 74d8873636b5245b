package population

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/shared/database"
	"multiverse-server/internal/shared/errors"

	"github.com/lib/pq"
)

// pqInvalidTextRepresentation is raised by Postgres for malformed UUIDs.
const pqInvalidTextRepresentation = "22P02"

// Repository stores populations in Postgres.
type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing population repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Save(ctx context.Context, record Record, pop *cosmos.Population) error {
	logger := r.logger.With(
		"component", "population_repository",
		"operation", "save",
		"population_id", record.ID,
		"total_universes", record.TotalUniverses,
	)
	logger.Debug("Saving population")

	root := pop.Root()
	spectrum, err := json.Marshal(root.PowerSpectrum)
	if err != nil {
		return fmt.Errorf("failed to encode power spectrum: %w", err)
	}

	tx, err := r.db.BeginTxContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	query := `
		INSERT INTO populations (
			id, seed, generations, children_per_generation, parallel,
			parent_id, parent_created_at, dark_energy, matter_density, baryon_density,
			hubble_constant, spectral_index, power_spectrum, curvature, dimensions,
			total_mass_energy, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = tx.ExecContext(ctx, query,
		record.ID, record.Seed, record.Generations, record.ChildrenPerGeneration, record.Parallel,
		root.ID, root.CreatedAt, root.DarkEnergy, root.MatterDensity, root.BaryonDensity,
		root.HubbleConstant, root.SpectralIndex, string(spectrum), int(root.Curvature), root.Dimensions,
		record.TotalMassEnergy, record.CreatedAt,
	)
	if err != nil {
		logger.Error("Failed to insert population", "error", err)
		return fmt.Errorf("failed to insert population: %w", err)
	}

	if err := r.copyChildren(ctx, tx, record.ID, pop); err != nil {
		logger.Error("Failed to insert child universes", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit population", "error", err)
		return fmt.Errorf("failed to commit population: %w", err)
	}

	logger.Info("Population saved")
	return nil
}

func (r *Repository) copyChildren(ctx context.Context, tx *database.Tx, populationID string, pop *cosmos.Population) error {
	if pop.ChildCount() == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("child_universes",
		"population_id", "generation", "idx", "id", "created_at",
		"local_density", "expansion_rate", "temperature", "age",
		"matter_grid", "field_variance", "stability_index",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare child copy: %w", err)
	}
	defer stmt.Close()

	for _, child := range pop.AllChildren() {
		grid, err := json.Marshal(child.MatterGrid)
		if err != nil {
			return fmt.Errorf("failed to encode matter grid for %s: %w", child.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			populationID, child.Generation, child.Index, child.ID, child.CreatedAt,
			child.LocalDensity, child.ExpansionRate, child.Temperature, child.Age,
			string(grid), child.FieldVariance, child.StabilityIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to copy child universe %s: %w", child.ID, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush child copy: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Stored, error) {
	logger := r.logger.With("component", "population_repository", "operation", "get", "population_id", id)
	logger.Debug("Getting population")

	record, root, err := r.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT generation, idx, id, created_at, local_density, expansion_rate,
		       temperature, age, matter_grid, field_variance, stability_index
		FROM child_universes
		WHERE population_id = $1
		ORDER BY generation, idx`, id)
	if err != nil {
		logger.Error("Failed to query child universes", "error", err)
		return nil, fmt.Errorf("failed to query child universes: %w", err)
	}
	defer rows.Close()

	gens := EmptyGenerations(record.Generations, record.ChildrenPerGeneration)
	for rows.Next() {
		var child cosmos.ChildUniverse
		var grid []byte
		if err := rows.Scan(
			&child.Generation, &child.Index, &child.ID, &child.CreatedAt,
			&child.LocalDensity, &child.ExpansionRate, &child.Temperature, &child.Age,
			&grid, &child.FieldVariance, &child.StabilityIndex,
		); err != nil {
			return nil, fmt.Errorf("failed to scan child universe: %w", err)
		}
		if err := json.Unmarshal(grid, &child.MatterGrid); err != nil {
			return nil, fmt.Errorf("failed to decode matter grid for %s: %w", child.ID, err)
		}
		if child.Generation < 1 || child.Generation > len(gens) {
			return nil, fmt.Errorf("child universe %s has generation %d outside 1..%d", child.ID, child.Generation, len(gens))
		}
		child.ParentID = root.ID
		gens[child.Generation-1].Children = append(gens[child.Generation-1].Children, child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate child universes: %w", err)
	}

	return &Stored{
		Record:     *record,
		Population: cosmos.NewPopulation(record.Seed, *root, gens),
	}, nil
}

func (r *Repository) getRecord(ctx context.Context, id string) (*Record, *cosmos.ParentUniverse, error) {
	query := `
		SELECT id, seed, generations, children_per_generation, parallel,
		       parent_id, parent_created_at, dark_energy, matter_density, baryon_density,
		       hubble_constant, spectral_index, power_spectrum, curvature, dimensions,
		       total_mass_energy, created_at
		FROM populations
		WHERE id = $1`

	var record Record
	var root cosmos.ParentUniverse
	var spectrum []byte
	var curvature int
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.Seed, &record.Generations, &record.ChildrenPerGeneration, &record.Parallel,
		&root.ID, &root.CreatedAt, &root.DarkEnergy, &root.MatterDensity, &root.BaryonDensity,
		&root.HubbleConstant, &root.SpectralIndex, &spectrum, &curvature, &root.Dimensions,
		&record.TotalMassEnergy, &record.CreatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, errors.NotFoundf("population %s not found", id)
		}
		r.logger.Error("Failed to get population", "population_id", id, "error", err)
		return nil, nil, fmt.Errorf("failed to get population: %w", err)
	}

	if err := json.Unmarshal(spectrum, &root.PowerSpectrum); err != nil {
		return nil, nil, fmt.Errorf("failed to decode power spectrum: %w", err)
	}
	root.Curvature = cosmos.Curvature(curvature)
	record.ParentID = root.ID
	record.TotalUniverses = 1 + record.Generations*record.ChildrenPerGeneration

	return &record, &root, nil
}

func (r *Repository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT id, seed, generations, children_per_generation, parallel, parent_id,
		       total_mass_energy, created_at
		FROM populations
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list populations", "error", err)
		return nil, fmt.Errorf("failed to list populations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		err := rows.Scan(
			&record.ID,
			&record.Seed,
			&record.Generations,
			&record.ChildrenPerGeneration,
			&record.Parallel,
			&record.ParentID,
			&record.TotalMassEnergy,
			&record.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan population", "error", err)
			return nil, fmt.Errorf("failed to scan population: %w", err)
		}
		record.TotalUniverses = 1 + record.Generations*record.ChildrenPerGeneration
		records = append(records, record)
	}

	return records, rows.Err()
}

// Delete removes a population; child universes go with it via ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM populations WHERE id = $1`, id)
	if err != nil {
		if isNotFound(err) {
			return errors.NotFoundf("population %s not found", id)
		}
		r.logger.Error("Failed to delete population", "population_id", id, "error", err)
		return fmt.Errorf("failed to delete population: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NotFoundf("population %s not found", id)
	}

	return nil
}

// isNotFound treats missing rows and malformed UUIDs alike.
func isNotFound(err error) bool {
	if stderrors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation
}
