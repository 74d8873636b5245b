// Package archive keeps generated populations in a local SQLite file so the
// command line tool can list, summarise and export earlier runs.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/population"
	"multiverse-server/internal/shared/errors"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is fixed-width so that timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements population.Store on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ population.Store = (*Store)(nil)

// Open creates the archive file and its parent directory if needed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	logger = logger.With("component", "archive", "path", path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	logger.Debug("Archive opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, record population.Record, pop *cosmos.Population) error {
	logger := s.logger.With("operation", "save", "population_id", record.ID)

	parent, err := json.Marshal(pop.Root())
	if err != nil {
		return fmt.Errorf("failed to encode parent universe: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM populations WHERE id = ?)`, record.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check population: %w", err)
	}
	if exists {
		return errors.Conflictf("population %s already archived", record.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO populations (id, seed, generations, children_per_generation, parallel, parent, total_mass_energy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Seed, record.Generations, record.ChildrenPerGeneration, record.Parallel,
		string(parent), record.TotalMassEnergy, record.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert population: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO child_universes (
			population_id, generation, idx, id, created_at, local_density, expansion_rate,
			temperature, age, matter_grid, field_variance, stability_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare child insert: %w", err)
	}
	defer stmt.Close()

	for _, child := range pop.AllChildren() {
		grid, err := json.Marshal(child.MatterGrid)
		if err != nil {
			return fmt.Errorf("failed to encode matter grid for %s: %w", child.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			record.ID, child.Generation, child.Index, child.ID, child.CreatedAt.UTC().Format(timeLayout),
			child.LocalDensity, child.ExpansionRate, child.Temperature, child.Age,
			string(grid), child.FieldVariance, child.StabilityIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to insert child universe %s: %w", child.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit population: %w", err)
	}

	logger.Debug("Population archived", "total_universes", record.TotalUniverses)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*population.Stored, error) {
	record, root, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT generation, idx, id, created_at, local_density, expansion_rate,
		       temperature, age, matter_grid, field_variance, stability_index
		FROM child_universes
		WHERE population_id = ?
		ORDER BY generation, idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query child universes: %w", err)
	}
	defer rows.Close()

	gens := population.EmptyGenerations(record.Generations, record.ChildrenPerGeneration)
	for rows.Next() {
		var child cosmos.ChildUniverse
		var createdAt, grid string
		if err := rows.Scan(
			&child.Generation, &child.Index, &child.ID, &createdAt,
			&child.LocalDensity, &child.ExpansionRate, &child.Temperature, &child.Age,
			&grid, &child.FieldVariance, &child.StabilityIndex,
		); err != nil {
			return nil, fmt.Errorf("failed to scan child universe: %w", err)
		}
		if child.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse creation time of %s: %w", child.ID, err)
		}
		if err := json.Unmarshal([]byte(grid), &child.MatterGrid); err != nil {
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

	return &population.Stored{
		Record:     *record,
		Population: cosmos.NewPopulation(record.Seed, *root, gens),
	}, nil
}

func (s *Store) getRecord(ctx context.Context, id string) (*population.Record, *cosmos.ParentUniverse, error) {
	var record population.Record
	var parent, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seed, generations, children_per_generation, parallel, parent, total_mass_energy, created_at
		FROM populations
		WHERE id = ?`, id).Scan(
		&record.ID, &record.Seed, &record.Generations, &record.ChildrenPerGeneration,
		&record.Parallel, &parent, &record.TotalMassEnergy, &createdAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil, errors.NotFoundf("population %s not found", id)
		}
		return nil, nil, fmt.Errorf("failed to get population: %w", err)
	}

	var root cosmos.ParentUniverse
	if err := json.Unmarshal([]byte(parent), &root); err != nil {
		return nil, nil, fmt.Errorf("failed to decode parent universe: %w", err)
	}
	if err := finishRecord(&record, root.ID, createdAt); err != nil {
		return nil, nil, err
	}
	return &record, &root, nil
}

// List returns archived runs, newest first.
func (s *Store) List(ctx context.Context) ([]population.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, generations, children_per_generation, parallel,
		       json_extract(parent, '$.id'), total_mass_energy, created_at
		FROM populations
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list populations: %w", err)
	}
	defer rows.Close()

	var records []population.Record
	for rows.Next() {
		var record population.Record
		var parentID, createdAt string
		if err := rows.Scan(
			&record.ID, &record.Seed, &record.Generations, &record.ChildrenPerGeneration,
			&record.Parallel, &parentID, &record.TotalMassEnergy, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan population: %w", err)
		}
		if err := finishRecord(&record, parentID, createdAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM populations WHERE id = ?`, id)
	if err != nil {
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

func finishRecord(record *population.Record, parentID, createdAt string) error {
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return fmt.Errorf("failed to parse creation time of %s: %w", record.ID, err)
	}
	record.CreatedAt = t
	record.ParentID = parentID
	record.TotalUniverses = 1 + record.Generations*record.ChildrenPerGeneration
	return nil
}
