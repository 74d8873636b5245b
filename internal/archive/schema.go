package archive

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS populations (
		id                      TEXT PRIMARY KEY,
		seed                    INTEGER NOT NULL,
		generations             INTEGER NOT NULL,
		children_per_generation INTEGER NOT NULL,
		parallel                INTEGER NOT NULL DEFAULT 0,
		parent                  TEXT NOT NULL,
		total_mass_energy       REAL NOT NULL,
		created_at              TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS child_universes (
		population_id   TEXT NOT NULL REFERENCES populations(id) ON DELETE CASCADE,
		generation      INTEGER NOT NULL,
		idx             INTEGER NOT NULL,
		id              TEXT NOT NULL,
		created_at      TEXT NOT NULL,
		local_density   REAL NOT NULL,
		expansion_rate  REAL NOT NULL,
		temperature     REAL NOT NULL,
		age             REAL NOT NULL,
		matter_grid     TEXT NOT NULL,
		field_variance  REAL NOT NULL,
		stability_index REAL NOT NULL,
		PRIMARY KEY (population_id, generation, idx)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_populations_created_at ON populations(created_at)`,
}

// InitSchema creates the archive tables when they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}
