package store

import (
	"database/sql"
	"fmt"

	"taigent/internal/logging"
)

// Schema versions:
// v1: runs and messages tables
// v2: index on runs.started_at for listing
const CurrentSchemaVersion = 2

// Migration upgrades the schema by one version.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "runs and messages",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				run_id      TEXT PRIMARY KEY,
				input       TEXT NOT NULL,
				response    TEXT NOT NULL DEFAULT '',
				state       TEXT NOT NULL,
				round_trips INTEGER NOT NULL DEFAULT 0,
				tool_calls  INTEGER NOT NULL DEFAULT 0,
				error       TEXT NOT NULL DEFAULT '',
				started_at  INTEGER NOT NULL,
				finished_at INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS messages (
				run_id       TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
				seq          INTEGER NOT NULL,
				role         TEXT NOT NULL,
				content      TEXT NOT NULL,
				tool_calls   TEXT NOT NULL DEFAULT '',
				tool_call_id TEXT NOT NULL DEFAULT '',
				name         TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (run_id, seq)
			)`,
		},
	},
	{
		Version:     2,
		Description: "runs listing index",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
		},
	},
}

// GetSchemaVersion returns the schema version recorded in the database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// RunMigrations applies every migration newer than the recorded version.
// Each migration runs in its own transaction together with the version bump.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	current, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}
	if current > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, CurrentSchemaVersion)
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logging.StoreDebug("Applying migration v%d: %s", m.Version, m.Description)
		if err := applyMigration(db, m); err != nil {
			logging.StoreError("Migration v%d failed: %v", m.Version, err)
			return err
		}
		applied++
	}

	if applied > 0 {
		logging.Store("Schema migrated from v%d to v%d", current, CurrentSchemaVersion)
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration v%d: %w", m.Version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration v%d: %w", m.Version, err)
		}
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("migration v%d: failed to record version: %w", m.Version, err)
	}
	return tx.Commit()
}
