package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schemaSQL string

// migrationLock serializes concurrent runs migrating the same database.
const migrationLock = 0x6c656374

type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in version order, each in its own transaction.
// Append only: an applied version is never re-run.
var migrations = []migration{
	{version: 1, name: "create ledger tables", sql: schemaSQL},
	{
		version: 2,
		name:    "index lecture_results by status",
		sql:     `CREATE INDEX IF NOT EXISTS idx_lecture_results_status ON lecture_results (run_id, status)`,
	},
}

// MigrationError reports the migration that could not be applied.
// Versions before it are committed.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Migrate brings the ledger schema up to date.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version    int PRIMARY KEY,
			name       text NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		done, err := db.apply(ctx, m)
		if err != nil {
			return &MigrationError{Version: m.version, Name: m.name, Err: err}
		}
		if done {
			db.log.Info().Int("version", m.version).Str("migration", m.name).Msg("schema migration applied")
			applied++
		}
	}
	if applied > 0 {
		db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	}
	return nil
}

// apply runs m unless it is already recorded. It reports whether m ran.
func (db *DB) apply(ctx context.Context, m migration) (bool, error) {
	ran := false
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_version WHERE version = $1)`, m.version,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_version (version, name) VALUES ($1, $2)`, m.version, m.name,
		); err != nil {
			return err
		}
		ran = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ran, nil
}
