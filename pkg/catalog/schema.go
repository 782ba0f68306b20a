package catalog

import (
	"context"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates the catalog table and its lookup index if missing.
//
// The DDL sticks to types both SQLite and Postgres accept, so the same
// statements serve either driver.
func (s *Store) Migrate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		)`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			dir TEXT NOT NULL,
			file TEXT NOT NULL,
			particle TEXT NOT NULL DEFAULT '',
			njets INTEGER NOT NULL DEFAULT 0,
			part TEXT NOT NULL DEFAULT '',
			energy DOUBLE PRECISION NOT NULL DEFAULT 0,
			info TEXT NOT NULL DEFAULT '',
			nentries BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (dir, file)
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_selection
			ON %s (particle, njets, part, energy)`, s.table, s.table),
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate catalog: %w", err)
		}
	}

	update := fmt.Sprintf("UPDATE schema_meta SET schema_version = %s WHERE id = 1", s.placeholder(1))
	if _, err := tx.ExecContext(ctx, update, SchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
