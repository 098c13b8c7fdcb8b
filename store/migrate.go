package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 2

// migrations[i] upgrades the schema from version i to i+1.
var migrations = []struct {
	name  string
	stmts []string
}{
	{
		name: "create tables",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				prompt TEXT NOT NULL,
				vibe TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS artifacts (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				revision INTEGER NOT NULL,
				action TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				node_count INTEGER NOT NULL,
				tree TEXT NOT NULL,
				created_at TEXT NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id, created_at);`,
		},
	},
	{
		name: "artifact plan",
		stmts: []string{
			`ALTER TABLE artifacts ADD COLUMN plan TEXT NOT NULL DEFAULT '';`,
		},
	},
}

// Migrate ensures the SQLite schema exists and is upgraded to SchemaVersion.
// Each version is applied in its own transaction.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}

	for v := current; v < SchemaVersion; v++ {
		if err := migrateTo(db, v+1); err != nil {
			return err
		}
	}
	return nil
}

func migrateTo(db *sql.DB, version int) error {
	m := migrations[version-1]
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: v%d %s: %w", version, m.name, err)
		}
	}
	_, err = tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?);`, version)
	if err != nil {
		return fmt.Errorf("migrate: record version %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit v%d: %w", version, err)
	}
	return nil
}
