package runstore

import "fmt"

// migrate runs all pending migrations, recording each applied version
// so a restart never re-applies one (teacher's migration-table
// pattern, adapted to the walker's two-table schema).
func (s *Store) migrate() error {
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Info("current schema version", "version", currentVersion)

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE walk_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					provider TEXT NOT NULL,
					mode TEXT NOT NULL,
					start_time DATETIME NOT NULL,
					end_time DATETIME,
					docs_discovered INTEGER DEFAULT 0,
					docs_retrieved INTEGER DEFAULT 0,
					docs_stored INTEGER DEFAULT 0,
					docs_skipped INTEGER DEFAULT 0,
					docs_failed INTEGER DEFAULT 0,
					status TEXT DEFAULT 'running',
					error_message TEXT
				);

				CREATE TABLE document_outcomes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id INTEGER NOT NULL,
					url TEXT NOT NULL,
					validation_result TEXT DEFAULT '',
					stored BOOLEAN DEFAULT 0,
					last_modified DATETIME,
					FOREIGN KEY(run_id) REFERENCES walk_runs(id)
				);

				CREATE INDEX idx_document_outcomes_run_id ON document_outcomes(run_id);
			`,
		},
		{
			version: 2,
			sql: `
				ALTER TABLE walk_runs ADD COLUMN run_uuid TEXT DEFAULT '';
			`,
		},
	}

	for _, mig := range migrations {
		if mig.version <= currentVersion {
			continue
		}
		s.logger.Info("running migration", "version", mig.version)
		if err := s.runMigration(mig.version, mig.sql); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
		}
	}

	return nil
}

func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
