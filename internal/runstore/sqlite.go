package runstore

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for walk run history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens the SQLite database at dbPath and runs migrations.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("run store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// CreateWalkRun inserts a new WalkRun and sets its ID and RunUUID. The
// UUID is the identifier a caller should log or display — the integer
// ID is a storage detail.
func (s *Store) CreateWalkRun(run *WalkRun) error {
	if run.RunUUID == "" {
		run.RunUUID = uuid.NewString()
	}
	const query = `
		INSERT INTO walk_runs (
			run_uuid, provider, mode, start_time, end_time, docs_discovered,
			docs_retrieved, docs_stored, docs_skipped, docs_failed,
			status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(
		query,
		run.RunUUID, run.Provider, run.Mode, run.StartTime, run.EndTime, run.DocsDiscovered,
		run.DocsRetrieved, run.DocsStored, run.DocsSkipped, run.DocsFailed,
		run.Status, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert walk run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateWalkRun updates an existing WalkRun by ID.
func (s *Store) UpdateWalkRun(run *WalkRun) error {
	const query = `
		UPDATE walk_runs SET
			provider = ?, mode = ?, start_time = ?, end_time = ?,
			docs_discovered = ?, docs_retrieved = ?, docs_stored = ?,
			docs_skipped = ?, docs_failed = ?, status = ?, error_message = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(
		query,
		run.Provider, run.Mode, run.StartTime, run.EndTime, run.DocsDiscovered,
		run.DocsRetrieved, run.DocsStored, run.DocsSkipped, run.DocsFailed,
		run.Status, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update walk run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("walk run %d not found", run.ID)
	}
	return nil
}

// GetWalkRun fetches a single WalkRun by ID.
func (s *Store) GetWalkRun(id int64) (*WalkRun, error) {
	const query = `
		SELECT id, run_uuid, provider, mode, start_time, end_time, docs_discovered,
			docs_retrieved, docs_stored, docs_skipped, docs_failed,
			status, error_message
		FROM walk_runs WHERE id = ?
	`
	run := &WalkRun{}
	var endTime sql.NullTime
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.RunUUID, &run.Provider, &run.Mode, &run.StartTime, &endTime,
		&run.DocsDiscovered, &run.DocsRetrieved, &run.DocsStored,
		&run.DocsSkipped, &run.DocsFailed, &run.Status, &run.ErrorMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get walk run %d: %w", id, err)
	}
	if endTime.Valid {
		run.EndTime = endTime.Time
	}
	return run, nil
}

// ListWalkRuns returns the most recent runs for a provider, newest first.
func (s *Store) ListWalkRuns(provider string, limit int) ([]*WalkRun, error) {
	const query = `
		SELECT id, run_uuid, provider, mode, start_time, end_time, docs_discovered,
			docs_retrieved, docs_stored, docs_skipped, docs_failed,
			status, error_message
		FROM walk_runs WHERE provider = ? ORDER BY start_time DESC LIMIT ?
	`
	rows, err := s.db.Query(query, provider, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list walk runs: %w", err)
	}
	defer rows.Close()

	var runs []*WalkRun
	for rows.Next() {
		run := &WalkRun{}
		var endTime sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.RunUUID, &run.Provider, &run.Mode, &run.StartTime, &endTime,
			&run.DocsDiscovered, &run.DocsRetrieved, &run.DocsStored,
			&run.DocsSkipped, &run.DocsFailed, &run.Status, &run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan walk run: %w", err)
		}
		if endTime.Valid {
			run.EndTime = endTime.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordDocumentOutcome inserts a single document's outcome for a run.
func (s *Store) RecordDocumentOutcome(outcome *DocumentOutcome) error {
	const query = `
		INSERT INTO document_outcomes (run_id, url, validation_result, stored, last_modified)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query, outcome.RunID, outcome.URL, outcome.ValidationResult, outcome.Stored, outcome.LastModified)
	if err != nil {
		return fmt.Errorf("failed to record document outcome: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	outcome.ID = id
	return nil
}

// ListDocumentOutcomes returns every document outcome recorded for a run.
func (s *Store) ListDocumentOutcomes(runID int64) ([]*DocumentOutcome, error) {
	const query = `
		SELECT id, run_id, url, validation_result, stored, last_modified
		FROM document_outcomes WHERE run_id = ? ORDER BY id
	`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*DocumentOutcome
	for rows.Next() {
		o := &DocumentOutcome{}
		var lastModified sql.NullTime
		if err := rows.Scan(&o.ID, &o.RunID, &o.URL, &o.ValidationResult, &o.Stored, &lastModified); err != nil {
			return nil, fmt.Errorf("failed to scan document outcome: %w", err)
		}
		if lastModified.Valid {
			o.LastModified = lastModified.Time
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
