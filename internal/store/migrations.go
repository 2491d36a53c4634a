package store

import (
	"fmt"
	"strconv"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) schemaVersion() int {
	var version string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version); err != nil {
		return 0
	}
	v, _ := strconv.Atoi(version)
	return v
}

func (s *Store) setSchemaVersion(v int) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', ?)`, strconv.Itoa(v)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cycles (
		id              TEXT PRIMARY KEY,
		started_at      INTEGER NOT NULL,
		duration_ms     INTEGER NOT NULL,
		projects        INTEGER NOT NULL,
		alerts          INTEGER NOT NULL,
		recommendations INTEGER NOT NULL,
		errors          INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);

	CREATE TABLE IF NOT EXISTS snapshots (
		project         TEXT NOT NULL,
		ts              INTEGER NOT NULL,
		cycle_id        TEXT NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
		completion      REAL NOT NULL,
		total_tasks     INTEGER NOT NULL,
		completed_tasks INTEGER NOT NULL,
		active_tasks    INTEGER NOT NULL,
		blocked_tasks   INTEGER NOT NULL,
		overdue_tasks   INTEGER NOT NULL,
		PRIMARY KEY (project, ts)
	);

	CREATE TABLE IF NOT EXISTS alerts (
		cycle_id          TEXT NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
		id                TEXT NOT NULL,
		project           TEXT NOT NULL,
		alert_type        TEXT NOT NULL,
		severity          TEXT NOT NULL,
		severity_rank     INTEGER NOT NULL,
		title             TEXT NOT NULL,
		description       TEXT NOT NULL,
		metadata          TEXT NOT NULL,
		suggested_actions TEXT NOT NULL,
		created_at        INTEGER NOT NULL,
		seq               INTEGER NOT NULL,
		PRIMARY KEY (cycle_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_project ON alerts(project, created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);

	CREATE TABLE IF NOT EXISTS recommendations (
		cycle_id     TEXT NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		owner        TEXT NOT NULL,
		period_start INTEGER NOT NULL,
		period_end   INTEGER NOT NULL,
		task_count   INTEGER NOT NULL,
		tasks        TEXT NOT NULL,
		reason       TEXT NOT NULL,
		created_at   INTEGER NOT NULL,
		PRIMARY KEY (cycle_id, seq)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	if s.schemaVersion() < 1 {
		return s.setSchemaVersion(1)
	}
	return nil
}

func (s *Store) migrateV2() error {
	if s.schemaVersion() >= 2 {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS project_errors (
		cycle_id  TEXT NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
		project   TEXT NOT NULL,
		component TEXT NOT NULL,
		message   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_project_errors_cycle ON project_errors(cycle_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	// Warnings column on the cycle log (ignore if already exists)
	_, _ = s.db.Exec(`ALTER TABLE cycles ADD COLUMN warnings INTEGER NOT NULL DEFAULT 0`)

	return s.setSchemaVersion(2)
}
