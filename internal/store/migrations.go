package store

import (
	"fmt"
	"time"
)

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS donations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			donation_key TEXT NOT NULL,
			session_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_session ON donations(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_key ON donations(donation_key)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting bootstrap transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range ddl {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrap DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bootstrap: %w", err)
	}
	return nil
}

// isMetaFlagEnabled reports whether a meta flag is set to "1". A missing
// meta table means a fresh database.
func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'",
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err = s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		return false, nil
	}
	return value == "1", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value, updated_at) VALUES (?, '1', ?)
		 ON CONFLICT(key) DO UPDATE SET value='1', updated_at=excluded.updated_at`,
		key, time.Now().UTC(),
	)
	return err
}
