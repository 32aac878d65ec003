// Package store provides the SQLite outbox that finished donations are
// handed off to.
//
// The flow engine emits donate commands; the host loop flushes them here.
// Nothing reads the payloads back into the flow — the outbox exists so a
// completed session leaves a durable record the study operator can collect.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.donorkit/donorkit.db"

// Donation is one stored donate command.
type Donation struct {
	ID        int64
	Key       string
	SessionID string
	Platform  string
	Payload   string
	CreatedAt time.Time
}

// Stats holds observability counters for the outbox.
type Stats struct {
	DonationCount int64
	SessionCount  int64
	DBSizeBytes   int64
}

// Config holds configuration for NewStore.
type Config struct {
	DBPath string
}

// Store defines the outbox interface.
type Store interface {
	SaveDonation(ctx context.Context, d *Donation) (int64, error)
	GetDonation(ctx context.Context, id int64) (*Donation, error)
	ListDonations(ctx context.Context, sessionID string) ([]*Donation, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a SQLite-backed Store. Pass ":memory:" for in-memory
// databases (testing).
func NewStore(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// splitKey recovers session and platform from a donation key of the form
// <sessionID>-<platform>. Session IDs are UUIDs, so the platform is
// everything after the last dash.
func splitKey(key string) (sessionID, platform string) {
	i := strings.LastIndex(key, "-")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
