package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a missing donation.
var ErrNotFound = errors.New("store: donation not found")

// SaveDonation stores one donate command. SessionID and Platform are derived
// from the key when unset.
func (s *SQLiteStore) SaveDonation(ctx context.Context, d *Donation) (int64, error) {
	if d.Key == "" {
		return 0, fmt.Errorf("saving donation: empty key")
	}
	if d.SessionID == "" || d.Platform == "" {
		sessionID, platform := splitKey(d.Key)
		if d.SessionID == "" {
			d.SessionID = sessionID
		}
		if d.Platform == "" {
			d.Platform = platform
		}
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO donations (donation_key, session_id, platform, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.Key, d.SessionID, d.Platform, d.Payload, now,
	)
	if err != nil {
		return 0, fmt.Errorf("saving donation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting donation id: %w", err)
	}

	d.ID = id
	d.CreatedAt = now
	return id, nil
}

// GetDonation loads one donation by ID.
func (s *SQLiteStore) GetDonation(ctx context.Context, id int64) (*Donation, error) {
	d := &Donation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, donation_key, session_id, platform, payload, created_at
		 FROM donations WHERE id = ?`, id,
	).Scan(&d.ID, &d.Key, &d.SessionID, &d.Platform, &d.Payload, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading donation %d: %w", id, err)
	}
	return d, nil
}

// ListDonations returns donations oldest first, optionally scoped to one
// session.
func (s *SQLiteStore) ListDonations(ctx context.Context, sessionID string) ([]*Donation, error) {
	query := `SELECT id, donation_key, session_id, platform, payload, created_at
		 FROM donations`
	args := []any{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing donations: %w", err)
	}
	defer rows.Close()

	var out []*Donation
	for rows.Next() {
		d := &Donation{}
		if err := rows.Scan(&d.ID, &d.Key, &d.SessionID, &d.Platform, &d.Payload, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning donation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats returns current outbox statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM donations", &stats.DonationCount},
		{"SELECT COUNT(DISTINCT session_id) FROM donations", &stats.SessionCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	// DB size only exists for file-based databases.
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}
