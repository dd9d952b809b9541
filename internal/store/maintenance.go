package store

import (
	"context"
	"fmt"
	"os"
)

// Stats summarizes the cache contents for the stats command and the
// maintenance log line.
type Stats struct {
	Accounts          int64
	Messages          int64
	UnreadMessages    int64
	Threads           int64
	Folders           int64
	Attachments       int64
	DatabaseSize      int64
	MessagesByAccount map[string]int64
	// MessagesByFolder is keyed "email/path" so same-named folders in
	// different accounts count separately.
	MessagesByFolder map[string]int64
}

// Vacuum reclaims free pages. Runs outside any transaction; SQLite forbids
// VACUUM inside one.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Optimize refreshes query-planner statistics and compacts the full-text
// index when present.
func (s *Store) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if s.fts5Available {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO messages_fts(messages_fts) VALUES('optimize')"); err != nil {
			return fmt.Errorf("optimize fts index: %w", err)
		}
	}
	return nil
}

// CheckHealth runs SQLite's integrity and foreign-key checks and returns an
// error describing the first problem found.
func (s *Store) CheckHealth(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	rows, err := s.db.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		var table string
		var rowid, fkid any
		var parent string
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("foreign key check: %w", err)
		}
		return fmt.Errorf("foreign key violation in %s referencing %s", table, parent)
	}
	return rows.Err()
}

// Statistics gathers row counts and the on-disk database size.
func (s *Store) Statistics() (*Stats, error) {
	stats := &Stats{
		MessagesByAccount: make(map[string]int64),
		MessagesByFolder:  make(map[string]int64),
	}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM accounts", &stats.Accounts},
		{"SELECT COUNT(*) FROM messages", &stats.Messages},
		{"SELECT COUNT(*) FROM messages WHERE is_read = 0", &stats.UnreadMessages},
		{"SELECT COUNT(*) FROM threads", &stats.Threads},
		{"SELECT COUNT(*) FROM folders", &stats.Folders},
		{"SELECT COUNT(*) FROM attachments", &stats.Attachments},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("%w: gather stats: %w", ErrQuery, err)
		}
	}

	rows, err := s.db.Query(`
		SELECT a.email, COUNT(m.id)
		FROM accounts a LEFT JOIN messages m ON m.account_id = a.id
		GROUP BY a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: stats by account: %w", ErrQuery, err)
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		var n int64
		if err := rows.Scan(&email, &n); err != nil {
			return nil, fmt.Errorf("%w: stats by account: %w", ErrQuery, err)
		}
		stats.MessagesByAccount[email] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: stats by account: %w", ErrQuery, err)
	}

	folderRows, err := s.db.Query(`
		SELECT a.email, m.folder, COUNT(*)
		FROM messages m JOIN accounts a ON a.id = m.account_id
		GROUP BY m.account_id, m.folder
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: stats by folder: %w", ErrQuery, err)
	}
	defer folderRows.Close()
	for folderRows.Next() {
		var email, folder string
		var n int64
		if err := folderRows.Scan(&email, &folder, &n); err != nil {
			return nil, fmt.Errorf("%w: stats by folder: %w", ErrQuery, err)
		}
		stats.MessagesByFolder[email+"/"+folder] = n
	}
	if err := folderRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: stats by folder: %w", ErrQuery, err)
	}

	if fi, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = fi.Size()
	}

	return stats, nil
}
