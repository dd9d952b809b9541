package store

import (
	"database/sql"
	"fmt"
)

// UpsertAccount inserts or updates the account record. The id is stable
// across reconnects; email and display metadata may change.
func (s *Store) UpsertAccount(acct Account) error {
	if acct.ID == "" {
		return fmt.Errorf("%w: account id is required", ErrWrite)
	}
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, email, provider, name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			provider = excluded.provider,
			name = excluded.name,
			updated_at = CURRENT_TIMESTAMP
	`, acct.ID, acct.Email, acct.Provider, acct.Name)
	if err != nil {
		return fmt.Errorf("%w: upsert account %s: %w", ErrWrite, acct.ID, err)
	}
	return nil
}

// GetAccount returns the account with the given id, or (nil, nil) if no
// such account exists.
func (s *Store) GetAccount(id string) (*Account, error) {
	var acct Account
	err := s.db.QueryRow(`
		SELECT id, email, provider, name FROM accounts WHERE id = ?
	`, id).Scan(&acct.ID, &acct.Email, &acct.Provider, &acct.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get account %s: %w", ErrQuery, id, err)
	}
	return &acct, nil
}

// ListAccounts returns all accounts ordered by email.
func (s *Store) ListAccounts() ([]Account, error) {
	rows, err := s.db.Query(`
		SELECT id, email, provider, name FROM accounts ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %w", ErrQuery, err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var acct Account
		if err := rows.Scan(&acct.ID, &acct.Email, &acct.Provider, &acct.Name); err != nil {
			return nil, fmt.Errorf("%w: scan account: %w", ErrQuery, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes an account and everything it owns: messages,
// recipients, labels, attachments, threads, folders, and the matching
// full-text rows. Returns an error if the account does not exist.
func (s *Store) DeleteAccount(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		// The FTS table is virtual and not covered by FK cascade, so its
		// rows are removed explicitly before the cascading delete.
		if s.fts5Available {
			_, err := tx.Exec(`
				DELETE FROM messages_fts WHERE message_id IN (
					SELECT id FROM messages WHERE account_id = ?
				)
			`, id)
			if err != nil {
				return fmt.Errorf("%w: delete fts rows for account %s: %w", ErrWrite, id, err)
			}
		}

		res, err := tx.Exec(`DELETE FROM accounts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("%w: delete account %s: %w", ErrWrite, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: delete account %s: %w", ErrWrite, id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: account not found: %s", ErrWrite, id)
		}
		return nil
	})
}
