package store

import (
	"database/sql"
	"fmt"
)

// Derived aggregates on threads and folders are recomputed from scratch,
// never incremented: the updates below are idempotent and correct no
// matter which message write triggered them. They must run inside the same
// transaction as that write so readers never see a message without its
// aggregate effect.

// recomputeThread refreshes all derived columns of one thread row from its
// current message rows. A thread whose last message was deleted keeps its
// row with zeroed aggregates.
func recomputeThread(tx *sql.Tx, threadID string) error {
	_, err := tx.Exec(`
		UPDATE threads SET
			message_count = (SELECT COUNT(*) FROM messages m WHERE m.thread_id = threads.id),
			has_unread = EXISTS(SELECT 1 FROM messages m WHERE m.thread_id = threads.id AND m.is_read = 0),
			has_starred = EXISTS(SELECT 1 FROM messages m WHERE m.thread_id = threads.id AND m.is_starred = 1),
			has_important = EXISTS(SELECT 1 FROM messages m WHERE m.thread_id = threads.id AND m.is_important = 1),
			has_attachments = EXISTS(SELECT 1 FROM messages m WHERE m.thread_id = threads.id AND m.has_attachments = 1),
			last_message_at = (SELECT MAX(m.date) FROM messages m WHERE m.thread_id = threads.id),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, threadID)
	if err != nil {
		return fmt.Errorf("recompute thread %s: %w", threadID, err)
	}
	return nil
}

// recomputeFolder refreshes the message and unread counters of one folder
// row. Folders, like threads, survive emptying out.
func recomputeFolder(tx *sql.Tx, accountID, path string) error {
	_, err := tx.Exec(`
		UPDATE folders SET
			message_count = (SELECT COUNT(*) FROM messages m
				WHERE m.account_id = folders.account_id AND m.folder = folders.path),
			unread_count = (SELECT COUNT(*) FROM messages m
				WHERE m.account_id = folders.account_id AND m.folder = folders.path AND m.is_read = 0),
			updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND path = ?
	`, accountID, path)
	if err != nil {
		return fmt.Errorf("recompute folder %s/%s: %w", accountID, path, err)
	}
	return nil
}
