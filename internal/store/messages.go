package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InsertMessage writes a message and all of its child rows in a single
// transaction. Re-inserting an existing id replaces the row and its
// recipients, labels and attachments wholesale. The owning thread and
// folder rows are created if missing and their aggregates recomputed
// before the transaction commits, so readers never observe a message
// without its aggregate effect.
func (s *Store) InsertMessage(msg *Message) error {
	if msg.ID == "" || msg.AccountID == "" {
		return fmt.Errorf("%w: message id and account id are required", ErrWrite)
	}
	if msg.ThreadID == "" || msg.Folder == "" {
		return fmt.Errorf("%w: message %s: thread id and folder are required", ErrWrite, msg.ID)
	}
	if msg.Date.IsZero() {
		return fmt.Errorf("%w: message %s: date is required", ErrWrite, msg.ID)
	}

	refs, err := json.Marshal(msg.References)
	if err != nil {
		return fmt.Errorf("%w: message %s: encode references: %w", ErrWrite, msg.ID, err)
	}

	// Stored as text by the driver; normalizing to UTC keeps string
	// comparison (MAX, BETWEEN) consistent with time ordering.
	date := msg.Date.UTC()
	hasAttachments := msg.Flags.HasAttachments || len(msg.Attachments) > 0

	return s.withTx(func(tx *sql.Tx) error {
		// An existing row may be moving threads or folders; remember the
		// old location so its aggregates get refreshed too.
		var prevThread, prevFolder string
		err := tx.QueryRow(`SELECT thread_id, folder FROM messages WHERE id = ?`, msg.ID).
			Scan(&prevThread, &prevFolder)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("%w: message %s: read prior row: %w", ErrWrite, msg.ID, err)
		}

		if err := ensureThread(tx, msg.AccountID, msg.ThreadID, msg.Subject); err != nil {
			return fmt.Errorf("%w: message %s: %w", ErrWrite, msg.ID, err)
		}
		if err := ensureFolder(tx, msg.AccountID, msg.Folder); err != nil {
			return fmt.Errorf("%w: message %s: %w", ErrWrite, msg.ID, err)
		}

		_, err = tx.Exec(`
			INSERT INTO messages (
				id, account_id, provider_id, thread_id, folder, subject,
				body_text, body_html, snippet, from_address, from_name, date,
				size, importance, priority, message_id, in_reply_to, refs,
				is_read, is_starred, is_trashed, is_spam, is_important,
				is_archived, is_draft, is_sent, has_attachments
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				account_id = excluded.account_id,
				provider_id = excluded.provider_id,
				thread_id = excluded.thread_id,
				folder = excluded.folder,
				subject = excluded.subject,
				body_text = excluded.body_text,
				body_html = excluded.body_html,
				snippet = excluded.snippet,
				from_address = excluded.from_address,
				from_name = excluded.from_name,
				date = excluded.date,
				size = excluded.size,
				importance = excluded.importance,
				priority = excluded.priority,
				message_id = excluded.message_id,
				in_reply_to = excluded.in_reply_to,
				refs = excluded.refs,
				is_read = excluded.is_read,
				is_starred = excluded.is_starred,
				is_trashed = excluded.is_trashed,
				is_spam = excluded.is_spam,
				is_important = excluded.is_important,
				is_archived = excluded.is_archived,
				is_draft = excluded.is_draft,
				is_sent = excluded.is_sent,
				has_attachments = excluded.has_attachments,
				updated_at = CURRENT_TIMESTAMP
		`,
			msg.ID, msg.AccountID, msg.ProviderID, msg.ThreadID, msg.Folder, msg.Subject,
			nullString(msg.BodyText), nullString(msg.BodyHTML), msg.Snippet,
			msg.From.Email, msg.From.Name, date,
			msg.Size, defaultString(msg.Importance, "normal"), defaultString(msg.Priority, "normal"),
			msg.MessageID, nullString(msg.InReplyTo), string(refs),
			msg.Flags.IsRead, msg.Flags.IsStarred, msg.Flags.IsTrashed, msg.Flags.IsSpam,
			msg.Flags.IsImportant, msg.Flags.IsArchived, msg.Flags.IsDraft, msg.Flags.IsSent,
			hasAttachments,
		)
		if err != nil {
			return fmt.Errorf("%w: upsert message %s: %w", ErrWrite, msg.ID, err)
		}

		if err := replaceRecipients(tx, msg.ID, msg); err != nil {
			return fmt.Errorf("%w: message %s: %w", ErrWrite, msg.ID, err)
		}
		if err := replaceLabels(tx, msg.ID, msg.Labels); err != nil {
			return fmt.Errorf("%w: message %s: %w", ErrWrite, msg.ID, err)
		}
		if err := replaceAttachments(tx, msg.ID, msg.Attachments); err != nil {
			return fmt.Errorf("%w: message %s: %w", ErrWrite, msg.ID, err)
		}
		if err := s.upsertFTS(tx, msg); err != nil {
			return fmt.Errorf("%w: message %s: %w", ErrWrite, msg.ID, err)
		}

		if err := recomputeThread(tx, msg.ThreadID); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if err := recomputeFolder(tx, msg.AccountID, msg.Folder); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if prevThread != "" && prevThread != msg.ThreadID {
			if err := recomputeThread(tx, prevThread); err != nil {
				return fmt.Errorf("%w: %w", ErrWrite, err)
			}
		}
		if prevFolder != "" && prevFolder != msg.Folder {
			if err := recomputeFolder(tx, msg.AccountID, prevFolder); err != nil {
				return fmt.Errorf("%w: %w", ErrWrite, err)
			}
		}
		return nil
	})
}

// UpdateMessage applies a partial update to flags, folder, or labels.
// Returns the number of rows affected; (0, nil) when no such message
// exists. Affected thread and folder aggregates are recomputed in the same
// transaction.
func (s *Store) UpdateMessage(id string, upd MessageUpdate) (int64, error) {
	var affected int64
	err := s.withTx(func(tx *sql.Tx) error {
		var accountID, threadID, folder string
		err := tx.QueryRow(`SELECT account_id, thread_id, folder FROM messages WHERE id = ?`, id).
			Scan(&accountID, &threadID, &folder)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: update message %s: %w", ErrWrite, id, err)
		}

		sets := []string{"updated_at = CURRENT_TIMESTAMP"}
		args := []any{}
		flagCols := []struct {
			col string
			val *bool
		}{
			{"is_read", upd.Flags.IsRead},
			{"is_starred", upd.Flags.IsStarred},
			{"is_trashed", upd.Flags.IsTrashed},
			{"is_spam", upd.Flags.IsSpam},
			{"is_important", upd.Flags.IsImportant},
			{"is_archived", upd.Flags.IsArchived},
			{"is_draft", upd.Flags.IsDraft},
			{"is_sent", upd.Flags.IsSent},
		}
		for _, fc := range flagCols {
			if fc.val != nil {
				sets = append(sets, fc.col+" = ?")
				args = append(args, *fc.val)
			}
		}
		if upd.Folder != nil {
			sets = append(sets, "folder = ?")
			args = append(args, *upd.Folder)
			if err := ensureFolder(tx, accountID, *upd.Folder); err != nil {
				return fmt.Errorf("%w: update message %s: %w", ErrWrite, id, err)
			}
		}
		args = append(args, id)

		res, err := tx.Exec(
			"UPDATE messages SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("%w: update message %s: %w", ErrWrite, id, err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: update message %s: %w", ErrWrite, id, err)
		}

		if upd.Labels != nil {
			if err := replaceLabels(tx, id, *upd.Labels); err != nil {
				return fmt.Errorf("%w: update message %s: %w", ErrWrite, id, err)
			}
		}

		if err := recomputeThread(tx, threadID); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if err := recomputeFolder(tx, accountID, folder); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if upd.Folder != nil && *upd.Folder != folder {
			if err := recomputeFolder(tx, accountID, *upd.Folder); err != nil {
				return fmt.Errorf("%w: %w", ErrWrite, err)
			}
		}
		return nil
	})
	return affected, err
}

// DeleteMessage removes a message and its child rows, refreshing the
// aggregates of the thread and folder it belonged to. Deleting an unknown
// id is a no-op and returns (0, nil).
func (s *Store) DeleteMessage(id string) (int64, error) {
	var affected int64
	err := s.withTx(func(tx *sql.Tx) error {
		var accountID, threadID, folder string
		err := tx.QueryRow(`SELECT account_id, thread_id, folder FROM messages WHERE id = ?`, id).
			Scan(&accountID, &threadID, &folder)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: delete message %s: %w", ErrWrite, id, err)
		}

		if s.fts5Available {
			if _, err := tx.Exec(`DELETE FROM messages_fts WHERE message_id = ?`, id); err != nil {
				return fmt.Errorf("%w: delete message %s: fts: %w", ErrWrite, id, err)
			}
		}
		res, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("%w: delete message %s: %w", ErrWrite, id, err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: delete message %s: %w", ErrWrite, id, err)
		}

		if err := recomputeThread(tx, threadID); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if err := recomputeFolder(tx, accountID, folder); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		return nil
	})
	return affected, err
}

// DeleteMessagesByAccount removes all messages owned by an account while
// keeping the account, its threads and its folders. Used on full resync;
// the retained thread and folder rows are zeroed by recomputation.
func (s *Store) DeleteMessagesByAccount(accountID string) (int64, error) {
	var affected int64
	err := s.withTx(func(tx *sql.Tx) error {
		if s.fts5Available {
			_, err := tx.Exec(`
				DELETE FROM messages_fts WHERE message_id IN (
					SELECT id FROM messages WHERE account_id = ?
				)
			`, accountID)
			if err != nil {
				return fmt.Errorf("%w: clear fts for account %s: %w", ErrWrite, accountID, err)
			}
		}
		res, err := tx.Exec(`DELETE FROM messages WHERE account_id = ?`, accountID)
		if err != nil {
			return fmt.Errorf("%w: delete messages for account %s: %w", ErrWrite, accountID, err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: delete messages for account %s: %w", ErrWrite, accountID, err)
		}

		_, err = tx.Exec(`
			UPDATE threads SET
				message_count = 0, has_unread = 0, has_starred = 0,
				has_important = 0, has_attachments = 0, last_message_at = NULL,
				updated_at = CURRENT_TIMESTAMP
			WHERE account_id = ?
		`, accountID)
		if err != nil {
			return fmt.Errorf("%w: zero threads for account %s: %w", ErrWrite, accountID, err)
		}
		_, err = tx.Exec(`
			UPDATE folders SET message_count = 0, unread_count = 0, updated_at = CURRENT_TIMESTAMP
			WHERE account_id = ?
		`, accountID)
		if err != nil {
			return fmt.Errorf("%w: zero folders for account %s: %w", ErrWrite, accountID, err)
		}
		return nil
	})
	return affected, err
}

// ensureThread creates the thread row on first sight. The subject sticks
// from the first message; later messages in the thread do not rewrite it.
func ensureThread(tx *sql.Tx, accountID, threadID, subject string) error {
	_, err := tx.Exec(`
		INSERT INTO threads (id, account_id, subject) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, threadID, accountID, subject)
	if err != nil {
		return fmt.Errorf("ensure thread %s: %w", threadID, err)
	}
	return nil
}

func ensureFolder(tx *sql.Tx, accountID, path string) error {
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	_, err := tx.Exec(`
		INSERT INTO folders (account_id, path, name) VALUES (?, ?, ?)
		ON CONFLICT(account_id, path) DO NOTHING
	`, accountID, path, name)
	if err != nil {
		return fmt.Errorf("ensure folder %s: %w", path, err)
	}
	return nil
}

// replaceRecipients rewrites all recipient rows for a message. Wholesale
// delete-then-insert keeps re-sync simple and idempotent.
func replaceRecipients(tx *sql.Tx, messageID string, msg *Message) error {
	if _, err := tx.Exec(`DELETE FROM recipients WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("clear recipients: %w", err)
	}
	insert := func(kind string, addrs []Address) error {
		for _, a := range addrs {
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO recipients (message_id, recipient_type, address, name)
				VALUES (?, ?, ?, ?)
			`, messageID, kind, a.Email, a.Name)
			if err != nil {
				return fmt.Errorf("insert %s recipient %s: %w", kind, a.Email, err)
			}
		}
		return nil
	}
	if err := insert("to", msg.To); err != nil {
		return err
	}
	if err := insert("cc", msg.Cc); err != nil {
		return err
	}
	if err := insert("bcc", msg.Bcc); err != nil {
		return err
	}
	return insert("replyTo", msg.ReplyTo)
}

func replaceLabels(tx *sql.Tx, messageID string, labels []string) error {
	if _, err := tx.Exec(`DELETE FROM message_labels WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	for _, label := range labels {
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO message_labels (message_id, label) VALUES (?, ?)
		`, messageID, label)
		if err != nil {
			return fmt.Errorf("insert label %s: %w", label, err)
		}
	}
	return nil
}

func replaceAttachments(tx *sql.Tx, messageID string, atts []Attachment) error {
	if _, err := tx.Exec(`DELETE FROM attachments WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("clear attachments: %w", err)
	}
	for _, a := range atts {
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.Exec(`
			INSERT INTO attachments (id, message_id, filename, mime_type, size, content_id, is_inline, local_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, messageID, a.Filename, a.MimeType, a.Size,
			nullString(a.ContentID), a.IsInline, nullString(a.LocalPath))
		if err != nil {
			return fmt.Errorf("insert attachment %s: %w", a.Filename, err)
		}
	}
	return nil
}

// upsertFTS replaces the full-text row for a message. Must run in the same
// transaction as the message write so the index never drifts from the
// table.
func (s *Store) upsertFTS(tx *sql.Tx, msg *Message) error {
	if !s.fts5Available {
		return nil
	}
	if _, err := tx.Exec(`DELETE FROM messages_fts WHERE message_id = ?`, msg.ID); err != nil {
		return fmt.Errorf("clear fts row: %w", err)
	}
	_, err := tx.Exec(`
		INSERT INTO messages_fts (message_id, subject, body_text, from_name, from_address, snippet)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Subject, msg.BodyText, msg.From.Name, msg.From.Email, msg.Snippet)
	if err != nil {
		return fmt.Errorf("insert fts row: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
