package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavlealeksic/mailstore/internal/store"
)

// messageColumns is the column list every message read shares, aliased to
// the messages table as m.
const messageColumns = `
	m.id, m.account_id, m.provider_id, m.thread_id, m.folder,
	m.subject, COALESCE(m.body_text, ''), COALESCE(m.body_html, ''), m.snippet,
	m.from_address, m.from_name, m.date, m.size,
	m.importance, m.priority, m.message_id, COALESCE(m.in_reply_to, ''), m.refs,
	m.is_read, m.is_starred, m.is_trashed, m.is_spam, m.is_important,
	m.is_archived, m.is_draft, m.is_sent, m.has_attachments`

func scanMessage(scan func(dest ...any) error) (*store.Message, error) {
	var m store.Message
	var refs string
	err := scan(
		&m.ID, &m.AccountID, &m.ProviderID, &m.ThreadID, &m.Folder,
		&m.Subject, &m.BodyText, &m.BodyHTML, &m.Snippet,
		&m.From.Email, &m.From.Name, &m.Date, &m.Size,
		&m.Importance, &m.Priority, &m.MessageID, &m.InReplyTo, &refs,
		&m.Flags.IsRead, &m.Flags.IsStarred, &m.Flags.IsTrashed, &m.Flags.IsSpam,
		&m.Flags.IsImportant, &m.Flags.IsArchived, &m.Flags.IsDraft, &m.Flags.IsSent,
		&m.Flags.HasAttachments,
	)
	if err != nil {
		return nil, err
	}
	if refs != "" {
		if err := json.Unmarshal([]byte(refs), &m.References); err != nil {
			return nil, fmt.Errorf("decode references for %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]*store.Message, error) {
	var messages []*store.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetMessage returns one fully rehydrated message, or (nil, nil) when no
// message has that id.
func (e *Engine) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	row := e.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages m WHERE m.id = ?", id)
	m, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get message %s: %w", store.ErrQuery, id, err)
	}
	if err := e.rehydrate(ctx, []*store.Message{m}); err != nil {
		return nil, fmt.Errorf("%w: get message %s: %w", store.ErrQuery, id, err)
	}
	return m, nil
}

// GetMessagesByThread returns a thread's messages in ascending date order,
// fully rehydrated.
func (e *Engine) GetMessagesByThread(ctx context.Context, threadID string) ([]*store.Message, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages m WHERE m.thread_id = ? ORDER BY m.date ASC", threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: messages by thread %s: %w", store.ErrQuery, threadID, err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: messages by thread %s: %w", store.ErrQuery, threadID, err)
	}
	if err := e.rehydrate(ctx, messages); err != nil {
		return nil, fmt.Errorf("%w: messages by thread %s: %w", store.ErrQuery, threadID, err)
	}
	return messages, nil
}

// GetThread returns the thread aggregate row, or (nil, nil) when absent.
func (e *Engine) GetThread(ctx context.Context, id string) (*store.Thread, error) {
	var t store.Thread
	var lastAt sql.NullTime
	err := e.db.QueryRowContext(ctx, `
		SELECT id, account_id, subject, has_unread, has_starred, has_important,
			has_attachments, message_count, last_message_at
		FROM threads WHERE id = ?
	`, id).Scan(&t.ID, &t.AccountID, &t.Subject, &t.HasUnread, &t.HasStarred,
		&t.HasImportant, &t.HasAttachments, &t.MessageCount, &lastAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get thread %s: %w", store.ErrQuery, id, err)
	}
	if lastAt.Valid {
		t.LastMessageAt = lastAt.Time
	}
	return &t, nil
}

// ListThreads returns an account's threads newest first. A limit of 0
// means no limit.
func (e *Engine) ListThreads(ctx context.Context, accountID string, limit, offset int) ([]store.Thread, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, account_id, subject, has_unread, has_starred, has_important,
			has_attachments, message_count, last_message_at
		FROM threads
		WHERE account_id = ?
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list threads: %w", store.ErrQuery, err)
	}
	defer rows.Close()

	var threads []store.Thread
	for rows.Next() {
		var t store.Thread
		var lastAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Subject, &t.HasUnread, &t.HasStarred,
			&t.HasImportant, &t.HasAttachments, &t.MessageCount, &lastAt); err != nil {
			return nil, fmt.Errorf("%w: scan thread: %w", store.ErrQuery, err)
		}
		if lastAt.Valid {
			t.LastMessageAt = lastAt.Time
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// ListFolders returns an account's folders ordered by path.
func (e *Engine) ListFolders(ctx context.Context, accountID string) ([]store.Folder, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT account_id, path, name, message_count, unread_count
		FROM folders
		WHERE account_id = ?
		ORDER BY path
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: list folders: %w", store.ErrQuery, err)
	}
	defer rows.Close()

	var folders []store.Folder
	for rows.Next() {
		var f store.Folder
		if err := rows.Scan(&f.AccountID, &f.Path, &f.Name, &f.MessageCount, &f.UnreadCount); err != nil {
			return nil, fmt.Errorf("%w: scan folder: %w", store.ErrQuery, err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// ListAccounts returns all accounts ordered by email.
func (e *Engine) ListAccounts(ctx context.Context) ([]store.Account, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, email, provider, name FROM accounts ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %w", store.ErrQuery, err)
	}
	defer rows.Close()

	var accounts []store.Account
	for rows.Next() {
		var a store.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Provider, &a.Name); err != nil {
			return nil, fmt.Errorf("%w: scan account: %w", store.ErrQuery, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// rehydrate fills recipients, labels and attachments for a page of
// messages with one batched query per child table.
func (e *Engine) rehydrate(ctx context.Context, messages []*store.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]any, len(messages))
	placeholders := make([]string, len(messages))
	byID := make(map[string]*store.Message, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
		placeholders[i] = "?"
		byID[m.ID] = m
	}
	in := strings.Join(placeholders, ",")

	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT message_id, recipient_type, address, name
		FROM recipients WHERE message_id IN (%s)
		ORDER BY rowid
	`, in), ids...)
	if err != nil {
		return fmt.Errorf("fetch recipients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var msgID, kind string
		var addr store.Address
		if err := rows.Scan(&msgID, &kind, &addr.Email, &addr.Name); err != nil {
			return fmt.Errorf("scan recipient: %w", err)
		}
		m, ok := byID[msgID]
		if !ok {
			continue
		}
		switch kind {
		case "to":
			m.To = append(m.To, addr)
		case "cc":
			m.Cc = append(m.Cc, addr)
		case "bcc":
			m.Bcc = append(m.Bcc, addr)
		case "replyTo":
			m.ReplyTo = append(m.ReplyTo, addr)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("fetch recipients: %w", err)
	}

	labelRows, err := e.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT message_id, label FROM message_labels
		WHERE message_id IN (%s) ORDER BY label
	`, in), ids...)
	if err != nil {
		return fmt.Errorf("fetch labels: %w", err)
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var msgID, label string
		if err := labelRows.Scan(&msgID, &label); err != nil {
			return fmt.Errorf("scan label: %w", err)
		}
		if m, ok := byID[msgID]; ok {
			m.Labels = append(m.Labels, label)
		}
	}
	if err := labelRows.Err(); err != nil {
		return fmt.Errorf("fetch labels: %w", err)
	}

	attRows, err := e.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT message_id, id, filename, mime_type, size,
			COALESCE(content_id, ''), is_inline, COALESCE(local_path, '')
		FROM attachments WHERE message_id IN (%s) ORDER BY filename
	`, in), ids...)
	if err != nil {
		return fmt.Errorf("fetch attachments: %w", err)
	}
	defer attRows.Close()
	for attRows.Next() {
		var msgID string
		var a store.Attachment
		if err := attRows.Scan(&msgID, &a.ID, &a.Filename, &a.MimeType, &a.Size,
			&a.ContentID, &a.IsInline, &a.LocalPath); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if m, ok := byID[msgID]; ok {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return attRows.Err()
}
