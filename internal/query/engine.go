// Package query implements the read side of the mail cache: composable
// message search plus the point reads the UI layer consumes. It only ever
// reads; all writes go through the store package.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pavlealeksic/mailstore/internal/search"
	"github.com/pavlealeksic/mailstore/internal/store"
)

// Engine runs queries against a store's database connection. It does not
// own the connection and never writes through it.
type Engine struct {
	db *sql.DB

	// FTS availability cache. Only successful checks are cached; errors
	// retry on the next call.
	ftsMu      sync.Mutex
	ftsResult  bool
	ftsChecked bool
}

// NewEngine creates a query engine over the given database connection.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// SortField selects the column SearchMessages orders by.
type SortField int

const (
	// SortDefault orders by relevance when a text query is present and by
	// date descending otherwise.
	SortDefault SortField = iota
	SortDate
	SortFrom
	SortSubject
	SortSize
)

// SearchOptions are conjunctive filters for SearchMessages. Zero values
// mean "no filter"; the flag fields only constrain when set true.
type SearchOptions struct {
	// Query is a Gmail-style search string; see the search package for
	// the operator set. Operators merge with the structured fields below.
	Query string

	AccountID      string
	Folder         string
	From           string // substring match on sender address or name
	To             string // substring match on any to-recipient address
	Subject        string // substring match
	IsUnread       bool
	IsStarred      bool
	HasAttachments bool

	// DateFrom and DateTo bound the message date; both ends inclusive.
	DateFrom *time.Time
	DateTo   *time.Time

	SortBy  SortField
	SortAsc bool

	Limit  int
	Offset int
}

const defaultSearchLimit = 100

// hasFTSTable checks whether the messages_fts table exists, caching the
// first successful answer.
func (e *Engine) hasFTSTable(ctx context.Context) bool {
	e.ftsMu.Lock()
	defer e.ftsMu.Unlock()

	if e.ftsChecked {
		return e.ftsResult
	}

	var count int
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='messages_fts'
	`).Scan(&count)
	if err != nil {
		return false
	}

	e.ftsResult = count > 0
	e.ftsChecked = true
	return e.ftsResult
}

// SearchMessages returns the page of messages matching all the given
// filters, fully rehydrated with recipients, labels and attachments.
func (e *Engine) SearchMessages(ctx context.Context, opts SearchOptions) ([]*store.Message, error) {
	q := search.Parse(opts.Query)

	conditions, args, joins, usedFTS := e.buildQueryParts(ctx, q, opts)

	orderBy, err := sortClause(opts, usedFTS && len(q.TextTerms) > 0)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	where := "1=1"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM messages m
		%s
		WHERE %s
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, messageColumns, strings.Join(joins, "\n"), where, orderBy)
	args = append(args, limit, opts.Offset)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search messages: %w", store.ErrQuery, err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: search messages: %w", store.ErrQuery, err)
	}

	if err := e.rehydrate(ctx, messages); err != nil {
		return nil, fmt.Errorf("%w: search messages: %w", store.ErrQuery, err)
	}
	return messages, nil
}

// buildQueryParts turns the parsed query plus structured options into
// WHERE conditions, args and JOIN clauses. usedFTS reports whether the
// text terms went through the FTS index rather than LIKE.
func (e *Engine) buildQueryParts(ctx context.Context, q *search.Query, opts SearchOptions) (conditions []string, args []any, joins []string, usedFTS bool) {
	if opts.AccountID != "" {
		conditions = append(conditions, "m.account_id = ?")
		args = append(args, opts.AccountID)
	}

	folder := opts.Folder
	if q.Folder != nil {
		folder = *q.Folder
	}
	if folder != "" {
		conditions = append(conditions, "m.folder = ?")
		args = append(args, folder)
	}

	// Sender filters hit the denormalized from columns directly; @domain
	// values become suffix matches.
	if len(q.FromAddrs) > 0 {
		var fromConds []string
		for _, addr := range q.FromAddrs {
			if strings.HasPrefix(addr, "@") {
				fromConds = append(fromConds, "LOWER(m.from_address) LIKE ?")
				args = append(args, "%"+addr)
			} else {
				fromConds = append(fromConds, "LOWER(m.from_address) = ?")
				args = append(args, addr)
			}
		}
		conditions = append(conditions, "("+strings.Join(fromConds, " OR ")+")")
	}
	if opts.From != "" {
		conditions = append(conditions, "(m.from_address LIKE ? OR m.from_name LIKE ?)")
		like := "%" + opts.From + "%"
		args = append(args, like, like)
	}

	// Recipient and label filters use EXISTS so a message with several
	// matching child rows still yields a single result row.
	recips := []struct {
		kind  string
		addrs []string
	}{
		{"to", q.ToAddrs},
		{"cc", q.CcAddrs},
		{"bcc", q.BccAddrs},
	}
	for _, rc := range recips {
		if len(rc.addrs) == 0 {
			continue
		}
		placeholders := make([]string, len(rc.addrs))
		for i, addr := range rc.addrs {
			placeholders[i] = "?"
			args = append(args, addr)
		}
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS(SELECT 1 FROM recipients r WHERE r.message_id = m.id AND r.recipient_type = '%s' AND LOWER(r.address) IN (%s))",
			rc.kind, strings.Join(placeholders, ",")))
	}
	if opts.To != "" {
		conditions = append(conditions,
			"EXISTS(SELECT 1 FROM recipients r WHERE r.message_id = m.id AND r.recipient_type = 'to' AND r.address LIKE ?)")
		args = append(args, "%"+opts.To+"%")
	}

	if len(q.Labels) > 0 {
		placeholders := make([]string, len(q.Labels))
		for i, label := range q.Labels {
			placeholders[i] = "?"
			args = append(args, label)
		}
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS(SELECT 1 FROM message_labels ml WHERE ml.message_id = m.id AND ml.label IN (%s))",
			strings.Join(placeholders, ",")))
	}

	for _, term := range q.SubjectTerms {
		conditions = append(conditions, "m.subject LIKE ?")
		args = append(args, "%"+term+"%")
	}
	if opts.Subject != "" {
		conditions = append(conditions, "m.subject LIKE ?")
		args = append(args, "%"+opts.Subject+"%")
	}

	if opts.IsUnread || (q.IsRead != nil && !*q.IsRead) {
		conditions = append(conditions, "m.is_read = 0")
	} else if q.IsRead != nil && *q.IsRead {
		conditions = append(conditions, "m.is_read = 1")
	}
	if opts.IsStarred || (q.IsStarred != nil && *q.IsStarred) {
		conditions = append(conditions, "m.is_starred = 1")
	}
	if q.IsImportant != nil && *q.IsImportant {
		conditions = append(conditions, "m.is_important = 1")
	}
	if opts.HasAttachments || (q.HasAttachment != nil && *q.HasAttachment) {
		conditions = append(conditions, "m.has_attachments = 1")
	}

	if q.AfterDate != nil {
		conditions = append(conditions, "m.date >= ?")
		args = append(args, q.AfterDate.UTC().Format("2006-01-02 15:04:05"))
	}
	if q.BeforeDate != nil {
		conditions = append(conditions, "m.date < ?")
		args = append(args, q.BeforeDate.UTC().Format("2006-01-02 15:04:05"))
	}

	// Bound as time.Time so stored values and bounds share the driver's
	// serialization and equal timestamps compare equal.
	if opts.DateFrom != nil {
		conditions = append(conditions, "m.date >= ?")
		args = append(args, opts.DateFrom.UTC())
	}
	if opts.DateTo != nil {
		conditions = append(conditions, "m.date <= ?")
		args = append(args, opts.DateTo.UTC())
	}

	if q.LargerThan != nil {
		conditions = append(conditions, "m.size > ?")
		args = append(args, *q.LargerThan)
	}
	if q.SmallerThan != nil {
		conditions = append(conditions, "m.size < ?")
		args = append(args, *q.SmallerThan)
	}

	if len(q.TextTerms) > 0 {
		if e.hasFTSTable(ctx) {
			usedFTS = true
			joins = append(joins, "JOIN messages_fts fts ON fts.message_id = m.id")
			ftsTerms := make([]string, len(q.TextTerms))
			for i, term := range q.TextTerms {
				term = strings.ReplaceAll(term, "\"", "\"\"")
				if strings.ContainsAny(term, " -:@.") {
					ftsTerms[i] = "\"" + term + "\""
				} else {
					ftsTerms[i] = term
				}
			}
			conditions = append(conditions, "messages_fts MATCH ?")
			args = append(args, strings.Join(ftsTerms, " "))
		} else {
			for _, term := range q.TextTerms {
				likeTerm := "%" + term + "%"
				conditions = append(conditions,
					"(m.subject LIKE ? OR m.snippet LIKE ? OR m.body_text LIKE ? OR m.from_address LIKE ?)")
				args = append(args, likeTerm, likeTerm, likeTerm, likeTerm)
			}
		}
	}

	return conditions, args, joins, usedFTS
}

// sortClause validates the sort field and returns the ORDER BY expression.
func sortClause(opts SearchOptions, ftsRanked bool) (string, error) {
	dir := "DESC"
	if opts.SortAsc {
		dir = "ASC"
	}

	switch opts.SortBy {
	case SortDefault:
		if ftsRanked {
			return "rank", nil
		}
		return "m.date DESC", nil
	case SortDate:
		return "m.date " + dir, nil
	case SortFrom:
		return "m.from_address " + dir + ", m.date DESC", nil
	case SortSubject:
		return "m.subject " + dir + ", m.date DESC", nil
	case SortSize:
		return "m.size " + dir + ", m.date DESC", nil
	default:
		return "", fmt.Errorf("%w: unsupported sort field: %d", store.ErrQuery, opts.SortBy)
	}
}
