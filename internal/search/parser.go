// Package search parses Gmail-style search strings into structured
// queries for the query engine.
package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Query is a parsed search string. Slice fields accumulate repeated
// operators; pointer fields are nil when the operator was absent.
type Query struct {
	TextTerms     []string
	FromAddrs     []string
	ToAddrs       []string
	CcAddrs       []string
	BccAddrs      []string
	SubjectTerms  []string
	Labels        []string
	Folder        *string
	HasAttachment *bool
	IsRead        *bool
	IsStarred     *bool
	IsImportant   *bool
	BeforeDate    *time.Time
	AfterDate     *time.Time
	LargerThan    *int64
	SmallerThan   *int64
}

// IsEmpty reports whether the query carries no criteria at all.
func (q *Query) IsEmpty() bool {
	return len(q.TextTerms) == 0 &&
		len(q.FromAddrs) == 0 &&
		len(q.ToAddrs) == 0 &&
		len(q.CcAddrs) == 0 &&
		len(q.BccAddrs) == 0 &&
		len(q.SubjectTerms) == 0 &&
		len(q.Labels) == 0 &&
		q.Folder == nil &&
		q.HasAttachment == nil &&
		q.IsRead == nil &&
		q.IsStarred == nil &&
		q.IsImportant == nil &&
		q.BeforeDate == nil &&
		q.AfterDate == nil &&
		q.LargerThan == nil &&
		q.SmallerThan == nil
}

type operatorFn func(q *Query, value string, now time.Time)

var operators = map[string]operatorFn{
	"from": func(q *Query, v string, _ time.Time) {
		q.FromAddrs = append(q.FromAddrs, strings.ToLower(v))
	},
	"to": func(q *Query, v string, _ time.Time) {
		q.ToAddrs = append(q.ToAddrs, strings.ToLower(v))
	},
	"cc": func(q *Query, v string, _ time.Time) {
		q.CcAddrs = append(q.CcAddrs, strings.ToLower(v))
	},
	"bcc": func(q *Query, v string, _ time.Time) {
		q.BccAddrs = append(q.BccAddrs, strings.ToLower(v))
	},
	"subject": func(q *Query, v string, _ time.Time) {
		q.SubjectTerms = append(q.SubjectTerms, v)
	},
	"label": func(q *Query, v string, _ time.Time) {
		q.Labels = append(q.Labels, v)
	},
	"l": func(q *Query, v string, _ time.Time) {
		q.Labels = append(q.Labels, v)
	},
	"in": func(q *Query, v string, _ time.Time) {
		q.Folder = &v
	},
	"folder": func(q *Query, v string, _ time.Time) {
		q.Folder = &v
	},
	"has": func(q *Query, v string, _ time.Time) {
		if low := strings.ToLower(v); low == "attachment" || low == "attachments" {
			b := true
			q.HasAttachment = &b
		}
	},
	"is": func(q *Query, v string, _ time.Time) {
		t, f := true, false
		switch strings.ToLower(v) {
		case "unread":
			q.IsRead = &f
		case "read":
			q.IsRead = &t
		case "starred":
			q.IsStarred = &t
		case "important":
			q.IsImportant = &t
		}
	},
	"before": func(q *Query, v string, _ time.Time) {
		if t := parseDate(v); t != nil {
			q.BeforeDate = t
		}
	},
	"after": func(q *Query, v string, _ time.Time) {
		if t := parseDate(v); t != nil {
			q.AfterDate = t
		}
	},
	"older_than": func(q *Query, v string, now time.Time) {
		if t := parseRelativeDate(v, now); t != nil {
			q.BeforeDate = t
		}
	},
	"newer_than": func(q *Query, v string, now time.Time) {
		if t := parseRelativeDate(v, now); t != nil {
			q.AfterDate = t
		}
	},
	"larger": func(q *Query, v string, _ time.Time) {
		if size := parseSize(v); size != nil {
			q.LargerThan = size
		}
	},
	"smaller": func(q *Query, v string, _ time.Time) {
		if size := parseSize(v); size != nil {
			q.SmallerThan = size
		}
	},
}

// Parser parses search strings. The time source is injectable so relative
// date operators are testable.
type Parser struct {
	Now func() time.Time
}

func NewParser() *Parser {
	return &Parser{Now: func() time.Time { return time.Now().UTC() }}
}

// Parse parses a Gmail-style search string.
//
// Supported operators:
//   - from:, to:, cc:, bcc: address filters
//   - subject: subject text
//   - label: or l: label filter
//   - in: or folder: folder filter
//   - has:attachment, is:unread, is:read, is:starred, is:important
//   - before:, after: absolute dates (YYYY-MM-DD)
//   - older_than:, newer_than: relative dates (7d, 2w, 1m, 1y)
//   - larger:, smaller: sizes (5M, 100K)
//
// Bare words and "quoted phrases" become full-text terms. Unknown
// operators are kept verbatim as text terms rather than dropped.
func (p *Parser) Parse(queryStr string) *Query {
	q := &Query{}
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}

	for _, token := range tokenize(queryStr) {
		if isQuotedPhrase(token) {
			q.TextTerms = append(q.TextTerms, unquote(token))
			continue
		}
		if idx := strings.Index(token, ":"); idx != -1 {
			op := strings.ToLower(token[:idx])
			value := unquote(token[idx+1:])
			if handler, ok := operators[op]; ok {
				handler(q, value, now)
			} else {
				q.TextTerms = append(q.TextTerms, token)
			}
			continue
		}
		q.TextTerms = append(q.TextTerms, token)
	}

	return q
}

// Parse parses with default settings.
func Parse(queryStr string) *Query {
	return NewParser().Parse(queryStr)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func isQuotedPhrase(token string) bool {
	return len(token) > 2 && token[0] == '"' && token[len(token)-1] == '"'
}

// tokenize splits on spaces while keeping quoted phrases intact, including
// the subject:"foo bar" form where the quoted value belongs to the
// preceding operator.
func tokenize(queryStr string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)
	afterColon := false
	opQuoted := false

	for _, char := range queryStr {
		switch {
		case (char == '"' || char == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = char
			opQuoted = afterColon
			if !afterColon && current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			if afterColon {
				current.WriteRune(char)
			}
			afterColon = false
		case char == quoteChar && inQuotes:
			inQuotes = false
			if opQuoted {
				current.WriteRune(char)
				tokens = append(tokens, current.String())
				current.Reset()
			} else if current.Len() > 0 {
				tokens = append(tokens, "\""+current.String()+"\"")
				current.Reset()
			}
			quoteChar = 0
			opQuoted = false
		case char == ' ' && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			afterColon = false
		default:
			current.WriteRune(char)
			afterColon = char == ':'
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func parseDate(value string) *time.Time {
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
	}
	value = strings.TrimSpace(value)
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

var relativeDateRe = regexp.MustCompile(`^(\d+)([dwmy])$`)

func parseRelativeDate(value string, now time.Time) *time.Time {
	match := relativeDateRe.FindStringSubmatch(strings.TrimSpace(strings.ToLower(value)))
	if match == nil {
		return nil
	}
	amount, _ := strconv.Atoi(match[1])

	var result time.Time
	switch match[2] {
	case "d":
		result = now.AddDate(0, 0, -amount)
	case "w":
		result = now.AddDate(0, 0, -amount*7)
	case "m":
		result = now.AddDate(0, -amount, 0)
	case "y":
		result = now.AddDate(-amount, 0, 0)
	default:
		return nil
	}
	return &result
}

func parseSize(value string) *int64 {
	value = strings.TrimSpace(strings.ToUpper(value))
	suffixes := []struct {
		suffix string
		mult   int64
	}{
		{"KB", 1024},
		{"MB", 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"K", 1024},
		{"M", 1024 * 1024},
		{"G", 1024 * 1024 * 1024},
	}
	for _, s := range suffixes {
		if strings.HasSuffix(value, s.suffix) {
			numStr := value[:len(value)-len(s.suffix)]
			if num, err := strconv.ParseFloat(numStr, 64); err == nil {
				result := int64(num * float64(s.mult))
				return &result
			}
			return nil
		}
	}
	if num, err := strconv.ParseInt(value, 10, 64); err == nil {
		return &num
	}
	return nil
}
