package store

import "time"

// Account is a synced mailbox account. Accounts are created on first
// successful authentication and own all their folders, threads and messages.
type Account struct {
	ID       string
	Email    string
	Provider string
	Name     string
}

// Address is a single mail address with an optional display name.
type Address struct {
	Name  string
	Email string
}

// Flags is the per-message flag bundle as normalized by the sync adapters.
type Flags struct {
	IsRead         bool
	IsStarred      bool
	IsTrashed      bool
	IsSpam         bool
	IsImportant    bool
	IsArchived     bool
	IsDraft        bool
	IsSent         bool
	HasAttachments bool
}

// Attachment is a message attachment record. Data lives outside the cache;
// LocalPath points at it once downloaded.
type Attachment struct {
	ID        string
	Filename  string
	MimeType  string
	Size      int64
	ContentID string
	IsInline  bool
	LocalPath string
}

// Message is a fully populated message record as handed in by a sync
// adapter, and as returned by the query engine.
type Message struct {
	ID          string
	AccountID   string
	ProviderID  string
	ThreadID    string
	Folder      string
	Subject     string
	BodyText    string
	BodyHTML    string
	Snippet     string
	From        Address
	To          []Address
	Cc          []Address
	Bcc         []Address
	ReplyTo     []Address
	Date        time.Time
	Importance  string
	Priority    string
	Size        int64
	MessageID   string
	InReplyTo   string
	References  []string
	Labels      []string
	Attachments []Attachment
	Flags       Flags
}

// Thread is a materialized aggregate over the messages sharing a thread id.
// Threads are never written directly; every field except ID/AccountID/
// Subject is derived from the current message rows.
type Thread struct {
	ID             string
	AccountID      string
	Subject        string
	HasUnread      bool
	HasStarred     bool
	HasImportant   bool
	HasAttachments bool
	MessageCount   int64
	LastMessageAt  time.Time
}

// Folder caches per-folder aggregate counters scoped to one account.
type Folder struct {
	AccountID    string
	Path         string
	Name         string
	MessageCount int64
	UnreadCount  int64
}

// FlagsUpdate is a partial flag update: nil fields are left unchanged.
type FlagsUpdate struct {
	IsRead      *bool
	IsStarred   *bool
	IsTrashed   *bool
	IsSpam      *bool
	IsImportant *bool
	IsArchived  *bool
	IsDraft     *bool
	IsSent      *bool
}

// MessageUpdate describes a partial message update. A non-nil Labels slice
// replaces the label set wholesale; it is never merged.
type MessageUpdate struct {
	Flags  FlagsUpdate
	Folder *string
	Labels *[]string
}
