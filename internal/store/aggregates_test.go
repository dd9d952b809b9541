package store_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/pavlealeksic/mailstore/internal/store"
	"github.com/pavlealeksic/mailstore/internal/testutil"
	"github.com/pavlealeksic/mailstore/internal/testutil/storetest"
)

type threadAgg struct {
	MessageCount   int64
	HasUnread      bool
	HasStarred     bool
	HasImportant   bool
	HasAttachments bool
	LastMessageAt  time.Time
}

func readThread(t *testing.T, f *storetest.Fixture, id string) threadAgg {
	t.Helper()
	var agg threadAgg
	var lastAt sql.NullTime
	err := f.Store.DB().QueryRow(`
		SELECT message_count, has_unread, has_starred, has_important, has_attachments, last_message_at
		FROM threads WHERE id = ?
	`, id).Scan(&agg.MessageCount, &agg.HasUnread, &agg.HasStarred,
		&agg.HasImportant, &agg.HasAttachments, &lastAt)
	testutil.MustNoErr(t, err, "read thread "+id)
	if lastAt.Valid {
		agg.LastMessageAt = lastAt.Time
	}
	return agg
}

func readFolder(t *testing.T, f *storetest.Fixture, path string) (messageCount, unreadCount int64) {
	t.Helper()
	err := f.Store.DB().QueryRow(
		"SELECT message_count, unread_count FROM folders WHERE account_id = ? AND path = ?",
		f.Account.ID, path,
	).Scan(&messageCount, &unreadCount)
	testutil.MustNoErr(t, err, "read folder "+path)
	return
}

// Two messages in one thread and folder, one unread; reading the unread
// one must atomically flip the thread and folder aggregates.
func TestThreadAndFolderAggregates(t *testing.T) {
	f := storetest.New(t)

	d1 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)

	a := f.NewMessage("msg-a")
	a.ThreadID = "t1"
	a.Folder = "INBOX"
	a.Date = d1
	f.Insert(a)

	b := f.NewMessage("msg-b")
	b.ThreadID = "t1"
	b.Folder = "INBOX"
	b.Date = d2
	b.Flags.IsRead = true
	f.Insert(b)

	agg := readThread(t, f, "t1")
	if agg.MessageCount != 2 || !agg.HasUnread {
		t.Errorf("thread t1: count=%d unread=%v, want 2/true", agg.MessageCount, agg.HasUnread)
	}
	if !agg.LastMessageAt.Equal(d2) {
		t.Errorf("thread t1: last_message_at=%v, want %v", agg.LastMessageAt, d2)
	}
	msgCount, unread := readFolder(t, f, "INBOX")
	if msgCount != 2 || unread != 1 {
		t.Errorf("folder INBOX: count=%d unread=%d, want 2/1", msgCount, unread)
	}

	read := true
	_, err := f.Store.UpdateMessage("msg-a", store.MessageUpdate{
		Flags: store.FlagsUpdate{IsRead: &read},
	})
	testutil.MustNoErr(t, err, "mark read")

	agg = readThread(t, f, "t1")
	if agg.HasUnread {
		t.Error("thread t1: has_unread still true after marking all read")
	}
	if _, unread = readFolder(t, f, "INBOX"); unread != 0 {
		t.Errorf("folder INBOX: unread=%d, want 0", unread)
	}
}

func TestThreadFlagAggregates(t *testing.T) {
	f := storetest.New(t)

	a := f.NewMessage("m1")
	a.ThreadID = "t1"
	a.Flags.IsRead = true
	f.Insert(a)

	b := f.NewMessage("m2")
	b.ThreadID = "t1"
	b.Flags.IsRead = true
	b.Flags.IsStarred = true
	b.Flags.IsImportant = true
	b.Attachments = []store.Attachment{{Filename: "a.pdf"}}
	f.Insert(b)

	agg := readThread(t, f, "t1")
	if agg.HasUnread {
		t.Error("has_unread should be false")
	}
	if !agg.HasStarred || !agg.HasImportant || !agg.HasAttachments {
		t.Errorf("flag aggregates: starred=%v important=%v attachments=%v, want all true",
			agg.HasStarred, agg.HasImportant, agg.HasAttachments)
	}

	// Deleting the contributing message clears the flags again.
	_, err := f.Store.DeleteMessage("m2")
	testutil.MustNoErr(t, err, "delete m2")
	agg = readThread(t, f, "t1")
	if agg.HasStarred || agg.HasImportant || agg.HasAttachments {
		t.Errorf("flag aggregates after delete: starred=%v important=%v attachments=%v, want all false",
			agg.HasStarred, agg.HasImportant, agg.HasAttachments)
	}
}

// Emptied threads and folders keep their rows with zeroed aggregates.
func TestEmptyThreadAndFolderRetained(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.ThreadID = "t1"
	msg.Folder = "INBOX"
	f.Insert(msg)

	_, err := f.Store.DeleteMessage("m1")
	testutil.MustNoErr(t, err, "delete m1")

	agg := readThread(t, f, "t1")
	if agg.MessageCount != 0 || agg.HasUnread {
		t.Errorf("empty thread: count=%d unread=%v, want 0/false", agg.MessageCount, agg.HasUnread)
	}
	msgCount, unread := readFolder(t, f, "INBOX")
	if msgCount != 0 || unread != 0 {
		t.Errorf("empty folder: count=%d unread=%d, want 0/0", msgCount, unread)
	}
}

func TestMessageMoveBetweenThreads(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.ThreadID = "t1"
	f.Insert(msg)

	// Re-insert under a different thread; the old thread must drop to zero.
	msg.ThreadID = "t2"
	f.Insert(msg)

	if agg := readThread(t, f, "t1"); agg.MessageCount != 0 {
		t.Errorf("old thread count = %d, want 0", agg.MessageCount)
	}
	if agg := readThread(t, f, "t2"); agg.MessageCount != 1 {
		t.Errorf("new thread count = %d, want 1", agg.MessageCount)
	}
}

// Recomputation is a pure function of the message rows: running it again
// with no intervening write must not change any aggregate.
func TestRecomputeIdempotent(t *testing.T) {
	f := storetest.New(t)

	a := f.NewMessage("m1")
	a.ThreadID = "t1"
	f.Insert(a)
	b := f.NewMessage("m2")
	b.ThreadID = "t1"
	b.Flags.IsRead = true
	f.Insert(b)

	before := readThread(t, f, "t1")

	// A flag update that changes nothing still triggers recompute.
	starred := false
	_, err := f.Store.UpdateMessage("m2", store.MessageUpdate{
		Flags: store.FlagsUpdate{IsStarred: &starred},
	})
	testutil.MustNoErr(t, err, "no-op update")

	after := readThread(t, f, "t1")
	if before != after {
		t.Errorf("aggregates changed with no effective write:\nbefore %+v\nafter  %+v", before, after)
	}
}
