package store_test

import (
	"testing"
	"time"

	"github.com/pavlealeksic/mailstore/internal/store"
	"github.com/pavlealeksic/mailstore/internal/testutil"
	"github.com/pavlealeksic/mailstore/internal/testutil/storetest"
)

func countRows(t *testing.T, f *storetest.Fixture, query string, args ...any) int {
	t.Helper()
	var n int
	err := f.Store.DB().QueryRow(query, args...).Scan(&n)
	testutil.MustNoErr(t, err, "count rows")
	return n
}

func TestInsertMessageCreatesThreadAndFolder(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.ThreadID = "t1"
	msg.Folder = "INBOX"
	f.Insert(msg)

	if n := countRows(t, f, "SELECT COUNT(*) FROM threads WHERE id = 't1'"); n != 1 {
		t.Errorf("thread rows = %d, want 1", n)
	}
	if n := countRows(t, f, "SELECT COUNT(*) FROM folders WHERE account_id = ? AND path = 'INBOX'", f.Account.ID); n != 1 {
		t.Errorf("folder rows = %d, want 1", n)
	}
}

func TestInsertMessageReplacesChildRowsWholesale(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.To = []store.Address{{Email: "one@example.com"}, {Email: "two@example.com"}}
	msg.Labels = []string{"work", "urgent"}
	msg.Attachments = []store.Attachment{
		{ID: "att-1", Filename: "a.pdf", MimeType: "application/pdf", Size: 100},
		{ID: "att-2", Filename: "b.png", MimeType: "image/png", Size: 200},
	}
	f.Insert(msg)

	// Re-insert with a smaller child set; stale rows must not survive.
	msg.To = []store.Address{{Email: "three@example.com"}}
	msg.Labels = []string{"archive"}
	msg.Attachments = []store.Attachment{{ID: "att-3", Filename: "c.txt", MimeType: "text/plain", Size: 10}}
	f.Insert(msg)

	if n := countRows(t, f, "SELECT COUNT(*) FROM recipients WHERE message_id = 'm1' AND recipient_type = 'to'"); n != 1 {
		t.Errorf("to recipients = %d, want 1", n)
	}
	if n := countRows(t, f, "SELECT COUNT(*) FROM message_labels WHERE message_id = 'm1'"); n != 1 {
		t.Errorf("labels = %d, want 1", n)
	}
	if n := countRows(t, f, "SELECT COUNT(*) FROM attachments WHERE message_id = 'm1'"); n != 1 {
		t.Errorf("attachments = %d, want 1", n)
	}
	var label string
	err := f.Store.DB().QueryRow("SELECT label FROM message_labels WHERE message_id = 'm1'").Scan(&label)
	testutil.MustNoErr(t, err, "read label")
	if label != "archive" {
		t.Errorf("label = %q, want archive", label)
	}
}

func TestInsertMessageAttachmentsImplyFlag(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.Attachments = []store.Attachment{{Filename: "a.pdf"}}
	f.Insert(msg)

	var has bool
	err := f.Store.DB().QueryRow("SELECT has_attachments FROM messages WHERE id = 'm1'").Scan(&has)
	testutil.MustNoErr(t, err, "read has_attachments")
	if !has {
		t.Error("has_attachments should be set when attachments are present")
	}
}

func TestInsertMessageGeneratesAttachmentIDs(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.Attachments = []store.Attachment{{Filename: "a.pdf"}, {Filename: "b.pdf"}}
	f.Insert(msg)

	if n := countRows(t, f, "SELECT COUNT(DISTINCT id) FROM attachments WHERE message_id = 'm1'"); n != 2 {
		t.Errorf("distinct attachment ids = %d, want 2", n)
	}
}

func TestInsertMessageMaintainsFTS(t *testing.T) {
	f := storetest.New(t)
	if !f.Store.FTSAvailable() {
		t.Skip("sqlite build lacks fts5")
	}

	msg := f.NewMessage("m1")
	msg.Subject = "quarterly budget review"
	f.Insert(msg)

	if n := countRows(t, f, "SELECT COUNT(*) FROM messages_fts WHERE message_id = 'm1'"); n != 1 {
		t.Fatalf("fts rows = %d, want 1", n)
	}

	// Re-insert must not duplicate the index row.
	msg.Subject = "updated subject"
	f.Insert(msg)
	if n := countRows(t, f, "SELECT COUNT(*) FROM messages_fts WHERE message_id = 'm1'"); n != 1 {
		t.Errorf("fts rows after re-insert = %d, want 1", n)
	}

	if _, err := f.Store.DeleteMessage("m1"); err != nil {
		t.Fatalf("delete message: %v", err)
	}
	if n := countRows(t, f, "SELECT COUNT(*) FROM messages_fts WHERE message_id = 'm1'"); n != 0 {
		t.Errorf("fts rows after delete = %d, want 0", n)
	}
}

func TestUpdateMessageFlags(t *testing.T) {
	f := storetest.New(t)
	f.Insert(f.NewMessage("m1"))

	read, starred := true, true
	n, err := f.Store.UpdateMessage("m1", store.MessageUpdate{
		Flags: store.FlagsUpdate{IsRead: &read, IsStarred: &starred},
	})
	testutil.MustNoErr(t, err, "UpdateMessage")
	if n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}

	var isRead, isStarred, isTrashed bool
	err = f.Store.DB().QueryRow(
		"SELECT is_read, is_starred, is_trashed FROM messages WHERE id = 'm1'",
	).Scan(&isRead, &isStarred, &isTrashed)
	testutil.MustNoErr(t, err, "read flags")
	if !isRead || !isStarred {
		t.Errorf("flags not applied: is_read=%v is_starred=%v", isRead, isStarred)
	}
	if isTrashed {
		t.Error("untouched flag is_trashed changed")
	}
}

func TestUpdateMessageUnknownID(t *testing.T) {
	f := storetest.New(t)

	read := true
	n, err := f.Store.UpdateMessage("missing", store.MessageUpdate{
		Flags: store.FlagsUpdate{IsRead: &read},
	})
	testutil.MustNoErr(t, err, "UpdateMessage")
	if n != 0 {
		t.Errorf("rows affected = %d, want 0", n)
	}
}

func TestUpdateMessageReplacesLabels(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.Labels = []string{"work", "urgent"}
	f.Insert(msg)

	labels := []string{"done"}
	_, err := f.Store.UpdateMessage("m1", store.MessageUpdate{Labels: &labels})
	testutil.MustNoErr(t, err, "UpdateMessage")

	if n := countRows(t, f, "SELECT COUNT(*) FROM message_labels WHERE message_id = 'm1'"); n != 1 {
		t.Errorf("labels = %d, want 1", n)
	}

	// Clearing with an explicit empty slice removes them all; a nil
	// pointer leaves them alone.
	empty := []string{}
	_, err = f.Store.UpdateMessage("m1", store.MessageUpdate{Labels: &empty})
	testutil.MustNoErr(t, err, "UpdateMessage clear")
	if n := countRows(t, f, "SELECT COUNT(*) FROM message_labels WHERE message_id = 'm1'"); n != 0 {
		t.Errorf("labels after clear = %d, want 0", n)
	}
}

func TestUpdateMessageMoveFolder(t *testing.T) {
	f := storetest.New(t)
	f.Insert(f.NewMessage("m1"))

	archive := "Archive"
	_, err := f.Store.UpdateMessage("m1", store.MessageUpdate{Folder: &archive})
	testutil.MustNoErr(t, err, "UpdateMessage")

	var inboxCount, archiveCount int
	err = f.Store.DB().QueryRow(
		"SELECT message_count FROM folders WHERE account_id = ? AND path = 'INBOX'", f.Account.ID,
	).Scan(&inboxCount)
	testutil.MustNoErr(t, err, "inbox count")
	err = f.Store.DB().QueryRow(
		"SELECT message_count FROM folders WHERE account_id = ? AND path = 'Archive'", f.Account.ID,
	).Scan(&archiveCount)
	testutil.MustNoErr(t, err, "archive count")

	if inboxCount != 0 || archiveCount != 1 {
		t.Errorf("counts after move: INBOX=%d Archive=%d, want 0/1", inboxCount, archiveCount)
	}
}

func TestDeleteMessageCascades(t *testing.T) {
	f := storetest.New(t)

	msg := f.NewMessage("m1")
	msg.Labels = []string{"work"}
	msg.Attachments = []store.Attachment{{Filename: "a.pdf"}}
	f.Insert(msg)

	n, err := f.Store.DeleteMessage("m1")
	testutil.MustNoErr(t, err, "DeleteMessage")
	if n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}

	for _, table := range []string{"recipients", "message_labels", "attachments"} {
		if n := countRows(t, f, "SELECT COUNT(*) FROM "+table+" WHERE message_id = 'm1'"); n != 0 {
			t.Errorf("%s rows after delete = %d, want 0", table, n)
		}
	}

	// Deleting again is a no-op.
	n, err = f.Store.DeleteMessage("m1")
	testutil.MustNoErr(t, err, "DeleteMessage again")
	if n != 0 {
		t.Errorf("second delete rows affected = %d, want 0", n)
	}
}

func TestDeleteMessagesByAccount(t *testing.T) {
	f := storetest.New(t)
	f.CreateMessages(3, "t1", "INBOX")

	n, err := f.Store.DeleteMessagesByAccount(f.Account.ID)
	testutil.MustNoErr(t, err, "DeleteMessagesByAccount")
	if n != 3 {
		t.Fatalf("rows affected = %d, want 3", n)
	}

	if n := countRows(t, f, "SELECT COUNT(*) FROM messages WHERE account_id = ?", f.Account.ID); n != 0 {
		t.Errorf("messages left = %d, want 0", n)
	}
	// Threads and folders survive with zeroed aggregates.
	var msgCount int
	var hasUnread bool
	err = f.Store.DB().QueryRow(
		"SELECT message_count, has_unread FROM threads WHERE id = 't1'",
	).Scan(&msgCount, &hasUnread)
	testutil.MustNoErr(t, err, "read thread")
	if msgCount != 0 || hasUnread {
		t.Errorf("thread after purge: count=%d unread=%v, want 0/false", msgCount, hasUnread)
	}
}

func TestInsertMessageNormalizesDateToUTC(t *testing.T) {
	f := storetest.New(t)

	loc := time.FixedZone("UTC+5", 5*3600)
	msg := f.NewMessage("m1")
	msg.Date = time.Date(2024, 6, 1, 17, 0, 0, 0, loc)
	f.Insert(msg)

	var stored time.Time
	err := f.Store.DB().QueryRow("SELECT date FROM messages WHERE id = 'm1'").Scan(&stored)
	testutil.MustNoErr(t, err, "read date")
	if !stored.Equal(msg.Date) {
		t.Errorf("stored date %v does not equal inserted date %v", stored, msg.Date)
	}
}
