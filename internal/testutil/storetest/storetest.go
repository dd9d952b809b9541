// Package storetest provides a Fixture and message builders for tests that
// exercise the store through its public API.
package storetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/pavlealeksic/mailstore/internal/store"
	"github.com/pavlealeksic/mailstore/internal/testutil"
)

// BaseTime is the date of the first generated message; each subsequent
// message is one minute later so date ordering matches insertion order.
var BaseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Fixture holds common test state for store-level tests.
type Fixture struct {
	T       *testing.T
	Store   *store.Store
	Account store.Account

	seq int
}

// New creates a Fixture with a fresh test database and one account
// ("test@example.com").
func New(t *testing.T) *Fixture {
	t.Helper()
	st := testutil.NewTestStore(t)
	acct := store.Account{
		ID:       "acct-1",
		Email:    "test@example.com",
		Provider: "gmail",
		Name:     "Test Account",
	}
	testutil.MustNoErr(t, st.UpsertAccount(acct), "setup: UpsertAccount")
	return &Fixture{T: t, Store: st, Account: acct}
}

// NewMessage builds a minimal unread inbox message owned by the fixture
// account. Callers mutate the result before inserting when a test needs
// specific fields.
func (f *Fixture) NewMessage(id string) *store.Message {
	f.seq++
	return &store.Message{
		ID:        id,
		AccountID: f.Account.ID,
		ThreadID:  "thread-" + id,
		Folder:    "INBOX",
		Subject:   "Subject " + id,
		From:      store.Address{Name: "Alice", Email: "alice@example.com"},
		To:        []store.Address{{Name: "Bob", Email: "bob@example.com"}},
		Date:      BaseTime.Add(time.Duration(f.seq) * time.Minute),
		Size:      1000,
	}
}

// Insert inserts the message, failing the test on error.
func (f *Fixture) Insert(msg *store.Message) {
	f.T.Helper()
	testutil.MustNoErr(f.T, f.Store.InsertMessage(msg), "InsertMessage "+msg.ID)
}

// CreateMessages inserts count messages with ids "msg-0" .. "msg-(count-1)",
// all in the same thread and folder.
func (f *Fixture) CreateMessages(count int, threadID, folder string) []string {
	f.T.Helper()
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		msg := f.NewMessage(fmt.Sprintf("msg-%d", i))
		msg.ThreadID = threadID
		msg.Folder = folder
		f.Insert(msg)
		ids = append(ids, msg.ID)
	}
	return ids
}
