package mbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/imap-otp/mailbox"
	"github.com/dhcgn/imap-otp/model"
)

var testCreds = model.Credentials{Address: "rider@example.com", Secret: "secret"}

func openFixture(t *testing.T) mailbox.Session {
	t.Helper()
	opener, err := NewOpener(Options{Path: "testdata/inbox.mbox"}, nil)
	require.NoError(t, err)

	sess, err := opener.Open(context.Background(), testCreds)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func TestSearch_NewestFirstWithinWindow(t *testing.T) {
	sess := openFixture(t)

	refs, err := sess.Search(context.Background(), model.Criteria{
		SenderDomains: []string{"uber.com"},
		Since:         time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.True(t, refs[0].ReceivedAt.After(refs[1].ReceivedAt))

	newest, err := sess.Fetch(context.Background(), refs[0])
	require.NoError(t, err)
	assert.Equal(t, "newest@uber.com", newest.ID)
	assert.Contains(t, newest.Body, "222222")
	assert.NotContains(t, newest.Body, "<b>")
}

func TestSearch_NoWindowAndLimit(t *testing.T) {
	sess := openFixture(t)

	refs, err := sess.Search(context.Background(), model.Criteria{SenderDomains: []string{"uber.com"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, refs, 1)

	msg, err := sess.Fetch(context.Background(), refs[0])
	require.NoError(t, err)
	assert.Equal(t, "newest@uber.com", msg.ID)
}

func TestSearch_NoMatchesIsEmpty(t *testing.T) {
	sess := openFixture(t)

	refs, err := sess.Search(context.Background(), model.Criteria{SenderDomains: []string{"lyft.com"}})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestFetch_Unknown(t *testing.T) {
	sess := openFixture(t)

	_, err := sess.Fetch(context.Background(), model.MessageRef{UID: 42})
	var fetchErr *mailbox.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestClose_Idempotent(t *testing.T) {
	sess := openFixture(t)
	sess.Close()
	sess.Close()

	_, err := sess.Search(context.Background(), model.Criteria{})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestOpen_Errors(t *testing.T) {
	_, err := NewOpener(Options{}, nil)
	assert.Error(t, err)

	opener, err := NewOpener(Options{Path: "testdata/missing.mbox"}, nil)
	require.NoError(t, err)

	_, err = opener.Open(context.Background(), model.Credentials{Address: "rider@example.com"})
	assert.True(t, mailbox.IsAuthError(err), "expected auth error, got %v", err)

	_, err = opener.Open(context.Background(), testCreds)
	assert.True(t, mailbox.IsConnectError(err), "expected connect error, got %v", err)
}

func TestOpen_FromData(t *testing.T) {
	data := []byte("From a@uber.com Wed Oct 14 09:00:00 2026\n" +
		"From: a@uber.com\nSubject: hi\nDate: Wed, 14 Oct 2026 09:00:00 +0000\n\nCode 4455\n")
	opener, err := NewOpener(Options{Data: data}, nil)
	require.NoError(t, err)

	sess, err := opener.Open(context.Background(), testCreds)
	require.NoError(t, err)
	defer sess.Close()

	refs, err := sess.Search(context.Background(), model.Criteria{SenderDomains: []string{"uber.com"}})
	require.NoError(t, err)
	require.Len(t, refs, 1)
}
