package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/imap-otp/command"
	"github.com/dhcgn/imap-otp/config"
	"github.com/dhcgn/imap-otp/extract"
)

func TestResolveCredentials(t *testing.T) {
	creds, err := resolveCredentials(config.Config{Address: "rider@outlook.com", Secret: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "rider@outlook.com", creds.Address)
	assert.Equal(t, "pw", creds.Secret)

	_, err = resolveCredentials(config.Config{Secret: "pw"})
	assert.Error(t, err)

	_, err = resolveCredentials(config.Config{Address: "rider@outlook.com"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "rider@outlook.com")
}

func TestPrintReply(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printReply(&buf, command.Reply{
		Success:    true,
		Title:      "Code found",
		Code:       "482913",
		Subject:    "Your Uber code",
		ReceivedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, buf.String(), "Code found: 482913")
	assert.Contains(t, buf.String(), "Subject:  Your Uber code")

	buf.Reset()
	printReply(&buf, command.Reply{Title: "Failed", Message: "No recent verification email found."})
	assert.Equal(t, "Failed: No recent verification email found.\n", buf.String())
}

func TestRun_Mbox(t *testing.T) {
	color.NoColor = true

	cfg := config.Config{
		MboxPath:      filepath.Join("mbox", "testdata", "inbox.mbox"),
		Timeout:       5 * time.Second,
		MaxCandidates: 20,
		Policy:        extract.DefaultOptions(),
	}

	var buf bytes.Buffer
	err := run(context.Background(), &buf, cfg, []string{"rider@outlook.com:pw"}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "222222")

	buf.Reset()
	err = run(context.Background(), &buf, cfg, []string{"not-an-address"}, nil)
	assert.ErrorIs(t, err, errRequestFailed)
	assert.Contains(t, buf.String(), "Wrong format")
}
