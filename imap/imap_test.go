package imap

import (
	"fmt"
	"testing"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"

	"github.com/dhcgn/imap-otp/model"
)

func TestNewOpener_Validation(t *testing.T) {
	if _, err := NewOpener(Options{Port: 993}, nil); err == nil {
		t.Error("expected error for empty host")
	}
	if _, err := NewOpener(Options{Host: "imap.example.com"}, nil); err == nil {
		t.Error("expected error for missing port")
	}
	o, err := NewOpener(Options{Host: "imap.example.com", Port: 993}, nil)
	if err != nil {
		t.Fatalf("NewOpener() error = %v", err)
	}
	if got := o.mailboxName(); got != "INBOX" {
		t.Errorf("mailboxName() = %q, want INBOX", got)
	}
}

func TestBuildSearchCriteria_SingleDomain(t *testing.T) {
	since := time.Date(2026, 10, 14, 22, 15, 0, 0, time.UTC)
	got := buildSearchCriteria(model.Criteria{SenderDomains: []string{"uber.com"}, Since: since})

	if len(got.Header) != 1 {
		t.Fatalf("expected 1 header criteria, got %d", len(got.Header))
	}
	if got.Header[0].Key != "From" || got.Header[0].Value != "uber.com" {
		t.Errorf("unexpected header criteria %+v", got.Header[0])
	}
	if want := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC); !got.Since.Equal(want) {
		t.Errorf("Since = %v, want %v", got.Since, want)
	}
	if len(got.Or) != 0 {
		t.Errorf("expected no OR criteria, got %d", len(got.Or))
	}
}

func TestBuildSearchCriteria_MultipleDomains(t *testing.T) {
	got := buildSearchCriteria(model.Criteria{SenderDomains: []string{"uber.com", "", "uber.net", "ubereats.com"}})

	if !got.Since.IsZero() {
		t.Errorf("expected zero Since, got %v", got.Since)
	}
	if len(got.Or) != 1 {
		t.Fatalf("expected 1 OR pair, got %d", len(got.Or))
	}
	first := got.Or[0][0]
	if first.Header[0].Value != "uber.com" {
		t.Errorf("first OR branch = %+v", first)
	}
	nested := got.Or[0][1].Or
	if len(nested) != 1 {
		t.Fatalf("expected nested OR pair, got %d", len(nested))
	}
	if nested[0][0].Header[0].Value != "uber.net" || nested[0][1].Header[0].Value != "ubereats.com" {
		t.Errorf("nested OR = %+v", nested[0])
	}
}

func TestNewestFirst(t *testing.T) {
	base := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	refs := []model.MessageRef{
		{UID: 1, ReceivedAt: base},
		{UID: 3, ReceivedAt: base.Add(2 * time.Minute)},
		{UID: 2, ReceivedAt: base.Add(time.Minute)},
		{UID: 4, ReceivedAt: base.Add(2 * time.Minute)},
	}

	got := newestFirst(refs, 3)
	want := []uint32{4, 3, 2}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, uid := range want {
		if got[i].UID != uid {
			t.Errorf("position %d: uid %d, want %d", i, got[i].UID, uid)
		}
	}
}

func TestIsServerRejection(t *testing.T) {
	rejected := &imapv2.Error{Type: imapv2.StatusResponseTypeNo, Text: "invalid credentials"}
	if !isServerRejection(fmt.Errorf("login: %w", rejected)) {
		t.Error("expected NO response to count as rejection")
	}
	if isServerRejection(fmt.Errorf("read tcp: connection reset")) {
		t.Error("expected transport error not to count as rejection")
	}
}
