package model

import (
	"log/slog"
	"strings"
	"time"
)

// Credentials identify one mailbox for the duration of a single request.
// They are never logged; every formatting path is redacted.
type Credentials struct {
	Address string
	Secret  string
}

func (c Credentials) String() string {
	return "credentials(redacted)"
}

func (c Credentials) GoString() string {
	return c.String()
}

func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Empty reports whether either half of the credentials is missing.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Address) == "" || c.Secret == ""
}

// MessageRef identifies a message returned by a mailbox search.
type MessageRef struct {
	UID        uint32
	ReceivedAt time.Time
}

// Criteria scopes a server-side search.
type Criteria struct {
	SenderDomains []string
	Since         time.Time
	Limit         int
}

// CandidateMessage is a read-only view of one fetched message.
type CandidateMessage struct {
	ID         string
	UID        uint32
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Text is the content extraction runs on: the subject line followed by the body.
func (m CandidateMessage) Text() string {
	if m.Subject == "" {
		return m.Body
	}
	return m.Subject + "\n" + m.Body
}

// VerificationCode is handed to the caller and then discarded.
type VerificationCode struct {
	Value           string
	SourceMessageID string
	Subject         string
	ReceivedAt      time.Time
}
