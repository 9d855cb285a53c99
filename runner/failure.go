package runner

import (
	"context"
	"errors"

	"github.com/dhcgn/imap-otp/mailbox"
)

// FailureKind is the closed set of outcomes a caller sees on failure.
type FailureKind int

const (
	FailureAuth FailureKind = iota + 1
	FailureConnect
	FailureNoMessages
	FailureNoCode
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth_error"
	case FailureConnect:
		return "connect_error"
	case FailureNoMessages:
		return "no_messages_found"
	case FailureNoCode:
		return "no_code_found"
	case FailureTimeout:
		return "timeout"
	}
	return "unknown"
}

// Message is the short, non-technical text shown to the user.
func (k FailureKind) Message() string {
	switch k {
	case FailureAuth:
		return "Mailbox login failed. Check the address and password."
	case FailureConnect:
		return "Could not reach the mail server. Try again shortly."
	case FailureNoMessages:
		return "No recent verification email found."
	case FailureNoCode:
		return "Found a recent email but couldn't find a code in it."
	case FailureTimeout:
		return "That took too long. Try again."
	}
	return "Something went wrong."
}

// Failure is the only error type Handle returns. The underlying cause is
// logged but never exposed.
type Failure struct {
	Kind  FailureKind
	cause error
}

func (f *Failure) Error() string {
	return f.Kind.Message()
}

// AsFailure extracts the Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

var (
	errNoMessages = errors.New("search returned no messages")
	errNoCode     = errors.New("no candidate yielded a code")
)

// classify maps any error produced while serving a request onto the
// failure taxonomy. An expired request context wins over the error that
// the interrupted operation happened to report.
func classify(ctx context.Context, err error) *Failure {
	if f, ok := AsFailure(err); ok {
		return f
	}

	kind := FailureConnect
	switch {
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = FailureTimeout
	case mailbox.IsAuthError(err):
		kind = FailureAuth
	case errors.Is(err, errNoMessages):
		kind = FailureNoMessages
	case errors.Is(err, errNoCode):
		kind = FailureNoCode
	}
	return &Failure{Kind: kind, cause: err}
}
