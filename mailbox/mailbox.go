// Package mailbox defines the transient mailbox session contract shared by
// the IMAP client and the local mbox store.
package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhcgn/imap-otp/model"
)

// Opener establishes an authenticated session for one request.
type Opener interface {
	Open(ctx context.Context, creds model.Credentials) (Session, error)
}

// Session is owned by a single request and must be closed before it returns.
type Session interface {
	// Search returns matching messages newest first. No matches is not an error.
	Search(ctx context.Context, criteria model.Criteria) ([]model.MessageRef, error)
	// Fetch retrieves the full content of one message.
	Fetch(ctx context.Context, ref model.MessageRef) (model.CandidateMessage, error)
	// Close is idempotent and never fails.
	Close()
}

// AuthError means the server rejected the credentials. It is not retryable.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mailbox authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectError is a transient network or server failure.
type ConnectError struct {
	Op  string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("mailbox %s: %v", e.Op, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// FetchError means a single message could not be retrieved.
type FetchError struct {
	UID uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch message uid %d: %v", e.UID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsConnectError reports whether err (or any error in its chain) is a ConnectError.
func IsConnectError(err error) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr)
}
