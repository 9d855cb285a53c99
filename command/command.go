// Package command adapts a chat command to a verification-code request and
// renders the reply the chat platform sends back.
package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dhcgn/imap-otp/model"
	"github.com/dhcgn/imap-otp/runner"
)

var ErrInvalidInput = errors.New("input must be address:password")

const usage = "Wrong format. Use: `you@outlook.com:password`"

// Requester serves one verification-code request.
type Requester interface {
	Handle(ctx context.Context, creds model.Credentials) (model.VerificationCode, error)
}

// Reply is what the chat platform shows the user.
type Reply struct {
	Success    bool
	Title      string
	Code       string
	Message    string
	Kind       string
	Subject    string
	ReceivedAt time.Time
}

type Handler struct {
	requester Requester
	logger    *slog.Logger
}

func NewHandler(requester Requester, logger *slog.Logger) *Handler {
	return &Handler{requester: requester, logger: logger}
}

// ParseInput splits "address:secret" or "address secret". The secret may
// itself contain colons or spaces.
func ParseInput(input string) (model.Credentials, error) {
	input = strings.TrimSpace(input)
	sep := strings.IndexAny(input, ": \t")
	if sep <= 0 {
		return model.Credentials{}, ErrInvalidInput
	}

	address := strings.TrimSpace(input[:sep])
	secret := strings.TrimLeft(input[sep+1:], " \t")
	if !strings.Contains(address, "@") || secret == "" {
		return model.Credentials{}, ErrInvalidInput
	}
	return model.Credentials{Address: address, Secret: secret}, nil
}

// Handle parses raw command input and serves the request.
func (h *Handler) Handle(ctx context.Context, input string) Reply {
	creds, err := ParseInput(input)
	if err != nil {
		return Reply{Title: "Failed", Message: usage, Kind: "invalid_input"}
	}
	return h.HandleCredentials(ctx, creds)
}

// HandleCredentials serves the request for an already parsed credential pair.
func (h *Handler) HandleCredentials(ctx context.Context, creds model.Credentials) Reply {
	code, err := h.requester.Handle(ctx, creds)
	if err != nil {
		reply := Reply{Title: "Failed", Message: err.Error(), Kind: "unknown"}
		if f, ok := runner.AsFailure(err); ok {
			reply.Kind = f.Kind.String()
		} else {
			reply.Message = "Something went wrong."
			if h.logger != nil {
				h.logger.Error("unexpected request error type", "err", err)
			}
		}
		return reply
	}

	return Reply{
		Success:    true,
		Title:      "Code found",
		Code:       code.Value,
		Message:    "Your verification code is " + code.Value,
		Subject:    truncate(code.Subject, 100),
		ReceivedAt: code.ReceivedAt,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
