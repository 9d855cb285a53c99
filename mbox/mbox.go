// Package mbox serves a local mbox export through the mailbox session
// contract. It backs --mbox rehearsals and tests; the file is re-read on
// every Open so nothing outlives a request.
package mbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/imap-otp/mailbox"
	"github.com/dhcgn/imap-otp/message"
	"github.com/dhcgn/imap-otp/model"
)

var (
	ErrSessionClosed   = errors.New("mbox session closed")
	ErrMessageNotFound = errors.New("message not found")
)

type Options struct {
	Path string
	// Data is read instead of Path when set.
	Data []byte
}

type Opener struct {
	opts   Options
	logger *slog.Logger
}

func NewOpener(opts Options, logger *slog.Logger) (*Opener, error) {
	if strings.TrimSpace(opts.Path) == "" && opts.Data == nil {
		return nil, fmt.Errorf("mbox path is empty")
	}
	return &Opener{opts: opts, logger: logger}, nil
}

// Open loads the mbox. Credentials only need to be present; a local file
// has nothing to authenticate against.
func (o *Opener) Open(ctx context.Context, creds model.Credentials) (mailbox.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if creds.Empty() {
		return nil, &mailbox.AuthError{Err: errors.New("missing address or secret")}
	}

	var src io.Reader
	if o.opts.Data != nil {
		src = bytes.NewReader(o.opts.Data)
	} else {
		file, err := os.Open(o.opts.Path)
		if err != nil {
			return nil, &mailbox.ConnectError{Op: "open mbox", Err: err}
		}
		defer file.Close()
		src = file
	}

	entries, err := readEntries(ctx, src, o.logger)
	if err != nil {
		return nil, &mailbox.ConnectError{Op: "read mbox", Err: err}
	}

	if o.logger != nil {
		o.logger.Debug("mbox session opened", "path", o.opts.Path, "messages", len(entries))
	}
	return &session{entries: entries}, nil
}

type entry struct {
	uid    uint32
	header message.Header
	raw    []byte
}

func readEntries(ctx context.Context, src io.Reader, logger *slog.Logger) ([]entry, error) {
	reader := mboxlib.NewReader(src)

	var entries []entry
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("message %d read: %w", idx, err)
		}

		hdr, err := message.ParseHeader(raw)
		if err != nil {
			if logger != nil {
				logger.Debug("skipping unparsable mbox message", "index", idx, "err", err)
			}
			continue
		}

		entries = append(entries, entry{uid: uint32(idx + 1), header: hdr, raw: raw})
	}
}

type session struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

func (s *session) Search(ctx context.Context, criteria model.Criteria) ([]model.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &mailbox.ConnectError{Op: "search", Err: ErrSessionClosed}
	}

	var refs []model.MessageRef
	for _, e := range s.entries {
		if !fromDomain(e.header.Sender, criteria.SenderDomains) {
			continue
		}
		if !criteria.Since.IsZero() && e.header.Date.Before(criteria.Since) {
			continue
		}
		refs = append(refs, model.MessageRef{UID: e.uid, ReceivedAt: e.header.Date})
	}

	sortNewestFirst(refs)
	if criteria.Limit > 0 && len(refs) > criteria.Limit {
		refs = refs[:criteria.Limit]
	}
	return refs, nil
}

func (s *session) Fetch(ctx context.Context, ref model.MessageRef) (model.CandidateMessage, error) {
	if err := ctx.Err(); err != nil {
		return model.CandidateMessage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: ErrSessionClosed}
	}

	for _, e := range s.entries {
		if e.uid != ref.UID {
			continue
		}
		msg, err := message.Parse(e.raw)
		if err != nil {
			return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: err}
		}
		msg.UID = e.uid
		return msg, nil
	}
	return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: ErrMessageNotFound}
}

func (s *session) Close() {
	s.mu.Lock()
	s.closed = true
	s.entries = nil
	s.mu.Unlock()
}

// fromDomain mirrors the IMAP FROM substring search.
func fromDomain(sender string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	sender = strings.ToLower(sender)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && strings.Contains(sender, d) {
			return true
		}
	}
	return false
}

func sortNewestFirst(refs []model.MessageRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].ReceivedAt.Equal(refs[j].ReceivedAt) {
			return refs[i].UID > refs[j].UID
		}
		return refs[i].ReceivedAt.After(refs[j].ReceivedAt)
	})
}
