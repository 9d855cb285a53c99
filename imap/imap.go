package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dhcgn/imap-otp/mailbox"
	"github.com/dhcgn/imap-otp/message"
	"github.com/dhcgn/imap-otp/model"
)

var ErrMessageNotFound = errors.New("message not found")

type Options struct {
	Host               string
	Port               int
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
	DialTimeout        time.Duration
}

// Opener dials a fresh IMAP connection for every request.
type Opener struct {
	opts   Options
	logger *slog.Logger
}

func NewOpener(opts Options, logger *slog.Logger) (*Opener, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	return &Opener{opts: opts, logger: logger}, nil
}

// Open connects, logs in and selects the mailbox read-only. The secret is
// only used for LOGIN and is not kept on the session.
func (o *Opener) Open(ctx context.Context, creds model.Credentials) (mailbox.Session, error) {
	address := net.JoinHostPort(o.opts.Host, strconv.Itoa(o.opts.Port))

	conn, err := o.dialConn(ctx, address)
	if err != nil {
		return nil, &mailbox.ConnectError{Op: "dial " + address, Err: err}
	}

	client := imapclient.New(conn, &imapclient.Options{})
	s := &session{ctx: ctx, client: client, logger: o.logger}
	s.stopWatch = context.AfterFunc(ctx, s.closeConn)

	if err := client.WaitGreeting(); err != nil {
		s.abort()
		return nil, &mailbox.ConnectError{Op: "greeting", Err: err}
	}

	if err := client.Login(creds.Address, creds.Secret).Wait(); err != nil {
		s.abort()
		if isServerRejection(err) {
			return nil, &mailbox.AuthError{Err: err}
		}
		return nil, &mailbox.ConnectError{Op: "login", Err: err}
	}

	if _, err := client.Select(o.mailboxName(), &imapv2.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		s.Close()
		return nil, &mailbox.ConnectError{Op: "select " + o.mailboxName(), Err: err}
	}

	if o.logger != nil {
		o.logger.Debug("imap session established", "address", address, "mailbox", o.mailboxName(), "tls", o.opts.UseTLS)
	}

	return s, nil
}

func (o *Opener) dialConn(ctx context.Context, address string) (net.Conn, error) {
	netDialer := &net.Dialer{Timeout: o.opts.DialTimeout}
	if !o.opts.UseTLS {
		return netDialer.DialContext(ctx, "tcp", address)
	}

	dialer := &tls.Dialer{
		NetDialer: netDialer,
		Config: &tls.Config{
			ServerName:         o.opts.Host,
			InsecureSkipVerify: o.opts.InsecureSkipVerify,
		},
	}
	return dialer.DialContext(ctx, "tcp", address)
}

func (o *Opener) mailboxName() string {
	if o.opts.Mailbox == "" {
		return "INBOX"
	}
	return o.opts.Mailbox
}

type session struct {
	ctx       context.Context
	client    *imapclient.Client
	logger    *slog.Logger
	stopWatch func() bool

	closeOnce sync.Once
	connOnce  sync.Once
}

func (s *session) Search(ctx context.Context, criteria model.Criteria) ([]model.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.client.UIDSearch(buildSearchCriteria(criteria), nil).Wait()
	if err != nil {
		return nil, &mailbox.ConnectError{Op: "search", Err: err}
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := s.client.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{
		UID:          true,
		InternalDate: true,
	})
	defer fetchCmd.Close()

	refs := make([]model.MessageRef, 0, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		if !criteria.Since.IsZero() && buf.InternalDate.Before(criteria.Since) {
			continue
		}
		refs = append(refs, model.MessageRef{UID: uint32(buf.UID), ReceivedAt: buf.InternalDate})
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, &mailbox.ConnectError{Op: "fetch dates", Err: err}
	}

	return newestFirst(refs, criteria.Limit), nil
}

func (s *session) Fetch(ctx context.Context, ref model.MessageRef) (model.CandidateMessage, error) {
	if err := ctx.Err(); err != nil {
		return model.CandidateMessage{}, err
	}

	section := &imapv2.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(imapv2.UIDSetNum(imapv2.UID(ref.UID)), &imapv2.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imapv2.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: err}
		}
		return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: ErrMessageNotFound}
	}

	buf, err := msg.Collect()
	if err != nil {
		return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: err}
	}
	if err := fetchCmd.Close(); err != nil {
		return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: err}
	}

	candidate, err := message.Parse(buf.FindBodySection(section))
	if err != nil {
		return model.CandidateMessage{}, &mailbox.FetchError{UID: ref.UID, Err: err}
	}
	candidate.UID = ref.UID
	if candidate.ReceivedAt.IsZero() {
		candidate.ReceivedAt = buf.InternalDate
	}
	return candidate, nil
}

// Close logs out while the request context is still live and always
// releases the connection. The context watch stays armed through LOGOUT.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		if s.ctx.Err() == nil {
			if err := s.client.Logout().Wait(); err != nil && s.logger != nil {
				s.logger.Debug("imap logout failed", "err", err)
			}
		}
		s.stopWatch()
		s.closeConn()
	})
}

// abort releases a session that never finished logging in.
func (s *session) abort() {
	s.closeOnce.Do(func() {
		s.stopWatch()
		s.closeConn()
	})
}

func (s *session) closeConn() {
	s.connOnce.Do(func() {
		if err := s.client.Close(); err != nil && s.logger != nil {
			s.logger.Debug("imap connection closed", "err", err)
		}
	})
}

func newestFirst(refs []model.MessageRef, limit int) []model.MessageRef {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].ReceivedAt.Equal(refs[j].ReceivedAt) {
			return refs[i].UID > refs[j].UID
		}
		return refs[i].ReceivedAt.After(refs[j].ReceivedAt)
	})
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs
}

// isServerRejection reports whether the server answered the command with a
// NO or BAD status rather than the transport failing.
func isServerRejection(err error) bool {
	var respErr *imapv2.Error
	return errors.As(err, &respErr)
}
