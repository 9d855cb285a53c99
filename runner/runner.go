package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dhcgn/imap-otp/mailbox"
	"github.com/dhcgn/imap-otp/model"
	"github.com/dhcgn/imap-otp/stats"
)

// Extractor turns one candidate message into an extraction result.
type Extractor interface {
	TryExtract(msg model.CandidateMessage) model.ExtractionResult
}

type Options struct {
	// Timeout bounds connect, search and extraction together.
	Timeout time.Duration
	// Lookback limits the search to recently received mail. Zero disables it.
	Lookback      time.Duration
	MaxCandidates int
	SenderDomains []string
}

// Runner serves verification-code requests. It keeps no per-request state,
// so Handle may be called concurrently.
type Runner struct {
	opener    mailbox.Opener
	extractor Extractor
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func New(opener mailbox.Opener, extractor Extractor, opts Options, logger *slog.Logger) (*Runner, error) {
	if opener == nil {
		return nil, fmt.Errorf("mailbox opener must not be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor must not be nil")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if len(opts.SenderDomains) == 0 {
		return nil, fmt.Errorf("at least one sender domain is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		opener:    opener,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// request carries the state of a single Handle call.
type request struct {
	logger    *slog.Logger
	collector *stats.Collector
	state     State
	started   time.Time
}

func (req *request) transition(to State) {
	req.logger.Debug("request state", "from", req.state, "to", to)
	req.state = to
}

// Handle retrieves the newest verification code for creds. Every error it
// returns is a *Failure.
func (r *Runner) Handle(ctx context.Context, creds model.Credentials) (model.VerificationCode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req := &request{
		logger:    r.logger.With("request", uuid.NewString()),
		collector: stats.NewCollector(),
		state:     StateIdle,
		started:   time.Now(),
	}

	code, err := r.serve(ctx, req, creds)
	if err != nil {
		failure := classify(ctx, err)
		req.transition(StateFailed)
		req.logger.Info("request failed", append(req.collector.Snapshot().LogAttrs(),
			"kind", failure.Kind, "duration", time.Since(req.started), "err", failure.cause)...)
		return model.VerificationCode{}, failure
	}

	req.transition(StateSucceeded)
	req.logger.Info("request succeeded", append(req.collector.Snapshot().LogAttrs(),
		"messageID", code.SourceMessageID, "duration", time.Since(req.started))...)
	return code, nil
}

func (r *Runner) serve(ctx context.Context, req *request, creds model.Credentials) (model.VerificationCode, error) {
	if creds.Empty() {
		return model.VerificationCode{}, &mailbox.AuthError{Err: fmt.Errorf("missing address or secret")}
	}

	req.transition(StateConnecting)
	sess, err := r.open(ctx, req, creds)
	if err != nil {
		return model.VerificationCode{}, err
	}
	defer sess.Close()

	req.transition(StateSearching)
	refs, err := sess.Search(ctx, r.criteria())
	if err != nil {
		req.collector.Emit(stats.Event{Stage: stats.StageSearch, Type: stats.EventTypeError, Err: err})
		return model.VerificationCode{}, fmt.Errorf("search: %w", err)
	}
	req.collector.Emit(stats.Event{Stage: stats.StageSearch, Type: stats.EventTypeMatched, Count: len(refs)})
	if len(refs) == 0 {
		return model.VerificationCode{}, errNoMessages
	}

	req.transition(StateExtracting)
	for msg, err := range candidates(ctx, sess, refs) {
		if err != nil {
			req.collector.Emit(stats.Event{Stage: stats.StageFetch, Type: stats.EventTypeError, Err: err})
			return model.VerificationCode{}, err
		}
		req.collector.Emit(stats.Event{Stage: stats.StageFetch, Type: stats.EventTypeFetched, UID: msg.UID})

		res := r.extractor.TryExtract(msg)
		if res.OK() {
			req.collector.Emit(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeExtracted, UID: msg.UID})
			req.logger.Debug("code extracted", "uid", msg.UID, "rule", res.Rule())
			return model.VerificationCode{
				Value:           res.Code(),
				SourceMessageID: msg.ID,
				Subject:         msg.Subject,
				ReceivedAt:      msg.ReceivedAt,
			}, nil
		}

		switch res.Failure() {
		case model.NotRelevant:
			req.collector.Emit(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeNotRelevant, UID: msg.UID})
		default:
			req.collector.Emit(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeNoCode, UID: msg.UID})
		}
		req.logger.Debug("candidate skipped", "uid", msg.UID, "reason", res.Failure(), "detail", res.Detail())
	}

	return model.VerificationCode{}, errNoCode
}

// open connects once and retries a single time when the failure is transient.
func (r *Runner) open(ctx context.Context, req *request, creds model.Credentials) (mailbox.Session, error) {
	sess, err := r.opener.Open(ctx, creds)
	if err == nil {
		return sess, nil
	}
	req.collector.Emit(stats.Event{Stage: stats.StageConnect, Type: stats.EventTypeError, Err: err})
	if !mailbox.IsConnectError(err) || ctx.Err() != nil {
		return nil, err
	}

	req.logger.Warn("mailbox connect failed, retrying once", "err", err)
	req.collector.Emit(stats.Event{Stage: stats.StageConnect, Type: stats.EventTypeRetried})
	sess, err = r.opener.Open(ctx, creds)
	if err != nil {
		req.collector.Emit(stats.Event{Stage: stats.StageConnect, Type: stats.EventTypeError, Err: err})
		return nil, err
	}
	return sess, nil
}

func (r *Runner) criteria() model.Criteria {
	criteria := model.Criteria{
		SenderDomains: r.opts.SenderDomains,
		Limit:         r.opts.MaxCandidates,
	}
	if r.opts.Lookback > 0 {
		criteria.Since = r.now().Add(-r.opts.Lookback)
	}
	return criteria
}
