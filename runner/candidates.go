package runner

import (
	"context"
	"iter"

	"github.com/dhcgn/imap-otp/mailbox"
	"github.com/dhcgn/imap-otp/model"
)

// candidates fetches refs one at a time, in order, only as the consumer
// asks for them. Ranging again starts over from the first ref. A fetch
// error is yielded once and ends the sequence.
func candidates(ctx context.Context, sess mailbox.Session, refs []model.MessageRef) iter.Seq2[model.CandidateMessage, error] {
	return func(yield func(model.CandidateMessage, error) bool) {
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				yield(model.CandidateMessage{}, err)
				return
			}
			msg, err := sess.Fetch(ctx, ref)
			if err != nil {
				yield(model.CandidateMessage{}, err)
				return
			}
			if msg.UID == 0 {
				msg.UID = ref.UID
			}
			if msg.ReceivedAt.IsZero() {
				msg.ReceivedAt = ref.ReceivedAt
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}
