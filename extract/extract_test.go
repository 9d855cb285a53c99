package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/imap-otp/model"
)

func newDefault(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(DefaultOptions())
	require.NoError(t, err)
	return e
}

func uberMessage(body string) model.CandidateMessage {
	return model.CandidateMessage{ID: "m1", Sender: "noreply@uber.com", Body: body}
}

func TestTryExtract(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantRule string
		wantFail model.ExtractFailure
	}{
		{
			name:     "labeled verification code",
			body:     "Your verification code is 482913",
			wantCode: "482913",
			wantRule: "labeled",
		},
		{
			name:     "standalone only",
			body:     "482913 is your ride PIN",
			wantCode: "482913",
			wantRule: "standalone",
		},
		{
			name:     "labeled wins over earlier unlabeled run",
			body:     "Trip 5555 on 10/12. Your code: 123456",
			wantCode: "123456",
			wantRule: "labeled",
		},
		{
			name:     "otp label is case-insensitive",
			body:     "Use OTP - 7788 to sign in",
			wantCode: "7788",
			wantRule: "labeled",
		},
		{
			name:     "runs longer than eight digits are ignored",
			body:     "Order 123456789012 confirmed. Code 4321",
			wantCode: "4321",
			wantRule: "labeled",
		},
		{
			name:     "three-digit runs are ignored",
			body:     "Code 123 is too short and so is 99",
			wantFail: model.NoCodeFound,
		},
		{
			name:     "no digits at all",
			body:     "Welcome to Uber!",
			wantFail: model.NoCodeFound,
		},
		{
			name:     "label too far from the digits falls back to standalone",
			body:     "Enter the code shown below on your phone to continue 2468",
			wantCode: "2468",
			wantRule: "standalone",
		},
		{
			name:     "label inside another word does not count",
			body:     "Shipping 2024 update. Your pin: 9911",
			wantCode: "9911",
			wantRule: "labeled",
		},
	}

	e := newDefault(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.TryExtract(uberMessage(tt.body))
			if tt.wantFail != "" {
				assert.False(t, res.OK())
				assert.Equal(t, tt.wantFail, res.Failure())
				assert.Empty(t, res.Code())
				return
			}
			require.True(t, res.OK(), "failure: %s %s", res.Failure(), res.Detail())
			assert.Equal(t, tt.wantCode, res.Code())
			assert.Equal(t, tt.wantRule, res.Rule())
		})
	}
}

func TestTryExtract_SubjectIsSearched(t *testing.T) {
	e := newDefault(t)
	msg := uberMessage("Thanks for riding.")
	msg.Subject = "1357 is your Uber code"

	res := e.TryExtract(msg)
	require.True(t, res.OK())
	assert.Equal(t, "1357", res.Code())
}

func TestTryExtract_NotRelevant(t *testing.T) {
	e := newDefault(t)
	senders := []string{
		"noreply@example.com",
		"noreply@uber.com.evil.net",
		"noreply@notuber.com",
		"",
	}
	for _, sender := range senders {
		msg := uberMessage("Your verification code is 482913")
		msg.Sender = sender
		res := e.TryExtract(msg)
		assert.Equal(t, model.NotRelevant, res.Failure(), "sender %q", sender)
	}
}

func TestRelevant_Subdomain(t *testing.T) {
	e := newDefault(t)
	assert.True(t, e.Relevant("receipts@mail.uber.com"))
	assert.True(t, e.Relevant("NoReply@UBER.COM"))
}

func TestTryExtract_Deterministic(t *testing.T) {
	e := newDefault(t)
	msg := uberMessage("Ref 8080. Your verification code is 482913")
	first := e.TryExtract(msg)
	second := e.TryExtract(msg)
	assert.Equal(t, first, second)
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"no domains", func(o *Options) { o.SenderDomains = []string{" "} }},
		{"no labels", func(o *Options) { o.Labels = nil }},
		{"zero min", func(o *Options) { o.MinDigits = 0 }},
		{"max below min", func(o *Options) { o.MaxDigits = 3 }},
		{"negative window", func(o *Options) { o.LabelWindow = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}

func TestNew_CustomPolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.SenderDomains = []string{"@Lyft.com"}
	opts.Labels = []string{"security code"}
	opts.MinDigits = 6
	opts.MaxDigits = 6

	e, err := New(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"lyft.com"}, e.Domains())

	msg := model.CandidateMessage{Sender: "no-reply@lyft.com", Body: "Room 1234. Your security\ncode is 654321"}
	res := e.TryExtract(msg)
	require.True(t, res.OK())
	assert.Equal(t, "654321", res.Code())
	assert.Equal(t, "labeled", res.Rule())
}

type stubRule struct {
	name string
	code string
}

func (s stubRule) Name() string { return s.name }

func (s stubRule) Attempt(string) (string, bool) { return s.code, s.code != "" }

func TestNewWithRules_Precedence(t *testing.T) {
	e, err := NewWithRules([]string{"uber.com"}, stubRule{name: "first"}, stubRule{name: "second", code: "0000"}, stubRule{name: "third", code: "1111"})
	require.NoError(t, err)

	res := e.TryExtract(uberMessage("anything"))
	require.True(t, res.OK())
	assert.Equal(t, "second", res.Rule())
	assert.Equal(t, "0000", res.Code())
}
