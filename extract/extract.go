// Package extract decides whether a message comes from the expected sender
// and isolates the verification code from its text.
package extract

import (
	"fmt"
	"strings"

	"github.com/dhcgn/imap-otp/message"
	"github.com/dhcgn/imap-otp/model"
)

// Options captures the extraction policy.
type Options struct {
	SenderDomains []string
	Labels        []string
	MinDigits     int
	MaxDigits     int
	LabelWindow   int
}

// DefaultOptions targets Uber verification mail.
func DefaultOptions() Options {
	return Options{
		SenderDomains: []string{"uber.com"},
		Labels:        []string{"code", "verification", "otp", "pin", "passcode"},
		MinDigits:     4,
		MaxDigits:     8,
		LabelWindow:   3,
	}
}

// Extractor holds the relevance filter and the rules in precedence order.
type Extractor struct {
	domains []string
	rules   []Rule
}

// New builds an Extractor with the labeled rule ahead of the standalone rule.
func New(opts Options) (*Extractor, error) {
	labeled, err := NewLabeledRule(opts.Labels, opts.MinDigits, opts.MaxDigits, opts.LabelWindow)
	if err != nil {
		return nil, err
	}
	standalone, err := NewStandaloneRule(opts.MinDigits, opts.MaxDigits)
	if err != nil {
		return nil, err
	}
	return NewWithRules(opts.SenderDomains, labeled, standalone)
}

// NewWithRules builds an Extractor from an explicit rule list, tried in order.
func NewWithRules(domains []string, rules ...Rule) (*Extractor, error) {
	normalized := normalizeDomains(domains)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("at least one sender domain is required")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required")
	}
	return &Extractor{domains: normalized, rules: rules}, nil
}

// Relevant reports whether sender belongs to one of the sending domains or
// their subdomains.
func (e *Extractor) Relevant(sender string) bool {
	domain := message.SenderDomain(sender)
	if domain == "" {
		return false
	}
	for _, d := range e.domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// TryExtract applies the relevance filter and then each rule in order.
func (e *Extractor) TryExtract(msg model.CandidateMessage) model.ExtractionResult {
	if !e.Relevant(msg.Sender) {
		return model.Failed(model.NotRelevant, "sender domain "+message.SenderDomain(msg.Sender)+" is not a known sending domain")
	}

	text := msg.Text()
	for _, rule := range e.rules {
		if code, ok := rule.Attempt(text); ok {
			return model.Found(code, rule.Name())
		}
	}
	return model.Failed(model.NoCodeFound, "no rule matched")
}

// Domains returns the normalized sending domains.
func (e *Extractor) Domains() []string {
	return append([]string(nil), e.domains...)
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "@")
		d = strings.TrimPrefix(d, ".")
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
