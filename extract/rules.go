package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule attempts to isolate a code from message text.
type Rule interface {
	Name() string
	Attempt(text string) (string, bool)
}

type regexRule struct {
	name string
	re   *regexp.Regexp
}

func (r *regexRule) Name() string {
	return r.name
}

func (r *regexRule) Attempt(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NewLabeledRule matches a digit run that follows one of labels, with at
// most window words in between. Labels match case-insensitively on word
// boundaries; a multi-word label matches any whitespace between its words.
func NewLabeledRule(labels []string, minDigits, maxDigits, window int) (Rule, error) {
	if err := validateDigits(minDigits, maxDigits); err != nil {
		return nil, err
	}
	if window < 0 {
		return nil, fmt.Errorf("label window must not be negative")
	}

	alternatives := make([]string, 0, len(labels))
	for _, label := range labels {
		words := strings.Fields(strings.ToLower(label))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alternatives = append(alternatives, strings.Join(words, `\s+`))
	}
	if len(alternatives) == 0 {
		return nil, fmt.Errorf("at least one label is required")
	}

	pattern := fmt.Sprintf(
		`(?i)\b(?:%s)\b(?:[^0-9a-z]+[a-z]+){0,%d}[^0-9a-z]+([0-9]{%d,%d})(?:[^0-9]|$)`,
		strings.Join(alternatives, "|"), window, minDigits, maxDigits,
	)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile labeled rule: %w", err)
	}
	return &regexRule{name: "labeled", re: re}, nil
}

// NewStandaloneRule matches the first run of exactly minDigits to maxDigits digits.
func NewStandaloneRule(minDigits, maxDigits int) (Rule, error) {
	if err := validateDigits(minDigits, maxDigits); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(fmt.Sprintf(`(?:^|[^0-9])([0-9]{%d,%d})(?:[^0-9]|$)`, minDigits, maxDigits))
	if err != nil {
		return nil, fmt.Errorf("compile standalone rule: %w", err)
	}
	return &regexRule{name: "standalone", re: re}, nil
}

func validateDigits(minDigits, maxDigits int) error {
	if minDigits <= 0 {
		return fmt.Errorf("minimum digits must be positive")
	}
	if maxDigits < minDigits {
		return fmt.Errorf("maximum digits %d is below minimum %d", maxDigits, minDigits)
	}
	return nil
}
