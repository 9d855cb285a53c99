package imap

import (
	"strings"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"

	"github.com/dhcgn/imap-otp/model"
)

// buildSearchCriteria matches any of the sender domains in the From header
// and, when a window is set, messages on or after the day before its start.
// SINCE is date-granular and evaluated in the server's zone; refs outside the
// exact window are dropped after fetching their internal dates.
func buildSearchCriteria(criteria model.Criteria) *imapv2.SearchCriteria {
	search := &imapv2.SearchCriteria{}

	if !criteria.Since.IsZero() {
		// One extra day covers servers that compare dates in a zone west of UTC.
		since := criteria.Since.UTC().AddDate(0, 0, -1)
		search.Since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)
	}

	var senders []imapv2.SearchCriteria
	for _, domain := range criteria.SenderDomains {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}
		senders = append(senders, imapv2.SearchCriteria{
			Header: []imapv2.SearchCriteriaHeaderField{{Key: "From", Value: domain}},
		})
	}

	switch len(senders) {
	case 0:
	case 1:
		search.Header = append(search.Header, senders[0].Header...)
	default:
		search.Or = append(search.Or, orChain(senders))
	}

	return search
}

// orChain folds n criteria into nested OR pairs: OR a (OR b c).
func orChain(items []imapv2.SearchCriteria) [2]imapv2.SearchCriteria {
	if len(items) == 2 {
		return [2]imapv2.SearchCriteria{items[0], items[1]}
	}
	rest := orChain(items[1:])
	return [2]imapv2.SearchCriteria{
		items[0],
		{Or: [][2]imapv2.SearchCriteria{rest}},
	}
}
