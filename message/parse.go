// Package message decodes raw RFC 5322 messages into candidate messages.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/dhcgn/imap-otp/model"
)

var ErrEmptyMessage = errors.New("message is empty")

// Header carries the fields needed to search and order messages without
// decoding the body.
type Header struct {
	ID      string
	Sender  string
	Subject string
	Date    time.Time
}

// ParseHeader decodes only the header block of raw.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) == 0 {
		return Header{}, ErrEmptyMessage
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	defer mr.Close()
	return headerFrom(mr.Header), nil
}

// Parse decodes raw into a CandidateMessage. The body is the text/plain
// part when present, otherwise the text/html part reduced to plain text.
// Content that is not valid MIME is used verbatim as the body.
func Parse(raw []byte) (model.CandidateMessage, error) {
	if len(raw) == 0 {
		return model.CandidateMessage{}, ErrEmptyMessage
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		_, body := splitRawMessage(raw)
		if body == nil {
			body = raw
		}
		return model.CandidateMessage{Body: string(body)}, nil
	}
	defer mr.Close()

	hdr := headerFrom(mr.Header)
	msg := model.CandidateMessage{
		ID:         hdr.ID,
		Sender:     hdr.Sender,
		Subject:    hdr.Subject,
		ReceivedAt: hdr.Date,
	}

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !gomessage.IsUnknownCharset(err) {
			break
		}
		if part == nil {
			continue
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	switch {
	case strings.TrimSpace(textBody) != "":
		msg.Body = textBody
	case htmlBody != "":
		msg.Body = StripHTML(htmlBody)
	}

	return msg, nil
}

// SenderDomain returns the lower-cased domain of an email address.
func SenderDomain(address string) string {
	address = strings.TrimSpace(strings.Trim(address, "<>"))
	idx := strings.LastIndex(address, "@")
	if idx < 0 || idx == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[idx+1:])
}

func headerFrom(h mail.Header) Header {
	var hdr Header

	if id, err := h.MessageID(); err == nil {
		hdr.ID = id
	}
	if subject, err := h.Subject(); err == nil {
		hdr.Subject = subject
	} else {
		hdr.Subject = h.Get("Subject")
	}
	if date, err := h.Date(); err == nil {
		hdr.Date = date
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		hdr.Sender = strings.ToLower(from[0].Address)
	}

	return hdr
}

func splitRawMessage(raw []byte) (header, body []byte) {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx], raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx], raw[idx+2:]
	}
	return raw, nil
}
