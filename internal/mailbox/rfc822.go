package mailbox

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // legacy charsets used by bank mailers
	"github.com/emersion/go-message/mail"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Envelope is the part of an RFC 822 message the pipeline keeps.
type Envelope struct {
	Date      time.Time
	MessageID string
	From      string
	Subject   string
	Text      string
	HTML      string
}

// Body returns the HTML part when present, since bank alerts carry their fields in
// tables, and the plain-text part otherwise.
func (e Envelope) Body() string {
	if strings.TrimSpace(e.HTML) != "" {
		return e.HTML
	}
	return e.Text
}

// Event converts the envelope into a mail event. fallback is used when the message
// carries no Date header.
func (e Envelope) Event(providerID, threadID string, fallback time.Time) model.MailEvent {
	received := e.Date
	if received.IsZero() {
		received = fallback
	}
	return model.MailEvent{
		ProviderMessageID: providerID,
		ThreadID:          threadID,
		Sender:            e.From,
		Subject:           e.Subject,
		ReceivedAt:        received.UTC(),
		Body:              e.Body(),
	}
}

// ParseRFC822 reads a raw message and extracts its headers and first text and HTML parts.
func ParseRFC822(r io.Reader) (*Envelope, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer func() { _ = mr.Close() }()

	env := &Envelope{}
	env.Subject, _ = mr.Header.Subject()
	env.MessageID, _ = mr.Header.MessageID()
	if date, err := mr.Header.Date(); err == nil {
		env.Date = date
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		env.From = from[0].Address
	} else {
		env.From = mr.Header.Get("From")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}
		if part == nil {
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read message body: %w", err)
		}

		switch {
		case contentType == "text/html" && env.HTML == "":
			env.HTML = string(body)
		case (contentType == "text/plain" || contentType == "") && env.Text == "":
			env.Text = string(body)
		}
	}

	return env, nil
}
