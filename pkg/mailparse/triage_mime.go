// Package mailparse turns RFC 5322 / MIME messages into raw intake emails.
package mailparse

import (
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"triage_server/core/domain"

	"github.com/jhillyerd/enmime"
)

var ErrNoSender = errors.New("message has no From address")

// Parse reads a MIME message. The plain text part becomes the body; when the
// message only carries HTML, enmime's down-converted text is used and the HTML
// is kept in RawHTML.
func Parse(r io.Reader) (domain.RawEmail, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return domain.RawEmail{}, fmt.Errorf("read envelope: %w", err)
	}

	from, err := env.AddressList("From")
	if err != nil || len(from) == 0 {
		return domain.RawEmail{}, ErrNoSender
	}

	raw := domain.RawEmail{
		Sender:     strings.ToLower(from[0].Address),
		SenderName: from[0].Name,
		Subject:    strings.TrimSpace(env.GetHeader("Subject")),
		Body:       strings.TrimSpace(env.Text),
	}

	if env.HTML != "" {
		html := env.HTML
		raw.RawHTML = &html
	}

	if date := env.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			raw.DateReceived = t.UTC()
		}
	}
	if raw.DateReceived.IsZero() {
		raw.DateReceived = time.Now().UTC()
	}

	return raw, nil
}
