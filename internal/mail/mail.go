// Package mail is the outbound email boundary. The rest of the system only
// ever hands a Message to a Mailer; which provider actually delivers it is a
// deployment decision.
package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the structured log instead of delivering
// them. It is the default until an SMTP provider is configured, and the
// delivery stand-in in tests.
type LogMailer struct {
	from string
	log  zerolog.Logger
}

// NewLogMailer creates a LogMailer with the configured From address.
func NewLogMailer(from string, log zerolog.Logger) *LogMailer {
	return &LogMailer{
		from: from,
		log:  log.With().Str("component", "mailer").Logger(),
	}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info().
		Str("from", m.from).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("Mail delivered to log")
	return nil
}
