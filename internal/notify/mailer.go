// Package notify holds the outbound notification surface of the engine.
// Email delivery transport is an external collaborator: this package only
// defines the narrow contract the recovery scheduler dispatches through,
// plus a development transport that writes messages to the log.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Email is a fully rendered outbound message.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer sends a rendered email. Implementations must be safe for
// concurrent use; the scheduler dispatches batch items sequentially today
// but callers should not rely on that.
//
// Send returns an error only for delivery failure. The scheduler treats a
// failed send as a per-record error: the reminder stage is not advanced
// and the record is retried on a later run.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// LogMailer is the development and test transport: it emits the message to
// the structured log instead of delivering it. Useful for local runs where
// no delivery provider is wired.
type LogMailer struct{}

// Send implements Mailer.
func (LogMailer) Send(_ context.Context, msg Email) error {
	log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("recovery email (log transport)")
	return nil
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg Email) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg Email) error { return f(ctx, msg) }
