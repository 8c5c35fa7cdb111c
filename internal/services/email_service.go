package services

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailSender delivers a single HTML email. Implementations report failure so
// callers can decide whether a notification counts as sent.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPEmailSender struct {
	client *mail.Client
	from   string
}

func NewSMTPEmailSender(host string, port int, username, password, from string) (*SMTPEmailSender, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, err
	}
	return &SMTPEmailSender{client: client, from: from}, nil
}

func (s *SMTPEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return s.client.DialAndSendWithContext(ctx, msg)
}

// LogEmailSender writes emails to the log instead of the wire. Used when SMTP
// is not configured (local development).
type LogEmailSender struct {
	Log zerolog.Logger
}

func (s *LogEmailSender) Send(_ context.Context, to, subject, _ string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Msg("email (log only)")
	return nil
}
