// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const (
	defaultSMTPPort = 465
	startTLSPort    = 587
	defaultFromName = "ResearchBot"
	smtpTimeout     = 30 * time.Second
)

// Sender delivers a rendered digest.
type Sender interface {
	Send(ctx context.Context, subject, html string) error
}

// SMTPSender sends the digest to a single recipient over SMTP.
type SMTPSender struct {
	cfg types.MailConfig
}

// NewSMTPSender returns a sender for cfg. Port 465 (the default) uses
// implicit TLS, 587 requires STARTTLS, any other port upgrades to TLS
// when the server offers it.
func NewSMTPSender(cfg types.MailConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = defaultSMTPPort
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SMTPSender{cfg: cfg}
}

// Message builds the email without sending it.
func (s *SMTPSender) Message(subject, html string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.User); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", s.cfg.User, err)
	}
	if err := m.To(s.cfg.Receiver); err != nil {
		return nil, fmt.Errorf("invalid receiver address %q: %w", s.cfg.Receiver, err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, html)
	return m, nil
}

func (s *SMTPSender) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(smtpTimeout),
	}
	switch s.cfg.Port {
	case defaultSMTPPort:
		opts = append(opts, mail.WithSSL())
	case startTLSPort:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// Send delivers one HTML email. A nil error means the server accepted it.
func (s *SMTPSender) Send(ctx context.Context, subject, html string) error {
	m, err := s.Message(subject, html)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(s.cfg.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending digest via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return nil
}
