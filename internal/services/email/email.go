// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/i18n"
)

// DeliverFunc hands a finished message to a transport.
type DeliverFunc func(ctx context.Context, msg *mail.Msg) error

// Service sends account emails over SMTP.
type Service struct {
	cfg      *config.SMTPConfig
	codeTTL  time.Duration
	resetTTL time.Duration
	deliver  DeliverFunc
}

// Option configures a Service.
type Option func(*Service)

// WithDeliverer replaces SMTP delivery, e.g. to capture messages in tests.
func WithDeliverer(fn DeliverFunc) Option {
	return func(s *Service) { s.deliver = fn }
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, authCfg *config.AuthConfig, opts ...Option) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{
		cfg:      cfg,
		codeTTL:  authCfg.VerificationCodeTTL,
		resetTTL: authCfg.ResetTokenTTL,
	}
	s.deliver = s.dialAndSend
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendVerificationEmail sends the verification code to a new account holder.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, fullName, code string) error {
	subject := i18n.T(ctx, "email_verification_subject")
	body := i18n.TPlural(ctx, "email_verification_body", max(int(s.codeTTL.Hours()), 1), map[string]any{
		"Name": fullName,
		"Code": code,
	})

	msg, err := s.newMessage(toEmail, fullName, subject, body)
	if err != nil {
		return err
	}
	return s.send(ctx, msg, "verification")
}

// SendPasswordResetEmail sends a password reset link.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, fullName, resetURL string) error {
	subject := i18n.T(ctx, "password_reset_subject")
	body := i18n.TPlural(ctx, "password_reset_body", max(int(s.resetTTL.Minutes()), 1), map[string]any{
		"Name":     fullName,
		"ResetURL": resetURL,
	})

	msg, err := s.newMessage(toEmail, fullName, subject, body)
	if err != nil {
		return err
	}
	return s.send(ctx, msg, "password_reset")
}

func (s *Service) newMessage(to, toName, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.AddToFormat(toName, to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

func (s *Service) send(ctx context.Context, msg *mail.Msg, kind string) error {
	if err := s.deliver(ctx, msg); err != nil {
		return err
	}
	slog.Debug("email_sent", "kind", kind)
	return nil
}

// dialAndSend sends an email via SMTP using go-mail.
func (s *Service) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
