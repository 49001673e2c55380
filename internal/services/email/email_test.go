// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"context"
	"errors"
	"mime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"

	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/i18n"
	"codeberg.org/oliverandrich/chronotrack/internal/services/email"
)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "ChronoTrack",
		TLS:      true,
	}
}

func authConfig() *config.AuthConfig {
	return &config.AuthConfig{VerificationCodeTTL: 24 * time.Hour, ResetTokenTTL: time.Hour}
}

type capture struct {
	msgs []*mail.Msg
	err  error
}

func (c *capture) deliver(_ context.Context, msg *mail.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func newCapturingService(t *testing.T) (*email.Service, *capture) {
	t.Helper()
	require.NoError(t, i18n.Init())
	c := &capture{}
	svc, err := email.NewService(validSMTPConfig(), authConfig(), email.WithDeliverer(c.deliver))
	require.NoError(t, err)
	return svc, c
}

func body(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	parts := msg.GetParts()
	require.Len(t, parts, 1)
	content, err := parts[0].GetContent()
	require.NoError(t, err)
	return string(content)
}

// subject returns the decoded Subject header of msg.
func subject(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	values := msg.GetGenHeader(mail.HeaderSubject)
	require.Len(t, values, 1)
	decoded, err := new(mime.WordDecoder).DecodeHeader(values[0])
	require.NoError(t, err)
	return decoded
}

func TestNewService(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig(), authConfig())

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewService(cfg, authConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewService(cfg, authConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestSendVerificationEmail(t *testing.T) {
	svc, c := newCapturingService(t)
	ctx := i18n.WithLocale(context.Background(), language.English)

	err := svc.SendVerificationEmail(ctx, "ada@example.com", "Ada Lovelace", "K7Q2ZD")

	require.NoError(t, err)
	require.Len(t, c.msgs, 1)
	msg := c.msgs[0]

	to := msg.GetTo()
	require.Len(t, to, 1)
	assert.Equal(t, "ada@example.com", to[0].Address)
	assert.Equal(t, "Ada Lovelace", to[0].Name)
	assert.Equal(t, "Verify your ChronoTrack account", subject(t, msg))

	text := body(t, msg)
	assert.Contains(t, text, "Hello Ada Lovelace")
	assert.Contains(t, text, "K7Q2ZD")
	assert.Contains(t, text, "24 hours")
}

func TestSendPasswordResetEmail_German(t *testing.T) {
	svc, c := newCapturingService(t)
	ctx := i18n.WithLocale(context.Background(), language.German)
	resetURL := "https://chronotrack.example.com/reset-password?token=abc_DEF-123"

	err := svc.SendPasswordResetEmail(ctx, "ada@example.com", "Ada", resetURL)

	require.NoError(t, err)
	require.Len(t, c.msgs, 1)
	assert.Equal(t, "Setze dein ChronoTrack-Passwort zurück", subject(t, c.msgs[0]))

	text := body(t, c.msgs[0])
	assert.Contains(t, text, resetURL)
	assert.Contains(t, text, "60 Minuten")
}

func TestSend_DeliveryFailure(t *testing.T) {
	svc, c := newCapturingService(t)
	c.err = errors.New("connection refused")

	err := svc.SendVerificationEmail(context.Background(), "ada@example.com", "Ada", "ABCDEF")

	assert.ErrorContains(t, err, "connection refused")
}

func TestSend_InvalidRecipient(t *testing.T) {
	svc, c := newCapturingService(t)

	err := svc.SendVerificationEmail(context.Background(), "not an address", "Ada", "ABCDEF")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting to address")
	assert.Empty(t, c.msgs)
}

func TestSend_UnreachableServer(t *testing.T) {
	require.NoError(t, i18n.Init())
	cfg := validSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here
	cfg.TLS = false

	svc, err := email.NewService(cfg, authConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = svc.SendVerificationEmail(ctx, "ada@example.com", "Ada", "ABCDEF")
	assert.Error(t, err)
}
