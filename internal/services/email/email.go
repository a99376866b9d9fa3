// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends transactional email via SMTP. Delivery failures never
// propagate as errors; they are logged and reported as a boolean so the
// caller can decide whether a failed send is user-visible.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saasbase-io/saasbase/internal/config"
	"github.com/saasbase-io/saasbase/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Service sends verification and welcome emails.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// SendVerification sends a verification email containing the given token.
// Returns false when delivery failed.
func (s *Service) SendVerification(ctx context.Context, toEmail, name, token string) bool {
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)

	subject := i18n.T(ctx, "email_verification_subject")
	body := i18n.TData(ctx, "email_verification_body", map[string]any{
		"Name":      name,
		"VerifyURL": verifyURL,
	})

	if err := s.send(ctx, toEmail, subject, body); err != nil {
		slog.Error("verification_email_failed", "email", toEmail, "error", err)
		return false
	}
	return true
}

// SendWelcome sends a welcome email. Best effort; the outcome is only logged.
func (s *Service) SendWelcome(ctx context.Context, toEmail, name string) {
	subject := i18n.T(ctx, "email_welcome_subject")
	body := i18n.TData(ctx, "email_welcome_body", map[string]any{
		"Name": name,
	})

	if err := s.send(ctx, toEmail, subject, body); err != nil {
		slog.Error("welcome_email_failed", "email", toEmail, "error", err)
		return
	}
	slog.Info("welcome_email_sent", "email", toEmail)
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	// Build client options
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Configure TLS based on config and port
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	// Add authentication if credentials are provided
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
