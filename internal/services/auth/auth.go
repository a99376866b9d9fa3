// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements the signup, verification, and sign-in workflow.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saasbase-io/saasbase/internal/models"
	"github.com/saasbase-io/saasbase/internal/repository"
	"github.com/saasbase-io/saasbase/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the adaptive hash cost factor for password hashes.
const bcryptCost = 12

var (
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidCredentials covers unknown email, missing password hash, and
	// wrong password identically so accounts cannot be enumerated.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("please verify your email before signing in")
	ErrInvalidToken       = errors.New("invalid verification token")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcryptCost)

// Mailer is the notifier contract. Implementations never return errors;
// delivery failure is reported as a boolean or ignored.
type Mailer interface {
	SendVerification(ctx context.Context, email, name, token string) bool
	SendWelcome(ctx context.Context, email, name string)
}

// Service orchestrates account creation, verification, and sign-in.
type Service struct {
	repo   *repository.Repository
	mailer Mailer
}

// NewService creates a new auth service.
func NewService(repo *repository.Repository, mailer Mailer) *Service {
	return &Service{repo: repo, mailer: mailer}
}

// SignupParams holds the parameters for user registration.
type SignupParams struct {
	Email    string
	Password string
	Name     string
}

// SignupResult is the confirmation artifact returned on successful signup.
// EmailSent distinguishes "created, email sent" from "created, email not
// sent"; the account exists either way.
type SignupResult struct {
	User      *models.User
	EmailSent bool
}

// Signup validates the input, creates an unverified user, and dispatches the
// verification email. A failed dispatch does not roll back the account.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*SignupResult, error) {
	params.Email = NormalizeEmail(params.Email)
	if err := ValidateSignup(params); err != nil {
		return nil, err
	}

	exists, err := s.repo.UserExists(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	verificationToken, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:             params.Email,
		Name:              params.Name,
		PasswordHash:      sql.NullString{String: string(passwordHash), Valid: true},
		VerificationToken: sql.NullString{String: verificationToken, Valid: true},
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		// Concurrent signups with the same email race at the unique index;
		// the loser surfaces the same conflict as the pre-check.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	emailSent := s.mailer.SendVerification(ctx, user.Email, user.Name, verificationToken)
	if !emailSent {
		slog.Warn("signup_verification_email_not_sent", "user_id", user.ID, "email", user.Email)
	}

	slog.Info("signup_success", "user_id", user.ID, "email", user.Email, "email_sent", emailSent)

	return &SignupResult{User: user, EmailSent: emailSent}, nil
}

// VerifyEmail consumes a verification token. Unknown and already-consumed
// tokens are rejected identically.
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) error {
	if verificationToken == "" {
		return ErrInvalidToken
	}

	ok, err := s.repo.VerifyUserByToken(ctx, verificationToken)
	if err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}
	if !ok {
		return ErrInvalidToken
	}

	slog.Info("email_verified")
	return nil
}

// AuthorizeCredentials validates an email/password pair for session issuance.
func (s *Service) AuthorizeCredentials(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform a bcrypt comparison so unknown
			// emails are not distinguishable by timing.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() {
		// Federated-only account attempting password login.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		slog.Warn("login_failed", "email", email, "reason", "no_password_hash")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified() {
		slog.Warn("login_failed", "email", email, "reason", "email_not_verified")
		return nil, ErrEmailNotVerified
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return user, nil
}

// FederatedSignIn handles the callback of the identity federation flow. The
// provider has already authenticated the user; first-time sign-ins create an
// auto-verified account without a password hash and receive a best-effort
// welcome email. Sign-in is always allowed.
func (s *Service) FederatedSignIn(ctx context.Context, email, name string) (*models.User, error) {
	email = NormalizeEmail(email)
	if name == "" {
		// Providers may omit the profile name; fall back to the address
		// local part rather than persisting a placeholder.
		if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
			name = local
		} else {
			name = email
		}
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user = &models.User{
		Email:           email,
		Name:            name,
		EmailVerifiedAt: nowNullTime(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race against a concurrent first sign-in; the account
			// exists now, so load and proceed without a welcome email.
			return s.repo.GetUserByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to create federated user: %w", err)
	}

	s.mailer.SendWelcome(ctx, email, name)

	slog.Info("federated_signup", "user_id", user.ID, "email", email)
	return user, nil
}

// ResendVerification issues a fresh token for an unverified account and
// re-sends the verification email. Unknown and already-verified emails
// succeed silently so the endpoint cannot be used for enumeration.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified() {
		return nil
	}

	verificationToken, err := token.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	if err := s.repo.SetVerificationToken(ctx, user.ID, verificationToken); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if !s.mailer.SendVerification(ctx, user.Email, user.Name, verificationToken) {
		slog.Warn("resend_verification_email_not_sent", "user_id", user.ID)
	}
	return nil
}

// NormalizeEmail lower-cases an address; email comparison is
// case-insensitive throughout.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
