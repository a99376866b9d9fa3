// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/saasbase-io/saasbase/internal/database"
	"github.com/saasbase-io/saasbase/internal/models"
	"github.com/saasbase-io/saasbase/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates an unverified test user with the given password and a
// pending verification token.
func NewTestUser(t *testing.T, repo *repository.Repository, email, password, verificationToken string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:             email,
		Name:              "Test User",
		PasswordHash:      sql.NullString{String: string(hash), Valid: true},
		VerificationToken: sql.NullString{String: verificationToken, Valid: true},
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewVerifiedUser creates a verified test user with the given password.
func NewVerifiedUser(t *testing.T, repo *repository.Repository, email, password string) *models.User {
	t.Helper()
	user := NewTestUser(t, repo, email, password, "token-"+email)
	ok, err := repo.VerifyUserByToken(context.Background(), "token-"+email)
	require.NoError(t, err)
	require.True(t, ok)

	verified, err := repo.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	return verified
}

// FakeMailer records notifier calls without sending anything. SendResult
// controls what SendVerification reports.
type FakeMailer struct {
	SendResult    bool
	Verifications []string
	Welcomes      []string
	Tokens        []string
}

// NewFakeMailer creates a FakeMailer that reports successful delivery.
func NewFakeMailer() *FakeMailer {
	return &FakeMailer{SendResult: true}
}

func (m *FakeMailer) SendVerification(_ context.Context, email, _ string, token string) bool {
	m.Verifications = append(m.Verifications, email)
	m.Tokens = append(m.Tokens, token)
	return m.SendResult
}

func (m *FakeMailer) SendWelcome(_ context.Context, email, _ string) {
	m.Welcomes = append(m.Welcomes, email)
}

// LastToken returns the most recently "sent" verification token.
func (m *FakeMailer) LastToken() string {
	if len(m.Tokens) == 0 {
		return ""
	}
	return m.Tokens[len(m.Tokens)-1]
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
