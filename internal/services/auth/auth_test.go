// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"testing"

	"github.com/saasbase-io/saasbase/internal/repository"
	"github.com/saasbase-io/saasbase/internal/services/auth"
	"github.com/saasbase-io/saasbase/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*auth.Service, *repository.Repository, *testutil.FakeMailer) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	mailer := testutil.NewFakeMailer()
	return auth.NewService(repo, mailer), repo, mailer
}

func validParams() auth.SignupParams {
	return auth.SignupParams{
		Email:    "a@x.com",
		Password: "longenough",
		Name:     "Al",
	}
}

func TestSignup_Success(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	ctx := context.Background()

	result, err := svc.Signup(ctx, validParams())

	require.NoError(t, err)
	assert.True(t, result.EmailSent)
	assert.Equal(t, "a@x.com", result.User.Email)
	assert.Equal(t, "Al", result.User.Name)
	assert.NotZero(t, result.User.ID)

	// Persisted unverified with a pending token
	user, err := repo.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, user.IsVerified())
	assert.True(t, user.VerificationToken.Valid)
	assert.True(t, user.HasPassword())

	require.Len(t, mailer.Verifications, 1)
	assert.Equal(t, "a@x.com", mailer.Verifications[0])
}

func TestSignup_ValidationOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params auth.SignupParams
		field  string
	}{
		{"invalid email", auth.SignupParams{Email: "not-an-email", Password: "longenough", Name: "Al"}, "email"},
		{"short password", auth.SignupParams{Email: "a@x.com", Password: "short", Name: "Al"}, "password"},
		{"short name", auth.SignupParams{Email: "a@x.com", Password: "longenough", Name: "A"}, "name"},
		{"email checked first", auth.SignupParams{Email: "nope", Password: "x", Name: ""}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.params)

			var validationErr *auth.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestSignup_ShortPassword_NoPersistence(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	ctx := context.Background()

	params := validParams()
	params.Password = "short"
	_, err := svc.Signup(ctx, params)

	var validationErr *auth.ValidationError
	require.ErrorAs(t, err, &validationErr)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, mailer.Verifications)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validParams())
	require.NoError(t, err)

	_, err = svc.Signup(ctx, validParams())
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestSignup_DuplicateEmail_CaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validParams())
	require.NoError(t, err)

	params := validParams()
	params.Email = "A@X.com"
	_, err = svc.Signup(ctx, params)
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestSignup_EmailNotSent_AccountStillCreated(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	mailer.SendResult = false
	ctx := context.Background()

	result, err := svc.Signup(ctx, validParams())

	require.NoError(t, err)
	assert.False(t, result.EmailSent)

	user, err := repo.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, user.IsVerified())
}

func TestVerifyEmail_TokenAcceptedExactlyOnce(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validParams())
	require.NoError(t, err)
	token := mailer.LastToken()
	require.NotEmpty(t, token)

	require.NoError(t, svc.VerifyEmail(ctx, token))

	user, err := repo.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified())
	assert.False(t, user.VerificationToken.Valid)

	// Repeat is indistinguishable from a token that never existed.
	assert.ErrorIs(t, svc.VerifyEmail(ctx, token), auth.ErrInvalidToken)
}

func TestVerifyEmail_UnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.ErrorIs(t, svc.VerifyEmail(context.Background(), "no-such-token"), auth.ErrInvalidToken)
	assert.ErrorIs(t, svc.VerifyEmail(context.Background(), ""), auth.ErrInvalidToken)
}

func TestAuthorizeCredentials_EnumerationResistance(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	// Verified local account with a known password
	testutil.NewVerifiedUser(t, repo, "local@x.com", "correct-password")

	// Federated-only account without a password hash
	_, err := svc.FederatedSignIn(ctx, "oauth@x.com", "Oa User")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "unknown@x.com", "whatever-password"},
		{"oauth-only account", "oauth@x.com", "whatever-password"},
		{"wrong password", "local@x.com", "wrong-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AuthorizeCredentials(ctx, tt.email, tt.password)
			// Identical error kind for all three failure modes
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestAuthorizeCredentials_UnverifiedThenVerified(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validParams())
	require.NoError(t, err)

	_, err = svc.AuthorizeCredentials(ctx, "a@x.com", "longenough")
	assert.ErrorIs(t, err, auth.ErrEmailNotVerified)

	require.NoError(t, svc.VerifyEmail(ctx, mailer.LastToken()))

	user, err := svc.AuthorizeCredentials(ctx, "a@x.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
}

func TestAuthorizeCredentials_CaseInsensitiveEmail(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	testutil.NewVerifiedUser(t, repo, "local@x.com", "correct-password")

	user, err := svc.AuthorizeCredentials(ctx, "LOCAL@X.com", "correct-password")
	require.NoError(t, err)
	assert.Equal(t, "local@x.com", user.Email)
}

func TestFederatedSignIn_FirstTime(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	ctx := context.Background()

	user, err := svc.FederatedSignIn(ctx, "Fed@X.com", "Fed User")
	require.NoError(t, err)

	// Auto-verified, no password hash
	assert.True(t, user.IsVerified())
	assert.False(t, user.HasPassword())
	assert.Equal(t, "fed@x.com", user.Email)

	require.Len(t, mailer.Welcomes, 1)
	assert.Equal(t, "fed@x.com", mailer.Welcomes[0])

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestFederatedSignIn_MissingName_FallsBackToLocalPart(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.FederatedSignIn(ctx, "Al.Smith@X.com", "")
	require.NoError(t, err)
	assert.Equal(t, "al.smith", user.Name)

	persisted, err := repo.GetUserByEmail(ctx, "al.smith@x.com")
	require.NoError(t, err)
	assert.Equal(t, "al.smith", persisted.Name)
}

func TestFederatedSignIn_ExistingUser_NoWelcomeEmail(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.FederatedSignIn(ctx, "fed@x.com", "Fed User")
	require.NoError(t, err)

	user, err := svc.FederatedSignIn(ctx, "fed@x.com", "Fed User")
	require.NoError(t, err)
	assert.NotNil(t, user)

	// Only the first sign-in triggers a welcome email.
	assert.Len(t, mailer.Welcomes, 1)
}

func TestFederatedSignIn_ExistingLocalAccount(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validParams())
	require.NoError(t, err)

	// Federated sign-in with the same email always allows sign-in and never
	// mails an existing user.
	user, err := svc.FederatedSignIn(ctx, "a@x.com", "Al")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Empty(t, mailer.Welcomes)
}

func TestResendVerification_RotatesToken(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validParams())
	require.NoError(t, err)
	first := mailer.LastToken()

	require.NoError(t, svc.ResendVerification(ctx, "a@x.com"))
	second := mailer.LastToken()

	require.NotEqual(t, first, second)

	// The old token was replaced and no longer verifies.
	assert.ErrorIs(t, svc.VerifyEmail(ctx, first), auth.ErrInvalidToken)
	assert.NoError(t, svc.VerifyEmail(ctx, second))
}

func TestResendVerification_SilentForUnknownAndVerified(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.ResendVerification(ctx, "unknown@x.com"))

	testutil.NewVerifiedUser(t, repo, "done@x.com", "correct-password")
	assert.NoError(t, svc.ResendVerification(ctx, "done@x.com"))

	assert.Empty(t, mailer.Verifications)
}
