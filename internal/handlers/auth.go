// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/saasbase-io/saasbase/internal/oauth"
	"github.com/saasbase-io/saasbase/internal/services/auth"
	"github.com/saasbase-io/saasbase/internal/services/session"
)

// AuthHandlers contains handlers for signup, verification, and sign-in.
type AuthHandlers struct {
	service    *auth.Service
	sessions   *session.Manager
	google     *oauth.GoogleProvider
	states     *oauth.StateStore
	production bool
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(service *auth.Service, sessions *session.Manager, google *oauth.GoogleProvider, states *oauth.StateStore, production bool) *AuthHandlers {
	return &AuthHandlers{
		service:    service,
		sessions:   sessions,
		google:     google,
		states:     states,
		production: production,
	}
}

// SignupRequest is the request body for POST /signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Signup registers a new account and dispatches the verification email.
// The account survives a failed dispatch; the response tells the caller to
// request a re-send in that case.
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Signup(c.Request().Context(), auth.SignupParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		var validationErr *auth.ValidationError
		switch {
		case errors.As(err, &validationErr):
			return errorJSON(c, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, auth.ErrEmailTaken):
			return errorJSON(c, http.StatusBadRequest, "User with this email already exists")
		default:
			slog.Error("signup_failed", "error", err)
			return internalError(c, h.production, err)
		}
	}

	if !result.EmailSent {
		return c.JSON(http.StatusCreated, map[string]any{
			"message": "Account created but there was an issue sending the verification email. Please request a new one.",
			"userId":  result.User.ID,
		})
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Please check your email to verify your account",
	})
}

// VerifyEmail consumes the token from the verification link and redirects
// to the sign-in entry point.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errorJSON(c, http.StatusBadRequest, "Missing verification token")
	}

	if err := h.service.VerifyEmail(c.Request().Context(), token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return errorJSON(c, http.StatusBadRequest, "Invalid verification token")
		}
		slog.Error("verify_email_failed", "error", err)
		return internalError(c, h.production, err)
	}

	return c.Redirect(http.StatusFound, "/login?verified=true")
}

// ResendVerificationRequest is the request body for POST /resend-verification.
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// ResendVerification issues a fresh verification token. The response is the
// same whether or not the email belongs to an unverified account.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	var req ResendVerificationRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	if err := h.service.ResendVerification(c.Request().Context(), req.Email); err != nil {
		slog.Error("resend_verification_failed", "error", err)
		return internalError(c, h.production, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "If the account exists and is unverified, a new verification email has been sent",
	})
}

// LoginRequest is the request body for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login is the credentials strategy: it authorizes the email/password pair
// and issues a session claim on success.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.AuthorizeCredentials(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return errorJSON(c, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrEmailNotVerified):
			return errorJSON(c, http.StatusUnauthorized, "Please verify your email before signing in")
		default:
			slog.Error("login_failed", "error", err)
			return internalError(c, h.production, err)
		}
	}

	claim, err := h.sessions.Issue(user.ID)
	if err != nil {
		slog.Error("session_issue_failed", "error", err)
		return internalError(c, h.production, err)
	}
	c.SetCookie(h.sessions.Cookie(claim))

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Signed in",
		"user":    identity(user),
	})
}

// Logout clears the session cookie. The claim itself stays valid until its
// fixed expiry; there is no server-side revocation.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.ClearCookie())
	return c.JSON(http.StatusOK, map[string]string{"message": "Signed out"})
}

// GoogleLogin starts the federated sign-in flow.
func (h *AuthHandlers) GoogleLogin(c echo.Context) error {
	state, cookie, err := h.states.Issue()
	if err != nil {
		slog.Error("oauth_state_issue_failed", "error", err)
		return internalError(c, h.production, err)
	}
	c.SetCookie(cookie)
	return c.Redirect(http.StatusFound, h.google.AuthURL(state))
}

// GoogleCallback completes the federated sign-in flow: the provider has
// finished its handshake, so exchange the code, fetch the profile, run the
// federated sign-in bookkeeping, and issue a session.
func (h *AuthHandlers) GoogleCallback(c echo.Context) error {
	clear, err := h.states.Verify(c.Request(), c.QueryParam("state"))
	c.SetCookie(clear)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid state")
	}

	code := c.QueryParam("code")
	if code == "" {
		return errorJSON(c, http.StatusBadRequest, "Missing authorization code")
	}

	ctx := c.Request().Context()
	accessToken, err := h.google.Exchange(ctx, code)
	if err != nil {
		slog.Error("oauth_exchange_failed", "error", err)
		return internalError(c, h.production, err)
	}

	profile, err := h.google.FetchUser(ctx, accessToken)
	if err != nil {
		slog.Error("oauth_userinfo_failed", "error", err)
		return internalError(c, h.production, err)
	}

	user, err := h.service.FederatedSignIn(ctx, profile.Email, profile.Name)
	if err != nil {
		slog.Error("federated_signin_failed", "error", err)
		return internalError(c, h.production, err)
	}

	claim, err := h.sessions.Issue(user.ID)
	if err != nil {
		slog.Error("session_issue_failed", "error", err)
		return internalError(c, h.production, err)
	}
	c.SetCookie(h.sessions.Cookie(claim))

	return c.Redirect(http.StatusFound, "/dashboard")
}
