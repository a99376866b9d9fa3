// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides Echo middleware for session loading and route
// guarding.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/saasbase-io/saasbase/internal/auth"
	"github.com/saasbase-io/saasbase/internal/models"
	"github.com/saasbase-io/saasbase/internal/services/session"
)

// UserLoader loads the full user record for a resolved claim.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser resolves the session cookie and stores the identity in the
// request context. An absent or invalid claim just leaves the context
// anonymous; gating happens in RequireAuth.
func LoadUser(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claim, ok := sessions.FromRequest(c.Request())
			if !ok {
				return next(c)
			}

			userID, err := sessions.Resolve(claim)
			if err != nil {
				return next(c)
			}

			user, err := users.GetUserByID(c.Request().Context(), userID)
			if err != nil {
				return next(c)
			}

			ctx := auth.SetUser(c.Request().Context(), user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAuth gates private routes. Unauthenticated browser requests are
// redirected to the sign-in entry point; API clients get a 401. The check
// has no side effects.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if auth.IsAuthenticated(c.Request().Context()) {
			return next(c)
		}

		if wantsJSON(c.Request()) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		}
		return c.Redirect(http.StatusFound, "/login")
	}
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, echo.MIMEApplicationJSON)
}
