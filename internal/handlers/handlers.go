// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/saasbase-io/saasbase/internal/auth"
	"github.com/saasbase-io/saasbase/internal/repository"
)

// Handlers contains the public and dashboard HTTP handlers.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Home is the public landing endpoint.
func (h *Handlers) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"name": "saasbase",
	})
}

// Session returns the identity resolved from the current session claim.
func (h *Handlers) Session(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user": identity(user),
	})
}

// Dashboard is the guarded private-area view with the resolved identity
// injected.
func (h *Handlers) Dashboard(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Welcome back, " + user.Name,
		"user":    identity(user),
	})
}
