// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/saasbase-io/saasbase/internal/models"
)

// errorJSON writes the standard error envelope.
func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// internalError writes a generic 500. Outside production the underlying
// message is included for debugging.
func internalError(c echo.Context, production bool, err error) error {
	body := map[string]string{"error": "An error occurred while processing your request"}
	if !production && err != nil {
		body["details"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, body)
}

// identity is the user shape exposed to consuming views.
func identity(u *models.User) map[string]any {
	return map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	}
}
