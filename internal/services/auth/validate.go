// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"database/sql"
	"fmt"
	"net/mail"
	"time"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the minimum password length for local signup.
	MinPasswordLength = 8
	// MinNameLength is the minimum display name length.
	MinNameLength = 2
)

// ValidationError reports the first violated signup rule. It is
// user-correctable and safe to surface verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateSignup checks the signup input rule by rule and returns the first
// violation: email format, then password length, then name length.
func ValidateSignup(params SignupParams) error {
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return &ValidationError{Field: "email", Message: "Invalid email address"}
	}
	if len(params.Password) < MinPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
		}
	}
	if utf8.RuneCountInString(params.Name) < MinNameLength {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("Name must be at least %d characters", MinNameLength),
		}
	}
	return nil
}

func nowNullTime() sql.NullTime {
	return sql.NullTime{Time: time.Now().UTC(), Valid: true}
}
