// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// User is an identity record. PasswordHash is null for accounts created via
// federated sign-in; EmailVerifiedAt is null until the address is verified
// and is never reset. VerificationToken is null whenever EmailVerifiedAt is
// set.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                int64          `db:"id" json:"id"`
	Email             string         `db:"email" json:"email"`
	Name              string         `db:"name" json:"name"`
	PasswordHash      sql.NullString `db:"password_hash" json:"-"`
	EmailVerifiedAt   sql.NullTime   `db:"email_verified_at" json:"email_verified_at"`
	VerificationToken sql.NullString `db:"verification_token" json:"-"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// IsVerified reports whether the user's email address has been verified.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt.Valid
}

// HasPassword reports whether the account supports credential login.
func (u *User) HasPassword() bool {
	return u.PasswordHash.Valid
}
