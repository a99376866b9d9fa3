// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/saasbase-io/saasbase/internal/models"
)

// CreateUser inserts a new user and fills in its generated ID. A duplicate
// email surfaces as ErrDuplicate, which is also how a lost signup race at
// the unique index reports itself.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, email_verified_at, verification_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.PasswordHash, user.EmailVerifiedAt, user.VerificationToken,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return wrapError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email. Callers are expected to pass a
// normalized (lower-cased) address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UserExists checks whether a user with the given email exists.
func (r *Repository) UserExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE email = ?`, email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// VerifyUserByToken stamps email_verified_at and clears the token in a
// single update keyed on the token. Returns false when no row holds the
// token, which covers both unknown and already-consumed tokens.
func (r *Repository) VerifyUserByToken(ctx context.Context, token string) (bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified_at = ?, verification_token = NULL, updated_at = ?
		 WHERE verification_token = ?`,
		now, now, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetVerificationToken replaces the verification token of an unverified user.
func (r *Repository) SetVerificationToken(ctx context.Context, userID int64, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET verification_token = ?, updated_at = ?
		 WHERE id = ? AND email_verified_at IS NULL`,
		sql.NullString{String: token, Valid: true}, time.Now().UTC(), userID)
	return err
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return count, nil
}
