// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session issues and resolves stateless session claims. A claim is
// a signed token carrying the user ID with a fixed expiry; there is no
// server-side session store and no revocation before expiry.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/saasbase-io/saasbase/internal/config"
)

var (
	// ErrInvalidClaim is returned for expired, forged, or malformed claims.
	ErrInvalidClaim = errors.New("invalid session claim")
)

// Manager signs and verifies session claims and manages the session cookie.
type Manager struct {
	secret       []byte
	cookieName   string
	maxAge       time.Duration
	secureCookie bool
}

// NewManager creates a session manager from configuration.
func NewManager(cfg *config.SessionConfig, secureCookie bool) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("session max age must be positive")
	}

	return &Manager{
		secret:       []byte(cfg.Secret),
		cookieName:   cfg.CookieName,
		maxAge:       time.Duration(cfg.MaxAge) * time.Second,
		secureCookie: secureCookie,
	}, nil
}

// MaxAge returns the configured claim lifetime.
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Issue creates a signed claim for the given user.
func (m *Manager) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session claim: %w", err)
	}
	return signed, nil
}

// Resolve verifies signature and expiry and returns the subject user ID.
func (m *Manager) Resolve(claim string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(claim, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, ErrInvalidClaim
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidClaim
	}
	return userID, nil
}

// Cookie wraps a signed claim into the session cookie.
func (m *Manager) Cookie(claim string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    claim,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns an expired cookie that removes the session.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest extracts the claim from the request's session cookie.
func (m *Manager) FromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
