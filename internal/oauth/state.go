// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	stateCookieName = "_oauth_state"
	stateLifetime   = 10 * time.Minute
)

// ErrInvalidState is returned when the callback state does not match the
// signed state cookie.
var ErrInvalidState = errors.New("invalid oauth state")

// StateStore signs the CSRF state nonce into a short-lived cookie and
// verifies it on callback.
type StateStore struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewStateStore creates a state store signing with the given secret.
func NewStateStore(secret string, secureCookies bool) *StateStore {
	sc := securecookie.New([]byte(secret), nil)
	sc.MaxAge(int(stateLifetime.Seconds()))
	return &StateStore{codec: sc, secure: secureCookies}
}

// Issue generates a fresh state nonce and the cookie carrying its signed form.
func (s *StateStore) Issue() (string, *http.Cookie, error) {
	state := uuid.NewString()

	encoded, err := s.codec.Encode(stateCookieName, state)
	if err != nil {
		return "", nil, err
	}

	cookie := &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(stateLifetime.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	return state, cookie, nil
}

// Verify checks the callback state against the signed cookie and returns a
// cookie that clears the state.
func (s *StateStore) Verify(r *http.Request, state string) (*http.Cookie, error) {
	clear := &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" {
		return clear, ErrInvalidState
	}

	var stored string
	if err := s.codec.Decode(stateCookieName, cookie.Value, &stored); err != nil {
		return clear, ErrInvalidState
	}
	if stored != state {
		return clear, ErrInvalidState
	}
	return clear, nil
}
