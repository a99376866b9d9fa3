// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token generates opaque single-use verification tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Length is the number of random bytes per token; the hex encoding doubles it.
const Length = 32

// Generate returns a cryptographically secure random token. Tokens carry no
// structure and are only ever compared as opaque strings.
func Generate() (string, error) {
	bytes := make([]byte, Length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
