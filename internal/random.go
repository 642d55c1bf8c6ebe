// Package internal holds non-exported helpers shared by the engine.
package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns a single-use flow token (email verification,
// password reset): 32 bytes of crypto/rand, base64url without padding.
// The token is stored verbatim on the principal row and consumed by
// exact equality.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
