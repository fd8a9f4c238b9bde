package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// callbackTokenBytes is the entropy of a callback token. 32 bytes (256 bits)
// hex-encodes to 64 characters, safe for URL paths and store primary keys.
// Uniqueness rests on entropy alone; collisions are not checked for, which
// is an accepted probabilistic guarantee rather than an absolute one.
const callbackTokenBytes = 32

// TokenIssuer produces callback tokens for correlation records.
type TokenIssuer interface {
	Issue() (string, error)
}

// RandomTokenIssuer issues cryptographically random fixed-length tokens.
type RandomTokenIssuer struct{}

var _ TokenIssuer = RandomTokenIssuer{}

// Issue returns a new 64-character hex token.
func (RandomTokenIssuer) Issue() (string, error) {
	b := make([]byte, callbackTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate callback token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
