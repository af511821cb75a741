package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New generates a cryptographically random hex token of n bytes of entropy
// (2n hex characters). Session and CSRF tokens use 32 bytes (256 bits).
func New(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
