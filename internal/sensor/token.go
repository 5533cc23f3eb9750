package sensor

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// tokenBytes is the number of random bytes in a verification token.
// Hex encoding doubles it to 32 characters.
const tokenBytes = 16

// NewVerificationToken returns a lowercase hex token read from src.
// A nil src uses crypto/rand.
func NewVerificationToken(src io.Reader) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(src, b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
