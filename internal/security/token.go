package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewCustomerToken generates an opaque 256-bit session resume credential.
// It is a plain lookup key, not a claim set: enumeration resistance comes
// from entropy alone.
func NewCustomerToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate customer token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
