package blob

import (
	"crypto/rand"
	"fmt"
)

// alphanumericAlphabet is the character set used for handles and claim codes.
const alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RootHandle is the sentinel parent handle denoting the root of a user's
// file forest.
const RootHandle = "0000000000000000"

// GenerateAlphanumeric returns a cryptographically random alphanumeric
// string of the given length, suitable for file handles and claim codes.
func GenerateAlphanumeric(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphanumericAlphabet[int(b)%len(alphanumericAlphabet)]
	}
	return string(out), nil
}

// IsAlphanumeric reports whether s consists solely of ASCII letters and digits.
func IsAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
