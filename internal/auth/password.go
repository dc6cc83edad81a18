// Package auth checks the admin password and issues bearer tokens.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// HashSecret returns the SHA-256 digest of s.
func HashSecret(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

// CheckPassword compares given against expected in constant time. Digests
// are compared so the length of expected does not leak either.
func CheckPassword(given, expected string) bool {
	if expected == "" {
		return false
	}
	g := HashSecret(given)
	e := HashSecret(expected)
	return subtle.ConstantTimeCompare(g[:], e[:]) == 1
}
