// Package cryptox holds the credential hashing primitives. Raw passwords are
// hashed with bcrypt before they ever reach a row; the raw value is never
// persisted or logged.
package cryptox

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost is the fixed work factor used for new hashes. Deliberately
// slow to resist brute force.
const DefaultBcryptCost = 12

// HashPassword computes a salted bcrypt hash of raw with the given cost.
// A cost outside bcrypt's supported range falls back to DefaultBcryptCost.
func HashPassword(raw string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether candidate matches the stored bcrypt hash.
// It never returns an error on mismatch, only false.
func CheckPassword(candidate, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate)) == nil
}
