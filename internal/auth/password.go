package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost factor used for password hashing in
// production. Tests use bcrypt.MinCost for speed.
const DefaultBcryptCost = 12

// HashPassword returns the bcrypt hash of the plaintext with the given cost.
// Each call embeds a fresh random salt, so equal plaintexts hash differently.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether the plaintext matches the bcrypt hash.
// A malformed hash yields false, never an error.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
