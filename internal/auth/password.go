package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes password with bcrypt at the package's configured
// cost. Called with an empty password it returns an error: hashing the
// empty string is never a valid operation.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", newError(ValidationFailed, "password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. needsRehash is
// true when the stored hash's cost is below the package's current
// bcrypt.DefaultCost, signalling the caller should re-hash and persist a
// fresh hash on this successful login.
func VerifyPassword(password, hash string) (ok bool, needsRehash bool) {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, false
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true, false
	}
	return true, cost < bcrypt.DefaultCost
}
