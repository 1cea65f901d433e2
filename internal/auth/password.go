// Package auth implements password and token hashing, the composite
// Authorization header parser, and the read/write/admin permission
// decisions that gate every mutating HTTP handler (spec §4.C).
package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/kohakuhub/hub/internal/apperr"
)

// HashPassword bcrypt-hashes a plaintext password for storage in
// User.PasswordHash. Cost is the library default, matching the
// teacher's preference for bcrypt over a hand-rolled KDF.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.WrapInternal(err, "ServerError", "failed to hash password")
	}

	return string(hash), nil
}

// VerifyPassword reports whether plain matches hash, constant-time by
// construction of bcrypt.CompareHashAndPassword itself.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
