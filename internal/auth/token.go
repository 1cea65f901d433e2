package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/kohakuhub/hub/internal/apperr"
)

// tokenRandomBytes is the entropy of a newly minted API token, before
// the "hub_" prefix and base64url encoding.
const tokenRandomBytes = 32

// NewAPIToken generates a fresh opaque bearer token. The raw value is
// returned exactly once — the caller must hash it via HashToken before
// persisting and must not print it again (spec §4.C: never log or echo
// plaintext tokens).
func NewAPIToken() (string, error) {
	buf := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.WrapInternal(err, "ServerError", "failed to generate token")
	}

	return "hub_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex-encoded SHA3-512 digest of raw, the only
// form ever persisted (spec §4.C).
func HashToken(raw string) string {
	sum := sha3.Sum512([]byte(raw))

	return hex.EncodeToString(sum[:])
}

// TokensEqual compares two already-hashed token digests in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Mask renders a token for display/logging as spec §4.C requires:
// never the plaintext, only a short prefix plus a fixed mask suffix.
func Mask(raw string) string {
	const visible = 4
	if len(raw) <= visible {
		return "***"
	}

	return raw[:visible] + "***"
}
