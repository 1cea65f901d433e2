package metadata

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// sanitizePattern collapses any run of non [a-z0-9] characters to a
// single hyphen, per spec §6's VOS repository naming algorithm.
var sanitizePattern = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveVOSName computes the VOS repository name for fullID (the
// "{namespace}/{name}" identity), matching
// `^[a-z0-9][a-z0-9-]{2,62}$`: a type char, a truncated sanitized id,
// and a mandatory disambiguating hash, so that sanitization collisions
// ("a/b" and "a-b") never collide in VOS.
func DeriveVOSName(repoType RepoType, fullID string) string {
	return fmt.Sprintf("%c-%s-%s", repoType.TypeChar(), sanitizeID(fullID), foldedHash(fullID))
}

func sanitizeID(fullID string) string {
	lower := strings.ToLower(fullID)
	replaced := sanitizePattern.ReplaceAllString(lower, "-")
	trimmed := strings.Trim(replaced, "-")

	if len(trimmed) > 38 {
		trimmed = strings.Trim(trimmed[:38], "-")
	}

	return trimmed
}

// foldedHash XOR-folds the SHA3-224 digest of the original,
// unsanitized fullID into 112 bits (two 14-byte halves), then
// base36-encodes it, left-padded to 22 characters.
func foldedHash(fullID string) string {
	sum := sha3.Sum224([]byte(fullID))

	high := new(big.Int).SetBytes(sum[:14])
	low := new(big.Int).SetBytes(sum[14:])
	folded := new(big.Int).Xor(high, low)

	encoded := folded.Text(36)
	if pad := 22 - len(encoded); pad > 0 {
		encoded = strings.Repeat("0", pad) + encoded
	}

	return encoded
}
