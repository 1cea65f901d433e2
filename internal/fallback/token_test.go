package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipher_RoundTrips(t *testing.T) {
	c := NewTokenCipher("super-secret-master-key")

	encrypted, err := c.Encrypt("hf_abcdef1234567890")
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "hf_abcdef1234567890")

	plain, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "hf_abcdef1234567890", plain)
}

func TestTokenCipher_RejectsTamperedCiphertext(t *testing.T) {
	c := NewTokenCipher("super-secret-master-key")

	encrypted, err := c.Encrypt("token-value")
	require.NoError(t, err)

	tampered := []byte(encrypted)
	tampered[0] ^= 0xFF

	_, err = c.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestTokenCipher_DifferentMasterKeysCannotCrossDecrypt(t *testing.T) {
	a := NewTokenCipher("key-a")
	b := NewTokenCipher("key-b")

	encrypted, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(encrypted)
	assert.Error(t, err)
}
