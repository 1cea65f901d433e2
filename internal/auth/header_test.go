package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorization_OwnTokenOnly(t *testing.T) {
	tok, ext := ParseAuthorization("Bearer hub_abc123")
	require.NotNil(t, tok)
	assert.Equal(t, "hub_abc123", *tok)
	assert.Empty(t, ext)
}

func TestParseAuthorization_EmptyOwnTokenWithExternalPairs(t *testing.T) {
	tok, ext := ParseAuthorization("Bearer |https://hf.example,tok1|https://mirror.example,tok2")
	assert.Nil(t, tok)
	require.Len(t, ext, 2)
	assert.Equal(t, "tok1", ext["https://hf.example"])
	assert.Equal(t, "tok2", ext["https://mirror.example"])
}

func TestParseAuthorization_DropsMalformedSegments(t *testing.T) {
	tok, ext := ParseAuthorization("Bearer hub_abc|malformed-no-comma|https://ok.example,tok")
	require.NotNil(t, tok)
	assert.Equal(t, "hub_abc", *tok)
	require.Len(t, ext, 1)
	assert.Equal(t, "tok", ext["https://ok.example"])
}

func TestParseAuthorization_NonBearerSchemeReturnsNil(t *testing.T) {
	tok, ext := ParseAuthorization("Basic dXNlcjpwYXNz")
	assert.Nil(t, tok)
	assert.Nil(t, ext)
}
