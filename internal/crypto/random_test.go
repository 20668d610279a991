package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken()
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// Each call generates a unique token
	token2, err := GenerateSecureToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token, token2)

	// base64 encoding of 32 bytes should be at least 40 chars
	assert.GreaterOrEqual(t, len(token), 40)
}

func TestGenerateHexNonce(t *testing.T) {
	nonce, err := GenerateHexNonce(48)
	require.NoError(t, err)
	assert.Len(t, nonce, 96)

	decoded, err := hex.DecodeString(nonce)
	require.NoError(t, err)
	assert.Len(t, decoded, 48)

	nonce2, err := GenerateHexNonce(48)
	require.NoError(t, err)
	assert.NotEqual(t, nonce, nonce2)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("abc123", "abc123"))
	assert.False(t, SecureCompare("abc123", "abc124"))
	assert.False(t, SecureCompare("abc123", "abc1234"))
	assert.False(t, SecureCompare("", "abc"))
	assert.True(t, SecureCompare("", ""))
}
