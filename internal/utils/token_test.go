package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVoterToken(t *testing.T) {
	a, err := NewVoterToken()
	require.NoError(t, err)
	b, err := NewVoterToken()
	require.NoError(t, err)

	assert.Len(t, a, 96)
	assert.NotEqual(t, a, b)
}

func TestHashVoterToken(t *testing.T) {
	h1 := HashVoterToken("salt", "token")
	h2 := HashVoterToken("salt", "token")
	assert.Equal(t, h1, h2, "same salt and plaintext must hash identically")
	assert.Len(t, h1, 64)

	assert.NotEqual(t, h1, HashVoterToken("other-salt", "token"))
	assert.NotEqual(t, h1, HashVoterToken("salt", "other-token"))
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "abcdef01", TokenPrefix("abcdef0123456789"))
	assert.Equal(t, "short", TokenPrefix("short"))
	assert.Equal(t, "", TokenPrefix(""))
}
