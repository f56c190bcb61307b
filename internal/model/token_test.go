package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVoterTokenExpired(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tok := VoterToken{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, tok.Expired(now))
	assert.True(t, tok.Expired(now.Add(time.Hour)), "expiry instant itself is expired")
	assert.True(t, tok.Expired(now.Add(2*time.Hour)))
}

func TestVoterTokenResettable(t *testing.T) {
	for _, status := range []string{TokenUsed, TokenExpired, TokenRevoked} {
		tok := VoterToken{Status: status}
		assert.True(t, tok.Resettable(), status)
	}
	active := VoterToken{Status: TokenActive}
	assert.False(t, active.Resettable(), "resetting an ACTIVE token must be rejected")
}
