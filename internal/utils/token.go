package utils

import (
	"crypto/hmac"   // keyed hashing so token digests are salted
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 digest for voter tokens
	"encoding/hex"  // hex encoding for tokens and digests
)

// PrefixLen is the number of leading plaintext characters persisted
// alongside the token hash.  The prefix exists purely for operator
// troubleshooting ("which token starts with 3fa2…?"); it is far too
// short to recover the token.
const PrefixLen = 8

// NewVoterToken returns a high-entropy random voter token as a hex
// string.  48 random bytes yield 96 hex characters.  The plaintext is
// handed to the caller exactly once and never persisted; only its
// salted hash and prefix are stored.
func NewVoterToken() (string, error) {
	return randomHex(48)
}

// HashVoterToken computes the salted one-way digest of a plaintext
// voter token.  The salt is a service-wide secret from configuration;
// HMAC-SHA256 keeps lookups deterministic while preventing offline
// dictionary matching against a leaked table.
func HashVoterToken(salt, plaintext string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// TokenPrefix returns the short lookup prefix stored next to the hash.
func TokenPrefix(plaintext string) string {
	if len(plaintext) <= PrefixLen {
		return plaintext
	}
	return plaintext[:PrefixLen]
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
