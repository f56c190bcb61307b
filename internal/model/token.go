package model

import "time"

// Voter token lifecycle states.
const (
	TokenActive  = "ACTIVE"
	TokenUsed    = "USED"
	TokenExpired = "EXPIRED"
	TokenRevoked = "REVOKED"
)

// VoterToken is the anonymity boundary of the voting core.  Only a
// salted one-way hash of the token plus a short prefix are persisted;
// the plaintext leaves the service exactly once, at issuance.  The
// identity metadata (external id, document) exists only to cross-check
// census eligibility during validation and is never returned after a
// vote is cast.  Corresponds to `voter_tokens`.
//
// Fields:
//  ID         – primary key identifier.
//  ProcessID  – election process the token belongs to.
//  TokenHash  – HMAC-SHA256 hex digest of the plaintext token.
//  Prefix     – first characters of the plaintext, for troubleshooting.
//  Status     – ACTIVE, USED, EXPIRED or REVOKED.
//  ExternalID – census identity used for eligibility checks (nullable).
//  Document   – census document number (nullable).
//  ExpiresAt  – absolute expiry of the token.
//  UsedAt     – set when the token is consumed (nullable).
//  CreatedAt  – creation timestamp.
type VoterToken struct {
	ID         uint64     // voter_tokens.id
	ProcessID  uint64     // voter_tokens.process_id
	TokenHash  string     // voter_tokens.token_hash
	Prefix     string     // voter_tokens.prefix
	Status     string     // voter_tokens.status
	ExternalID *string    // voter_tokens.external_id (nullable)
	Document   *string    // voter_tokens.document (nullable)
	ExpiresAt  time.Time  // voter_tokens.expires_at
	UsedAt     *time.Time // voter_tokens.used_at (nullable)
	CreatedAt  time.Time  // voter_tokens.created_at
}

// Expired reports whether the token is past its absolute expiry.
func (t *VoterToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Resettable reports whether a contingency reset may reactivate the
// token.  Only non-ACTIVE tokens qualify; resetting an ACTIVE token
// would be a no-op and is rejected so the audit trail stays honest.
func (t *VoterToken) Resettable() bool {
	switch t.Status {
	case TokenUsed, TokenExpired, TokenRevoked:
		return true
	}
	return false
}
