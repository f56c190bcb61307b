package model

import "time"

// VoteAccessSession is the ephemeral binding between one validated
// token and one voting attempt.  Sessions are identified by an opaque
// UUID handed to the client after validation.  `consumed_at` is set
// exactly once, inside the ballot submission transaction; a second
// submission against a consumed session replays the original outcome
// instead of writing anything.  Corresponds to `vote_access_sessions`.
//
// Fields:
//  ID         – opaque UUID primary key returned to the voter client.
//  TokenID    – voter token this session was created from.
//  ProcessID  – election process (denormalized for the hot path).
//  ExpiresAt  – session expiry, shorter than the token's.
//  ConsumedAt – when votes were recorded through this session (nullable).
//  CreatedAt  – creation timestamp.
type VoteAccessSession struct {
	ID         string     // vote_access_sessions.id (uuid)
	TokenID    uint64     // vote_access_sessions.token_id
	ProcessID  uint64     // vote_access_sessions.process_id
	ExpiresAt  time.Time  // vote_access_sessions.expires_at
	ConsumedAt *time.Time // vote_access_sessions.consumed_at (nullable)
	CreatedAt  time.Time  // vote_access_sessions.created_at
}

// Expired reports whether the session is past its own expiry.  An
// expired session cannot be consumed even when the parent token is
// still ACTIVE; the voter must re-validate for a fresh session.
func (s *VoteAccessSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Consumed reports whether votes were already recorded through this
// session.
func (s *VoteAccessSession) Consumed() bool { return s.ConsumedAt != nil }
