package model

import "time"

// VoteRecord is one recorded choice for a role, either a candidate or
// an explicit blank.  Rows are append-only and are the sole source of
// truth for scrutiny and the live dashboard.  For a given access
// session at most one record exists per role.  Corresponds to
// `vote_records`.
//
// Fields:
//  ID          – primary key identifier (monotone, used as the
//                dashboard cursor).
//  ProcessID   – election process.
//  RoleID      – role voted on.
//  SessionID   – access session the vote was cast through.
//  CandidateID – chosen candidate (nil for blank votes).
//  IsBlank     – explicit abstention flag.
//  CreatedAt   – when the vote was recorded.
type VoteRecord struct {
	ID          uint64    // vote_records.id
	ProcessID   uint64    // vote_records.process_id
	RoleID      uint64    // vote_records.role_id
	SessionID   string    // vote_records.session_id (uuid)
	CandidateID *uint64   // vote_records.candidate_id (nullable)
	IsBlank     bool      // vote_records.is_blank
	CreatedAt   time.Time // vote_records.created_at
}
