package model

import "time"

// Election process lifecycle states.  A process is always created in
// DRAFT and only moves forward: DRAFT -> OPEN -> CLOSED.
const (
	ProcessDraft  = "DRAFT"
	ProcessOpen   = "OPEN"
	ProcessClosed = "CLOSED"
)

// ElectionProcess represents a single election run by an institution.
// It owns roles (the offices being voted on) and per-process census
// exclusions.  This struct corresponds to a row in the
// `election_processes` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the election (e.g. "Elecciones 2026").
//  Status    – lifecycle state (DRAFT, OPEN, CLOSED).
//  OpensAt   – when voting opens (nullable until scheduled).
//  ClosesAt  – when voting closes (nullable until scheduled).
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type ElectionProcess struct {
	ID        uint64     // election_processes.id
	Name      string     // election_processes.name
	Status    string     // election_processes.status
	OpensAt   *time.Time // election_processes.opens_at (nullable)
	ClosesAt  *time.Time // election_processes.closes_at (nullable)
	CreatedAt time.Time  // election_processes.created_at
	UpdatedAt time.Time  // election_processes.updated_at
}

// OpenForVoting reports whether the process accepts ballots at the
// given instant.  The status must be OPEN and `now` must fall inside
// the configured window; an unset bound is treated as unbounded.
func (p *ElectionProcess) OpenForVoting(now time.Time) bool {
	if p.Status != ProcessOpen {
		return false
	}
	if p.OpensAt != nil && now.Before(*p.OpensAt) {
		return false
	}
	if p.ClosesAt != nil && !now.Before(*p.ClosesAt) {
		return false
	}
	return true
}

// CanTransitionTo reports whether the lifecycle may move from the
// current status to the target one.  Transitions are forward-only.
func (p *ElectionProcess) CanTransitionTo(target string) bool {
	switch p.Status {
	case ProcessDraft:
		return target == ProcessOpen
	case ProcessOpen:
		return target == ProcessClosed
	default:
		return false
	}
}

// ElectionRole is an office contested in one process, such as
// PERSONERO or CONTRALOR.  Roles carry a display order used for
// deterministic scrutiny output.  Corresponds to `election_roles`.
//
// Fields:
//  ID           – primary key identifier.
//  ProcessID    – owning election process.
//  Code         – short unique code per process (e.g. PERSONERO).
//  Title        – human readable name shown on the ballot.
//  DisplayOrder – ordering for ballots and exports.
//  CreatedAt    – creation timestamp.
type ElectionRole struct {
	ID           uint64    // election_roles.id
	ProcessID    uint64    // election_roles.process_id
	Code         string    // election_roles.code
	Title        string    // election_roles.title
	DisplayOrder uint32    // election_roles.display_order
	CreatedAt    time.Time // election_roles.created_at
}

// ElectionCandidate is a person running for one role.  Inactive
// candidates remain on record but cannot receive new votes.  The
// optional CensusMemberID links the candidate back to the census for
// post-close annotation.  Corresponds to `election_candidates`.
//
// Fields:
//  ID             – primary key identifier.
//  RoleID         – role the candidate runs for.
//  Name           – candidate display name.
//  Number         – ballot number shown to voters.
//  IsActive       – whether the candidate can receive votes.
//  CensusMemberID – optional link to a census member.
//  CreatedAt      – creation timestamp.
type ElectionCandidate struct {
	ID             uint64    // election_candidates.id
	RoleID         uint64    // election_candidates.role_id
	Name           string    // election_candidates.name
	Number         uint32    // election_candidates.number
	IsActive       bool      // election_candidates.is_active
	CensusMemberID *uint64   // election_candidates.census_member_id (nullable)
	CreatedAt      time.Time // election_candidates.created_at
}
