package model

import "time"

// Census change event kinds recorded by the sync operation.  Every
// transition observed while ingesting an external snapshot produces
// one event row for auditability.
const (
	CensusEventCreate     = "CREATE"
	CensusEventUpdate     = "UPDATE"
	CensusEventDeactivate = "DEACTIVATE"
	CensusEventReactivate = "REACTIVATE"
)

// CensusMember is one eligible voter as synced from the external
// school-management source.  The external ID is the stable identity
// used to match tokens against the census.  Corresponds to
// `census_members`.
//
// Fields:
//  ID         – primary key identifier.
//  ExternalID – stable identifier from the external source.
//  Document   – national/school document number.
//  FullName   – display name (used for candidate links and annotation).
//  Grade      – grade or course label (e.g. "11-A").
//  Shift      – school shift (e.g. MORNING, AFTERNOON).
//  IsActive   – whether the member is globally eligible.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type CensusMember struct {
	ID         uint64    // census_members.id
	ExternalID string    // census_members.external_id
	Document   string    // census_members.document
	FullName   string    // census_members.full_name
	Grade      string    // census_members.grade
	Shift      string    // census_members.shift
	IsActive   bool      // census_members.is_active
	CreatedAt  time.Time // census_members.created_at
	UpdatedAt  time.Time // census_members.updated_at
}

// CensusChangeEvent records one lifecycle transition applied to a
// census member during a sync run.  Corresponds to
// `census_change_events`.
//
// Fields:
//  ID         – primary key identifier.
//  MemberID   – member the event refers to.
//  ExternalID – denormalized external id for log readability.
//  Kind       – CREATE, UPDATE, DEACTIVATE or REACTIVATE.
//  Detail     – optional human readable description of the change.
//  CreatedAt  – when the event was recorded.
type CensusChangeEvent struct {
	ID         uint64    // census_change_events.id
	MemberID   uint64    // census_change_events.member_id
	ExternalID string    // census_change_events.external_id
	Kind       string    // census_change_events.kind
	Detail     string    // census_change_events.detail
	CreatedAt  time.Time // census_change_events.created_at
}

// CensusExclusion removes one member from eligibility for a single
// process without touching the global census.  Unique per
// (process, member).  Corresponds to `census_exclusions`.
//
// Fields:
//  ID        – primary key identifier.
//  ProcessID – process the exclusion applies to.
//  MemberID  – excluded census member.
//  Reason    – operator supplied justification.
//  CreatedAt – when the exclusion was recorded.
type CensusExclusion struct {
	ID        uint64    // census_exclusions.id
	ProcessID uint64    // census_exclusions.process_id
	MemberID  uint64    // census_exclusions.member_id
	Reason    string    // census_exclusions.reason
	CreatedAt time.Time // census_exclusions.created_at
}
