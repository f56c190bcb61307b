// Package audit defines the event payloads the voting core hands to
// its audit-log and notification sinks.  The core publishes and moves
// on; durable queues decouple it from whatever consumes the events.
package audit

import "github.com/iliyamo/school-election/internal/scrutiny"

// Queue names.  Durable so events survive broker restarts.
const (
	AuditQueue  = "election.audit"
	ClosedQueue = "election.closed"
)

// Event is one audited administrative action: token resets and
// revocations, census exclusions, lifecycle transitions, exports.
// Actor is the operator's user ID as asserted by the JWT middleware.
type Event struct {
	Actor      uint64 `json:"actor"`
	Action     string `json:"action"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason,omitempty"`
	Outcome    int    `json:"outcome"` // HTTP status code of the operation
	At         string `json:"at"`      // RFC3339 UTC
}

// ProcessClosedEvent carries the final tally to the observer/annotator
// collaborator when a process transitions to CLOSED.  The tally is
// passed as a value; consumers never query the core's database.
type ProcessClosedEvent struct {
	ProcessID       uint64            `json:"process_id"`
	ProcessName     string            `json:"process_name"`
	ClosedAt        string            `json:"closed_at"`
	TotalVotes      int64             `json:"total_votes"`
	Winners         []scrutiny.Winner `json:"winners"`
	Congratulations []string          `json:"congratulations"`
}
