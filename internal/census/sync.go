// Package census implements the pure part of the census sync: diffing
// an external snapshot against the stored members and classifying every
// record as a create, update, deactivate or reactivate.  The repository
// layer applies the resulting plan transactionally and records one
// change event per transition.
package census

import (
	"fmt"
	"strings"

	"github.com/iliyamo/school-election/internal/model"
)

// Record is one row of an external census snapshot as submitted by the
// sync endpoint.
type Record struct {
	ExternalID string `json:"external_id"`
	Document   string `json:"document"`
	FullName   string `json:"full_name"`
	Grade      string `json:"grade"`
	Shift      string `json:"shift"`
}

// Change is one planned transition for a census member.  MemberID is
// zero for creations and refers to the existing row otherwise.  Record
// carries the desired state for creates, updates and reactivations.
type Change struct {
	Kind     string
	MemberID uint64
	Record   Record
	Detail   string
}

// Plan diffs a snapshot against the existing members.  Per snapshot
// record it emits CREATE (unknown external id), REACTIVATE (known but
// inactive), or UPDATE (known, active, with differing fields); records
// that match exactly produce no change.  Existing members absent from
// the snapshot are left untouched unless deactivateMissing is set, in
// which case active ones are deactivated.  The plan order follows the
// snapshot order, with deactivations appended last.
func Plan(existing []model.CensusMember, snapshot []Record, deactivateMissing bool) []Change {
	byExternal := make(map[string]model.CensusMember, len(existing))
	for _, m := range existing {
		byExternal[m.ExternalID] = m
	}

	var changes []Change
	seen := make(map[string]struct{}, len(snapshot))
	for _, rec := range snapshot {
		id := strings.TrimSpace(rec.ExternalID)
		if id == "" {
			continue
		}
		rec.ExternalID = id
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		cur, ok := byExternal[id]
		if !ok {
			changes = append(changes, Change{Kind: model.CensusEventCreate, Record: rec})
			continue
		}
		diff := fieldDiff(cur, rec)
		if !cur.IsActive {
			changes = append(changes, Change{
				Kind:     model.CensusEventReactivate,
				MemberID: cur.ID,
				Record:   rec,
				Detail:   diff,
			})
			continue
		}
		if diff != "" {
			changes = append(changes, Change{
				Kind:     model.CensusEventUpdate,
				MemberID: cur.ID,
				Record:   rec,
				Detail:   diff,
			})
		}
	}

	if deactivateMissing {
		for _, m := range existing {
			if !m.IsActive {
				continue
			}
			if _, ok := seen[m.ExternalID]; ok {
				continue
			}
			changes = append(changes, Change{
				Kind:     model.CensusEventDeactivate,
				MemberID: m.ID,
				Record:   Record{ExternalID: m.ExternalID},
				Detail:   "absent from snapshot",
			})
		}
	}
	return changes
}

// fieldDiff returns a short description of the fields that differ
// between the stored member and the snapshot record, or "" when they
// match.
func fieldDiff(cur model.CensusMember, rec Record) string {
	var parts []string
	if cur.Document != rec.Document {
		parts = append(parts, fmt.Sprintf("document %q -> %q", cur.Document, rec.Document))
	}
	if cur.FullName != rec.FullName {
		parts = append(parts, fmt.Sprintf("name %q -> %q", cur.FullName, rec.FullName))
	}
	if cur.Grade != rec.Grade {
		parts = append(parts, fmt.Sprintf("grade %q -> %q", cur.Grade, rec.Grade))
	}
	if cur.Shift != rec.Shift {
		parts = append(parts, fmt.Sprintf("shift %q -> %q", cur.Shift, rec.Shift))
	}
	return strings.Join(parts, "; ")
}
