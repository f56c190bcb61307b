// Package scrutiny aggregates recorded votes into per-role, per-candidate
// counts and renders them as JSON, CSV, XLSX and PDF.  The engine is a
// pure function over the ballot definition and the aggregated tally
// rows, so the same data snapshot always produces the same output in
// the same order: roles by display order, candidates by ballot number.
package scrutiny

import (
	"sort"

	"github.com/iliyamo/school-election/internal/model"
	"github.com/iliyamo/school-election/internal/repository"
)

// CandidateResult is the vote count of one candidate.
type CandidateResult struct {
	CandidateID uint64 `json:"candidate_id"`
	Name        string `json:"name"`
	Number      uint32 `json:"number"`
	Votes       int64  `json:"votes"`
}

// RoleResult groups the results of one contested role.  TotalVotes is
// the sum of candidate votes plus blanks, the invariant every export
// row repeats.
type RoleResult struct {
	RoleID     uint64            `json:"role_id"`
	Code       string            `json:"code"`
	Title      string            `json:"title"`
	Candidates []CandidateResult `json:"candidates"`
	BlankVotes int64             `json:"blank_votes"`
	TotalVotes int64             `json:"total_votes"`
}

// Summary is the full scrutiny of one process.
type Summary struct {
	ProcessID   uint64       `json:"process_id"`
	ProcessName string       `json:"process_name"`
	Roles       []RoleResult `json:"roles"`
	TotalVotes  int64        `json:"total_votes"`
}

// BuildSummary joins the aggregated tally rows with the ballot
// definition.  Candidates with no votes still appear with a zero
// count; tally rows referencing unknown roles or candidates (possible
// after administrative surgery on the ballot) are dropped rather than
// misattributed.
func BuildSummary(process model.ElectionProcess, ballot *repository.Ballot, tally []repository.TallyRow) Summary {
	counts := make(map[uint64]int64)           // candidate id -> votes
	blanks := make(map[uint64]int64)           // role id -> blank votes
	for _, row := range tally {
		if row.CandidateID != nil {
			counts[*row.CandidateID] += row.Count
		} else if row.IsBlank {
			blanks[row.RoleID] += row.Count
		}
	}

	s := Summary{ProcessID: process.ID, ProcessName: process.Name}
	for _, role := range ballot.Roles {
		rr := RoleResult{
			RoleID:     role.ID,
			Code:       role.Code,
			Title:      role.Title,
			BlankVotes: blanks[role.ID],
			Candidates: []CandidateResult{},
		}
		for _, c := range ballot.Candidates[role.ID] {
			rr.Candidates = append(rr.Candidates, CandidateResult{
				CandidateID: c.ID,
				Name:        c.Name,
				Number:      c.Number,
				Votes:       counts[c.ID],
			})
		}
		sort.SliceStable(rr.Candidates, func(i, j int) bool {
			return rr.Candidates[i].Number < rr.Candidates[j].Number
		})
		rr.TotalVotes = rr.BlankVotes
		for _, c := range rr.Candidates {
			rr.TotalVotes += c.Votes
		}
		s.TotalVotes += rr.TotalVotes
		s.Roles = append(s.Roles, rr)
	}
	return s
}

// Winner is the leading candidate of one role in a final tally, as
// passed to the post-close hook.
type Winner struct {
	RoleID      uint64 `json:"role_id"`
	RoleCode    string `json:"role_code"`
	RoleTitle   string `json:"role_title"`
	CandidateID uint64 `json:"candidate_id"`
	Name        string `json:"name"`
	Number      uint32 `json:"number"`
	Votes       int64  `json:"votes"`
	Tied        bool   `json:"tied"`
}

// Winners extracts the top candidate per role.  Roles with no
// candidates or zero candidate votes are skipped.  Ties keep the lowest
// ballot number first and are flagged so downstream consumers do not
// congratulate prematurely.
func Winners(s Summary) []Winner {
	var out []Winner
	for _, role := range s.Roles {
		var best *CandidateResult
		tied := false
		for i := range role.Candidates {
			c := &role.Candidates[i]
			switch {
			case best == nil || c.Votes > best.Votes:
				best = c
				tied = false
			case c.Votes == best.Votes:
				tied = true
			}
		}
		if best == nil || best.Votes == 0 {
			continue
		}
		out = append(out, Winner{
			RoleID:      role.RoleID,
			RoleCode:    role.Code,
			RoleTitle:   role.Title,
			CandidateID: best.CandidateID,
			Name:        best.Name,
			Number:      best.Number,
			Votes:       best.Votes,
			Tied:        tied,
		})
	}
	return out
}
