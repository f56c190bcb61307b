// Package dashboard computes live KPIs, rankings, a minute-bucketed
// time series and threshold alerts from the vote record stream.  The
// snapshot builder is a pure function over rows loaded by the caller,
// which keeps it testable without a database; incremental polling is
// supported through a cursor (the highest vote record ID seen so far).
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/iliyamo/school-election/internal/config"
	"github.com/iliyamo/school-election/internal/model"
	"github.com/iliyamo/school-election/internal/repository"
)

// Alert kinds evaluated against every snapshot.
const (
	AlertBlankRate  = "BLANK_RATE"
	AlertInactivity = "INACTIVITY"
	AlertSpike      = "SPIKE"
)

// Params are the validated query parameters of one dashboard request.
type Params struct {
	ProcessID          uint64
	WindowMinutes      int
	BlankRateThreshold float64
	InactivityMinutes  int
	SpikeThreshold     int
	SeriesLimit        int
	Since              uint64
	IncludeRanking     bool
}

// Validate checks parameter ranges against the configured bounds.  The
// returned error message is safe to surface to the caller.
func (p Params) Validate(cfg config.DashboardConfig) error {
	if p.WindowMinutes <= 0 || p.WindowMinutes > cfg.MaxWindow {
		return fmt.Errorf("window_minutes must be between 1 and %d", cfg.MaxWindow)
	}
	if p.BlankRateThreshold < 0 || p.BlankRateThreshold > 1 {
		return fmt.Errorf("blank_rate_threshold must be within [0,1]")
	}
	if p.InactivityMinutes <= 0 {
		return fmt.Errorf("inactivity_minutes must be positive")
	}
	if p.SpikeThreshold <= 0 {
		return fmt.Errorf("spike_threshold must be positive")
	}
	if p.SeriesLimit < cfg.MinSeries {
		return fmt.Errorf("series_limit must be at least %d", cfg.MinSeries)
	}
	return nil
}

// SeriesPoint is the vote count of one minute bucket.
type SeriesPoint struct {
	Minute time.Time `json:"minute"`
	Votes  int64     `json:"votes"`
}

// RankEntry is one candidate inside a role ranking.
type RankEntry struct {
	CandidateID uint64 `json:"candidate_id"`
	Name        string `json:"name"`
	Number      uint32 `json:"number"`
	Votes       int64  `json:"votes"`
}

// RoleRanking orders the candidates of one role by votes, descending.
type RoleRanking struct {
	RoleID     uint64      `json:"role_id"`
	Code       string      `json:"code"`
	Title      string      `json:"title"`
	Entries    []RankEntry `json:"entries"`
	BlankVotes int64       `json:"blank_votes"`
}

// Alert is one threshold breach in the current snapshot.
type Alert struct {
	Kind      string  `json:"kind"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// Snapshot is the dashboard payload.  When Incremental is true the
// counters cover only rows created after the request cursor; Cursor
// always carries the value to pass as `since` on the next poll.
type Snapshot struct {
	ProcessID        uint64        `json:"process_id"`
	GeneratedAt      time.Time     `json:"generated_at"`
	Incremental      bool          `json:"incremental"`
	TotalVotes       int64         `json:"total_votes"`
	BlankVotes       int64         `json:"blank_votes"`
	BlankRate        float64       `json:"blank_rate"`
	CensusSize       int64         `json:"census_size"`
	UniqueVoters     int64         `json:"unique_voters"`
	ParticipationPct float64       `json:"participation_pct"`
	Ranking          []RoleRanking `json:"ranking,omitempty"`
	Series           []SeriesPoint `json:"series"`
	Alerts           []Alert       `json:"alerts"`
	Cursor           uint64        `json:"cursor"`
}

// BuildSnapshot computes a snapshot from the given vote rows.  rows
// must be ordered by ID ascending and already filtered by the request
// cursor; lastVoteAt is the newest vote of the whole process (not just
// the delta) so the inactivity alert stays meaningful on incremental
// polls.
func BuildSnapshot(p Params, ballot *repository.Ballot, rows []model.VoteRecord, censusSize, uniqueVoters int64, lastVoteAt *time.Time, now time.Time) Snapshot {
	s := Snapshot{
		ProcessID:    p.ProcessID,
		GeneratedAt:  now.UTC(),
		Incremental:  p.Since > 0,
		CensusSize:   censusSize,
		UniqueVoters: uniqueVoters,
		Cursor:       p.Since,
		Series:       []SeriesPoint{},
		Alerts:       []Alert{},
	}

	counts := make(map[uint64]int64) // candidate id -> votes
	blanks := make(map[uint64]int64) // role id -> blanks
	windowStart := now.Add(-time.Duration(p.WindowMinutes) * time.Minute)
	buckets := make(map[time.Time]int64)
	for _, v := range rows {
		s.TotalVotes++
		if v.IsBlank {
			s.BlankVotes++
			blanks[v.RoleID]++
		} else if v.CandidateID != nil {
			counts[*v.CandidateID]++
		}
		if v.ID > s.Cursor {
			s.Cursor = v.ID
		}
		if !v.CreatedAt.Before(windowStart) {
			buckets[v.CreatedAt.UTC().Truncate(time.Minute)]++
		}
	}
	if s.TotalVotes > 0 {
		s.BlankRate = round4(float64(s.BlankVotes) / float64(s.TotalVotes))
	}
	if censusSize > 0 {
		s.ParticipationPct = round2(float64(uniqueVoters) / float64(censusSize) * 100)
	}

	for bucket, votes := range buckets {
		s.Series = append(s.Series, SeriesPoint{Minute: bucket, Votes: votes})
	}
	sort.Slice(s.Series, func(i, j int) bool { return s.Series[i].Minute.Before(s.Series[j].Minute) })
	if len(s.Series) > p.SeriesLimit {
		s.Series = s.Series[len(s.Series)-p.SeriesLimit:]
	}

	if p.IncludeRanking && ballot != nil {
		for _, role := range ballot.Roles {
			rr := RoleRanking{
				RoleID:     role.ID,
				Code:       role.Code,
				Title:      role.Title,
				BlankVotes: blanks[role.ID],
				Entries:    []RankEntry{},
			}
			for _, c := range ballot.Candidates[role.ID] {
				rr.Entries = append(rr.Entries, RankEntry{
					CandidateID: c.ID,
					Name:        c.Name,
					Number:      c.Number,
					Votes:       counts[c.ID],
				})
			}
			sort.SliceStable(rr.Entries, func(i, j int) bool {
				if rr.Entries[i].Votes != rr.Entries[j].Votes {
					return rr.Entries[i].Votes > rr.Entries[j].Votes
				}
				return rr.Entries[i].Number < rr.Entries[j].Number
			})
			s.Ranking = append(s.Ranking, rr)
		}
	}

	s.Alerts = evaluateAlerts(p, s, lastVoteAt, now)
	return s
}

// evaluateAlerts checks the three configured thresholds against the
// snapshot.
func evaluateAlerts(p Params, s Snapshot, lastVoteAt *time.Time, now time.Time) []Alert {
	alerts := []Alert{}
	if s.TotalVotes > 0 && s.BlankRate >= p.BlankRateThreshold {
		alerts = append(alerts, Alert{
			Kind:      AlertBlankRate,
			Message:   fmt.Sprintf("blank vote rate %.2f reached threshold %.2f", s.BlankRate, p.BlankRateThreshold),
			Value:     s.BlankRate,
			Threshold: p.BlankRateThreshold,
		})
	}
	if lastVoteAt != nil {
		idle := now.Sub(*lastVoteAt).Minutes()
		if idle >= float64(p.InactivityMinutes) {
			alerts = append(alerts, Alert{
				Kind:      AlertInactivity,
				Message:   fmt.Sprintf("no votes recorded for %.0f minutes", idle),
				Value:     math.Floor(idle),
				Threshold: float64(p.InactivityMinutes),
			})
		}
	}
	if n := len(s.Series); n > 0 {
		latest := s.Series[n-1]
		if latest.Votes >= int64(p.SpikeThreshold) {
			alerts = append(alerts, Alert{
				Kind:      AlertSpike,
				Message:   fmt.Sprintf("%d votes within minute %s", latest.Votes, latest.Minute.Format(time.RFC3339)),
				Value:     float64(latest.Votes),
				Threshold: float64(p.SpikeThreshold),
			})
		}
	}
	return alerts
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
