package scrutiny

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-election/internal/model"
	"github.com/iliyamo/school-election/internal/repository"
)

func uptr(v uint64) *uint64 { return &v }

func testBallot() *repository.Ballot {
	return &repository.Ballot{
		Roles: []model.ElectionRole{
			{ID: 1, Code: "PERSONERO", Title: "Personero", DisplayOrder: 1},
			{ID: 2, Code: "CONTRALOR", Title: "Contralor", DisplayOrder: 2},
		},
		Candidates: map[uint64][]model.ElectionCandidate{
			1: {
				{ID: 11, RoleID: 1, Name: "Ana", Number: 2},
				{ID: 10, RoleID: 1, Name: "Luis", Number: 1},
			},
			2: {
				{ID: 20, RoleID: 2, Name: "Eva", Number: 1},
			},
		},
	}
}

func TestBuildSummaryTotals(t *testing.T) {
	process := model.ElectionProcess{ID: 7, Name: "Elecciones 2026"}
	tally := []repository.TallyRow{
		{RoleID: 1, CandidateID: uptr(10), Count: 12},
		{RoleID: 1, CandidateID: uptr(11), Count: 30},
		{RoleID: 1, IsBlank: true, Count: 3},
		{RoleID: 2, CandidateID: uptr(20), Count: 5},
	}

	s := BuildSummary(process, testBallot(), tally)
	require.Len(t, s.Roles, 2)

	personero := s.Roles[0]
	assert.Equal(t, "PERSONERO", personero.Code)
	assert.Equal(t, int64(3), personero.BlankVotes)
	assert.Equal(t, int64(45), personero.TotalVotes)

	// Candidate votes plus blanks always equals the role total.
	var sum int64 = personero.BlankVotes
	for _, c := range personero.Candidates {
		sum += c.Votes
	}
	assert.Equal(t, personero.TotalVotes, sum)

	assert.Equal(t, int64(50), s.TotalVotes)
}

func TestBuildSummaryOrdersCandidatesByNumber(t *testing.T) {
	s := BuildSummary(model.ElectionProcess{ID: 1}, testBallot(), nil)

	require.Len(t, s.Roles[0].Candidates, 2)
	assert.Equal(t, uint32(1), s.Roles[0].Candidates[0].Number)
	assert.Equal(t, uint32(2), s.Roles[0].Candidates[1].Number)
}

func TestBuildSummaryZeroVoteCandidatesIncluded(t *testing.T) {
	tally := []repository.TallyRow{{RoleID: 1, CandidateID: uptr(10), Count: 4}}
	s := BuildSummary(model.ElectionProcess{ID: 1}, testBallot(), tally)

	ana := s.Roles[0].Candidates[1]
	assert.Equal(t, "Ana", ana.Name)
	assert.Equal(t, int64(0), ana.Votes)

	eva := s.Roles[1].Candidates[0]
	assert.Equal(t, int64(0), eva.Votes)
}

func TestBuildSummaryDropsUnknownReferences(t *testing.T) {
	tally := []repository.TallyRow{
		{RoleID: 99, CandidateID: uptr(999), Count: 7},
		{RoleID: 99, IsBlank: true, Count: 2},
	}
	s := BuildSummary(model.ElectionProcess{ID: 1}, testBallot(), tally)
	assert.Equal(t, int64(0), s.TotalVotes)
}

func TestWinners(t *testing.T) {
	tally := []repository.TallyRow{
		{RoleID: 1, CandidateID: uptr(10), Count: 12},
		{RoleID: 1, CandidateID: uptr(11), Count: 30},
		{RoleID: 2, CandidateID: uptr(20), Count: 5},
	}
	s := BuildSummary(model.ElectionProcess{ID: 1}, testBallot(), tally)

	winners := Winners(s)
	require.Len(t, winners, 2)
	assert.Equal(t, "Ana", winners[0].Name)
	assert.Equal(t, int64(30), winners[0].Votes)
	assert.False(t, winners[0].Tied)
	assert.Equal(t, "Eva", winners[1].Name)
}

func TestWinnersFlagsTies(t *testing.T) {
	tally := []repository.TallyRow{
		{RoleID: 1, CandidateID: uptr(10), Count: 9},
		{RoleID: 1, CandidateID: uptr(11), Count: 9},
	}
	s := BuildSummary(model.ElectionProcess{ID: 1}, testBallot(), tally)

	winners := Winners(s)
	require.Len(t, winners, 1)
	assert.True(t, winners[0].Tied)
	// Lowest ballot number leads a tie.
	assert.Equal(t, uint32(1), winners[0].Number)
}

func TestWinnersSkipsZeroVoteRoles(t *testing.T) {
	s := BuildSummary(model.ElectionProcess{ID: 1}, testBallot(), nil)
	assert.Empty(t, Winners(s))
}

func TestWriteCSVDeterministic(t *testing.T) {
	tally := []repository.TallyRow{
		{RoleID: 1, CandidateID: uptr(10), Count: 12},
		{RoleID: 1, IsBlank: true, Count: 3},
	}
	s := BuildSummary(model.ElectionProcess{ID: 1, Name: "E"}, testBallot(), tally)

	var first, second bytes.Buffer
	require.NoError(t, WriteCSV(&first, s))
	require.NoError(t, WriteCSV(&second, s))
	assert.Equal(t, first.String(), second.String())

	lines := strings.Split(strings.TrimSpace(first.String()), "\n")
	// Header, two candidates + blank for PERSONERO, one candidate +
	// blank for CONTRALOR.
	require.Len(t, lines, 6)
	assert.Equal(t, strings.Join(exportHeader, ","), lines[0])
	assert.Contains(t, lines[3], "BLANK")
}

func TestCongratulations(t *testing.T) {
	msgs := Congratulations([]Winner{
		{RoleTitle: "Personero", Name: "Ana", Number: 2, Votes: 30},
		{RoleTitle: "Contralor", Votes: 9, Tied: true},
	})
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Congratulations to Ana")
	assert.Contains(t, msgs[1], "tie")
	assert.NotContains(t, msgs[1], "Congratulations")
}
