package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-election/internal/model"
	"github.com/iliyamo/school-election/internal/repository"
)

func uptr(v uint64) *uint64 { return &v }

func submissionBallot() *repository.Ballot {
	return &repository.Ballot{
		Roles: []model.ElectionRole{
			{ID: 1, Code: "PERSONERO", Title: "Personero"},
			{ID: 2, Code: "CONTRALOR", Title: "Contralor"},
		},
		Candidates: map[uint64][]model.ElectionCandidate{
			1: {{ID: 10, RoleID: 1, Name: "Luis", Number: 1, IsActive: true}},
			2: {{ID: 20, RoleID: 2, Name: "Eva", Number: 1, IsActive: true}},
		},
	}
}

func TestBuildVoteRecords(t *testing.T) {
	records, err := buildVoteRecords(7, "sess-1", submissionBallot(), []Selection{
		{RoleID: 1, CandidateID: uptr(10)},
		{RoleID: 2, IsBlank: true},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, uint64(7), records[0].ProcessID)
	assert.Equal(t, "sess-1", records[0].SessionID)
	require.NotNil(t, records[0].CandidateID)
	assert.Equal(t, uint64(10), *records[0].CandidateID)
	assert.False(t, records[0].IsBlank)

	assert.True(t, records[1].IsBlank)
	assert.Nil(t, records[1].CandidateID)
}

func TestBuildVoteRecordsPartialBallotAllowed(t *testing.T) {
	// Voting for only one of the two roles is valid.
	records, err := buildVoteRecords(7, "sess-1", submissionBallot(), []Selection{
		{RoleID: 2, CandidateID: uptr(20)},
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestBuildVoteRecordsRejectsEmptySubmission(t *testing.T) {
	_, err := buildVoteRecords(7, "sess-1", submissionBallot(), nil)
	assert.Error(t, err)
}

func TestBuildVoteRecordsRejectsUnknownRole(t *testing.T) {
	_, err := buildVoteRecords(7, "sess-1", submissionBallot(), []Selection{
		{RoleID: 99, IsBlank: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role 99")
}

func TestBuildVoteRecordsRejectsDuplicateRole(t *testing.T) {
	_, err := buildVoteRecords(7, "sess-1", submissionBallot(), []Selection{
		{RoleID: 1, CandidateID: uptr(10)},
		{RoleID: 1, IsBlank: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestBuildVoteRecordsRejectsCandidateAndBlank(t *testing.T) {
	_, err := buildVoteRecords(7, "sess-1", submissionBallot(), []Selection{
		{RoleID: 1, CandidateID: uptr(10), IsBlank: true},
	})
	assert.Error(t, err)
}

func TestBuildVoteRecordsRejectsNeitherCandidateNorBlank(t *testing.T) {
	_, err := buildVoteRecords(7, "sess-1", submissionBallot(), []Selection{
		{RoleID: 1},
	})
	assert.Error(t, err)
}

func TestBuildVoteRecordsRejectsCandidateFromOtherRole(t *testing.T) {
	_, err := buildVoteRecords(7, "sess-1", submissionBallot(), []Selection{
		{RoleID: 1, CandidateID: uptr(20)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate 20")
}
