package census

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-election/internal/model"
)

func member(id uint64, ext, name string, active bool) model.CensusMember {
	return model.CensusMember{
		ID:         id,
		ExternalID: ext,
		Document:   "doc-" + ext,
		FullName:   name,
		Grade:      "10",
		Shift:      "AM",
		IsActive:   active,
	}
}

func record(ext, name string) Record {
	return Record{ExternalID: ext, Document: "doc-" + ext, FullName: name, Grade: "10", Shift: "AM"}
}

func TestPlanCreatesUnknownMembers(t *testing.T) {
	changes := Plan(nil, []Record{record("s1", "Ana"), record("s2", "Luis")}, false)

	require.Len(t, changes, 2)
	assert.Equal(t, model.CensusEventCreate, changes[0].Kind)
	assert.Equal(t, "s1", changes[0].Record.ExternalID)
	assert.Equal(t, model.CensusEventCreate, changes[1].Kind)
}

func TestPlanMatchingRecordProducesNoChange(t *testing.T) {
	existing := []model.CensusMember{member(1, "s1", "Ana", true)}
	changes := Plan(existing, []Record{record("s1", "Ana")}, false)
	assert.Empty(t, changes)
}

func TestPlanClassifiesUpdateAndReactivate(t *testing.T) {
	existing := []model.CensusMember{
		member(1, "s1", "Ana", true),
		member(2, "s2", "Luis", false),
	}
	changes := Plan(existing, []Record{record("s1", "Ana Maria"), record("s2", "Luis")}, false)

	require.Len(t, changes, 2)
	assert.Equal(t, model.CensusEventUpdate, changes[0].Kind)
	assert.Equal(t, uint64(1), changes[0].MemberID)
	assert.Contains(t, changes[0].Detail, "name")

	assert.Equal(t, model.CensusEventReactivate, changes[1].Kind)
	assert.Equal(t, uint64(2), changes[1].MemberID)
}

func TestPlanDeactivateMissing(t *testing.T) {
	existing := []model.CensusMember{
		member(1, "s1", "Ana", true),
		member(2, "s2", "Luis", true),
		member(3, "s3", "Eva", false), // already inactive, must not reappear
	}
	changes := Plan(existing, []Record{record("s1", "Ana")}, true)

	require.Len(t, changes, 1)
	assert.Equal(t, model.CensusEventDeactivate, changes[0].Kind)
	assert.Equal(t, uint64(2), changes[0].MemberID)
	assert.Equal(t, "s2", changes[0].Record.ExternalID)
}

func TestPlanMissingMembersKeptWithoutFlag(t *testing.T) {
	existing := []model.CensusMember{member(1, "s1", "Ana", true)}
	changes := Plan(existing, []Record{record("s2", "Luis")}, false)

	require.Len(t, changes, 1)
	assert.Equal(t, model.CensusEventCreate, changes[0].Kind)
}

func TestPlanSkipsBlankAndDuplicateExternalIDs(t *testing.T) {
	snapshot := []Record{
		{ExternalID: "  "},
		record("s1", "Ana"),
		record("s1", "Ana Duplicada"),
	}
	changes := Plan(nil, snapshot, false)

	require.Len(t, changes, 1)
	assert.Equal(t, "Ana", changes[0].Record.FullName)
}

func TestPlanTrimsExternalID(t *testing.T) {
	existing := []model.CensusMember{member(1, "s1", "Ana", true)}
	rec := record("s1", "Ana")
	rec.ExternalID = " s1 "
	changes := Plan(existing, []Record{rec}, true)

	// Trimmed id matches the existing member, so nothing changes and
	// the member is not deactivated as missing.
	assert.Empty(t, changes)
}

func TestFieldDiffListsEveryChangedField(t *testing.T) {
	cur := member(1, "s1", "Ana", true)
	rec := Record{ExternalID: "s1", Document: "new-doc", FullName: "Ana", Grade: "11", Shift: "PM"}

	diff := fieldDiff(cur, rec)
	assert.Contains(t, diff, "document")
	assert.Contains(t, diff, "grade")
	assert.Contains(t, diff, "shift")
	assert.NotContains(t, diff, "name")
}
