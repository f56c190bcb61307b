package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/school-election/internal/config"
	"github.com/iliyamo/school-election/internal/repository"
)

func newVotingHandler(t *testing.T) (*VotingHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{TokenSalt: "salt", SessionTTLMin: 5, StrictIdentity: true}
	h := NewVotingHandler(cfg,
		repository.NewProcessRepo(db),
		repository.NewCensusRepo(db),
		repository.NewVoterTokenRepo(db),
		repository.NewSessionRepo(db),
		repository.NewVoteRepo(db))
	return h, mock
}

func jsonContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func sessionColumns() []string {
	return []string{"id", "token_id", "process_id", "expires_at", "consumed_at", "created_at"}
}

func TestSubmitVoteDuplicateReplaysWithoutWriting(t *testing.T) {
	h, mock := newVotingHandler(t)
	now := time.Now().UTC()

	// The session is already consumed: the handler must read the
	// recorded roles, commit to release the lock and write nothing.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vote_access_sessions WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow("sess-1", 5, 7, now.Add(time.Minute), now.Add(-time.Minute), now.Add(-2*time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role_id FROM vote_records WHERE session_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	c, rec := jsonContext(t, `{"access_session_id":"sess-1","selections":[{"role_id":1,"candidate_id":10}]}`)
	require.NoError(t, h.SubmitVote(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["already_submitted"])
	assert.Equal(t, float64(2), body["saved_votes"], "replay reports the original outcome, not the retry payload")
	// No INSERT, no consumed_at update, no token transition were expected;
	// an unexpected write would have failed the matching above.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitVoteFirstSubmissionRecordsOnce(t *testing.T) {
	h, mock := newVotingHandler(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vote_access_sessions WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow("sess-1", 5, 7, now.Add(time.Minute), nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM election_processes WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "opens_at", "closes_at", "created_at", "updated_at"}).
			AddRow(7, "Elecciones 2026", "OPEN", nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM election_roles WHERE process_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "process_id", "code", "title", "display_order", "created_at"}).
			AddRow(1, 7, "PERSONERO", "Personero", 1, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM election_candidates c")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role_id", "name", "number", "is_active", "census_member_id", "created_at"}).
			AddRow(10, 1, "Luis", 1, true, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vote_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vote_access_sessions SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE voter_tokens SET status = ?, used_at = ? WHERE id = ? AND status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := jsonContext(t, `{"access_session_id":"sess-1","selections":[{"role_id":1,"candidate_id":10}]}`)
	require.NoError(t, h.SubmitVote(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["already_submitted"])
	assert.Equal(t, float64(1), body["saved_votes"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitVoteTokenRaceRollsBackBallot(t *testing.T) {
	h, mock := newVotingHandler(t)
	now := time.Now().UTC()

	// Another session of the same token was consumed first: the guarded
	// token UPDATE touches zero rows and the whole ballot rolls back.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vote_access_sessions WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow("sess-2", 5, 7, now.Add(time.Minute), nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM election_processes WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "opens_at", "closes_at", "created_at", "updated_at"}).
			AddRow(7, "Elecciones 2026", "OPEN", nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM election_roles WHERE process_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "process_id", "code", "title", "display_order", "created_at"}).
			AddRow(1, 7, "PERSONERO", "Personero", 1, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM election_candidates c")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role_id", "name", "number", "is_active", "census_member_id", "created_at"}).
			AddRow(10, 1, "Luis", 1, true, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vote_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vote_access_sessions SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE voter_tokens SET status = ?, used_at = ? WHERE id = ? AND status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	c, rec := jsonContext(t, `{"access_session_id":"sess-2","selections":[{"role_id":1,"candidate_id":10}]}`)
	require.NoError(t, h.SubmitVote(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "used", body["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitVoteExpiredSessionGone(t *testing.T) {
	h, mock := newVotingHandler(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vote_access_sessions WHERE id = ? FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow("sess-3", 5, 7, now.Add(-time.Minute), nil, now.Add(-10*time.Minute)))
	mock.ExpectRollback()

	c, rec := jsonContext(t, `{"access_session_id":"sess-3","selections":[{"role_id":1,"is_blank":true}]}`)
	require.NoError(t, h.SubmitVote(c))

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func tokenColumns() []string {
	return []string{"id", "process_id", "token_hash", "prefix", "status",
		"external_id", "document", "expires_at", "used_at", "created_at"}
}

func TestValidateTokenPastExpiryFlipsStatusAndReturnsGone(t *testing.T) {
	h, mock := newVotingHandler(t)
	now := time.Now().UTC()

	// Stored as ACTIVE but past expires_at: validation must write the
	// EXPIRED transition and answer 410.
	mock.ExpectQuery(regexp.QuoteMeta("FROM voter_tokens WHERE token_hash = ?")).
		WillReturnRows(sqlmock.NewRows(tokenColumns()).
			AddRow(5, 7, "hash", "abcdef01", "ACTIVE", "s1", "doc-1", now.Add(-time.Hour), nil, now.Add(-48*time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE voter_tokens SET status = ? WHERE id = ? AND status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := jsonContext(t, `{"token":"whatever"}`)
	require.NoError(t, h.ValidateToken(c))

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateTokenUsedForbidden(t *testing.T) {
	h, mock := newVotingHandler(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM voter_tokens WHERE token_hash = ?")).
		WillReturnRows(sqlmock.NewRows(tokenColumns()).
			AddRow(5, 7, "hash", "abcdef01", "USED", "s1", "doc-1", now.Add(time.Hour), now.Add(-time.Minute), now))

	c, rec := jsonContext(t, `{"token":"whatever"}`)
	require.NoError(t, h.ValidateToken(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "used", decodeBody(t, rec)["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
