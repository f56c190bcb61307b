package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/config"
	"github.com/iliyamo/school-election/internal/model"
	"github.com/iliyamo/school-election/internal/repository"
	"github.com/iliyamo/school-election/internal/utils"
)

// VotingHandler serves the two anonymous voter endpoints: token
// validation and ballot submission.  No authentication middleware runs
// in front of these routes — the one-time token is the credential.
// Ballot submission runs inside a single transaction that locks the
// access session row, which is what linearizes concurrent submissions
// for the same session.
type VotingHandler struct {
	Cfg       config.Config
	Processes *repository.ProcessRepo
	Census    *repository.CensusRepo
	Tokens    *repository.VoterTokenRepo
	Sessions  *repository.SessionRepo
	Votes     *repository.VoteRepo
}

// NewVotingHandler constructs a VotingHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewVotingHandler(cfg config.Config, processes *repository.ProcessRepo, censusRepo *repository.CensusRepo, tokens *repository.VoterTokenRepo, sessions *repository.SessionRepo, votes *repository.VoteRepo) *VotingHandler {
	if processes == nil || censusRepo == nil || tokens == nil || sessions == nil || votes == nil {
		panic("nil repository passed to NewVotingHandler")
	}
	return &VotingHandler{
		Cfg:       cfg,
		Processes: processes,
		Census:    censusRepo,
		Tokens:    tokens,
		Sessions:  sessions,
		Votes:     votes,
	}
}

// candidateView and roleView shape the ballot returned to voters.
type candidateView struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Number uint32 `json:"number"`
}
type roleView struct {
	ID         uint64          `json:"id"`
	Code       string          `json:"code"`
	Title      string          `json:"title"`
	Candidates []candidateView `json:"candidates"`
}

// ValidateToken handles POST /v1/election/validate-token.  It checks
// the presented token against its stored state, the process window and
// the census, and on success binds it to a fresh access session.  The
// check order matters and is part of the contract: unknown (404),
// revoked (403), used (403), expired (410), process window (409),
// identity (403), census (403).  Validation never mutates the token on
// success — only the expiry transition writes, and losing that race is
// harmless.
func (h *VotingHandler) ValidateToken(c echo.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}
	ctx := c.Request().Context()
	now := time.Now().UTC()

	tok, err := h.Tokens.GetByHash(ctx, utils.HashVoterToken(h.Cfg.TokenSalt, body.Token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	switch tok.Status {
	case model.TokenRevoked:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "token revoked", "reason": "revoked"})
	case model.TokenUsed:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "token already used", "reason": "used"})
	case model.TokenExpired:
		return c.JSON(http.StatusGone, echo.Map{"error": "token expired"})
	}
	if tok.Expired(now) {
		// Opportunistic transition; the stored status catches up with
		// the wall clock the first time anyone notices.
		if err := h.Tokens.MarkExpired(ctx, tok.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		return c.JSON(http.StatusGone, echo.Map{"error": "token expired"})
	}

	process, err := h.Processes.GetByID(ctx, tok.ProcessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !process.OpenForVoting(now) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "process not open for voting"})
	}

	if tok.ExternalID == nil {
		if h.Cfg.StrictIdentity {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "token carries no identity", "reason": "identity_required"})
		}
	} else {
		eligible, err := h.Census.IsEligible(ctx, process.ID, *tok.ExternalID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if !eligible {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "voter not in census", "reason": "not_in_census"})
		}
	}

	ballot, err := h.Processes.BallotForProcess(ctx, process.ID, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	sessionID := uuid.NewString()
	expiresAt := now.Add(time.Duration(h.Cfg.SessionTTLMin) * time.Minute)
	if err := h.Sessions.Create(ctx, sessionID, tok.ID, process.ID, expiresAt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create access session"})
	}

	roles := make([]roleView, 0, len(ballot.Roles))
	for _, role := range ballot.Roles {
		rv := roleView{ID: role.ID, Code: role.Code, Title: role.Title, Candidates: []candidateView{}}
		for _, cand := range ballot.Candidates[role.ID] {
			rv.Candidates = append(rv.Candidates, candidateView{ID: cand.ID, Name: cand.Name, Number: cand.Number})
		}
		roles = append(roles, rv)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_session_id":  sessionID,
		"session_expires_at": expiresAt.Format(time.RFC3339),
		"process":            echo.Map{"id": process.ID, "name": process.Name},
		"roles":              roles,
	})
}

// Selection is one choice inside a ballot submission: a candidate or
// an explicit blank for a role.
type Selection struct {
	RoleID      uint64  `json:"role_id"`
	CandidateID *uint64 `json:"candidate_id"`
	IsBlank     bool    `json:"is_blank"`
}

// buildVoteRecords validates the selections against the ballot and
// converts them into vote rows.  Rules: every role must belong to the
// process, at most one selection per role, and each selection names
// exactly one of a candidate (active, belonging to that role) or the
// blank marker.
func buildVoteRecords(processID uint64, sessionID string, ballot *repository.Ballot, sels []Selection) ([]model.VoteRecord, error) {
	if len(sels) == 0 {
		return nil, fmt.Errorf("selections are required")
	}
	validRole := make(map[uint64]bool, len(ballot.Roles))
	for _, r := range ballot.Roles {
		validRole[r.ID] = true
	}
	candidateRole := make(map[uint64]uint64)
	for roleID, cands := range ballot.Candidates {
		for _, c := range cands {
			candidateRole[c.ID] = roleID
		}
	}

	seen := make(map[uint64]bool, len(sels))
	records := make([]model.VoteRecord, 0, len(sels))
	for _, sel := range sels {
		if !validRole[sel.RoleID] {
			return nil, fmt.Errorf("role %d does not belong to this election", sel.RoleID)
		}
		if seen[sel.RoleID] {
			return nil, fmt.Errorf("duplicate selection for role %d", sel.RoleID)
		}
		seen[sel.RoleID] = true

		switch {
		case sel.IsBlank && sel.CandidateID != nil:
			return nil, fmt.Errorf("role %d: choose a candidate or blank, not both", sel.RoleID)
		case !sel.IsBlank && sel.CandidateID == nil:
			return nil, fmt.Errorf("role %d: a candidate or the blank marker is required", sel.RoleID)
		case sel.IsBlank:
			records = append(records, model.VoteRecord{
				ProcessID: processID, RoleID: sel.RoleID, SessionID: sessionID, IsBlank: true,
			})
		default:
			if candidateRole[*sel.CandidateID] != sel.RoleID {
				return nil, fmt.Errorf("candidate %d is not an active candidate for role %d", *sel.CandidateID, sel.RoleID)
			}
			id := *sel.CandidateID
			records = append(records, model.VoteRecord{
				ProcessID: processID, RoleID: sel.RoleID, SessionID: sessionID, CandidateID: &id,
			})
		}
	}
	return records, nil
}

// SubmitVote handles POST /v1/election/submit-vote.  It records the
// votes of one access session exactly once.  The session row is read
// with a row lock; a concurrent submission for the same session blocks
// on that lock and then observes consumed_at already set, taking the
// idempotent replay path.  The operation is therefore safe to retry
// after a network failure without double counting.
func (h *VotingHandler) SubmitVote(c echo.Context) error {
	var body struct {
		AccessSessionID string      `json:"access_session_id"`
		Selections      []Selection `json:"selections"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.AccessSessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "access_session_id is required"})
	}
	ctx := c.Request().Context()
	now := time.Now().UTC()

	tx, err := h.Processes.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sess, err := h.Sessions.GetForUpdateTx(ctx, tx, body.AccessSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "access session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if sess.Consumed() {
		// Duplicate submission: replay the original outcome, write
		// nothing.  The commit only releases the row lock.
		roleIDs, err := h.Votes.RoleIDsForSessionTx(ctx, tx, sess.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if err := tx.Commit(); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
		}
		committed = true
		return c.JSON(http.StatusOK, echo.Map{
			"process_id":        sess.ProcessID,
			"saved_votes":       len(roleIDs),
			"already_submitted": true,
		})
	}

	if sess.Expired(now) {
		return c.JSON(http.StatusGone, echo.Map{"error": "access session expired"})
	}

	process, err := h.Processes.GetByIDTx(ctx, tx, sess.ProcessID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !process.OpenForVoting(now) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "process not open for voting"})
	}

	ballot, err := h.Processes.BallotForProcessTx(ctx, tx, sess.ProcessID, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	records, verr := buildVoteRecords(sess.ProcessID, sess.ID, ballot, body.Selections)
	if verr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error()})
	}

	if err := h.Votes.InsertBulkTx(ctx, tx, records); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record votes"})
	}
	if err := h.Sessions.ConsumeTx(ctx, tx, sess.ID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to consume session"})
	}
	if err := h.Tokens.MarkUsedTx(ctx, tx, sess.TokenID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Another session of the same token was consumed first;
			// the rollback discards this ballot entirely.
			return c.JSON(http.StatusForbidden, echo.Map{"error": "token already used", "reason": "used"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark token used"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"process_id":        sess.ProcessID,
		"saved_votes":       len(records),
		"already_submitted": false,
	})
}
