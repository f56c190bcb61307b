package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/config"
	"github.com/iliyamo/school-election/internal/model"
	"github.com/iliyamo/school-election/internal/repository"
	"github.com/iliyamo/school-election/internal/utils"
)

// TokenHandler serves voter token administration: batch issuance and
// the audited contingency operations, reset and revoke.  Tokens are
// returned in plaintext exactly once at issuance; afterwards only the
// salted hash and a short prefix exist anywhere.
type TokenHandler struct {
	Cfg    config.Config
	Tokens *repository.VoterTokenRepo
	Census *repository.CensusRepo
	Procs  *repository.ProcessRepo
}

func NewTokenHandler(cfg config.Config, t *repository.VoterTokenRepo, cr *repository.CensusRepo, pr *repository.ProcessRepo) *TokenHandler {
	if t == nil || cr == nil || pr == nil {
		panic("NewTokenHandler: nil dependency")
	}
	return &TokenHandler{Cfg: cfg, Tokens: t, Census: cr, Procs: pr}
}

type issueTokensReq struct {
	TTLHours    int      `json:"ttl_hours"`
	ExternalIDs []string `json:"external_ids"`
	AllCensus   bool     `json:"all_census"`
}

type issuedToken struct {
	TokenID    uint64 `json:"token_id"`
	Token      string `json:"token"` // plaintext, shown only here
	Prefix     string `json:"prefix"`
	ExternalID string `json:"external_id,omitempty"`
	ExpiresAt  string `json:"expires_at"`
}

// Issue mints a batch of one-time voter tokens for a process, either
// for an explicit list of census members or for the whole active
// census.  Members not found or inactive are skipped and reported.
func (h *TokenHandler) Issue(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	var req issueTokensReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !req.AllCensus && len(req.ExternalIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_ids or all_census required"})
	}
	ttl := req.TTLHours
	if ttl <= 0 {
		ttl = h.Cfg.TokenTTLHours
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	p, err := h.Procs.GetByID(ctx, processID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if p.Status == model.ProcessClosed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "process is CLOSED"})
	}

	var members []model.CensusMember
	var skipped []string
	if req.AllCensus {
		members, err = h.Census.ActiveMembers(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load census failed"})
		}
	} else {
		seen := make(map[string]struct{}, len(req.ExternalIDs))
		for _, ext := range req.ExternalIDs {
			ext = strings.TrimSpace(ext)
			if ext == "" {
				continue
			}
			if _, dup := seen[ext]; dup {
				continue
			}
			seen[ext] = struct{}{}
			m, err := h.Census.GetByExternalID(ctx, ext)
			if err != nil {
				if err == sql.ErrNoRows {
					skipped = append(skipped, ext)
					continue
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
			}
			if !m.IsActive {
				skipped = append(skipped, ext)
				continue
			}
			members = append(members, m)
		}
	}

	expiresAt := time.Now().UTC().Add(time.Duration(ttl) * time.Hour)
	issued := make([]issuedToken, 0, len(members))
	for _, m := range members {
		plaintext, err := utils.NewVoterToken()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
		}
		hash := utils.HashVoterToken(h.Cfg.TokenSalt, plaintext)
		ext := m.ExternalID
		doc := m.Document
		id, err := h.Tokens.Create(ctx, processID, hash, utils.TokenPrefix(plaintext), &ext, &doc, expiresAt)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token insert failed"})
		}
		issued = append(issued, issuedToken{
			TokenID:    id,
			Token:      plaintext,
			Prefix:     utils.TokenPrefix(plaintext),
			ExternalID: m.ExternalID,
			ExpiresAt:  expiresAt.Format(time.RFC3339),
		})
	}

	auditAction(c, "token.issue", "process", strconv.FormatUint(processID, 10),
		"issued "+strconv.Itoa(len(issued)), http.StatusCreated)
	return c.JSON(http.StatusCreated, echo.Map{
		"process_id": processID,
		"issued":     issued,
		"skipped":    skipped,
		"expires_at": expiresAt,
	})
}

type resetTokenReq struct {
	Token       string `json:"token"`
	Reason      string `json:"reason"`
	ExtendHours int    `json:"extend_hours"`
}

// Reset is the contingency operation: it returns a USED, EXPIRED or
// REVOKED token to ACTIVE with a fresh expiry.  A reason is mandatory
// and recorded in the audit trail.  Votes already recorded through the
// token are never retracted.
func (h *TokenHandler) Reset(c echo.Context) error {
	var req resetTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Token == "" || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and reason required"})
	}
	ttl := req.ExtendHours
	if ttl <= 0 {
		ttl = h.Cfg.TokenTTLHours
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Tokens.GetByHash(ctx, utils.HashVoterToken(h.Cfg.TokenSalt, req.Token))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if !t.Resettable() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "token is already ACTIVE"})
	}

	newExpiry := time.Now().UTC().Add(time.Duration(ttl) * time.Hour)
	if err := h.Tokens.Reset(ctx, t.ID, newExpiry); err != nil {
		if err == repository.ErrConflict {
			// Lost a race with a concurrent reset; the guarded UPDATE is
			// the authority.
			return c.JSON(http.StatusConflict, echo.Map{"error": "token is already ACTIVE"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}

	auditAction(c, "token.reset", "voter_token", strconv.FormatUint(t.ID, 10), req.Reason, http.StatusOK)
	return c.JSON(http.StatusOK, echo.Map{
		"token_id":   t.ID,
		"prefix":     t.Prefix,
		"status":     model.TokenActive,
		"expires_at": newExpiry,
	})
}

type revokeTokenReq struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// Revoke permanently blocks a token from validating, regardless of its
// current state.  A reason is mandatory.
func (h *TokenHandler) Revoke(c echo.Context) error {
	var req revokeTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Token == "" || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and reason required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Tokens.GetByHash(ctx, utils.HashVoterToken(h.Cfg.TokenSalt, req.Token))
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Tokens.Revoke(ctx, t.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}

	auditAction(c, "token.revoke", "voter_token", strconv.FormatUint(t.ID, 10), req.Reason, http.StatusOK)
	return c.JSON(http.StatusOK, echo.Map{
		"token_id": t.ID,
		"prefix":   t.Prefix,
		"status":   model.TokenRevoked,
	})
}

// Sweep expires every overdue ACTIVE token of a process in one pass.
func (h *TokenHandler) Sweep(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	n, err := h.Tokens.SweepExpired(ctx, processID, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	auditAction(c, "token.sweep", "process", strconv.FormatUint(processID, 10),
		"expired "+strconv.FormatInt(n, 10), http.StatusOK)
	return c.JSON(http.StatusOK, echo.Map{"process_id": processID, "expired": n})
}
