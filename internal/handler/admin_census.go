package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/census"
	"github.com/iliyamo/school-election/internal/repository"
)

// CensusHandler serves census administration: snapshot sync against the
// school management system and per-process eligibility exclusions.
type CensusHandler struct {
	Census *repository.CensusRepo
	Procs  *repository.ProcessRepo
}

func NewCensusHandler(cr *repository.CensusRepo, pr *repository.ProcessRepo) *CensusHandler {
	if cr == nil || pr == nil {
		panic("NewCensusHandler: nil dependency")
	}
	return &CensusHandler{Census: cr, Procs: pr}
}

type syncReq struct {
	Members           []census.Record `json:"members"`
	DeactivateMissing bool            `json:"deactivate_missing"`
}

// Sync diffs a full census snapshot against the stored members and
// applies the resulting plan in one transaction.  The response reports
// how many members were created, updated, reactivated or deactivated;
// a snapshot that matches the stored state applies zero changes.
func (h *CensusHandler) Sync(c echo.Context) error {
	var req syncReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Members) == 0 && !req.DeactivateMissing {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "members required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	existing, err := h.Census.AllMembers(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load census failed"})
	}
	plan := census.Plan(existing, req.Members, req.DeactivateMissing)
	counts, err := h.Census.ApplySync(ctx, plan)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "apply sync failed"})
	}

	auditAction(c, "census.sync", "census", "", "", http.StatusOK)
	return c.JSON(http.StatusOK, echo.Map{
		"snapshot_size": len(req.Members),
		"applied":       len(plan),
		"counts":        counts,
	})
}

type exclusionReq struct {
	MemberID uint64 `json:"member_id"`
	Reason   string `json:"reason"`
}

// Exclude removes one member from eligibility for one process.  A
// reason is mandatory; exclusions are audited events, not silent edits.
func (h *CensusHandler) Exclude(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	var req exclusionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.MemberID == 0 || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "member_id and reason required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Procs.GetByID(ctx, processID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if _, err := h.Census.GetByID(ctx, req.MemberID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "census member not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Census.Exclude(ctx, processID, req.MemberID, req.Reason); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "exclude failed"})
	}

	auditAction(c, "census.exclude", "census_member", strconv.FormatUint(req.MemberID, 10), req.Reason, http.StatusOK)
	return c.JSON(http.StatusOK, echo.Map{
		"process_id": processID,
		"member_id":  req.MemberID,
		"excluded":   true,
	})
}

// Include lifts a previously applied exclusion.  Lifting a non-existent
// exclusion is a no-op and still returns 204.
func (h *CensusHandler) Include(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	memberID, err := strconv.ParseUint(c.Param("memberID"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Census.Include(ctx, processID, memberID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "include failed"})
	}
	auditAction(c, "census.include", "census_member", strconv.FormatUint(memberID, 10), "", http.StatusNoContent)
	return c.NoContent(http.StatusNoContent)
}
