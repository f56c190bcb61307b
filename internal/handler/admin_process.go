package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/audit"
	"github.com/iliyamo/school-election/internal/model"
	"github.com/iliyamo/school-election/internal/repository"
	"github.com/iliyamo/school-election/internal/scrutiny"
)

// ProcessHandler serves the administrative lifecycle of election
// processes: creation, ballot definition and the DRAFT -> OPEN ->
// CLOSED transitions.  Closing a process triggers the post-close hook
// that publishes the final tally to the notification queue.
type ProcessHandler struct {
	Processes *repository.ProcessRepo
	Census    *repository.CensusRepo
	Votes     *repository.VoteRepo
}

func NewProcessHandler(p *repository.ProcessRepo, c *repository.CensusRepo, v *repository.VoteRepo) *ProcessHandler {
	if p == nil || c == nil || v == nil {
		panic("NewProcessHandler: nil dependency")
	}
	return &ProcessHandler{Processes: p, Census: c, Votes: v}
}

type createProcessReq struct {
	Name     string     `json:"name"`
	Status   string     `json:"status"` // accepted but ignored
	OpensAt  *time.Time `json:"opens_at"`
	ClosesAt *time.Time `json:"closes_at"`
}

// Create registers a new election process.  A status in the request
// body is ignored: processes always start in DRAFT.
func (h *ProcessHandler) Create(c echo.Context) error {
	var req createProcessReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	if req.OpensAt != nil && req.ClosesAt != nil && !req.ClosesAt.After(*req.OpensAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "closes_at must be after opens_at"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Processes.Create(ctx, req.Name, req.OpensAt, req.ClosesAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create process failed"})
	}
	auditAction(c, "process.create", "process", strconv.FormatUint(id, 10), "", http.StatusCreated)
	return c.JSON(http.StatusCreated, echo.Map{
		"id":     id,
		"name":   req.Name,
		"status": model.ProcessDraft,
	})
}

// Get returns one process with its ballot.
func (h *ProcessHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Processes.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	ballot, err := h.Processes.BallotForProcess(ctx, id, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ballot failed"})
	}

	roles := make([]echo.Map, 0, len(ballot.Roles))
	for _, role := range ballot.Roles {
		cands := make([]echo.Map, 0, len(ballot.Candidates[role.ID]))
		for _, cd := range ballot.Candidates[role.ID] {
			cands = append(cands, echo.Map{
				"id": cd.ID, "name": cd.Name, "number": cd.Number, "is_active": cd.IsActive,
			})
		}
		roles = append(roles, echo.Map{
			"id": role.ID, "code": role.Code, "title": role.Title,
			"display_order": role.DisplayOrder, "candidates": cands,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id": p.ID, "name": p.Name, "status": p.Status,
		"opens_at": p.OpensAt, "closes_at": p.ClosesAt,
		"roles": roles,
	})
}

type addRoleReq struct {
	Code         string `json:"code"`
	Title        string `json:"title"`
	DisplayOrder uint32 `json:"display_order"`
}

// AddRole attaches a contested role to a DRAFT process.
func (h *ProcessHandler) AddRole(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	var req addRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Title = strings.TrimSpace(req.Title)
	if req.Code == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code/title required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Processes.GetByID(ctx, processID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if p.Status != model.ProcessDraft {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ballot is frozen once the process leaves DRAFT"})
	}

	id, err := h.Processes.AddRole(ctx, processID, req.Code, req.Title, req.DisplayOrder)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create role failed"})
	}
	auditAction(c, "process.add_role", "role", strconv.FormatUint(id, 10), "", http.StatusCreated)
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "code": req.Code, "title": req.Title})
}

type addCandidateReq struct {
	Name           string  `json:"name"`
	Number         uint32  `json:"number"`
	CensusMemberID *uint64 `json:"census_member_id"`
}

// AddCandidate attaches a candidate to a role of a DRAFT process.
func (h *ProcessHandler) AddCandidate(c echo.Context) error {
	roleID, err := strconv.ParseUint(c.Param("roleID"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role id"})
	}
	var req addCandidateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Number == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and a positive number required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Processes.RoleByID(ctx, roleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "role not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	p, err := h.Processes.GetByID(ctx, role.ProcessID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if p.Status != model.ProcessDraft {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ballot is frozen once the process leaves DRAFT"})
	}
	if req.CensusMemberID != nil {
		if _, err := h.Census.GetByID(ctx, *req.CensusMemberID); err != nil {
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "census member not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}

	id, err := h.Processes.AddCandidate(ctx, roleID, req.Name, req.Number, req.CensusMemberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create candidate failed"})
	}
	auditAction(c, "process.add_candidate", "candidate", strconv.FormatUint(id, 10), "", http.StatusCreated)
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "name": req.Name, "number": req.Number})
}

// Open moves a DRAFT process to OPEN.  A process without at least one
// role with one active candidate cannot open.
func (h *ProcessHandler) Open(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Processes.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !p.CanTransitionTo(model.ProcessOpen) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "process is not in DRAFT"})
	}
	ballot, err := h.Processes.BallotForProcess(ctx, id, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ballot failed"})
	}
	if len(ballot.Roles) == 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot open a process without roles"})
	}
	for _, role := range ballot.Roles {
		if len(ballot.Candidates[role.ID]) == 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "role " + role.Code + " has no active candidates"})
		}
	}

	now := time.Now().UTC()
	if err := h.Processes.UpdateStatus(ctx, id, model.ProcessDraft, model.ProcessOpen, now); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "process is not in DRAFT"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transition failed"})
	}
	auditAction(c, "process.open", "process", strconv.FormatUint(id, 10), "", http.StatusOK)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": model.ProcessOpen})
}

// Close moves an OPEN process to CLOSED, computes the final tally and
// publishes it to the post-close queue along with the congratulation
// lines.  Publishing is best effort: a broker outage never reopens a
// closed election.
func (h *ProcessHandler) Close(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.Processes.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !p.CanTransitionTo(model.ProcessClosed) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "process is not OPEN"})
	}

	now := time.Now().UTC()
	if err := h.Processes.UpdateStatus(ctx, id, model.ProcessOpen, model.ProcessClosed, now); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "process is not OPEN"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transition failed"})
	}
	p.Status = model.ProcessClosed
	p.ClosesAt = &now

	// Final tally over the full historical ballot, inactive candidates
	// included, so no recorded vote is dropped from the result.
	ballot, err := h.Processes.BallotForProcess(ctx, id, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ballot failed"})
	}
	tally, err := h.Votes.Tally(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tally failed"})
	}
	summary := scrutiny.BuildSummary(p, ballot, tally)
	winners := scrutiny.Winners(summary)

	_ = audit.PublishProcessClosed(ctx, audit.ProcessClosedEvent{
		ProcessID:       id,
		ProcessName:     p.Name,
		ClosedAt:        now.Format(time.RFC3339),
		TotalVotes:      summary.TotalVotes,
		Winners:         winners,
		Congratulations: scrutiny.Congratulations(winners),
	})
	auditAction(c, "process.close", "process", strconv.FormatUint(id, 10), "", http.StatusOK)

	return c.JSON(http.StatusOK, echo.Map{
		"id":          id,
		"status":      model.ProcessClosed,
		"closed_at":   now,
		"total_votes": summary.TotalVotes,
		"winners":     winners,
	})
}
