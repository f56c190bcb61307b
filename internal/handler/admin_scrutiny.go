package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/repository"
	"github.com/iliyamo/school-election/internal/scrutiny"
)

// ScrutinyHandler serves the tally of a process as JSON and as file
// exports.  Scrutiny reads are allowed at any lifecycle state: an OPEN
// process yields a partial tally, a CLOSED one the final result.
type ScrutinyHandler struct {
	Processes *repository.ProcessRepo
	Votes     *repository.VoteRepo
}

func NewScrutinyHandler(p *repository.ProcessRepo, v *repository.VoteRepo) *ScrutinyHandler {
	if p == nil || v == nil {
		panic("NewScrutinyHandler: nil dependency")
	}
	return &ScrutinyHandler{Processes: p, Votes: v}
}

// summary loads the process, the full historical ballot and the
// aggregated tally, shared by the JSON and export endpoints.
func (h *ScrutinyHandler) summary(ctx context.Context, processID uint64) (scrutiny.Summary, error) {
	p, err := h.Processes.GetByID(ctx, processID)
	if err != nil {
		return scrutiny.Summary{}, err
	}
	ballot, err := h.Processes.BallotForProcess(ctx, processID, false)
	if err != nil {
		return scrutiny.Summary{}, err
	}
	tally, err := h.Votes.Tally(ctx, processID)
	if err != nil {
		return scrutiny.Summary{}, err
	}
	return scrutiny.BuildSummary(p, ballot, tally), nil
}

// Summary returns the per-role, per-candidate counts of a process as
// JSON, with winners attached.
func (h *ScrutinyHandler) Summary(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s, err := h.summary(ctx, processID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scrutiny failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"summary": s,
		"winners": scrutiny.Winners(s),
	})
}

// Export streams the tally as a downloadable file.  The format query
// parameter selects csv (default), xlsx or pdf.  Every export is an
// audited action.
func (h *ScrutinyHandler) Export(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	s, err := h.summary(ctx, processID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scrutiny failed"})
	}

	filename := fmt.Sprintf("scrutiny-%d.%s", processID, format)
	res := c.Response()
	res.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	switch format {
	case "csv":
		res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		res.WriteHeader(http.StatusOK)
		err = scrutiny.WriteCSV(res, s)
	case "xlsx":
		res.Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		res.WriteHeader(http.StatusOK)
		err = scrutiny.WriteXLSX(res, s)
	case "pdf":
		res.Header().Set(echo.HeaderContentType, "application/pdf")
		res.WriteHeader(http.StatusOK)
		err = scrutiny.WritePDF(res, s)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "format must be csv, xlsx or pdf"})
	}
	if err != nil {
		// Headers are already out; the broken download is all we can
		// report to the client.
		return err
	}

	auditAction(c, "scrutiny.export", "process", strconv.FormatUint(processID, 10), format, http.StatusOK)
	return nil
}
