package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/config"
	"github.com/iliyamo/school-election/internal/dashboard"
	"github.com/iliyamo/school-election/internal/repository"
)

// DashboardHandler serves the live scrutiny-room dashboard: KPI
// snapshots with cursor-based incremental polling, and a server-sent
// event stream that pushes fresh snapshots on an interval.
type DashboardHandler struct {
	Cfg       config.DashboardConfig
	Cache     *dashboard.Cache
	Processes *repository.ProcessRepo
	Census    *repository.CensusRepo
	Sessions  *repository.SessionRepo
	Votes     *repository.VoteRepo

	// StreamInterval is the delay between pushed snapshots on the SSE
	// endpoint.  Zero falls back to five seconds.
	StreamInterval time.Duration
}

func NewDashboardHandler(cfg config.DashboardConfig, cache *dashboard.Cache,
	p *repository.ProcessRepo, cr *repository.CensusRepo, s *repository.SessionRepo, v *repository.VoteRepo) *DashboardHandler {
	if p == nil || cr == nil || s == nil || v == nil {
		panic("NewDashboardHandler: nil dependency")
	}
	return &DashboardHandler{Cfg: cfg, Cache: cache, Processes: p, Census: cr, Sessions: s, Votes: v}
}

// params assembles a dashboard.Params from the query string, filling
// configured defaults for anything omitted.
func (h *DashboardHandler) params(c echo.Context, processID uint64) dashboard.Params {
	p := dashboard.Params{
		ProcessID:          processID,
		WindowMinutes:      queryInt(c, "window_minutes", h.Cfg.DefaultWindow),
		BlankRateThreshold: queryFloat(c, "blank_rate_threshold", h.Cfg.DefaultBlankPct),
		InactivityMinutes:  queryInt(c, "inactivity_minutes", h.Cfg.DefaultInactive),
		SpikeThreshold:     queryInt(c, "spike_threshold", h.Cfg.DefaultSpike),
		SeriesLimit:        queryInt(c, "series_limit", h.Cfg.DefaultSeries),
		IncludeRanking:     queryBool(c, "include_ranking", "ranking", true),
	}
	if v, err := strconv.ParseUint(c.QueryParam("since"), 10, 64); err == nil {
		p.Since = v
	}
	return p
}

// snapshot loads everything the builder needs and computes the
// snapshot, consulting the cache first.
func (h *DashboardHandler) snapshot(ctx context.Context, p dashboard.Params) (dashboard.Snapshot, error) {
	if s, ok := h.Cache.Get(ctx, p); ok {
		return s, nil
	}

	ballot, err := h.Processes.BallotForProcess(ctx, p.ProcessID, false)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	rows, err := h.Votes.ListSince(ctx, p.ProcessID, p.Since)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	censusSize, err := h.Census.CountEnabled(ctx, p.ProcessID)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	uniqueVoters, err := h.Sessions.CountConsumed(ctx, p.ProcessID)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	lastVoteAt, err := h.Votes.LastVoteAt(ctx, p.ProcessID)
	if err != nil {
		return dashboard.Snapshot{}, err
	}

	s := dashboard.BuildSnapshot(p, ballot, rows, censusSize, uniqueVoters, lastVoteAt, time.Now().UTC())
	h.Cache.Set(ctx, p, s)
	return s, nil
}

// Snapshot returns one dashboard snapshot.  Passing the cursor from a
// previous response as `since` switches the counters to delta
// semantics over the new vote records only.
func (h *DashboardHandler) Snapshot(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	p := h.params(c, processID)
	if err := p.Validate(h.Cfg); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Processes.GetByID(ctx, processID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	s, err := h.snapshot(ctx, p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "snapshot failed"})
	}
	return c.JSON(http.StatusOK, s)
}

// Stream pushes snapshots over server-sent events until the client
// disconnects.  The cursor advances with each push, so every event
// after the first carries delta counters.
func (h *DashboardHandler) Stream(c echo.Context) error {
	processID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid process id"})
	}
	p := h.params(c, processID)
	if err := p.Validate(h.Cfg); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if _, err := h.Processes.GetByID(c.Request().Context(), processID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "process not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	interval := h.StreamInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		s, err := h.snapshot(ctx, p)
		if err != nil {
			return nil
		}
		body, err := json.Marshal(s)
		if err != nil {
			return nil
		}
		if _, err := fmt.Fprintf(res, "event: snapshot\ndata: %s\n\n", body); err != nil {
			return nil
		}
		flusher.Flush()
		p.Since = s.Cursor

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}

func queryFloat(c echo.Context, name string, def float64) float64 {
	if v, err := strconv.ParseFloat(c.QueryParam(name), 64); err == nil {
		return v
	}
	return def
}

// queryBool reads a boolean query parameter under its canonical name,
// falling back to a legacy alias, then to the default.
func queryBool(c echo.Context, name, alias string, def bool) bool {
	for _, n := range []string{name, alias} {
		switch c.QueryParam(n) {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
	}
	return def
}
