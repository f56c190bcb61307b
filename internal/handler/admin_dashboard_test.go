package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/school-election/internal/config"
)

func dashboardQueryContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestDashboardParamsDefaults(t *testing.T) {
	h := &DashboardHandler{Cfg: config.DashboardConfig{
		DefaultWindow: 60, DefaultSeries: 60, DefaultBlankPct: 0.3,
		DefaultInactive: 15, DefaultSpike: 50,
	}}

	p := h.params(dashboardQueryContext("/"), 7)
	assert.Equal(t, uint64(7), p.ProcessID)
	assert.Equal(t, 60, p.WindowMinutes)
	assert.Equal(t, 0.3, p.BlankRateThreshold)
	assert.True(t, p.IncludeRanking)
	assert.Zero(t, p.Since)
}

func TestDashboardParamsIncludeRanking(t *testing.T) {
	h := &DashboardHandler{Cfg: config.DashboardConfig{DefaultWindow: 60, DefaultSeries: 60}}

	p := h.params(dashboardQueryContext("/?include_ranking=false"), 7)
	assert.False(t, p.IncludeRanking)

	p = h.params(dashboardQueryContext("/?include_ranking=true"), 7)
	assert.True(t, p.IncludeRanking)

	// Legacy alias still honored, canonical name wins when both appear.
	p = h.params(dashboardQueryContext("/?ranking=false"), 7)
	assert.False(t, p.IncludeRanking)

	p = h.params(dashboardQueryContext("/?include_ranking=true&ranking=false"), 7)
	assert.True(t, p.IncludeRanking)
}

func TestDashboardParamsSinceCursor(t *testing.T) {
	h := &DashboardHandler{Cfg: config.DashboardConfig{DefaultWindow: 60, DefaultSeries: 60}}

	p := h.params(dashboardQueryContext("/?since=42&window_minutes=30"), 7)
	assert.Equal(t, uint64(42), p.Since)
	assert.Equal(t, 30, p.WindowMinutes)
}
