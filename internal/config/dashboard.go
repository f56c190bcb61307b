package config

import (
	"os"
	"strconv"
	"time"
)

// DashboardConfig defines defaults and bounds for the live dashboard.
// The snapshot cache is owned by the dashboard component and keyed by
// the full parameter set; CacheTTL bounds how stale a served snapshot
// may be.  When CacheTTL is zero or no Redis client is available,
// snapshots are recomputed on every request.
type DashboardConfig struct {
	CacheTTL        time.Duration // lifetime of cached snapshots
	DefaultWindow   int           // default window_minutes
	MaxWindow       int           // upper bound for window_minutes
	DefaultSeries   int           // default series_limit
	MinSeries       int           // smallest accepted series_limit
	DefaultBlankPct float64       // default blank_rate_threshold (fraction)
	DefaultInactive int           // default inactivity_minutes
	DefaultSpike    int           // default spike_threshold
}

// LoadDashboardConfig reads environment variables to build a
// DashboardConfig.  Defaults are used when variables are not set.
func LoadDashboardConfig() DashboardConfig {
	return DashboardConfig{
		CacheTTL:        parseDur(getenv("DASHBOARD_CACHE_TTL", "10s")),
		DefaultWindow:   atoiDefault(getenv("DASHBOARD_WINDOW_MIN", "60"), 60),
		MaxWindow:       atoiDefault(getenv("DASHBOARD_MAX_WINDOW_MIN", "1440"), 1440),
		DefaultSeries:   atoiDefault(getenv("DASHBOARD_SERIES_LIMIT", "60"), 60),
		MinSeries:       atoiDefault(getenv("DASHBOARD_MIN_SERIES_LIMIT", "5"), 5),
		DefaultBlankPct: atofDefault(getenv("DASHBOARD_BLANK_RATE_THRESHOLD", "0.3"), 0.3),
		DefaultInactive: atoiDefault(getenv("DASHBOARD_INACTIVITY_MIN", "15"), 15),
		DefaultSpike:    atoiDefault(getenv("DASHBOARD_SPIKE_THRESHOLD", "50"), 50),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func atofDefault(s string, def float64) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
