// Package router wires HTTP routes to their handlers.  Registration is
// split by surface: the public voting endpoints, operator
// authentication, and the JWT-protected admin API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/handler"
	"github.com/iliyamo/school-election/internal/middleware"
)

// RegisterRoutes mounts the unauthenticated service endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterVoting mounts the anonymous voter endpoints.  No JWT here:
// voters authenticate with their one-time token inside the body.
func RegisterVoting(e *echo.Echo, h *handler.VotingHandler) {
	g := e.Group("/v1/election")
	g.POST("/validate-token", h.ValidateToken)
	g.POST("/submit-vote", h.SubmitVote)
}

// RegisterAuth mounts operator login and the authenticated profile
// endpoint.
func RegisterAuth(e *echo.Echo, h *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", h.Login)
	e.GET("/v1/me", h.Me, middleware.JWTAuth(jwtSecret))
}

// AdminHandlers bundles the handlers behind the admin API so the
// registration signature stays readable.
type AdminHandlers struct {
	Auth      *handler.AuthHandler
	Process   *handler.ProcessHandler
	Census    *handler.CensusHandler
	Token     *handler.TokenHandler
	Scrutiny  *handler.ScrutinyHandler
	Dashboard *handler.DashboardHandler
}

// RegisterAdmin mounts the administrative API under /v1/admin.  Every
// route requires a valid operator JWT; mutating routes additionally
// require the ADMIN role, while observers may read scrutiny and the
// dashboard.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret))

	admin := g.Group("", middleware.RequireRole("ADMIN"))
	admin.POST("/users", h.Auth.Register)

	admin.POST("/processes", h.Process.Create)
	admin.POST("/processes/:id/roles", h.Process.AddRole)
	admin.POST("/roles/:roleID/candidates", h.Process.AddCandidate)
	admin.POST("/processes/:id/open", h.Process.Open)
	admin.POST("/processes/:id/close", h.Process.Close)

	admin.POST("/census/sync", h.Census.Sync)
	admin.POST("/processes/:id/exclusions", h.Census.Exclude)
	admin.DELETE("/processes/:id/exclusions/:memberID", h.Census.Include)

	admin.POST("/processes/:id/tokens", h.Token.Issue)
	admin.POST("/processes/:id/tokens/sweep", h.Token.Sweep)
	admin.POST("/tokens/reset", h.Token.Reset)
	admin.POST("/tokens/revoke", h.Token.Revoke)

	admin.GET("/processes/:id/scrutiny/export", h.Scrutiny.Export)

	viewer := g.Group("", middleware.RequireRole("ADMIN", "OBSERVER"))
	viewer.GET("/processes/:id", h.Process.Get)
	viewer.GET("/processes/:id/scrutiny", h.Scrutiny.Summary)
	viewer.GET("/processes/:id/dashboard", h.Dashboard.Snapshot)
	viewer.GET("/processes/:id/dashboard/stream", h.Dashboard.Stream)
}
