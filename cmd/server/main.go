package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/school-election/internal/audit"
	"github.com/iliyamo/school-election/internal/config"
	"github.com/iliyamo/school-election/internal/dashboard"
	"github.com/iliyamo/school-election/internal/database"
	"github.com/iliyamo/school-election/internal/handler"
	"github.com/iliyamo/school-election/internal/repository"
	"github.com/iliyamo/school-election/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()
	dashCfg := config.LoadDashboardConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; dashboard snapshots will not be cached")
	}

	processes := repository.NewProcessRepo(db)
	censusRepo := repository.NewCensusRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewVoterTokenRepo(db)
	sessions := repository.NewSessionRepo(db)
	votes := repository.NewVoteRepo(db)

	// The audit consumer tails the durable queue and writes the local
	// audit log.  It reconnects on its own; a broker outage only delays
	// log lines, never requests.
	go func() {
		if err := audit.StartConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e)
	router.RegisterVoting(e, handler.NewVotingHandler(cfg, processes, censusRepo, tokens, sessions, votes))
	authHandler := handler.NewAuthHandler(cfg, users)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, router.AdminHandlers{
		Auth:      authHandler,
		Process:   handler.NewProcessHandler(processes, censusRepo, votes),
		Census:    handler.NewCensusHandler(censusRepo, processes),
		Token:     handler.NewTokenHandler(cfg, tokens, censusRepo, processes),
		Scrutiny:  handler.NewScrutinyHandler(processes, votes),
		Dashboard: handler.NewDashboardHandler(dashCfg, dashboard.NewCache(rdb, dashCfg.CacheTTL), processes, censusRepo, sessions, votes),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
