package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/t-curity/tcurity-backend/internal/auth"
	"github.com/t-curity/tcurity-backend/internal/challenge"
	"github.com/t-curity/tcurity-backend/internal/config"
	"github.com/t-curity/tcurity-backend/internal/hub"
	"github.com/t-curity/tcurity-backend/internal/oracle"
	"github.com/t-curity/tcurity-backend/internal/server"
	"github.com/t-curity/tcurity-backend/internal/store"
	"github.com/t-curity/tcurity-backend/internal/verify"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)
	st := store.NewWithOptions(store.Options{TTL: cfg.SessionTTL})

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "tcurity-backend",
	}

	orchestrator := &verify.Orchestrator{
		Store:           st,
		PhaseA:          &challenge.PhaseAGenerator{TimeLimit: int(cfg.PhaseATimeLimit.Seconds())},
		PhaseB:          challenge.NewPhaseBGenerator(),
		Oracle:          oracle.NewClient(cfg.OracleURL, cfg.OracleTimeout),
		PhaseBTimeLimit: cfg.PhaseBTimeLimit,
		OrderedAnswers:  cfg.OrderedAnswers,
		TokenConfig:     tokenCfg,
		Now:             func() int64 { return time.Now().UnixMilli() },
	}

	router := server.NewRouter(server.Deps{
		Store:           st,
		Orchestrator:    orchestrator,
		Hub:             hub.New(),
		TokenConfig:     tokenCfg,
		ClientAllowlist: cfg.ClientAllowlist,
		InitRateLimit:   cfg.InitRateLimit,
		InitRateWindow:  cfg.InitRateWindow,
	})

	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
