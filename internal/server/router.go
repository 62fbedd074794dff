package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/t-curity/tcurity-backend/internal/auth"
	"github.com/t-curity/tcurity-backend/internal/handler"
	"github.com/t-curity/tcurity-backend/internal/hub"
	"github.com/t-curity/tcurity-backend/internal/middleware"
	"github.com/t-curity/tcurity-backend/internal/store"
	"github.com/t-curity/tcurity-backend/internal/verify"
)

type Deps struct {
	Store        *store.Store
	Orchestrator *verify.Orchestrator
	Hub          *hub.Hub
	TokenConfig  auth.TokenConfig

	// ClientAllowlist admits only the listed client ids; empty admits all.
	ClientAllowlist []string

	// InitRateLimit/InitRateWindow bound session creation per client.
	// Zero values fall back to 30 per minute.
	InitRateLimit  int
	InitRateWindow time.Duration
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	eventHub := deps.Hub
	if eventHub == nil {
		eventHub = hub.New()
	}

	sessionHandler := handler.NewSessionHandler(deps.Store, eventHub)
	captchaHandler := handler.NewCaptchaHandler(deps.Orchestrator, eventHub)
	eventsHandler := handler.NewEventsHandler(eventHub, deps.TokenConfig)

	initLimit, initWindow := deps.InitRateLimit, deps.InitRateWindow
	if initLimit <= 0 {
		initLimit = 30
	}
	if initWindow <= 0 {
		initWindow = time.Minute
	}
	initLimiter := middleware.NewRateLimiter(initLimit, initWindow)

	api := r.Group("/api/v1")
	// admission runs first so the limiter can key on the client id
	api.POST("/session/init",
		middleware.RequireClientID(deps.ClientAllowlist),
		middleware.RateLimitMiddleware(initLimiter),
		sessionHandler.Init)
	api.POST("/captcha/request", captchaHandler.Request)
	api.POST("/captcha/submit", captchaHandler.Submit)
	api.POST("/captcha/verify", captchaHandler.Verify)
	api.GET("/events", eventsHandler.Serve)

	return r
}
