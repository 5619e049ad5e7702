// Package http wires the REST API onto a gin engine.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shadowrank/internal/http/handlers"
	"shadowrank/internal/http/middleware"
	"shadowrank/internal/service"
)

// NewRouter builds the gin engine with all middleware and routes.
func NewRouter(h *handlers.Handler, health *handlers.HealthHandler, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	RegisterRoutes(r, h, health, limiter)
	return r
}

// RegisterRoutes mounts the API, health and metrics endpoints on r.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, limiter *middleware.RateLimiter) {
	// Health checks and metrics (no auth, no rate limiting)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.JWT(h.Tokens)

	v1 := r.Group("/api/v1")

	// Profiles
	v1.POST("/profiles", limiter.Handler("register"), h.Register)
	v1.GET("/profiles/:id", h.Profile)
	v1.GET("/me", auth, h.Me)
	v1.GET("/me/board", auth, h.Board)
	v1.GET("/me/dashboard", auth, h.Dashboard)
	v1.PUT("/me/timezone", auth, h.SetTimezone)

	// Quests
	quests := v1.Group("/quests")
	quests.Use(auth)
	{
		quests.GET("", h.ListQuests)
		quests.POST("", h.CreateQuest)
		quests.DELETE("/:id", h.DeleteQuest)
		quests.POST("/:id/complete", limiter.Handler("complete"), h.CompleteQuest)
	}

	// Leaderboard
	v1.GET("/leaderboard", h.GetLeaderboard)
}

// ensure the token service satisfies the middleware's parser
var _ middleware.TokenParser = (*service.TokenService)(nil)
