package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/handler"
	"github.com/quizmine/quizmine-backend/internal/middleware"
	"github.com/quizmine/quizmine-backend/internal/response"
	"github.com/quizmine/quizmine-backend/internal/service"
	"github.com/quizmine/quizmine-backend/internal/timesync"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Test   *handler.TestHandler
	Invite *handler.InviteHandler
	Take   *handler.TakeHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	clock timesync.Clock,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Compress the larger payloads (test payloads, review bodies).
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Time probe endpoint for client clock sync. Envelope-free by design.
	router.GET("/api/v1/timesync", timesync.Handler(clock))

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(30, time.Minute)
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireTutorJWT(authService), handlers.Auth.Profile)
	}

	// ─── 2. Invite Group (Public, Rate Limited) ────────────────────────
	// Participants hold no account; the invite token is the credential.
	inviteLimiter := middleware.NewRateLimiter(60, time.Minute)
	invites := router.Group("/api/v1/invites")
	invites.Use(inviteLimiter.Middleware())
	{
		invites.POST("/process", handlers.Invite.Process)
		invites.POST("/start", handlers.Invite.Start)
		invites.POST("/grade", handlers.Invite.Grade)
		invites.GET("/:invite/result", handlers.Invite.Result)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/take/:invite", handlers.Take.TakeTestStream)
	}

	// ─── 4. Tutor Group (JWT) ──────────────────────────────────────────
	tutorAPI := router.Group("/api/v1/tests")
	tutorAPI.Use(middleware.RequireTutorJWT(authService))
	{
		tutorAPI.POST("", handlers.Test.Create)
		tutorAPI.GET("", handlers.Test.List)
		tutorAPI.GET("/:test_id", handlers.Test.Get)
		tutorAPI.DELETE("/:test_id", handlers.Test.Delete)
		tutorAPI.POST("/:test_id/participants", handlers.Test.AddParticipants)
		tutorAPI.GET("/:test_id/participants", handlers.Test.ListParticipants)
		tutorAPI.POST("/:test_id/participants/resend", handlers.Test.ResendInvites)
		tutorAPI.GET("/:test_id/results", handlers.Test.ListResults)
		tutorAPI.POST("/:test_id/results/send", handlers.Test.SendResults)
		tutorAPI.GET("/:test_id/stats", handlers.Test.Stats)
	}

	return router
}
