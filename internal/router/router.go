package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/provpass/internal/config"
	"github.com/stemsi/provpass/internal/handler"
	"github.com/stemsi/provpass/internal/middleware"
	"github.com/stemsi/provpass/internal/response"
	"github.com/stemsi/provpass/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Pass    *handler.PassHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	practiceService *service.PracticeService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.Brotli(middleware.DefaultBrotliMinLength), middleware.NoStore())

	// ─── 1. Sessions (exam screen) ─────────────────────────────────────
	api.POST("/sessions/open", handlers.Session.OpenSession)

	sessions := api.Group("/sessions/:session_id")
	sessions.Use(middleware.RequireLiveSession(practiceService))
	{
		sessions.GET("", handlers.Session.GetSession)
		sessions.POST("/answers", handlers.Session.RecordAnswer)
		sessions.POST("/advance", handlers.Session.Advance)
		sessions.POST("/complete", handlers.Session.Complete)
		sessions.POST("/close", handlers.Session.Close)
	}

	// ─── 2. Passes (listing and restart) ───────────────────────────────
	passes := api.Group("/passes")
	{
		passes.GET("/resumable", handlers.Pass.Resumable)
		passes.GET("/open", handlers.Pass.OpenSession)
		passes.GET("/sessions", handlers.Pass.ListSessions)
		passes.POST("/restart", handlers.Pass.Restart)
		passes.POST("/restart-all", handlers.Pass.RestartAll)
	}

	// ─── 3. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLiveSession(practiceService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
