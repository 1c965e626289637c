package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/untis-notifier/internal/config"
	"github.com/stemsi/untis-notifier/internal/handler"
	"github.com/stemsi/untis-notifier/internal/middleware"
	"github.com/stemsi/untis-notifier/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Status   *handler.StatusHandler
	Calendar *handler.CalendarHandler
}

// SetupRouter configures the status API.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.NoStore())
	if cfg.StatusRateLimit > 0 {
		router.Use(middleware.NewRateLimiter(cfg.StatusRateLimit, time.Minute).Middleware())
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", handlers.Status.Status)
		if handlers.Calendar != nil {
			v1.GET("/cancellations.ics", handlers.Calendar.Cancellations)
		}
	}

	return router
}
