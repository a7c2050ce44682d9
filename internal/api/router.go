package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/projectapex/sportsdata/internal/api/handlers"
	"github.com/projectapex/sportsdata/internal/models"
	"github.com/projectapex/sportsdata/internal/services"
	"github.com/projectapex/sportsdata/pkg/database"
)

// Deps is everything the HTTP layer needs. Store, Scheduler and Hub may
// be nil when their feature is disabled.
type Deps struct {
	Factory   *services.ServiceFactory
	Limiter   *services.RateLimiter
	Breakers  *services.BreakerGroup
	Scheduler *services.RefreshScheduler
	Store     *models.Store
	Hub       *services.Hub
	Cache     *services.CacheService
	DB        *database.DB
	WSOrigins []string
}

// SetupRoutes registers every endpoint on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache)
	sportsHandler := handlers.NewSportsHandler(deps.Factory)
	adminHandler := handlers.NewAdminHandler(deps.Factory, deps.Limiter, deps.Breakers, deps.Scheduler, deps.Hub)

	// Probes and metrics at the root, outside the API version
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Hub != nil {
		wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.WSOrigins)
		router.GET("/ws", wsHandler.HandleWebSocket)
	}

	v1 := router.Group("/api/v1")

	// Live data
	v1.GET("/sports", sportsHandler.ListServices)
	v1.GET("/sports/:sport/:league/games", sportsHandler.GetGames)
	v1.GET("/sports/:sport/:league/teams", sportsHandler.GetTeams)
	v1.GET("/sports/:sport/:league/players", sportsHandler.GetPlayers)
	v1.GET("/sports/:sport/:league/odds", sportsHandler.GetOdds)

	// Stored history
	if deps.Store != nil {
		historyHandler := handlers.NewHistoryHandler(deps.Store)
		v1.GET("/history/:sport/:league/games", historyHandler.GetGames)
		v1.GET("/history/:sport/:league/teams", historyHandler.GetTeams)
		v1.GET("/history/odds", historyHandler.GetOdds)
		v1.GET("/history/activity", historyHandler.GetActivity)
	}

	// Operations
	admin := v1.Group("/admin")
	{
		admin.GET("/stats", adminHandler.GetStats)
		admin.GET("/services", adminHandler.HealthCheckAll)
		admin.POST("/cache/clear", adminHandler.ClearAllCaches)
		admin.POST("/services/:sport/:league/cache/clear", adminHandler.ClearServiceCache)
		admin.GET("/ratelimits", adminHandler.GetRateLimits)
		admin.GET("/breakers", adminHandler.GetBreakers)
		admin.GET("/jobs", adminHandler.GetJobs)
		admin.POST("/jobs/:name/trigger", adminHandler.TriggerJob)
		admin.POST("/jobs/:name/enable", adminHandler.EnableJob)
		admin.POST("/jobs/:name/disable", adminHandler.DisableJob)
	}
}
