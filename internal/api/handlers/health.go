package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projectapex/sportsdata/internal/services"
	"github.com/projectapex/sportsdata/pkg/database"
)

type HealthHandler struct {
	db      *database.DB
	cache   *services.CacheService
	started time.Time
}

func NewHealthHandler(db *database.DB, cache *services.CacheService) *HealthHandler {
	return &HealthHandler{
		db:      db,
		cache:   cache,
		started: time.Now(),
	}
}

// GetHealth always returns 200 while the process is up. Liveness probe.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "apex-sportsdata",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"time":    time.Now().UTC(),
	})
}

// GetReady returns 200 only when the database answers. The cache tier
// is reported but never fails readiness, the service degrades to its
// memory tier without it.
func (h *HealthHandler) GetReady(c *gin.Context) {
	status := gin.H{"status": "ready"}

	if h.cache != nil {
		stats := h.cache.Stats(c.Request.Context())
		status["cache_backend"] = stats.Backend
		status["cache_backend_up"] = stats.BackendUp
	}

	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			status["status"] = "not_ready"
			status["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}

	c.JSON(http.StatusOK, status)
}
