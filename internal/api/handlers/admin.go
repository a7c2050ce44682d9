package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/projectapex/sportsdata/internal/services"
	"github.com/projectapex/sportsdata/pkg/utils"
)

// AdminHandler exposes operational state: per-service health, rate
// limiter usage, breaker states and the refresh jobs.
type AdminHandler struct {
	factory   *services.ServiceFactory
	limiter   *services.RateLimiter
	breakers  *services.BreakerGroup
	scheduler *services.RefreshScheduler
	hub       *services.Hub
}

func NewAdminHandler(factory *services.ServiceFactory, limiter *services.RateLimiter, breakers *services.BreakerGroup, scheduler *services.RefreshScheduler, hub *services.Hub) *AdminHandler {
	return &AdminHandler{
		factory:   factory,
		limiter:   limiter,
		breakers:  breakers,
		scheduler: scheduler,
		hub:       hub,
	}
}

// HealthCheckAll probes every instantiated sport service in sequence.
func (h *AdminHandler) HealthCheckAll(c *gin.Context) {
	utils.SendSuccess(c, h.factory.HealthCheckAll(c.Request.Context()))
}

// ClearAllCaches wipes every sport service's cache namespace.
func (h *AdminHandler) ClearAllCaches(c *gin.Context) {
	cleared := h.factory.ClearAllCaches(c.Request.Context())
	utils.SendSuccess(c, gin.H{"cleared_services": cleared})
}

// ClearServiceCache wipes one sport service's cache namespace.
func (h *AdminHandler) ClearServiceCache(c *gin.Context) {
	svc, err := h.factory.Service(c.Param("sport"), c.Param("league"))
	if err != nil {
		utils.SendValidationError(c, "unknown service", err.Error())
		return
	}
	svc.ClearCache(c.Request.Context())
	utils.SendSuccess(c, gin.H{"sport": svc.Sport(), "league": svc.League(), "cleared": true})
}

// GetRateLimits returns current window usage per provider.
func (h *AdminHandler) GetRateLimits(c *gin.Context) {
	utils.SendSuccess(c, h.limiter.Snapshot())
}

// GetBreakers returns every instantiated circuit breaker.
func (h *AdminHandler) GetBreakers(c *gin.Context) {
	utils.SendSuccess(c, h.breakers.Snapshot())
}

// GetJobs lists the refresh jobs and their run state.
func (h *AdminHandler) GetJobs(c *gin.Context) {
	if h.scheduler == nil {
		utils.SendSuccess(c, []services.JobInfo{})
		return
	}
	utils.SendSuccess(c, h.scheduler.Jobs())
}

// TriggerJob runs one refresh job immediately.
func (h *AdminHandler) TriggerJob(c *gin.Context) {
	if h.scheduler == nil {
		utils.SendValidationError(c, "background jobs are disabled", "")
		return
	}
	name := c.Param("name")
	if err := h.scheduler.TriggerJob(name); err != nil {
		utils.SendNotFound(c, err.Error())
		return
	}
	utils.SendSuccess(c, gin.H{"job": name, "triggered": true})
}

// EnableJob re-enables a disabled refresh job.
func (h *AdminHandler) EnableJob(c *gin.Context) {
	h.toggleJob(c, true)
}

// DisableJob pauses a refresh job without unscheduling it.
func (h *AdminHandler) DisableJob(c *gin.Context) {
	h.toggleJob(c, false)
}

func (h *AdminHandler) toggleJob(c *gin.Context, enabled bool) {
	if h.scheduler == nil {
		utils.SendValidationError(c, "background jobs are disabled", "")
		return
	}
	name := c.Param("name")
	var err error
	if enabled {
		err = h.scheduler.EnableJob(name)
	} else {
		err = h.scheduler.DisableJob(name)
	}
	if err != nil {
		utils.SendNotFound(c, err.Error())
		return
	}
	utils.SendSuccess(c, gin.H{"job": name, "enabled": enabled})
}

// GetStats returns a one-page operational overview.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats := gin.H{
		"services":    len(h.factory.Services()),
		"rate_limits": h.limiter.Snapshot(),
		"breakers":    h.breakers.Snapshot(),
	}
	if h.hub != nil {
		stats["websocket_clients"] = h.hub.ClientCount()
	}
	if h.scheduler != nil {
		stats["jobs"] = h.scheduler.Jobs()
	}
	utils.SendSuccess(c, stats)
}
