package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projectapex/sportsdata/internal/services"
	"github.com/projectapex/sportsdata/internal/sports"
	"github.com/projectapex/sportsdata/pkg/utils"
)

// SportsHandler serves the live data endpoints. An upstream outage
// never turns into an error response here, clients get an empty result
// with the outcome in the meta.
type SportsHandler struct {
	factory *services.ServiceFactory
}

func NewSportsHandler(factory *services.ServiceFactory) *SportsHandler {
	return &SportsHandler{factory: factory}
}

// GetGames returns the games of one date, today by default.
func (h *SportsHandler) GetGames(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	date, ok := queryDate(c)
	if !ok {
		return
	}

	games, outcome, err := svc.GamesByDate(c.Request.Context(), date)
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, games, outcomeMeta(outcome, len(games)))
}

// GetTeams returns the league's teams.
func (h *SportsHandler) GetTeams(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}

	teams, outcome, err := svc.Teams(c.Request.Context())
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, teams, outcomeMeta(outcome, len(teams)))
}

// GetPlayers returns the roster of the team named in the query.
func (h *SportsHandler) GetPlayers(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	team := c.Query("team")
	if team == "" {
		utils.SendValidationError(c, "team query parameter is required", "pass ?team=<name or abbreviation>")
		return
	}

	players, outcome, err := svc.Players(c.Request.Context(), team)
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, players, outcomeMeta(outcome, len(players)))
}

// GetOdds returns bookmaker lines for the games of one date.
func (h *SportsHandler) GetOdds(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	date, ok := queryDate(c)
	if !ok {
		return
	}

	lines, outcome, err := svc.OddsByDate(c.Request.Context(), date)
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, lines, outcomeMeta(outcome, len(lines)))
}

// ListServices returns the instantiated sport services.
func (h *SportsHandler) ListServices(c *gin.Context) {
	type serviceInfo struct {
		Sport  sports.Sport `json:"sport"`
		League string       `json:"league"`
	}
	infos := make([]serviceInfo, 0)
	for _, svc := range h.factory.Services() {
		infos = append(infos, serviceInfo{Sport: svc.Sport(), League: svc.League()})
	}
	utils.SendSuccess(c, infos)
}

func (h *SportsHandler) service(c *gin.Context) (services.SportService, bool) {
	svc, err := h.factory.Service(c.Param("sport"), c.Param("league"))
	if err != nil {
		if errors.Is(err, sports.ErrBadConfig) {
			utils.SendError(c, http.StatusInternalServerError,
				utils.NewAppError(utils.ErrCodeBadConfig, "service is not configured", err.Error()))
		} else {
			utils.SendInternalError(c, err.Error())
		}
		return nil, false
	}
	return svc, true
}

func queryDate(c *gin.Context) (time.Time, bool) {
	raw := c.DefaultQuery("date", time.Now().UTC().Format("2006-01-02"))
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		utils.SendValidationError(c, "invalid date", "expected YYYY-MM-DD, got "+raw)
		return time.Time{}, false
	}
	return date, true
}

func outcomeMeta(outcome services.Outcome, count int) *utils.Meta {
	meta := &utils.Meta{
		Count:   count,
		Outcome: string(outcome.Status),
		Shared:  outcome.Shared,
	}
	if outcome.Wait > 0 {
		meta.RetryAfterSeconds = int((outcome.Wait + time.Second - 1) / time.Second)
	}
	return meta
}
