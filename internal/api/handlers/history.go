package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projectapex/sportsdata/internal/models"
	"github.com/projectapex/sportsdata/internal/sports"
	"github.com/projectapex/sportsdata/pkg/utils"
)

// HistoryHandler serves stored data: past games, line movement and the
// fetch activity log. Nothing here touches upstream providers.
type HistoryHandler struct {
	store *models.Store
}

func NewHistoryHandler(store *models.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// GetGames returns stored games for a window of days ending today.
func (h *HistoryHandler) GetGames(c *gin.Context) {
	sport := string(sports.Normalize(c.Param("sport")))
	league := strings.ToLower(c.Param("league"))

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days < 1 || days > 90 {
		days = 7
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	games, err := h.store.GamesBetween(c.Request.Context(), sport, league, from, to)
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, games, &utils.Meta{Count: len(games)})
}

// GetTeams returns the stored teams of a league.
func (h *HistoryHandler) GetTeams(c *gin.Context) {
	sport := string(sports.Normalize(c.Param("sport")))
	league := strings.ToLower(c.Param("league"))

	teams, err := h.store.TeamsByLeague(c.Request.Context(), sport, league)
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, teams, &utils.Meta{Count: len(teams)})
}

// GetOdds returns captured lines for one game, newest first.
func (h *HistoryHandler) GetOdds(c *gin.Context) {
	gameKey := c.Query("game_key")
	if gameKey == "" {
		utils.SendValidationError(c, "game_key query parameter is required",
			"the natural key of a game, home|away|date")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	snapshots, err := h.store.OddsHistory(c.Request.Context(), gameKey, limit)
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, snapshots, &utils.Meta{Count: len(snapshots)})
}

// GetActivity returns the latest upstream fetch attempts.
func (h *HistoryHandler) GetActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	activity, err := h.store.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		utils.SendInternalError(c, err.Error())
		return
	}
	utils.SendSuccessWithMeta(c, activity, &utils.Meta{Count: len(activity)})
}
