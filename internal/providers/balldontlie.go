package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// BallDontLieClient fetches NBA games, teams and players from the
// balldontlie API. NBA only; the free tier allows five requests per
// minute, so keep its ProviderLimits tight.
type BallDontLieClient struct {
	apiClient
	baseURL string
	apiKey  string
}

func NewBallDontLieClient(apiKey string, logger *logrus.Logger) *BallDontLieClient {
	return &BallDontLieClient{
		apiClient: newAPIClient("balldontlie", 12*time.Second, 1, logger),
		baseURL:   "https://api.balldontlie.io/v1",
		apiKey:    apiKey,
	}
}

// WithBaseURL points the client at a different host. Test hook.
func (c *BallDontLieClient) WithBaseURL(url string) *BallDontLieClient {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

func (c *BallDontLieClient) Name() string { return "balldontlie" }

func (c *BallDontLieClient) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": c.apiKey}
}

type bdlTeam struct {
	ID           int    `json:"id"`
	FullName     string `json:"full_name"`
	Abbreviation string `json:"abbreviation"`
	City         string `json:"city"`
}

type bdlGamesResponse struct {
	Data []struct {
		ID               int     `json:"id"`
		Date             string  `json:"date"`
		Status           string  `json:"status"`
		Season           int     `json:"season"`
		HomeTeam         bdlTeam `json:"home_team"`
		VisitorTeam      bdlTeam `json:"visitor_team"`
		HomeTeamScore    int     `json:"home_team_score"`
		VisitorTeamScore int     `json:"visitor_team_score"`
	} `json:"data"`
}

type bdlTeamsResponse struct {
	Data []bdlTeam `json:"data"`
}

type bdlPlayersResponse struct {
	Data []struct {
		ID           int     `json:"id"`
		FirstName    string  `json:"first_name"`
		LastName     string  `json:"last_name"`
		Position     string  `json:"position"`
		JerseyNumber string  `json:"jersey_number"`
		Team         bdlTeam `json:"team"`
	} `json:"data"`
}

// GamesByDate fetches NBA games for one calendar date.
func (c *BallDontLieClient) GamesByDate(ctx context.Context, date time.Time) ([]sports.Game, error) {
	url := fmt.Sprintf("%s/games?dates[]=%s&per_page=100", c.baseURL, date.Format("2006-01-02"))

	var resp bdlGamesResponse
	if err := c.getJSON(ctx, url, c.headers(), &resp); err != nil {
		return nil, err
	}

	games := make([]sports.Game, 0, len(resp.Data))
	for _, entry := range resp.Data {
		game := sports.Game{
			ExternalID: fmt.Sprintf("%d", entry.ID),
			Sport:      sports.SportBasketball,
			League:     "nba",
			Season:     fmt.Sprintf("%d", entry.Season),
			HomeTeam:   entry.HomeTeam.FullName,
			AwayTeam:   entry.VisitorTeam.FullName,
			Status:     bdlStatus(entry.Status),
			HomeScore:  entry.HomeTeamScore,
			AwayScore:  entry.VisitorTeamScore,
			Provider:   c.name,
			FetchedAt:  time.Now().UTC(),
		}
		if start, err := time.Parse(time.RFC3339, entry.Date); err == nil {
			game.StartTime = start
		} else if start, err := time.Parse("2006-01-02", entry.Date); err == nil {
			game.StartTime = start
		}
		games = append(games, game)
	}

	c.logger.WithFields(logrus.Fields{"date": date.Format("2006-01-02"), "games": len(games)}).Debug("Fetched balldontlie games")
	return games, nil
}

// Teams fetches all NBA teams.
func (c *BallDontLieClient) Teams(ctx context.Context) ([]sports.Team, error) {
	url := fmt.Sprintf("%s/teams?per_page=100", c.baseURL)

	var resp bdlTeamsResponse
	if err := c.getJSON(ctx, url, c.headers(), &resp); err != nil {
		return nil, err
	}

	teams := make([]sports.Team, 0, len(resp.Data))
	for _, entry := range resp.Data {
		teams = append(teams, sports.Team{
			ExternalID:   fmt.Sprintf("%d", entry.ID),
			Sport:        sports.SportBasketball,
			League:       "nba",
			Name:         entry.FullName,
			Abbreviation: entry.Abbreviation,
			City:         entry.City,
			Provider:     c.name,
		})
	}
	return teams, nil
}

// PlayersByTeam fetches the roster of one NBA team by balldontlie team ID.
func (c *BallDontLieClient) PlayersByTeam(ctx context.Context, teamID string) ([]sports.Player, error) {
	url := fmt.Sprintf("%s/players?team_ids[]=%s&per_page=100", c.baseURL, teamID)

	var resp bdlPlayersResponse
	if err := c.getJSON(ctx, url, c.headers(), &resp); err != nil {
		return nil, err
	}

	players := make([]sports.Player, 0, len(resp.Data))
	for _, entry := range resp.Data {
		players = append(players, sports.Player{
			ExternalID: fmt.Sprintf("%d", entry.ID),
			Sport:      sports.SportBasketball,
			TeamName:   entry.Team.FullName,
			Name:       strings.TrimSpace(entry.FirstName + " " + entry.LastName),
			Position:   entry.Position,
			Jersey:     entry.JerseyNumber,
			Provider:   c.name,
		})
	}
	return players, nil
}

func bdlStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case s == "final":
		return sports.StatusFinal
	case s == "postponed":
		return sports.StatusPostponed
	case strings.Contains(s, "qtr") || strings.Contains(s, "half") || strings.Contains(s, "ot"):
		return sports.StatusInProgress
	default:
		// balldontlie reports tip-off time as the status before the game
		return sports.StatusScheduled
	}
}
