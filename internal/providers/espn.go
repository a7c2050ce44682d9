package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// ESPNClient fetches games, teams and rosters from ESPN's public site API.
// It is the primary source for most sports: free, broad coverage, no key.
type ESPNClient struct {
	apiClient
	baseURL string
}

func NewESPNClient(logger *logrus.Logger) *ESPNClient {
	return &ESPNClient{
		apiClient: newAPIClient("espn", 200*time.Millisecond, 3, logger),
		baseURL:   "https://site.api.espn.com/apis/site/v2/sports",
	}
}

// WithBaseURL points the client at a different host. Test hook.
func (c *ESPNClient) WithBaseURL(url string) *ESPNClient {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

func (c *ESPNClient) Name() string { return "espn" }

// espnPath maps sport and league onto ESPN's URL scheme. Unknown sports
// get a best-effort path so the open sport set stays usable.
func espnPath(sport sports.Sport, league string) string {
	league = strings.ToLower(strings.TrimSpace(league))
	defaultLeague := map[sports.Sport]string{
		sports.SportBasketball: "nba",
		sports.SportBaseball:   "mlb",
		sports.SportHockey:     "nhl",
		sports.SportFootball:   "nfl",
		sports.SportSoccer:     "usa.1",
	}
	if league == "" {
		league = defaultLeague[sport]
	}
	if league == "mls" {
		league = "usa.1"
	}
	return string(sport) + "/" + league
}

type espnScoreboardResponse struct {
	Events []struct {
		ID     string `json:"id"`
		Date   string `json:"date"`
		Name   string `json:"name"`
		Season struct {
			Year int `json:"year"`
		} `json:"season"`
		Status espnStatus `json:"status"`
		Competitions []struct {
			ID    string `json:"id"`
			Venue struct {
				FullName string `json:"fullName"`
			} `json:"venue"`
			Competitors []struct {
				ID       string   `json:"id"`
				HomeAway string   `json:"homeAway"`
				Score    string   `json:"score"`
				Team     espnTeam `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

type espnStatus struct {
	Type struct {
		Name      string `json:"name"`
		State     string `json:"state"`
		Completed bool   `json:"completed"`
	} `json:"type"`
}

type espnTeam struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
	Logo         string `json:"logo"`
}

type espnTeamsResponse struct {
	Sports []struct {
		Leagues []struct {
			Teams []struct {
				Team struct {
					espnTeam
					Logos []struct {
						Href string `json:"href"`
					} `json:"logos"`
				} `json:"team"`
			} `json:"teams"`
		} `json:"leagues"`
	} `json:"sports"`
}

type espnRosterResponse struct {
	Team struct {
		ID           string `json:"id"`
		Abbreviation string `json:"abbreviation"`
		DisplayName  string `json:"displayName"`
		Athletes     []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			FullName    string `json:"fullName"`
			Jersey      string `json:"jersey"`
			Position    struct {
				Abbreviation string `json:"abbreviation"`
			} `json:"position"`
			Status struct {
				Type string `json:"type"`
			} `json:"status"`
		} `json:"athletes"`
	} `json:"team"`
}

// GamesByDate fetches the scoreboard for one calendar date.
func (c *ESPNClient) GamesByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.Game, error) {
	url := fmt.Sprintf("%s/%s/scoreboard?dates=%s", c.baseURL, espnPath(sport, league), date.Format("20060102"))

	var resp espnScoreboardResponse
	if err := c.getJSON(ctx, url, nil, &resp); err != nil {
		return nil, err
	}

	games := make([]sports.Game, 0, len(resp.Events))
	for _, event := range resp.Events {
		if len(event.Competitions) == 0 {
			continue
		}
		comp := event.Competitions[0]

		game := sports.Game{
			ExternalID: event.ID,
			Sport:      sport,
			League:     league,
			Season:     strconv.Itoa(event.Season.Year),
			Venue:      comp.Venue.FullName,
			Status:     espnGameStatus(event.Status),
			Provider:   c.name,
			FetchedAt:  time.Now().UTC(),
		}
		if event.Name != "" {
			game.Extras = map[string]string{"event_name": event.Name}
		}
		if start, err := time.Parse("2006-01-02T15:04Z", event.Date); err == nil {
			game.StartTime = start
		} else if start, err := time.Parse(time.RFC3339, event.Date); err == nil {
			game.StartTime = start
		}

		for _, competitor := range comp.Competitors {
			name := competitor.Team.DisplayName
			score, _ := strconv.Atoi(competitor.Score)
			if competitor.HomeAway == "home" {
				game.HomeTeam = name
				game.HomeScore = score
			} else {
				game.AwayTeam = name
				game.AwayScore = score
			}
		}
		if game.HomeTeam == "" || game.AwayTeam == "" {
			c.logger.WithField("event", event.ID).Debug("Skipping event without both competitors")
			continue
		}
		games = append(games, game)
	}

	c.logger.WithFields(logrus.Fields{"sport": sport, "date": date.Format("2006-01-02"), "games": len(games)}).Debug("Fetched ESPN scoreboard")
	return games, nil
}

// Teams fetches all teams of a league.
func (c *ESPNClient) Teams(ctx context.Context, sport sports.Sport, league string) ([]sports.Team, error) {
	url := fmt.Sprintf("%s/%s/teams", c.baseURL, espnPath(sport, league))

	var resp espnTeamsResponse
	if err := c.getJSON(ctx, url, nil, &resp); err != nil {
		return nil, err
	}

	var teams []sports.Team
	for _, s := range resp.Sports {
		for _, l := range s.Leagues {
			for _, entry := range l.Teams {
				team := sports.Team{
					ExternalID:   entry.Team.ID,
					Sport:        sport,
					League:       league,
					Name:         entry.Team.DisplayName,
					Abbreviation: entry.Team.Abbreviation,
					City:         entry.Team.Location,
					Provider:     c.name,
				}
				if len(entry.Team.Logos) > 0 {
					team.LogoURL = entry.Team.Logos[0].Href
				}
				teams = append(teams, team)
			}
		}
	}
	return teams, nil
}

// Roster fetches the player roster of one team by ESPN team ID.
func (c *ESPNClient) Roster(ctx context.Context, sport sports.Sport, league, teamID string) ([]sports.Player, error) {
	url := fmt.Sprintf("%s/%s/teams/%s?enable=roster", c.baseURL, espnPath(sport, league), teamID)

	var resp espnRosterResponse
	if err := c.getJSON(ctx, url, nil, &resp); err != nil {
		return nil, err
	}

	players := make([]sports.Player, 0, len(resp.Team.Athletes))
	for _, athlete := range resp.Team.Athletes {
		name := athlete.DisplayName
		if name == "" {
			name = athlete.FullName
		}
		players = append(players, sports.Player{
			ExternalID: athlete.ID,
			Sport:      sport,
			TeamName:   resp.Team.DisplayName,
			Name:       name,
			Position:   athlete.Position.Abbreviation,
			Jersey:     athlete.Jersey,
			Status:     athlete.Status.Type,
			Provider:   c.name,
		})
	}
	return players, nil
}

func espnGameStatus(status espnStatus) string {
	if strings.Contains(strings.ToUpper(status.Type.Name), "POSTPONED") {
		return sports.StatusPostponed
	}
	switch status.Type.State {
	case "pre":
		return sports.StatusScheduled
	case "in":
		return sports.StatusInProgress
	case "post":
		return sports.StatusFinal
	default:
		if status.Type.Completed {
			return sports.StatusFinal
		}
		return sports.StatusScheduled
	}
}
