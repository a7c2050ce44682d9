package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// SportsDBClient fetches games, teams and players from TheSportsDB, the
// free aggregator used as the first fallback behind ESPN. The free tier
// works with the shared key "3".
type SportsDBClient struct {
	apiClient
	baseURL string
	apiKey  string
}

func NewSportsDBClient(apiKey string, logger *logrus.Logger) *SportsDBClient {
	if apiKey == "" {
		apiKey = "3"
	}
	return &SportsDBClient{
		apiClient: newAPIClient("thesportsdb", time.Second, 1, logger),
		baseURL:   "https://www.thesportsdb.com/api/v1/json",
		apiKey:    apiKey,
	}
}

// WithBaseURL points the client at a different host. Test hook.
func (c *SportsDBClient) WithBaseURL(url string) *SportsDBClient {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

func (c *SportsDBClient) Name() string { return "thesportsdb" }

// sportsDBSport maps canonical sports onto TheSportsDB sport labels.
func sportsDBSport(sport sports.Sport) string {
	switch sport {
	case sports.SportBasketball:
		return "Basketball"
	case sports.SportBaseball:
		return "Baseball"
	case sports.SportHockey:
		return "Ice Hockey"
	case sports.SportFootball:
		return "American Football"
	case sports.SportSoccer:
		return "Soccer"
	default:
		name := string(sport)
		if name == "" {
			return name
		}
		return strings.ToUpper(name[:1]) + name[1:]
	}
}

// sportsDBLeague maps league codes onto TheSportsDB league names.
func sportsDBLeague(sport sports.Sport, league string) string {
	switch strings.ToLower(league) {
	case "nba":
		return "NBA"
	case "mlb":
		return "MLB"
	case "nhl":
		return "NHL"
	case "nfl":
		return "NFL"
	case "mls":
		return "American Major League Soccer"
	case "epl":
		return "English Premier League"
	case "":
		return sportsDBSport(sport)
	default:
		return strings.ToUpper(league)
	}
}

type sportsDBEventsResponse struct {
	Events []struct {
		IDEvent      string `json:"idEvent"`
		StrHomeTeam  string `json:"strHomeTeam"`
		StrAwayTeam  string `json:"strAwayTeam"`
		DateEvent    string `json:"dateEvent"`
		StrTime      string `json:"strTime"`
		IntHomeScore string `json:"intHomeScore"`
		IntAwayScore string `json:"intAwayScore"`
		StrStatus    string `json:"strStatus"`
		StrVenue     string `json:"strVenue"`
		StrLeague    string `json:"strLeague"`
		StrSeason    string `json:"strSeason"`
	} `json:"events"`
}

type sportsDBTeamsResponse struct {
	Teams []struct {
		IDTeam       string `json:"idTeam"`
		StrTeam      string `json:"strTeam"`
		StrTeamShort string `json:"strTeamShort"`
		StrStadium   string `json:"strStadium"`
		StrBadge     string `json:"strBadge"`
		StrLeague    string `json:"strLeague"`
		StrLocation  string `json:"strLocation"`
	} `json:"teams"`
}

type sportsDBPlayersResponse struct {
	Player []struct {
		IDPlayer    string `json:"idPlayer"`
		StrPlayer   string `json:"strPlayer"`
		StrPosition string `json:"strPosition"`
		StrNumber   string `json:"strNumber"`
		StrStatus   string `json:"strStatus"`
		StrTeam     string `json:"strTeam"`
	} `json:"player"`
}

// GamesByDate fetches the events of one calendar date.
func (c *SportsDBClient) GamesByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.Game, error) {
	u := fmt.Sprintf("%s/%s/eventsday.php?d=%s&s=%s",
		c.baseURL, c.apiKey, date.Format("2006-01-02"), url.QueryEscape(sportsDBSport(sport)))

	var resp sportsDBEventsResponse
	if err := c.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}

	games := make([]sports.Game, 0, len(resp.Events))
	for _, event := range resp.Events {
		if event.StrHomeTeam == "" || event.StrAwayTeam == "" {
			continue
		}
		game := sports.Game{
			ExternalID: event.IDEvent,
			Sport:      sport,
			League:     league,
			Season:     event.StrSeason,
			HomeTeam:   event.StrHomeTeam,
			AwayTeam:   event.StrAwayTeam,
			Venue:      event.StrVenue,
			Status:     sportsDBStatus(event.StrStatus),
			HomeScore:  atoiSafe(event.IntHomeScore),
			AwayScore:  atoiSafe(event.IntAwayScore),
			Provider:   c.name,
			FetchedAt:  time.Now().UTC(),
		}
		game.StartTime = parseSportsDBStart(event.DateEvent, event.StrTime)
		games = append(games, game)
	}

	c.logger.WithFields(logrus.Fields{"sport": sport, "date": date.Format("2006-01-02"), "games": len(games)}).Debug("Fetched TheSportsDB events")
	return games, nil
}

// Teams fetches all teams of a league by its TheSportsDB name.
func (c *SportsDBClient) Teams(ctx context.Context, sport sports.Sport, league string) ([]sports.Team, error) {
	u := fmt.Sprintf("%s/%s/search_all_teams.php?l=%s",
		c.baseURL, c.apiKey, url.QueryEscape(sportsDBLeague(sport, league)))

	var resp sportsDBTeamsResponse
	if err := c.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}

	teams := make([]sports.Team, 0, len(resp.Teams))
	for _, entry := range resp.Teams {
		teams = append(teams, sports.Team{
			ExternalID:   entry.IDTeam,
			Sport:        sport,
			League:       league,
			Name:         entry.StrTeam,
			Abbreviation: entry.StrTeamShort,
			City:         entry.StrLocation,
			LogoURL:      entry.StrBadge,
			Venue:        entry.StrStadium,
			Provider:     c.name,
		})
	}
	return teams, nil
}

// PlayersByTeam fetches a roster by team name, no provider ID needed.
func (c *SportsDBClient) PlayersByTeam(ctx context.Context, sport sports.Sport, teamName string) ([]sports.Player, error) {
	u := fmt.Sprintf("%s/%s/searchplayers.php?t=%s",
		c.baseURL, c.apiKey, url.QueryEscape(teamName))

	var resp sportsDBPlayersResponse
	if err := c.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}

	players := make([]sports.Player, 0, len(resp.Player))
	for _, entry := range resp.Player {
		if entry.StrPlayer == "" {
			continue
		}
		players = append(players, sports.Player{
			ExternalID: entry.IDPlayer,
			Sport:      sport,
			TeamName:   entry.StrTeam,
			Name:       entry.StrPlayer,
			Position:   entry.StrPosition,
			Jersey:     entry.StrNumber,
			Status:     entry.StrStatus,
			Provider:   c.name,
		})
	}
	return players, nil
}

func sportsDBStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "", "NS", "NOT STARTED":
		return sports.StatusScheduled
	case "FT", "AOT", "MATCH FINISHED", "FINISHED":
		return sports.StatusFinal
	case "POST", "POSTPONED", "CANC", "CANCELLED":
		return sports.StatusPostponed
	default:
		return sports.StatusInProgress
	}
}

func parseSportsDBStart(date, clock string) time.Time {
	if clock != "" {
		if start, err := time.Parse("2006-01-02 15:04:05", date+" "+clock); err == nil {
			return start.UTC()
		}
	}
	start, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}
	}
	return start.UTC()
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
