package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// APISportsClient is the paid last-resort source. Quota is hard-capped
// per day, so it sits behind the fallback chains' last-resort gate and a
// tight ProviderLimits entry; nothing should call it while the free
// providers are healthy.
type APISportsClient struct {
	apiClient
	apiKey       string
	baseOverride string
}

func NewAPISportsClient(apiKey string, logger *logrus.Logger) *APISportsClient {
	return &APISportsClient{
		apiClient: newAPIClient("apisports", 6*time.Second, 1, logger),
		apiKey:    apiKey,
	}
}

// WithBaseURL points every sport at one host. Test hook.
func (c *APISportsClient) WithBaseURL(url string) *APISportsClient {
	c.baseOverride = strings.TrimRight(url, "/")
	return c
}

func (c *APISportsClient) Name() string { return "apisports" }

func (c *APISportsClient) headers() map[string]string {
	return map[string]string{"x-apisports-key": c.apiKey}
}

// hostFor maps a sport onto its API-Sports host. Soccer uses a different
// API generation with another response shape and is not covered here.
func (c *APISportsClient) hostFor(sport sports.Sport) (string, error) {
	if c.baseOverride != "" {
		return c.baseOverride, nil
	}
	switch sport {
	case sports.SportBasketball:
		return "https://v1.basketball.api-sports.io", nil
	case sports.SportBaseball:
		return "https://v1.baseball.api-sports.io", nil
	case sports.SportHockey:
		return "https://v1.hockey.api-sports.io", nil
	case sports.SportFootball:
		return "https://v1.american-football.api-sports.io", nil
	default:
		return "", fmt.Errorf("%w: apisports does not cover sport %q", sports.ErrNoData, sport)
	}
}

// apiSportsScore tolerates the two score shapes across the API family:
// an object with a total field, or a bare number.
type apiSportsScore struct {
	Total int
}

func (s *apiSportsScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			Total *int `json:"total"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Total != nil {
			s.Total = *obj.Total
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		s.Total = n
	}
	return nil
}

type apiSportsGame struct {
	ID     int    `json:"id"`
	Date   string `json:"date"`
	Venue  string `json:"venue"`
	Status struct {
		Short string `json:"short"`
	} `json:"status"`
	League struct {
		Name   string      `json:"name"`
		Season interface{} `json:"season"`
	} `json:"league"`
	Teams struct {
		Home struct {
			Name string `json:"name"`
		} `json:"home"`
		Away struct {
			Name string `json:"name"`
		} `json:"away"`
	} `json:"teams"`
	Scores struct {
		Home apiSportsScore `json:"home"`
		Away apiSportsScore `json:"away"`
	} `json:"scores"`
}

type apiSportsGamesResponse struct {
	Response []apiSportsGame `json:"response"`
}

type apiSportsOddsResponse struct {
	Response []struct {
		Game struct {
			ID int `json:"id"`
		} `json:"game"`
		Bookmakers []struct {
			Name string `json:"name"`
			Bets []struct {
				Name   string `json:"name"`
				Values []struct {
					Value string `json:"value"`
					Odd   string `json:"odd"`
				} `json:"values"`
			} `json:"bets"`
		} `json:"bookmakers"`
	} `json:"response"`
}

// GamesByDate fetches games for one calendar date.
func (c *APISportsClient) GamesByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.Game, error) {
	host, err := c.hostFor(sport)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/games?date=%s", host, date.Format("2006-01-02"))

	var resp apiSportsGamesResponse
	if err := c.getJSON(ctx, url, c.headers(), &resp); err != nil {
		return nil, err
	}

	games := make([]sports.Game, 0, len(resp.Response))
	for _, entry := range resp.Response {
		if entry.Teams.Home.Name == "" || entry.Teams.Away.Name == "" {
			continue
		}
		game := sports.Game{
			ExternalID: strconv.Itoa(entry.ID),
			Sport:      sport,
			League:     league,
			Season:     fmt.Sprintf("%v", entry.League.Season),
			HomeTeam:   entry.Teams.Home.Name,
			AwayTeam:   entry.Teams.Away.Name,
			Venue:      entry.Venue,
			Status:     apiSportsStatus(entry.Status.Short),
			HomeScore:  entry.Scores.Home.Total,
			AwayScore:  entry.Scores.Away.Total,
			Provider:   c.name,
			FetchedAt:  time.Now().UTC(),
		}
		if start, err := time.Parse(time.RFC3339, entry.Date); err == nil {
			game.StartTime = start
		}
		games = append(games, game)
	}

	c.logger.WithFields(logrus.Fields{"sport": sport, "date": date.Format("2006-01-02"), "games": len(games)}).Debug("Fetched API-Sports games")
	return games, nil
}

// OddsByDate fetches moneyline and total lines for one date. The odds
// endpoint only carries game IDs, so games are fetched first to recover
// the matchup names behind each line.
func (c *APISportsClient) OddsByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.OddsLine, error) {
	host, err := c.hostFor(sport)
	if err != nil {
		return nil, err
	}

	games, err := c.GamesByDate(ctx, sport, league, date)
	if err != nil {
		return nil, err
	}
	keysByID := make(map[int]string, len(games))
	for _, game := range games {
		if id, err := strconv.Atoi(game.ExternalID); err == nil {
			keysByID[id] = game.NaturalKey()
		}
	}

	url := fmt.Sprintf("%s/odds?date=%s", host, date.Format("2006-01-02"))
	var resp apiSportsOddsResponse
	if err := c.getJSON(ctx, url, c.headers(), &resp); err != nil {
		return nil, err
	}

	capturedAt := time.Now().UTC()
	var lines []sports.OddsLine
	for _, entry := range resp.Response {
		gameKey, ok := keysByID[entry.Game.ID]
		if !ok {
			continue
		}
		for _, book := range entry.Bookmakers {
			for _, bet := range book.Bets {
				line := sports.OddsLine{
					GameKey:    gameKey,
					Book:       book.Name,
					Provider:   c.name,
					CapturedAt: capturedAt,
				}
				switch bet.Name {
				case "Home/Away", "Match Winner":
					line.Market = sports.MarketMoneyline
					for _, v := range bet.Values {
						switch v.Value {
						case "Home":
							line.HomePrice = atofSafe(v.Odd)
						case "Away":
							line.AwayPrice = atofSafe(v.Odd)
						}
					}
				case "Over/Under":
					line.Market = sports.MarketTotal
					for _, v := range bet.Values {
						fields := strings.Fields(v.Value)
						if len(fields) != 2 {
							continue
						}
						switch fields[0] {
						case "Over":
							line.Total = atofSafe(fields[1])
							line.OverPrice = atofSafe(v.Odd)
						case "Under":
							line.UnderPrice = atofSafe(v.Odd)
						}
					}
				default:
					continue
				}
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

func apiSportsStatus(short string) string {
	switch strings.ToUpper(strings.TrimSpace(short)) {
	case "NS":
		return sports.StatusScheduled
	case "FT", "AOT", "OT", "F":
		return sports.StatusFinal
	case "POST", "CANC":
		return sports.StatusPostponed
	default:
		return sports.StatusInProgress
	}
}

func atofSafe(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
