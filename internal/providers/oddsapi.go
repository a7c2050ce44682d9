package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// OddsAPIClient fetches betting lines from The Odds API. One upstream
// call returns every bookmaker, so lines fan out into one OddsLine per
// game, book and market.
type OddsAPIClient struct {
	apiClient
	baseURL string
	apiKey  string
	regions string
}

func NewOddsAPIClient(apiKey string, logger *logrus.Logger) *OddsAPIClient {
	return &OddsAPIClient{
		apiClient: newAPIClient("oddsapi", time.Second, 1, logger),
		baseURL:   "https://api.the-odds-api.com/v4",
		apiKey:    apiKey,
		regions:   "us",
	}
}

// WithBaseURL points the client at a different host. Test hook.
func (c *OddsAPIClient) WithBaseURL(url string) *OddsAPIClient {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

func (c *OddsAPIClient) Name() string { return "oddsapi" }

// oddsSportKey maps sport and league onto The Odds API sport keys.
func oddsSportKey(sport sports.Sport, league string) string {
	league = strings.ToLower(strings.TrimSpace(league))
	switch sport {
	case sports.SportBasketball:
		if league == "" || league == "nba" {
			return "basketball_nba"
		}
		return "basketball_" + league
	case sports.SportBaseball:
		return "baseball_mlb"
	case sports.SportHockey:
		return "icehockey_nhl"
	case sports.SportFootball:
		return "americanfootball_nfl"
	case sports.SportSoccer:
		if league == "" || league == "mls" {
			return "soccer_usa_mls"
		}
		return "soccer_" + league
	default:
		if league == "" {
			return string(sport)
		}
		return string(sport) + "_" + league
	}
}

type oddsAPIEvent struct {
	ID           string `json:"id"`
	CommenceTime string `json:"commence_time"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
	Bookmakers   []struct {
		Key     string `json:"key"`
		Title   string `json:"title"`
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
				Point float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// OddsByDate fetches every bookmaker's lines for games commencing on the
// given UTC date.
func (c *OddsAPIClient) OddsByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.OddsLine, error) {
	url := fmt.Sprintf("%s/sports/%s/odds?apiKey=%s&regions=%s&markets=h2h,spreads,totals&dateFormat=iso",
		c.baseURL, oddsSportKey(sport, league), c.apiKey, c.regions)

	var events []oddsAPIEvent
	if err := c.getJSON(ctx, url, nil, &events); err != nil {
		return nil, err
	}

	day := date.UTC().Format("2006-01-02")
	capturedAt := time.Now().UTC()

	var lines []sports.OddsLine
	for _, event := range events {
		start, err := time.Parse(time.RFC3339, event.CommenceTime)
		if err != nil {
			continue
		}
		if !date.IsZero() && start.UTC().Format("2006-01-02") != day {
			continue
		}

		gameKey := sports.Game{
			HomeTeam:  event.HomeTeam,
			AwayTeam:  event.AwayTeam,
			StartTime: start,
		}.NaturalKey()

		for _, book := range event.Bookmakers {
			for _, market := range book.Markets {
				line := sports.OddsLine{
					GameKey:    gameKey,
					Book:       book.Key,
					Provider:   c.name,
					CapturedAt: capturedAt,
				}
				switch market.Key {
				case "h2h":
					line.Market = sports.MarketMoneyline
					for _, outcome := range market.Outcomes {
						switch outcome.Name {
						case event.HomeTeam:
							line.HomePrice = outcome.Price
						case event.AwayTeam:
							line.AwayPrice = outcome.Price
						}
					}
				case "spreads":
					line.Market = sports.MarketSpread
					for _, outcome := range market.Outcomes {
						switch outcome.Name {
						case event.HomeTeam:
							line.HomePrice = outcome.Price
							line.Spread = outcome.Point
						case event.AwayTeam:
							line.AwayPrice = outcome.Price
						}
					}
				case "totals":
					line.Market = sports.MarketTotal
					for _, outcome := range market.Outcomes {
						switch strings.ToLower(outcome.Name) {
						case "over":
							line.OverPrice = outcome.Price
							line.Total = outcome.Point
						case "under":
							line.UnderPrice = outcome.Price
						}
					}
				default:
					continue
				}
				lines = append(lines, line)
			}
		}
	}

	c.logger.WithFields(logrus.Fields{"sport": sport, "date": day, "lines": len(lines)}).Debug("Fetched odds lines")
	return lines, nil
}
