package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/projectapex/sportsdata/internal/sports"
)

func TestAPISportsGamesByDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/games", r.URL.Path)
		assert.Equal(t, "2025-03-01", r.URL.Query().Get("date"))
		assert.Equal(t, "test-key", r.Header.Get("x-apisports-key"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": []map[string]interface{}{
				{
					"id":     55,
					"date":   "2025-03-01T19:30:00Z",
					"venue":  "TD Garden",
					"status": map[string]interface{}{"short": "FT"},
					"league": map[string]interface{}{"name": "NBA", "season": 2024},
					"teams": map[string]interface{}{
						"home": map[string]interface{}{"name": "Boston Celtics"},
						"away": map[string]interface{}{"name": "Los Angeles Lakers"},
					},
					// Scores arrive as an object or a bare number
					// depending on the sport.
					"scores": map[string]interface{}{
						"home": map[string]interface{}{"total": 101},
						"away": 99,
					},
				},
				{
					// Unnamed matchup, dropped.
					"id":     56,
					"status": map[string]interface{}{"short": "NS"},
				},
			},
		})
	}))
	defer server.Close()

	client := NewAPISportsClient("test-key", logrus.New()).WithBaseURL(server.URL)
	games, err := client.GamesByDate(context.Background(), sports.SportBasketball, "nba", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, games, 1)

	game := games[0]
	assert.Equal(t, "55", game.ExternalID)
	assert.Equal(t, "2024", game.Season)
	assert.Equal(t, "Boston Celtics", game.HomeTeam)
	assert.Equal(t, "Los Angeles Lakers", game.AwayTeam)
	assert.Equal(t, 101, game.HomeScore)
	assert.Equal(t, 99, game.AwayScore)
	assert.Equal(t, sports.StatusFinal, game.Status)
	assert.Equal(t, "TD Garden", game.Venue)
	assert.Equal(t, "apisports", game.Provider)
	assert.Equal(t, time.Date(2025, 3, 1, 19, 30, 0, 0, time.UTC), game.StartTime)
}

// TestAPISportsOddsByDate tests the two-step odds fetch: games first to
// recover matchup names, then lines joined on game ID.
func TestAPISportsOddsByDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/games":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"response": []map[string]interface{}{
					{
						"id":     55,
						"date":   "2025-03-01T19:30:00Z",
						"status": map[string]interface{}{"short": "NS"},
						"teams": map[string]interface{}{
							"home": map[string]interface{}{"name": "Boston Celtics"},
							"away": map[string]interface{}{"name": "Los Angeles Lakers"},
						},
					},
				},
			})
		case "/odds":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"response": []map[string]interface{}{
					{
						"game": map[string]interface{}{"id": 55},
						"bookmakers": []map[string]interface{}{
							{
								"name": "Bet365",
								"bets": []map[string]interface{}{
									{
										"name": "Home/Away",
										"values": []map[string]interface{}{
											{"value": "Home", "odd": "1.85"},
											{"value": "Away", "odd": "2.10"},
										},
									},
									{
										"name": "Over/Under",
										"values": []map[string]interface{}{
											{"value": "Over 221.5", "odd": "1.90"},
											{"value": "Under 221.5", "odd": "1.95"},
										},
									},
									{
										// Unsupported market, dropped.
										"name": "Handicap",
									},
								},
							},
						},
					},
					{
						// No matching game, dropped.
						"game": map[string]interface{}{"id": 99},
					},
				},
			})
		}
	}))
	defer server.Close()

	client := NewAPISportsClient("test-key", logrus.New()).WithBaseURL(server.URL)
	// Collapse the politeness spacing; this call fans out into two requests.
	client.limiter = rate.NewLimiter(rate.Inf, 1)

	lines, err := client.OddsByDate(context.Background(), sports.SportBasketball, "nba", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, lines, 2)

	wantKey := "boston celtics|los angeles lakers|2025-03-01"

	moneyline := lines[0]
	assert.Equal(t, wantKey, moneyline.GameKey)
	assert.Equal(t, "Bet365", moneyline.Book)
	assert.Equal(t, sports.MarketMoneyline, moneyline.Market)
	assert.Equal(t, 1.85, moneyline.HomePrice)
	assert.Equal(t, 2.10, moneyline.AwayPrice)
	assert.Equal(t, "apisports", moneyline.Provider)

	total := lines[1]
	assert.Equal(t, wantKey, total.GameKey)
	assert.Equal(t, sports.MarketTotal, total.Market)
	assert.Equal(t, 221.5, total.Total)
	assert.Equal(t, 1.90, total.OverPrice)
	assert.Equal(t, 1.95, total.UnderPrice)
}

func TestAPISportsScoreShapes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected int
	}{
		{"object with total", `{"total": 7}`, 7},
		{"bare number", `3`, 3},
		{"null", `null`, 0},
		{"object with null total", `{"total": null}`, 0},
		{"non numeric", `"WO"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var score apiSportsScore
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &score))
			assert.Equal(t, tt.expected, score.Total)
		})
	}
}

func TestAPISportsHosts(t *testing.T) {
	client := NewAPISportsClient("test-key", logrus.New())

	host, err := client.hostFor(sports.SportBasketball)
	require.NoError(t, err)
	assert.Equal(t, "https://v1.basketball.api-sports.io", host)

	host, err = client.hostFor(sports.SportHockey)
	require.NoError(t, err)
	assert.Equal(t, "https://v1.hockey.api-sports.io", host)

	// Soccer runs on a different API generation and is not covered.
	_, err = client.hostFor(sports.SportSoccer)
	assert.ErrorIs(t, err, sports.ErrNoData)

	client.WithBaseURL("http://127.0.0.1:9")
	host, err = client.hostFor(sports.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9", host)
}

func TestAPISportsUnknownSportFailsFast(t *testing.T) {
	client := NewAPISportsClient("test-key", logrus.New())

	_, err := client.GamesByDate(context.Background(), sports.Sport("cricket"), "ipl", time.Now())

	assert.ErrorIs(t, err, sports.ErrNoData)
}

func TestAPISportsStatusMapping(t *testing.T) {
	tests := []struct {
		short    string
		expected string
	}{
		{"NS", sports.StatusScheduled},
		{"FT", sports.StatusFinal},
		{"AOT", sports.StatusFinal},
		{"OT", sports.StatusFinal},
		{"POST", sports.StatusPostponed},
		{"CANC", sports.StatusPostponed},
		{"Q1", sports.StatusInProgress},
		{"HT", sports.StatusInProgress},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, apiSportsStatus(tt.short), "short %q", tt.short)
	}
}
