package models

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/projectapex/sportsdata/internal/sports"
	"github.com/projectapex/sportsdata/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	store := NewStore(&database.DB{DB: gormDB}, logrus.New())
	require.NoError(t, store.Migrate())
	return store
}

func TestStoreSaveTeamsUpsertsByNaturalKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveTeams(ctx, []sports.Team{
		{Sport: sports.SportBasketball, League: "nba", Name: "Los Angeles Lakers", Abbreviation: "LAL", City: "Los Angeles", Provider: "espn"},
		{Sport: sports.SportBasketball, League: "nba", Name: "Boston Celtics", Abbreviation: "BOS", City: "Boston", Provider: "espn"},
	})
	require.NoError(t, err)

	teams, err := store.TeamsByLeague(ctx, "basketball", "nba")
	require.NoError(t, err)
	require.Len(t, teams, 2)

	// Sorted by name, so the Celtics come first.
	assert.Equal(t, "Boston Celtics", teams[0].Name)
	created := teams[1]
	assert.NotEqual(t, created.ID.String(), "00000000-0000-0000-0000-000000000000")

	// Same natural key again updates in place instead of inserting.
	err = store.SaveTeams(ctx, []sports.Team{
		{Sport: sports.SportBasketball, League: "nba", Name: "Los Angeles Lakers", Abbreviation: "LAL", City: "El Segundo", Provider: "thesportsdb"},
	})
	require.NoError(t, err)

	teams, err = store.TeamsByLeague(ctx, "basketball", "nba")
	require.NoError(t, err)
	require.Len(t, teams, 2)

	updated := teams[1]
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "El Segundo", updated.City)
	assert.Equal(t, "thesportsdb", updated.Provider)
	assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, time.Second)
}

func TestStoreSaveGamesMovesScoreForward(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tipoff := time.Date(2025, 3, 1, 19, 30, 0, 0, time.UTC)

	game := sports.Game{
		Sport:     sports.SportBasketball,
		League:    "nba",
		HomeTeam:  "Boston Celtics",
		AwayTeam:  "Los Angeles Lakers",
		StartTime: tipoff,
		Status:    sports.StatusScheduled,
		Provider:  "espn",
	}
	require.NoError(t, store.SaveGames(ctx, []sports.Game{game}))

	stored, err := store.GamesBetween(ctx, "basketball", "nba", tipoff.Add(-time.Hour), tipoff.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, sports.StatusScheduled, stored[0].Status)
	firstID := stored[0].ID

	// The same matchup later in the evening lands on the same row.
	game.Status = sports.StatusInProgress
	game.HomeScore = 58
	game.AwayScore = 55
	require.NoError(t, store.SaveGames(ctx, []sports.Game{game}))

	stored, err = store.GamesBetween(ctx, "basketball", "nba", tipoff.Add(-time.Hour), tipoff.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, firstID, stored[0].ID)
	assert.Equal(t, sports.StatusInProgress, stored[0].Status)
	assert.Equal(t, 58, stored[0].HomeScore)
	assert.Equal(t, 55, stored[0].AwayScore)

	// Outside the window nothing comes back.
	stored, err = store.GamesBetween(ctx, "basketball", "nba", tipoff.Add(24*time.Hour), tipoff.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestStoreGamesBetweenScopedToLeague(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveGames(ctx, []sports.Game{
		{Sport: sports.SportBasketball, League: "nba", HomeTeam: "Boston Celtics", AwayTeam: "Los Angeles Lakers", StartTime: day.Add(19 * time.Hour), Status: sports.StatusScheduled, Provider: "espn"},
		{Sport: sports.SportBaseball, League: "mlb", HomeTeam: "New York Yankees", AwayTeam: "Boston Red Sox", StartTime: day.Add(17 * time.Hour), Status: sports.StatusScheduled, Provider: "espn"},
	}))

	games, err := store.GamesBetween(ctx, "basketball", "nba", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Boston Celtics", games[0].HomeTeam)
}

// TestStoreSaveOddsAppends tests that snapshots accumulate instead of
// replacing each other, so line movement stays visible.
func TestStoreSaveOddsAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	gameKey := "boston celtics|los angeles lakers|2025-03-01"
	captured := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	line := sports.OddsLine{
		GameKey:    gameKey,
		Book:       "draftkings",
		Market:     sports.MarketMoneyline,
		HomePrice:  -150,
		AwayPrice:  130,
		Provider:   "oddsapi",
		CapturedAt: captured,
	}
	require.NoError(t, store.SaveOdds(ctx, []sports.OddsLine{line}))

	line.HomePrice = -165
	line.CapturedAt = captured.Add(30 * time.Minute)
	require.NoError(t, store.SaveOdds(ctx, []sports.OddsLine{line}))

	line.HomePrice = -170
	line.CapturedAt = captured.Add(time.Hour)
	require.NoError(t, store.SaveOdds(ctx, []sports.OddsLine{line}))

	history, err := store.OddsHistory(ctx, gameKey, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Newest snapshot first.
	assert.Equal(t, float64(-170), history[0].HomePrice)
	assert.Equal(t, float64(-150), history[2].HomePrice)

	limited, err := store.OddsHistory(ctx, gameKey, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, float64(-170), limited[0].HomePrice)

	history, err = store.OddsHistory(ctx, "someone else|entirely|2025-03-01", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStoreSaveOddsEmptyBatchIsNoop(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.SaveOdds(context.Background(), nil))
}

func TestStoreLogActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.LogActivity(ctx, sports.FetchActivity{
		Sport:    sports.SportBasketball,
		League:   "nba",
		Resource: "games",
		Provider: "espn",
		Status:   "ok",
		Records:  12,
		Duration: 340 * time.Millisecond,
		RanAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.LogActivity(ctx, sports.FetchActivity{
		Sport:    sports.SportBasketball,
		League:   "nba",
		Resource: "odds",
		Provider: "oddsapi",
		Status:   "failed",
		Error:    "upstream trouble: oddsapi returned status 500",
		RanAt:    time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
	}))

	activity, err := store.RecentActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, activity, 2)

	// Newest attempt first.
	assert.Equal(t, "odds", activity[0].Resource)
	assert.Equal(t, "failed", activity[0].Status)
	assert.Contains(t, activity[0].Error, "status 500")

	assert.Equal(t, "games", activity[1].Resource)
	assert.Equal(t, 12, activity[1].Records)
	assert.Equal(t, int64(340), activity[1].DurationMs)

	limited, err := store.RecentActivity(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "odds", limited[0].Resource)
}

func TestStoreLogActivityStampsMissingRanAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.LogActivity(ctx, sports.FetchActivity{
		Sport:    sports.SportHockey,
		League:   "nhl",
		Resource: "teams",
		Provider: "espn",
		Status:   "ok",
	}))

	activity, err := store.RecentActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.WithinDuration(t, time.Now().UTC(), activity[0].RanAt, 5*time.Second)
}

func TestGameFromDomainCarriesExtras(t *testing.T) {
	game := sports.Game{
		Sport:     sports.SportBasketball,
		League:    "nba",
		HomeTeam:  "Boston Celtics",
		AwayTeam:  "Los Angeles Lakers",
		StartTime: time.Date(2025, 3, 1, 19, 30, 0, 0, time.UTC),
		Extras:    map[string]string{"event_name": "Lakers at Celtics"},
	}

	row := GameFromDomain(game)

	assert.Equal(t, "boston celtics|los angeles lakers|2025-03-01", row.NaturalKey)
	assert.JSONEq(t, `{"event_name": "Lakers at Celtics"}`, string(row.Extras))
}
