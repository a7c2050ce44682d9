package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectapex/sportsdata/internal/sports"
)

type fakeESPN struct {
	games      []sports.Game
	teams      []sports.Team
	roster     map[string][]sports.Player
	gamesErr   error
	gamesCalls int
	teamsCalls int
}

func (f *fakeESPN) GamesByDate(context.Context, sports.Sport, string, time.Time) ([]sports.Game, error) {
	f.gamesCalls++
	return f.games, f.gamesErr
}

func (f *fakeESPN) Teams(context.Context, sports.Sport, string) ([]sports.Team, error) {
	f.teamsCalls++
	return f.teams, nil
}

func (f *fakeESPN) Roster(_ context.Context, _ sports.Sport, _ string, teamID string) ([]sports.Player, error) {
	return f.roster[teamID], nil
}

type fakeSportsDB struct {
	games      []sports.Game
	teams      []sports.Team
	players    map[string][]sports.Player
	gamesCalls int
}

func (f *fakeSportsDB) GamesByDate(context.Context, sports.Sport, string, time.Time) ([]sports.Game, error) {
	f.gamesCalls++
	return f.games, nil
}

func (f *fakeSportsDB) Teams(context.Context, sports.Sport, string) ([]sports.Team, error) {
	return f.teams, nil
}

func (f *fakeSportsDB) PlayersByTeam(_ context.Context, _ sports.Sport, teamName string) ([]sports.Player, error) {
	return f.players[teamName], nil
}

type fakeOddsAPI struct {
	lines []sports.OddsLine
	calls int
}

func (f *fakeOddsAPI) OddsByDate(context.Context, sports.Sport, string, time.Time) ([]sports.OddsLine, error) {
	f.calls++
	return f.lines, nil
}

type fakeAPISports struct {
	games      []sports.Game
	lines      []sports.OddsLine
	gamesCalls int
	oddsCalls  int
}

func (f *fakeAPISports) GamesByDate(context.Context, sports.Sport, string, time.Time) ([]sports.Game, error) {
	f.gamesCalls++
	return f.games, nil
}

func (f *fakeAPISports) OddsByDate(context.Context, sports.Sport, string, time.Time) ([]sports.OddsLine, error) {
	f.oddsCalls++
	return f.lines, nil
}

func mkGame(home, away, provider string, date time.Time) sports.Game {
	return sports.Game{
		Sport:     sports.SportBasketball,
		League:    "nba",
		HomeTeam:  home,
		AwayTeam:  away,
		StartTime: date,
		Status:    sports.StatusScheduled,
		Provider:  provider,
	}
}

func newTestFactory(set ProviderSet) *ServiceFactory {
	log := logrus.New()
	return NewServiceFactory(FactoryDeps{
		Cache:   NewCacheService(nil, "test", time.Minute, log),
		Dedup:   NewDeduplicator(log),
		Limiter: NewRateLimiter(map[string]ProviderLimits{
			"espn": {Burst: 100, PerMinute: 1000, PerHour: 1000, PerDay: 1000},
		}, log),
		Breakers:  NewBreakerGroup(5, time.Minute, log),
		Providers: set,
		Defaults: ServiceSettings{
			GamesTTL:          time.Minute,
			TeamsTTL:          time.Minute,
			PlayersTTL:        time.Minute,
			OddsTTL:           time.Minute,
			RetryAttempts:     1,
			RetryDelay:        time.Millisecond,
			RateLimitProvider: "espn",
		},
		AggregateDelay: time.Millisecond,
		Logger:         log,
	})
}

// TestFactoryMemoizesServices tests that each sport and league pair is
// built once and reused.
func TestFactoryMemoizesServices(t *testing.T) {
	factory := newTestFactory(ProviderSet{ESPN: &fakeESPN{}})

	first, err := factory.Service("basketball", "nba")
	require.NoError(t, err)
	again, err := factory.Service("basketball", "nba")
	require.NoError(t, err)
	assert.Same(t, first, again)

	other, err := factory.Service("basketball", "wnba")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

// TestFactoryNormalizesSportAndLeague tests alias handling: league names
// map onto their sport and an omitted league gets the flagship one.
func TestFactoryNormalizesSportAndLeague(t *testing.T) {
	factory := newTestFactory(ProviderSet{ESPN: &fakeESPN{}})

	svc, err := factory.Service("nba", "")
	require.NoError(t, err)
	assert.Equal(t, sports.SportBasketball, svc.Sport())
	assert.Equal(t, "nba", svc.League())

	canonical, err := factory.Service("basketball", "nba")
	require.NoError(t, err)
	assert.Same(t, svc, canonical)

	hockey, err := factory.Service("hockey", "")
	require.NoError(t, err)
	assert.Equal(t, "nhl", hockey.League())
}

func TestFactoryWithoutGameProvidersFails(t *testing.T) {
	factory := newTestFactory(ProviderSet{OddsAPI: &fakeOddsAPI{}})

	_, err := factory.Service("basketball", "nba")
	assert.ErrorIs(t, err, sports.ErrBadConfig)
}

// TestFactoryPerSportSettingsOverride tests that a sport with its own
// settings entry uses them instead of the defaults. Basketball is pinned
// local-only here, so its reads never reach the provider while hockey
// still fetches.
func TestFactoryPerSportSettingsOverride(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	espn := &fakeESPN{games: []sports.Game{mkGame("Celtics", "Lakers", "espn", date)}}
	log := logrus.New()

	factory := NewServiceFactory(FactoryDeps{
		Cache:   NewCacheService(nil, "test", time.Minute, log),
		Dedup:   NewDeduplicator(log),
		Limiter: NewRateLimiter(map[string]ProviderLimits{
			"espn": {Burst: 100, PerMinute: 1000, PerHour: 1000, PerDay: 1000},
		}, log),
		Breakers:  NewBreakerGroup(5, time.Minute, log),
		Providers: ProviderSet{ESPN: espn},
		Settings: map[string]ServiceSettings{
			"basketball": {
				GamesTTL:          time.Minute,
				TeamsTTL:          time.Minute,
				PlayersTTL:        time.Minute,
				OddsTTL:           time.Minute,
				RetryAttempts:     1,
				RetryDelay:        time.Millisecond,
				RateLimitProvider: "espn",
				LocalOnly:         true,
			},
		},
		Defaults: ServiceSettings{
			GamesTTL:          time.Minute,
			TeamsTTL:          time.Minute,
			PlayersTTL:        time.Minute,
			OddsTTL:           time.Minute,
			RetryAttempts:     1,
			RetryDelay:        time.Millisecond,
			RateLimitProvider: "espn",
		},
		AggregateDelay: time.Millisecond,
		Logger:         log,
	})

	basketball, err := factory.Service("basketball", "nba")
	require.NoError(t, err)
	games, outcome, err := basketball.GamesByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLocalOnly, outcome.Status)
	assert.Empty(t, games)
	assert.Zero(t, espn.gamesCalls)

	hockey, err := factory.Service("hockey", "nhl")
	require.NoError(t, err)
	_, outcome, err = hockey.GamesByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetched, outcome.Status)
	assert.Equal(t, 1, espn.gamesCalls)
}

// TestFactoryUnknownSportUsesGenericChain tests that an unrecognized
// sport still gets served through the generic provider wiring.
func TestFactoryUnknownSportUsesGenericChain(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	espn := &fakeESPN{games: []sports.Game{mkGame("Mumbai", "Chennai", "espn", date)}}
	factory := newTestFactory(ProviderSet{ESPN: espn})

	svc, err := factory.Service("cricket", "ipl")
	require.NoError(t, err)

	games, outcome, err := svc.GamesByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetched, outcome.Status)
	require.Len(t, games, 1)
	assert.Equal(t, "espn", games[0].Provider)
}

// TestServiceGamesCachesSecondRead tests the full service path: first
// read fetches upstream, second is served from cache.
func TestServiceGamesCachesSecondRead(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	espn := &fakeESPN{games: []sports.Game{mkGame("Celtics", "Lakers", "espn", date)}}
	factory := newTestFactory(ProviderSet{ESPN: espn})

	svc, err := factory.Service("basketball", "nba")
	require.NoError(t, err)

	games, outcome, err := svc.GamesByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetched, outcome.Status)
	require.Len(t, games, 1)

	games, outcome, err = svc.GamesByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCacheHit, outcome.Status)
	require.Len(t, games, 1)
	assert.Equal(t, 1, espn.gamesCalls)
}

// TestServiceFallsBackToSecondaryProvider tests that a failing primary
// hands the request to the next provider in the chain.
func TestServiceFallsBackToSecondaryProvider(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	espn := &fakeESPN{gamesErr: assert.AnError}
	sdb := &fakeSportsDB{games: []sports.Game{mkGame("Celtics", "Lakers", "thesportsdb", date)}}
	factory := newTestFactory(ProviderSet{ESPN: espn, SportsDB: sdb})

	svc, err := factory.Service("basketball", "nba")
	require.NoError(t, err)

	games, outcome, err := svc.GamesByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetched, outcome.Status)
	require.Len(t, games, 1)
	assert.Equal(t, "thesportsdb", games[0].Provider)
	assert.Equal(t, 1, espn.gamesCalls)
	assert.Equal(t, 1, sdb.gamesCalls)
}

// TestServicePlayersResolvesTeam tests the roster path: the team query
// is resolved to an ESPN team ID through the provider's team list.
func TestServicePlayersResolvesTeam(t *testing.T) {
	espn := &fakeESPN{
		teams: []sports.Team{
			{ExternalID: "13", Sport: sports.SportBasketball, League: "nba", Name: "Los Angeles Lakers", Abbreviation: "LAL", Provider: "espn"},
		},
		roster: map[string][]sports.Player{
			"13": {{Name: "LeBron James", TeamName: "Los Angeles Lakers", Provider: "espn"}},
		},
	}
	factory := newTestFactory(ProviderSet{ESPN: espn})

	svc, err := factory.Service("basketball", "nba")
	require.NoError(t, err)

	players, outcome, err := svc.Players(context.Background(), "LAL")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetched, outcome.Status)
	require.Len(t, players, 1)
	assert.Equal(t, "LeBron James", players[0].Name)

	// Partial team names resolve too, on their own cache key.
	players, _, err = svc.Players(context.Background(), "lakers")
	require.NoError(t, err)
	require.Len(t, players, 1)
}

func TestServicePlayersRequiresTeam(t *testing.T) {
	factory := newTestFactory(ProviderSet{ESPN: &fakeESPN{}})
	svc, err := factory.Service("basketball", "nba")
	require.NoError(t, err)

	players, outcome, err := svc.Players(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, players)
	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, sports.ErrNoData)
}

// TestServiceOddsPrefersFreeProvider tests that the merged odds chain
// leaves the hard-capped provider idle while the free one answers.
func TestServiceOddsPrefersFreeProvider(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	odds := &fakeOddsAPI{lines: []sports.OddsLine{
		{GameKey: "celtics|lakers|2025-03-01", Book: "draftkings", Market: sports.MarketMoneyline, Provider: "oddsapi"},
	}}
	paid := &fakeAPISports{lines: []sports.OddsLine{
		{GameKey: "celtics|lakers|2025-03-01", Book: "bet365", Market: sports.MarketMoneyline, Provider: "apisports"},
	}}
	factory := newTestFactory(ProviderSet{ESPN: &fakeESPN{}, OddsAPI: odds, APISports: paid})

	svc, err := factory.Service("basketball", "nba")
	require.NoError(t, err)

	lines, outcome, err := svc.OddsByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetched, outcome.Status)
	require.Len(t, lines, 1)
	assert.Equal(t, "oddsapi", lines[0].Provider)
	assert.Equal(t, 1, odds.calls)
	assert.Equal(t, 0, paid.oddsCalls)
}

func TestFactoryServicesSortedByKey(t *testing.T) {
	factory := newTestFactory(ProviderSet{ESPN: &fakeESPN{}})

	_, err := factory.Service("basketball", "nba")
	require.NoError(t, err)
	_, err = factory.Service("baseball", "mlb")
	require.NoError(t, err)

	services := factory.Services()
	require.Len(t, services, 2)
	assert.Equal(t, sports.SportBaseball, services[0].Sport())
	assert.Equal(t, sports.SportBasketball, services[1].Sport())
}

// TestHealthCheckAllCoversEveryService tests the sequential aggregate
// probe over all instantiated services.
func TestHealthCheckAllCoversEveryService(t *testing.T) {
	factory := newTestFactory(ProviderSet{ESPN: &fakeESPN{}})

	_, err := factory.Service("basketball", "nba")
	require.NoError(t, err)
	_, err = factory.Service("hockey", "nhl")
	require.NoError(t, err)

	results := factory.HealthCheckAll(context.Background())
	require.Len(t, results, 2)
	assert.True(t, results["basketball:nba"].Healthy)
	assert.True(t, results["hockey:nhl"].Healthy)
}

// TestClearAllCachesStopsOnCancel tests that aggregate operations give
// up between services once the context ends.
func TestClearAllCachesStopsOnCancel(t *testing.T) {
	factory := newTestFactory(ProviderSet{ESPN: &fakeESPN{}})

	_, err := factory.Service("basketball", "nba")
	require.NoError(t, err)
	_, err = factory.Service("baseball", "mlb")
	require.NoError(t, err)

	assert.Equal(t, 2, factory.ClearAllCaches(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 1, factory.ClearAllCaches(ctx), "cancellation stops after the in-progress service")
}
