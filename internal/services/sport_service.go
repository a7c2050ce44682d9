package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// SportService is the per-sport data surface consumed by the HTTP layer
// and the refresh scheduler.
type SportService interface {
	Sport() sports.Sport
	League() string
	GamesByDate(ctx context.Context, date time.Time) ([]sports.Game, Outcome, error)
	Teams(ctx context.Context) ([]sports.Team, Outcome, error)
	Players(ctx context.Context, team string) ([]sports.Player, Outcome, error)
	OddsByDate(ctx context.Context, date time.Time) ([]sports.OddsLine, Outcome, error)
	HealthCheck(ctx context.Context) sports.ServiceHealth
	ClearCache(ctx context.Context)
}

// ServiceSettings configures one sport service instance. TTLs follow the
// volatility of each resource: games go stale in minutes, team lists in
// a day.
type ServiceSettings struct {
	GamesTTL          time.Duration
	TeamsTTL          time.Duration
	PlayersTTL        time.Duration
	OddsTTL           time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	RateLimitProvider string
	LocalOnly         bool
}

// DefaultServiceSettings is used for sports without explicit settings.
var DefaultServiceSettings = ServiceSettings{
	GamesTTL:          5 * time.Minute,
	TeamsTTL:          24 * time.Hour,
	PlayersTTL:        12 * time.Hour,
	OddsTTL:           15 * time.Minute,
	RetryAttempts:     3,
	RetryDelay:        2 * time.Second,
	RateLimitProvider: "espn",
}

// RecordSink receives successfully fetched rows for persistence and the
// activity log. A nil sink disables persistence.
type RecordSink interface {
	SaveGames(ctx context.Context, games []sports.Game) error
	SaveTeams(ctx context.Context, teams []sports.Team) error
	SaveOdds(ctx context.Context, lines []sports.OddsLine) error
	LogActivity(ctx context.Context, activity sports.FetchActivity) error
}

// SportDataService is the chain-backed SportService implementation. One
// instance serves one sport and league pair; all sports share the same
// deduplicator, rate limiter and breaker group through the orchestrator
// while each instance owns its cache namespace.
type SportDataService struct {
	sport    sports.Sport
	league   string
	key      string
	settings ServiceSettings

	cache    *CacheService
	orch     *Orchestrator
	breakers *BreakerGroup

	games   *Chain[sports.Game]
	teams   *Chain[sports.Team]
	players *Chain[sports.Player]
	odds    *Chain[sports.OddsLine]

	sink   RecordSink
	hub    *Hub
	logger *logrus.Entry
}

func (s *SportDataService) Sport() sports.Sport { return s.sport }
func (s *SportDataService) League() string { return s.league }

// GamesByDate returns the schedule and scores for one calendar date.
func (s *SportDataService) GamesByDate(ctx context.Context, date time.Time) ([]sports.Game, Outcome, error) {
	games := make([]sports.Game, 0)
	key := sports.CacheKey("games", date.Format("2006-01-02"))

	started := time.Now()
	outcome, err := s.orch.GetCachedOrFetch(ctx, key, s.fetchOptions(s.settings.GamesTTL), &games, func(fctx context.Context) (interface{}, error) {
		return s.games.Fetch(fctx, ChainParams{Date: date})
	})
	if err != nil {
		return games, outcome, err
	}

	s.afterFetch(ctx, "games", outcome, len(games), time.Since(started), func(bg context.Context) error {
		return s.sink.SaveGames(bg, games)
	})
	return games, outcome, nil
}

// Teams returns the league's teams.
func (s *SportDataService) Teams(ctx context.Context) ([]sports.Team, Outcome, error) {
	teams := make([]sports.Team, 0)
	key := sports.CacheKey("teams")

	started := time.Now()
	outcome, err := s.orch.GetCachedOrFetch(ctx, key, s.fetchOptions(s.settings.TeamsTTL), &teams, func(fctx context.Context) (interface{}, error) {
		return s.teams.Fetch(fctx, ChainParams{})
	})
	if err != nil {
		return teams, outcome, err
	}

	s.afterFetch(ctx, "teams", outcome, len(teams), time.Since(started), func(bg context.Context) error {
		return s.sink.SaveTeams(bg, teams)
	})
	return teams, outcome, nil
}

// Players returns the roster of one team, looked up by name or
// abbreviation.
func (s *SportDataService) Players(ctx context.Context, team string) ([]sports.Player, Outcome, error) {
	players := make([]sports.Player, 0)
	team = strings.TrimSpace(team)
	if team == "" {
		return players, Outcome{Status: OutcomeFailed, Err: sports.ErrNoData}, nil
	}
	key := sports.CacheKey("players", team)

	started := time.Now()
	outcome, err := s.orch.GetCachedOrFetch(ctx, key, s.fetchOptions(s.settings.PlayersTTL), &players, func(fctx context.Context) (interface{}, error) {
		return s.players.Fetch(fctx, ChainParams{Team: team})
	})
	if err != nil {
		return players, outcome, err
	}

	s.afterFetch(ctx, "players", outcome, len(players), time.Since(started), nil)
	return players, outcome, nil
}

// OddsByDate returns every bookmaker line for games on one date. The
// chain runs in merge mode, each provider covers different books.
func (s *SportDataService) OddsByDate(ctx context.Context, date time.Time) ([]sports.OddsLine, Outcome, error) {
	lines := make([]sports.OddsLine, 0)
	key := sports.CacheKey("odds", date.Format("2006-01-02"))

	started := time.Now()
	outcome, err := s.orch.GetCachedOrFetch(ctx, key, s.fetchOptions(s.settings.OddsTTL), &lines, func(fctx context.Context) (interface{}, error) {
		return s.odds.Fetch(fctx, ChainParams{Date: date})
	})
	if err != nil {
		return lines, outcome, err
	}

	s.afterFetch(ctx, "odds", outcome, len(lines), time.Since(started), func(bg context.Context) error {
		return s.sink.SaveOdds(bg, lines)
	})
	return lines, outcome, nil
}

// HealthCheck reports cache and breaker state without touching upstream.
func (s *SportDataService) HealthCheck(ctx context.Context) sports.ServiceHealth {
	stats := s.cache.Stats(ctx)
	breakerState := s.breakers.State(s.key).String()
	return sports.ServiceHealth{
		Sport:        s.sport,
		League:       s.league,
		Healthy:      breakerState != "open",
		CacheEntries: stats.Entries,
		CacheHits:    stats.Hits,
		CacheMisses:  stats.Misses,
		Breakers:     map[string]string{s.key: breakerState},
		CheckedAt:    time.Now().UTC(),
	}
}

// ClearCache wipes this instance's cache namespace.
func (s *SportDataService) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
}

func (s *SportDataService) fetchOptions(ttl time.Duration) FetchOptions {
	return FetchOptions{
		Service:   s.key,
		Provider:  s.settings.RateLimitProvider,
		TTL:       ttl,
		LocalOnly: s.settings.LocalOnly,
		Retry:     RetryPolicy{Attempts: s.settings.RetryAttempts, Delay: s.settings.RetryDelay},
	}
}

// afterFetch records activity and persists rows after a real upstream
// attempt. Cache hits and coalesced requests did not touch upstream, so
// they leave no activity trail.
func (s *SportDataService) afterFetch(ctx context.Context, resource string, outcome Outcome, records int, took time.Duration, persist func(context.Context) error) {
	if outcome.Shared || outcome.Status == OutcomeCacheHit || outcome.Status == OutcomeLocalOnly {
		return
	}

	activity := sports.FetchActivity{
		Sport:    s.sport,
		League:   s.league,
		Resource: resource,
		Provider: s.settings.RateLimitProvider,
		Status:   string(outcome.Status),
		Records:  records,
		Duration: took,
		RanAt:    time.Now().UTC(),
	}
	if outcome.Err != nil {
		activity.Error = outcome.Err.Error()
	}

	shouldPersist := outcome.Status == OutcomeFetched && persist != nil && s.sink != nil

	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if s.sink != nil {
			if err := s.sink.LogActivity(bg, activity); err != nil {
				s.logger.WithError(err).Warn("Failed to log fetch activity")
			}
		}
		if shouldPersist {
			if err := persist(bg); err != nil {
				s.logger.WithError(err).WithField("resource", resource).Warn("Failed to persist fetched records")
			}
		}
	}()

	if s.hub != nil && outcome.Status == OutcomeFetched {
		s.hub.Broadcast(RefreshEvent{
			Sport:    s.sport,
			League:   s.league,
			Resource: resource,
			Records:  records,
			Status:   string(outcome.Status),
			At:       time.Now().UTC(),
		})
	}
}

// instanceKey builds the registry and breaker key of one sport service.
func instanceKey(sport sports.Sport, league string) string {
	return fmt.Sprintf("%s:%s", strings.ToLower(string(sport)), strings.ToLower(league))
}
