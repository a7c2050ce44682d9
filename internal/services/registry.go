package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// Provider interfaces cover the subset of each upstream client the
// factory wires into chains. Concrete clients live in the providers
// package; tests substitute fakes.

type ESPNSource interface {
	GamesByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.Game, error)
	Teams(ctx context.Context, sport sports.Sport, league string) ([]sports.Team, error)
	Roster(ctx context.Context, sport sports.Sport, league, teamID string) ([]sports.Player, error)
}

type SportsDBSource interface {
	GamesByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.Game, error)
	Teams(ctx context.Context, sport sports.Sport, league string) ([]sports.Team, error)
	PlayersByTeam(ctx context.Context, sport sports.Sport, teamName string) ([]sports.Player, error)
}

type BallDontLieSource interface {
	GamesByDate(ctx context.Context, date time.Time) ([]sports.Game, error)
	Teams(ctx context.Context) ([]sports.Team, error)
}

type OddsAPISource interface {
	OddsByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.OddsLine, error)
}

type APISportsSource interface {
	GamesByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.Game, error)
	OddsByDate(ctx context.Context, sport sports.Sport, league string, date time.Time) ([]sports.OddsLine, error)
}

// ProviderSet holds every configured upstream client. Nil entries are
// simply left out of the chains they would feed.
type ProviderSet struct {
	ESPN        ESPNSource
	SportsDB    SportsDBSource
	BallDontLie BallDontLieSource
	OddsAPI     OddsAPISource
	APISports   APISportsSource
}

// FactoryDeps wires a ServiceFactory. Everything is injected so tests
// can assemble a factory from fakes.
type FactoryDeps struct {
	Cache          *CacheService
	Dedup          *Deduplicator
	Limiter        *RateLimiter
	Breakers       *BreakerGroup
	Providers      ProviderSet
	Settings       map[string]ServiceSettings
	Defaults       ServiceSettings
	GateCooldown   time.Duration
	AggregateDelay time.Duration
	Sink           RecordSink
	Hub            *Hub
	Logger         *logrus.Logger
}

// ServiceFactory hands out sport services, one memoized instance per
// sport and league pair. Instances share the deduplicator, rate limiter
// and breaker group; each gets its own cache namespace.
type ServiceFactory struct {
	mu        sync.Mutex
	instances map[string]SportService
	deps      FactoryDeps
	logger    *logrus.Entry
}

func NewServiceFactory(deps FactoryDeps) *ServiceFactory {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Defaults == (ServiceSettings{}) {
		deps.Defaults = DefaultServiceSettings
	}
	if deps.AggregateDelay <= 0 {
		deps.AggregateDelay = 500 * time.Millisecond
	}
	return &ServiceFactory{
		instances: make(map[string]SportService),
		deps:      deps,
		logger:    deps.Logger.WithField("component", "service_factory"),
	}
}

// defaultLeague returns the flagship league of a sport, used when the
// caller omits the league.
func defaultLeague(sport sports.Sport) string {
	switch sport {
	case sports.SportBasketball:
		return "nba"
	case sports.SportBaseball:
		return "mlb"
	case sports.SportHockey:
		return "nhl"
	case sports.SportFootball:
		return "nfl"
	case sports.SportSoccer:
		return "mls"
	default:
		return string(sport)
	}
}

func knownSport(sport sports.Sport) bool {
	switch sport {
	case sports.SportBasketball, sports.SportBaseball, sports.SportHockey,
		sports.SportFootball, sports.SportSoccer:
		return true
	}
	return false
}

// Service returns the service for a sport and league, building it on
// first use. Unknown sports get the generic provider wiring; the only
// hard failure is a factory with no usable providers at all.
func (f *ServiceFactory) Service(sportName, league string) (SportService, error) {
	sport := sports.Normalize(sportName)
	if league == "" {
		league = defaultLeague(sport)
	}
	key := instanceKey(sport, league)

	f.mu.Lock()
	defer f.mu.Unlock()

	if svc, ok := f.instances[key]; ok {
		return svc, nil
	}

	svc, err := f.build(sport, league, key)
	if err != nil {
		return nil, err
	}
	f.instances[key] = svc
	return svc, nil
}

func (f *ServiceFactory) build(sport sports.Sport, league, key string) (SportService, error) {
	p := f.deps.Providers
	if p.ESPN == nil && p.SportsDB == nil && p.APISports == nil {
		return nil, fmt.Errorf("no game providers configured for %s: %w", key, sports.ErrBadConfig)
	}
	if !knownSport(sport) {
		f.logger.WithFields(logrus.Fields{"sport": sport, "league": league}).
			Warn("No dedicated wiring for sport, using generic provider chain")
	}

	settings, ok := f.deps.Settings[string(sport)]
	if !ok {
		settings = f.deps.Defaults
	}

	logger := f.deps.Logger
	scoped := f.deps.Cache.Scoped(key)

	svc := &SportDataService{
		sport:    sport,
		league:   league,
		key:      key,
		settings: settings,
		cache:    scoped,
		orch:     NewOrchestrator(scoped, f.deps.Dedup, f.deps.Limiter, f.deps.Breakers, logger),
		breakers: f.deps.Breakers,
		games:    f.gamesChain(sport, league, key, logger),
		teams:    f.teamsChain(sport, league, key, logger),
		players:  f.playersChain(sport, league, key, logger),
		odds:     f.oddsChain(sport, league, key, logger),
		sink:     f.deps.Sink,
		hub:      f.deps.Hub,
		logger:   logger.WithField("component", "sport_service").WithField("service", key),
	}

	f.logger.WithFields(logrus.Fields{"sport": sport, "league": league}).Info("Built sport service")
	return svc, nil
}

func (f *ServiceFactory) gamesChain(sport sports.Sport, league, key string, logger *logrus.Logger) *Chain[sports.Game] {
	p := f.deps.Providers
	var sources []ChainSource[sports.Game]

	if p.ESPN != nil {
		espn := p.ESPN
		sources = append(sources, ChainSource[sports.Game]{
			Provider: "espn",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Game, error) {
				return espn.GamesByDate(ctx, sport, league, params.Date)
			},
		})
	}
	if p.SportsDB != nil {
		sdb := p.SportsDB
		sources = append(sources, ChainSource[sports.Game]{
			Provider: "thesportsdb",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Game, error) {
				return sdb.GamesByDate(ctx, sport, league, params.Date)
			},
		})
	}
	if p.BallDontLie != nil && sport == sports.SportBasketball && strings.EqualFold(league, "nba") {
		bdl := p.BallDontLie
		sources = append(sources, ChainSource[sports.Game]{
			Provider: "balldontlie",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Game, error) {
				return bdl.GamesByDate(ctx, params.Date)
			},
		})
	}
	if p.APISports != nil {
		aps := p.APISports
		sources = append(sources, ChainSource[sports.Game]{
			Provider:   "apisports",
			LastResort: true,
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Game, error) {
				return aps.GamesByDate(ctx, sport, league, params.Date)
			},
		})
	}

	return NewChain(key+":games", ModeFirstSuccess, f.deps.GateCooldown, logger, sources...)
}

func (f *ServiceFactory) teamsChain(sport sports.Sport, league, key string, logger *logrus.Logger) *Chain[sports.Team] {
	p := f.deps.Providers
	var sources []ChainSource[sports.Team]

	if p.ESPN != nil {
		espn := p.ESPN
		sources = append(sources, ChainSource[sports.Team]{
			Provider: "espn",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Team, error) {
				return espn.Teams(ctx, sport, league)
			},
		})
	}
	if p.SportsDB != nil {
		sdb := p.SportsDB
		sources = append(sources, ChainSource[sports.Team]{
			Provider: "thesportsdb",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Team, error) {
				return sdb.Teams(ctx, sport, league)
			},
		})
	}
	if p.BallDontLie != nil && sport == sports.SportBasketball && strings.EqualFold(league, "nba") {
		bdl := p.BallDontLie
		sources = append(sources, ChainSource[sports.Team]{
			Provider: "balldontlie",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Team, error) {
				return bdl.Teams(ctx)
			},
		})
	}

	return NewChain(key+":teams", ModeFirstSuccess, f.deps.GateCooldown, logger, sources...)
}

func (f *ServiceFactory) playersChain(sport sports.Sport, league, key string, logger *logrus.Logger) *Chain[sports.Player] {
	p := f.deps.Providers
	var sources []ChainSource[sports.Player]

	if p.ESPN != nil {
		espn := p.ESPN
		sources = append(sources, ChainSource[sports.Player]{
			Provider: "espn",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Player, error) {
				teamID, err := resolveESPNTeamID(ctx, espn, sport, league, params.Team)
				if err != nil {
					return nil, err
				}
				return espn.Roster(ctx, sport, league, teamID)
			},
		})
	}
	if p.SportsDB != nil {
		sdb := p.SportsDB
		sources = append(sources, ChainSource[sports.Player]{
			Provider: "thesportsdb",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.Player, error) {
				return sdb.PlayersByTeam(ctx, sport, params.Team)
			},
		})
	}

	return NewChain(key+":players", ModeFirstSuccess, f.deps.GateCooldown, logger, sources...)
}

func (f *ServiceFactory) oddsChain(sport sports.Sport, league, key string, logger *logrus.Logger) *Chain[sports.OddsLine] {
	p := f.deps.Providers
	var sources []ChainSource[sports.OddsLine]

	if p.OddsAPI != nil {
		odds := p.OddsAPI
		sources = append(sources, ChainSource[sports.OddsLine]{
			Provider: "oddsapi",
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.OddsLine, error) {
				return odds.OddsByDate(ctx, sport, league, params.Date)
			},
		})
	}
	if p.APISports != nil {
		aps := p.APISports
		sources = append(sources, ChainSource[sports.OddsLine]{
			Provider:   "apisports",
			LastResort: true,
			Fetch: func(ctx context.Context, params ChainParams) ([]sports.OddsLine, error) {
				return aps.OddsByDate(ctx, sport, league, params.Date)
			},
		})
	}

	// Odds merge across providers, each covers different bookmakers.
	return NewChain(key+":odds", ModeMerge, f.deps.GateCooldown, logger, sources...)
}

// resolveESPNTeamID finds the ESPN team ID for a team name or
// abbreviation via the provider's team list.
func resolveESPNTeamID(ctx context.Context, espn ESPNSource, sport sports.Sport, league, team string) (string, error) {
	teams, err := espn.Teams(ctx, sport, league)
	if err != nil {
		return "", err
	}
	query := strings.ToLower(strings.TrimSpace(team))
	for _, t := range teams {
		if strings.ToLower(t.Abbreviation) == query {
			return t.ExternalID, nil
		}
	}
	for _, t := range teams {
		if strings.Contains(strings.ToLower(t.Name), query) {
			return t.ExternalID, nil
		}
	}
	return "", fmt.Errorf("%w: no team matching %q", sports.ErrNoData, team)
}

// Services returns the instantiated services in stable key order.
func (f *ServiceFactory) Services() []SportService {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.instances))
	for key := range f.instances {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	services := make([]SportService, 0, len(keys))
	for _, key := range keys {
		services = append(services, f.instances[key])
	}
	return services
}

// AggregateDelay is the pause between per-service calls in aggregate
// operations, keeping bursts off shared upstreams.
func (f *ServiceFactory) AggregateDelay() time.Duration {
	return f.deps.AggregateDelay
}

// HealthCheckAll probes every instantiated service sequentially,
// pausing between services. Stops early when ctx is cancelled.
func (f *ServiceFactory) HealthCheckAll(ctx context.Context) map[string]sports.ServiceHealth {
	results := make(map[string]sports.ServiceHealth)
	for i, svc := range f.Services() {
		if i > 0 {
			if !sleepCtx(ctx, f.deps.AggregateDelay) {
				break
			}
		}
		health := svc.HealthCheck(ctx)
		results[instanceKey(health.Sport, health.League)] = health
	}
	return results
}

// ClearAllCaches clears every instantiated service's cache sequentially
// and returns how many services were cleared.
func (f *ServiceFactory) ClearAllCaches(ctx context.Context) int {
	cleared := 0
	for i, svc := range f.Services() {
		if i > 0 {
			if !sleepCtx(ctx, f.deps.AggregateDelay) {
				break
			}
		}
		svc.ClearCache(ctx)
		cleared++
	}
	return cleared
}

// sleepCtx pauses for d unless ctx ends first. Reports whether the full
// pause elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
