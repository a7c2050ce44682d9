package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/projectapex/sportsdata/internal/sports"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Cache
	CacheBackend    string        `mapstructure:"CACHE_BACKEND"` // "redis", "bolt" or "off"
	RedisURL        string        `mapstructure:"REDIS_URL"`
	BoltPath        string        `mapstructure:"BOLT_PATH"`
	CacheDefaultTTL time.Duration `mapstructure:"CACHE_DEFAULT_TTL"`

	// External API keys
	BallDontLieAPIKey string `mapstructure:"BALLDONTLIE_API_KEY"`
	TheSportsDBAPIKey string `mapstructure:"THESPORTSDB_API_KEY"`
	OddsAPIKey        string `mapstructure:"ODDS_API_KEY"`
	APISportsAPIKey   string `mapstructure:"APISPORTS_API_KEY"`

	// Resource TTLs
	GamesTTL   time.Duration `mapstructure:"GAMES_TTL"`
	TeamsTTL   time.Duration `mapstructure:"TEAMS_TTL"`
	PlayersTTL time.Duration `mapstructure:"PLAYERS_TTL"`
	OddsTTL    time.Duration `mapstructure:"ODDS_TTL"`

	// Resilience
	RetryAttempts           int           `mapstructure:"RETRY_ATTEMPTS"`
	RetryDelay              time.Duration `mapstructure:"RETRY_DELAY"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`
	CircuitBreakerCooldown  time.Duration `mapstructure:"CIRCUIT_BREAKER_COOLDOWN"`
	LastResortCooldown      time.Duration `mapstructure:"LAST_RESORT_COOLDOWN"`
	AggregateCallDelay      time.Duration `mapstructure:"AGGREGATE_CALL_DELAY"`

	// Provider quota defaults, applied to every provider
	RateLimitBurst     int `mapstructure:"RATE_LIMIT_BURST"`
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	RateLimitPerHour   int `mapstructure:"RATE_LIMIT_PER_HOUR"`
	RateLimitPerDay    int `mapstructure:"RATE_LIMIT_PER_DAY"`

	// Tighter daily caps for the metered providers
	OddsAPIPerDay   int `mapstructure:"ODDS_API_PER_DAY"`
	APISportsPerDay int `mapstructure:"APISPORTS_PER_DAY"`

	// Background jobs
	EnableBackgroundJobs bool          `mapstructure:"ENABLE_BACKGROUND_JOBS"`
	TeamsRefreshCron     string        `mapstructure:"TEAMS_REFRESH_CRON"`
	ScheduleRefreshCron  string        `mapstructure:"SCHEDULE_REFRESH_CRON"`
	OddsRefreshCron      string        `mapstructure:"ODDS_REFRESH_CRON"`
	CacheWarmCron        string        `mapstructure:"CACHE_WARM_CRON"`
	JobTimeout           time.Duration `mapstructure:"JOB_TIMEOUT"`

	// Feature flags
	EnableWebsocket bool     `mapstructure:"ENABLE_WEBSOCKET"`
	SupportedSports []string `mapstructure:"SUPPORTED_SPORTS"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("DATABASE_URL", "") // empty falls back to a local SQLite file

	viper.SetDefault("CACHE_BACKEND", "bolt")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("BOLT_PATH", "sportsdata-cache.db")
	viper.SetDefault("CACHE_DEFAULT_TTL", "5m")

	viper.SetDefault("BALLDONTLIE_API_KEY", "")
	viper.SetDefault("THESPORTSDB_API_KEY", "3") // Free tier
	viper.SetDefault("ODDS_API_KEY", "")
	viper.SetDefault("APISPORTS_API_KEY", "")

	viper.SetDefault("GAMES_TTL", "5m")
	viper.SetDefault("TEAMS_TTL", "24h")
	viper.SetDefault("PLAYERS_TTL", "12h")
	viper.SetDefault("ODDS_TTL", "15m")

	viper.SetDefault("RETRY_ATTEMPTS", 3)
	viper.SetDefault("RETRY_DELAY", "2s")
	viper.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5) // Open after 5 consecutive failures
	viper.SetDefault("CIRCUIT_BREAKER_COOLDOWN", "60s")
	viper.SetDefault("LAST_RESORT_COOLDOWN", "5m")
	viper.SetDefault("AGGREGATE_CALL_DELAY", "500ms")

	viper.SetDefault("RATE_LIMIT_BURST", 5)
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("RATE_LIMIT_PER_HOUR", 200)
	viper.SetDefault("RATE_LIMIT_PER_DAY", 1000)
	viper.SetDefault("ODDS_API_PER_DAY", 400) // Free tier is 500/month
	viper.SetDefault("APISPORTS_PER_DAY", 90) // Free tier is 100/day

	viper.SetDefault("ENABLE_BACKGROUND_JOBS", true)
	viper.SetDefault("TEAMS_REFRESH_CRON", "0 6 * * *")
	viper.SetDefault("SCHEDULE_REFRESH_CRON", "0 * * * *")
	viper.SetDefault("ODDS_REFRESH_CRON", "*/15 * * * *")
	viper.SetDefault("CACHE_WARM_CRON", "30 5 * * *")
	viper.SetDefault("JOB_TIMEOUT", "5m")

	viper.SetDefault("ENABLE_WEBSOCKET", true)
	viper.SetDefault("SUPPORTED_SPORTS", "basketball:nba,baseball:mlb,hockey:nhl,football:nfl")

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse comma-separated lists
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}
	if sportsStr := viper.GetString("SUPPORTED_SPORTS"); sportsStr != "" {
		config.SupportedSports = strings.Split(sportsStr, ",")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case "redis", "bolt", "off":
	default:
		return fmt.Errorf("%w: CACHE_BACKEND must be redis, bolt or off, got %q", sports.ErrBadConfig, c.CacheBackend)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: RETRY_ATTEMPTS must be at least 1", sports.ErrBadConfig)
	}
	if c.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("%w: CIRCUIT_BREAKER_THRESHOLD must be at least 1", sports.ErrBadConfig)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SportLeague is one "sport:league" entry from SUPPORTED_SPORTS.
type SportLeague struct {
	Sport  string
	League string
}

// SportLeagues parses the SUPPORTED_SPORTS list. The league part is
// optional, "basketball" alone means the sport's flagship league.
func (c *Config) SportLeagues() []SportLeague {
	entries := make([]SportLeague, 0, len(c.SupportedSports))
	for _, raw := range c.SupportedSports {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		sport, league, _ := strings.Cut(raw, ":")
		entries = append(entries, SportLeague{
			Sport:  strings.TrimSpace(sport),
			League: strings.TrimSpace(league),
		})
	}
	return entries
}
