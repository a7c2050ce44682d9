package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/api"
	"github.com/projectapex/sportsdata/internal/api/middleware"
	"github.com/projectapex/sportsdata/internal/models"
	"github.com/projectapex/sportsdata/internal/providers"
	"github.com/projectapex/sportsdata/internal/services"
	"github.com/projectapex/sportsdata/pkg/config"
	"github.com/projectapex/sportsdata/pkg/database"
	"github.com/projectapex/sportsdata/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	log := logger.Init(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := models.NewStore(db, log)
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Open the durable cache tier. Losing it is not fatal, the service
	// degrades to its in-process tier.
	durable, closeDurable := openDurableCache(cfg, log)
	if closeDurable != nil {
		defer closeDurable()
	}

	// Resilience core shared by every sport service
	rootCache := services.NewCacheService(durable, "sportsdata", cfg.CacheDefaultTTL, log)
	dedup := services.NewDeduplicator(log)
	limiter := services.NewRateLimiter(providerLimits(cfg), log)
	breakers := services.NewBreakerGroup(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown, log)

	// Upstream clients. Keyless providers are always on; the rest join
	// only when their key is configured.
	providerSet := services.ProviderSet{
		ESPN:     providers.NewESPNClient(log),
		SportsDB: providers.NewSportsDBClient(cfg.TheSportsDBAPIKey, log),
	}
	if cfg.BallDontLieAPIKey != "" {
		providerSet.BallDontLie = providers.NewBallDontLieClient(cfg.BallDontLieAPIKey, log)
	}
	if cfg.OddsAPIKey != "" {
		providerSet.OddsAPI = providers.NewOddsAPIClient(cfg.OddsAPIKey, log)
	}
	if cfg.APISportsAPIKey != "" {
		providerSet.APISports = providers.NewAPISportsClient(cfg.APISportsAPIKey, log)
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	var hub *services.Hub
	if cfg.EnableWebsocket {
		hub = services.NewHub(log)
		go hub.Run(appCtx)
	}

	factory := services.NewServiceFactory(services.FactoryDeps{
		Cache:     rootCache,
		Dedup:     dedup,
		Limiter:   limiter,
		Breakers:  breakers,
		Providers: providerSet,
		Defaults: services.ServiceSettings{
			GamesTTL:          cfg.GamesTTL,
			TeamsTTL:          cfg.TeamsTTL,
			PlayersTTL:        cfg.PlayersTTL,
			OddsTTL:           cfg.OddsTTL,
			RetryAttempts:     cfg.RetryAttempts,
			RetryDelay:        cfg.RetryDelay,
			RateLimitProvider: "espn",
		},
		GateCooldown:   cfg.LastResortCooldown,
		AggregateDelay: cfg.AggregateCallDelay,
		Sink:           store,
		Hub:            hub,
		Logger:         log,
	})

	// Instantiate the configured sports up front so scheduled refreshes
	// cover them before the first request arrives.
	for _, sl := range cfg.SportLeagues() {
		if _, err := factory.Service(sl.Sport, sl.League); err != nil {
			log.WithError(err).Warnf("Skipping configured sport %s:%s", sl.Sport, sl.League)
		}
	}

	var scheduler *services.RefreshScheduler
	if cfg.EnableBackgroundJobs {
		scheduler = services.NewRefreshScheduler(factory, services.SchedulerConfig{
			TeamsRefresh:    cfg.TeamsRefreshCron,
			ScheduleRefresh: cfg.ScheduleRefreshCron,
			OddsRefresh:     cfg.OddsRefreshCron,
			CacheWarm:       cfg.CacheWarmCron,
			JobTimeout:      cfg.JobTimeout,
		}, log)
		if err := scheduler.Start(); err != nil {
			log.Errorf("Failed to start refresh scheduler: %v", err)
		} else {
			defer scheduler.Stop()
		}
	}

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	api.SetupRoutes(router, api.Deps{
		Factory:   factory,
		Limiter:   limiter,
		Breakers:  breakers,
		Scheduler: scheduler,
		Store:     store,
		Hub:       hub,
		Cache:     rootCache,
		DB:        db,
		WSOrigins: cfg.CorsOrigins,
	})

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// openDurableCache builds the configured cache backend. Any failure
// logs a warning and returns nil so the process still comes up.
func openDurableCache(cfg *config.Config, log *logrus.Logger) (services.DurableCache, func()) {
	switch cfg.CacheBackend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Invalid REDIS_URL, running with memory cache only")
			return nil, nil
		}
		client := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable, running with memory cache only")
			client.Close()
			return nil, nil
		}
		return services.NewRedisCache(client, log), func() { client.Close() }

	case "bolt":
		bolt, err := services.OpenBoltCache(cfg.BoltPath, log)
		if err != nil {
			log.WithError(err).Warn("Failed to open bolt cache, running with memory cache only")
			return nil, nil
		}
		return bolt, func() { bolt.Close() }

	default:
		log.Info("Durable cache disabled, running with memory cache only")
		return nil, nil
	}
}

// providerLimits builds the per-provider quota table. Free keyless APIs
// share the global defaults; the metered providers get their own caps.
func providerLimits(cfg *config.Config) map[string]services.ProviderLimits {
	base := services.ProviderLimits{
		Burst:     cfg.RateLimitBurst,
		PerMinute: cfg.RateLimitPerMinute,
		PerHour:   cfg.RateLimitPerHour,
		PerDay:    cfg.RateLimitPerDay,
		Cooldown:  time.Second,
	}

	limits := map[string]services.ProviderLimits{
		"espn":        base,
		"thesportsdb": base,
	}

	// balldontlie free tier allows 5 requests per minute
	limits["balldontlie"] = services.ProviderLimits{
		Burst:     2,
		PerMinute: 5,
		PerHour:   cfg.RateLimitPerHour,
		PerDay:    cfg.RateLimitPerDay,
		Cooldown:  12 * time.Second,
	}

	oddsAPI := base
	oddsAPI.PerDay = cfg.OddsAPIPerDay
	oddsAPI.Cooldown = 2 * time.Second
	limits["oddsapi"] = oddsAPI

	apiSports := base
	apiSports.PerMinute = 8
	apiSports.PerDay = cfg.APISportsPerDay
	apiSports.Cooldown = 6 * time.Second
	limits["apisports"] = apiSports

	return limits
}
