package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by tier (memory, redis, bolt)
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdata_cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)

	// cacheMisses tracks cache misses
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportsdata_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// cacheErrors tracks durable tier operation errors
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdata_cache_errors_total",
			Help: "Total number of durable cache operation errors",
		},
		[]string{"backend", "operation"},
	)

	// dedupSharedFetches tracks requests served by another caller's in-flight fetch
	dedupSharedFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportsdata_dedup_shared_total",
			Help: "Total number of requests coalesced onto an in-flight fetch",
		},
	)

	// rateLimitRejections tracks limiter denials by provider and window
	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdata_rate_limit_rejections_total",
			Help: "Total number of requests denied by the rate limiter",
		},
		[]string{"provider", "window"},
	)

	// breakerTransitions tracks circuit breaker state changes by service
	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdata_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"service", "from", "to"},
	)

	// providerFailures tracks per-provider failures inside fallback chains
	providerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdata_provider_failures_total",
			Help: "Total number of provider failures within fallback chains",
		},
		[]string{"chain", "provider"},
	)

	// fetchOutcomes tracks orchestrated fetches by service and outcome status
	fetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdata_fetch_outcomes_total",
			Help: "Total number of orchestrated fetches by outcome",
		},
		[]string{"service", "status"},
	)

	// fetchDuration tracks upstream fetch duration by service
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sportsdata_fetch_duration_seconds",
			Help:    "Duration of upstream fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// refreshJobRuns tracks scheduler job executions by job and result
	refreshJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdata_refresh_job_runs_total",
			Help: "Total number of background refresh job executions",
		},
		[]string{"job", "result"},
	)
)
