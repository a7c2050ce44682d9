package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// FetchFunc produces fresh data from upstream. It runs detached from the
// requesting caller's cancellation so a completed fetch always lands in
// the cache.
type FetchFunc func(context.Context) (interface{}, error)

// FetchOptions configures one orchestrated fetch.
type FetchOptions struct {
	// Service scopes the circuit breaker and metrics.
	Service string
	// Provider scopes the rate limiter.
	Provider string
	// TTL is the cache lifetime of a successful payload.
	TTL time.Duration
	// LocalOnly serves from cache only and never goes upstream.
	LocalOnly bool
	// Retry applies inside the circuit breaker.
	Retry RetryPolicy
}

// OutcomeStatus says where a response came from, or why it is empty.
type OutcomeStatus string

const (
	OutcomeCacheHit    OutcomeStatus = "cache_hit"
	OutcomeFetched     OutcomeStatus = "fetched"
	OutcomeRateLimited OutcomeStatus = "rate_limited"
	OutcomeFailed      OutcomeStatus = "failed"
	OutcomeLocalOnly   OutcomeStatus = "local_only"
)

// Outcome describes how a fetch was resolved. Err carries the suppressed
// upstream error when Status is rate_limited or failed; the caller's data
// contract is unaffected, dest is simply left empty.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Shared bool          `json:"shared,omitempty"`
	Wait   time.Duration `json:"wait,omitempty"`
	Err    error         `json:"-"`
}

// errInternal marks faults in the pipeline itself. Unlike upstream
// failures these are returned to the caller instead of degrading to an
// empty result.
var errInternal = errors.New("internal fetch error")

// RateLimitError is returned through fetch pipelines when the local
// limiter denies a call. It unwraps to sports.ErrRateLimited.
type RateLimitError struct {
	Provider string
	Window   string
	Wait     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider %s rate limited on %s window, retry in %s", e.Provider, e.Window, e.Wait)
}

func (e *RateLimitError) Unwrap() error { return sports.ErrRateLimited }

// Orchestrator runs the resilient fetch pipeline: in-flight coalescing,
// tiered cache, rate limiting, then a circuit breaker wrapping a retried
// fetch. Upstream trouble degrades to an empty result; the returned error
// is reserved for internal faults like marshaling.
//
// Every service instance builds its own Orchestrator around its scoped
// cache view, while the deduplicator, limiter and breaker group are shared
// process-wide so cross-service pressure on a provider is visible in one
// place.
type Orchestrator struct {
	cache    *CacheService
	dedup    *Deduplicator
	limiter  *RateLimiter
	breakers *BreakerGroup
	logger   *logrus.Entry
}

func NewOrchestrator(cache *CacheService, dedup *Deduplicator, limiter *RateLimiter, breakers *BreakerGroup, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		cache:    cache,
		dedup:    dedup,
		limiter:  limiter,
		breakers: breakers,
		logger:   logger.WithField("component", "orchestrator"),
	}
}

// GetCachedOrFetch resolves key through the pipeline and unmarshals the
// payload into dest. On rate-limited or failed fetches dest is left
// untouched (callers pass pre-initialized empty slices) and the cause is
// reported in Outcome.Err, logged and counted, never thrown.
func (o *Orchestrator) GetCachedOrFetch(ctx context.Context, key string, opts FetchOptions, dest interface{}, fetch FetchFunc) (Outcome, error) {
	if fetch == nil && !opts.LocalOnly {
		return Outcome{Status: OutcomeFailed, Err: sports.ErrBadConfig},
			fmt.Errorf("%w: nil fetch function for key %s", sports.ErrBadConfig, key)
	}

	if opts.LocalOnly {
		return o.localOnly(ctx, key, opts, dest), nil
	}

	var leaderStatus OutcomeStatus

	data, shared, err := o.dedup.RunExclusive(ctx, o.cache.fullKey(key), func(fctx context.Context) ([]byte, error) {
		payload, status, ferr := o.resolve(fctx, key, opts, fetch)
		leaderStatus = status
		return payload, ferr
	})

	outcome := Outcome{Shared: shared, Err: err}
	if shared {
		outcome.Status = statusFromError(err)
	} else {
		outcome.Status = leaderStatus
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		outcome.Wait = rle.Wait
	}

	fetchOutcomes.WithLabelValues(opts.Service, string(outcome.Status)).Inc()

	if err != nil {
		if errors.Is(err, errInternal) {
			return outcome, err
		}
		// degraded: the caller gets its empty dest and a clean nil error
		return outcome, nil
	}

	if dest != nil && len(data) > 0 {
		if uerr := json.Unmarshal(data, dest); uerr != nil {
			return outcome, fmt.Errorf("unmarshal fetched payload for key %s: %w", key, uerr)
		}
	}
	return outcome, nil
}

// resolve is the leader's path: cache, limiter, then breaker around retry.
func (o *Orchestrator) resolve(ctx context.Context, key string, opts FetchOptions, fetch FetchFunc) ([]byte, OutcomeStatus, error) {
	if data, ok := o.cache.getBytes(ctx, key); ok {
		return data, OutcomeCacheHit, nil
	}

	if decision := o.limiter.Check(opts.Provider); !decision.Allowed {
		return nil, OutcomeRateLimited, &RateLimitError{
			Provider: opts.Provider,
			Window:   decision.Window,
			Wait:     decision.Wait,
		}
	}

	dispatched := false
	start := time.Now()
	result, err := o.breakers.Execute(opts.Service, func() (interface{}, error) {
		dispatched = true
		return opts.Retry.Run(ctx, fetch)
	})
	fetchDuration.WithLabelValues(opts.Service).Observe(time.Since(start).Seconds())

	// failed calls consumed upstream quota too
	if dispatched {
		o.limiter.Record(opts.Provider)
	}

	if err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"service":  opts.Service,
			"provider": opts.Provider,
			"key":      key,
			"breaker":  o.breakers.State(opts.Service).String(),
		}).Warn("Fetch failed, serving empty result")
		return nil, OutcomeFailed, err
	}

	data, merr := json.Marshal(result)
	if merr != nil {
		return nil, OutcomeFailed, fmt.Errorf("%w: marshal fetched payload for key %s: %v", errInternal, key, merr)
	}

	o.cache.setBytes(ctx, key, data, opts.TTL)
	return data, OutcomeFetched, nil
}

func (o *Orchestrator) localOnly(ctx context.Context, key string, opts FetchOptions, dest interface{}) Outcome {
	outcome := Outcome{Status: OutcomeLocalOnly}
	data, ok := o.cache.getBytes(ctx, key)
	if !ok {
		fetchOutcomes.WithLabelValues(opts.Service, string(OutcomeLocalOnly)).Inc()
		return outcome
	}
	if dest != nil {
		if err := json.Unmarshal(data, dest); err != nil {
			o.logger.WithError(err).WithField("key", key).Warn("Cached payload failed to unmarshal in local-only mode")
			return outcome
		}
	}
	outcome.Status = OutcomeCacheHit
	fetchOutcomes.WithLabelValues(opts.Service, string(OutcomeCacheHit)).Inc()
	return outcome
}

func statusFromError(err error) OutcomeStatus {
	switch {
	case err == nil:
		return OutcomeFetched
	case errors.Is(err, sports.ErrRateLimited):
		return OutcomeRateLimited
	default:
		return OutcomeFailed
	}
}
