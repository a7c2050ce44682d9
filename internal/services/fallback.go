package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// ChainMode selects how a chain combines its sources.
type ChainMode int

const (
	// ModeFirstSuccess walks sources in priority order and returns the
	// first non-empty result.
	ModeFirstSuccess ChainMode = iota
	// ModeMerge queries every regular source and merges the rows, used
	// for odds where each provider covers different books.
	ModeMerge
)

// ChainParams carries the request parameters one chain run resolves for.
// The chain itself is long-lived, so per-call parameters travel here
// instead of being baked into the source closures.
type ChainParams struct {
	Date time.Time
	Team string
}

// ChainSource is one provider position in a fallback chain. LastResort
// sources (paid, hard-capped APIs) are consulted only when everything
// before them came up empty and the source is outside its failure
// cooldown.
type ChainSource[T sports.Keyed] struct {
	Provider   string
	LastResort bool
	Fetch      func(context.Context, ChainParams) ([]T, error)
}

// Chain tries an ordered list of providers for one kind of record.
// Individual source failures are logged and skipped, never propagated;
// the chain errors only when every source failed and nothing was
// collected. Results merged from several sources are deduplicated by
// natural key with earlier sources winning.
type Chain[T sports.Keyed] struct {
	name         string
	mode         ChainMode
	sources      []ChainSource[T]
	gateCooldown time.Duration
	clock        Clock
	logger       *logrus.Entry

	mu          sync.Mutex
	lastFailure map[string]time.Time
}

// NewChain builds a chain. gateCooldown guards last-resort sources; zero
// uses a five minute default.
func NewChain[T sports.Keyed](name string, mode ChainMode, gateCooldown time.Duration, logger *logrus.Logger, sources ...ChainSource[T]) *Chain[T] {
	if gateCooldown <= 0 {
		gateCooldown = 5 * time.Minute
	}
	return &Chain[T]{
		name:         name,
		mode:         mode,
		sources:      sources,
		gateCooldown: gateCooldown,
		clock:        SystemClock(),
		logger:       logger.WithFields(logrus.Fields{"component": "fallback_chain", "chain": name}),
		lastFailure:  make(map[string]time.Time),
	}
}

// WithClock replaces the clock. Test hook.
func (c *Chain[T]) WithClock(clock Clock) *Chain[T] {
	c.clock = clock
	return c
}

// Fetch resolves records through the chain according to its mode.
func (c *Chain[T]) Fetch(ctx context.Context, params ChainParams) ([]T, error) {
	collected := make([]T, 0)
	failures := 0

	for _, src := range c.sources {
		if src.LastResort {
			continue
		}
		records, ok := c.trySource(ctx, src, params, &failures)
		if !ok || len(records) == 0 {
			continue
		}
		if c.mode == ModeFirstSuccess {
			return dedupeByKey(records), nil
		}
		collected = append(collected, records...)
	}

	if c.mode == ModeMerge && len(collected) > 0 {
		return dedupeByKey(collected), nil
	}

	// everything above came up empty, consult the gated last resorts
	for _, src := range c.sources {
		if !src.LastResort {
			continue
		}
		if !c.gateAllows(src.Provider) {
			c.logger.WithField("provider", src.Provider).Info("Skipping last-resort provider, still in failure cooldown")
			continue
		}
		records, ok := c.trySource(ctx, src, params, &failures)
		if ok && len(records) > 0 {
			return dedupeByKey(records), nil
		}
	}

	if failures > 0 {
		return nil, fmt.Errorf("chain %s: %w", c.name, sports.ErrAllProvidersExhausted)
	}
	// every provider answered and none had rows, a legitimate empty slice
	return collected, nil
}

func (c *Chain[T]) trySource(ctx context.Context, src ChainSource[T], params ChainParams, failures *int) ([]T, bool) {
	records, err := src.Fetch(ctx, params)
	if err != nil {
		*failures++
		c.recordFailure(src.Provider)
		providerFailures.WithLabelValues(c.name, src.Provider).Inc()
		c.logger.WithError(err).WithField("provider", src.Provider).Warn("Provider failed, trying next in chain")
		return nil, false
	}
	if len(records) == 0 {
		c.logger.WithField("provider", src.Provider).Debug("Provider returned no records")
	}
	return records, true
}

func (c *Chain[T]) recordFailure(provider string) {
	c.mu.Lock()
	c.lastFailure[provider] = c.clock.Now()
	c.mu.Unlock()
}

func (c *Chain[T]) gateAllows(provider string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastFailure[provider]
	if !ok {
		return true
	}
	return c.clock.Now().Sub(last) >= c.gateCooldown
}

// dedupeByKey keeps the first occurrence of each natural key, so rows
// from higher-priority sources win.
func dedupeByKey[T sports.Keyed](records []T) []T {
	seen := make(map[string]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		key := r.NaturalKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
