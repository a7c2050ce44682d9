package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerStatus is one breaker's view for stats endpoints
type BreakerStatus struct {
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// BreakerGroup manages one circuit breaker per logical service name,
// created on first use. A breaker opens after `threshold` consecutive
// failures, stays open for `cooldown`, then admits exactly one trial
// call: trial success closes it, trial failure reopens it.
type BreakerGroup struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
	threshold uint32
	cooldown  time.Duration
	logger    *logrus.Logger
}

func NewBreakerGroup(threshold int, cooldown time.Duration, logger *logrus.Logger) *BreakerGroup {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &BreakerGroup{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		threshold: uint32(threshold),
		cooldown:  cooldown,
		logger:    logger,
	}
}

// Execute runs fn under the breaker for service. When the breaker is open,
// fn is not invoked and gobreaker.ErrOpenState comes back immediately.
func (g *BreakerGroup) Execute(service string, fn func() (interface{}, error)) (interface{}, error) {
	return g.breaker(service).Execute(fn)
}

// State returns the current state of the breaker for service.
func (g *BreakerGroup) State(service string) gobreaker.State {
	return g.breaker(service).State()
}

// Counts returns the current counts of the breaker for service.
func (g *BreakerGroup) Counts(service string) gobreaker.Counts {
	return g.breaker(service).Counts()
}

// Snapshot reports every instantiated breaker for stats endpoints.
func (g *BreakerGroup) Snapshot() map[string]BreakerStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]BreakerStatus, len(g.breakers))
	for name, breaker := range g.breakers {
		counts := breaker.Counts()
		out[name] = BreakerStatus{
			State:                breaker.State().String(),
			Requests:             counts.Requests,
			TotalFailures:        counts.TotalFailures,
			ConsecutiveFailures:  counts.ConsecutiveFailures,
			ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		}
	}
	return out
}

func (g *BreakerGroup) breaker(service string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if breaker, ok := g.breakers[service]; ok {
		return breaker
	}

	threshold := g.threshold
	settings := gobreaker.Settings{
		Name: service,
		// one trial call while half-open
		MaxRequests: 1,
		Timeout:     g.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			g.logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	breaker := gobreaker.NewCircuitBreaker(settings)
	g.breakers[service] = breaker
	return breaker
}
