package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProviderLimits configures the request budget for one upstream provider.
// A zero or negative limit disables that window. Cooldown is the polite
// pause between planned calls to the provider.
type ProviderLimits struct {
	Burst     int
	PerMinute int
	PerHour   int
	PerDay    int
	Cooldown  time.Duration
}

// DefaultProviderLimits is applied to providers with no configured limits.
var DefaultProviderLimits = ProviderLimits{
	Burst:     5,
	PerMinute: 20,
	PerHour:   200,
	PerDay:    1000,
	Cooldown:  time.Second,
}

var limitWindows = [...]struct {
	name string
	span time.Duration
}{
	{"burst", 10 * time.Second},
	{"minute", time.Minute},
	{"hour", time.Hour},
	{"day", 24 * time.Hour},
}

type windowState struct {
	count   int
	resetAt time.Time
}

type providerState struct {
	windows [len(limitWindows)]windowState
}

// Decision is the limiter's verdict for one prospective request. When a
// request is denied, Window names the exhausted window and Wait is how
// long until that window resets.
type Decision struct {
	Allowed bool          `json:"allowed"`
	Wait    time.Duration `json:"wait,omitempty"`
	Window  string        `json:"window,omitempty"`
}

// WindowUsage reports one window of one provider for stats endpoints
type WindowUsage struct {
	Count   int       `json:"count"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// RateLimiter tracks per-provider request counts over fixed burst, minute,
// hour and day windows. Windows reset lazily: whenever a window is touched
// after its reset time passed, it restarts from zero. There are no
// background timers, so an idle limiter heals itself on the next call.
type RateLimiter struct {
	mu       sync.Mutex
	limits   map[string]ProviderLimits
	defaults ProviderLimits
	states   map[string]*providerState
	warned   map[string]bool
	clock    Clock
	logger   *logrus.Entry
}

func NewRateLimiter(limits map[string]ProviderLimits, logger *logrus.Logger) *RateLimiter {
	if limits == nil {
		limits = make(map[string]ProviderLimits)
	}
	return &RateLimiter{
		limits:   limits,
		defaults: DefaultProviderLimits,
		states:   make(map[string]*providerState),
		warned:   make(map[string]bool),
		clock:    SystemClock(),
		logger:   logger.WithField("component", "rate_limiter"),
	}
}

// WithClock replaces the clock. Test hook.
func (rl *RateLimiter) WithClock(clock Clock) *RateLimiter {
	rl.clock = clock
	return rl
}

// Check reports whether provider may be called right now. Windows are
// evaluated strictest first (burst, then minute, hour, day) and the first
// exhausted one decides the verdict. Check does not consume budget; call
// Record once the request is actually dispatched.
func (rl *RateLimiter) Check(provider string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	state := rl.ensureLocked(provider, now)
	limits := rl.limitsLocked(provider)

	for i, w := range limitWindows {
		resetWindowLocked(&state.windows[i], w.span, now)

		limit := windowLimit(limits, i)
		if limit > 0 && state.windows[i].count >= limit {
			wait := state.windows[i].resetAt.Sub(now)
			rateLimitRejections.WithLabelValues(provider, w.name).Inc()
			rl.logger.WithFields(logrus.Fields{
				"provider": provider,
				"window":   w.name,
				"count":    state.windows[i].count,
				"limit":    limit,
				"wait":     wait.String(),
			}).Warn("Rate limit reached")
			return Decision{Allowed: false, Wait: wait, Window: w.name}
		}
	}
	return Decision{Allowed: true}
}

// Record counts one dispatched request against every window of provider.
// Failed upstream calls consume budget too, so callers record after the
// attempt regardless of its result.
func (rl *RateLimiter) Record(provider string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	state := rl.ensureLocked(provider, now)
	for i, w := range limitWindows {
		resetWindowLocked(&state.windows[i], w.span, now)
		state.windows[i].count++
	}
}

// RecommendedDelay returns the polite pause to insert between planned
// calls to provider, for bulk work like scheduled refreshes.
func (rl *RateLimiter) RecommendedDelay(provider string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.limitsLocked(provider).Cooldown
}

// Snapshot reports current usage for every tracked provider.
func (rl *RateLimiter) Snapshot() map[string]map[string]WindowUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	out := make(map[string]map[string]WindowUsage, len(rl.states))
	for provider, state := range rl.states {
		limits := rl.limitsLocked(provider)
		usage := make(map[string]WindowUsage, len(limitWindows))
		for i, w := range limitWindows {
			resetWindowLocked(&state.windows[i], w.span, now)
			usage[w.name] = WindowUsage{
				Count:   state.windows[i].count,
				Limit:   windowLimit(limits, i),
				ResetAt: state.windows[i].resetAt,
			}
		}
		out[provider] = usage
	}
	return out
}

// Reset clears all tracked state.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.states = make(map[string]*providerState)
}

func (rl *RateLimiter) ensureLocked(provider string, now time.Time) *providerState {
	state, ok := rl.states[provider]
	if !ok {
		state = &providerState{}
		for i, w := range limitWindows {
			state.windows[i].resetAt = now.Add(w.span)
		}
		rl.states[provider] = state
	}
	return state
}

func (rl *RateLimiter) limitsLocked(provider string) ProviderLimits {
	if limits, ok := rl.limits[provider]; ok {
		return limits
	}
	if !rl.warned[provider] {
		rl.warned[provider] = true
		rl.logger.WithField("provider", provider).Warn("No limits configured for provider, using defaults")
	}
	return rl.defaults
}

func resetWindowLocked(w *windowState, span time.Duration, now time.Time) {
	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(span)
	}
}

func windowLimit(limits ProviderLimits, window int) int {
	switch window {
	case 0:
		return limits.Burst
	case 1:
		return limits.PerMinute
	case 2:
		return limits.PerHour
	default:
		return limits.PerDay
	}
}
