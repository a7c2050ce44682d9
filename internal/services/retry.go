package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/sports"
)

// RetryPolicy retries a fetch a fixed number of times with a fixed pause
// between attempts. Persistent upstream errors and context cancellation
// abort the loop early, there is nothing a retry would fix.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy matches the free-tier providers: three attempts two
// seconds apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 2 * time.Second}

// Run executes fn until it succeeds or attempts are exhausted. The final
// error wraps the last attempt's error so callers can still classify it.
func (p RetryPolicy) Run(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	tried := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		tried = attempt
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, sports.ErrUpstreamPersistent) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == attempts {
			break
		}

		logrus.Debugf("Fetch attempt %d/%d failed, retrying in %s: %v", attempt, attempts, p.Delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.Delay):
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempt(s): %w", tried, lastErr)
}
