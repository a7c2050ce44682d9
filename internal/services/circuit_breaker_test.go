package services

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream 500")

func failingCall() (interface{}, error) { return nil, errUpstream }
func okCall() (interface{}, error)      { return "ok", nil }

// TestBreakerOpensAfterConsecutiveFailures tests the trip threshold and
// that an open breaker rejects without invoking the call.
func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	group := NewBreakerGroup(3, time.Minute, logrus.New())

	for i := 0; i < 2; i++ {
		_, err := group.Execute("basketball:nba", failingCall)
		require.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, gobreaker.StateClosed, group.State("basketball:nba"))

	_, err := group.Execute("basketball:nba", failingCall)
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, gobreaker.StateOpen, group.State("basketball:nba"))

	invoked := false
	_, err = group.Execute("basketball:nba", func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, invoked, "an open breaker must reject before the call")
}

// TestBreakerSuccessResetsFailureStreak tests that the count is of
// consecutive failures, not total ones.
func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	group := NewBreakerGroup(3, time.Minute, logrus.New())

	for i := 0; i < 5; i++ {
		_, err := group.Execute("baseball:mlb", failingCall)
		if i%2 == 0 {
			require.ErrorIs(t, err, errUpstream)
			_, err = group.Execute("baseball:mlb", okCall)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, gobreaker.StateClosed, group.State("baseball:mlb"))
}

// TestBreakerHalfOpenTrial tests the single trial call after cooldown:
// success closes the breaker, failure reopens it.
func TestBreakerHalfOpenTrial(t *testing.T) {
	group := NewBreakerGroup(1, 50*time.Millisecond, logrus.New())

	_, err := group.Execute("hockey:nhl", failingCall)
	require.ErrorIs(t, err, errUpstream)
	require.Equal(t, gobreaker.StateOpen, group.State("hockey:nhl"))

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, gobreaker.StateHalfOpen, group.State("hockey:nhl"))

	_, err = group.Execute("hockey:nhl", okCall)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, group.State("hockey:nhl"))

	// Trip again and fail the trial this time.
	_, _ = group.Execute("hockey:nhl", failingCall)
	require.Equal(t, gobreaker.StateOpen, group.State("hockey:nhl"))

	time.Sleep(80 * time.Millisecond)
	_, err = group.Execute("hockey:nhl", failingCall)
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, gobreaker.StateOpen, group.State("hockey:nhl"))
}

// TestBreakersAreScopedPerService tests that one noisy service cannot
// trip another service's breaker.
func TestBreakersAreScopedPerService(t *testing.T) {
	group := NewBreakerGroup(1, time.Minute, logrus.New())

	_, err := group.Execute("basketball:nba", failingCall)
	require.ErrorIs(t, err, errUpstream)
	require.Equal(t, gobreaker.StateOpen, group.State("basketball:nba"))

	result, err := group.Execute("baseball:mlb", okCall)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, gobreaker.StateClosed, group.State("baseball:mlb"))
}

func TestBreakerSnapshot(t *testing.T) {
	group := NewBreakerGroup(5, time.Minute, logrus.New())

	_, _ = group.Execute("basketball:nba", okCall)
	_, _ = group.Execute("basketball:nba", failingCall)

	snapshot := group.Snapshot()
	status, ok := snapshot["basketball:nba"]
	require.True(t, ok)
	assert.Equal(t, "closed", status.State)
	assert.Equal(t, uint32(2), status.Requests)
	assert.Equal(t, uint32(1), status.TotalFailures)
	assert.Equal(t, uint32(1), status.ConsecutiveFailures)
}

func TestBreakerGroupDefaults(t *testing.T) {
	group := NewBreakerGroup(0, 0, logrus.New())
	assert.Equal(t, uint32(5), group.threshold)
	assert.Equal(t, time.Minute, group.cooldown)
}
