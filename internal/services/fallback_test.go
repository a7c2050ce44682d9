package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectapex/sportsdata/internal/sports"
)

func mkTeam(name, provider string) sports.Team {
	return sports.Team{
		Sport:    sports.SportBasketball,
		League:   "nba",
		Name:     name,
		Provider: provider,
	}
}

func teamSource(provider string, calls *int, teams []sports.Team, err error) ChainSource[sports.Team] {
	return ChainSource[sports.Team]{
		Provider: provider,
		Fetch: func(context.Context, ChainParams) ([]sports.Team, error) {
			*calls++
			return teams, err
		},
	}
}

// TestChainFirstSuccessShortCircuits tests that a non-empty answer from
// the primary stops the chain.
func TestChainFirstSuccessShortCircuits(t *testing.T) {
	var primary, secondary int
	chain := NewChain("nba:teams", ModeFirstSuccess, 0, logrus.New(),
		teamSource("espn", &primary, []sports.Team{mkTeam("Lakers", "espn")}, nil),
		teamSource("thesportsdb", &secondary, []sports.Team{mkTeam("Lakers", "thesportsdb")}, nil),
	)

	teams, err := chain.Fetch(context.Background(), ChainParams{})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "espn", teams[0].Provider)
	assert.Equal(t, 1, primary)
	assert.Equal(t, 0, secondary, "secondary must not be consulted")
}

// TestChainFallsThroughFailuresAndEmpties tests that a failing source and
// an empty source both hand over to the next one.
func TestChainFallsThroughFailuresAndEmpties(t *testing.T) {
	var a, b, c int
	chain := NewChain("nba:teams", ModeFirstSuccess, 0, logrus.New(),
		teamSource("espn", &a, nil, errors.New("espn 500")),
		teamSource("thesportsdb", &b, []sports.Team{}, nil),
		teamSource("balldontlie", &c, []sports.Team{mkTeam("Lakers", "balldontlie")}, nil),
	)

	teams, err := chain.Fetch(context.Background(), ChainParams{})
	require.NoError(t, err, "one failing provider is not a chain failure")
	require.Len(t, teams, 1)
	assert.Equal(t, "balldontlie", teams[0].Provider)
	assert.Equal(t, []int{1, 1, 1}, []int{a, b, c})
}

// TestChainMergeDedupesByNaturalKey tests merge mode: all sources are
// queried and duplicate rows keep the higher-priority provider's copy.
func TestChainMergeDedupesByNaturalKey(t *testing.T) {
	var a, b int
	chain := NewChain("nba:odds", ModeMerge, 0, logrus.New(),
		teamSource("espn", &a, []sports.Team{mkTeam("Lakers", "espn"), mkTeam("Celtics", "espn")}, nil),
		teamSource("thesportsdb", &b, []sports.Team{mkTeam("Lakers", "thesportsdb"), mkTeam("Nuggets", "thesportsdb")}, nil),
	)

	teams, err := chain.Fetch(context.Background(), ChainParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b, "merge mode queries every source")

	require.Len(t, teams, 3)
	byName := make(map[string]string, len(teams))
	for _, team := range teams {
		byName[team.Name] = team.Provider
	}
	assert.Equal(t, "espn", byName["Lakers"], "first source wins duplicates")
	assert.Equal(t, "espn", byName["Celtics"])
	assert.Equal(t, "thesportsdb", byName["Nuggets"])
}

// TestChainLastResortOnlyWhenEmpty tests that a gated source is consulted
// only after every regular source came up empty.
func TestChainLastResortOnlyWhenEmpty(t *testing.T) {
	var regular, paid int
	paidSource := teamSource("apisports", &paid, []sports.Team{mkTeam("Lakers", "apisports")}, nil)
	paidSource.LastResort = true

	chain := NewChain("nba:teams", ModeFirstSuccess, 0, logrus.New(),
		teamSource("espn", &regular, []sports.Team{mkTeam("Lakers", "espn")}, nil),
		paidSource,
	)

	teams, err := chain.Fetch(context.Background(), ChainParams{})
	require.NoError(t, err)
	assert.Equal(t, "espn", teams[0].Provider)
	assert.Equal(t, 0, paid, "paid source must stay idle while free ones answer")

	// Drain the regular source and the last resort takes over.
	empty := NewChain("nba:teams", ModeFirstSuccess, 0, logrus.New(),
		teamSource("espn", &regular, []sports.Team{}, nil),
		paidSource,
	)
	teams, err = empty.Fetch(context.Background(), ChainParams{})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "apisports", teams[0].Provider)
	assert.Equal(t, 1, paid)
}

// TestChainLastResortFailureCooldown tests that a failed last resort is
// not retried until its cooldown has passed.
func TestChainLastResortFailureCooldown(t *testing.T) {
	clock := newFakeClock()

	var paid int
	failing := ChainSource[sports.Team]{
		Provider:   "apisports",
		LastResort: true,
		Fetch: func(context.Context, ChainParams) ([]sports.Team, error) {
			paid++
			return nil, errors.New("quota exceeded")
		},
	}

	chain := NewChain("nba:teams", ModeFirstSuccess, 5*time.Minute, logrus.New(), failing).WithClock(clock)

	_, err := chain.Fetch(context.Background(), ChainParams{})
	require.ErrorIs(t, err, sports.ErrAllProvidersExhausted)
	require.Equal(t, 1, paid)

	// Within the cooldown the gate keeps the provider idle, and with no
	// other source failing the chain reports a legitimate empty result.
	_, err = chain.Fetch(context.Background(), ChainParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, paid, "gated provider must not be retried during cooldown")

	clock.Advance(5 * time.Minute)
	_, err = chain.Fetch(context.Background(), ChainParams{})
	require.ErrorIs(t, err, sports.ErrAllProvidersExhausted)
	assert.Equal(t, 2, paid)
}

// TestChainExhaustionVersusLegitimateEmpty tests the difference between
// every provider failing and every provider answering with no rows.
func TestChainExhaustionVersusLegitimateEmpty(t *testing.T) {
	var a, b int
	failed := NewChain("nba:games", ModeFirstSuccess, 0, logrus.New(),
		teamSource("espn", &a, nil, errors.New("down")),
		teamSource("thesportsdb", &b, nil, errors.New("down too")),
	)
	_, err := failed.Fetch(context.Background(), ChainParams{})
	assert.ErrorIs(t, err, sports.ErrAllProvidersExhausted)

	var c, d int
	quiet := NewChain("nba:games", ModeFirstSuccess, 0, logrus.New(),
		teamSource("espn", &c, []sports.Team{}, nil),
		teamSource("thesportsdb", &d, []sports.Team{}, nil),
	)
	teams, err := quiet.Fetch(context.Background(), ChainParams{})
	require.NoError(t, err, "an off-day is not an outage")
	assert.NotNil(t, teams)
	assert.Empty(t, teams)
}

func TestDedupeByKeyKeepsFirst(t *testing.T) {
	rows := []sports.Team{
		mkTeam("Lakers", "espn"),
		mkTeam("Lakers", "thesportsdb"),
		mkTeam("Celtics", "thesportsdb"),
	}
	out := dedupeByKey(rows)
	require.Len(t, out, 2)
	assert.Equal(t, "espn", out[0].Provider)
	assert.Equal(t, "Celtics", out[1].Name)
}
