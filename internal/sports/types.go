package sports

import (
	"fmt"
	"strings"
	"time"
)

// Sport identifies a sport. The set is open: unknown values are passed
// through so new sports can be served without a code change.
type Sport string

const (
	SportBasketball Sport = "basketball"
	SportBaseball   Sport = "baseball"
	SportHockey     Sport = "hockey"
	SportFootball   Sport = "football"
	SportSoccer     Sport = "soccer"
)

// Normalize maps common aliases and league names onto canonical sports.
// Unrecognized names are lowered and returned as-is.
func Normalize(name string) Sport {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "basketball", "nba", "wnba", "ncaab":
		return SportBasketball
	case "baseball", "mlb":
		return SportBaseball
	case "hockey", "ice-hockey", "nhl":
		return SportHockey
	case "football", "american-football", "nfl", "ncaaf":
		return SportFootball
	case "soccer", "futbol", "mls", "epl":
		return SportSoccer
	default:
		return Sport(strings.ToLower(strings.TrimSpace(name)))
	}
}

// GameStatus values as reported by upstream providers
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusFinal      = "final"
	StatusPostponed  = "postponed"
)

// Odds market identifiers
const (
	MarketMoneyline = "moneyline"
	MarketSpread    = "spread"
	MarketTotal     = "total"
)

// Keyed is implemented by records that carry a provider-independent
// identity, used to deduplicate rows merged from multiple providers.
type Keyed interface {
	NaturalKey() string
}

// Game represents a single scheduled or played game
type Game struct {
	ExternalID string    `json:"external_id"`
	Sport      Sport     `json:"sport"`
	League     string    `json:"league"`
	Season     string    `json:"season,omitempty"`
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	StartTime  time.Time `json:"start_time"`
	Venue      string    `json:"venue,omitempty"`
	Status     string    `json:"status"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	Provider   string    `json:"provider"`
	FetchedAt  time.Time `json:"fetched_at"`

	// Extras keeps provider fields that have no column of their own,
	// like ESPN's display name for the matchup.
	Extras map[string]string `json:"extras,omitempty"`
}

// NaturalKey identifies the same game across providers: matchup plus
// the UTC calendar date. Provider IDs never agree, team names do.
func (g Game) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(g.HomeTeam)),
		strings.ToLower(strings.TrimSpace(g.AwayTeam)),
		g.StartTime.UTC().Format("2006-01-02"))
}

// Team represents a team within a league
type Team struct {
	ExternalID   string `json:"external_id"`
	Sport        Sport  `json:"sport"`
	League       string `json:"league"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	City         string `json:"city,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
	Venue        string `json:"venue,omitempty"`
	Provider     string `json:"provider"`
}

// NaturalKey identifies the same team across providers within a league.
func (t Team) NaturalKey() string {
	id := t.Abbreviation
	if id == "" {
		id = t.Name
	}
	return fmt.Sprintf("%s|%s",
		strings.ToLower(strings.TrimSpace(t.League)),
		strings.ToLower(strings.TrimSpace(id)))
}

// Player represents a player on a team roster
type Player struct {
	ExternalID string `json:"external_id"`
	Sport      Sport  `json:"sport"`
	TeamName   string `json:"team_name"`
	Name       string `json:"name"`
	Position   string `json:"position,omitempty"`
	Jersey     string `json:"jersey,omitempty"`
	Status     string `json:"status,omitempty"`
	Provider   string `json:"provider"`
}

// NaturalKey identifies the same player across providers.
func (p Player) NaturalKey() string {
	return fmt.Sprintf("%s|%s",
		strings.ToLower(strings.TrimSpace(p.TeamName)),
		strings.ToLower(strings.TrimSpace(p.Name)))
}

// OddsLine represents one bookmaker's line for one market of one game
type OddsLine struct {
	GameKey    string    `json:"game_key"`
	Book       string    `json:"book"`
	Market     string    `json:"market"`
	HomePrice  float64   `json:"home_price,omitempty"`
	AwayPrice  float64   `json:"away_price,omitempty"`
	Spread     float64   `json:"spread,omitempty"`
	Total      float64   `json:"total,omitempty"`
	OverPrice  float64   `json:"over_price,omitempty"`
	UnderPrice float64   `json:"under_price,omitempty"`
	Provider   string    `json:"provider"`
	CapturedAt time.Time `json:"captured_at"`
}

// NaturalKey keeps one line per game, bookmaker and market when odds
// from several providers are merged.
func (o OddsLine) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s",
		o.GameKey,
		strings.ToLower(strings.TrimSpace(o.Book)),
		strings.ToLower(strings.TrimSpace(o.Market)))
}

// FetchActivity is one upstream fetch attempt, recorded for the
// activity log whether or not the attempt produced data.
type FetchActivity struct {
	Sport    Sport         `json:"sport"`
	League   string        `json:"league"`
	Resource string        `json:"resource"`
	Provider string        `json:"provider"`
	Status   string        `json:"status"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	RanAt    time.Time     `json:"ran_at"`
}

// ServiceHealth summarizes one sport service for health reporting
type ServiceHealth struct {
	Sport        Sport             `json:"sport"`
	League       string            `json:"league"`
	Healthy      bool              `json:"healthy"`
	CacheEntries int               `json:"cache_entries"`
	CacheHits    int64             `json:"cache_hits"`
	CacheMisses  int64             `json:"cache_misses"`
	Breakers     map[string]string `json:"breakers,omitempty"`
	CheckedAt    time.Time         `json:"checked_at"`
}
