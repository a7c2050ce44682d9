package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/projectapex/sportsdata/internal/sports"
)

// Team is a league team as last seen from any provider. NaturalKey is
// the provider-independent identity the upsert matches on.
type Team struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sport        string    `gorm:"not null;index" json:"sport"`
	League       string    `gorm:"not null;index" json:"league"`
	NaturalKey   string    `gorm:"not null;uniqueIndex" json:"natural_key"`
	ExternalID   string    `gorm:"index" json:"external_id"`
	Name         string    `gorm:"not null" json:"name"`
	Abbreviation string    `json:"abbreviation"`
	City         string    `json:"city"`
	LogoURL      string    `json:"logo_url"`
	Venue        string    `json:"venue"`
	Provider     string    `gorm:"not null" json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Team) TableName() string { return "teams" }

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Game is one scheduled or played game.
type Game struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sport      string    `gorm:"not null;index" json:"sport"`
	League     string    `gorm:"not null;index" json:"league"`
	Season     string    `json:"season"`
	NaturalKey string    `gorm:"not null;uniqueIndex" json:"natural_key"`
	ExternalID string    `gorm:"index" json:"external_id"`
	HomeTeam   string    `gorm:"not null" json:"home_team"`
	AwayTeam   string    `gorm:"not null" json:"away_team"`
	StartTime  time.Time `gorm:"not null;index" json:"start_time"`
	Venue      string    `json:"venue"`
	Status     string    `gorm:"not null;default:'scheduled'" json:"status"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	Provider   string    `gorm:"not null" json:"provider"`

	// Provider fields without a column of their own
	Extras datatypes.JSON `json:"extras,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Game) TableName() string { return "games" }

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// OddsSnapshot is one captured bookmaker line. The table is append-only
// so line movement stays queryable.
type OddsSnapshot struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GameKey    string    `gorm:"not null;index" json:"game_key"`
	Book       string    `gorm:"not null" json:"book"`
	Market     string    `gorm:"not null" json:"market"`
	HomePrice  float64   `json:"home_price"`
	AwayPrice  float64   `json:"away_price"`
	Spread     float64   `json:"spread"`
	Total      float64   `json:"total"`
	OverPrice  float64   `json:"over_price"`
	UnderPrice float64   `json:"under_price"`
	Provider   string    `gorm:"not null" json:"provider"`
	CapturedAt time.Time `gorm:"not null;index" json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (OddsSnapshot) TableName() string { return "odds_snapshots" }

func (o *OddsSnapshot) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ScrapeActivity is the audit trail of upstream fetch attempts.
type ScrapeActivity struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sport      string    `gorm:"not null;index" json:"sport"`
	League     string    `gorm:"not null" json:"league"`
	Resource   string    `gorm:"not null" json:"resource"`
	Provider   string    `gorm:"not null" json:"provider"`
	Status     string    `gorm:"not null" json:"status"`
	Records    int       `json:"records"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	RanAt      time.Time `gorm:"not null;index" json:"ran_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ScrapeActivity) TableName() string { return "scrape_activity" }

func (a *ScrapeActivity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{&Team{}, &Game{}, &OddsSnapshot{}, &ScrapeActivity{}}
}

// TeamFromDomain maps a fetched team onto its database row.
func TeamFromDomain(t sports.Team) Team {
	return Team{
		Sport:        string(t.Sport),
		League:       t.League,
		NaturalKey:   t.NaturalKey(),
		ExternalID:   t.ExternalID,
		Name:         t.Name,
		Abbreviation: t.Abbreviation,
		City:         t.City,
		LogoURL:      t.LogoURL,
		Venue:        t.Venue,
		Provider:     t.Provider,
	}
}

// GameFromDomain maps a fetched game onto its database row.
func GameFromDomain(g sports.Game) Game {
	row := Game{
		Sport:      string(g.Sport),
		League:     g.League,
		Season:     g.Season,
		NaturalKey: g.NaturalKey(),
		ExternalID: g.ExternalID,
		HomeTeam:   g.HomeTeam,
		AwayTeam:   g.AwayTeam,
		StartTime:  g.StartTime.UTC(),
		Venue:      g.Venue,
		Status:     g.Status,
		HomeScore:  g.HomeScore,
		AwayScore:  g.AwayScore,
		Provider:   g.Provider,
	}
	if len(g.Extras) > 0 {
		if raw, err := json.Marshal(g.Extras); err == nil {
			row.Extras = datatypes.JSON(raw)
		}
	}
	return row
}

// SnapshotFromDomain maps a fetched odds line onto its database row.
func SnapshotFromDomain(l sports.OddsLine) OddsSnapshot {
	capturedAt := l.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	return OddsSnapshot{
		GameKey:    l.GameKey,
		Book:       l.Book,
		Market:     l.Market,
		HomePrice:  l.HomePrice,
		AwayPrice:  l.AwayPrice,
		Spread:     l.Spread,
		Total:      l.Total,
		OverPrice:  l.OverPrice,
		UnderPrice: l.UnderPrice,
		Provider:   l.Provider,
		CapturedAt: capturedAt.UTC(),
	}
}
