package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectapex/sportsdata/internal/models"
	"github.com/projectapex/sportsdata/internal/sports"
	"github.com/projectapex/sportsdata/pkg/config"
	"github.com/projectapex/sportsdata/pkg/database"
	"github.com/projectapex/sportsdata/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed]")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	lg := logger.Init(cfg.LogLevel, cfg.IsDevelopment())

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := models.NewStore(db, lg)

	switch os.Args[1] {
	case "up":
		if err := store.Migrate(); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		if err := store.Migrate(); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		if err := seedData(store); err != nil {
			logrus.Fatalf("Failed to seed data: %v", err)
		}
		logrus.Info("Data seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}

func dropTables(db *database.DB) error {
	// Reverse of AllModels so dependents go first
	all := models.AllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", all[i], err)
		}
	}
	return nil
}

// seedData loads a small slate of games so the history endpoints have
// something to show before the first scheduled refresh runs.
func seedData(store *models.Store) error {
	ctx := context.Background()
	tipoff := time.Now().UTC().Truncate(24 * time.Hour).Add(19 * time.Hour)

	teams := []sports.Team{
		{ExternalID: "seed_bos", Sport: sports.SportBasketball, League: "nba", Name: "Boston Celtics", Abbreviation: "BOS", City: "Boston", Venue: "TD Garden", Provider: "seed"},
		{ExternalID: "seed_lal", Sport: sports.SportBasketball, League: "nba", Name: "Los Angeles Lakers", Abbreviation: "LAL", City: "Los Angeles", Venue: "Crypto.com Arena", Provider: "seed"},
		{ExternalID: "seed_den", Sport: sports.SportBasketball, League: "nba", Name: "Denver Nuggets", Abbreviation: "DEN", City: "Denver", Venue: "Ball Arena", Provider: "seed"},
		{ExternalID: "seed_mil", Sport: sports.SportBasketball, League: "nba", Name: "Milwaukee Bucks", Abbreviation: "MIL", City: "Milwaukee", Venue: "Fiserv Forum", Provider: "seed"},
		{ExternalID: "seed_nyy", Sport: sports.SportBaseball, League: "mlb", Name: "New York Yankees", Abbreviation: "NYY", City: "New York", Venue: "Yankee Stadium", Provider: "seed"},
		{ExternalID: "seed_bosx", Sport: sports.SportBaseball, League: "mlb", Name: "Boston Red Sox", Abbreviation: "BRS", City: "Boston", Venue: "Fenway Park", Provider: "seed"},
	}
	if err := store.SaveTeams(ctx, teams); err != nil {
		return fmt.Errorf("failed to seed teams: %w", err)
	}

	games := []sports.Game{
		{
			ExternalID: "seed_g1",
			Sport:      sports.SportBasketball,
			League:     "nba",
			HomeTeam:   "Boston Celtics",
			AwayTeam:   "Los Angeles Lakers",
			StartTime:  tipoff,
			Venue:      "TD Garden",
			Status:     sports.StatusScheduled,
			Provider:   "seed",
		},
		{
			ExternalID: "seed_g2",
			Sport:      sports.SportBasketball,
			League:     "nba",
			HomeTeam:   "Denver Nuggets",
			AwayTeam:   "Milwaukee Bucks",
			StartTime:  tipoff.Add(2 * time.Hour),
			Venue:      "Ball Arena",
			Status:     sports.StatusScheduled,
			Provider:   "seed",
		},
		{
			ExternalID: "seed_g3",
			Sport:      sports.SportBaseball,
			League:     "mlb",
			HomeTeam:   "New York Yankees",
			AwayTeam:   "Boston Red Sox",
			StartTime:  tipoff.Add(-30 * time.Minute),
			Venue:      "Yankee Stadium",
			Status:     sports.StatusScheduled,
			Provider:   "seed",
		},
	}
	if err := store.SaveGames(ctx, games); err != nil {
		return fmt.Errorf("failed to seed games: %w", err)
	}

	lines := []sports.OddsLine{
		{GameKey: games[0].NaturalKey(), Book: "draftkings", Market: sports.MarketMoneyline, HomePrice: -150, AwayPrice: 130, Provider: "seed", CapturedAt: time.Now().UTC()},
		{GameKey: games[0].NaturalKey(), Book: "draftkings", Market: sports.MarketSpread, Spread: -3.5, HomePrice: -110, AwayPrice: -110, Provider: "seed", CapturedAt: time.Now().UTC()},
		{GameKey: games[1].NaturalKey(), Book: "fanduel", Market: sports.MarketTotal, Total: 224.5, OverPrice: -108, UnderPrice: -112, Provider: "seed", CapturedAt: time.Now().UTC()},
	}
	if err := store.SaveOdds(ctx, lines); err != nil {
		return fmt.Errorf("failed to seed odds: %w", err)
	}

	logrus.Infof("Seeded %d teams, %d games, %d odds lines", len(teams), len(games), len(lines))
	return nil
}
