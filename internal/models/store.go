package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/projectapex/sportsdata/internal/sports"
	"github.com/projectapex/sportsdata/pkg/database"
)

// Store persists fetched sports data. It satisfies the record sink the
// sport services write through and serves the history endpoints.
type Store struct {
	db     *database.DB
	logger *logrus.Entry
}

func NewStore(db *database.DB, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		db:     db,
		logger: logger.WithField("component", "store"),
	}
}

// Migrate creates or updates all tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(AllModels()...)
}

// SaveTeams upserts teams by natural key. The whole batch commits as
// one transaction; existing rows keep their id and created_at.
func (s *Store) SaveTeams(ctx context.Context, teams []sports.Team) error {
	if len(teams) == 0 {
		return nil
	}

	tx := s.db.WithContext(ctx).Begin()
	for _, team := range teams {
		row := TeamFromDomain(team)

		var existing Team
		err := tx.Where("natural_key = ?", row.NaturalKey).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&row).Error; err != nil {
				tx.Rollback()
				return fmt.Errorf("create team %s: %w", row.Name, err)
			}
		case err != nil:
			tx.Rollback()
			return err
		default:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if err := tx.Save(&row).Error; err != nil {
				tx.Rollback()
				return fmt.Errorf("update team %s: %w", row.Name, err)
			}
		}
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	s.logger.WithField("teams", len(teams)).Debug("Persisted team batch")
	return nil
}

// SaveGames upserts games by natural key so scores and status move
// forward as a game progresses. The batch commits as one transaction.
func (s *Store) SaveGames(ctx context.Context, games []sports.Game) error {
	if len(games) == 0 {
		return nil
	}

	tx := s.db.WithContext(ctx).Begin()
	for _, game := range games {
		row := GameFromDomain(game)

		var existing Game
		err := tx.Where("natural_key = ?", row.NaturalKey).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&row).Error; err != nil {
				tx.Rollback()
				return fmt.Errorf("create game %s: %w", row.NaturalKey, err)
			}
		case err != nil:
			tx.Rollback()
			return err
		default:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if err := tx.Save(&row).Error; err != nil {
				tx.Rollback()
				return fmt.Errorf("update game %s: %w", row.NaturalKey, err)
			}
		}
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	s.logger.WithField("games", len(games)).Debug("Persisted game batch")
	return nil
}

// SaveOdds appends captured lines. Snapshots are never updated, the
// history is the point.
func (s *Store) SaveOdds(ctx context.Context, lines []sports.OddsLine) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]OddsSnapshot, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, SnapshotFromDomain(line))
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// LogActivity records one upstream fetch attempt.
func (s *Store) LogActivity(ctx context.Context, activity sports.FetchActivity) error {
	row := ScrapeActivity{
		Sport:      string(activity.Sport),
		League:     activity.League,
		Resource:   activity.Resource,
		Provider:   activity.Provider,
		Status:     activity.Status,
		Records:    activity.Records,
		DurationMs: activity.Duration.Milliseconds(),
		Error:      activity.Error,
		RanAt:      activity.RanAt,
	}
	if row.RanAt.IsZero() {
		row.RanAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// GamesBetween returns stored games for a sport and league inside a
// time range, oldest first.
func (s *Store) GamesBetween(ctx context.Context, sport, league string, from, to time.Time) ([]Game, error) {
	var games []Game
	err := s.db.WithContext(ctx).
		Where("sport = ? AND league = ? AND start_time BETWEEN ? AND ?", sport, league, from, to).
		Order("start_time asc").
		Find(&games).Error
	return games, err
}

// TeamsByLeague returns the stored teams of a league.
func (s *Store) TeamsByLeague(ctx context.Context, sport, league string) ([]Team, error) {
	var teams []Team
	err := s.db.WithContext(ctx).
		Where("sport = ? AND league = ?", sport, league).
		Order("name asc").
		Find(&teams).Error
	return teams, err
}

// OddsHistory returns captured lines for one game, newest first.
func (s *Store) OddsHistory(ctx context.Context, gameKey string, limit int) ([]OddsSnapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var snapshots []OddsSnapshot
	err := s.db.WithContext(ctx).
		Where("game_key = ?", gameKey).
		Order("captured_at desc").
		Limit(limit).
		Find(&snapshots).Error
	return snapshots, err
}

// RecentActivity returns the latest fetch attempts, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]ScrapeActivity, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var activity []ScrapeActivity
	err := s.db.WithContext(ctx).
		Order("ran_at desc").
		Limit(limit).
		Find(&activity).Error
	return activity, err
}
