// Package app wires configuration into concrete stores and clients for the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	"skillport/internal/config"
	"skillport/internal/database"
	"skillport/internal/leaderboard"
	"skillport/internal/memstore"
	"skillport/internal/models"
	"skillport/internal/services"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type ContestStore interface {
	CreateContest(ctx context.Context, contest *models.Contest) error
	GetContest(ctx context.Context, id uuid.UUID) (*models.Contest, error)
	DeleteContest(ctx context.Context, id uuid.UUID) error
	ListContestsByStatus(ctx context.Context, status models.ContestStatus) ([]models.Contest, error)
	ListContestsDueForTransition(ctx context.Context, now time.Time) ([]models.Contest, error)
	UpdateContestStatus(ctx context.Context, id uuid.UUID, from, to models.ContestStatus) (bool, error)
}

type ProblemStore interface {
	CreateProblem(ctx context.Context, problem *models.Problem) error
	GetProblemByID(ctx context.Context, id uuid.UUID) (*models.Problem, error)
}

// Stores is the storage backend selected by STORE_DRIVER.
type Stores struct {
	Contests     ContestStore
	Participants services.ParticipantStore
	Submissions  services.SubmissionStore
	Problems     ProblemStore
	Users        services.UserStore
	Leaderboard  leaderboard.Store

	// Ping is nil for the memory driver.
	Ping  func(ctx context.Context) error
	Close func() error
}

func OpenStores(cfg *config.Config) (*Stores, error) {
	derive := cfg.Leaderboard.ScoreSource == config.ScoreSourceSubmissions

	switch cfg.Database.Driver {
	case config.StoreDriverMemory:
		var opts []memstore.Option
		if derive {
			opts = append(opts, memstore.WithDerivedScores())
		}
		s := memstore.New(opts...)
		return &Stores{
			Contests:     s,
			Participants: s,
			Submissions:  s,
			Problems:     s,
			Users:        s,
			Leaderboard:  s,
			Close:        func() error { return nil },
		}, nil

	case config.StoreDriverPostgres:
		db, err := database.NewGormConnection(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			LogLevel: cfg.Logging.GormLevel,
		})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run auto-migration: %w", err)
		}
		return &Stores{
			Contests:     database.NewContestRepository(db),
			Participants: database.NewParticipantRepository(db),
			Submissions:  database.NewSubmissionRepository(db),
			Problems:     database.NewProblemRepository(db),
			Users:        database.NewUserRepository(db),
			Leaderboard:  database.NewLeaderboardStore(db, derive),
			Ping:         db.Ping,
			Close:        db.Close,
		}, nil
	}

	return nil, fmt.Errorf("unsupported store driver %q", cfg.Database.Driver)
}

// OpenRedis connects and pings Redis. It returns nil, nil when Redis is disabled.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
