package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"skillport/internal/app"
	"skillport/internal/broadcast"
	"skillport/internal/config"
	"skillport/internal/leaderboard"
	"skillport/internal/models"
	"skillport/pkg/logger"

	"github.com/google/uuid"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: recompute <contest_id|active>")
		fmt.Println("Example: recompute 3f1c2b9e-8a4d-4c11-9a55-0f2f7d9b1e60")
		os.Exit(1)
	}

	cfg, err := config.Load()
	log := logger.NewWithLevel("skillport-recompute", cfg.Logging.Level)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Database.Driver == config.StoreDriverMemory {
		log.Fatal("Nothing to recompute with STORE_DRIVER=memory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores, err := app.OpenStores(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open stores")
	}
	defer stores.Close()

	opts := []leaderboard.Option{leaderboard.WithLogger(log.Service())}
	redisClient, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, live viewers will not be notified")
	} else if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, leaderboard.WithPublisher(broadcast.NewRedisPublisher(redisClient, cfg.Leaderboard.BroadcastTopN, nil)))
	}
	calc := leaderboard.NewCalculator(stores.Leaderboard, opts...)

	var contestIDs []uuid.UUID
	if os.Args[1] == "active" {
		active, err := stores.Contests.ListContestsByStatus(ctx, models.ContestStatusActive)
		if err != nil {
			log.WithError(err).Fatal("Failed to list active contests")
		}
		for _, c := range active {
			contestIDs = append(contestIDs, c.ID)
		}
	} else {
		id, err := uuid.Parse(os.Args[1])
		if err != nil {
			log.WithError(err).Fatalf("Invalid contest id %q", os.Args[1])
		}
		contestIDs = append(contestIDs, id)
	}

	failed := 0
	for _, id := range contestIDs {
		snap, err := calc.Recompute(ctx, id)
		if err != nil {
			log.WithContest(id.String()).WithError(err).Error("Recompute failed")
			failed++
			continue
		}
		fmt.Printf("Recomputed contest %s: %d participants ranked at %s\n",
			id, len(snap.Entries), snap.ComputedAt.Format(time.RFC3339))
		for _, e := range snap.Top(10) {
			fmt.Printf("  %3d. %-24s %6d pts  %d solved\n", e.Rank, e.UserName, e.Score, e.ProblemsSolved)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
